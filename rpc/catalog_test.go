package rpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Keksclan/goNutStash/catalog"
	"github.com/Keksclan/goNutStash/store"
)

type fakeReader struct {
	products map[string]*catalog.Product
	cached   bool
	err      error
	route    string
}

func (f *fakeReader) Read(_ context.Context, route, key string) (*catalog.Product, bool, error) {
	f.route = route
	if f.err != nil {
		return nil, false, f.err
	}
	p, ok := f.products[key]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	return p, f.cached, nil
}

func startServer(t *testing.T, r Reader) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(RecoveryUnary()))
	Register(srv, NewService(r))

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServiceRegistration(t *testing.T) {
	srv := grpc.NewServer()
	Register(srv, NewService(&fakeReader{}))

	info, ok := srv.GetServiceInfo()["stash.Catalog"]
	if !ok {
		t.Fatal("stash.Catalog not registered")
	}
	if len(info.Methods) != 1 || info.Methods[0].Name != "Get" {
		t.Fatalf("unexpected methods: %+v", info.Methods)
	}
}

func TestGetRoundTrip(t *testing.T) {
	rd := &fakeReader{
		products: map[string]*catalog.Product{
			"SKU-7": {SKU: "SKU-7", Name: "Walnut Crate", Price: 1005, Discount: 10, FinalPrice: 905, Savings: 100},
		},
		cached: true,
	}
	conn := startServer(t, rd)

	resp := new(GetResponse)
	err := conn.Invoke(t.Context(), RouteCatalogGet, &GetRequest{Key: "SKU-7"}, resp)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Product == nil || resp.Product.SKU != "SKU-7" {
		t.Fatalf("unexpected product: %+v", resp.Product)
	}
	if resp.Product.FinalPrice != 905 {
		t.Fatalf("final price = %v, want 905", resp.Product.FinalPrice)
	}
	if !resp.Cached {
		t.Fatal("cached flag lost in transit")
	}
	if rd.route != RouteCatalogGet {
		t.Fatalf("route label = %q, want %q", rd.route, RouteCatalogGet)
	}
}

func TestGetNotFound(t *testing.T) {
	conn := startServer(t, &fakeReader{products: map[string]*catalog.Product{}})

	err := conn.Invoke(t.Context(), RouteCatalogGet, &GetRequest{Key: "SKU-404"}, new(GetResponse))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("code = %v, want NotFound", status.Code(err))
	}
}

func TestGetRejectsEmptyKey(t *testing.T) {
	conn := startServer(t, &fakeReader{})

	err := conn.Invoke(t.Context(), RouteCatalogGet, &GetRequest{}, new(GetResponse))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{store.ErrNotFound, codes.NotFound},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("redis gone"), codes.Unavailable},
	}
	for _, tc := range cases {
		if got := status.Code(statusFromError(tc.err)); got != tc.want {
			t.Errorf("statusFromError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestGetUnavailableOnStoreFailure(t *testing.T) {
	conn := startServer(t, &fakeReader{err: errors.New("backing store down")})

	err := conn.Invoke(t.Context(), RouteCatalogGet, &GetRequest{Key: "SKU-1"}, new(GetResponse))
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("code = %v, want Unavailable", status.Code(err))
	}
}

// Package rpc exposes the cache-aside read path over gRPC for programmatic
// clients. The stash.Catalog service uses [grpc.ServiceDesc] registration so
// that no protobuf code generation is required.
//
// Because the request/response types are plain Go structs (not generated
// protobuf messages), the package registers a thin codec wrapper that
// JSON-encodes catalog messages while delegating all other messages to the
// standard proto codec. Import this package (or call [Register]) to activate
// the codec automatically.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcEncoding "google.golang.org/grpc/encoding"
	_ "google.golang.org/grpc/encoding/proto" // ensure default proto codec is registered first
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/Keksclan/goNutStash/catalog"
	"github.com/Keksclan/goNutStash/store"
)

// RouteCatalogGet is the metrics route label for reads arriving over gRPC.
const RouteCatalogGet = "/stash.Catalog/Get"

// GetRequest is the input for the Get method.
type GetRequest struct {
	Key string `json:"key"`
}

// GetResponse is the output of the Get method.
type GetResponse struct {
	Product *catalog.Product `json:"product"`
	Cached  bool             `json:"cached"`
}

// catalogMsg is a marker interface satisfied by GetRequest and GetResponse.
type catalogMsg interface {
	isCatalogMsg()
}

func (*GetRequest) isCatalogMsg()  {}
func (*GetResponse) isCatalogMsg() {}

// Reader is the cache-aside entry point the service drives. Satisfied by
// *reader.CacheAside.
type Reader interface {
	Read(ctx context.Context, route, key string) (*catalog.Product, bool, error)
}

// Service implements the stash.Catalog service.
type Service struct {
	reader Reader
}

// NewService creates a Catalog service over the given reader.
func NewService(r Reader) *Service {
	return &Service{reader: r}
}

// Get serves one cache-aside read.
func (s *Service) Get(ctx context.Context, req *GetRequest) (*GetResponse, error) {
	if req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "key is required")
	}
	p, cached, err := s.reader.Read(ctx, RouteCatalogGet, req.Key)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &GetResponse{Product: p, Cached: cached}, nil
}

// statusFromError maps the read error taxonomy onto gRPC status codes.
func statusFromError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

// ServiceDesc is the grpc.ServiceDesc for the stash.Catalog service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "stash.Catalog",
	HandlerType: (*catalogHandler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Get",
			Handler:    getHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stash/catalog.proto",
}

// catalogHandler is the interface the registered implementation must satisfy.
type catalogHandler interface {
	Get(ctx context.Context, req *GetRequest) (*GetResponse, error)
}

func getHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(GetRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(catalogHandler).Get(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RouteCatalogGet,
	}
	handler := func(ctx context.Context, r any) (any, error) {
		return srv.(catalogHandler).Get(ctx, r.(*GetRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// Register registers a Catalog service implementation on the given gRPC
// server.
func Register(s *grpc.Server, svc *Service) {
	s.RegisterService(&ServiceDesc, svc)
}

// ---------- codec wrapper ----------

func init() {
	// Replace the default proto codec with a thin wrapper that JSON-encodes
	// catalog types and delegates all other messages to proto.Marshal.
	grpcEncoding.RegisterCodec(catalogCodec{})
}

// catalogCodec wraps the default proto codec. It handles GetRequest and
// GetResponse via JSON, and delegates all other types to proto.Marshal/Unmarshal.
type catalogCodec struct{}

func (catalogCodec) Name() string { return "proto" }

func (catalogCodec) Marshal(v any) ([]byte, error) {
	if _, ok := v.(catalogMsg); ok {
		return json.Marshal(v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("catalog codec: unsupported message type %T", v)
}

func (catalogCodec) Unmarshal(data []byte, v any) error {
	if _, ok := v.(catalogMsg); ok {
		return json.Unmarshal(data, v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("catalog codec: unsupported message type %T", v)
}

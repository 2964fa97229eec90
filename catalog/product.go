// Package catalog defines the product entity served by the demo and the
// pricing fields derived from it at read time.
package catalog

import (
	"encoding/json"
	"math"
	"time"
)

// PricePoint is one entry in a product's recent price history.
type PricePoint struct {
	Price float64   `json:"price"`
	At    time.Time `json:"at"`
}

// Product is a catalog record addressed by SKU. FinalPrice and Savings are
// computed from Price and Discount on the way out and never persisted.
type Product struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Discount  float64 `json:"discount"`
	Inventory int     `json:"inventory"`

	// Optional enrichment fields.
	Variants       []string       `json:"variants,omitempty"`
	WarehouseStock map[string]int `json:"warehouseStock,omitempty"`
	Rating         float64        `json:"rating,omitempty"`
	PriceHistory   []PricePoint   `json:"priceHistory,omitempty"`

	FinalPrice float64 `json:"finalPrice"`
	Savings    float64 `json:"savings"`
}

// Derive fills FinalPrice and Savings:
//
//	FinalPrice = round(Price × (1 − Discount/100))
//	Savings    = Price − FinalPrice
//
// Discount is a percentage in [0,100].
func (p *Product) Derive() {
	p.FinalPrice = math.Round(p.Price * (1 - p.Discount/100))
	p.Savings = p.Price - p.FinalPrice
}

// Encode serializes the product as the cache wire format.
func (p *Product) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// Decode deserializes a cached product snapshot.
func Decode(data []byte) (*Product, error) {
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

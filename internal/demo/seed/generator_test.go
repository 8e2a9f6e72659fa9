package seed

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var fixedNow = time.Date(2026, 2, 19, 7, 30, 0, 0, time.UTC)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Products = 15
	cfg.Users = 10
	cfg.Orders = 60
	cfg.MaxItemsPerOrder = 3
	cfg.Span = 90 * 24 * time.Hour
	return cfg
}

func TestGeneratorDeterministicForSeed(t *testing.T) {
	cfg := smallConfig()
	first := NewGenerator(cfg, clockwork.NewFakeClockAt(fixedNow)).Generate()
	second := NewGenerator(cfg, clockwork.NewFakeClockAt(fixedNow)).Generate()
	if !reflect.DeepEqual(first, second) {
		t.Fatal("datasets differ for the same seed and clock")
	}

	cfg.Seed = 7
	other := NewGenerator(cfg, clockwork.NewFakeClockAt(fixedNow)).Generate()
	if reflect.DeepEqual(first.Orders, other.Orders) {
		t.Fatal("different seeds produced identical orders")
	}
}

func TestGeneratorProducesConsistentOrders(t *testing.T) {
	cfg := smallConfig()
	ds := NewGenerator(cfg, clockwork.NewFakeClockAt(fixedNow)).Generate()

	if len(ds.Products) != 15 || len(ds.Users) != 10 || len(ds.Orders) != 60 {
		t.Fatalf("sizes = %d/%d/%d", len(ds.Products), len(ds.Users), len(ds.Orders))
	}
	if ds.Products[12].Name != "Laptop v2" {
		t.Fatalf("wrapped product name = %q", ds.Products[12].Name)
	}

	prices := map[int]float64{}
	for _, p := range ds.Products {
		prices[p.ID] = p.Price
	}
	start := fixedNow.Add(-cfg.Span)
	for i, order := range ds.Orders {
		if order.ID != i+1 {
			t.Fatalf("order %d has id %d", i, order.ID)
		}
		if i > 0 && order.CreatedAt.Before(ds.Orders[i-1].CreatedAt) {
			t.Fatalf("orders not sorted by created_at at %d", i)
		}
		if order.CreatedAt.Before(start) || order.CreatedAt.After(fixedNow) {
			t.Fatalf("order %d created_at %s outside span", order.ID, order.CreatedAt)
		}
		if order.UserID < 1 || order.UserID > cfg.Users {
			t.Fatalf("order %d user_id = %d", order.ID, order.UserID)
		}
		if n := len(order.ProductIDs); n < 1 || n > cfg.MaxItemsPerOrder {
			t.Fatalf("order %d has %d products", order.ID, n)
		}
		var subtotal float64
		seen := map[int]bool{}
		for _, id := range order.ProductIDs {
			if seen[id] {
				t.Fatalf("order %d repeats product %d", order.ID, id)
			}
			seen[id] = true
			subtotal += prices[id]
		}
		if math.Abs(round2(subtotal)-order.Subtotal) > 0.001 {
			t.Fatalf("order %d subtotal = %v, want %v", order.ID, order.Subtotal, round2(subtotal))
		}
		if math.Abs(order.Subtotal-order.Discount-order.TotalPrice) > 0.011 {
			t.Fatalf("order %d total = %v, subtotal %v discount %v", order.ID, order.TotalPrice, order.Subtotal, order.Discount)
		}
	}
}

func TestGeneratorZeroOrders(t *testing.T) {
	cfg := smallConfig()
	cfg.Orders = 0
	ds := NewGenerator(cfg, clockwork.NewFakeClockAt(fixedNow)).Generate()
	if len(ds.Orders) != 0 {
		t.Fatalf("orders = %d", len(ds.Orders))
	}
}

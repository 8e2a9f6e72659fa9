// Package seed generates and loads a deterministic sales dataset for demos.
package seed

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
)

type Product struct {
	ID          int
	Name        string
	Description string
	Price       float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type User struct {
	ID        int
	Username  string
	Email     string
	Password  string
	CreatedAt time.Time
}

type Order struct {
	ID         int
	UserID     int
	Subtotal   float64
	Discount   float64
	TotalPrice float64
	CreatedAt  time.Time
	ProductIDs []int
}

type Dataset struct {
	Products []Product
	Users    []User
	Orders   []Order
}

type catalogEntry struct {
	name  string
	desc  string
	price float64
}

var catalog = []catalogEntry{
	{"Laptop", "14 inch ultrabook", 1199.00},
	{"Mouse", "Wireless optical mouse", 24.99},
	{"Keyboard", "Mechanical keyboard", 89.50},
	{"Monitor", "27 inch 4K display", 349.00},
	{"Headphones", "Noise cancelling headphones", 199.99},
	{"Webcam", "1080p webcam", 59.90},
	{"Desk Lamp", "LED desk lamp", 34.00},
	{"USB Hub", "7 port USB hub", 29.99},
	{"Phone", "Smartphone 128GB", 799.00},
	{"Tablet", "10 inch tablet", 449.00},
	{"Charger", "65W USB-C charger", 39.00},
	{"Backpack", "Laptop backpack", 69.00},
}

// Generator builds the dataset from a seed. The same seed and clock time
// always yield the same rows.
type Generator struct {
	rnd   *rand.Rand
	clock clockwork.Clock
	cfg   Config
}

func NewGenerator(cfg Config, clock clockwork.Clock) *Generator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Generator{
		rnd:   rand.New(rand.NewSource(cfg.Seed)),
		clock: clock,
		cfg:   cfg,
	}
}

func (g *Generator) Generate() Dataset {
	now := g.clock.Now().UTC().Truncate(time.Second)
	start := now.Add(-g.cfg.Span)

	ds := Dataset{
		Products: make([]Product, 0, g.cfg.Products),
		Users:    make([]User, 0, g.cfg.Users),
		Orders:   make([]Order, 0, g.cfg.Orders),
	}

	for i := 1; i <= g.cfg.Products; i++ {
		entry := catalog[(i-1)%len(catalog)]
		name := entry.name
		price := entry.price
		if edition := (i - 1) / len(catalog); edition > 0 {
			name = fmt.Sprintf("%s v%d", entry.name, edition+1)
			price = round2(price * (1 + 0.1*float64(edition)))
		}
		created := start.Add(-time.Duration(g.rnd.Intn(90)+1) * 24 * time.Hour)
		ds.Products = append(ds.Products, Product{
			ID:          i,
			Name:        name,
			Description: entry.desc,
			Price:       price,
			CreatedAt:   created,
			UpdatedAt:   created,
		})
	}

	for i := 1; i <= g.cfg.Users; i++ {
		ds.Users = append(ds.Users, User{
			ID:        i,
			Username:  fmt.Sprintf("user%04d", i),
			Email:     fmt.Sprintf("user%04d@example.com", i),
			Password:  fmt.Sprintf("hash-%08x", g.rnd.Uint32()),
			CreatedAt: g.timeBetween(start.Add(-g.cfg.Span), start),
		})
	}

	for i := 1; i <= g.cfg.Orders; i++ {
		ds.Orders = append(ds.Orders, g.order(i, ds.Products, start, now))
	}
	sort.SliceStable(ds.Orders, func(a, b int) bool {
		return ds.Orders[a].CreatedAt.Before(ds.Orders[b].CreatedAt)
	})
	for i := range ds.Orders {
		ds.Orders[i].ID = i + 1
	}
	return ds
}

func (g *Generator) order(id int, products []Product, start, end time.Time) Order {
	items := g.rnd.Intn(g.cfg.MaxItemsPerOrder) + 1
	picked := g.rnd.Perm(len(products))[:items]
	sort.Ints(picked)

	order := Order{
		ID:         id,
		UserID:     g.rnd.Intn(g.cfg.Users) + 1,
		CreatedAt:  g.timeBetween(start, end),
		ProductIDs: make([]int, 0, items),
	}
	for _, index := range picked {
		order.ProductIDs = append(order.ProductIDs, products[index].ID)
		order.Subtotal += products[index].Price
	}
	order.Subtotal = round2(order.Subtotal)
	if g.rnd.Intn(100) < 20 {
		order.Discount = round2(order.Subtotal * 0.1)
	}
	order.TotalPrice = round2(order.Subtotal - order.Discount)
	return order
}

func (g *Generator) timeBetween(start, end time.Time) time.Time {
	seconds := int64(end.Sub(start) / time.Second)
	if seconds <= 0 {
		return start
	}
	return start.Add(time.Duration(g.rnd.Int63n(seconds)) * time.Second)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

package seed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	Products         int
	Users            int
	Orders           int
	MaxItemsPerOrder int
	// Span is how far back order timestamps reach from the clock's now.
	Span      time.Duration
	Seed      int64
	Truncate  bool
	BatchSize int
}

func DefaultConfig() Config {
	return Config{
		Products:         24,
		Users:            150,
		Orders:           1200,
		MaxItemsPerOrder: 4,
		Span:             365 * 24 * time.Hour,
		Seed:             42,
		Truncate:         true,
		BatchSize:        500,
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	steps := []func() error{
		func() error { return applyInt(lookup, "PROMPTCHART_SEED_PRODUCTS", &cfg.Products) },
		func() error { return applyInt(lookup, "PROMPTCHART_SEED_USERS", &cfg.Users) },
		func() error { return applyInt(lookup, "PROMPTCHART_SEED_ORDERS", &cfg.Orders) },
		func() error { return applyInt(lookup, "PROMPTCHART_SEED_MAX_ITEMS_PER_ORDER", &cfg.MaxItemsPerOrder) },
		func() error { return applyDuration(lookup, "PROMPTCHART_SEED_SPAN", &cfg.Span) },
		func() error { return applyInt64(lookup, "PROMPTCHART_SEED_VALUE", &cfg.Seed) },
		func() error { return applyBool(lookup, "PROMPTCHART_SEED_TRUNCATE", &cfg.Truncate) },
		func() error { return applyInt(lookup, "PROMPTCHART_SEED_BATCH_SIZE", &cfg.BatchSize) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Products <= 0:
		return fmt.Errorf("PROMPTCHART_SEED_PRODUCTS must be > 0")
	case c.Users <= 0:
		return fmt.Errorf("PROMPTCHART_SEED_USERS must be > 0")
	case c.Orders < 0:
		return fmt.Errorf("PROMPTCHART_SEED_ORDERS must be >= 0")
	case c.MaxItemsPerOrder <= 0:
		return fmt.Errorf("PROMPTCHART_SEED_MAX_ITEMS_PER_ORDER must be > 0")
	case c.MaxItemsPerOrder > c.Products:
		return fmt.Errorf("PROMPTCHART_SEED_MAX_ITEMS_PER_ORDER must not exceed the product count")
	case c.Span <= 0:
		return fmt.Errorf("PROMPTCHART_SEED_SPAN must be > 0")
	case c.BatchSize <= 0:
		return fmt.Errorf("PROMPTCHART_SEED_BATCH_SIZE must be > 0")
	}
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

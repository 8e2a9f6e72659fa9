package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTimeSeries(t *testing.T) {
	for _, request := range []string{
		"show orders per month in 2025",
		"revenue over time",
		"signups by date",
		"Monthly sales",
		"daily orders",
		"yearly revenue",
		"price trend",
	} {
		assert.True(t, IsTimeSeries(request), request)
	}
	assert.False(t, IsTimeSeries("total products"))
	assert.False(t, IsTimeSeries("get all products"))
}

func TestIsCount(t *testing.T) {
	tests := []struct {
		request string
		want    bool
	}{
		{"total products", true},
		{"how many users signed up", true},
		{"count of orders", true},
		{"total price of orders", false},
		{"total revenue by user", false},
		{"sum of discounts", false},
		{"total orders per month", false},
		{"get all products", false},
		{"order counts by product", true},
		{"totals per category", true},
		{"users who ordered many times", true},
		{"customers with totally free shipping", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsCount(tt.request), tt.request)
	}
}

func TestIsConditional(t *testing.T) {
	assert.True(t, IsConditional("products with a price greater than 50"))
	assert.True(t, IsConditional("orders LESS THAN 10 dollars"))
	assert.False(t, IsConditional("cheapest products"))
}

func TestClassifyFollowsRuleOrder(t *testing.T) {
	assert.Equal(t, KindTimeSeries, Classify("total orders per month").Kind)
	assert.Equal(t, KindCount, Classify("total products").Kind)
	assert.Equal(t, KindAverage, Classify("average, min, max price of products").Kind)
	assert.Equal(t, KindListing, Classify("get all products").Kind)

	got := Classify("Get all products with a price greater than 50")
	assert.Equal(t, Intent{Kind: KindListing, Conditional: true}, got)
}

func TestIsAggregate(t *testing.T) {
	assert.True(t, IsAggregate("sum of sales"))
	assert.True(t, IsAggregate("Total units"))
	assert.False(t, IsAggregate("sales by region"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "total products", Normalize("  Total   PRODUCTS\n"))
}

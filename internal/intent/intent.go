// Package intent detects what a natural-language chart request is asking for.
// Detection is keyword based and always looks at the request text, never at
// generated SQL.
package intent

import (
	"regexp"
	"strings"
)

type Kind string

const (
	KindTimeSeries Kind = "time_series"
	KindCount      Kind = "count"
	KindAverage    Kind = "average"
	KindListing    Kind = "listing"
)

var (
	timeSeriesPattern  = regexp.MustCompile(`(?i)per (month|day|week|year)|over time|by date|monthly|weekly|daily|yearly|trend`)
	countPattern       = regexp.MustCompile(`(?i)\b(total|count|many)`)
	sumPhrasePattern   = regexp.MustCompile(`(?i)\btotal (price|sales|revenue|amount|spent|value)\b|\bsum\b`)
	averagePattern     = regexp.MustCompile(`(?i)\b(average|avg|mean)\b`)
	conditionalPattern = regexp.MustCompile(`(?i)\b(greater|less) than\b`)
	aggregatePattern   = regexp.MustCompile(`(?i)\b(total|count|sum)\b`)
)

// Intent is the set of facts the prompt, validator and chart rules key off.
type Intent struct {
	Kind        Kind
	Conditional bool
}

// rule is one step of the ordered classification chain.
type rule struct {
	kind  Kind
	match func(string) bool
}

var rules = []rule{
	{kind: KindTimeSeries, match: IsTimeSeries},
	{kind: KindCount, match: IsCount},
	{kind: KindAverage, match: IsAverage},
}

// Classify walks the rule chain and returns the first kind that matches.
// Requests matching nothing are listings.
func Classify(request string) Intent {
	out := Intent{Kind: KindListing, Conditional: IsConditional(request)}
	for _, r := range rules {
		if r.match(request) {
			out.Kind = r.kind
			break
		}
	}
	return out
}

func IsTimeSeries(request string) bool {
	return timeSeriesPattern.MatchString(request)
}

// IsCount reports a request for a row count. Words starting with total,
// count or many match, so "totals" and "counts" do too. Sum shaped phrasing
// such as "total price" and time-series requests are excluded.
func IsCount(request string) bool {
	if !countPattern.MatchString(request) {
		return false
	}
	if IsTimeSeries(request) {
		return false
	}
	return !sumPhrasePattern.MatchString(request)
}

func IsAverage(request string) bool {
	return averagePattern.MatchString(request)
}

func IsConditional(request string) bool {
	return conditionalPattern.MatchString(request)
}

// IsAggregate reports total/count/sum requests over an uploaded dataset,
// which chart as a single summed slice.
func IsAggregate(request string) bool {
	return aggregatePattern.MatchString(request)
}

// Normalize folds a request into the key used for caching generated SQL.
func Normalize(request string) string {
	return strings.Join(strings.Fields(strings.ToLower(request)), " ")
}

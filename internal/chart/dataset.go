package chart

import (
	"strings"
	"time"

	"github.com/promptchart/promptchart/internal/failure"
	"github.com/promptchart/promptchart/internal/intent"
	"github.com/promptchart/promptchart/internal/query"
)

var dateLayouts = []string{
	time.RFC3339,
	time.DateTime,
	time.DateOnly,
	"2006-01",
	"2006/01/02",
	"01/02/2006",
	"Jan 2006",
	"January 2006",
	"2 Jan 2006",
}

// InferDataset charts spreadsheet-shaped rows. Aggregate requests (total,
// count, sum) become a single pie slice holding the sum of the first
// numeric column. Time-series requests plot the first date-like column
// against the first numeric column. Everything else is a bar chart of the
// first descriptive column against the first numeric column.
func (inf *Inferrer) InferDataset(ds query.Result, request string) (Shape, error) {
	if len(ds.Rows) == 0 || len(ds.Columns) == 0 {
		return Shape{}, failure.New(failure.KindEmptyResult, "Dataset is empty or invalid")
	}

	numeric, descriptive, dates := -1, -1, -1
	for i, name := range ds.Columns {
		lower := strings.ToLower(name)
		values := ds.Column(i)
		if numeric < 0 && anyValue(values, query.Value.IsNumeric) {
			numeric = i
		}
		if descriptive < 0 && !strings.Contains(lower, "date") && anyValue(values, isText) {
			descriptive = i
		}
		if dates < 0 && (strings.Contains(lower, "date") || strings.Contains(lower, "time") || anyValue(values, isDateLike)) {
			dates = i
		}
	}

	switch {
	case intent.IsAggregate(request):
		if numeric < 0 {
			return Shape{}, failure.New(failure.KindNoChartableData, "No numeric column found for total analysis")
		}
		var total float64
		for _, v := range ds.Column(numeric) {
			f, err := inf.number(ds.Columns[numeric], v)
			if err != nil {
				return Shape{}, err
			}
			total += f
		}
		return checkShape(Shape{Type: TypePie, Labels: []string{ds.Columns[numeric]}, Data: []float64{total}})
	case intent.IsTimeSeries(request):
		if dates < 0 || numeric < 0 {
			return Shape{}, failure.New(failure.KindNoChartableData, "Date or numeric column missing for time analysis")
		}
		shape, err := inf.series(TypeLine, ds, dates, numeric)
		if err != nil {
			return Shape{}, err
		}
		return checkShape(shape)
	default:
		if descriptive < 0 || numeric < 0 {
			return Shape{}, failure.New(failure.KindNoChartableData, "String or numeric column missing for analysis")
		}
		shape, err := inf.series(TypeBar, ds, descriptive, numeric)
		if err != nil {
			return Shape{}, err
		}
		return checkShape(shape)
	}
}

func anyValue(values []query.Value, match func(query.Value) bool) bool {
	for _, v := range values {
		if match(v) {
			return true
		}
	}
	return false
}

func isText(v query.Value) bool {
	return v.Kind() == query.KindString && !v.IsNumeric()
}

func isDateLike(v query.Value) bool {
	if v.Kind() != query.KindString {
		return false
	}
	text := strings.TrimSpace(v.Text())
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, text); err == nil {
			return true
		}
	}
	return false
}

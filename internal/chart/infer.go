package chart

import (
	"regexp"
	"strings"

	"github.com/promptchart/promptchart/internal/failure"
	"github.com/promptchart/promptchart/internal/intent"
	"github.com/promptchart/promptchart/internal/query"
)

var countCallPattern = regexp.MustCompile(`(?i)\bCOUNT\s*\(`)

// Options control numeric coercion. In lenient mode a value that is not a
// number becomes 0. In strict mode it is a NO_CHARTABLE_DATA failure.
type Options struct {
	Strict bool
}

type Inferrer struct {
	opts Options
}

func NewInferrer(opts Options) *Inferrer {
	return &Inferrer{opts: opts}
}

// strategy is one entry of the ordered shape rule list. applies decides
// whether the rule handles the input; build derives the shape.
type strategy struct {
	name    string
	applies func(in input) bool
	build   func(inf *Inferrer, in input) (Shape, error)
}

type input struct {
	result  query.Result
	request string
	sql     string
}

var strategies = []strategy{
	{
		name:    "time_series",
		applies: func(in input) bool { return intent.IsTimeSeries(in.request) },
		build:   (*Inferrer).timeSeries,
	},
	{
		name:    "single_row_multi_column",
		applies: func(in input) bool { return len(in.result.Rows) == 1 && len(in.result.Columns) > 1 },
		build:   (*Inferrer).doughnut,
	},
	{
		name: "single_row_count",
		applies: func(in input) bool {
			return len(in.result.Rows) == 1 && len(in.result.Columns) == 1 && countCallPattern.MatchString(in.sql)
		},
		build: (*Inferrer).pie,
	},
	{
		name:    "listing",
		applies: func(input) bool { return true },
		build:   (*Inferrer).bar,
	},
}

// Infer picks the first matching rule and derives its shape. The same
// inputs always produce the same shape.
func (inf *Inferrer) Infer(result query.Result, request, sql string) (Shape, error) {
	if len(result.Rows) == 0 || len(result.Columns) == 0 {
		return Shape{}, failure.New(failure.KindEmptyResult, "Query returned no results")
	}
	in := input{result: result, request: request, sql: sql}
	for _, s := range strategies {
		if !s.applies(in) {
			continue
		}
		shape, err := s.build(inf, in)
		if err != nil {
			return Shape{}, err
		}
		return checkShape(shape)
	}
	return Shape{}, failure.New(failure.KindNoChartableData, "No valid data found for chart generation")
}

func (inf *Inferrer) timeSeries(in input) (Shape, error) {
	profile := profileColumns(in.result)
	label := profile.firstNamed("date", "time")
	if label < 0 {
		label = profile.firstString()
	}
	if label < 0 {
		label = 0
	}
	value := profile.valueColumn(label)
	return inf.series(TypeLine, in.result, label, value)
}

func (inf *Inferrer) doughnut(in input) (Shape, error) {
	row := in.result.Rows[0]
	shape := Shape{Type: TypeDoughnut}
	for i, column := range in.result.Columns {
		if i >= len(row) {
			break
		}
		f, ok := row[i].Float()
		if !ok {
			continue
		}
		shape.Labels = append(shape.Labels, column)
		shape.Data = append(shape.Data, f)
	}
	return shape, nil
}

func (inf *Inferrer) pie(in input) (Shape, error) {
	f, err := inf.number(in.result.Columns[0], in.result.Rows[0][0])
	if err != nil {
		return Shape{}, err
	}
	return Shape{Type: TypePie, Labels: []string{in.result.Columns[0]}, Data: []float64{f}}, nil
}

func (inf *Inferrer) bar(in input) (Shape, error) {
	profile := profileColumns(in.result)
	label := profile.firstString()
	if label < 0 {
		label = 0
	}
	value := profile.valueColumn(label)
	return inf.series(TypeBar, in.result, label, value)
}

func (inf *Inferrer) series(chartType Type, result query.Result, label, value int) (Shape, error) {
	shape := Shape{
		Type:   chartType,
		Labels: make([]string, 0, len(result.Rows)),
		Data:   make([]float64, 0, len(result.Rows)),
	}
	for _, row := range result.Rows {
		shape.Labels = append(shape.Labels, cell(row, label).Text())
		f, err := inf.number(result.Columns[value], cell(row, value))
		if err != nil {
			return Shape{}, err
		}
		shape.Data = append(shape.Data, f)
	}
	return shape, nil
}

func (inf *Inferrer) number(column string, v query.Value) (float64, error) {
	if f, ok := v.Float(); ok {
		return f, nil
	}
	if inf.opts.Strict {
		return 0, failure.Newf(failure.KindNoChartableData, "Column %q has non-numeric value %q", column, v.String())
	}
	return 0, nil
}

func checkShape(shape Shape) (Shape, error) {
	if len(shape.Labels) == 0 || len(shape.Data) == 0 {
		return Shape{}, failure.New(failure.KindNoChartableData, "No valid data found for chart generation")
	}
	if len(shape.Labels) != len(shape.Data) {
		return Shape{}, failure.New(failure.KindNoChartableData, "Mismatch between labels and data arrays")
	}
	return shape, nil
}

func cell(row query.Row, index int) query.Value {
	if index < 0 || index >= len(row) {
		return query.Null()
	}
	return row[index]
}

type columnProfile struct {
	names []string
	// str marks columns holding at least one non-numeric string.
	str []bool
	// num marks columns whose non-null values all read as numbers.
	num []bool
}

func profileColumns(result query.Result) columnProfile {
	p := columnProfile{
		names: result.Columns,
		str:   make([]bool, len(result.Columns)),
		num:   make([]bool, len(result.Columns)),
	}
	for i := range result.Columns {
		seen, numeric := 0, true
		for _, row := range result.Rows {
			v := cell(row, i)
			if v.IsNull() {
				continue
			}
			seen++
			if !v.IsNumeric() {
				numeric = false
				if v.Kind() == query.KindString {
					p.str[i] = true
				}
			}
		}
		p.num[i] = seen > 0 && numeric
	}
	return p
}

func (p columnProfile) firstNamed(fragments ...string) int {
	for i, name := range p.names {
		lower := strings.ToLower(name)
		for _, fragment := range fragments {
			if strings.Contains(lower, fragment) {
				return i
			}
		}
	}
	return -1
}

func (p columnProfile) firstString() int {
	for i, isString := range p.str {
		if isString {
			return i
		}
	}
	return -1
}

// valueColumn is the first numeric column other than label, else the
// second column, else the first.
func (p columnProfile) valueColumn(label int) int {
	for i, isNumeric := range p.num {
		if isNumeric && i != label {
			return i
		}
	}
	if len(p.names) > 1 {
		return 1
	}
	return 0
}

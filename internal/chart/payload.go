// Package chart derives a chart shape from a tabular result whose columns
// are only known at runtime.
package chart

type Type string

const (
	TypeBar      Type = "bar"
	TypeLine     Type = "line"
	TypePie      Type = "pie"
	TypeDoughnut Type = "doughnut"
)

// Shape is the chart type plus parallel label and value sequences.
// len(Labels) == len(Data) and both are non-empty.
type Shape struct {
	Type   Type
	Labels []string
	Data   []float64
}

// Payload is what callers render.
type Payload struct {
	ChartType     Type      `json:"chartType"`
	Labels        []string  `json:"labels"`
	Data          []float64 `json:"data"`
	Title         string    `json:"title"`
	Prompt        string    `json:"prompt"`
	Query         string    `json:"query,omitempty"`
	PinnedChartID *int64    `json:"pinnedChartId,omitempty"`
}

// NewPayload titles shape with the request text.
func NewPayload(shape Shape, prompt, sql string) Payload {
	return Payload{
		ChartType: shape.Type,
		Labels:    shape.Labels,
		Data:      shape.Data,
		Title:     prompt,
		Prompt:    prompt,
		Query:     sql,
	}
}

// WithPinnedID marks p as the replay of pinned chart id.
func (p Payload) WithPinnedID(id int64) Payload {
	p.PinnedChartID = &id
	return p
}

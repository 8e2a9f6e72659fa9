package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/promptchart/promptchart/internal/chart"
	"github.com/promptchart/promptchart/internal/config"
	"github.com/promptchart/promptchart/internal/dashboard"
	"github.com/promptchart/promptchart/internal/failure"
	"github.com/promptchart/promptchart/internal/pinned"
	"github.com/promptchart/promptchart/internal/query"
)

func TestHealthEndpoint(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["service"] != "promptchart-api" {
		t.Fatalf("service = %v", body["service"])
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{
		Readiness: func(context.Context) error {
			return errors.New("store down")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "NOT_READY" || body["retryable"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestChartRoutesWithoutServiceReturn501(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/charts", strings.NewReader(`{"prompt":"x"}`)))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestGenerateChartReturnsPayload(t *testing.T) {
	charts := &fakeCharts{payload: chart.Payload{
		ChartType: chart.TypePie,
		Labels:    []string{"count"},
		Data:      []float64{42},
		Title:     "how many orders",
		Prompt:    "how many orders",
		Query:     "SELECT COUNT(*) AS count FROM orders",
	}}
	h := NewHandler(testConfig(t), Dependencies{Charts: charts})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/charts", strings.NewReader(`{"prompt":"how many orders"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["chartType"] != "pie" || body["title"] != "how many orders" {
		t.Fatalf("body = %v", body)
	}
	if _, ok := body["pinnedChartId"]; ok {
		t.Fatal("pinnedChartId should be omitted for interactive charts")
	}
	if charts.lastPrompt != "how many orders" {
		t.Fatalf("prompt = %q", charts.lastPrompt)
	}
}

func TestGenerateChartRejectsInvalidJSON(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Charts: &fakeCharts{}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/charts", strings.NewReader(`{"prompt":`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "INVALID_JSON" {
		t.Fatalf("body = %v", body)
	}
}

func TestGenerateChartErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		message   string
		retryable bool
	}{
		{
			name:    "prompt required",
			err:     dashboard.ErrPromptRequired,
			status:  http.StatusBadRequest,
			code:    "PROMPT_REQUIRED",
			message: "Prompt is required",
		},
		{
			name:    "invalid generated query",
			err:     failure.Invalid("count_required", "Expected COUNT query for total request"),
			status:  http.StatusBadRequest,
			code:    "INVALID_GENERATED_QUERY",
			message: "Expected COUNT query for total request",
		},
		{
			name:    "execution failed",
			err:     failure.New(failure.KindQueryExecutionFailed, `Database query failed: relation "nope" does not exist`),
			status:  http.StatusBadRequest,
			code:    "QUERY_EXECUTION_FAILED",
			message: `Database query failed: relation "nope" does not exist`,
		},
		{
			name:    "empty result",
			err:     failure.New(failure.KindEmptyResult, "Query returned no results"),
			status:  http.StatusBadRequest,
			code:    "EMPTY_RESULT",
			message: "Query returned no results",
		},
		{
			name:      "upstream unavailable",
			err:       failure.Wrap(errors.New("dial tcp: refused"), failure.KindUpstreamUnavailable, "completion service failed after 3 attempts"),
			status:    http.StatusServiceUnavailable,
			code:      "UPSTREAM_UNAVAILABLE",
			message:   "completion service failed after 3 attempts",
			retryable: true,
		},
		{
			name:    "no chartable data",
			err:     failure.New(failure.KindNoChartableData, "No valid data found for chart generation"),
			status:  http.StatusInternalServerError,
			code:    "NO_CHARTABLE_DATA",
			message: "No valid data found for chart generation",
		},
		{
			name:    "internal",
			err:     errors.New("pq: secret connection detail"),
			status:  http.StatusInternalServerError,
			code:    "INTERNAL",
			message: "Failed to generate chart",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(testConfig(t), Dependencies{Charts: &fakeCharts{err: tt.err}})
			req := httptest.NewRequest(http.MethodPost, "/v1/charts", strings.NewReader(`{"prompt":"anything"}`))
			req.Header.Set("X-Trace-ID", "trace-abc")
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			body := decodeBody(t, rr)
			if body["error_code"] != tt.code {
				t.Fatalf("error_code = %v, want %s", body["error_code"], tt.code)
			}
			if body["error"] != tt.message || body["message"] != tt.message {
				t.Fatalf("error = %v, message = %v, want %q", body["error"], body["message"], tt.message)
			}
			if body["retryable"] != tt.retryable {
				t.Fatalf("retryable = %v", body["retryable"])
			}
			if body["trace_id"] != "trace-abc" {
				t.Fatalf("trace_id = %v", body["trace_id"])
			}
		})
	}
}

func TestInvalidQueryCarriesRuleInContext(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Charts: &fakeCharts{
		err: failure.Invalid("group_by_required", "Expected GROUP BY clause for time-series request"),
	}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/charts", strings.NewReader(`{"prompt":"sales per month"}`)))

	body := decodeBody(t, rr)
	extra, ok := body["context"].(map[string]any)
	if !ok || extra["rule"] != "group_by_required" {
		t.Fatalf("context = %v", body["context"])
	}
}

func TestReplayPinnedReturnsPayloads(t *testing.T) {
	id := int64(9)
	charts := &fakeCharts{replayed: []chart.Payload{
		{ChartType: chart.TypeBar, Labels: []string{"a"}, Data: []float64{1}, Title: "t", Prompt: "t", PinnedChartID: &id},
	}}
	h := NewHandler(testConfig(t), Dependencies{Charts: charts})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/charts/pinned", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var payloads []chart.Payload
	if err := json.Unmarshal(rr.Body.Bytes(), &payloads); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if len(payloads) != 1 || payloads[0].PinnedChartID == nil || *payloads[0].PinnedChartID != 9 {
		t.Fatalf("payloads = %+v", payloads)
	}
}

func TestPinLifecycleRoutes(t *testing.T) {
	charts := &fakeCharts{}
	h := NewHandler(testConfig(t), Dependencies{Charts: charts})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/pinned-charts",
		strings.NewReader(`{"prompt":"orders per month","query":"SELECT 1"}`)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("pin status = %d body=%s", rr.Code, rr.Body.String())
	}
	if body := decodeBody(t, rr); body["isPinned"] != true || body["id"] != float64(1) {
		t.Fatalf("pin body = %v", body)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/pinned-charts/check",
		strings.NewReader(`{"prompt":"orders per month","query":"SELECT 1"}`)))
	if body := decodeBody(t, rr); body["isPinned"] != true {
		t.Fatalf("check body = %v", body)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/pinned-charts", nil))
	var listed []pinned.Chart
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil || len(listed) != 1 {
		t.Fatalf("list = %s (%v)", rr.Body.String(), err)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/pinned-charts/1/unpin", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unpin status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/pinned-charts/check",
		strings.NewReader(`{"prompt":"orders per month","query":"SELECT 1"}`)))
	if body := decodeBody(t, rr); body["isPinned"] != false {
		t.Fatalf("check after unpin = %v", body)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/pinned-charts/1/unpin", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second unpin status = %d", rr.Code)
	}
}

func TestPinnedDataRoutes(t *testing.T) {
	charts := &fakeCharts{data: map[int64]dashboard.PinnedData{
		4: {Prompt: "users", Data: []map[string]query.Value{{"name": query.String("Ada")}}},
	}}
	h := NewHandler(testConfig(t), Dependencies{Charts: charts})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/pinned-charts/4/data", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"name":"Ada"`) {
		t.Fatalf("body = %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/pinned-charts/5/data", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/pinned-charts/abc/data", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rr.Code)
	}
}

func TestPinnedRoutesWhenStoreMissing(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Charts: &fakeCharts{err: dashboard.ErrPinnedUnavailable}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/charts/pinned", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAnalyzeDataset(t *testing.T) {
	charts := &fakeCharts{}
	h := NewHandler(testConfig(t), Dependencies{Charts: charts})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/datasets/analyze", strings.NewReader(`{
		"prompt": "revenue by region",
		"columns": ["region", "revenue"],
		"rows": [["north", 10], ["south", "12.5"], ["east", null]]
	}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if len(charts.dataset.Rows) != 3 || charts.dataset.Columns[1] != "revenue" {
		t.Fatalf("dataset = %+v", charts.dataset)
	}
	if f, ok := charts.dataset.Rows[1][1].Float(); !ok || f != 12.5 {
		t.Fatalf("numeric string = %v", charts.dataset.Rows[1][1])
	}
	if !charts.dataset.Rows[2][1].IsNull() {
		t.Fatalf("null value = %v", charts.dataset.Rows[2][1])
	}
}

func TestAnalyzeDatasetRejectsRaggedRows(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Charts: &fakeCharts{}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/datasets/analyze", strings.NewReader(`{
		"prompt": "revenue by region",
		"columns": ["region", "revenue"],
		"rows": [["north"]]
	}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "INVALID_DATASET" {
		t.Fatalf("body = %v", body)
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		nil,
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	err := combined(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("promptchart-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v (body=%s)", err, rr.Body.String())
	}
	return body
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

type fakeCharts struct {
	payload    chart.Payload
	replayed   []chart.Payload
	data       map[int64]dashboard.PinnedData
	err        error
	lastPrompt string
	dataset    query.Result
	pins       []pinned.Chart
}

func (f *fakeCharts) GenerateChart(_ context.Context, prompt string) (chart.Payload, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return chart.Payload{}, f.err
	}
	return f.payload, nil
}

func (f *fakeCharts) ListPinnedCharts(context.Context) ([]chart.Payload, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.replayed, nil
}

func (f *fakeCharts) PinnedCharts(context.Context) ([]pinned.Chart, error) {
	out := make([]pinned.Chart, 0, len(f.pins))
	for _, item := range f.pins {
		if item.IsPinned {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeCharts) PinnedData(_ context.Context, id int64) (dashboard.PinnedData, error) {
	data, ok := f.data[id]
	if !ok {
		return dashboard.PinnedData{}, pinned.ErrNotFound
	}
	return data, nil
}

func (f *fakeCharts) Pin(_ context.Context, prompt, sql string) (pinned.Chart, error) {
	item := pinned.Chart{ID: int64(len(f.pins) + 1), Prompt: prompt, Query: sql, IsPinned: true}
	f.pins = append(f.pins, item)
	return item, nil
}

func (f *fakeCharts) CheckPinned(_ context.Context, prompt, sql string) (pinned.Chart, bool, error) {
	for _, item := range f.pins {
		if item.IsPinned && item.Prompt == prompt && item.Query == sql {
			return item, true, nil
		}
	}
	return pinned.Chart{}, false, nil
}

func (f *fakeCharts) Unpin(_ context.Context, id int64) error {
	for i := range f.pins {
		if f.pins[i].ID == id && f.pins[i].IsPinned {
			f.pins[i].IsPinned = false
			return nil
		}
	}
	return pinned.ErrNotFound
}

func (f *fakeCharts) AnalyzeDataset(_ context.Context, prompt string, dataset query.Result) (dashboard.DatasetAnalysis, error) {
	f.dataset = dataset
	return dashboard.DatasetAnalysis{
		Chart: chart.Payload{ChartType: chart.TypeBar, Labels: []string{"north"}, Data: []float64{10}, Title: prompt, Prompt: prompt},
	}, nil
}

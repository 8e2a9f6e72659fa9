package promptchartctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type capturedRequest struct {
	method      string
	path        string
	contentType string
	body        map[string]string
}

func newCaptureServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.contentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &got.body); err != nil {
				t.Errorf("decode body: %v", err)
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestRunHealthCommand(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusOK, `{"status":"ok"}`)

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "health"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.method != http.MethodGet || got.path != "/v1/health" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	if !strings.Contains(stdout.String(), `"status": "ok"`) {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRunChartCommandJoinsPromptWords(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusOK, `{"type":"bar","labels":[],"data":[]}`)

	code := Run(context.Background(), []string{"-base-url", srv.URL, "chart", "revenue", "by", "product"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.method != http.MethodPost || got.path != "/v1/charts" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	if got.contentType != "application/json" {
		t.Fatalf("content type = %q", got.contentType)
	}
	if got.body["prompt"] != "revenue by product" {
		t.Fatalf("body = %#v", got.body)
	}
}

func TestRunPinCommand(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusCreated, `{"id":3}`)

	code := Run(context.Background(), []string{"-base-url", srv.URL, "pin", "orders per month", "SELECT 1"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.method != http.MethodPost || got.path != "/v1/pinned-charts" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	if got.body["prompt"] != "orders per month" || got.body["query"] != "SELECT 1" {
		t.Fatalf("body = %#v", got.body)
	}
}

func TestRunIDCommands(t *testing.T) {
	tests := []struct {
		args   []string
		method string
		path   string
	}{
		{args: []string{"unpin", "7"}, method: http.MethodPost, path: "/v1/pinned-charts/7/unpin"},
		{args: []string{"data", "7"}, method: http.MethodGet, path: "/v1/pinned-charts/7/data"},
		{args: []string{"pinned"}, method: http.MethodGet, path: "/v1/charts/pinned"},
		{args: []string{"pins"}, method: http.MethodGet, path: "/v1/pinned-charts"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			srv, got := newCaptureServer(t, http.StatusOK, `{}`)
			code := Run(context.Background(), append([]string{"-base-url", srv.URL}, tt.args...), Options{})
			if code != 0 {
				t.Fatalf("exit code = %d", code)
			}
			if got.method != tt.method || got.path != tt.path {
				t.Fatalf("request = %s %s", got.method, got.path)
			}
		})
	}
}

func TestRunRejectsBadArguments(t *testing.T) {
	for _, args := range [][]string{
		{"unknown"},
		{"chart"},
		{"pin", "only prompt"},
		{"unpin", "abc"},
		{"data", "0"},
	} {
		var stderr bytes.Buffer
		code := Run(context.Background(), args, Options{Stderr: &stderr})
		if code != 2 {
			t.Fatalf("Run(%v) exit code = %d", args, code)
		}
		if !strings.Contains(stderr.String(), "usage:") {
			t.Fatalf("Run(%v) expected usage output, got %q", args, stderr.String())
		}
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusBadRequest, `{"error_code":"PROMPT_REQUIRED"}`)

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "chart", "x"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "PROMPT_REQUIRED") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

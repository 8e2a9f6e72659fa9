package promptchartctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type command struct {
	method string
	path   string
	body   any
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("promptchartctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "promptchart API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 60s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	cmd, err := parseCommand(fs.Args())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	endpoint := strings.TrimRight(*baseURL, "/") + cmd.path
	code, responseBody, err := doRequest(ctx, client, cmd.method, endpoint, cmd.body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func parseCommand(args []string) (command, error) {
	name := strings.TrimSpace(args[0])
	rest := args[1:]
	switch name {
	case "health":
		return command{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return command{method: http.MethodGet, path: "/v1/ready"}, nil
	case "chart":
		prompt := strings.TrimSpace(strings.Join(rest, " "))
		if prompt == "" {
			return command{}, fmt.Errorf("chart requires a prompt")
		}
		return command{method: http.MethodPost, path: "/v1/charts", body: map[string]string{"prompt": prompt}}, nil
	case "pinned":
		return command{method: http.MethodGet, path: "/v1/charts/pinned"}, nil
	case "pins":
		return command{method: http.MethodGet, path: "/v1/pinned-charts"}, nil
	case "pin", "check":
		if len(rest) != 2 {
			return command{}, fmt.Errorf("%s requires <prompt> <query>", name)
		}
		path := "/v1/pinned-charts"
		if name == "check" {
			path += "/check"
		}
		return command{method: http.MethodPost, path: path, body: map[string]string{"prompt": rest[0], "query": rest[1]}}, nil
	case "unpin", "data":
		if len(rest) != 1 {
			return command{}, fmt.Errorf("%s requires <id>", name)
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil || id <= 0 {
			return command{}, fmt.Errorf("invalid pinned chart id %q", rest[0])
		}
		escaped := url.PathEscape(strconv.FormatInt(id, 10))
		if name == "unpin" {
			return command{method: http.MethodPost, path: "/v1/pinned-charts/" + escaped + "/unpin"}, nil
		}
		return command{method: http.MethodGet, path: "/v1/pinned-charts/" + escaped + "/data"}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q", name)
	}
}

func doRequest(ctx context.Context, client *http.Client, method, endpoint string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: promptchartctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                 GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                  GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  chart <prompt...>      POST /v1/charts")
	_, _ = fmt.Fprintln(w, "  pinned                 GET /v1/charts/pinned")
	_, _ = fmt.Fprintln(w, "  pins                   GET /v1/pinned-charts")
	_, _ = fmt.Fprintln(w, "  pin <prompt> <query>   POST /v1/pinned-charts")
	_, _ = fmt.Fprintln(w, "  check <prompt> <query> POST /v1/pinned-charts/check")
	_, _ = fmt.Fprintln(w, "  data <id>              GET /v1/pinned-charts/{id}/data")
	_, _ = fmt.Fprintln(w, "  unpin <id>             POST /v1/pinned-charts/{id}/unpin")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

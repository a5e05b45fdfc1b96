package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/rankd/internal/api"
	"github.com/kalambet/rankd/internal/engine"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestIndexItemPost(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /workspaces/w1/items": `{"id":"i-123","workspace":"w1","path":"a.py","content_hash":"abc"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/workspaces/w1/items", api.IndexItemRequest{
		Path: "a.py", Content: "jwt decode", Concept: "jwt validation",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var item map[string]string
	if err := decodeJSON(resp, &item); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if item["id"] != "i-123" {
		t.Errorf("id = %q, want i-123", item["id"])
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["path"] != "a.py" || body["concept"] != "jwt validation" {
		t.Errorf("body = %v", body)
	}
}

func TestSearchPostCarriesFlags(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /workspaces/w1/search": `{"query_id":"q-1","results":[]}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/workspaces/w1/search", api.SearchBody{
		Query:      "jwt validation",
		Candidates: []engine.Candidate{{Path: "a.py", Semantic: 0.8}},
		K:          5,
		Explain:    true,
		Baseline:   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result engine.SearchResponse
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.QueryID != "q-1" {
		t.Errorf("query id = %q, want q-1", result.QueryID)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["query"] != "jwt validation" || body["k"] != float64(5) {
		t.Errorf("body = %v", body)
	}
	if body["explain"] != true || body["baseline"] != true {
		t.Errorf("flags not carried: %v", body)
	}
}

func TestFeedbackCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"feedback"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestCompareQueryEncoding(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /stats/compare": `{"workspaces":[]}`,
	})

	q := url.Values{}
	q.Add("workspace", "w one")
	q.Add("workspace", "w&two")

	client := ts.client()
	resp, err := client.get(ctx, "/stats/compare?"+q.Encode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	reqPath := ts.requests[0].Path
	if strings.Contains(reqPath, "w&two") {
		t.Errorf("workspace not URL-encoded: %q", reqPath)
	}
	if !strings.Contains(reqPath, "workspace=w+one") || !strings.Contains(reqPath, "workspace=w%26two") {
		t.Errorf("unexpected encoded path: %q", reqPath)
	}
}

func TestReadJSONInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.json")
	if err := os.WriteFile(path, []byte(`[{"path":"a.py","semantic":0.8},{"path":"b.py","semantic":0.6}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	var candidates []engine.Candidate
	if err := readJSONInput(path, &candidates); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 2 || candidates[0].Path != "a.py" || candidates[1].Semantic != 0.6 {
		t.Errorf("candidates = %+v", candidates)
	}

	if err := readJSONInput(filepath.Join(t.TempDir(), "missing.json"), &candidates); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = "my-secret-token"

	resp, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if ts.requests[0].Auth != "Bearer my-secret-token" {
		t.Errorf("auth = %q, want 'Bearer my-secret-token'", ts.requests[0].Auth)
	}
}

func TestAPIClientNoTokenOmitsHeader(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = ""

	resp, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if ts.requests[0].Auth != "" {
		t.Errorf("auth = %q, want no header in open mode", ts.requests[0].Auth)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"authentication_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

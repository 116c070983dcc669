package platform

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendsEnvelopeAndHeaders(t *testing.T) {
	var gotAuth, gotOrigin, gotReferer, gotCT string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotOrigin = r.Header.Get("Origin")
		gotReferer = r.Header.Get("Referer")
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"data":{"instance":{"version":"3.20.1"}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/graphql/", "tok-1", "dash.example.com")
	var out struct {
		Instance struct {
			Version string `json:"version"`
		} `json:"instance"`
	}
	if err := c.Query(context.Background(), `query { instance { version } }`, map[string]any{"x": 1}, &out); err != nil {
		t.Fatalf("query: %v", err)
	}
	if out.Instance.Version != "3.20.1" {
		t.Fatalf("version = %q", out.Instance.Version)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotOrigin != "https://dash.example.com" || gotReferer != "https://dash.example.com" {
		t.Fatalf("Origin/Referer = %q/%q", gotOrigin, gotReferer)
	}
	if gotCT != "application/json" {
		t.Fatalf("Content-Type = %q", gotCT)
	}

	var env struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.Unmarshal(gotBody, &env); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if env.Query != `query { instance { version } }` {
		t.Fatalf("query document = %q", env.Query)
	}
	if env.Variables["x"] != float64(1) {
		t.Fatalf("variables = %v", env.Variables)
	}
}

func TestClientSurfacesGraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"not allowed"},{"message":"nope"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "dash.example.com")
	err := c.Query(context.Background(), `query { x }`, nil, nil)
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want RemoteError", err)
	}
	if len(re.Messages) != 2 || re.Messages[0] != "not allowed" {
		t.Fatalf("messages = %v", re.Messages)
	}
}

func TestClientSurfacesHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "dash.example.com")
	err := c.Query(context.Background(), `query { x }`, nil, nil)
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want RemoteError", err)
	}
	if re.Status != http.StatusForbidden {
		t.Fatalf("status = %d", re.Status)
	}
}

func TestQueryPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"webhooks":{"edges":[{"node":{"id":"wh-1"}},{"node":{"id":"wh-2"}}]}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "dash.example.com")
	var ids []string
	if err := c.QueryPath(context.Background(), `query { webhooks { edges { node { id } } } }`, nil, "webhooks.edges[].node.id", &ids); err != nil {
		t.Fatalf("query path: %v", err)
	}
	if len(ids) != 2 || ids[0] != "wh-1" || ids[1] != "wh-2" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestExtractMissingPath(t *testing.T) {
	var out string
	err := Extract(map[string]any{"a": "b"}, "missing.path", &out)
	if err == nil {
		t.Fatalf("extract of missing path succeeded")
	}
}

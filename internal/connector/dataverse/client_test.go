package dataverse_test

import (
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nucleus/sync-core/internal/archive"
	"github.com/nucleus/sync-core/internal/connector/dataverse"
	httpx "github.com/nucleus/sync-core/internal/connector/http"
	"github.com/nucleus/sync-core/internal/engine"
)

func fastTransport() *httpx.ClientConfig {
	return &httpx.ClientConfig{
		MaxRetries:  2,
		BackoffBase: time.Millisecond,
		RateLimit:   1000,
		RateBurst:   100,
	}
}

func TestClient_SendBatch(t *testing.T) {
	var gotAuth, gotContentType, gotBody string
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/api/data/v9.2/$batch" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	client := dataverse.NewClient(server.URL, dataverse.StaticToken("tok-xyz"), fastTransport())
	err := client.SendBatch(context.Background(), []engine.UpsertOperation{
		{Path: "new_customers(externalid='CUST001')", Body: map[string]any{"name": "A"}},
	})
	if err != nil {
		t.Fatalf("SendBatch error: %v", err)
	}

	if gotAuth != "Bearer tok-xyz" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if !strings.HasPrefix(gotContentType, "multipart/mixed;boundary=batch_") {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	boundary := strings.TrimPrefix(gotContentType, "multipart/mixed;boundary=")
	if !strings.Contains(gotBody, "--"+boundary+"\r\n") {
		t.Error("Posted body does not use the declared boundary")
	}
	if !strings.Contains(gotBody, "CUST001") {
		t.Error("Posted body missing the operation")
	}
}

func TestClient_SendBatch_TrimsTrailingSlashBaseURL(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/api/data/v9.2/$batch" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	client := dataverse.NewClient(server.URL+"/", dataverse.StaticToken("t"), fastTransport())
	err := client.SendBatch(context.Background(), []engine.UpsertOperation{
		{Path: "new_customers(externalid='X')", Body: map[string]any{}},
	})
	if err != nil {
		t.Fatalf("SendBatch error: %v", err)
	}

	if strings.Contains(gotBody, server.URL+"//") {
		t.Error("Part URLs contain a double slash")
	}
	if !strings.Contains(gotBody, "PATCH "+server.URL+"/api/data/v9.2/new_customers") {
		t.Error("Part URLs missing the expected absolute path")
	}
}

func TestClient_SendBatch_ArchiveFailureDoesNotFailSend(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	client := dataverse.NewClient(server.URL, dataverse.StaticToken("t"), fastTransport())
	// An empty bucket makes every archive write fail with a coded error.
	client.Archive = archive.NewStore(archive.NewLocalStore(t.TempDir()), "", "envelopes", "run-1")

	err := client.SendBatch(context.Background(), []engine.UpsertOperation{
		{Path: "new_customers(externalid='X')", Body: map[string]any{}},
	})
	if err != nil {
		t.Fatalf("SendBatch failed on archive error: %v", err)
	}
}

func TestClient_SendBatch_EmptyIsNoop(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		t.Error("No request expected for an empty batch")
	}))
	defer server.Close()

	client := dataverse.NewClient(server.URL, dataverse.StaticToken("t"), fastTransport())
	if err := client.SendBatch(context.Background(), nil); err != nil {
		t.Fatalf("SendBatch error: %v", err)
	}
}

func TestClient_SendBatch_RetriesThrottle(t *testing.T) {
	var calls int
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(nethttp.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	client := dataverse.NewClient(server.URL, dataverse.StaticToken("t"), fastTransport())
	err := client.SendBatch(context.Background(), []engine.UpsertOperation{
		{Path: "new_customers(externalid='X')", Body: map[string]any{}},
	})
	if err != nil {
		t.Fatalf("SendBatch error after throttle: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestClient_SendBatch_TerminalFailure(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.Error(w, "schema mismatch", nethttp.StatusBadRequest)
	}))
	defer server.Close()

	client := dataverse.NewClient(server.URL, dataverse.StaticToken("t"), fastTransport())
	err := client.SendBatch(context.Background(), []engine.UpsertOperation{
		{Path: "new_customers(externalid='X')", Body: map[string]any{}},
	})
	if err == nil {
		t.Fatal("Expected terminal error")
	}
	if !engine.IsCode(err, engine.CodeTransportFailed) {
		t.Errorf("Expected %s, got %v", engine.CodeTransportFailed, err)
	}
}

func TestClient_SendBatch_TokenFailure(t *testing.T) {
	client := dataverse.NewClient("https://org.example", failingTokens{}, fastTransport())
	err := client.SendBatch(context.Background(), []engine.UpsertOperation{
		{Path: "p", Body: map[string]any{}},
	})
	if err == nil || !strings.Contains(err.Error(), "acquire token") {
		t.Errorf("Expected token acquisition error, got %v", err)
	}
}

type failingTokens struct{}

func (failingTokens) Token(ctx context.Context) (string, error) {
	return "", io.ErrUnexpectedEOF
}

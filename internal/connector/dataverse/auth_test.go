package dataverse_test

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/nucleus/sync-core/internal/connector/dataverse"
)

func TestTokenSource_ClientCredentialsGrant(t *testing.T) {
	var grants int
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		grants++
		if err := r.ParseForm(); err != nil {
			t.Fatalf("Bad form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.Form.Get("client_id"); got != "app-id" {
			t.Errorf("client_id = %q", got)
		}
		if got := r.Form.Get("scope"); got != "https://org.crm.dynamics.com/.default" {
			t.Errorf("scope = %q", got)
		}
		json.NewEncoder(w).Encode(dataverse.TokenResponse{
			AccessToken: "issued-token",
			TokenType:   "Bearer",
			ExpiresIn:   3600,
		})
	}))
	defer server.Close()

	src := dataverse.NewTokenSource("tenant-1", "app-id", "s3cret", "https://org.crm.dynamics.com/")
	src.AuthorityURL = server.URL

	token, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if token != "issued-token" {
		t.Errorf("Token = %q", token)
	}

	// Second call is served from cache.
	if _, err := src.Token(context.Background()); err != nil {
		t.Fatalf("Cached token error: %v", err)
	}
	if grants != 1 {
		t.Errorf("Expected 1 grant request, got %d", grants)
	}
}

func TestTokenSource_FailureSurfacesBody(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.Error(w, `{"error":"invalid_client"}`, nethttp.StatusUnauthorized)
	}))
	defer server.Close()

	src := dataverse.NewTokenSource("tenant-1", "app-id", "wrong", "https://org.example")
	src.AuthorityURL = server.URL

	if _, err := src.Token(context.Background()); err == nil {
		t.Fatal("Expected error for rejected credentials")
	}
}

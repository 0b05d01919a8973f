package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lutong-bahay/api/internal/gateway"
	"github.com/shopspring/decimal"
)

func TestCreateSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/sources" {
			t.Errorf("path: got %s, want /v1/sources", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: got %s", ct)
		}

		var req struct {
			OrderNumber string `json:"order_number"`
			Amount      string `json:"amount"`
			Currency    string `json:"currency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.OrderNumber != "LB-00042" {
			t.Errorf("order number: got %q", req.OrderNumber)
		}
		if req.Amount != "305.00" {
			t.Errorf("amount: got %q, want 305.00", req.Amount)
		}
		if req.Currency != "PHP" {
			t.Errorf("currency: got %q, want PHP", req.Currency)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(gateway.Source{ //nolint:errcheck
			Reference:   "src_abc123",
			RedirectURL: srvRedirect,
			Status:      gateway.SourceStatusPending,
		})
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL)
	src, err := client.CreateSource(context.Background(), "LB-00042", decimal.RequireFromString("305.00"))
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	if src.Reference != "src_abc123" {
		t.Errorf("reference: got %q", src.Reference)
	}
	if src.RedirectURL != srvRedirect {
		t.Errorf("redirect URL: got %q", src.RedirectURL)
	}
	if src.Status != gateway.SourceStatusPending {
		t.Errorf("status: got %q", src.Status)
	}
}

const srvRedirect = "https://pay.example/checkout/src_abc123"

func TestCreateSource_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream busy", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL)
	if _, err := client.CreateSource(context.Background(), "LB-00001", decimal.RequireFromString("100.00")); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

func TestCreateSource_MissingReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(gateway.Source{Status: gateway.SourceStatusPending}) //nolint:errcheck
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL)
	if _, err := client.CreateSource(context.Background(), "LB-00001", decimal.RequireFromString("100.00")); err == nil {
		t.Fatal("expected error on empty reference")
	}
}

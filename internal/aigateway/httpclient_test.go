package aigateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/journeyforge/orchestrator/internal/errtax"
)

func TestGenerateStructuredClassifies5xxAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "")
	_, err := gw.GenerateStructured(context.Background(), "prompt", Document{})
	if err == nil {
		t.Fatalf("expected an error from a 500 response")
	}
	if !errtax.Retryable(err) {
		t.Errorf("a 500 response should be classified transient/retryable")
	}
}

func TestGenerateStructuredClassifies429AsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "")
	_, err := gw.GenerateStructured(context.Background(), "prompt", Document{})
	if err == nil {
		t.Fatalf("expected an error from a 429 response")
	}
	if !errtax.Retryable(err) {
		t.Errorf("a 429 response should be classified transient/retryable")
	}
}

func TestGenerateStructuredClassifies4xxAsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "")
	_, err := gw.GenerateStructured(context.Background(), "prompt", Document{})
	if err == nil {
		t.Fatalf("expected an error from a 400 response")
	}
	if errtax.Retryable(err) {
		t.Errorf("a 400 response should not be retryable")
	}
	if errtax.ClassOf(err) != errtax.ClassPermanent {
		t.Errorf("ClassOf(err) = %v, want ClassPermanent", errtax.ClassOf(err))
	}
}

func TestGenerateStructuredSucceedsAndDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Ada"}`))
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "secret-key")
	doc, err := gw.GenerateStructured(context.Background(), "prompt", Document{})
	if err != nil {
		t.Fatalf("GenerateStructured returned %v", err)
	}
	if doc["name"] != "Ada" {
		t.Errorf("doc[name] = %v, want Ada", doc["name"])
	}
}

package persona

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/companionlabs/backend/internal/model/persona"
)

func setupRouter() *chi.Mux {
	handler := New(persona.NewMemoryStore(persona.Seed()))
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func TestListPersonas(t *testing.T) {
	r := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/personas", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var personas []persona.Persona
	if err := json.NewDecoder(resp.Body).Decode(&personas); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(personas) == 0 {
		t.Fatal("expected seeded personas")
	}
}

func TestGetPersona(t *testing.T) {
	r := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/personas/albert-einstein", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/personas/nobody", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

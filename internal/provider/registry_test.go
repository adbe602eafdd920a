package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/crusont/crusont/internal/model"
)

func chatProvider(name string, models ...string) model.Provider {
	specs := make([]model.ModelSpec, 0, len(models))
	for _, m := range models {
		specs = append(specs, model.ModelSpec{Name: m, Endpoint: "/v1/chat/completions"})
	}
	return model.Provider{
		Name:     name,
		BaseURL:  "https://" + name + ".example.com",
		Models:   specs,
		IsActive: true,
	}
}

func TestRegistry_RegisterAndRemove(t *testing.T) {
	r := NewRegistry(0)

	r.Register(chatProvider("openai", "gpt-4o"))
	if _, err := r.Get("openai"); err != nil {
		t.Fatalf("Get after Register: %v", err)
	}

	r.Remove("openai")
	if _, err := r.Get("openai"); err == nil {
		t.Fatal("Get after Remove should fail")
	}
}

func TestRegistry_RegisterInactiveRemoves(t *testing.T) {
	r := NewRegistry(0)
	r.Register(chatProvider("openai", "gpt-4o"))

	p := chatProvider("openai", "gpt-4o")
	p.IsActive = false
	r.Register(p)

	if _, err := r.Get("openai"); err == nil {
		t.Fatal("inactive provider should be dropped from the registry")
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry(0)
	r.Register(chatProvider("openai", "gpt-4o"))
	r.Register(model.Provider{
		Name:     "voyage",
		BaseURL:  "https://voyage.example.com",
		Models:   []model.ModelSpec{{Name: "voyage-3", Endpoint: "/v1/embeddings"}},
		IsActive: true,
	})

	c, err := r.Resolve("gpt-4o", "/v1/chat/completions")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.Config().Name != "openai" {
		t.Errorf("resolved %q, want openai", c.Config().Name)
	}

	// Known model, wrong endpoint.
	if _, err := r.Resolve("voyage-3", "/v1/chat/completions"); !errors.Is(err, ErrEndpointMismatch) {
		t.Errorf("err = %v, want ErrEndpointMismatch", err)
	}

	// Unknown model.
	if _, err := r.Resolve("claude-sonnet", "/v1/chat/completions"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("err = %v, want ErrModelNotFound", err)
	}
}

func TestRegistry_ResolveDeterministic(t *testing.T) {
	r := NewRegistry(0)
	// Both serve the same model; name order picks "alpha" every time.
	r.Register(chatProvider("beta", "gpt-4o"))
	r.Register(chatProvider("alpha", "gpt-4o"))

	for i := 0; i < 20; i++ {
		c, err := r.Resolve("gpt-4o", "/v1/chat/completions")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if c.Config().Name != "alpha" {
			t.Fatalf("resolved %q, want alpha", c.Config().Name)
		}
	}
}

func TestRegistry_Models(t *testing.T) {
	r := NewRegistry(0)
	r.Register(chatProvider("openai", "gpt-4o", "gpt-4o-mini"))
	r.Register(chatProvider("mirror", "gpt-4o")) // duplicate model name

	models := r.Models()
	if len(models) != 2 {
		t.Fatalf("len(models) = %d, want 2 (deduplicated)", len(models))
	}
	if models[0].Name != "gpt-4o" || models[1].Name != "gpt-4o-mini" {
		t.Errorf("models not sorted by name: %+v", models)
	}
}

func TestClient_Forward(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"model":"gpt-4o"}` {
			t.Errorf("body = %s", body)
		}
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	c := NewClient(model.Provider{
		Name:    "test",
		BaseURL: upstream.URL + "/", // trailing slash must not double up
		APIKey:  "sk-test",
	}, 0)

	resp, err := c.Forward(context.Background(), "/v1/chat/completions", "application/json",
		strings.NewReader(`{"model":"gpt-4o"}`))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	defer resp.Body.Close()

	// Status and body pass through untouched, even errors.
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}
}

func TestClient_Check(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := NewClient(model.Provider{Name: "up", BaseURL: upstream.URL}, 0)
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check against live upstream: %v", err)
	}
	upstream.Close()

	if err := c.Check(context.Background()); err == nil {
		t.Error("Check against closed upstream should fail")
	}
}

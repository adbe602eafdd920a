package openapi

import (
	"encoding/json"
	"testing"

	"github.com/crusont/crusont/internal/model"
)

func TestGenerateSpec_Paths(t *testing.T) {
	models := []model.ModelSpec{
		{Name: "gpt-4o", Endpoint: "/v1/chat/completions"},
		{Name: "text-embedding-3-small", Endpoint: "/v1/embeddings"},
	}

	doc := GenerateSpec("http://localhost:8080", models)

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("OpenAPI version = %q, want 3.1.0", doc.OpenAPI)
	}

	for _, path := range []string{
		"/v1/keys",
		"/v1/keys/{keyID}",
		"/v1/models",
		"/v1/chat/completions",
		"/v1/embeddings",
		"/v1/moderations",
		"/v1/images/generations",
		"/v1/audio/speech",
		"/v1/text/translations",
	} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("missing path %s", path)
		}
	}

	keys := doc.Paths.Find("/v1/keys")
	if keys.Get == nil || keys.Post == nil {
		t.Error("/v1/keys should have GET and POST operations")
	}
	if doc.Paths.Find("/v1/keys/{keyID}").Delete == nil {
		t.Error("/v1/keys/{keyID} should have a DELETE operation")
	}
}

func TestGenerateSpec_ModelEnum(t *testing.T) {
	models := []model.ModelSpec{
		{Name: "gpt-4o", Endpoint: "/v1/chat/completions"},
		{Name: "gpt-4o-mini", Endpoint: "/v1/chat/completions"},
	}

	doc := GenerateSpec("http://localhost:8080", models)

	chat := doc.Paths.Find("/v1/chat/completions")
	if chat == nil || chat.Post == nil {
		t.Fatal("missing POST /v1/chat/completions")
	}

	body := chat.Post.RequestBody.Value.Content.Get("application/json")
	if body == nil {
		t.Fatal("missing JSON request body")
	}
	modelProp := body.Schema.Value.Properties["model"]
	if modelProp == nil {
		t.Fatal("missing model property")
	}
	if got := len(modelProp.Value.Enum); got != 2 {
		t.Errorf("model enum has %d entries, want 2", got)
	}
}

func TestGenerateSpec_Security(t *testing.T) {
	doc := GenerateSpec("http://localhost:8080", nil)

	scheme, ok := doc.Components.SecuritySchemes["bearerAuth"]
	if !ok {
		t.Fatal("missing bearerAuth security scheme")
	}
	if scheme.Value.Type != "http" || scheme.Value.Scheme != "bearer" {
		t.Errorf("bearerAuth = %s/%s, want http/bearer", scheme.Value.Type, scheme.Value.Scheme)
	}

	if _, err := json.Marshal(doc); err != nil {
		t.Fatalf("spec does not serialize: %v", err)
	}
}

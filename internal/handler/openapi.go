package handler

import (
	"net/http"

	"github.com/crusont/crusont/internal/openapi"
	"github.com/crusont/crusont/internal/provider"
)

// OpenAPIHandler serves the gateway's OpenAPI 3.1 specification. The
// spec is generated per request so the model enums track the provider
// registry.
type OpenAPIHandler struct {
	registry *provider.Registry
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(registry *provider.Registry) *OpenAPIHandler {
	return &OpenAPIHandler{registry: registry}
}

// ServeSpec returns the current OpenAPI document.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	baseURL := scheme + "://" + r.Host

	doc := openapi.GenerateSpec(baseURL, h.registry.Models())
	writeJSON(w, http.StatusOK, doc)
}

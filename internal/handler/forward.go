package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/crusont/crusont/internal/model"
	"github.com/crusont/crusont/internal/provider"
	"github.com/crusont/crusont/internal/server/middleware"
)

// ForwardHandler relays inference requests to upstream providers. Each
// request maps to exactly one provider by its model name; the upstream
// response is streamed back verbatim, error bodies included.
type ForwardHandler struct {
	registry    *provider.Registry
	maxBodySize int64
	logger      *slog.Logger
}

// NewForwardHandler creates a ForwardHandler. maxBodySize bounds the
// request payload in bytes.
func NewForwardHandler(registry *provider.Registry, maxBodySize int64, logger *slog.Logger) *ForwardHandler {
	return &ForwardHandler{
		registry:    registry,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

// Forward handles one inference endpoint. The request body must be a
// JSON object naming the target model.
// POST /v1/chat/completions, /v1/embeddings, /v1/images/generations,
// /v1/audio/speech
func (h *ForwardHandler) Forward(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Path

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read request body.")
		return
	}
	r.Body.Close()

	var probe struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.Model == "" {
		writeError(w, http.StatusBadRequest,
			"The request body must be a JSON object with a \"model\" field.")
		return
	}

	client, err := h.registry.Resolve(probe.Model, endpoint)
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrEndpointMismatch):
			writeError(w, http.StatusBadRequest,
				"The model `"+probe.Model+"` cannot be used with this endpoint ("+endpoint+").")
		default:
			writeError(w, http.StatusBadRequest,
				"The model `"+probe.Model+"` does not exist. See /v1/models for available models.")
		}
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	resp, err := client.Forward(r.Context(), endpoint, contentType, bytes.NewReader(body))
	if err != nil {
		h.logger.Error("upstream request failed",
			"provider", client.Config().Name,
			"model", probe.Model,
			"endpoint", endpoint,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, http.StatusBadGateway, "The upstream provider could not be reached.")
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Warn("streaming upstream response interrupted",
			"provider", client.Config().Name,
			"error", err,
		)
	}
}

// modelResource is one entry in the /v1/models listing.
type modelResource struct {
	ID       string `json:"id"`
	Object   string `json:"object"`
	Endpoint string `json:"endpoint"`
}

// Models lists every model served by an active provider.
// GET /v1/models
func (h *ForwardHandler) Models(w http.ResponseWriter, r *http.Request) {
	specs := h.registry.Models()

	items := make([]interface{}, 0, len(specs))
	for _, m := range specs {
		items = append(items, modelResource{
			ID:       m.Name,
			Object:   "model",
			Endpoint: m.Endpoint,
		})
	}

	writeJSON(w, http.StatusOK, model.NewListResponse(items))
}

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crusont/crusont/internal/model"
	"github.com/crusont/crusont/internal/server/middleware"
	"github.com/crusont/crusont/internal/service"
)

// KeysHandler serves the self-service API key endpoints under /v1/keys.
// Every request arrives already authenticated; the resolved identity
// scopes all operations to the caller's own keys.
type KeysHandler struct {
	keys   *service.KeyService
	logger *slog.Logger
}

// NewKeysHandler creates a KeysHandler.
func NewKeysHandler(keys *service.KeyService, logger *slog.Logger) *KeysHandler {
	return &KeysHandler{keys: keys, logger: logger}
}

// keyResource is the listing shape for one API key. The key field
// carries the masked form; full secrets appear only in creation
// responses.
type keyResource struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Key       string `json:"key"`
	CreatedAt int64  `json:"created_at"`
	LastUsed  *int64 `json:"last_used"`
}

// List returns all of the caller's keys, oldest first.
// GET /v1/keys
func (h *KeysHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	keys, err := h.keys.ListKeys(r.Context(), identity.User)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]interface{}, 0, len(keys))
	for i := range keys {
		k := &keys[i]
		items = append(items, keyResource{
			ID:        k.ID,
			Name:      k.Name,
			Key:       k.MaskedKey(),
			CreatedAt: k.CreatedAt,
			LastUsed:  k.LastUsed,
		})
	}

	writeJSON(w, http.StatusOK, model.NewListResponse(items))
}

type createKeyRequest struct {
	Name string `json:"name"`
}

// createKeyResponse includes the plaintext key, shown once only.
type createKeyResponse struct {
	Object    string `json:"object"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Key       string `json:"key"`
	CreatedAt int64  `json:"created_at"`
	LastUsed  *int64 `json:"last_used"`
	Message   string `json:"message"`
}

// Create issues a new key for the caller and returns the plaintext
// secret exactly once.
// POST /v1/keys
func (h *KeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req createKeyRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	created, err := h.keys.CreateKey(r.Context(), identity.User, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			writeError(w, http.StatusBadRequest, "Key name must be a non-empty string.")
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createKeyResponse{
		Object:    "api_key",
		ID:        created.Key.ID,
		Name:      created.Key.Name,
		Key:       created.Plaintext,
		CreatedAt: created.Key.CreatedAt,
		LastUsed:  nil,
		Message:   "API key created successfully. Store it securely as it will not be shown again.",
	})
}

// Delete permanently removes one of the caller's keys. Unknown ids and
// other users' ids are indistinguishable: both return 404.
// DELETE /v1/keys/{keyID}
func (h *KeysHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	keyID := chi.URLParam(r, "keyID")

	if err := h.keys.DeleteKey(r.Context(), identity.User, keyID); err != nil {
		if errors.Is(err, service.ErrForbidden) {
			// Logged with the real reason; the response stays a 404.
			h.logger.Warn("cross-owner key delete rejected",
				"user_id", identity.User.ID,
				"key_id", keyID,
				"request_id", middleware.GetRequestID(r.Context()),
			)
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.DeletedResponse{
		Object:  "deleted",
		ID:      keyID,
		Deleted: true,
	})
}

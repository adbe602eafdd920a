package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/crusont/crusont/internal/model"
	"github.com/crusont/crusont/internal/provider"
	"github.com/crusont/crusont/internal/service"
	"github.com/crusont/crusont/internal/store"
)

// forwardEndpoints are the gateway paths a provider model may be bound
// to.
var forwardEndpoints = map[string]bool{
	"/v1/chat/completions":   true,
	"/v1/embeddings":         true,
	"/v1/moderations":        true,
	"/v1/images/generations": true,
	"/v1/audio/speech":       true,
	"/v1/text/translations":  true,
}

// SystemHandler serves the admin API under /v1/system: admin sessions,
// user accounts, upstream providers, and first-key bootstrap.
type SystemHandler struct {
	store    *store.Store
	authSvc  *service.AuthService
	keys     *service.KeyService
	registry *provider.Registry
	logger   *slog.Logger
}

// NewSystemHandler creates a SystemHandler.
func NewSystemHandler(st *store.Store, authSvc *service.AuthService, keys *service.KeyService, registry *provider.Registry, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{
		store:    st,
		authSvc:  authSvc,
		keys:     keys,
		registry: registry,
		logger:   logger,
	}
}

// ---------------------------------------------------------------------------
// Admin sessions
// ---------------------------------------------------------------------------

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	AdminID   string `json:"admin_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

// Login authenticates an admin and returns a JWT session token.
// POST /v1/system/admin/session
func (h *SystemHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required.")
		return
	}

	token, admin, err := h.authSvc.LoginAdmin(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.authSvc.JWTExpiry().Seconds()),
		AdminID:   admin.ID,
		Email:     admin.Email,
		Name:      admin.Name,
	})
}

// Logout invalidates the current session. JWTs are stateless, so this
// is a no-op server-side; clients discard their token.
// DELETE /v1/system/admin/session
func (h *SystemHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session invalidated.",
	})
}

// ---------------------------------------------------------------------------
// Admin accounts
// ---------------------------------------------------------------------------

// ListAdmins returns all admin accounts.
// GET /v1/system/admins
func (h *SystemHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.store.ListAdmins(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to list admins.")
		return
	}

	items := make([]interface{}, 0, len(admins))
	for i := range admins {
		items = append(items, admins[i])
	}
	writeJSON(w, http.StatusOK, model.NewListResponse(items))
}

type createAdminRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// CreateAdmin creates a new admin account.
// POST /v1/system/admins
func (h *SystemHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "A valid email address is required.")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters.")
		return
	}

	hash, err := service.HashAdminPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password.")
		return
	}

	admin := &model.Admin{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		IsActive:     true,
	}
	if err := h.store.CreateAdmin(r.Context(), admin); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "An admin with this email already exists.")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "Failed to create admin.")
		return
	}

	writeJSON(w, http.StatusCreated, admin)
}

// ---------------------------------------------------------------------------
// User accounts
// ---------------------------------------------------------------------------

// ListUsers returns all user accounts.
// GET /v1/system/users
func (h *SystemHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to list users.")
		return
	}

	items := make([]interface{}, 0, len(users))
	for i := range users {
		items = append(items, users[i])
	}
	writeJSON(w, http.StatusOK, model.NewListResponse(items))
}

type createUserRequest struct {
	ID   string `json:"id"`
	Tier int    `json:"tier"`
}

// CreateUser registers a new user account. The ID may be supplied to
// bind the account to an external identity; otherwise one is
// generated.
// POST /v1/system/users
func (h *SystemHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user := &model.User{ID: req.ID, Tier: req.Tier}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "A user with this id already exists.")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "Failed to create user.")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// GetUser returns one user account.
// GET /v1/system/users/{userID}
func (h *SystemHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookupUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Banned *bool `json:"banned"`
	Tier   *int  `json:"tier"`
}

// UpdateUser changes a user's banned flag and/or tier.
// PUT /v1/system/users/{userID}
func (h *SystemHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookupUser(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if req.Banned != nil {
		if err := h.store.SetUserBanned(r.Context(), user.ID, *req.Banned); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Failed to update user.")
			return
		}
		user.Banned = *req.Banned
	}
	if req.Tier != nil {
		if err := h.store.SetUserTier(r.Context(), user.ID, *req.Tier); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Failed to update user.")
			return
		}
		user.Tier = *req.Tier
	}

	writeJSON(w, http.StatusOK, user)
}

// DeleteUser removes a user account and, via the store's cascade, all
// keys it owns.
// DELETE /v1/system/users/{userID}
func (h *SystemHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.store.DeleteUser(r.Context(), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found.")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "Failed to delete user.")
		return
	}

	writeJSON(w, http.StatusOK, model.DeletedResponse{Object: "deleted", ID: userID, Deleted: true})
}

type bootstrapKeyRequest struct {
	Name string `json:"name"`
}

// CreateUserKey issues a key on a user's behalf. This is how an
// account gets its first key, since /v1/keys itself requires one.
// POST /v1/system/users/{userID}/keys
func (h *SystemHandler) CreateUserKey(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookupUser(w, r)
	if !ok {
		return
	}

	var req bootstrapKeyRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		req.Name = "Default Key"
	}

	created, err := h.keys.CreateKey(r.Context(), user, req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createKeyResponse{
		Object:    "api_key",
		ID:        created.Key.ID,
		Name:      created.Key.Name,
		Key:       created.Plaintext,
		CreatedAt: created.Key.CreatedAt,
		Message:   "API key created successfully. Store it securely as it will not be shown again.",
	})
}

func (h *SystemHandler) lookupUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	userID := chi.URLParam(r, "userID")

	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found.")
		} else {
			writeError(w, http.StatusServiceUnavailable, "Failed to look up user.")
		}
		return nil, false
	}
	return user, true
}

// ---------------------------------------------------------------------------
// Providers
// ---------------------------------------------------------------------------

// ListProviders returns all provider definitions. Upstream credentials
// are never included.
// GET /v1/system/providers
func (h *SystemHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.store.ListProviders(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to list providers.")
		return
	}

	items := make([]interface{}, 0, len(providers))
	for i := range providers {
		items = append(items, providers[i])
	}
	writeJSON(w, http.StatusOK, model.NewListResponse(items))
}

type providerRequest struct {
	Name     string            `json:"name"`
	BaseURL  string            `json:"base_url"`
	APIKey   string            `json:"api_key"`
	Models   []model.ModelSpec `json:"models"`
	IsActive *bool             `json:"is_active"`
}

func (req *providerRequest) validate() string {
	if req.Name == "" {
		return "Provider name is required."
	}
	if !strings.HasPrefix(req.BaseURL, "http://") && !strings.HasPrefix(req.BaseURL, "https://") {
		return "base_url must be an http(s) URL."
	}
	for _, m := range req.Models {
		if m.Name == "" {
			return "Every model needs a name."
		}
		if !forwardEndpoints[m.Endpoint] {
			return "Unknown endpoint for model `" + m.Name + "`: " + m.Endpoint
		}
	}
	return ""
}

// CreateProvider registers a new upstream provider and makes it
// immediately routable.
// POST /v1/system/providers
func (h *SystemHandler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	p := &model.Provider{
		Name:     req.Name,
		BaseURL:  req.BaseURL,
		APIKey:   req.APIKey,
		Models:   req.Models,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	if err := h.store.CreateProvider(r.Context(), p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "A provider with this name already exists.")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "Failed to create provider.")
		return
	}

	h.registry.Register(*p)
	writeJSON(w, http.StatusCreated, p)
}

// GetProvider returns one provider definition.
// GET /v1/system/providers/{providerName}
func (h *SystemHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "providerName")

	p, err := h.store.GetProviderByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Provider not found: "+name)
			return
		}
		writeError(w, http.StatusServiceUnavailable, "Failed to get provider.")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProvider modifies an existing provider and refreshes the
// routing registry.
// PUT /v1/system/providers/{providerName}
func (h *SystemHandler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "providerName")

	existing, err := h.store.GetProviderByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Provider not found: "+name)
			return
		}
		writeError(w, http.StatusServiceUnavailable, "Failed to get provider.")
		return
	}

	var req providerRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.BaseURL != "" {
		existing.BaseURL = req.BaseURL
	}
	if req.APIKey != "" {
		existing.APIKey = req.APIKey
	}
	if req.Models != nil {
		existing.Models = req.Models
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	check := providerRequest{Name: existing.Name, BaseURL: existing.BaseURL, Models: existing.Models}
	if msg := check.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.UpdateProvider(r.Context(), existing); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to update provider.")
		return
	}

	// A rename leaves the old entry behind; drop it before re-adding.
	if name != existing.Name {
		h.registry.Remove(name)
	}
	h.registry.Register(*existing)

	writeJSON(w, http.StatusOK, existing)
}

// DeleteProvider removes a provider and stops routing to it.
// DELETE /v1/system/providers/{providerName}
func (h *SystemHandler) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "providerName")

	if err := h.store.DeleteProvider(r.Context(), name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Provider not found: "+name)
			return
		}
		writeError(w, http.StatusServiceUnavailable, "Failed to delete provider.")
		return
	}

	h.registry.Remove(name)
	writeJSON(w, http.StatusOK, model.DeletedResponse{Object: "deleted", ID: name, Deleted: true})
}

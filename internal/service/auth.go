package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/crusont/crusont/internal/model"
	"github.com/crusont/crusont/internal/store"
)

// storeTimeout bounds every store round-trip made on the request path.
// A slow backend fails the request with ErrUnavailable instead of
// hanging it.
const storeTimeout = 5 * time.Second

// Identity is the resolved owner of a presented API key.
type Identity struct {
	User *model.User
	Key  *model.APIKey
}

// AuthService authenticates bearer API keys and admin JWT sessions.
type AuthService struct {
	store     *store.Store
	jwtSecret []byte
	jwtExpiry time.Duration
	logger    *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(st *store.Store, jwtSecret string, jwtExpiry time.Duration, logger *slog.Logger) *AuthService {
	if jwtExpiry <= 0 {
		jwtExpiry = 24 * time.Hour
	}
	return &AuthService{
		store:     st,
		jwtSecret: []byte(jwtSecret),
		jwtExpiry: jwtExpiry,
		logger:    logger,
	}
}

// Authenticate resolves a presented secret to its owning user and key
// record. All miss cases collapse into ErrUnauthenticated so a caller
// cannot distinguish a never-issued secret from a deleted one. Banned
// owners resolve but are rejected with ErrForbidden.
//
// On success the key's last_used timestamp is advanced in the
// background; a failed touch is logged, never surfaced, and never
// fails the request.
func (s *AuthService) Authenticate(ctx context.Context, presented string) (*Identity, error) {
	if presented == "" {
		return nil, ErrUnauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	key, err := s.store.GetAPIKeyByHash(ctx, store.HashAPIKey(presented))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, unavailable("lookup api key", err)
	}

	user, err := s.store.GetUser(ctx, key.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Orphaned key; treat like any other bad credential.
			return nil, ErrUnauthenticated
		}
		return nil, unavailable("lookup key owner", err)
	}

	if user.Banned {
		return nil, ErrForbidden
	}

	s.touchLastUsed(key.ID)

	return &Identity{User: user, Key: key}, nil
}

// touchLastUsed schedules a best-effort monotonic last_used update.
func (s *AuthService) touchLastUsed(keyID string) {
	now := time.Now().Unix()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := s.store.TouchAPIKey(ctx, keyID, now); err != nil {
			s.logger.Warn("failed to update api key last_used", "key_id", keyID, "error", err)
		}
	}()
}

// ---------------------------------------------------------------------------
// Admin sessions
// ---------------------------------------------------------------------------

// AdminPrincipal identifies an authenticated admin session.
type AdminPrincipal struct {
	AdminID string
	Email   string
}

type adminClaims struct {
	AdminID string `json:"admin_id"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// LoginAdmin verifies an admin's credentials and returns a signed
// session token. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) LoginAdmin(ctx context.Context, email, password string) (string, *model.Admin, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrUnauthenticated
		}
		return "", nil, unavailable("lookup admin", err)
	}
	if !admin.IsActive {
		return "", nil, ErrUnauthenticated
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrUnauthenticated
	}

	token, err := s.issueJWT(admin)
	if err != nil {
		return "", nil, unavailable("issue session token", err)
	}

	if err := s.store.UpdateAdminLastLogin(ctx, admin.ID); err != nil {
		s.logger.Warn("failed to update admin last login", "admin_id", admin.ID, "error", err)
	}

	return token, admin, nil
}

// ValidateJWT verifies an admin session token.
func (s *AuthService) ValidateJWT(tokenStr string) (*AdminPrincipal, error) {
	claims := &adminClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthenticated
	}

	return &AdminPrincipal{AdminID: claims.AdminID, Email: claims.Email}, nil
}

// JWTExpiry returns the configured session lifetime.
func (s *AuthService) JWTExpiry() time.Duration {
	return s.jwtExpiry
}

func (s *AuthService) issueJWT(admin *model.Admin) (string, error) {
	now := time.Now()
	claims := adminClaims{
		AdminID: admin.ID,
		Email:   admin.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
			Issuer:    "crusont",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// HashAdminPassword returns the bcrypt hash for storing an admin
// password.
func HashAdminPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

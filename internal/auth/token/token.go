package token

import (
	"context"
	"net/http"
	"strings"
	"time"

	apperrors "slotbook/pkg/errors"
	httputil "slotbook/pkg/http"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
)

type contextKey string

const identityKey contextKey = "identity"

type Claims struct {
	UserID string `json:"uid"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Manager issues and verifies the bearer tokens that establish a caller's
// identity.
type Manager struct {
	secret []byte
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		log:    log,
		now:    time.Now,
	}
}

func (m *Manager) Issue(user *model.User) (string, error) {
	now := m.now()
	claims := Claims{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) Verify(tokenString string) (*model.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return &model.Identity{
		UserID: claims.UserID,
		Name:   claims.Name,
		Email:  claims.Email,
	}, nil
}

// RequireAuth wraps a route, rejecting requests without a valid bearer token
// and storing the verified identity in the request context.
func (m *Manager) RequireAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		header := r.Header.Get("Authorization")
		if header == "" {
			m.writeUnauthorized(w, "missing Authorization header")
			return
		}

		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			m.writeUnauthorized(w, "Authorization header must be a Bearer token")
			return
		}

		identity, err := m.Verify(tokenString)
		if err != nil {
			m.log.Info("Rejected invalid token", "error", err, "path", r.URL.Path)
			m.writeUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, *identity)
		next(w, r.WithContext(ctx), ps)
	}
}

func (m *Manager) writeUnauthorized(w http.ResponseWriter, message string) {
	if err := httputil.WriteError(w, apperrors.Unauthorized(message)); err != nil {
		m.log.Error("failed to write error response", "operation", "WriteError", "error", err)
	}
}

// IdentityFromContext returns the authenticated caller placed there by
// RequireAuth.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(model.Identity)
	return identity, ok
}

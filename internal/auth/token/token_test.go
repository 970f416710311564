package token

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: logger.TEXT, Service: "test"})
}

func testUser() *model.User {
	return &model.User{
		ID:    "u1",
		Name:  "Alice",
		Email: "alice@example.com",
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := NewManager("secret", time.Hour, testLogger())

	tokenString, err := m.Issue(testUser())
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	identity, err := m.Verify(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, "Alice", identity.Name)
	assert.Equal(t, "alice@example.com", identity.Email)
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	m := NewManager("secret", time.Hour, testLogger())
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tokenString, err := m.Issue(testUser())
	require.NoError(t, err)

	_, err = m.Verify(tokenString)
	assert.Error(t, err)
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	m := NewManager("secret", time.Hour, testLogger())
	other := NewManager("different", time.Hour, testLogger())

	tokenString, err := m.Issue(testUser())
	require.NoError(t, err)

	_, err = other.Verify(tokenString)
	assert.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	m := NewManager("secret", time.Hour, testLogger())

	var captured model.Identity
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		identity, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		captured = identity
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token", func(t *testing.T) {
		tokenString, err := m.Issue(testUser())
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		rec := httptest.NewRecorder()

		handler(rec, req, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", captured.UserID)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		rec := httptest.NewRecorder()

		handler(rec, req, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Basic abc123")
		rec := httptest.NewRecorder()

		handler(rec, req, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()

		handler(rec, req, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

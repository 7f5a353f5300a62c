package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockVerifier is a mock implementation of TokenVerifier for testing.
type mockVerifier struct {
	claims    *Claims
	err       error
	lastToken string
}

func (m *mockVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	m.lastToken = token
	if m.err != nil {
		return nil, m.err
	}
	return m.claims, nil
}

func (m *mockVerifier) Close() {}

func TestAuthService_ValidateRequest(t *testing.T) {
	claims := &Claims{}
	claims.Subject = uuid.NewString()

	tests := []struct {
		name      string
		header    string
		verifyErr error
		wantErr   error
		wantToken string
	}{
		{name: "missing header", wantErr: ErrMissingAuthorization},
		{name: "wrong scheme", header: "Basic abc", wantErr: ErrInvalidAuthFormat},
		{name: "empty token", header: "Bearer ", wantErr: ErrInvalidAuthFormat},
		{name: "verifier rejects", header: "Bearer bad", verifyErr: ErrInvalidToken, wantErr: ErrInvalidToken},
		{name: "valid", header: "Bearer good-token", wantToken: "good-token"},
		{name: "scheme case-insensitive", header: "bearer good-token", wantToken: "good-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &mockVerifier{claims: claims, err: tt.verifyErr}
			svc := NewAuthService(v, zap.NewNop())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			got, token, err := svc.ValidateRequest(req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, claims, got)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantToken, v.lastToken)
		})
	}
}

func TestMiddleware_RequireAuth(t *testing.T) {
	userID := uuid.New()
	claims := &Claims{Username: "alice"}
	claims.Subject = userID.String()

	mw := NewMiddleware(NewAuthService(&mockVerifier{claims: claims}, zap.NewNop()), zap.NewNop())

	var gotUser uuid.UUID
	var gotToken string
	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = GetUserUUIDFromContext(r.Context())
		gotToken, _ = GetToken(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, gotUser)
	assert.Equal(t, "abc", gotToken)
}

func TestMiddleware_RequireAuth_Unauthorized(t *testing.T) {
	mw := NewMiddleware(NewAuthService(&mockVerifier{err: ErrInvalidToken}, zap.NewNop()), zap.NewNop())

	called := false
	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer expired")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unauthorized", body["error"])
}

func TestRequireUserUUIDFromContext(t *testing.T) {
	_, err := RequireUserUUIDFromContext(context.Background())
	assert.Error(t, err)

	claims := &Claims{}
	claims.Subject = "not-a-uuid"
	_, err = RequireUserUUIDFromContext(WithClaims(context.Background(), claims, "t"))
	assert.Error(t, err)

	id := uuid.New()
	claims.Subject = id.String()
	got, err := RequireUserUUIDFromContext(WithClaims(context.Background(), claims, "t"))
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

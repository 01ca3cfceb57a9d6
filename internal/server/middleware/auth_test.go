package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClaims string

func (c testClaims) GetUserID() string { return string(c) }

// staticValidator accepts tokens from a fixed table.
type staticValidator map[string]string

func (v staticValidator) ValidateToken(token string) (UserIDGetter, error) {
	userID, ok := v[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return testClaims(userID), nil
}

func TestAuthMiddleware(t *testing.T) {
	validator := staticValidator{
		"good-token":  "user-42",
		"blank-token": "",
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{name: "valid token", header: "Bearer good-token", wantStatus: http.StatusOK, wantUser: "user-42"},
		{name: "lowercase scheme", header: "bearer good-token", wantStatus: http.StatusOK, wantUser: "user-42"},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good-token", wantStatus: http.StatusUnauthorized},
		{name: "extra parts", header: "Bearer good-token extra", wantStatus: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "token without user", header: "Bearer blank-token", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			handler := AuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				userID, err := GetUserID(r)
				require.NoError(t, err)
				gotUser = userID
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/pipelines", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, gotUser)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestGetUserID_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := GetUserID(req)
	assert.ErrorIs(t, err, ErrNoUser)

	req = req.WithContext(WithUserID(req.Context(), "u1"))
	userID, err := GetUserID(req)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

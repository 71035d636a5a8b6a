package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/notesauth/internal/auth"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
)

func TestFromError_Statuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{auth.ErrMissingEmail, http.StatusUnprocessableEntity, "MISSING_EMAIL"},
		{auth.ErrAuthMethodConflict, http.StatusConflict, "AUTH_METHOD_CONFLICT"},
		{auth.ErrAccountLinked, http.StatusConflict, "ACCOUNT_LINKED"},
		{auth.NewProviderError("github", "user", fmt.Errorf("timeout")), http.StatusBadGateway, "PROVIDER_ERROR"},
		{auth.ErrRoleNotFound, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{fmt.Errorf("%w: x", auth.ErrDuplicateIdentity), http.StatusConflict, "CONFLICT"},
		{fmt.Errorf("%w: dup", repository.ErrConflict), http.StatusConflict, "CONFLICT"},
		{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, c := range cases {
		got := FromError(c.err)
		assert.Equal(t, c.status, got.HTTPStatus, c.err.Error())
		assert.Equal(t, c.code, got.Code, c.err.Error())
	}
}

func TestWriteError_HidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteError(rec, req, fmt.Errorf("secret dsn postgres://u:p@h"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "postgres://")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
}

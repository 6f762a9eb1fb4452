//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontualhq/pontual/internal/testutil"
)

func TestLogin(t *testing.T) {
	client := newTestClient(t)
	client.LoginAsEmployee(t)

	assert.NotEmpty(t, client.Token)
	assert.NotEmpty(t, client.RefreshToken)

	resp, err := client.GET("/api/v1/me")
	require.NoError(t, err)

	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	require.Equal(t, http.StatusOK, resp.StatusCode)
	testutil.DecodeJSON(t, resp, &me)
	assert.Equal(t, "employee@example.com", me.Email)
	assert.Equal(t, "employee", me.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	client := newTestClientWithoutValidation()

	resp, err := client.POST("/api/v1/auth/login", map[string]string{
		"email":    "employee@example.com",
		"password": "not-the-password",
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshRotation(t *testing.T) {
	client := newTestClient(t)
	client.LoginAsEmployee(t)
	original := client.RefreshToken

	resp, err := client.POST("/api/v1/auth/refresh", map[string]string{
		"refresh_token": original,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	testutil.DecodeJSON(t, resp, &tokens)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEqual(t, original, tokens.RefreshToken)

	// The spent token cannot be used again.
	resp, err = newTestClientWithoutValidation().POST("/api/v1/auth/refresh", map[string]string{
		"refresh_token": original,
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutInvalidatesRefreshToken(t *testing.T) {
	client := newTestClient(t)
	client.LoginAsManager(t)

	resp, err := client.POST("/api/v1/auth/logout", map[string]string{
		"refresh_token": client.RefreshToken,
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = newTestClientWithoutValidation().POST("/api/v1/auth/refresh", map[string]string{
		"refresh_token": client.RefreshToken,
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	client := newTestClientWithoutValidation()

	resp, err := client.GET("/api/v1/me")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	client := newTestClientWithoutValidation()
	client.LoginAs(t, "employee@example.com", "employee-pass-123")

	resp, err := client.GET("/api/v1/employees")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

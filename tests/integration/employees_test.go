//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontualhq/pontual/internal/testutil"
)

func TestCreateEmployee(t *testing.T) {
	client := newTestClient(t)
	client.LoginAsAdmin(t)

	email := uniqueEmail("carla")
	resp, err := client.POST("/api/v1/employees", map[string]interface{}{
		"name":       "Carla Conceição",
		"email":      email,
		"password":   "initial-pass-123",
		"department": "Finance",
		"position":   "Analyst",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Role     string `json:"role"`
		IsActive bool   `json:"is_active"`
	}
	testutil.DecodeJSON(t, resp, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, email, created.Email)
	assert.Equal(t, "employee", created.Role, "role defaults to employee")
	assert.True(t, created.IsActive)

	// The new account can log in right away.
	fresh := newTestClientWithoutValidation()
	fresh.LoginAs(t, email, "initial-pass-123")
	assert.NotEmpty(t, fresh.Token)
}

func TestCreateEmployeeDuplicateEmail(t *testing.T) {
	client := newTestClientWithoutValidation()
	client.LoginAs(t, "admin@example.com", "admin-pass-123")

	resp, err := client.POST("/api/v1/employees", map[string]interface{}{
		"name":     "Shadow Account",
		"email":    "employee@example.com",
		"password": "whatever-123",
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSearchEmployeesIgnoresAccents(t *testing.T) {
	client := newTestClient(t)
	client.LoginAsAdmin(t)

	email := uniqueEmail("jose")
	resp, err := client.POST("/api/v1/employees", map[string]interface{}{
		"name":     "José Aparecido",
		"email":    email,
		"password": "initial-pass-123",
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = client.GET("/api/v1/employees?search=jose%20aparecido")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Employees []struct {
			Name string `json:"name"`
		} `json:"employees"`
		Total int `json:"total"`
	}
	testutil.DecodeJSON(t, resp, &list)
	require.NotZero(t, list.Total)
	assert.Equal(t, "José Aparecido", list.Employees[0].Name)
}

func TestDeactivateEmployeeBlocksLogin(t *testing.T) {
	client := newTestClient(t)
	client.LoginAsAdmin(t)

	email := uniqueEmail("temp")
	resp, err := client.POST("/api/v1/employees", map[string]interface{}{
		"name":     "Temp Worker",
		"email":    email,
		"password": "initial-pass-123",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID string `json:"id"`
	}
	testutil.DecodeJSON(t, resp, &created)

	resp, err = client.DELETE("/api/v1/employees/" + created.ID)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	loginResp, err := newTestClientWithoutValidation().POST("/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": "initial-pass-123",
	})
	require.NoError(t, err)
	defer loginResp.Body.Close()
	assert.Equal(t, http.StatusForbidden, loginResp.StatusCode)

	// Reactivation restores access.
	resp, err = client.POST("/api/v1/employees/"+created.ID+"/reactivate", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fresh := newTestClientWithoutValidation()
	fresh.LoginAs(t, email, "initial-pass-123")
	assert.NotEmpty(t, fresh.Token)
}

func TestUpdateEmployeeRole(t *testing.T) {
	client := newTestClient(t)
	client.LoginAsAdmin(t)

	email := uniqueEmail("promo")
	resp, err := client.POST("/api/v1/employees", map[string]interface{}{
		"name":     "Promotable Person",
		"email":    email,
		"password": "initial-pass-123",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID string `json:"id"`
	}
	testutil.DecodeJSON(t, resp, &created)

	resp, err = client.PATCH("/api/v1/employees/"+created.ID, map[string]interface{}{
		"role": "manager",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated struct {
		Role string `json:"role"`
	}
	testutil.DecodeJSON(t, resp, &updated)
	assert.Equal(t, "manager", updated.Role)
}

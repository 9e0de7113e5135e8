package metricsapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"testing"

	"doratrack/internal"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	operatorName     = "ops"
	operatorPassword = "pa55word"
)

var app *fiber.App

func TestMain(m *testing.M) {
	hash, err := bcrypt.GenerateFromPassword([]byte(operatorPassword), bcrypt.MinCost)
	if err != nil {
		log.Fatalf("hashing test password: %v", err)
	}

	os.Setenv("JWT_SECRET", "test-jwt-secret")
	os.Setenv("OPERATOR_USERNAME", operatorName)
	os.Setenv("OPERATOR_PASSWORD_HASH", string(hash))

	app = internal.SetupApp("test", os.TempDir(), "0.0.0-test")

	os.Exit(m.Run())
}

func decodeMessage(t *testing.T, resp *http.Response) string {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal(body, &parsed))
	return parsed["message"]
}

func TestCalculateRequiresToken(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "/dora/calculate", nil)
	require.NoError(t, err)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "no token has been provided", decodeMessage(t, resp))
}

func TestCalculateRejectsBadToken(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "/dora/calculate", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "token is invalid or expired", decodeMessage(t, resp))
}

func TestLoginThenCalculate(t *testing.T) {
	creds, err := json.Marshal(map[string]string{
		"username": operatorName,
		"password": operatorPassword,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, "/dora/operators/login", bytes.NewReader(creds))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &login))
	require.NotEmpty(t, login.Token)

	req, err = http.NewRequest(http.MethodPost, "/dora/calculate", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+login.Token)

	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	creds, err := json.Marshal(map[string]string{
		"username": operatorName,
		"password": "not-the-password",
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, "/dora/operators/login", bytes.NewReader(creds))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// Package testutils builds an HTTP app over an in-memory bank for handler
// tests.
package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirasaad/bankcore/internal/fixtures/mockgateway"
	"github.com/amirasaad/bankcore/pkg/bank"
	"github.com/amirasaad/bankcore/webapi"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

// Env is a running app and its collaborators.
type Env struct {
	App     *fiber.App
	Bank    *bank.Bank
	Gateway *mockgateway.MockGateway
}

// NewEnv starts a bank over a MockGateway and wraps it in the HTTP app.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := mockgateway.New()
	b, err := bank.New(bank.Config{Workers: 2}, bank.Deps{Gateway: gw, Logger: logger})
	require.NoError(t, err)
	require.NoError(t, b.Open(context.Background()))
	t.Cleanup(func() { _ = b.Shutdown(context.Background()) })
	return &Env{App: webapi.SetupApp(b, nil, logger), Bank: b, Gateway: gw}
}

// MakeRequest sends body (JSON when non-empty) through the app.
func MakeRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// Decode reads a JSON body into T and closes it.
func Decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

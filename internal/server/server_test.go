package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker map[string]error

func (s stubChecker) Ready(context.Context) map[string]error {
	failed := map[string]error{}
	for name, err := range s {
		if err != nil {
			failed[name] = err
		}
	}
	return failed
}

func TestProbes(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		checker    stubChecker
		wantStatus int
		wantChecks map[string]string
	}{
		{"liveness ignores deps", "/healthz", stubChecker{"postgres": errors.New("down")}, http.StatusOK, nil},
		{"ready", "/readyz", stubChecker{"postgres": nil, "redis": nil}, http.StatusOK, nil},
		{"no checks registered", "/readyz", stubChecker{}, http.StatusOK, nil},
		{
			"redis down", "/readyz",
			stubChecker{"postgres": nil, "redis": errors.New("connection refused")},
			http.StatusServiceUnavailable,
			map[string]string{"redis": "connection refused"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			registerProbes(app, tt.checker)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantChecks, body.Checks)
		})
	}
}

func TestIsProbe(t *testing.T) {
	assert.True(t, isProbe("/readyz"))
	assert.True(t, isProbe("/metrics"))
	assert.False(t, isProbe("/api/conversations"))
}

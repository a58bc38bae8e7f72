package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apache/bigtop-manager-sub000/internal/config"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
)

func send(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAdminAuth(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{AdminAPIKey: "s3cret"}}
	app := fiber.New()
	app.Use(AdminAuth(cfg))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	tests := []struct {
		name   string
		header string
		value  string
		query  string
		want   int
	}{
		{name: "admin header", header: "X-Admin-Token", value: "s3cret", want: fiber.StatusOK},
		{name: "bearer", header: "Authorization", value: "Bearer s3cret", want: fiber.StatusOK},
		{name: "query token", query: "?token=s3cret", want: fiber.StatusOK},
		{name: "wrong token", header: "X-Admin-Token", value: "nope", want: fiber.StatusUnauthorized},
		{name: "basic scheme", header: "Authorization", value: "Basic s3cret", want: fiber.StatusUnauthorized},
		{name: "missing", want: fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			assert.Equal(t, tt.want, send(t, app, req).StatusCode)
		})
	}
}

func TestAdminAuth_Disabled(t *testing.T) {
	app := fiber.New()
	app.Use(AdminAuth(&config.Config{}))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp := send(t, app, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID("X-Request-ID"))
	app.Use(AccessLog(logger.NewNop()))
	app.Get("/id", func(c *fiber.Ctx) error {
		fromCtx, _ := c.UserContext().Value(requestIDKey).(string)
		assert.Equal(t, GetRequestID(c), fromCtx)
		return c.SendString(GetRequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("X-Request-ID", "req-1")
	resp := send(t, app, req)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "req-1", string(body))
	assert.Equal(t, "req-1", resp.Header.Get("X-Request-ID"))

	resp = send(t, app, httptest.NewRequest(http.MethodGet, "/id", nil))
	minted := resp.Header.Get("X-Request-ID")
	assert.Len(t, minted, 36)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, minted, string(body))
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	app := fiber.New()
	app.Use(m.Handler())
	app.Get("/jobs/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	send(t, app, httptest.NewRequest(http.MethodGet, "/jobs/1", nil))
	send(t, app, httptest.NewRequest(http.MethodGet, "/jobs/2", nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/jobs/:id", "204")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.latency))
}

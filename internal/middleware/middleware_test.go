package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtPkg "DriverWatch/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const testSecret = "test-secret"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newApp(m Middleware, handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Use(m.NewLoggingMiddleware())
	handlers = append(handlers, func(c *fiber.Ctx) error {
		return c.SendString(m.GetRequestID(c))
	})
	app.Get("/", handlers...)
	return app
}

func TestRequestIDGenerated(t *testing.T) {
	m := New(quietLogger(), Config{})
	app := newApp(m)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.Len(t, string(body), 26)
	assert.Equal(t, string(body), resp.Header.Get(RequestIDKey))
}

func TestRequestIDPropagated(t *testing.T) {
	m := New(quietLogger(), Config{})
	app := newApp(m)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDKey, "dashcam-42")
	resp, err := app.Test(req)
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "dashcam-42", string(body))
}

func TestRateLimiter(t *testing.T) {
	m := New(quietLogger(), Config{RateLimitPerSec: 0.001, RateLimitBurst: 1})
	app := newApp(m, m.NewRateLimiter)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

type fakeRedis struct {
	allowed bool
	err     error
	calls   int
	limit   int
	window  time.Duration
}

func (f *fakeRedis) Allow(_ context.Context, _ string, limit int, window time.Duration) (bool, error) {
	f.calls++
	f.limit = limit
	f.window = window
	return f.allowed, f.err
}
func (f *fakeRedis) Ping(context.Context) error { return nil }
func (f *fakeRedis) Close() error               { return nil }

func TestRateLimiterUsesSharedCounter(t *testing.T) {
	shared := &fakeRedis{allowed: false}
	m := New(quietLogger(), Config{Redis: shared})
	app := newApp(m, m.NewRateLimiter)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, 1, shared.calls)
}

func TestRateLimiterSharedWindowFollowsRate(t *testing.T) {
	shared := &fakeRedis{allowed: true}
	m := New(quietLogger(), Config{RateLimitPerSec: 50, RateLimitBurst: 100, Redis: shared})
	app := newApp(m, m.NewRateLimiter)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 100, shared.limit)
	assert.Equal(t, 2*time.Second, shared.window)
}

func TestSharedWindow(t *testing.T) {
	tests := []struct {
		name   string
		rate   rate.Limit
		burst  int
		limit  int
		window time.Duration
	}{
		{"burst spans two seconds", 50, 100, 100, 2 * time.Second},
		{"burst equals rate", 10, 10, 10, time.Second},
		{"slow rate", 0.5, 5, 5, 10 * time.Second},
		{"burst below rate", 100, 10, 100, time.Second},
		{"fractional rate rounds up", 2.5, 1, 3, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, window := newRateLimiter(tt.rate, tt.burst, nil).sharedWindow()
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.window, window)
		})
	}
}

func TestRateLimiterFallsBackWhenSharedCounterFails(t *testing.T) {
	shared := &fakeRedis{err: errors.New("connection refused")}
	m := New(quietLogger(), Config{Redis: shared})
	app := newApp(m, m.NewRateLimiter)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTokenMiddlewareDisabled(t *testing.T) {
	m := New(quietLogger(), Config{})
	app := newApp(m, m.NewTokenMiddleware)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTokenMiddlewareEnabled(t *testing.T) {
	m := New(quietLogger(), Config{AuthEnabled: true, JWTSecret: testSecret})
	app := newApp(m, m.NewTokenMiddleware, func(c *fiber.Ctx) error {
		driver, err := jwtPkg.GetDriver(c)
		if err != nil {
			return err
		}
		c.Set("X-Driver", driver.DriverID)
		return c.Next()
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, _, err := jwtPkg.Sign(testSecret, map[string]interface{}{"driver_id": "drv-7"}, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "drv-7", resp.Header.Get("X-Driver"))

	wrong, _, err := jwtPkg.Sign("other-secret", map[string]interface{}{"driver_id": "drv-7"}, time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+wrong)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	noDriver, _, err := jwtPkg.Sign(testSecret, map[string]interface{}{"vehicle_id": "v1"}, time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+noDriver)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSanitizeRequestBody(t *testing.T) {
	got := sanitizeRequestBody(`{"image_base64":"aGVsbG8=","token":"abc","note":"ok"}`)
	assert.Contains(t, got, `"image_base64":"[OMITTED]"`)
	assert.Contains(t, got, `"token":"[SECRET]"`)
	assert.Contains(t, got, `"note":"ok"`)

	assert.Equal(t, "[non-JSON body]", sanitizeRequestBody("--boundary"))
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

// newRateLimitedServer mounts RateLimit behind a stand-in for the auth
// middleware that copies X-Tenant into the JWT tenant slot.
func newRateLimitedServer(cfg RateLimitConfig) *echo.Echo {
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if tenant := c.Request().Header.Get("X-Tenant"); tenant != "" {
				c.Set("jwt_tenant_id", tenant)
			}
			return next(c)
		}
	})
	e.Use(RateLimit(cfg))
	e.GET("/api/v1/doctors/:id/slots", okHandler)
	return e
}

func rateLimitedRequest(e *echo.Echo, ip, tenant string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors/1/slots", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	if tenant != "" {
		req.Header.Set("X-Tenant", tenant)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_ExceedsBurst(t *testing.T) {
	e := newRateLimitedServer(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2})

	for i := 0; i < 2; i++ {
		if rec := rateLimitedRequest(e, "10.0.0.1", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := rateLimitedRequest(e, "10.0.0.1", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After on a limited response")
	}
}

func TestRateLimit_PerKeyIsolation(t *testing.T) {
	e := newRateLimitedServer(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})

	if rec := rateLimitedRequest(e, "10.0.0.1", "clinic_a"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := rateLimitedRequest(e, "10.0.0.1", "clinic_b"); rec.Code != http.StatusOK {
		t.Fatalf("other tenant from the same IP should have its own bucket, got %d", rec.Code)
	}
	if rec := rateLimitedRequest(e, "10.0.0.2", "clinic_a"); rec.Code != http.StatusOK {
		t.Fatalf("other IP should have its own bucket, got %d", rec.Code)
	}
	if rec := rateLimitedRequest(e, "10.0.0.1", "clinic_a"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected the exhausted key to get 429, got %d", rec.Code)
	}
}

func TestRateLimit_Skipper(t *testing.T) {
	e := newRateLimitedServer(RateLimitConfig{
		RequestsPerSecond: 0.001,
		BurstSize:         1,
		Skipper:           func(echo.Context) bool { return true },
	})

	for i := 0; i < 3; i++ {
		if rec := rateLimitedRequest(e, "10.0.0.1", ""); rec.Code != http.StatusOK {
			t.Fatalf("skipped request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimitKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())

	if key, _ := rateLimitKey(c); key != "10.0.0.9" {
		t.Errorf("expected bare IP, got %s", key)
	}
	c.Set("jwt_tenant_id", "clinic_a")
	if key, _ := rateLimitKey(c); key != "clinic_a:10.0.0.9" {
		t.Errorf("expected tenant-prefixed key, got %s", key)
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 100 || cfg.BurstSize != 200 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

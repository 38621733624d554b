package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/firewatch-ph/firewatch/internal/handler"
)

func limitedRouter(t *testing.T, rps, burst int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.RateLimiter(rps, burst, zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func pingFrom(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":51234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterRejectsOverBurst(t *testing.T) {
	router := limitedRouter(t, 1, 1)

	if w := pingFrom(router, "10.0.0.1"); w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}

	w := pingFrom(router, "10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 response must carry Retry-After")
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["code"] != "rate_limited" {
		t.Errorf("code = %v, want rate_limited", resp["code"])
	}
}

func TestRateLimiterBucketsPerIP(t *testing.T) {
	router := limitedRouter(t, 1, 1)

	pingFrom(router, "10.0.0.1")
	if w := pingFrom(router, "10.0.0.1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("10.0.0.1 should be limited, got %d", w.Code)
	}

	// A different address has its own untouched bucket.
	if w := pingFrom(router, "10.0.0.2"); w.Code != http.StatusOK {
		t.Fatalf("10.0.0.2 must not share 10.0.0.1's bucket, got %d", w.Code)
	}
}

func TestRateLimiterBurstDepth(t *testing.T) {
	router := limitedRouter(t, 1, 3)

	for i := 0; i < 3; i++ {
		if w := pingFrom(router, "10.0.0.9"); w.Code != http.StatusOK {
			t.Fatalf("request %d within burst: expected 200, got %d", i+1, w.Code)
		}
	}
	if w := pingFrom(router, "10.0.0.9"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("request past burst: expected 429, got %d", w.Code)
	}
}

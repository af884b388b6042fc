package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAttachTraceIDs_MintsAndEchoesHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(AttachTraceIDs())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Without inbound headers both ids are minted.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(rec, req)
	if rec.Header().Get("X-Trace-Id") == "" || rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected minted trace/request ids, got %v", rec.Header())
	}

	// Inbound ids are echoed back unchanged.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Trace-Id", "trace-123")
	req.Header.Set("X-Request-Id", "req-456")
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Trace-Id"); got != "trace-123" {
		t.Fatalf("expected echoed trace id, got %q", got)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "req-456" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
}

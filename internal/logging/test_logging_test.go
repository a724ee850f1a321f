package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"summeriq/internal/tester"
)

func TestMiddlewareLogsOneLinePerRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Middleware(zap.New(core), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("tea"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/pot", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	tester.Eq(t, rec.Header().Get("X-Request-ID"), "req-1")
	tester.Eq(t, logs.Len(), 1)
	fields := logs.All()[0].ContextMap()
	tester.Eq(t, fields["status"], any(int64(http.StatusTeapot)))
	tester.Eq(t, fields["size"], any(int64(3)))
	tester.Eq(t, fields["path"], any("/pot"))
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	h := Middleware(nil, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	tester.True(t, rec.Header().Get("X-Request-ID") != "", "request id should be set")
}

func TestLBeforeInitIsNop(t *testing.T) {
	tester.True(t, L() != nil, "L must never be nil")
	tester.True(t, OrNop(nil) != nil, "OrNop must never be nil")
}

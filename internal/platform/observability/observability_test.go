package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/personaliza/api/internal/platform/requestctx"
)

func TestServiceLoggerPrefersRequestLogger(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.InfoLevel)
	reqCore, reqLogs := observer.New(zapcore.InfoLevel)

	logFn := ServiceLogger(zap.New(baseCore))

	logFn(context.Background(), "orders.created", map[string]any{"orderId": "ord_1"})
	if baseLogs.Len() != 1 {
		t.Fatalf("expected base logger to receive event, got %d", baseLogs.Len())
	}

	ctx := requestctx.WithLogger(context.Background(), zap.New(reqCore))
	logFn(ctx, "orders.payment_failed", map[string]any{"error": "boom"})
	if reqLogs.Len() != 1 {
		t.Fatalf("expected request logger to receive event, got %d", reqLogs.Len())
	}
	entry := reqLogs.All()[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for error field, got %s", entry.Level)
	}
	if entry.Message != "orders.payment_failed" {
		t.Fatalf("unexpected message %q", entry.Message)
	}
}

func TestParseCloudTraceContext(t *testing.T) {
	sc, ok := parseCloudTraceContext("105445aa7843bc8bf206b12000100000/1;o=1")
	if !ok {
		t.Fatalf("expected header to parse")
	}
	if sc.TraceID().String() != "105445aa7843bc8bf206b12000100000" {
		t.Fatalf("unexpected trace id %s", sc.TraceID())
	}
	if sc.SpanID().String() != "0000000000000001" {
		t.Fatalf("unexpected span id %s", sc.SpanID())
	}
	if !sc.IsSampled() {
		t.Fatalf("expected sampled flag")
	}

	for _, bad := range []string{"", "abc/1", "105445aa7843bc8bf206b12000100000/", "105445aa7843bc8bf206b12000100000/zz"} {
		if _, ok := parseCloudTraceContext(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestRecoveryMiddlewareWritesJSONError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}
}

func TestRequestLoggerMiddlewareRecordsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := InjectLoggerMiddleware(zap.New(core))(RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/v1/admin/products/p1", nil))

	if logs.Len() != 1 {
		t.Fatalf("expected one log line, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn for 4xx, got %s", entry.Level)
	}
	if status, ok := entry.ContextMap()["status"].(int64); !ok || status != http.StatusConflict {
		t.Fatalf("unexpected status field %v", entry.ContextMap()["status"])
	}
}

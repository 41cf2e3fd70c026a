package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/rarecare-backend/pkg/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Every request is logged with its method, route template, status and timing
func TestProperty_RequestLogging(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("all requests are logged with required fields", prop.ForAll(
		func(method string, path string, status int) bool {
			core, logs := observer.New(zapcore.InfoLevel)
			logger := zap.New(core)

			router := gin.New()
			router.Use(RequestIDMiddleware(), RequestLoggingMiddleware(logger))
			router.Handle(method, path, func(c *gin.Context) {
				c.Status(status)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(method, path, nil))

			entries := logs.All()
			if len(entries) != 1 {
				t.Logf("expected one log entry, got %d", len(entries))
				return false
			}

			entry := entries[0]
			switch {
			case status >= 500 && entry.Level != zapcore.ErrorLevel:
				return false
			case status >= 400 && status < 500 && entry.Level != zapcore.WarnLevel:
				return false
			case status < 400 && entry.Level != zapcore.InfoLevel:
				return false
			}

			fields := entry.ContextMap()
			for _, key := range []string{"duration", "timestamp", "request_id"} {
				if _, ok := fields[key]; !ok {
					t.Logf("%s field missing", key)
					return false
				}
			}
			return fields["method"] == method &&
				fields["path"] == path &&
				fields["status"] == int64(status)
		},
		gen.OneConstOf("GET", "POST", "PUT", "DELETE"),
		gen.OneConstOf("/api/v1/rarescope/questions", "/health", "/api/v1/patients"),
		gen.OneConstOf(http.StatusOK, http.StatusCreated, http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRequestLogging_UsesRouteTemplate(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	router := gin.New()
	router.Use(RequestLoggingMiddleware(zap.New(core)))
	router.GET("/patients/:patientToken/notes", func(c *gin.Context) {
		c.Set(PatientIDKey, "11111111-1111-1111-1111-111111111111")
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/patients/secret-token/notes", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/patients/:patientToken/notes", fields["path"])
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", fields["patient_id"])
}

// Errors attached to the context are logged with stack traces and request context
func TestProperty_ErrorLoggingDetail(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("errors are logged with stack traces and context", prop.ForAll(
		func(errorMessage string, path string) bool {
			core, logs := observer.New(zapcore.ErrorLevel)
			logger := zap.New(core)

			router := gin.New()
			router.Use(ErrorLoggingMiddleware(logger))
			router.GET(path, func(c *gin.Context) {
				_ = c.Error(errors.New(errorMessage))
				c.Status(http.StatusInternalServerError)
			})

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))

			entries := logs.FilterMessage("Request error occurred").All()
			if len(entries) != 1 {
				return false
			}

			fields := entries[0].ContextMap()
			_, hasStack := fields["stack_trace"]
			return fields["error"] == errorMessage &&
				fields["method"] == "GET" &&
				fields["path"] == path &&
				hasStack
		},
		gen.AlphaString(),
		gen.OneConstOf("/api/v1/test", "/api/v1/error", "/api/v1/fail"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	router.Use(RecoveryMiddleware(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, api.CodeInternal, body.Code)

	require.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestRequestIDAndTracing(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware(), TracingMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey)+" "+c.GetString(TraceIDKey))
	})

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

		requestID := w.Header().Get("X-Request-ID")
		traceID := w.Header().Get("X-Trace-ID")
		assert.Len(t, requestID, 36)
		assert.Len(t, traceID, 36)
		assert.NotEqual(t, requestID, traceID)
		assert.Equal(t, requestID+" "+traceID, w.Body.String())
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Request-ID", "req-1")
		req.Header.Set("X-Trace-ID", "trace-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "trace-1", w.Header().Get("X-Trace-ID"))
	})
}

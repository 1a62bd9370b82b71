package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARNING", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Component: "screener", JSONFormat: true}, &buf)

	l.Debug().Msg("hidden")
	l.Info().Str("symbol", "AAPL").Msg("visible")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "screener" || entry["symbol"] != "AAPL" || entry["message"] != "visible" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "debug", JSONFormat: true}, &buf)
	ctx := NewContext(context.Background(), AnalysisContext(l, "NVDA"))

	ctxLogger := FromContext(ctx)
	ctxLogger.Info().Msg("from context")
	if !bytes.Contains(buf.Bytes(), []byte(`"symbol":"NVDA"`)) {
		t.Errorf("Expected symbol field from context logger, got %s", buf.String())
	}

	// no logger in context falls back to the default
	SetDefault(zerolog.Nop())
	if got := FromContext(context.Background()); got.GetLevel() != zerolog.Disabled {
		t.Errorf("Expected the default Nop logger, got level %v", got.GetLevel())
	}
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", JSONFormat: true}, &buf)

	var seenTrace string
	r := gin.New()
	r.Use(GinMiddleware(l))
	r.GET("/ping", func(c *gin.Context) {
		seenTrace = TraceID(c.Request.Context())
		c.Status(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(TraceHeader, "trace-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if seenTrace != "trace-123" {
		t.Errorf("Expected handler to see trace-123, got %q", seenTrace)
	}
	if w.Header().Get(TraceHeader) != "trace-123" {
		t.Errorf("Expected trace header echoed, got %q", w.Header().Get(TraceHeader))
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Expected one log line, got %q", buf.String())
	}
	if entry["level"] != "warn" || entry["status_code"] != float64(http.StatusTeapot) {
		t.Errorf("Unexpected request log: %v", entry)
	}
}

func TestGenerateTraceID(t *testing.T) {
	a, b := GenerateTraceID(), GenerateTraceID()
	if a == "" || a == b {
		t.Errorf("Expected distinct trace IDs, got %q and %q", a, b)
	}
}

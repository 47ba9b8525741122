package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	return out
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf).WithField("service", "hsearch")

	logger.Debug("hidden")
	logger.Info("search started", map[string]interface{}{"jobs": 3})
	logger.WithError(errors.New("boom")).Error("search failed")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "search started", lines[0]["message"])
	assert.Equal(t, float64(3), lines[0]["jobs"])
	assert.Equal(t, "hsearch", lines[0]["service"])
	assert.Contains(t, lines[0]["caller"], "logging/logger_test.go")
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(DebugLevel, &buf)
	_ = parent.WithField("child", true)
	parent.Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["child"]
	assert.False(t, ok)
}

func TestNewLoggerTextFormat(t *testing.T) {
	logger, err := NewLogger(&Config{Level: "debug", Format: "text", Output: "stdout"})
	require.NoError(t, err)
	var buf bytes.Buffer
	logger.output = &buf

	logger.Debug("hello", map[string]interface{}{"b": 2, "a": 1})
	line := buf.String()
	assert.Contains(t, line, "DEBUG hello")
	assert.Less(t, strings.Index(line, " a=1"), strings.Index(line, " b=2"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"WARN", WarnLevel, false},
		{" error ", ErrorLevel, false},
		{"verbose", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLoggerRejectsBadConfig(t *testing.T) {
	_, err := NewLogger(&Config{Level: "loud"})
	assert.ErrorContains(t, err, "unknown log level")

	_, err = NewLogger(&Config{Format: "xml"})
	assert.ErrorContains(t, err, "unknown log format")

	logger, err := NewLogger(&Config{Output: "discard"})
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, logger.Level())
}

func TestFatalExits(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)
	code := -1
	logger.exit = func(c int) { code = c }

	logger.WithField("search_id", "x").Fatal("cannot continue")
	assert.Equal(t, 1, code)
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "FATAL", lines[0]["level"])
	assert.Equal(t, "x", lines[0]["search_id"])
}

func TestZapLoggerForwardsFields(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(DebugLevel, &buf)).Named("search").With(zap.Int("job_id", 2))

	zl.Info("new best",
		zap.Float64("score", 4.25),
		zap.Ints("budgets", []int{4, 3, 3}),
		zap.Error(errors.New("scorer failed")),
		zap.Duration("elapsed", time.Second),
		zap.Bool("cached", true),
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	l := lines[0]
	assert.Equal(t, "INFO", l["level"])
	assert.Equal(t, "search", l["logger"])
	assert.Equal(t, float64(2), l["job_id"])
	assert.Equal(t, 4.25, l["score"])
	assert.Equal(t, []interface{}{float64(4), float64(3), float64(3)}, l["budgets"])
	assert.Equal(t, "scorer failed", l["error"])
	assert.Equal(t, true, l["cached"])
	assert.Contains(t, l["caller"], "logging/logger_test.go")
}

func TestZapLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(WarnLevel, &buf))
	zl.Debug("dropped")
	zl.Info("dropped")
	zl.Warn("kept")
	assert.Len(t, decodeLines(t, &buf), 1)
}

func TestLoggerConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)
	zl := NewZapLogger(logger)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				logger.WithField("worker", i).Info("tick")
				zl.Info("tock", zap.Int("worker", i))
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, decodeLines(t, &buf), 8*20*2)
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)

	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotNil(t, FromContext(r.Context()).Logger)
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/searches/x", nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "Request completed", lines[0]["message"])
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, float64(http.StatusNotFound), lines[0]["status"])
	assert.Equal(t, "/api/v1/searches/x", lines[0]["path"])
	assert.Equal(t, "Not Found", lines[0]["error"])
}

func TestMiddlewareRoutePatternAndQuietPaths(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)

	r := chi.NewRouter()
	r.Use(Middleware(logger))
	r.Get("/api/v1/searches/{id}", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/searches/abc", nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1, "health checks log at debug")
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "/api/v1/searches/{id}", lines[0]["route"])
	assert.Equal(t, "/api/v1/searches/abc", lines[0]["path"])
}

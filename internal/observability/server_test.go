package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/valkyrie/internal/config"
	"github.com/rafaeljc/valkyrie/internal/observability"
)

func newTestServer(checkers ...observability.Checker) *observability.Server {
	cfg := &config.ObservabilityConfig{
		Port:          "0",
		Timeout:       200 * time.Millisecond,
		LivenessPath:  "/healthz",
		ReadinessPath: "/readyz",
		MetricsPath:   "/metrics",
	}
	return observability.NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg, checkers...)
}

func healthy(name string) observability.Checker {
	return observability.CheckerFunc{ComponentName: name, Fn: func(context.Context) error { return nil }}
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	t.Run("Should answer liveness unconditionally", func(t *testing.T) {
		srv := newTestServer(observability.CheckerFunc{ComponentName: "db", Fn: func(context.Context) error {
			return errors.New("down")
		}})

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	t.Run("Should report ready when every checker passes", func(t *testing.T) {
		srv := newTestServer(healthy("postgres"), healthy("redis"))

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Components map[string]struct {
				Status string `json:"status"`
			} `json:"components"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "up", body.Components["postgres"].Status)
		assert.Equal(t, "up", body.Components["redis"].Status)
	})

	t.Run("Should report 503 when a checker exceeds the timeout", func(t *testing.T) {
		slow := observability.CheckerFunc{ComponentName: "redis", Fn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}}
		srv := newTestServer(healthy("postgres"), slow)

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "deadline exceeded")
	})

	t.Run("Should report 503 while draining", func(t *testing.T) {
		srv := newTestServer(healthy("postgres"))
		srv.SetReady(false)

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "draining")
	})

	t.Run("Should expose prometheus metrics", func(t *testing.T) {
		observability.EngineRuleOutcomes.WithLabelValues("fired").Add(0)
		srv := newTestServer()

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "valkyrie_engine_rule_outcomes_total")
	})
}

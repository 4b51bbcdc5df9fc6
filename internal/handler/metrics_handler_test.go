package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func readyRouter(checks ...ReadyCheck) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewMetricsHandler(nil, checks...)
	r.GET("/ready", h.Ready)
	return r
}

func TestReadyAllProbesPass(t *testing.T) {
	router := readyRouter(
		ReadyCheck{Name: "postgres", Probe: func(context.Context) error { return nil }},
		ReadyCheck{Name: "redis", Probe: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	checks := body["checks"].(map[string]any)
	require.Equal(t, "ok", checks["postgres"])
	require.Equal(t, "ok", checks["redis"])
}

func TestReadyFailingProbeDegrades(t *testing.T) {
	router := readyRouter(
		ReadyCheck{Name: "postgres", Probe: func(context.Context) error { return nil }},
		ReadyCheck{Name: "redis", Probe: func(context.Context) error { return errors.New("connection refused") }},
	)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]any)
	require.Equal(t, "ok", checks["postgres"])
	require.Equal(t, "connection refused", checks["redis"])
}

package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func performHealth(t *testing.T, c *Checker) (*httptest.ResponseRecorder, HealthStatus) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, c.Health(e.NewContext(req, rec)))

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return rec, status
}

func TestHealthWithoutKafkaConfigured(t *testing.T) {
	checker := NewChecker(nil, "test")

	_, status := performHealth(t, checker)
	assert.NotContains(t, status.Checks, "kafka")
}

func TestHealthReportsKafkaState(t *testing.T) {
	t.Run("ConsumerConnected", func(t *testing.T) {
		checker := NewChecker(nil, "test")
		checker.SetKafkaCheck(func() bool { return true })

		_, status := performHealth(t, checker)
		require.Contains(t, status.Checks, "kafka")
		assert.Equal(t, "healthy", status.Checks["kafka"].Status)
	})

	t.Run("ConsumerDown", func(t *testing.T) {
		checker := NewChecker(nil, "test")
		checker.SetKafkaCheck(func() bool { return false })

		rec, status := performHealth(t, checker)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Contains(t, status.Checks, "kafka")
		assert.Equal(t, "unhealthy", status.Checks["kafka"].Status)
	})
}

func TestReadyFlipsWithReadiness(t *testing.T) {
	checker := NewChecker(nil, "test")
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, checker.Ready(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	checker.SetReady(true)
	rec = httptest.NewRecorder()
	require.NoError(t, checker.Ready(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brocaar/chirpstack-fuota-node/internal/config"
	"github.com/brocaar/chirpstack-fuota-node/internal/storage"
)

func TestServeMux(t *testing.T) {
	assert := require.New(t)
	assert.NoError(storage.Setup(config.Config{}))

	var c config.Config
	c.Monitoring.PrometheusEndpoint = true
	c.Monitoring.HealthcheckEndpoint = true
	mux := newServeMux(c)

	t.Run("metrics", func(t *testing.T) {
		assert := require.New(t)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(http.StatusOK, rec.Code)
		assert.Contains(rec.Body.String(), "go_goroutines")
	})

	t.Run("health without redis", func(t *testing.T) {
		assert := require.New(t)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(http.StatusOK, rec.Code)
	})

	t.Run("disabled endpoints", func(t *testing.T) {
		assert := require.New(t)
		rec := httptest.NewRecorder()
		newServeMux(config.Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(http.StatusNotFound, rec.Code)
	})
}

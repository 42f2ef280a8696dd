package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusProvider_ExposesInstruments(t *testing.T) {
	mp, err := NewMetricProvider(context.Background(),
		WithServiceName("swap-quoter-test"),
		WithPrometheus(),
	)
	require.NoError(t, err)
	defer mp.Shutdown(context.Background())

	counter, err := mp.Meter("metrics_test").Int64Counter("quoter.test.rounds")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	srv := httptest.NewServer(PrometheusHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Contains(t, string(body), "quoter_test_rounds")
}

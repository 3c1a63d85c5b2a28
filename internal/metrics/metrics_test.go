package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersRegistered(t *testing.T) {
	before := testutil.ToFloat64(SkippedTotal.WithLabelValues("ethertype"))
	SkippedTotal.WithLabelValues("ethertype").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SkippedTotal.WithLabelValues("ethertype")))

	PayloadBytesTotal.Add(10)
	assert.GreaterOrEqual(t, testutil.ToFloat64(PayloadBytesTotal), float64(10))
}

func TestServerServesMetrics(t *testing.T) {
	s := NewServer("127.0.0.1:0", "/metrics")
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	RecordsTotal.WithLabelValues("packet").Inc()

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "erfreader_records_total"))
}

func TestServerStopWithoutStart(t *testing.T) {
	assert.NoError(t, NewServer(":0", "").Stop(context.Background()))
}

func TestServerListenError(t *testing.T) {
	s := NewServer("256.0.0.1:bad", "/metrics")
	assert.Error(t, s.Start(context.Background()))
}

package httpshim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/httpshim"
	"github.com/vexfs/vexfs/pkg/vector"
)

func TestMetricNameRoundTrips(t *testing.T) {
	for _, m := range []vector.Metric{vector.MetricL2, vector.MetricCosine, vector.MetricInnerProduct} {
		parsed, err := httpshim.ParseMetric(httpshim.MetricName(m))
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
}

func TestParseMetricRejectsUnknown(t *testing.T) {
	_, err := httpshim.ParseMetric("euclidean-ish")
	assert.Error(t, err)
}

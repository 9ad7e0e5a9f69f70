package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vexfs/vexfs/pkg/metrics"
)

func TestInitRegistryEnablesSharedRegistry(t *testing.T) {
	// IsEnabled reflects whatever earlier test files in this binary may
	// have done to the package-level registry; this test only checks
	// that InitRegistry flips it on and returns a non-nil registry.
	reg := metrics.InitRegistry()
	assert.NotNil(t, reg)
	assert.True(t, metrics.IsEnabled())
	assert.Same(t, reg, metrics.GetRegistry())
}

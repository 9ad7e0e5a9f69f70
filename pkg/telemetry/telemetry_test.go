package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/telemetry"
)

func TestInitDisabledUsesNoopTracer(t *testing.T) {
	shutdown, err := telemetry.Init(context.Background(), telemetry.Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, telemetry.IsEnabled())
	require.NoError(t, shutdown(context.Background()))
}

func TestStartSpanReturnsUsableContext(t *testing.T) {
	_, err := telemetry.Init(context.Background(), telemetry.Config{Enabled: false})
	require.NoError(t, err)
	ctx, span := telemetry.StartSpan(context.Background(), "test-op")
	defer span.End()
	telemetry.SetAttributes(ctx)
	telemetry.AddEvent(ctx, "checkpoint")
	assert.Equal(t, "", telemetry.TraceID(ctx))
}

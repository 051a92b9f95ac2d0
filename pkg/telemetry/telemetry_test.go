package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledReturnsNoopProviders(t *testing.T) {
	tel, shutdown, err := New(Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tel)
	assert.Nil(t, tel.TracerProvider)
	assert.Nil(t, tel.MeterProvider)

	// The no-op tracer/meter must still be usable without panicking.
	_, span := tel.Tracer.Start(context.Background(), "noop-span")
	span.End()

	require.NoError(t, shutdown(context.Background()))
}

func TestNew_EnabledBuildsRealProvidersScopedToTheLibrary(t *testing.T) {
	// Port 0 asks the OS for any free port, avoiding collisions between
	// test runs or with anything else already listening.
	tel, shutdown, err := New(Config{Enabled: true, ServiceName: "test-embedder", PrometheusPort: 0})
	require.NoError(t, err)
	require.NotNil(t, tel.TracerProvider)
	require.NotNil(t, tel.MeterProvider)

	ctx, span := tel.Tracer.Start(context.Background(), "kernel.page_fetch")
	span.End()
	_ = ctx

	counter, err := tel.Meter.Int64Counter("kernel.test_counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, shutdown(context.Background()))
}

func TestNew_DefaultsServiceNameWhenUnset(t *testing.T) {
	tel, shutdown, err := New(Config{Enabled: true, PrometheusPort: 0})
	require.NoError(t, err)
	require.NotNil(t, tel.TracerProvider)
	require.NoError(t, shutdown(context.Background()))
}

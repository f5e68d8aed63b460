package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetupOTelSDK_NoEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := SetupOTelSDK(context.Background(), "runop", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestSetupOTelSDK_WithEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()
	defer otel.SetTracerProvider(before)

	shutdown, err := SetupOTelSDK(context.Background(), "runop", "http://127.0.0.1:4318/v1/traces")
	require.NoError(t, err)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)

	// nothing was exported, so shutdown does not reach the collector
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewResource(t *testing.T) {
	res := newResource("runop")
	found := false
	for _, kv := range res.Attributes() {
		if string(kv.Key) == "service.name" {
			found = true
			assert.Equal(t, "runop", kv.Value.AsString())
		}
	}
	assert.True(t, found)
}

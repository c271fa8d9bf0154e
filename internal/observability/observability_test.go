package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestRecordToggle(t *testing.T) {
	before := testutil.ToFloat64(EngagementToggles.WithLabelValues("like", "added"))
	RecordToggle("like", true)
	assert.Equal(t, before+1, testutil.ToFloat64(EngagementToggles.WithLabelValues("like", "added")))

	before = testutil.ToFloat64(EngagementToggles.WithLabelValues("favorite", "removed"))
	RecordToggle("favorite", false)
	assert.Equal(t, before+1, testutil.ToFloat64(EngagementToggles.WithLabelValues("favorite", "removed")))
}

func TestRecordUploadAndMessage(t *testing.T) {
	before := testutil.ToFloat64(MediaUploads.WithLabelValues("listings", "image", "error"))
	RecordUpload("listings", "image", errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(MediaUploads.WithLabelValues("listings", "image", "error")))

	before = testutil.ToFloat64(MessagesSent.WithLabelValues("true"))
	RecordMessageSent(true)
	assert.Equal(t, before+1, testutil.ToFloat64(MessagesSent.WithLabelValues("true")))
}

func TestRepoLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	prev := GlobalLogger
	SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { GlobalLogger = prev })

	NewRepoLogger("listings").LogError(context.Background(), errors.New("disk full"), "create")
	require.Contains(t, buf.String(), `"table":"listings"`)
	require.Contains(t, buf.String(), "disk full")

	buf.Reset()
	NewRepoLogger("listings").LogError(context.Background(), nil, "create")
	assert.Empty(t, buf.String())
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "homehive-test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	ctx, span := StartSpan(context.Background(), "catalog", "create_listing")
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("ignored by noop span"))
}

func TestInitTracing_RejectsBadExporter(t *testing.T) {
	_, err := InitTracing(TracingConfig{ServiceName: "homehive-test", Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, "zipkin")

	_, err = InitTracing(TracingConfig{ServiceName: "homehive-test", Enabled: true, Exporter: "otlp"})
	assert.ErrorContains(t, err, "OTLP_ENDPOINT")
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
}

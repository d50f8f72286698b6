package observability

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warn "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestInstrumentsFallbacks(t *testing.T) {
	var instruments *Instruments
	assert.NotNil(t, instruments.Tracer("dispatch"))
	assert.NotNil(t, instruments.Meter("dispatch"))
}

func TestResourceAttributes_CarryDispatchIdentity(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("SERVICE_VERSION", "")

	attrs := attribute.NewSet(resourceAttributes("dispatch-api",
		WithChangeFeed("amqp"),
		WithTaskQueue(""),
	)...)

	name, _ := attrs.Value("service.name")
	assert.Equal(t, "dispatch-api", name.AsString())
	env, _ := attrs.Value("deployment.environment")
	assert.Equal(t, "staging", env.AsString())
	feed, ok := attrs.Value("dispatch.change_feed")
	assert.True(t, ok)
	assert.Equal(t, "amqp", feed.AsString())
	assert.False(t, attrs.HasValue("dispatch.task_queue"))
	assert.False(t, attrs.HasValue("service.version"))
}

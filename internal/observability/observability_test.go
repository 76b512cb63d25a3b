package observability

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(violations.WithLabelValues("test"))
	RecordViolation("test")
	RecordMessage(DirectionIn, "signal")
	AddPendingCalls(1)
	AddPendingCalls(-1)

	assert.Equal(t, before+1, testutil.ToFloat64(violations.WithLabelValues("test")))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw    string
		want   zerolog.Level
		wantOK bool
	}{
		{"", zerolog.InfoLevel, false},
		{"trace", zerolog.TraceLevel, true},
		{" DEBUG ", zerolog.DebugLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"error", zerolog.ErrorLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.raw)
		assert.Equal(t, tt.want, got, "level for %q", tt.raw)
		assert.Equal(t, tt.wantOK, ok, "ok for %q", tt.raw)
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	assert.Equal(t, zerolog.DebugLevel, LevelFromEnv(zerolog.WarnLevel))

	t.Setenv(EnvLogLevel, "nonsense")
	assert.Equal(t, zerolog.WarnLevel, LevelFromEnv(zerolog.WarnLevel))
}

func TestNewLoggerTagsApp(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger("inspect", &buf)
	logger.Info().Msg("hello")

	require.NotZero(t, buf.Len())
	assert.Contains(t, buf.String(), "inspect")
	assert.Contains(t, buf.String(), "hello")
}

package dedup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	tests := []struct {
		name   string
		mutate func(*Options)
		field  string
	}{
		{"weights do not sum to one", func(o *Options) { o.Weights.Location = 0.5 }, "weights"},
		{"negative weight", func(o *Options) { o.Weights.Title = -0.1; o.Weights.Description = 0.7 }, "weights"},
		{"low above medium", func(o *Options) { o.Thresholds.Low = 75 }, "thresholds"},
		{"medium above high", func(o *Options) { o.Thresholds.Medium = 90 }, "thresholds"},
		{"threshold out of range", func(o *Options) { o.Thresholds.High = 120 }, "thresholds"},
		{"zero batch size", func(o *Options) { o.BatchSize = 0 }, "batch_size"},
		{"zero workers", func(o *Options) { o.Workers = 0 }, "workers"},
		{"negative write rate", func(o *Options) { o.WritesPerSecond = -1 }, "writes_per_second"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)

			var cfgErr *ConfigError
			require.True(t, errors.As(opts.Validate(), &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestOptions_EqualThresholdsAllowed(t *testing.T) {
	opts := DefaultOptions()
	opts.Thresholds = Thresholds{High: 60, Medium: 60, Low: 60}
	assert.NoError(t, opts.Validate())
}

func TestErrors_Messages(t *testing.T) {
	assert.Equal(t, "input error: job at index 3: missing id", (&InputError{Index: 3, Reason: "missing id"}).Error())
	assert.Equal(t, `input error: job "a": bad`, (&InputError{Index: -1, JobID: "a", Reason: "bad"}).Error())

	cause := errors.New("timeout")
	perr := &PersistenceError{Batch: 2, Attempts: 2, Cause: cause}
	assert.ErrorIs(t, perr, cause)
	assert.Contains(t, perr.Error(), "batch 2")
}

package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		wantEnabled zapcore.Level
		wantErr     bool
	}{
		{name: "info", level: "info", wantEnabled: zapcore.InfoLevel},
		{name: "debug", level: "debug", wantEnabled: zapcore.DebugLevel},
		{name: "warn", level: "warn", wantEnabled: zapcore.WarnLevel},
		{name: "unknown level", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.level)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.wantEnabled))
			assert.False(t, l.Core().Enabled(tt.wantEnabled-1))
		})
	}
}

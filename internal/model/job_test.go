package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want JobStatus
	}{
		{"", StatusIdle},
		{"idle", StatusIdle},
		{"running", StatusRunning},
		{"RUNNING", StatusRunning},
		{"logging_in", StatusRunning},
		{"browser_open", StatusRunning},
		{"initializing", StatusRunning},
		{"ready", StatusRunning},
		{"complete", StatusComplete},
		{"completed", StatusComplete},
		{"success", StatusComplete},
		{"stopped", StatusStopped},
		{"cancelled", StatusStopped},
		{"error", StatusError},
		{"failed", StatusError},
		{"warming_up", StatusRunning},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStatus(tt.raw))
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusIdle.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusComplete.IsTerminal())
	assert.True(t, StatusStopped.IsTerminal())
	assert.True(t, StatusError.IsTerminal())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelWarning, ParseLevel("warning"))
	assert.Equal(t, LevelWarning, ParseLevel("warn"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelSuccess, ParseLevel("success"))
	assert.Equal(t, LevelSystem, ParseLevel("system"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("debug"))
}

func TestParseJobKind(t *testing.T) {
	for _, kind := range AllKinds {
		parsed, err := ParseJobKind(string(kind))
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	_, err := ParseJobKind("laundry")
	assert.Error(t, err)
}

func TestJobKind_IsSession(t *testing.T) {
	assert.False(t, KindGeneration.IsSession())
	assert.False(t, KindCreditRefresh.IsSession())
	assert.True(t, KindPaymentSession.IsSession())
	assert.True(t, KindPurchaseSession.IsSession())
}

package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeCommands_TriggeredSequence(t *testing.T) {
	cmds := ModeCommands(ModeTriggered)
	require.Len(t, cmds, 4)

	assert.Equal(t, "SCNMOD0", cmds[0].Text())
	assert.Equal(t, "SCNTRG1", cmds[1].Text())
	assert.Equal(t, "ORTSET30000", cmds[2].Text())
	assert.Equal(t, "RRDDUR1000", cmds[3].Text())
}

func TestModeCommands_ContinuousSequence(t *testing.T) {
	cmds := ModeCommands(ModeContinuous)
	require.Len(t, cmds, 3)

	assert.Equal(t, "SCNMOD3", cmds[0].Text())
	assert.Equal(t, "ORTSET800", cmds[1].Text())
	assert.Equal(t, "RRDDUR1000", cmds[2].Text())
}

func TestModeTimeout(t *testing.T) {
	// Triggered mode is pinned to the device quiet window regardless of
	// the configured default.
	assert.Equal(t, 30*time.Second, ModeTimeout(ModeTriggered, 5*time.Second))
	assert.Equal(t, TriggeredQuietWindow, ModeTimeout(ModeTriggered, time.Minute))

	// Continuous mode uses the configured default exactly
	assert.Equal(t, 5*time.Second, ModeTimeout(ModeContinuous, 5*time.Second))
}

func TestTriggeredTimeoutMatchesQuietWindow(t *testing.T) {
	// The client deadline and the firmware quiet window must stay in
	// lockstep; changing one without the other desynchronizes them.
	cmds := ModeCommands(ModeTriggered)
	assert.Equal(t, CmdQuietWindow(TriggeredQuietWindow).Text(), cmds[2].Text())
	assert.Equal(t, TriggeredQuietWindow, ModeTimeout(ModeTriggered, 0))
}

func TestStopCommands(t *testing.T) {
	stop := StopCommands(ModeTriggered)
	require.Len(t, stop, 1)
	assert.Equal(t, "SCNTRG0", stop[0].Text())

	// Continuous mode never disarms a possibly-shared always-on scanner
	assert.Empty(t, StopCommands(ModeContinuous))
}

// internal/scanner/mode.go
package scanner

import "time"

// Device-side timing constants. TriggeredQuietWindow doubles as the
// triggered-mode session timeout: the firmware stops reporting after the
// quiet window elapses, so the client-side deadline must match it.
const (
	TriggeredQuietWindow  = 30 * time.Second
	ContinuousQuietWindow = 800 * time.Millisecond
	SameCodeSuppression   = 1 * time.Second
)

// ModeCommands returns the ordered configuration command sequence for an
// operation mode on the built-in serial scanner. The firmware interprets
// the commands as a stream; order is significant. External scanners take
// no command sequence (their mode toggle is a fixed broadcast).
func ModeCommands(mode OperationMode) []Command {
	switch mode {
	case ModeTriggered:
		return []Command{
			CmdTriggeredMode(),
			CmdArmTrigger(),
			CmdQuietWindow(TriggeredQuietWindow),
			CmdSameCodeSuppression(SameCodeSuppression),
		}
	case ModeContinuous:
		return []Command{
			CmdContinuousMode(),
			CmdQuietWindow(ContinuousQuietWindow),
			CmdSameCodeSuppression(SameCodeSuppression),
		}
	}
	return nil
}

// ModeTimeout returns the effective session timeout for a mode on the
// built-in scanner: triggered mode is pinned to the device quiet window,
// continuous mode uses the session's configured default.
func ModeTimeout(mode OperationMode, defaultTimeout time.Duration) time.Duration {
	if mode == ModeTriggered {
		return TriggeredQuietWindow
	}
	return defaultTimeout
}

// StopCommands returns the cleanup sequence sent when leaving a
// triggered-mode session. Continuous mode gets no stop command so an
// always-on scanner shared with other consumers is not disrupted.
func StopCommands(mode OperationMode) []Command {
	if mode == ModeTriggered {
		return []Command{CmdDisableTrigger()}
	}
	return nil
}

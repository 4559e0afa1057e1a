// internal/scanner/command.go
package scanner

import (
	"fmt"
	"time"
)

// Command is a single configuration command for the built-in serial
// scanner's proprietary text protocol. Stateless; constructed fresh for
// every send and encoded with Frame.
type Command struct {
	Name string
	text string
}

// Text returns the raw command string without the checksum trailer
func (c Command) Text() string {
	return c.text
}

// Command constructors. The command strings are interpreted by the
// scanner firmware as an ordered stream; see ModeCommands for the
// sequences sent per operation mode.

// CmdTriggeredMode switches the scanner into triggered (single-shot) mode
func CmdTriggeredMode() Command {
	return Command{Name: "mode:triggered", text: "SCNMOD0"}
}

// CmdContinuousMode switches the scanner into continuous/auto-sense mode
func CmdContinuousMode() Command {
	return Command{Name: "mode:continuous", text: "SCNMOD3"}
}

// CmdArmTrigger arms the scanner for a single decode
func CmdArmTrigger() Command {
	return Command{Name: "arm-trigger", text: "SCNTRG1"}
}

// CmdDisableTrigger disarms the trigger. Sent only when tearing down a
// triggered-mode session; never in continuous mode, where other
// consumers may rely on the scanner staying armed.
func CmdDisableTrigger() Command {
	return Command{Name: "disable-trigger", text: "SCNTRG0"}
}

// CmdQuietWindow sets the device-side minimum delay before the next
// decode is reported.
func CmdQuietWindow(d time.Duration) Command {
	return Command{
		Name: "quiet-window",
		text: fmt.Sprintf("ORTSET%d", d.Milliseconds()),
	}
}

// CmdSameCodeSuppression sets the minimum interval before an identical
// payload is reported twice.
func CmdSameCodeSuppression(d time.Duration) Command {
	return Command{
		Name: "same-code-suppression",
		text: fmt.Sprintf("RRDDUR%d", d.Milliseconds()),
	}
}

// CmdEnableBuzzer enables the scanner's decode buzzer
func CmdEnableBuzzer() Command {
	return Command{Name: "enable-buzzer", text: "GRBENA1"}
}

// Frame encodes the command for the wire: the command string's bytes
// followed by a two-byte additive checksum trailer, high byte first.
// The checksum is the 16-bit two's-complement negation of the byte sum
// (LRC-style, not CRC).
func (c Command) Frame() []byte {
	data := []byte(c.text)
	buf := make([]byte, 0, len(data)+2)
	buf = append(buf, data...)
	cs := Checksum(data)
	buf = append(buf, byte(cs>>8), byte(cs))
	return buf
}

// Checksum computes the two's-complement additive checksum over data
func Checksum(data []byte) uint16 {
	sum := 0
	for _, b := range data {
		sum += int(b)
	}
	return uint16(-sum)
}

// internal/hardware/buzzer.go
package hardware

import (
	"go.uber.org/zap"

	"scanner-service/internal/scanner"
)

// Buzzer plays scan feedback through the built-in scanner's decode
// buzzer. Fire-and-forget: send failures are swallowed.
type Buzzer struct {
	bus    scanner.EventBridge
	logger *zap.Logger
}

// NewBuzzer creates a buzzer backed by the event bridge
func NewBuzzer(bus scanner.EventBridge, logger *zap.Logger) *Buzzer {
	return &Buzzer{
		bus:    bus,
		logger: logger.With(zap.String("component", "buzzer")),
	}
}

// PlayBeep sends the buzzer command to the scanner
func (b *Buzzer) PlayBeep() {
	if err := b.bus.Send(scanner.TopicSerialCommand, scanner.CmdEnableBuzzer().Frame()); err != nil {
		b.logger.Debug("Beep command send failed", zap.Error(err))
	}
}

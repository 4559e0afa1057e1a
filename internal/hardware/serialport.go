// internal/hardware/serialport.go
package hardware

import (
	"bufio"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"scanner-service/internal/bridge"
	"scanner-service/internal/scanner"
)

// SerialConfig holds the built-in scanner's serial port settings
type SerialConfig struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baud_rate"`
	DataBits int           `json:"data_bits"`
	StopBits int           `json:"stop_bits"`
	Parity   string        `json:"parity"`
	Timeout  time.Duration `json:"timeout"`
}

// SerialTransport connects the event bridge to the built-in scanner's
// serial port: framed command bytes published on the serial-command
// topic are written to the port, and newline-delimited decode results
// read from the port are published on the result topic.
type SerialTransport struct {
	config *SerialConfig
	bus    *bridge.Bus
	logger *zap.Logger

	mu     sync.Mutex
	port   serial.Port
	sub    *bridge.Subscription
	done   chan struct{}
	isOpen bool
}

// NewSerialTransport creates a serial transport for the built-in scanner
func NewSerialTransport(config *SerialConfig, bus *bridge.Bus, logger *zap.Logger) (*SerialTransport, error) {
	if config.Port == "" {
		return nil, fmt.Errorf("port is required")
	}

	return &SerialTransport{
		config: config,
		bus:    bus,
		logger: logger.With(zap.String("component", "serial-transport")),
	}, nil
}

// Start opens the serial port and begins pumping events both ways
func (t *SerialTransport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isOpen {
		return nil
	}

	mode := &serial.Mode{
		BaudRate: t.config.BaudRate,
		DataBits: t.config.DataBits,
		StopBits: serial.StopBits(t.config.StopBits),
	}
	switch t.config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}

	port, err := serial.Open(t.config.Port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", t.config.Port, err)
	}

	if err := port.SetReadTimeout(t.config.Timeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	t.port = port
	t.sub = t.bus.Subscribe(scanner.TopicSerialCommand)
	t.done = make(chan struct{})
	t.isOpen = true

	go t.writeLoop(t.sub, port)
	go t.readLoop(port, t.done)

	t.logger.Info("Serial port opened",
		zap.String("port", t.config.Port),
		zap.Int("baud_rate", t.config.BaudRate),
	)
	return nil
}

// Stop closes the port and detaches from the bus
func (t *SerialTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isOpen {
		return nil
	}

	close(t.done)
	t.bus.Unsubscribe(t.sub)
	err := t.port.Close()
	t.port = nil
	t.isOpen = false

	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	t.logger.Info("Serial port closed", zap.String("port", t.config.Port))
	return nil
}

// writeLoop writes framed command bytes from the bus to the port. Write
// failures are logged and swallowed; the scanner firmware tolerates a
// lost control message, and the session never depends on a send result.
func (t *SerialTransport) writeLoop(sub *bridge.Subscription, port serial.Port) {
	for ev := range sub.C() {
		if len(ev.Data) == 0 {
			continue
		}
		if _, err := port.Write(ev.Data); err != nil {
			t.logger.Warn("Serial write failed",
				zap.Int("bytes", len(ev.Data)),
				zap.Error(err),
			)
		}
	}
}

// readLoop reads newline-delimited decode results from the port and
// publishes them on the scan-result topic. The payload gate lives in the
// session; the transport forwards lines as-is apart from trimming the
// line terminator.
func (t *SerialTransport) readLoop(port serial.Port, done chan struct{}) {
	sc := bufio.NewScanner(port)
	sc.Buffer(make([]byte, 4096), 8192)

	for sc.Scan() {
		select {
		case <-done:
			return
		default:
		}

		line := sc.Text()
		if line == "" {
			continue
		}
		t.bus.Publish(scanner.TopicScanResult, bridge.Event{Payload: line})
	}

	if err := sc.Err(); err != nil {
		select {
		case <-done:
		default:
			t.logger.Error("Serial read failed", zap.Error(err))
		}
	}
}

// ListPorts returns the serial port names present on the host
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// internal/hardware/usb.go
package hardware

import (
	"context"
	"fmt"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"scanner-service/internal/scanner"
)

// USBEnumerator lists USB devices attached to the host. Each call runs a
// fresh enumeration pass against a short-lived USB context; nothing is
// cached, matching the detector's no-caching contract.
type USBEnumerator struct {
	logger *zap.Logger
	debug  bool
}

// NewUSBEnumerator creates a USB hardware enumerator
func NewUSBEnumerator(logger *zap.Logger, debug bool) *USBEnumerator {
	return &USBEnumerator{
		logger: logger.With(zap.String("component", "usb-enumerator")),
		debug:  debug,
	}
}

// ListAttached enumerates currently attached USB devices. Devices are
// inspected via their descriptors only; none are opened, so no special
// permissions beyond enumeration access are needed.
func (e *USBEnumerator) ListAttached(ctx context.Context) ([]scanner.AttachedDevice, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			e.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()

	if e.debug {
		usbCtx.Debug(3)
	}

	var attached []scanner.AttachedDevice

	// The filter visits every descriptor; returning false keeps gousb
	// from actually opening any device.
	_, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		attached = append(attached, scanner.AttachedDevice{
			ID: scanner.Identifier{
				VendorID:  uint16(desc.Vendor),
				ProductID: uint16(desc.Product),
			},
			DisplayName: fmt.Sprintf("USB %04X:%04X (bus %d, addr %d)",
				uint16(desc.Vendor), uint16(desc.Product), desc.Bus, desc.Address),
		})
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	e.logger.Debug("USB enumeration pass completed", zap.Int("devices", len(attached)))
	return attached, nil
}

// internal/scanner/types.go
package scanner

import (
	"context"
	"fmt"
)

// Type identifies which scanner hardware handles scan requests
type Type string

const (
	TypeExternal Type = "EXTERNAL" // USB-attached scanner
	TypeBuiltIn  Type = "BUILT_IN" // serial scanner integrated in the host device
	TypeNone     Type = "NONE"
)

// PriorityPolicy controls how the selector picks between available scanners
type PriorityPolicy string

const (
	PolicyPreferExternal PriorityPolicy = "PREFER_EXTERNAL"
	PolicyPreferBuiltIn  PriorityPolicy = "PREFER_BUILT_IN"
	PolicyExternalOnly   PriorityPolicy = "EXTERNAL_ONLY"
	PolicyBuiltInOnly    PriorityPolicy = "BUILT_IN_ONLY"
)

// ValidPolicy reports whether p is a known priority policy
func ValidPolicy(p PriorityPolicy) bool {
	switch p {
	case PolicyPreferExternal, PolicyPreferBuiltIn, PolicyExternalOnly, PolicyBuiltInOnly:
		return true
	}
	return false
}

// OperationMode selects how the scanner hardware reports decode results
type OperationMode string

const (
	ModeTriggered  OperationMode = "TRIGGERED"  // one decode per armed request
	ModeContinuous OperationMode = "CONTINUOUS" // always-on, reports every decode
)

// ValidMode reports whether m is a known operation mode
func ValidMode(m OperationMode) bool {
	return m == ModeTriggered || m == ModeContinuous
}

// Identifier identifies an external scanner hardware model
type Identifier struct {
	VendorID  uint16 `json:"vendor_id"`
	ProductID uint16 `json:"product_id"`
}

// Key returns the canonical composite key used for set membership
func (id Identifier) Key() string {
	return fmt.Sprintf("%04x:%04x", id.VendorID, id.ProductID)
}

// String implements fmt.Stringer
func (id Identifier) String() string {
	return fmt.Sprintf("USB %04X:%04X", id.VendorID, id.ProductID)
}

// AttachedDevice describes a piece of scanner hardware currently attached
// to the host, as reported by the hardware enumerator.
type AttachedDevice struct {
	ID          Identifier `json:"id"`
	DisplayName string     `json:"display_name"`
}

// HardwareEnumerator lists external-scanner hardware currently attached to
// the host. It is called fresh on every detection pass; implementations
// must not cache.
type HardwareEnumerator interface {
	ListAttached(ctx context.Context) ([]AttachedDevice, error)
}

// Beeper plays audio feedback after a successful scan. Fire-and-forget;
// implementations swallow their own failures.
type Beeper interface {
	PlayBeep()
}

// internal/scanner/detector.go
package scanner

// DetectExternal filters a hardware snapshot down to the attached devices
// whose identifier is present in the compatibility registry, preserving
// snapshot order. Side-effect-free; the snapshot comes fresh from the
// hardware enumerator on every pass.
func DetectExternal(snapshot []AttachedDevice, reg *Registry) []AttachedDevice {
	matched := make([]AttachedDevice, 0, len(snapshot))
	for _, dev := range snapshot {
		if reg.Contains(dev.ID) {
			matched = append(matched, dev)
		}
	}
	return matched
}

// BuiltInAvailable reports built-in scanner availability. The built-in
// scanner service is assumed present whenever the host is the target
// hardware class; it is never actively probed.
func BuiltInAvailable() bool {
	return true
}

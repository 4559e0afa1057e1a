// internal/scanner/selector.go
package scanner

// SelectOptimal picks the active scanner type for a priority policy given
// which scanner classes are currently available. Pure function; the same
// table backs both the preview query and the stateful commit performed
// by Initialize.
func SelectOptimal(hasExternal, hasBuiltIn bool, policy PriorityPolicy) Type {
	switch policy {
	case PolicyPreferExternal:
		if hasExternal {
			return TypeExternal
		}
		if hasBuiltIn {
			return TypeBuiltIn
		}
	case PolicyPreferBuiltIn:
		if hasBuiltIn {
			return TypeBuiltIn
		}
		if hasExternal {
			return TypeExternal
		}
	case PolicyExternalOnly:
		if hasExternal {
			return TypeExternal
		}
	case PolicyBuiltInOnly:
		if hasBuiltIn {
			return TypeBuiltIn
		}
	}
	return TypeNone
}

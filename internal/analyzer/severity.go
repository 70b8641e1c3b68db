package analyzer

// Severity ranks how disruptive a statement is for a live session store.
type Severity int

const (
	// Safe means nothing was flagged.
	Safe Severity = iota
	// Low is worth a look but never blocks.
	Low
	// Medium takes a lock or scan that is usually short.
	Medium
	// High rewrites or locks the table, or fails on existing rows.
	High
	// Critical destroys data.
	Critical
)

// String returns the uppercase label for the severity level.
func (s Severity) String() string {
	switch s {
	case Safe:
		return "SAFE"
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Blocking reports whether an upgrade with this severity needs --force.
func (s Severity) Blocking() bool {
	return s >= High
}

package model

// Centralized markers for the UI components
// Using simple single-width characters for consistent terminal rendering
const (
	IconMatch     = " " // Space (match - no icon to reduce noise)
	IconLeftOnly  = "-" // Reference only, unified diff convention
	IconRightOnly = "+" // Candidate only, unified diff convention
	IconChanged   = "≠" // Same PC on both sides, different effects
	IconLoop      = "↻" // Suppressed loop
)

// MissingPlaceholder fills the empty side of an unpaired side-by-side row.
const MissingPlaceholder = "--- (missing) ---"

// Marker returns the unified-diff style marker for an op kind.
func Marker(k OpKind) string {
	switch k {
	case OpMatch:
		return IconMatch
	case OpLeftOnly:
		return IconLeftOnly
	case OpRightOnly:
		return IconRightOnly
	}
	return "?"
}

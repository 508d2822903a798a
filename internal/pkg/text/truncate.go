package text

// Truncate shortens s for log output, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return Clip(s, max) + "..."
}

// Clip hard-limits s to max runes without a suffix. Safe for identifiers
// with byte limits, e.g. spreadsheet sheet names.
func Clip(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

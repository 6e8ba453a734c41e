package provision

import "strings"

// MaxAgentIDLength bounds normalized agent ids.
const MaxAgentIDLength = 64

// SanitizeName collapses internal whitespace and trims the ends.
func SanitizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeAgentID turns a display name into a filesystem-safe agent id.
// Runs of characters outside [a-z0-9_-] become a single dash, leading and
// trailing dashes are dropped. The result is empty when name has no usable
// characters.
func NormalizeAgentID(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if isIDRune(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}

	id := b.String()
	if len(id) > MaxAgentIDLength {
		id = id[:MaxAgentIDLength]
	}
	return strings.Trim(id, "-")
}

func isIDRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}

// Package security holds helpers for handling user-supplied names safely.
package security

import "strings"

// maxFilenameLen bounds sanitized names so derived paths stay short.
const maxFilenameLen = 128

// SanitizeFilename turns an arbitrary string into a single path element.
// ASCII letters, digits, '.', '_' and '-' are kept; any run of other
// characters becomes one underscore. Names that would be empty or refer to
// the current or parent directory become "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pendingUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		if isSafeFilenameRune(r) {
			if pendingUnderscore {
				b.WriteByte('_')
				pendingUnderscore = false
			}
			b.WriteRune(r)
			continue
		}
		pendingUnderscore = true
	}
	if pendingUnderscore && b.Len() < maxFilenameLen {
		b.WriteByte('_')
	}

	out := b.String()
	if len(out) > maxFilenameLen {
		out = out[:maxFilenameLen]
	}
	if strings.Trim(out, ".") == "" {
		return "unknown"
	}
	return out
}

func isSafeFilenameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}

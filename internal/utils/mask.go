package utils

// SecretMask prefixes the visible tail of a masked credential.
const SecretMask = "********"

// MaskSecret keeps only the last 4 characters of s. Values too short to hide
// anything are replaced by the bare mask; empty stays empty.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	if len(r) <= 4 {
		return SecretMask
	}
	return SecretMask + string(r[len(r)-4:])
}

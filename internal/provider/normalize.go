package provider

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// CleanName strips any '|'-delimited suffix, trims whitespace and uppercases
// the result. Case folding is unified to uppercase across all providers so
// names are comparable during reconciliation.
func CleanName(raw string) string {
	name := raw
	if idx := strings.IndexByte(name, '|'); idx >= 0 {
		name = name[:idx]
	}
	return strings.ToUpper(strings.TrimSpace(name))
}

// CoerceUID converts a raw JSON id value (number or string token) into a
// non-negative int64. Non-digit input and values past the int64 bound
// coerce to 0 rather than failing the record.
func CoerceUID(raw []byte) int64 {
	s := string(bytes.Trim(bytes.TrimSpace(raw), `"`))
	if s == "" || s == "null" {
		return 0
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
	}
	uid, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// digits-only but out of range
		return 0
	}
	return uid
}

// ParseZTime converts an ISO-8601 timestamp with Z suffix to unix seconds.
// Missing or unparsable input yields 0; timestamp absence is common in
// provider payloads and is not itself an error.
func ParseZTime(raw string) int64 {
	if raw == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0
	}
	return t.Unix()
}

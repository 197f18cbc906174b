package attrack

import (
	"strings"
	"time"
)

// ParseDeviceTime converts a device clock field (YYYYMMDDHHMMSS, 14 digits)
// to UTC. The device clock is unreliable: all-zero values, truncated values
// and garbage all return nil rather than an error, and callers must never use
// the result as the authoritative event time.
func ParseDeviceTime(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" || len(s) < 14 {
		return nil
	}
	// GTSTT reports "0000"-style placeholders when the clock is unset.
	if strings.Trim(s, "0") == "" {
		return nil
	}

	year := atoi(s[0:4])
	month := atoi(s[4:6])
	day := atoi(s[6:8])
	hour := atoi(s[8:10])
	minute := atoi(s[10:12])
	second := atoi(s[12:14])

	if year < 1900 || year > 2100 {
		return nil
	}
	if month < 1 || month > 12 {
		return nil
	}
	if day < 1 || day > 31 {
		return nil
	}
	if hour < 0 || hour > 23 {
		return nil
	}
	if minute < 0 || minute > 59 {
		return nil
	}
	if second < 0 || second > 59 {
		return nil
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	return &t
}

// atoi parses a digit run, returning -1 on any non-digit so range checks fail.
func atoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}

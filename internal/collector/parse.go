package collector

import (
	"strconv"
	"strings"
)

// RouterOS renders numbers as strings and some carry unit suffixes
// ("-65@HT20", "144.4Mbps-20MHz/2S"). The parsers read the leading number
// and fall back to zero.

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes":
		return true
	}
	return false
}

func parseUint(v string) uint64 {
	n, err := strconv.ParseUint(leadingDigits(strings.TrimSpace(v), false), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseInt(v string) int {
	n, err := strconv.Atoi(leadingDigits(strings.TrimSpace(v), true))
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSuffix(prefixNumber(strings.TrimSpace(v)), "."), 64)
	if err != nil {
		return 0
	}
	return f
}

// prefixNumber returns the longest leading decimal number of v
func prefixNumber(v string) string {
	seenDot := false
	for i, r := range v {
		switch {
		case r >= '0' && r <= '9':
		case r == '-' && i == 0:
		case r == '.' && !seenDot:
			seenDot = true
		default:
			return v[:i]
		}
	}
	return v
}

func leadingDigits(v string, signed bool) string {
	for i, r := range v {
		if r >= '0' && r <= '9' {
			continue
		}
		if signed && i == 0 && r == '-' {
			continue
		}
		return v[:i]
	}
	return v
}

// pairCounter splits RouterOS "tx,rx" counter pairs
func pairCounter(v string) (uint64, uint64) {
	tx, rx, ok := strings.Cut(v, ",")
	if !ok {
		return 0, 0
	}
	return parseUint(tx), parseUint(rx)
}

// orUint prefers an explicit attribute over a value taken from a pair
func orUint(v string, fallback uint64) uint64 {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return parseUint(v)
}

package broker

import "strings"

// MatchSubject reports whether subject matches pattern using NATS token
// rules: "*" matches exactly one token, a trailing ">" matches one or more.
func MatchSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return i == len(pt)-1 && len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}

// MatchAny reports whether subject matches at least one of patterns.
func MatchAny(patterns []string, subject string) bool {
	for _, p := range patterns {
		if MatchSubject(p, subject) {
			return true
		}
	}
	return false
}

// HasWildcard reports whether any pattern contains a wildcard token.
func HasWildcard(patterns []string) bool {
	for _, p := range patterns {
		for _, tok := range strings.Split(p, ".") {
			if tok == "*" || tok == ">" {
				return true
			}
		}
	}
	return false
}

package flowmesh

import "strings"

// validateSubject checks a publish subject: dot-separated ASCII tokens, none
// of which may be empty, and no wildcard tokens (those are subscribe-only).
func validateSubject(subject string) error {
	if subject == "" {
		return wrapKind(KindUsage, ErrBadSubject)
	}
	for _, tok := range strings.Split(subject, ".") {
		if tok == "" {
			return wrapKind(KindUsage, ErrBadSubject)
		}
		if tok == "*" || tok == ">" {
			return wrapKind(KindUsage, ErrBadSubject)
		}
		if !isASCII(tok) {
			return wrapKind(KindUsage, ErrBadSubject)
		}
	}

	return nil
}

// validateSubscribeSubject checks a subscribe pattern: dot-separated ASCII
// tokens where "*" matches exactly one token and a trailing ">" matches one
// or more remaining tokens.
func validateSubscribeSubject(subject string) error {
	if subject == "" {
		return wrapKind(KindUsage, ErrBadSubject)
	}
	toks := strings.Split(subject, ".")
	for i, tok := range toks {
		if tok == "" {
			return wrapKind(KindUsage, ErrBadSubject)
		}
		if tok == ">" && i != len(toks)-1 {
			return wrapKind(KindUsage, ErrBadSubject)
		}
		if tok == "*" || tok == ">" {
			continue
		}
		if !isASCII(tok) {
			return wrapKind(KindUsage, ErrBadSubject)
		}
	}

	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}

	return true
}

// Package waid canonicalizes chat-network identifiers (JID-like
// addresses) so that the same participant compares equal no matter
// which ingestion path produced the identifier.
package waid

import "strings"

// Kind classifies an identifier after suffix stripping.
type Kind string

const (
	KindIndividual Kind = "individual"
	KindBusiness   Kind = "business"
	KindGroup      Kind = "group"
	KindUnknown    Kind = "unknown"
)

// Known network suffix families.
const (
	SuffixUser       = "@s.whatsapp.net"
	SuffixUserLegacy = "@c.us"
	SuffixBusiness   = "@lid"
	SuffixGroup      = "@g.us"
)

// Country-code prefixes stripped heuristically from long numbers.
// Longest prefix wins. The list mirrors the markets the suite ships
// to; it is a best-effort display/search equivalence, not a telecom
// numbering plan.
var countryPrefixes = []string{
	"521", "549", "502", "503", "504", "505", "506", "507",
	"591", "593", "595", "598",
	"52", "54", "55", "56", "57", "58", "51",
	"34", "1",
}

const minNationalDigits = 7

// splitSuffix separates the local part from a known suffix family.
func splitSuffix(raw string) (local string, kind Kind) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasSuffix(s, SuffixGroup):
		return strings.TrimSuffix(s, SuffixGroup), KindGroup
	case strings.HasSuffix(s, SuffixBusiness):
		return strings.TrimSuffix(s, SuffixBusiness), KindBusiness
	case strings.HasSuffix(s, SuffixUser):
		return strings.TrimSuffix(s, SuffixUser), KindIndividual
	case strings.HasSuffix(s, SuffixUserLegacy):
		return strings.TrimSuffix(s, SuffixUserLegacy), KindIndividual
	}
	if onlyDigits(s) != "" {
		return s, KindIndividual
	}
	return s, KindUnknown
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Classify returns the identifier kind derived from its suffix
// family, or KindUnknown when the input carries no recognizable
// shape.
func Classify(raw string) Kind {
	local, kind := splitSuffix(raw)
	if kind == KindIndividual && onlyDigits(local) == "" {
		return KindUnknown
	}
	if strings.TrimSpace(local) == "" {
		return KindUnknown
	}
	return kind
}

// Normalize canonicalizes an identifier for equality comparison.
// Malformed input normalizes to the empty string, which Equivalent
// never matches, not even against another empty string.
//
// Individual numbers are reduced to digits, then a known country
// prefix is trimmed (longest match first) but only when the number
// is longer than a national number (>= 11 digits) and the remainder
// stays within a plausible national length. This keeps Normalize
// idempotent: a trimmed result is never long enough to trim again.
func Normalize(raw string) string {
	local, kind := splitSuffix(raw)
	local = strings.TrimSpace(local)
	if local == "" {
		return ""
	}

	switch kind {
	case KindGroup, KindBusiness:
		// Device identifier suffixes like ":12" never survive.
		if idx := strings.Index(local, ":"); idx >= 0 {
			local = local[:idx]
		}
		return strings.ToLower(local)
	case KindIndividual:
		digits := onlyDigits(local)
		if digits == "" {
			return ""
		}
		return trimCountryPrefix(digits)
	default:
		return ""
	}
}

func trimCountryPrefix(digits string) string {
	if len(digits) < 11 {
		return digits
	}
	for _, p := range countryPrefixes {
		if !strings.HasPrefix(digits, p) {
			continue
		}
		rest := digits[len(p):]
		if len(rest) >= minNationalDigits && len(rest) <= 10 {
			return rest
		}
	}
	return digits
}

// Equivalent reports whether two raw identifiers denote the same
// participant. Besides exact normalized equality it accepts a
// suffix match of at least minNationalDigits digits, which covers
// inconsistent country-code presence between the push and pull
// ingestion paths.
func Equivalent(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if len(nb) >= minNationalDigits && strings.HasSuffix(na, nb) {
		return true
	}
	if len(na) >= minNationalDigits && strings.HasSuffix(nb, na) {
		return true
	}
	return false
}

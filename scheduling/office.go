/*
office.go - Office id normalization

PURPOSE:
  Canonicalizes the heterogeneous office identifiers found across imported
  data ("B4", "b-4", "A2", "C_3") into one Building-Unit scheme. Every
  comparison anywhere in the scheduler happens on canonical ids.

CANONICAL SCHEME:
  Building A  virtual rooms, lowercase-letter unit ("A-a".."A-z");
              "A-v" is the default virtual office. A numeric unit is
              converted by position: 1 -> a, 2 -> b, ...
  Building B/C  physical rooms, numeric unit ("B-4", "C-12"). An alphabetic
              unit is converted by position: A -> 1, B -> 2, ...
  Anything else normalizes to the sentinel "TBD".

GUARANTEES:
  Standardize is idempotent: Standardize(Standardize(x)) == Standardize(x)
  for every input, including garbage.

SEE ALSO:
  - availability.go: refuses TBD ids outright
  - detector.go: skips virtual and TBD ids
*/
package scheduling

import (
	"strconv"
	"strings"
	"unicode"
)

// Canonical sentinel and default ids.
const (
	SentinelTBD          = "TBD"
	DefaultVirtualOffice = "A-v"
)

// Standardize converts a raw office identifier to canonical Building-Unit
// form, or SentinelTBD when the input has no recognizable shape.
func Standardize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, SentinelTBD) {
		return SentinelTBD
	}

	// Strip separators so "B-4", "B_4", "B 4" and "B4" all parse alike.
	var b strings.Builder
	for _, r := range s {
		if r == '-' || r == '_' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	compact := b.String()
	if len(compact) < 2 {
		return SentinelTBD
	}

	building := unicode.ToUpper(rune(compact[0]))
	unit := compact[1:]

	switch building {
	case 'A':
		return standardizeVirtualUnit(unit)
	case 'B', 'C':
		return standardizePhysicalUnit(building, unit)
	default:
		return SentinelTBD
	}
}

// standardizeVirtualUnit canonicalizes a building-A unit to a single
// lowercase letter. Numeric units map by position (1 -> a).
func standardizeVirtualUnit(unit string) string {
	if n, ok := parseUnitNumber(unit); ok {
		if n < 1 || n > 26 {
			return SentinelTBD
		}
		return "A-" + string(rune('a'+n-1))
	}
	if len(unit) == 1 && isASCIILetter(rune(unit[0])) {
		return "A-" + strings.ToLower(unit)
	}
	return SentinelTBD
}

// standardizePhysicalUnit canonicalizes a building-B/C unit to a number.
// Alphabetic units map by position (A -> 1).
func standardizePhysicalUnit(building rune, unit string) string {
	if n, ok := parseUnitNumber(unit); ok {
		if n < 1 {
			return SentinelTBD
		}
		return string(building) + "-" + strconv.Itoa(n)
	}
	if len(unit) == 1 && isASCIILetter(rune(unit[0])) {
		n := int(unicode.ToUpper(rune(unit[0]))-'A') + 1
		return string(building) + "-" + strconv.Itoa(n)
	}
	return SentinelTBD
}

// IsVirtualOffice reports whether the id (after normalization) is a
// building-A virtual slot.
func IsVirtualOffice(raw string) bool {
	return strings.HasPrefix(Standardize(raw), "A-")
}

// IsPlaceholder reports whether the id normalizes to the TBD sentinel.
func IsPlaceholder(raw string) bool {
	return Standardize(raw) == SentinelTBD
}

// IsBookable reports whether the id refers to a concrete physical room,
// i.e. something the double-booking rules apply to.
func IsBookable(raw string) bool {
	id := Standardize(raw)
	return id != SentinelTBD && !strings.HasPrefix(id, "A-")
}

func parseUnitNumber(unit string) (int, bool) {
	for _, r := range unit {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(unit)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

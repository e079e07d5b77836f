package scheduling_test

import (
	"testing"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
)

// =============================================================================
// NORMALIZATION TESTS
// =============================================================================

func TestStandardize_CanonicalForms(t *testing.T) {
	cases := map[string]string{
		"B-4":   "B-4",
		"b4":    "B-4",
		"B 4":   "B-4",
		"b_4":   "B-4",
		"C-12":  "C-12",
		"A-v":   "A-v",
		"av":    "A-v",
		"A-V":   "A-v",
		"TBD":   "TBD",
		"tbd":   "TBD",
		"":      "TBD",
		"  ":    "TBD",
		"D-4":   "TBD", // unknown building
		"B":     "TBD", // no unit
		"B-0":   "TBD", // units start at 1
		"B-xx":  "TBD", // multi-letter unit
		"4-B":   "TBD",
		"junk!": "TBD",
	}
	for raw, want := range cases {
		if got := scheduling.Standardize(raw); got != want {
			t.Errorf("Standardize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestStandardize_PositionalConversion(t *testing.T) {
	// Numeric units on building A become letters; alphabetic units on B/C
	// become numbers, both by position.
	cases := map[string]string{
		"A-1":  "A-a",
		"A-2":  "A-b",
		"A-22": "A-v",
		"A-26": "A-z",
		"A-27": "TBD",
		"B-a":  "B-1",
		"B-D":  "B-4",
		"C-c":  "C-3",
	}
	for raw, want := range cases {
		if got := scheduling.Standardize(raw); got != want {
			t.Errorf("Standardize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestStandardize_Idempotent(t *testing.T) {
	// GIVEN: any input at all, canonical or garbage
	// THEN: standardize(standardize(x)) == standardize(x)
	inputs := []string{
		"B-4", "b4", "C-12", "A-v", "A-22", "B-D", "", "TBD", "D-9",
		"junk", "A-", "-4", "B--4", "a_3", " c 7 ", "!!", "B-0001",
	}
	for _, raw := range inputs {
		once := scheduling.Standardize(raw)
		twice := scheduling.Standardize(once)
		if once != twice {
			t.Errorf("Standardize not idempotent for %q: first %q, second %q", raw, once, twice)
		}
	}
}

func TestOfficePredicates(t *testing.T) {
	if !scheduling.IsVirtualOffice("A-v") || !scheduling.IsVirtualOffice("a2") {
		t.Error("building A ids should be virtual")
	}
	if scheduling.IsVirtualOffice("B-4") || scheduling.IsVirtualOffice("garbage") {
		t.Error("physical and unknown ids should not be virtual")
	}
	if !scheduling.IsBookable("B-4") || scheduling.IsBookable("A-v") || scheduling.IsBookable("TBD") {
		t.Error("only concrete physical ids are bookable")
	}
	if !scheduling.IsPlaceholder("nonsense") || scheduling.IsPlaceholder("C-2") {
		t.Error("placeholder check should track the TBD sentinel")
	}
}

package workflow

import "testing"

func TestDeriveStatusPrecedence(t *testing.T) {
	assigned := map[string]string{"C1": "Fan"}
	validComplete := map[string]ReviewResult{
		"C1": {Validity: ValidityValid, Completeness: CompletenessComplete},
	}
	invalid := map[string]ReviewResult{
		"C1": {Validity: ValidityInvalid, Completeness: CompletenessComplete},
	}
	validIncomplete := map[string]ReviewResult{
		"C1": {Validity: ValidityValid, Completeness: CompletenessIncomplete},
	}
	off := map[string]struct{}{"C1": {}}
	none := map[string]struct{}{}

	cases := []struct {
		name        string
		disabled    map[string]struct{}
		reviews     map[string]ReviewResult
		assignments map[string]string
		want        Status
	}{
		{"no facts", none, nil, nil, StatusPending},
		{"assignment only", none, nil, assigned, StatusAssigned},
		{"valid complete review", none, validComplete, assigned, StatusFinished},
		{"invalid review", none, invalid, assigned, StatusInvalid},
		{"valid incomplete review", none, validIncomplete, nil, StatusAssigned},
		{"disabled beats assignment", off, nil, assigned, StatusDisabled},
		{"disabled beats finished review", off, validComplete, assigned, StatusDisabled},
		{"disabled beats invalid review", off, invalid, assigned, StatusDisabled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStatus("C1", tc.disabled, tc.reviews, tc.assignments); got != tc.want {
				t.Fatalf("DeriveStatus = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDeriveStatusIsPure(t *testing.T) {
	disabled := map[string]struct{}{}
	reviews := map[string]ReviewResult{"C1": {Validity: ValidityValid, Completeness: CompletenessIncomplete}}
	assignments := map[string]string{"C1": "Fan"}

	first := DeriveStatus("C1", disabled, reviews, assignments)
	second := DeriveStatus("C1", disabled, reviews, assignments)
	if first != second {
		t.Fatalf("derivation not stable: %s then %s", first, second)
	}
}

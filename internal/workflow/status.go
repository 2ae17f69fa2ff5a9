package workflow

// DeriveStatus computes the effective status of a clip from the three fact
// sets. Precedence is fixed, first match wins:
//
//	disabled > invalid review > complete review > incomplete review or
//	assignment > pending
//
// Disablement wins even when an assignment or review fact is also present.
func DeriveStatus(clipID string, disabled map[string]struct{}, reviews map[string]ReviewResult, assignments map[string]string) Status {
	if _, ok := disabled[clipID]; ok {
		return StatusDisabled
	}
	if review, ok := reviews[clipID]; ok {
		if review.Validity == ValidityInvalid {
			return StatusInvalid
		}
		if review.Completeness == CompletenessComplete {
			return StatusFinished
		}
		// Valid but incomplete: stays with the assignee.
		return StatusAssigned
	}
	if _, ok := assignments[clipID]; ok {
		return StatusAssigned
	}
	return StatusPending
}

package domain

// SelectionState tracks the automatically chosen quote and an optional user
// override.
type SelectionState struct {
	AutoSelected *QuoteResult
	UserSelected *QuoteResult
}

// Effective returns the user's pick when present, else the best quote.
func (s SelectionState) Effective() *QuoteResult {
	if s.UserSelected != nil {
		return s.UserSelected
	}
	return s.AutoSelected
}

// IsUserOverride reports whether the effective quote came from the user.
func (s SelectionState) IsUserOverride() bool {
	return s.UserSelected != nil
}

// Reconcile moves the selection onto a new snapshot. A user pick survives
// only while its protocol still has a Success, and it then points at the
// fresh result.
func (s SelectionState) Reconcile(snap *AggregationSnapshot) SelectionState {
	next := SelectionState{}
	if snap != nil && snap.Best != nil {
		b := snap.Best.Clone()
		next.AutoSelected = &b
	}
	if s.UserSelected != nil {
		if live, ok := snap.SuccessFor(s.UserSelected.Protocol); ok {
			next.UserSelected = &live
		}
	}
	return next
}

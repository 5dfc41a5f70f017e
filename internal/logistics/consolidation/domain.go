package consolidation

import "time"

// SuggestionStatus is terminal once accepted or rejected.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
)

// Suggestion is a precomputed pairing of two ready orders produced by the
// sp_find_consolidation_opportunities routine. This service only resolves
// suggestions; it never creates them.
type Suggestion struct {
	ID               int64
	OrderID1         int64
	OrderID2         int64
	DistanceKm       float64
	PotentialSavings float64
	Status           SuggestionStatus
	SuggestedAt      time.Time
}

// IsPending reports whether the suggestion can still be acted on.
func (s Suggestion) IsPending() bool {
	return s.Status == SuggestionPending
}

// SuggestionDetail joins the pairing with order figures for the review
// screen.
type SuggestionDetail struct {
	Suggestion
	OrderNumber1     string
	OrderNumber2     string
	CombinedWeightKg float64
}

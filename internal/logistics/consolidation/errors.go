package consolidation

import "errors"

var (
	// ErrSuggestionNotFound indicates the suggestion does not exist.
	ErrSuggestionNotFound = errors.New("consolidation suggestion not found")
	// ErrSuggestionResolved indicates the suggestion was already accepted
	// or rejected. Resolution is terminal.
	ErrSuggestionResolved = errors.New("consolidation suggestion already resolved")
	// ErrNoVehicleAvailable indicates no active vehicle can carry the
	// combined load.
	ErrNoVehicleAvailable = errors.New("no vehicle with sufficient capacity available")
	// ErrNoDriverAvailable indicates no available driver exists.
	ErrNoDriverAvailable = errors.New("no driver available")
)

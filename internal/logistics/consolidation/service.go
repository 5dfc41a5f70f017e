package consolidation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/millstone-erp/millstone-erp/internal/logistics/trips"
	"github.com/millstone-erp/millstone-erp/internal/shared"
)

// savingsPrinter renders distance and money figures with thousands
// separators for the notes shown to dispatchers.
var savingsPrinter = message.NewPrinter(language.English)

// TripCreator is the slice of the trip engine the resolver needs: trip
// creation against an already-open transaction.
type TripCreator interface {
	CreateInTx(ctx context.Context, tx trips.TxRepository, in trips.CreateTripInput, actor shared.Actor) (int64, error)
}

// Service resolves consolidation suggestions. Accepting one creates a
// consolidated trip through the regular assignment engine, in the same
// transaction that flips the suggestion, so a failed dispatch leaves the
// suggestion pending.
type Service struct {
	repo   Repository
	engine TripCreator
	audit  shared.AuditPort
	logger *slog.Logger
	now    func() time.Time

	pending singleflight.Group
}

// NewService constructs the resolver.
func NewService(repo Repository, engine TripCreator, audit shared.AuditPort, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		engine: engine,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Accept turns a pending suggestion into a consolidated trip. The system
// picks the smallest vehicle that fits the combined load and the
// highest-rated available driver; both orders ship exactly as if the
// dispatcher had built the trip by hand.
func (s *Service) Accept(ctx context.Context, suggestionID int64, actor shared.Actor) (int64, error) {
	var tripID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		suggestion, err := tx.GetSuggestionForUpdate(ctx, suggestionID)
		if err != nil {
			return err
		}
		if !suggestion.IsPending() {
			return fmt.Errorf("%w: suggestion %d is %s", ErrSuggestionResolved, suggestionID, suggestion.Status)
		}

		first, err := tx.GetOrderForUpdate(ctx, suggestion.OrderID1)
		if err != nil {
			return err
		}
		second, err := tx.GetOrderForUpdate(ctx, suggestion.OrderID2)
		if err != nil {
			return err
		}
		combined := first.TotalWeightKg + second.TotalWeightKg

		vehicle, err := tx.SelectVehicleForWeight(ctx, combined)
		if err != nil {
			return err
		}
		driver, err := tx.SelectBestDriver(ctx)
		if err != nil {
			return err
		}

		note := savingsPrinter.Sprintf(
			"Consolidated orders %s and %s (%.2f km apart), estimated savings %.2f",
			first.OrderNumber, second.OrderNumber, suggestion.DistanceKm, suggestion.PotentialSavings)

		id, err := s.engine.CreateInTx(ctx, tx, trips.CreateTripInput{
			OrderIDs:        []int64{first.ID, second.ID},
			VehicleID:       vehicle.ID,
			DriverID:        driver.ID,
			TripDate:        s.now(),
			Notes:           note,
			WorkflowComment: note,
		}, actor)
		if err != nil {
			return err
		}
		tripID = id

		return tx.UpdateSuggestionStatus(ctx, suggestionID, SuggestionAccepted)
	})
	if err != nil {
		return 0, err
	}

	s.recordAudit(ctx, actor, "consolidation.accept", suggestionID, map[string]any{"trip_id": tripID})
	return tripID, nil
}

// Reject marks a pending suggestion rejected. No other rows change.
func (s *Service) Reject(ctx context.Context, suggestionID int64, actor shared.Actor) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		suggestion, err := tx.GetSuggestionForUpdate(ctx, suggestionID)
		if err != nil {
			return err
		}
		if !suggestion.IsPending() {
			return fmt.Errorf("%w: suggestion %d is %s", ErrSuggestionResolved, suggestionID, suggestion.Status)
		}
		return tx.UpdateSuggestionStatus(ctx, suggestionID, SuggestionRejected)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actor, "consolidation.reject", suggestionID, nil)
	return nil
}

// ListPending returns open suggestions joined with order figures. Concurrent
// callers share one query.
func (s *Service) ListPending(ctx context.Context) ([]SuggestionDetail, error) {
	result, err, _ := s.pending.Do("pending", func() (any, error) {
		return s.repo.ListPending(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]SuggestionDetail), nil
}

// GetSuggestion returns one suggestion.
func (s *Service) GetSuggestion(ctx context.Context, id int64) (Suggestion, error) {
	return s.repo.GetSuggestion(ctx, id)
}

// ScanForOrder asks the database routine to look for pairing opportunities
// around one order. Returns the number of suggestions created.
func (s *Service) ScanForOrder(ctx context.Context, orderID int64) (int, error) {
	return s.repo.ScanForOrder(ctx, orderID)
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, suggestionID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "consolidation_suggestion",
		EntityID: fmt.Sprintf("%d", suggestionID),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

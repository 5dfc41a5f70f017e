// Package logistics wires the dispatch workflow: trips, order assignment
// and consolidation suggestion resolution.
package logistics

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/millstone-erp/millstone-erp/internal/accounting/posting"
	"github.com/millstone-erp/millstone-erp/internal/logistics/consolidation"
	"github.com/millstone-erp/millstone-erp/internal/logistics/trips"
	"github.com/millstone-erp/millstone-erp/internal/orders"
	"github.com/millstone-erp/millstone-erp/internal/shared"
	"github.com/millstone-erp/millstone-erp/jobs"
)

// MountRoutes wires all logistics domain routes behind the dispatch role
// gate. queue may be nil when no job backend is configured.
func MountRoutes(r chi.Router, pool *pgxpool.Pool, logger *slog.Logger, audit shared.AuditPort, queue *jobs.Client) {
	poster := posting.NewPoster()
	weights := orders.NewWeightService(pool)

	tripsRepo := trips.NewRepository(pool)
	tripsSvc := trips.NewService(tripsRepo, poster, weights, audit, logger)
	tripsHandler := trips.NewHandler(logger, tripsSvc)

	consolidationRepo := consolidation.NewRepository(pool)
	consolidationSvc := consolidation.NewService(consolidationRepo, tripsSvc, audit, logger)
	var scanQueue consolidation.ScanQueue
	if queue != nil {
		scanQueue = queue
	}
	consolidationHandler := consolidation.NewHandler(logger, consolidationSvc, scanQueue)

	gate := shared.RoleGate{Logger: logger}
	r.Group(func(r chi.Router) {
		r.Use(gate.Require(shared.DispatchRoles...))
		r.Route("/trips", func(r chi.Router) {
			tripsHandler.MountRoutes(r)
		})
		r.Route("/consolidation", func(r chi.Router) {
			consolidationHandler.MountRoutes(r)
		})
	})
}

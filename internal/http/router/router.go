package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gradnja/stroski-api/internal/config"
	"github.com/gradnja/stroski-api/internal/http/handler"
	"github.com/gradnja/stroski-api/internal/http/middleware"
	"go.uber.org/zap"
)

type Router struct {
	cfg               *config.Config
	logger            *zap.Logger
	rateLimiter       *middleware.RateLimiter
	healthHandler     *handler.HealthHandler
	projectHandler    *handler.ProjectHandler
	phaseHandler      *handler.PhaseHandler
	contractorHandler *handler.ContractorHandler
	costHandler       *handler.CostHandler
	documentHandler   *handler.DocumentHandler
	backupHandler     *handler.BackupHandler
	reportHandler     *handler.ReportHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	rateLimiter *middleware.RateLimiter,
	healthHandler *handler.HealthHandler,
	projectHandler *handler.ProjectHandler,
	phaseHandler *handler.PhaseHandler,
	contractorHandler *handler.ContractorHandler,
	costHandler *handler.CostHandler,
	documentHandler *handler.DocumentHandler,
	backupHandler *handler.BackupHandler,
	reportHandler *handler.ReportHandler,
) *Router {
	return &Router{
		cfg:               cfg,
		logger:            logger,
		rateLimiter:       rateLimiter,
		healthHandler:     healthHandler,
		projectHandler:    projectHandler,
		phaseHandler:      phaseHandler,
		contractorHandler: contractorHandler,
		costHandler:       costHandler,
		documentHandler:   documentHandler,
		backupHandler:     backupHandler,
		reportHandler:     reportHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	r.Get("/health", rt.healthHandler.Live)
	r.Get("/health/ready", rt.healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		// Projects
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", rt.projectHandler.List)
			r.Post("/", rt.projectHandler.Create)
			r.Get("/active", rt.projectHandler.GetActive)
			r.Put("/active", rt.projectHandler.SetActive)
			r.Put("/{id}", rt.projectHandler.Update)
			r.Delete("/{id}", rt.projectHandler.Delete)
		})

		// Phases and subphases
		r.Route("/phases", func(r chi.Router) {
			r.Get("/", rt.phaseHandler.List)
			r.Post("/", rt.phaseHandler.Create)
			r.Put("/reorder", rt.phaseHandler.Reorder)
			r.Post("/import", rt.phaseHandler.ImportCSV)
			r.Put("/{id}", rt.phaseHandler.Update)
			r.Delete("/{id}", rt.phaseHandler.Delete)
			r.Get("/{id}/subphases", rt.phaseHandler.ListSubphases)
			r.Post("/{id}/subphases", rt.phaseHandler.CreateSubphase)
		})
		r.Route("/subphases", func(r chi.Router) {
			r.Put("/{id}", rt.phaseHandler.UpdateSubphase)
			r.Delete("/{id}", rt.phaseHandler.DeleteSubphase)
		})

		// Contractors
		r.Route("/contractors", func(r chi.Router) {
			r.Get("/", rt.contractorHandler.List)
			r.Post("/", rt.contractorHandler.Create)
			r.Put("/{id}", rt.contractorHandler.Update)
			r.Delete("/{id}", rt.contractorHandler.Delete)
			r.Put("/{id}/archive", rt.contractorHandler.Archive)
		})

		// Costs
		r.Route("/costs", func(r chi.Router) {
			r.Get("/", rt.costHandler.List)
			r.Post("/", rt.costHandler.Create)
			r.Post("/bulk", rt.costHandler.BulkCreate)
			r.Get("/plan-vs-actual", rt.costHandler.PlanVsActual)
			r.Get("/export", rt.costHandler.ExportCSV)
			r.Post("/import", rt.costHandler.ImportCSV)
			r.Put("/{id}", rt.costHandler.Update)
			r.Delete("/{id}", rt.costHandler.Delete)
			r.Put("/{id}/archive", rt.costHandler.Archive)
			r.Post("/{id}/duplicate", rt.costHandler.Duplicate)
			r.Post("/{id}/pdf", rt.costHandler.AttachPdf)
		})

		// Documents
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", rt.documentHandler.List)
			r.Post("/", rt.documentHandler.Attach)
			r.Get("/{id}", rt.documentHandler.GetByID)
			r.Put("/{id}", rt.documentHandler.Update)
			r.Delete("/{id}", rt.documentHandler.Delete)
			r.Get("/{id}/download", rt.documentHandler.Download)
			r.Put("/{id}/file", rt.documentHandler.Replace)
		})

		// Backup and restore
		r.Route("/backup", func(r chi.Router) {
			r.Get("/export", rt.backupHandler.Export)
			r.Post("/import", rt.backupHandler.Import)
			r.Post("/run", rt.backupHandler.RunScheduled)
		})

		// Reporting mirror
		r.Route("/reports", func(r chi.Router) {
			r.Get("/monthly", rt.reportHandler.Monthly)
			r.Get("/contractors", rt.reportHandler.Contractors)
			r.Post("/sync", rt.reportHandler.Sync)
		})
	})

	return r
}

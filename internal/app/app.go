// Package app assembles the services and their HTTP routes from a set of
// stores and upstream clients. The server uses Postgres stores; tests use the
// in-memory ones.
package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"compliance/internal/audit"
	cfhandler "compliance/internal/casefile/handler"
	cfservice "compliance/internal/casefile/service"
	cfstore "compliance/internal/casefile/store"
	cmhandler "compliance/internal/complaint/handler"
	cmservice "compliance/internal/complaint/service"
	cmstore "compliance/internal/complaint/store"
	crhandler "compliance/internal/continuation/handler"
	crservice "compliance/internal/continuation/service"
	crstore "compliance/internal/continuation/store"
	"compliance/internal/identity"
	irhandler "compliance/internal/inspection/handler"
	irservice "compliance/internal/inspection/service"
	irstore "compliance/internal/inspection/store"
	"compliance/internal/numbering"
	"compliance/internal/platform/metrics"
	"compliance/internal/platform/postgres"
	refhandler "compliance/internal/refdata/handler"
	refservice "compliance/internal/refdata/service"
	refstore "compliance/internal/refdata/store"
	"compliance/internal/registry"
	staffhandler "compliance/internal/staff/handler"
	staffservice "compliance/internal/staff/service"
	staffstore "compliance/internal/staff/store"
	httptransport "compliance/internal/transport/http"
	"compliance/pkg/platform/memtx"
)

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CaseFileStore is the case file store plus the reference lookup the number
// generator and continuation reports need.
type CaseFileStore interface {
	cfservice.Store
	numbering.CaseFiles
}

type Stores struct {
	Tx          TxRunner
	Sequencer   numbering.Sequencer
	Versions    audit.Recorder
	RefData     refservice.Store
	Staff       staffservice.Store
	CaseFiles   CaseFileStore
	Inspections irservice.Store
	Complaints  cmservice.Store
	Reports     crservice.Store
}

// InMemoryStores returns stores backed by memtx tables, sharing one runner.
func InMemoryStores() Stores {
	return Stores{
		Tx:          memtx.NewRunner(),
		Sequencer:   numbering.NewMemorySequencer(),
		Versions:    audit.NewMemoryStore(),
		RefData:     refstore.NewInMemoryStore(),
		Staff:       staffstore.NewInMemoryStore(),
		CaseFiles:   cfstore.NewInMemoryStore(),
		Inspections: irstore.NewInMemoryStore(),
		Complaints:  cmstore.NewInMemoryStore(),
		Reports:     crstore.NewInMemoryStore(),
	}
}

func PostgresStores(db *sql.DB, txTimeout time.Duration) Stores {
	return Stores{
		Tx:          postgres.NewTxRunner(db, txTimeout),
		Sequencer:   numbering.NewPostgresSequencer(db),
		Versions:    audit.NewPostgresStore(db),
		RefData:     refstore.NewPostgres(db),
		Staff:       staffstore.NewPostgres(db),
		CaseFiles:   cfstore.NewPostgres(db),
		Inspections: irstore.NewPostgres(db),
		Complaints:  cmstore.NewPostgres(db),
		Reports:     crstore.NewPostgres(db),
	}
}

type Upstreams struct {
	Registry registry.Registry
	Identity identity.Service
	Sealer   cmservice.Sealer
}

type Options struct {
	Logger              *slog.Logger
	Metrics             *metrics.Metrics
	NumberRetryAttempts int
}

// App holds the wired services.
type App struct {
	RefData     *refservice.Service
	Staff       *staffservice.Service
	CaseFiles   *cfservice.Service
	Inspections *irservice.Service
	Complaints  *cmservice.Service
	Reports     *crservice.Service

	registry registry.Registry
	logger   *slog.Logger
}

func New(stores Stores, up Upstreams, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	numbers := numbering.New(up.Registry, stores.CaseFiles, stores.Sequencer, numbering.WithLogger(logger))

	a := &App{registry: up.Registry, logger: logger}
	a.RefData = refservice.New(stores.RefData, stores.Tx, refservice.WithLogger(logger))
	a.Staff = staffservice.New(stores.Staff, stores.Tx, up.Identity, a.RefData,
		staffservice.WithLogger(logger),
		staffservice.WithVersionRecorder(stores.Versions),
	)
	a.Reports = crservice.New(stores.Reports, stores.Tx, stores.CaseFiles,
		crservice.WithLogger(logger),
		crservice.WithVersionRecorder(stores.Versions),
		crservice.WithMetrics(opts.Metrics),
	)
	a.CaseFiles = cfservice.New(stores.CaseFiles, stores.Tx, numbers, a.Staff, a.RefData, up.Registry,
		cfservice.WithLogger(logger),
		cfservice.WithVersionRecorder(stores.Versions),
		cfservice.WithMetrics(opts.Metrics),
		cfservice.WithJournal(a.Reports),
		cfservice.WithNumberRetryAttempts(opts.NumberRetryAttempts),
	)
	a.Inspections = irservice.New(stores.Inspections, stores.Tx, numbers, stores.CaseFiles, a.Staff, a.RefData, up.Registry,
		irservice.WithLogger(logger),
		irservice.WithVersionRecorder(stores.Versions),
		irservice.WithMetrics(opts.Metrics),
		irservice.WithJournal(a.Reports),
		irservice.WithNumberRetryAttempts(opts.NumberRetryAttempts),
	)
	a.Complaints = cmservice.New(stores.Complaints, stores.Tx, numbers, stores.CaseFiles, a.Staff, a.RefData, up.Registry, up.Sealer,
		cmservice.WithLogger(logger),
		cmservice.WithVersionRecorder(stores.Versions),
		cmservice.WithMetrics(opts.Metrics),
		cmservice.WithJournal(a.Reports),
		cmservice.WithNumberRetryAttempts(opts.NumberRetryAttempts),
	)
	return a
}

// Routes returns every component's handler, in mount order.
func (a *App) Routes() []httptransport.Routes {
	return []httptransport.Routes{
		refhandler.New(a.RefData, a.logger),
		staffhandler.New(a.Staff, a.logger),
		cfhandler.New(a.CaseFiles, a.logger),
		irhandler.New(a.Inspections, a.logger),
		cmhandler.New(a.Complaints, a.logger),
		crhandler.New(a.Reports, a.logger),
		registry.NewHandler(a.registry, a.logger),
	}
}

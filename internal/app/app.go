// Package app wires the local store, session, gateway and controllers into
// the pieces the console and the CLI share.
package app

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Joseda-hg/clutchdesk/internal/config"
	"github.com/Joseda-hg/clutchdesk/internal/db"
	"github.com/Joseda-hg/clutchdesk/internal/gateway"
	"github.com/Joseda-hg/clutchdesk/internal/model"
	"github.com/Joseda-hg/clutchdesk/internal/session"
	"github.com/Joseda-hg/clutchdesk/internal/tui"
	"github.com/Joseda-hg/clutchdesk/internal/viewstate"
)

type App struct {
	Store       *db.Store
	Session     *session.Store
	Client      *gateway.Client
	Registry    *prometheus.Registry
	Resources   Resources
	Controllers tui.Controllers

	sqlDB *sql.DB
}

// Resources are the endpoints behind the controllers, for one-shot reads
// that do not go through view state.
type Resources struct {
	Employees    *gateway.Resource[model.Employee]
	Appointments *gateway.Resource[model.Appointment]
	Inventory    *gateway.Resource[model.InventoryItem]
	Listings     *gateway.Resource[model.Listing]
}

// Open opens the local database at cfg.DBPath and builds the app on it.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if err := config.EnsureDir(cfg.DBPath); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	sqlDB, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, errors.Wrap(err, "open local db")
	}

	a, err := New(ctx, cfg, db.NewStore(sqlDB), logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	a.sqlDB = sqlDB
	return a, nil
}

// New builds the app on an already opened store.
func New(ctx context.Context, cfg config.Config, store *db.Store, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sess := session.NewStore(store)
	if cfg.Token != "" {
		if err := sess.SetTokens(ctx, cfg.Token, ""); err != nil {
			return nil, errors.Wrap(err, "seed session")
		}
	}

	registry := prometheus.NewRegistry()
	client, err := gateway.New(cfg.APIURL, sess,
		gateway.WithTimeout(cfg.Timeout),
		gateway.WithRefresher(sess),
		gateway.WithLogger(logger.Named("gateway")),
		gateway.WithMetrics(gateway.NewMetrics(registry)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create gateway")
	}

	metrics := viewstate.NewMetrics(registry)
	options := func(noun string) viewstate.Options {
		return viewstate.Options{
			Logger:   logger.Named("viewstate"),
			Metrics:  metrics,
			Noun:     noun,
			Validate: model.Validate,
		}
	}

	resources := Resources{
		Employees:    gateway.NewResource[model.Employee](client, model.EmployeesPath),
		Appointments: gateway.NewResource[model.Appointment](client, model.AppointmentsPath),
		Inventory:    gateway.NewResource[model.InventoryItem](client, model.InventoryPath),
		Listings:     gateway.NewResource[model.Listing](client, model.ListingsPath),
	}

	return &App{
		Store:     store,
		Session:   sess,
		Client:    client,
		Registry:  registry,
		Resources: resources,
		Controllers: tui.Controllers{
			Employees:    viewstate.New[model.Employee]("employees", resources.Employees, options("employee")),
			Appointments: viewstate.New[model.Appointment]("appointments", resources.Appointments, options("appointment")),
			Inventory:    viewstate.New[model.InventoryItem]("inventory", resources.Inventory, options("inventory item")),
			Listings:     viewstate.New[model.Listing]("listings", resources.Listings, options("listing")),
		},
	}, nil
}

// MetricsHandler serves the gateway and view-state metrics.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
}

func (a *App) Close() error {
	if a.sqlDB == nil {
		return nil
	}
	return a.sqlDB.Close()
}

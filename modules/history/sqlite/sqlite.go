// Package sqlite implements a SQLite-backed chat history module using
// modernc.org/sqlite (pure Go, no CGO). By default the database lives in
// memory; point Path at a file to keep transcripts on disk.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/scout/internal/core"
	"github.com/flemzord/scout/internal/history"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// ServiceName is the service under which the store is registered.
const ServiceName = history.StoreService

// Module provides a history.Store backed by SQLite.
type Module struct {
	config Config
	db     *sql.DB
	logger *slog.Logger
	store  *Store
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "history.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	store, db, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.db = db
	m.store = store

	ctx.RegisterService(ServiceName, history.Store(store))

	m.logger.Info("sqlite history module provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.db.PingContext(context.Background()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Start implements core.Starter. The database is opened during
// Provision; Start only marks the module as running so Stop closes it.
func (m *Module) Start() error { return nil }

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("sqlite history module stopping")
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Store returns the history store.
func (m *Module) Store() history.Store {
	return m.store
}

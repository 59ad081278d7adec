package imports

import (
	"time"

	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
	"github.com/iota-uz/iota-import/modules/imports/handlers"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/persistence"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/progress"
	"github.com/iota-uz/iota-import/modules/imports/presentation/controllers"
	"github.com/iota-uz/iota-import/modules/imports/services"
	"github.com/iota-uz/iota-import/pkg/application"
	"github.com/iota-uz/iota-import/pkg/outbox"
)

type ModuleOptions struct {
	Config services.Config
	// Progress defaults to an in-process store.
	Progress progress.Store
	// Storage and Sink default to Postgres and the import outbox.
	Storage services.Storage
	Sink    services.EventSink
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{Config: services.DefaultConfig}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	storage := m.options.Storage
	if storage == nil {
		storage = persistence.NewPgStorage()
	}
	var sink services.EventSink = m.options.Sink
	if sink == nil {
		sink = outbox.NewPublisher(OutboxTable)
	}
	progressStore := m.options.Progress
	if progressStore == nil {
		progressStore = progress.NewMemoryStore(time.Hour)
	}

	svc := services.NewImportService(schema.Default(), storage, sink, progressStore, app.EventPublisher(), m.options.Config)
	app.RegisterServices(svc)
	if bus := app.EventPublisher(); bus != nil {
		handlers.RegisterOutboxHandlers(bus, app.Logger())
	}
	app.RegisterControllers(
		controllers.NewImportAPIController(app, m.options.Config.MaxFileBytes),
	)
	return nil
}

func (m *Module) Name() string {
	return "imports"
}

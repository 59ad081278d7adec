package modules_test

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/iota-import/modules"
	"github.com/iota-uz/iota-import/modules/imports"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/persistence"
	"github.com/iota-uz/iota-import/modules/imports/services"
	"github.com/iota-uz/iota-import/pkg/application"
)

type failingModule struct{}

func (failingModule) Register(application.Application) error { return errors.New("boom") }
func (failingModule) Name() string                           { return "failing" }

func newApp() application.Application {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return application.New(&application.ApplicationOptions{Logger: log})
}

func TestLoad_RegistersImportsModule(t *testing.T) {
	app := newApp()
	store := persistence.NewMemoryStore()
	require.NoError(t, modules.Load(app, imports.NewModule(&imports.ModuleOptions{
		Config:  services.DefaultConfig,
		Storage: store,
		Sink:    store,
	})))

	require.IsType(t, &services.ImportService{}, app.Service(services.ImportService{}))
	require.Len(t, app.Controllers(), 1)
	require.Equal(t, "/api/imports", app.Controllers()[0].Key())
}

func TestLoad_RejectsDuplicatesAndWrapsErrors(t *testing.T) {
	store := persistence.NewMemoryStore()
	opts := &imports.ModuleOptions{Storage: store, Sink: store}
	err := modules.Load(newApp(), imports.NewModule(opts), imports.NewModule(opts))
	require.ErrorContains(t, err, `module "imports" loaded twice`)

	err = modules.Load(newApp(), failingModule{})
	require.ErrorContains(t, err, `register module "failing": boom`)
}

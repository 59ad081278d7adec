package modules

import (
	"github.com/go-faster/errors"

	"github.com/iota-uz/iota-import/pkg/application"
)

// Load registers modules in order. A module name may only be loaded once.
func Load(app application.Application, externalModules ...application.Module) error {
	loaded := make(map[string]struct{}, len(externalModules))
	for _, module := range externalModules {
		name := module.Name()
		if _, dup := loaded[name]; dup {
			return errors.Errorf("module %q loaded twice", name)
		}
		if err := module.Register(app); err != nil {
			return errors.Wrapf(err, "register module %q", name)
		}
		loaded[name] = struct{}{}
		app.Logger().WithField("module", name).Debug("module registered")
	}
	return nil
}

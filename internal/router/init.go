package router

import (
	"github.com/oksasatya/barterx-accounts/internal/container"
	handlers "github.com/oksasatya/barterx-accounts/internal/interface/http"
	"github.com/oksasatya/barterx-accounts/internal/router/modules"
)

// InitModules wires handlers from the container and registers them with the registry.
// Call once during startup, before RegisterAll.
func InitModules(r *Registry, c *container.Container) {
	r.Add(modules.NewAccountModule(handlers.NewAccountHandler(c.Accounts, c.Logger), c.Redis))
	r.Add(modules.NewOnboardingModule(handlers.NewOnboardingHandler(c.Profiles, c.Logger), c.Redis))
	if c.Config.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(c.Redis))
	}
}

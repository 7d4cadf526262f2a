package instanceservice

import (
	"log/slog"

	httpadapter "bastion/contexts/identity-access/instance-service/adapters/http"
	"bastion/contexts/identity-access/instance-service/adapters/memory"
	"bastion/contexts/identity-access/instance-service/application"
	"bastion/contexts/identity-access/instance-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Store       ports.Store
	Catalog     ports.CapabilityCatalog
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Store:   deps.Store,
		Catalog: deps.Catalog,
		Clock:   deps.Clock,
		IDGen:   deps.IDGenerator,
		Logger:  deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(catalog ports.CapabilityCatalog, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Store:       store,
		Catalog:     catalog,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}

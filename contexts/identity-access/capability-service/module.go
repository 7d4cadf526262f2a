package capabilityservice

import (
	"log/slog"

	httpadapter "bastion/contexts/identity-access/capability-service/adapters/http"
	"bastion/contexts/identity-access/capability-service/adapters/memory"
	"bastion/contexts/identity-access/capability-service/application"
	"bastion/contexts/identity-access/capability-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repository  ports.Repository
	Directory   ports.Directory
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
	GroupCheck  bool
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:       deps.Repository,
		Directory:  deps.Directory,
		Clock:      deps.Clock,
		IDGen:      deps.IDGenerator,
		Logger:     deps.Logger,
		GroupCheck: deps.GroupCheck,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(directory ports.Directory, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		Directory:   directory,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
		GroupCheck:  directory != nil,
	})
	module.Store = store
	return module
}

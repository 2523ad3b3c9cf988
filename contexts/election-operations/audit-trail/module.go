package audittrail

import (
	"log/slog"
	"time"

	httpadapter "ballotbox/contexts/election-operations/audit-trail/adapters/http"
	"ballotbox/contexts/election-operations/audit-trail/adapters/memory"
	"ballotbox/contexts/election-operations/audit-trail/application/queries"
	"ballotbox/contexts/election-operations/audit-trail/application/workers"
	"ballotbox/contexts/election-operations/audit-trail/domain/entities"
	"ballotbox/contexts/election-operations/audit-trail/ports"
)

type Module struct {
	Handler  httpadapter.Handler
	Trail    queries.TrailUseCase
	Consumer workers.VoteEventConsumer
	Store    *memory.Store
}

type Dependencies struct {
	Entries       ports.AuditRepository
	Dedup         ports.EventDedupStore
	Subscriber    ports.EventSubscriber
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) Module {
	trailUseCase := queries.TrailUseCase{
		Entries: deps.Entries,
	}
	return Module{
		Handler: httpadapter.Handler{
			Trail:  trailUseCase,
			Logger: deps.Logger,
		},
		Trail: trailUseCase,
		Consumer: workers.VoteEventConsumer{
			Subscriber:    deps.Subscriber,
			Dedup:         deps.Dedup,
			Entries:       deps.Entries,
			Clock:         deps.Clock,
			IDGen:         deps.IDGen,
			ConsumerGroup: deps.ConsumerGroup,
			DedupTTL:      deps.DedupTTL,
			Disabled:      deps.Disabled,
			Logger:        deps.Logger,
		},
	}
}

func NewInMemoryModule(seed []entities.AuditEntry, subscriber ports.EventSubscriber, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Entries:    store,
		Dedup:      store,
		Subscriber: subscriber,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}

package votecoordinator

import (
	"log/slog"

	httpadapter "ballotbox/contexts/election-operations/vote-coordinator/adapters/http"
	"ballotbox/contexts/election-operations/vote-coordinator/adapters/memory"
	"ballotbox/contexts/election-operations/vote-coordinator/application/commands"
	"ballotbox/contexts/election-operations/vote-coordinator/application/queries"
	"ballotbox/contexts/election-operations/vote-coordinator/domain/entities"
	"ballotbox/contexts/election-operations/vote-coordinator/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Ballots commands.BallotUseCase
	Results queries.ResultsUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Directory ports.ElectionDirectory
	Ledger    ports.BallotLedger
	Tallies   ports.TallyReader
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	ballotUseCase := commands.BallotUseCase{
		Directory: deps.Directory,
		Ledger:    deps.Ledger,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	resultsUseCase := queries.ResultsUseCase{
		Directory: deps.Directory,
		Tallies:   deps.Tallies,
		Ledger:    deps.Ledger,
		Clock:     deps.Clock,
	}
	return Module{
		Handler: httpadapter.Handler{
			Ballots: ballotUseCase,
			Results: resultsUseCase,
			Logger:  deps.Logger,
		},
		Ballots: ballotUseCase,
		Results: resultsUseCase,
	}
}

func NewInMemoryModule(seed []entities.Ballot, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Directory: store,
		Ledger:    store,
		Tallies:   store,
		Outbox:    store,
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}

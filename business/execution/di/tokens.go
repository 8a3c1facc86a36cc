// Package di contains dependency injection tokens for the execution context.
package di

import (
	"github.com/fd1az/futarchy-arbitrage/business/execution/app"
	"github.com/fd1az/futarchy-arbitrage/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ExecutionService = di.NewToken[*app.ExecutionService]("execution.ExecutionService")
)

// Private dependency tokens - internal to execution module
var (
	Coordinator = di.NewToken[*app.Coordinator]("execution:coordinator")
	Backend     = di.NewToken[app.Backend]("execution:backend")
	Journal     = di.NewToken[app.Journal]("execution:journal")
)

func GetExecutionService(c di.ServiceRegistry) *app.ExecutionService {
	return di.GetToken(c, ExecutionService)
}

func GetCoordinator(c di.ServiceRegistry) *app.Coordinator {
	return di.GetToken(c, Coordinator)
}

func GetBackend(c di.ServiceRegistry) app.Backend {
	return di.GetToken(c, Backend)
}

// GetJournal returns nil when no journal database is configured.
func GetJournal(c di.ServiceRegistry) app.Journal {
	return di.GetToken(c, Journal)
}

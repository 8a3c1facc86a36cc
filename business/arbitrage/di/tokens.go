// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/futarchy-arbitrage/business/arbitrage/app"
	"github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Scanner        = di.NewToken[*app.Scanner]("arbitrage.Scanner")
	StrategyEngine = di.NewToken[*app.StrategyEngine]("arbitrage.StrategyEngine")
)

// Private dependency tokens - internal to arbitrage module
var (
	Reporter    = di.NewToken[app.Reporter]("arbitrage:reporter")
	Accumulator = di.NewToken[*domain.ProfitAccumulator]("arbitrage:accumulator")
)

func GetScanner(c di.ServiceRegistry) *app.Scanner {
	return di.GetToken(c, Scanner)
}

func GetStrategyEngine(c di.ServiceRegistry) *app.StrategyEngine {
	return di.GetToken(c, StrategyEngine)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}

func GetAccumulator(c di.ServiceRegistry) *domain.ProfitAccumulator {
	return di.GetToken(c, Accumulator)
}

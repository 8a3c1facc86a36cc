// Package di contains dependency injection tokens for the futarchy context.
package di

import (
	"github.com/fd1az/futarchy-arbitrage/business/futarchy/app"
	"github.com/fd1az/futarchy-arbitrage/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ProposalLoader = di.NewToken[*app.ProposalLoader]("futarchy.ProposalLoader")
	TokenResolver  = di.NewToken[app.TokenResolver]("futarchy.TokenResolver")
)

// Private dependency tokens - internal to futarchy module
var (
	ProposalReader = di.NewToken[app.ProposalReader]("futarchy:proposalReader")
	PoolLocator    = di.NewToken[app.PoolLocator]("futarchy:poolLocator")
)

func GetProposalLoader(c di.ServiceRegistry) *app.ProposalLoader {
	return di.GetToken(c, ProposalLoader)
}

func GetTokenResolver(c di.ServiceRegistry) app.TokenResolver {
	return di.GetToken(c, TokenResolver)
}

func GetProposalReader(c di.ServiceRegistry) app.ProposalReader {
	return di.GetToken(c, ProposalReader)
}

func GetPoolLocator(c di.ServiceRegistry) app.PoolLocator {
	return di.GetToken(c, PoolLocator)
}

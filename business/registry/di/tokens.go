// Package di contains dependency injection tokens for the registry context.
package di

import (
	"github.com/fd1az/sandwich-bot/business/registry/app"
	"github.com/fd1az/sandwich-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Loader = di.NewToken[*app.Loader]("registry.Loader")
)

// Private dependency tokens - internal to registry module
var (
	PairSource  = di.NewToken[app.PairSource]("registry:pairSource")
	TokenSource = di.NewToken[app.TokenSource]("registry:tokenSource")
	Store       = di.NewToken[app.Store]("registry:store")
)

func GetLoader(c di.ServiceRegistry) *app.Loader {
	return di.GetToken(c, Loader)
}

func GetPairSource(c di.ServiceRegistry) app.PairSource {
	return di.GetToken(c, PairSource)
}

func GetTokenSource(c di.ServiceRegistry) app.TokenSource {
	return di.GetToken(c, TokenSource)
}

func GetStore(c di.ServiceRegistry) app.Store {
	return di.GetToken(c, Store)
}

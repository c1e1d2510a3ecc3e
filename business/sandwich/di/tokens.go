// Package di contains dependency injection tokens for the sandwich context.
package di

import (
	"github.com/fd1az/sandwich-bot/business/sandwich/app"
	"github.com/fd1az/sandwich-bot/business/sandwich/infra/postgres"
	"github.com/fd1az/sandwich-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Strategy = di.NewToken[*app.Strategy]("sandwich.Strategy")
)

// Private dependency tokens - internal to sandwich module
var (
	Simulator = di.NewToken[*app.TraceSimulator]("sandwich:simulator")
	Reporter  = di.NewToken[app.Reporter]("sandwich:reporter")
	Store     = di.NewToken[*postgres.Store]("sandwich:store")
)

func GetStrategy(c di.ServiceRegistry) *app.Strategy {
	return di.GetToken(c, Strategy)
}

func GetSimulator(c di.ServiceRegistry) *app.TraceSimulator {
	return di.GetToken(c, Simulator)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}

func GetStore(c di.ServiceRegistry) *postgres.Store {
	return di.GetToken(c, Store)
}

//go:build wireinject
// +build wireinject

package di

import (
	"TradePulse/pkg/config"
	"TradePulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// The cleanup closes clients in reverse construction order and must run
// after App.Run returns.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideRegistry,
		ProvideMetrics,
		ProvideKafkaProducer,
		ProvideLogger,

		// Infrastructure clients and repositories
		ProvideCache,
		ProvidePostgresClient,
		ProvideAlertStore,
		ProvideClickHouseClient,
		ProvideAlertPublisher,

		// Engine
		ProvideOutbox,
		ProvideOutputDispatcher,
		ProvideIngressRouter,
		ProvideTradeArchiver,
		ProvideTradesHandler,
		ProvideKafkaConsumer,
		ProvideEmissionScheduler,

		// Ops API and application
		ProvideOpsHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

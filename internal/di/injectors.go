//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"fruitvision/internal"
	"fruitvision/internal/classifier"
	"fruitvision/internal/controllers"
	"fruitvision/internal/providers"
	"fruitvision/internal/storage"
	"fruitvision/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewInstrumentedCacheProvider,
		providers.NewMetricsProvider,

		storage.NewConnectionProvider,
		storage.NewRecordStore,
		storage.NewAnalyticsEngine,
		classifier.NewLabelClassifier,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}

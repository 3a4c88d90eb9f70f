package internal

import (
	"net/http"

	"fruitvision/internal/controllers"
	"fruitvision/internal/providers"
	"fruitvision/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/predict", http.HandlerFunc(apiController.Predict))
	routers.Post("/batch-predict", http.HandlerFunc(apiController.BatchPredict))
	routers.Get("/history", http.HandlerFunc(apiController.History))
	routers.Delete("/history", http.HandlerFunc(apiController.DeleteHistory))
	routers.Get("/analytics", http.HandlerFunc(apiController.Analytics))
	routers.Get("/fruits", http.HandlerFunc(apiController.Fruits))
	routers.Get("/labels", http.HandlerFunc(apiController.Labels))
	return routers
}

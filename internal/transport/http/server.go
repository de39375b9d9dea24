package http

import (
	"github.com/gin-gonic/gin"

	appsvc "messageboard/internal/app"
	"messageboard/internal/bootstrap"
	"messageboard/internal/repository"
	"messageboard/internal/transport/http/handler"
	"messageboard/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger), gin.Recovery(), middleware.CORS())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	messageRepo := repository.NewMessageRepository(app.DB)
	opts := []appsvc.Option{}
	if app.Cache != nil {
		opts = append(opts, appsvc.WithCache(app.Cache))
	}
	if app.Publisher != nil {
		opts = append(opts, appsvc.WithPublisher(app.Publisher))
	}
	messageService := appsvc.NewMessageService(messageRepo, app.Logger, opts...)
	messageHandler := handler.NewMessageHandler(messageService)

	messages := router.Group("/messages")
	messages.GET("", messageHandler.List)
	messages.POST("", messageHandler.Create)
	messages.GET("/:id", messageHandler.Get)
	messages.PATCH("/:id", messageHandler.Update)
	messages.DELETE("/:id", messageHandler.Delete)

	return router
}

package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"waselni/internal/handler"
	"waselni/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	Sessions handler.Sessions
	// ResponseCache backs idempotent POST/PATCH requests; nil disables it.
	ResponseCache middleware.ResponseCache
	NewRelicApp   *newrelic.Application
	Logger        logrus.FieldLogger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	catalog := handler.NewCatalogHandler(deps.Sessions)
	home := handler.NewHomeHandler(deps.Sessions)
	trip := handler.NewTripHandler(deps.Sessions)
	drive := handler.NewDriveHandler(deps.Sessions)
	safety := handler.NewSafetyHandler(deps.Sessions)
	profile := handler.NewProfileHandler(deps.Sessions)
	sess := handler.NewSessionHandler(deps.Sessions)

	v1 := router.Group("/v1")
	v1.Use(middleware.IdentityMiddleware())
	v1.Use(middleware.LanguageMiddleware())
	v1.Use(middleware.IdempotencyMiddleware(deps.ResponseCache, deps.Logger))
	{
		// Home screen.
		v1.GET("/drivers/nearby", home.NearbyDrivers)
		v1.GET("/drivers", home.Drivers)
		v1.GET("/universities", home.Universities)
		v1.GET("/universities/nearest", home.NearestUniversity)

		// Booking screen.
		v1.GET("/vehicle-types", catalog.VehicleTypes)

		trips := v1.Group("/trips")
		{
			trips.POST("", trip.CreateTrip)
			trips.GET("", trip.GetAll)
			trips.GET("/stream", trip.Stream)
			trips.GET("/:id", trip.GetTrip)
			trips.PATCH("/:id", trip.UpdateTrip)
			trips.POST("/:id/cancel", trip.CancelTrip)
			trips.POST("/:id/rate", trip.RateTrip)
		}

		drives := v1.Group("/drive")
		{
			drives.GET("", drive.Get)
			drives.POST("/online", drive.SetOnline)
			drives.POST("/location", drive.UpdateLocation)
		}

		safetyRoutes := v1.Group("/safety")
		{
			safetyRoutes.GET("/contacts", catalog.EmergencyContacts)
			safetyRoutes.GET("/reports", safety.Reports)
			safetyRoutes.POST("/reports", safety.Submit)
		}

		profiles := v1.Group("/profile")
		{
			profiles.GET("", profile.Get)
			profiles.POST("", profile.Create)
			profiles.PATCH("", profile.Update)
		}

		sessions := v1.Group("/session")
		{
			sessions.PUT("/language", sess.SetLanguage)
			sessions.DELETE("", sess.End)
		}
	}

	return router
}

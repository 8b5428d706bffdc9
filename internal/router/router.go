package router

import (
	"booking-service/internal/handlers"
	"booking-service/internal/middleware"
	"booking-service/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func Router(svc service.BookingService, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Tracing(), middleware.RequestLogger(log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", "Retry-After", middleware.HeaderRequestID},
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	h := handlers.NewReservationHandler(svc, log)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/reservations", h.CreateReservation)
		v1.GET("/reservations", h.ListReservations)
		v1.GET("/reservations/:id", h.GetReservation)
		v1.PATCH("/reservations/:id/status", h.ChangeStatus)
		v1.GET("/reservations/by-reference/:reference", h.GetReservationByReference)
		v1.GET("/availability", h.CheckAvailability)
	}

	return r
}

package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/phraser/location-server/internal/api/handlers"
)

type Deps struct {
	Location *handlers.LocationHandler
	WS       *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.POST("/geocode", d.Location.Geocode)
	r.POST("/api/location", d.Location.Locate)

	r.GET("/ws/location", d.WS.LocationWS)
}

package routes

import (
	"github.com/gin-gonic/gin"

	"soldeser/internal/controllers"
)

// WebSocketRoutes authenticates inside the handler: browsers pass the token as a query parameter.
func WebSocketRoutes(r *gin.Engine, hub *controllers.AttendanceHub) {
	wsRoutes := r.Group("/ws")
	{
		wsRoutes.GET("/attendance", hub.HandleAttendanceWebSocket)
	}
}

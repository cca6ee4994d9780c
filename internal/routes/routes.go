package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"soldeser/internal/controllers"
	"soldeser/internal/middleware"
)

// Deps are the controllers the router mounts.
type Deps struct {
	Auth      *controllers.AuthController
	Clock     *controllers.ClockController
	Sync      *controllers.SyncController
	Worksites *controllers.WorksiteController
	Export    *controllers.ExportController
	Admin     *controllers.AdminController
	Hub       *controllers.AttendanceHub
}

// SetupRouter builds the engine. Extra middleware (CORS, the access logger) runs
// after recovery and request ids.
func SetupRouter(d Deps, mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID())
	r.Use(mw...)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	AuthRoutes(r, d.Auth)
	ClockRoutes(r, d.Clock)
	SyncRoutes(r, d.Sync)
	WorksiteRoutes(r, d.Worksites)
	AdminRoutes(r, d.Auth, d.Admin, d.Export)
	WebSocketRoutes(r, d.Hub)

	return r
}

package routes

import (
	"github.com/gin-gonic/gin"

	"soldeser/internal/controllers"
	"soldeser/internal/middleware"
)

func ClockRoutes(r *gin.Engine, cc *controllers.ClockController) {
	clock := r.Group("/clock")
	clock.Use(middleware.RequireAuth())
	{
		clock.POST("/in", cc.ClockIn)
		clock.POST("/out", cc.ClockOut)
		clock.GET("/status", cc.Status)
		clock.GET("/history", cc.History)
		clock.GET("/today", cc.Today)
	}
}

func SyncRoutes(r *gin.Engine, sc *controllers.SyncController) {
	sync := r.Group("/sync")
	sync.Use(middleware.RequireAuth())
	{
		sync.POST("/clock-records", sc.SyncClockRecords)
		sync.GET("/status", sc.SyncStatus)
		sync.GET("/worksites", sc.SyncWorksites)
	}
}

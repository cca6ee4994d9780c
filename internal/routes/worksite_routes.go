package routes

import (
	"github.com/gin-gonic/gin"

	"soldeser/internal/controllers"
	"soldeser/internal/middleware"
	"soldeser/internal/models"
)

func WorksiteRoutes(r *gin.Engine, wc *controllers.WorksiteController) {
	supervisors := middleware.RequireRole(models.RoleSupervisor, models.RoleAdmin)
	admins := middleware.RequireRole(models.RoleAdmin)

	ws := r.Group("/worksites")
	{
		ws.GET("", middleware.RequireAuth(), wc.ListWorksites)
		ws.GET("/:id", middleware.RequireAuth(), wc.GetWorksite)
		ws.POST("", admins, wc.CreateWorksite)
		ws.PUT("/:id", admins, wc.UpdateWorksite)
		ws.DELETE("/:id", admins, wc.DeactivateWorksite)

		ws.POST("/:id/assignments", supervisors, wc.AssignWorker)
		ws.DELETE("/:id/assignments/:userId", supervisors, wc.UnassignWorker)
		ws.GET("/:id/workers", supervisors, wc.ListWorkers)
		ws.GET("/:id/clock-records", supervisors, wc.ListClockRecords)
	}
}

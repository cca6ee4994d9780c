package routes

import (
	"github.com/gin-gonic/gin"

	"soldeser/internal/controllers"
	"soldeser/internal/middleware"
	"soldeser/internal/models"
)

func AdminRoutes(r *gin.Engine, ac *controllers.AuthController, adm *controllers.AdminController, ec *controllers.ExportController) {
	supervisors := middleware.RequireRole(models.RoleSupervisor, models.RoleAdmin)

	admin := r.Group("/admin")
	{
		admin.POST("/users", middleware.RequireRole(models.RoleAdmin), ac.CreateUser)
		admin.GET("/active-workers", supervisors, adm.ActiveWorkers)
		admin.GET("/attendance-report", supervisors, adm.AttendanceReport)
	}

	export := r.Group("/export")
	export.Use(supervisors)
	{
		export.GET("/clock-records/xlsx", ec.ExportTimesheet)
	}
}

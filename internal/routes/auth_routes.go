package routes

import (
	"github.com/gin-gonic/gin"

	"soldeser/internal/controllers"
	"soldeser/internal/middleware"
)

func AuthRoutes(r *gin.Engine, ac *controllers.AuthController) {
	auth := r.Group("/auth")
	{
		auth.POST("/signup", ac.Signup)
		auth.POST("/login", ac.Login)
		auth.GET("/me", middleware.RequireAuth(), ac.Me)
	}
}

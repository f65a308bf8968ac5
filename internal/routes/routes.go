package routes

import (
	"github.com/gin-gonic/gin"

	"secure-ehr-gateway/internal/config"
	"secure-ehr-gateway/internal/credential"
	"secure-ehr-gateway/internal/handlers"
	"secure-ehr-gateway/internal/middleware"
	"secure-ehr-gateway/internal/models"
	"secure-ehr-gateway/internal/service"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, credentials *credential.Manager, patients *service.PatientService, cfg *config.Config) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(credentials, cfg)
	patientHandler := handlers.NewPatientHandler(patients)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg)) // Apply JWT authentication middleware
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/rotate-password", authHandler.RotatePassword)
		}

		patientRoutes := private.Group("/patients")
		{
			// The write path is role H only; the service checks again.
			patientRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleH), patientHandler.InsertPatient)
			patientRoutes.PUT("/:id", middleware.RoleAuthMiddleware(models.RoleH), patientHandler.UpdatePatient)

			// Both roles read; redaction happens in the service per mask.
			patientRoutes.GET("", patientHandler.QueryPatients)
			patientRoutes.GET("/:id", patientHandler.GetPatient)
		}

		// Digest manifest export for client-side caching
		private.GET("/manifest", patientHandler.ExportManifest)
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}

package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"attendance-backend/internal/attendance"
	"attendance-backend/internal/clock"
	"attendance-backend/internal/config"
	"attendance-backend/internal/handlers"
	"attendance-backend/internal/middleware"
	"attendance-backend/internal/models"
	"attendance-backend/internal/notify"
	"attendance-backend/internal/store"
)

// Deps carries the shared collaborators the route handlers need.
type Deps struct {
	DB    *gorm.DB
	Cfg   config.Config
	Clock clock.Clock
	Hub   *notify.Hub
}

// Register wires every handler and returns the reconciler so the caller can
// hand it to the scheduler.
func Register(router *gin.Engine, deps Deps) *attendance.Reconciler {
	router.Use(corsMiddleware(deps.Cfg.AllowedOriginsRaw))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "attendance-backend"})
	})
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", gin.WrapH(deps.Hub))
	router.Static("/uploads", deps.Cfg.UploadDir)

	sessions := store.NewSessionStore(deps.DB)
	ledger := store.NewLedger(deps.DB)
	roster := store.NewRoster(deps.DB)

	evaluator := attendance.NewEvaluator(sessions, ledger, deps.Clock, deps.Hub)
	reconciler := attendance.NewReconciler(ledger, roster, deps.Clock, deps.Hub)

	authHandler := handlers.NewAuthHandler(deps.DB, deps.Cfg)
	studentHandler := handlers.NewStudentHandler(deps.DB, evaluator, ledger, ledger, deps.Clock, deps.Hub, deps.Cfg.UploadDir)
	sessionHandler := handlers.NewSessionHandler(deps.DB, deps.Clock, deps.Hub)
	adminHandler := handlers.NewAdminHandler(deps.DB, deps.Clock, reconciler, deps.Hub)
	reportHandler := handlers.NewReportHandler(deps.DB)
	commonHandler := handlers.NewCommonHandler(deps.DB)

	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthRequired(deps.Cfg.JwtSecret))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/me", authHandler.Me)
		protected.PUT("/me", authHandler.UpdateProfile)
		protected.PUT("/me/password", authHandler.ChangePassword)

		protected.GET("/common/classes", commonHandler.Classes)
		protected.GET("/common/subjects", commonHandler.ListSubjects)
		protected.POST("/common/subjects", middleware.RequireAnyRole(models.RoleAdmin), commonHandler.CreateSubject)

		// Read-only session views for every authenticated role; the list is
		// scoped per role inside the handler.
		protected.GET("/sessions", sessionHandler.List)
		protected.GET("/sessions/:id", sessionHandler.Get)
		protected.GET("/sessions/:id/qr", sessionHandler.QR)

		student := protected.Group("/student", middleware.RequireAnyRole(models.RoleStudent))
		{
			student.POST("/attendance/scan", studentHandler.Scan)
			student.POST("/leave", studentHandler.SubmitLeave)
			student.GET("/history", studentHandler.History)
			student.GET("/stats", studentHandler.Stats)
			student.GET("/analytics", studentHandler.Analytics)
		}

		teaching := protected.Group("/teacher", middleware.RequireAnyRole(models.RoleTeacher, models.RoleAdmin))
		{
			teaching.POST("/sessions", sessionHandler.Create)
			teaching.GET("/sessions", sessionHandler.List)
			teaching.GET("/sessions/:id", sessionHandler.Get)
			teaching.GET("/sessions/:id/qr", sessionHandler.QR)
			teaching.PUT("/sessions/:id", sessionHandler.Update)
			teaching.DELETE("/sessions/:id", sessionHandler.Delete)
		}

		admin := protected.Group("/admin", middleware.RequireAnyRole(models.RoleAdmin))
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users", adminHandler.CreateUser)
			admin.GET("/users/:id", adminHandler.GetUser)
			admin.PUT("/users/:id", adminHandler.UpdateUser)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
			admin.PUT("/users/:id/password", adminHandler.ResetPassword)
			admin.PUT("/users/:id/device", adminHandler.ResetDeviceLock)
			admin.GET("/device-sessions", adminHandler.ListDeviceSessions)

			admin.GET("/leave", adminHandler.ListLeaveRequests)
			admin.PATCH("/leave/:id/approve", adminHandler.ApproveLeave)
			admin.PATCH("/leave/:id/reject", adminHandler.RejectLeave)
			admin.DELETE("/leave/:id", adminHandler.DeleteLeave)

			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.GET("/reports/export", reportHandler.Export)
			admin.POST("/reconcile", adminHandler.Reconcile)
		}
	}

	return reconciler
}

func corsMiddleware(allowed string) gin.HandlerFunc {
	origins := []string{}
	for _, origin := range strings.Split(allowed, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}

	allowAll := len(origins) == 0

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowedOrigin := range origins {
				if origin == allowedOrigin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					c.Writer.Header().Set("Vary", "Origin")
					break
				}
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

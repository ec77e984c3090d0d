package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"medlink-server/internal/chat"
	"medlink-server/internal/config"
	"medlink-server/internal/handlers"
	"medlink-server/internal/logger"
	"medlink-server/internal/middleware"
	"medlink-server/internal/models"
	"medlink-server/internal/scheduling"
)

// Server bundles the long-lived dependencies shared by the handlers.
type Server struct {
	DB         *gorm.DB
	Cfg        *config.Config
	Log        *logger.Logger
	Registry   *prometheus.Registry
	Scheduling *scheduling.Service
	Hub        *chat.Hub
	Chat       *chat.Service
}

// NewServer wires the domain services on top of db.
func NewServer(db *gorm.DB, cfg *config.Config, log *logger.Logger) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := chat.NewHub(log)
	reminders := scheduling.NewReminderScheduler(time.Duration(cfg.ReminderLeadHours) * time.Hour)
	return &Server{
		DB:         db,
		Cfg:        cfg,
		Log:        log,
		Registry:   reg,
		Scheduling: scheduling.NewService(scheduling.NewGormStore(db), reminders, scheduling.NewMetrics(reg), log),
		Hub:        hub,
		Chat:       chat.NewService(db, hub),
	}
}

// NewRouter builds the gin engine with the global middleware stack and every
// route mounted.
func NewRouter(s *Server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(s.Log))
	router.Use(middleware.NewHTTPMetrics(s.Registry).Handler())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{s.Cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	SetupRoutes(router, s)
	return router
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, s *Server) {
	authHandler := handlers.NewAuthHandler(s.DB, s.Cfg, s.Log)
	userHandler := handlers.NewUserHandler(s.DB)
	profileHandler := handlers.NewProfileHandler(s.DB)
	reviewHandler := handlers.NewReviewHandler(s.DB)
	appointmentHandler := handlers.NewAppointmentHandler(s.Scheduling)
	medicalFileHandler := handlers.NewMedicalFileHandler(s.DB, s.Cfg)
	chatHandler := handlers.NewChatHandler(s.Chat, s.Hub, s.Cfg, s.Log)

	staff := middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleReceptionist)
	adminOnly := middleware.RoleAuthMiddleware(models.RoleAdmin)
	doctorOnly := middleware.RoleAuthMiddleware(models.RoleDoctor)
	patientOnly := middleware.RoleAuthMiddleware(models.RolePatient)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(s.Cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		userRoutes := private.Group("/users")
		{
			userRoutes.GET("/patients", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin, models.RoleReceptionist), userHandler.GetPatients)

			adminRoutes := userRoutes.Group("")
			adminRoutes.Use(adminOnly)
			{
				adminRoutes.POST("", userHandler.CreateUser)
				adminRoutes.GET("", userHandler.GetUsers)
				adminRoutes.GET("/:id", userHandler.GetUserByID)
				adminRoutes.PUT("/:id", userHandler.UpdateUser)
				adminRoutes.DELETE("/:id", userHandler.DeleteUser)
			}
		}

		profileRoutes := private.Group("/profiles")
		{
			profileRoutes.GET("/patient", patientOnly, profileHandler.GetPatientProfile)
			profileRoutes.PUT("/patient", patientOnly, profileHandler.UpdatePatientProfile)
			profileRoutes.GET("/doctor", doctorOnly, profileHandler.GetDoctorProfile)
			profileRoutes.PUT("/doctor", doctorOnly, profileHandler.UpdateDoctorProfile)
			profileRoutes.POST("/doctor/specializations", doctorOnly, profileHandler.AssignSpecialization)
		}

		private.GET("/doctors", profileHandler.ListDoctors)
		private.GET("/doctors/:id", profileHandler.GetDoctor)

		specRoutes := private.Group("/specializations")
		{
			specRoutes.GET("", profileHandler.ListSpecializations)
			specRoutes.POST("", adminOnly, profileHandler.CreateSpecialization)
			specRoutes.PUT("/:id", adminOnly, profileHandler.UpdateSpecialization)
			specRoutes.DELETE("/:id", adminOnly, profileHandler.DeleteSpecialization)
		}

		reviewRoutes := private.Group("/reviews")
		{
			reviewRoutes.POST("", reviewHandler.CreateReview)
			reviewRoutes.GET("", reviewHandler.ListReviews)
		}

		// Authorization for the workflow lives in scheduling.Service.
		requestRoutes := private.Group("/appointment-requests")
		{
			requestRoutes.POST("", appointmentHandler.CreateRequest)
			requestRoutes.GET("", appointmentHandler.ListRequests)
			requestRoutes.GET("/:id", appointmentHandler.GetRequest)
			requestRoutes.POST("/:id/accept", appointmentHandler.Accept)
			requestRoutes.POST("/:id/reject", appointmentHandler.Reject)
			requestRoutes.POST("/:id/cancel", appointmentHandler.Cancel)
		}

		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.GET("", appointmentHandler.ListAppointments)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointment)
			appointmentRoutes.POST("/:id/confirm", appointmentHandler.Confirm)
			appointmentRoutes.POST("/:id/reschedule", appointmentHandler.Reschedule)
			appointmentRoutes.GET("/:id/reminders", appointmentHandler.ListReminders)
		}

		reminderRoutes := private.Group("/reminders")
		reminderRoutes.Use(staff)
		{
			reminderRoutes.GET("/due", appointmentHandler.DueReminders)
			reminderRoutes.POST("/:id/sent", appointmentHandler.MarkReminderSent)
		}

		fileRoutes := private.Group("/medical/files")
		{
			fileRoutes.POST("", medicalFileHandler.Upload)
			fileRoutes.GET("", medicalFileHandler.List)
			fileRoutes.GET("/:id", medicalFileHandler.Get)
			fileRoutes.GET("/:id/download", medicalFileHandler.Download)
			fileRoutes.PUT("/:id", medicalFileHandler.Update)
			fileRoutes.DELETE("/:id", medicalFileHandler.Delete)
		}

		chatRoutes := private.Group("/chats")
		{
			chatRoutes.POST("", chatHandler.CreateThread)
			chatRoutes.GET("", chatHandler.ListThreads)
			chatRoutes.GET("/:id/messages", chatHandler.ListMessages)
			chatRoutes.POST("/:id/messages", chatHandler.PostMessage)
		}
		private.POST("/messages/:id/read", chatHandler.MarkRead)
		private.GET("/messages/:id/attachment", chatHandler.DownloadAttachment)

		// Browsers pass the token as a query parameter on this route.
		private.GET("/ws/chat/:id", chatHandler.ServeWS)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))
}

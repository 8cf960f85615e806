package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/pqrs_dashboard/backend/internal/access"
	"github.com/pqrs_dashboard/backend/internal/auth"
	"github.com/pqrs_dashboard/backend/internal/config"
	"github.com/pqrs_dashboard/backend/internal/files"
	"github.com/pqrs_dashboard/backend/internal/http/handlers"
	"github.com/pqrs_dashboard/backend/internal/http/middleware"
	"github.com/pqrs_dashboard/backend/internal/service"

	_ "github.com/pqrs_dashboard/backend/docs"
)

const FilesPrefix = "/api/files"

// Services are the collaborators the HTTP layer is built from.
type Services struct {
	Store     handlers.Pinger
	Lifecycle *service.Lifecycle
	Intake    *service.Intake
	Directory *service.Directory
	Dashboard *service.Dashboard
	Files     *files.Local
	Tokens    *auth.Tokens
}

func Router(cfg config.Config, svc Services, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.EntityHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		// Credentials cannot be combined with a wildcard origin.
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:        svc.Store,
		Lifecycle:    svc.Lifecycle,
		Intake:       svc.Intake,
		Directory:    svc.Directory,
		Dashboard:    svc.Dashboard,
		Files:        svc.Files,
		Tokens:       svc.Tokens,
		Validator:    validator.New(),
		Logger:       logger,
		MaxUploadMB:  cfg.MaxUploadSizeMB,
		SecureCookie: cfg.Env == "prod",
	}

	r.GET("/healthz", h.Healthz)
	if cfg.UploadDir != "" {
		r.Static(FilesPrefix, cfg.UploadDir)
	}

	api := r.Group("/api")
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	{
		api.POST("/auth/login", h.Login)
		api.POST("/auth/logout", h.Logout)
	}

	authed := api.Group("")
	authed.Use(middleware.Auth(svc.Tokens))
	{
		authed.GET("/me", h.Me)
		authed.GET("/profile", h.ProfileGet)
		authed.PATCH("/profile", h.ProfileUpdate)

		authed.POST("/pqr", middleware.Require(access.FilePQR), h.PQRCreate)

		pqr := authed.Group("/pqr")
		pqr.Use(middleware.Require(access.ManagePQR))
		{
			pqr.GET("", h.PQRList)
			pqr.GET("/stats", h.PQRStats)
			pqr.GET("/:id", h.PQRDetails)
			pqr.GET("/:id/status", h.PQRHistory)
			pqr.PATCH("/:id/status", h.PQRTransition)
			pqr.PATCH("/:id/assign", h.PQRAssign)
			pqr.GET("/:id/comments", h.PQRComments)
			pqr.POST("/:id/comments", h.PQRCommentCreate)
		}

		area := authed.Group("/area")
		area.Use(middleware.Require(access.ManageAreas))
		{
			area.GET("", h.AreaList)
			area.POST("", h.AreaCreate)
			area.PATCH("/:id/config", h.AreaConfigUpdate)
		}

		users := authed.Group("/users")
		users.Use(middleware.Require(access.ManageUsers))
		{
			users.GET("", h.UsersList)
			users.POST("", h.UsersCreate)
		}

		authed.GET("/entities", middleware.Require(access.ManageEntities), h.EntitiesList)
		authed.POST("/entities", middleware.Require(access.ManageEntities), h.EntitiesCreate)
		authed.GET("/entities/:id/employees", middleware.Require(access.ManagePQR), h.EntityEmployees)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

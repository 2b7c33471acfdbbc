package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/classchain/classchain/internal/handlers"
	"github.com/classchain/classchain/internal/middleware"
	"github.com/classchain/classchain/internal/routes"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type App struct {
	engine *gin.Engine
	server *http.Server
	log    *slog.Logger
	port   int
}

func NewApp(
	log *slog.Logger,
	port int,
	corsOrigins []string,
	sessionMiddleware *middleware.SessionMiddleware,
	authHandler *handlers.AuthHandler,
	attendanceHandler *handlers.AttendanceHandler,
	pollHandler *handlers.PollHandler,
	exportHandler *handlers.ExportHandler,
) *App {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	api := r.Group("/api")
	{
		publicGroup := api.Group("", sessionMiddleware.OptionalAttendant())
		routes.RegisterPublicRoutes(publicGroup, authHandler, attendanceHandler, pollHandler)

		adminGroup := api.Group("", sessionMiddleware.RequireAdmin())
		routes.RegisterAdminRoutes(adminGroup, attendanceHandler, pollHandler, exportHandler)
	}

	// Healthcheck
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	addr := fmt.Sprintf(":%d", port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	return &App{
		engine: r,
		server: httpServer,
		log:    log,
		port:   port,
	}
}

func (a *App) Run() error {
	a.log.Info("HTTP server is running", slog.String("addr", a.server.Addr))
	return a.server.ListenAndServe()
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("HTTP server is stopping")
	return a.server.Shutdown(ctx)
}

func (a *App) Engine() *gin.Engine {
	return a.engine
}

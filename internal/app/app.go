package app

import (
	"context"
	"log/slog"

	httpapp "github.com/classchain/classchain/internal/app/http"
	"github.com/classchain/classchain/internal/config"
	"github.com/classchain/classchain/internal/handlers"
	"github.com/classchain/classchain/internal/lib/session"
	"github.com/classchain/classchain/internal/middleware"
	"github.com/classchain/classchain/internal/nonce"
	"github.com/classchain/classchain/internal/services/attendance"
	"github.com/classchain/classchain/internal/services/auth"
	"github.com/classchain/classchain/internal/services/export"
	"github.com/classchain/classchain/internal/services/polls"
	"github.com/classchain/classchain/internal/storage/postgres"
	"github.com/classchain/classchain/utils"
)

type App struct {
	HTTPServer *httpapp.App
	Attendance *attendance.Attendance
	Polls      *polls.Polls

	storage *postgres.Storage
	kv      *nonce.RedisKV
}

func NewApp(log *slog.Logger, cfg *config.Config) *App {
	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		panic(err)
	}

	kv, err := nonce.NewRedisKV(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		panic(err)
	}

	codec := session.NewCodec(cfg.Auth.JWTSecret)
	signInNonces := nonce.NewStore(kv, cfg.Auth.SignInNonceTTL)
	linkNonces := nonce.NewStore(kv, cfg.Auth.LinkNonceTTL)

	authService := auth.New(log, storage, signInNonces, codec, cfg.Auth.AdminSessionTTL)
	attendanceService := attendance.New(log, storage, storage, storage, storage, linkNonces)
	pollService := polls.New(log, storage, storage, linkNonces)
	exporter := export.New(log, storage)

	secureCookie := cfg.Env != utils.EnvLocal

	sessionMiddleware := middleware.NewSessionMiddleware(codec)
	authHandler := handlers.NewAuthHandler(authService, cfg.Auth.AdminSessionTTL, secureCookie)
	attendanceHandler := handlers.NewAttendanceHandler(attendanceService, codec, cfg.Auth.AttendantSessionTTL, secureCookie)
	pollHandler := handlers.NewPollHandler(pollService, secureCookie)
	exportHandler := handlers.NewExportHandler(exporter)

	httpApp := httpapp.NewApp(log, cfg.HTTP.Port, cfg.HTTP.CORSOrigins, sessionMiddleware, authHandler, attendanceHandler, pollHandler, exportHandler)

	return &App{
		HTTPServer: httpApp,
		Attendance: attendanceService,
		Polls:      pollService,
		storage:    storage,
		kv:         kv,
	}
}

func (a *App) Stop(ctx context.Context) error {
	if err := a.HTTPServer.Stop(ctx); err != nil {
		return err
	}
	if err := a.kv.Close(); err != nil {
		return err
	}
	return a.storage.Close()
}

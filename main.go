package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"voiceroom/internal/api"
	"voiceroom/internal/models"
	"voiceroom/internal/repository"
	"voiceroom/internal/service"
	"voiceroom/internal/storage"
	"voiceroom/internal/utils"
	"voiceroom/pkg/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// 載入應用程式配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// 初始化資料庫連接
	db, err := storage.NewPostgresDB(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	// 確保在程序結束時關閉資料庫連接
	defer db.Close()

	// 自動遷移資料庫結構
	// (room_id, user_id) 的唯一索引在這裡建立，
	// 是佇列不變量對抗重複插入的最後防線
	if err := db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.RoomMember{},
		&models.Speaker{},
		&models.WaitlistEntry{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to auto migrate database")
	}

	// 設定 JWT 簽章
	utils.Init(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	// 初始化 repositories 與 services
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, cfg)

	// 設置 Gin 路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()
	api.SetupRoutes(r, services)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Address).Msg("voiceroom server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	services.Hub.Shutdown()
	log.Info().Msg("server exited gracefully")
}

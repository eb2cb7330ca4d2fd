package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BerniceZTT/pipeline_end/config"
	"github.com/BerniceZTT/pipeline_end/repository"
	"github.com/BerniceZTT/pipeline_end/routes"
	"github.com/BerniceZTT/pipeline_end/service"
	"github.com/BerniceZTT/pipeline_end/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()

	utils.InitLogger(cfg.Debug)
	utils.InitJWT(cfg.JWTKey, cfg.TokenTTL)

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := openStore(cfg)
	if err != nil {
		utils.Logger.Fatal().Err(err).Msg("初始化数据存储失败")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			utils.Logger.Error().Err(err).Msg("关闭数据存储失败")
		}
	}()

	utils.Logger.Info().Msg("开始系统初始化...")
	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := service.NewUserService(store).SeedAdmin(initCtx, cfg.AdminPassword); err != nil {
		utils.Logger.Error().Err(err).Msg("初始化管理员账户失败")
	}
	cancel()
	utils.Logger.Info().Msg("系统初始化完成")

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      routes.NewRouter(cfg, store),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second + cfg.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		utils.Logger.Info().Str("store", cfg.Store).Msgf("服务器启动，监听端口: %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Logger.Fatal().Err(err).Msg("启动服务器失败")
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.Logger.Error().Err(err).Msg("服务器关闭异常")
	}

	utils.Logger.Info().Msg("服务器已优雅关闭")
}

// openStore 按配置选择MongoDB或内存存储
func openStore(cfg *config.Config) (repository.Store, error) {
	if cfg.Store == "memory" {
		utils.Logger.Warn().Msg("使用内存存储，重启后数据丢失")
		return repository.NewMemoryStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store, err := repository.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		utils.Logger.Error().Err(err).Msg("创建索引失败")
	}
	return store, nil
}

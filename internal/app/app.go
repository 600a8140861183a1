// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Corphon/StoryWeaverMCP/internal/api"
	"github.com/Corphon/StoryWeaverMCP/internal/config"
	"github.com/Corphon/StoryWeaverMCP/internal/di"
	"github.com/Corphon/StoryWeaverMCP/internal/gemini"
	"github.com/Corphon/StoryWeaverMCP/internal/services"
	"github.com/Corphon/StoryWeaverMCP/internal/storage"
	"github.com/Corphon/StoryWeaverMCP/internal/utils"
)

// httpServer 抽象HTTP服务器，便于测试时替换
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 应用程序实例
type App struct {
	config   *config.AppConfig
	router   http.Handler
	server   httpServer
	stopChan chan os.Signal
}

var instance *App

// GetApp 返回全局应用实例
func GetApp() *App {
	if instance == nil {
		instance = &App{
			stopChan: make(chan os.Signal, 1),
		}
	}
	return instance
}

// GetConfig 返回应用配置
func (a *App) GetConfig() *config.AppConfig {
	return a.config
}

// GetDIContainer 返回依赖注入容器
func (a *App) GetDIContainer() *di.Container {
	return di.GetContainer()
}

// Initialize 初始化应用：配置、日志、服务、路由
func Initialize() error {
	baseConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		return fmt.Errorf("初始化配置失败: %w", err)
	}

	app := GetApp()
	app.config = config.GetCurrentConfig()

	if err := initLogger(app.config.LogDir); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}

	if err := InitServices(); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	router, err := api.SetupRouter(app.config.DebugMode)
	if err != nil {
		return fmt.Errorf("初始化路由失败: %w", err)
	}
	app.router = router

	return nil
}

// initLogger 创建日志目录并按日期初始化日志文件
func initLogger(logDir string) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("创建日志目录失败: %w", err)
	}

	logFile := filepath.Join(logDir, fmt.Sprintf("app_%s.log", time.Now().Format("2006-01-02")))
	return utils.InitLogger(logFile)
}

// InitServices 按依赖顺序构建服务并注册到DI容器
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	fileStorage, err := storage.NewFileStorage(cfg.AssetsDir)
	if err != nil {
		return fmt.Errorf("初始化文件存储失败: %w", err)
	}

	progress := services.NewProgressService()
	stats := services.NewStatsService()
	configService := services.NewConfigService()

	// 密钥可以缺省启动，设置接口补充后由配置服务重建客户端
	var storyGen services.Generator
	var mediaGen services.MediaGenerator
	if config.HasAPIKey() {
		client, err := gemini.NewClient(cfg.GeminiConfig)
		if err != nil {
			return fmt.Errorf("初始化Gemini客户端失败: %w", err)
		}
		storyGen = client
		mediaGen = client
	}

	story := services.NewStoryService(storyGen, configService, progress, fileStorage, stats)
	media := services.NewMediaService(mediaGen, configService, stats)
	configService.BindConsumers(story, media)

	export, err := services.NewExportService(story, fileStorage, cfg.ExportsDir)
	if err != nil {
		return fmt.Errorf("初始化导出服务失败: %w", err)
	}
	playback := services.NewPlaybackService(story, fileStorage)

	container.Register("storage", fileStorage)
	container.Register("progress", progress)
	container.Register("stats", stats)
	container.Register("config", configService)
	container.Register("story", story)
	container.Register("media", media)
	container.Register("export", export)
	container.Register("playback", playback)

	return nil
}

// Run 启动HTTP服务器并等待终止信号
func Run() error {
	app := GetApp()
	logger := utils.GetLogger()

	if app.server == nil {
		app.server = &http.Server{
			Addr:    ":" + app.config.Port,
			Handler: app.router,
		}
	}

	go func() {
		logger.Info("服务器启动", map[string]interface{}{"port": app.config.Port})
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("服务器异常退出", map[string]interface{}{"error": err.Error()})
		}
	}()

	signal.Notify(app.stopChan, syscall.SIGINT, syscall.SIGTERM)
	<-app.stopChan

	logger.Info("收到终止信号，开始优雅关闭", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务器关闭失败: %w", err)
	}

	app.cleanup()
	logger.Info("服务器已关闭", nil)
	return nil
}

// cleanup 释放各服务持有的资源
func (a *App) cleanup() {
	container := di.GetContainer()

	if svc := container.Get("export"); svc != nil {
		if export, ok := svc.(*services.ExportService); ok {
			export.CleanupOldExports(24 * time.Hour)
		}
	}
	container.Clear()
}

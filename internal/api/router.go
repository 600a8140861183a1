// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Corphon/StoryWeaverMCP/internal/config"
	"github.com/Corphon/StoryWeaverMCP/internal/di"
	"github.com/Corphon/StoryWeaverMCP/internal/services"
)

// SetupRouter 配置HTTP路由
// 只从DI容器获取服务，不创建新实例
func SetupRouter(debugMode bool) (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	storyService, ok := container.Get("story").(*services.StoryService)
	if !ok {
		return nil, fmt.Errorf("故事服务未正确初始化")
	}

	mediaService, ok := container.Get("media").(*services.MediaService)
	if !ok {
		return nil, fmt.Errorf("媒体服务未正确初始化")
	}

	exportService, ok := container.Get("export").(*services.ExportService)
	if !ok {
		return nil, fmt.Errorf("导出服务未正确初始化")
	}

	playbackService, ok := container.Get("playback").(*services.PlaybackService)
	if !ok {
		return nil, fmt.Errorf("播放服务未正确初始化")
	}

	configService, ok := container.Get("config").(*services.ConfigService)
	if !ok {
		return nil, fmt.Errorf("配置服务未正确初始化")
	}

	statsService, ok := container.Get("stats").(*services.StatsService)
	if !ok {
		return nil, fmt.Errorf("统计服务未正确初始化")
	}

	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("进度服务未正确初始化")
	}

	handler := NewHandler(
		storyService,
		mediaService,
		exportService,
		playbackService,
		configService,
		statsService,
		progressService,
	)

	// WebSocket进度推送依赖进度服务
	InitProgressHub(progressService)

	if err := InitializeAuth(); err != nil {
		return nil, err
	}

	if !debugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.Use(corsMiddleware())
	r.Use(requestIDMiddleware())
	r.Use(RequestMetricsMiddleware())

	// 生成的二进制资源直接静态提供
	r.Static("/assets", cfg.AssetsDir)

	r.GET("/api/health", handler.HealthCheck)

	// WebSocket 进度推送
	r.GET("/ws/projects/:id/progress", handler.ProgressWebSocket)

	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		projects := api.Group("/projects")
		{
			projects.POST("", handler.CreateProject)
			projects.GET("", handler.ListProjects)
			projects.GET("/:id", handler.GetProject)
			projects.DELETE("/:id", handler.DeleteProject)

			projects.POST("/:id/idea", GenerationRateLimit(), handler.SubmitIdea)
			projects.PUT("/:id/plan/scenes/:scene", handler.UpdatePlannedScene)
			projects.POST("/:id/approve", GenerationRateLimit(), handler.ApprovePlan)
			projects.POST("/:id/scenes/:scene/regenerate", GenerationRateLimit(), handler.RegenerateScene)
			projects.POST("/:id/scenes/:scene/audio", handler.UploadSceneAudio)
			projects.POST("/:id/continue", GenerationRateLimit(), handler.ContinueStory)
			projects.POST("/:id/finalize", GenerationRateLimit(), handler.FinalizeStory)
			projects.POST("/:id/reset", handler.ResetProject)

			projects.GET("/:id/playback", handler.GetPlaybackTimeline)
			projects.POST("/:id/export", ExportRateLimit(), handler.ExportProject)
		}

		api.GET("/exports/:file", handler.DownloadExport)

		media := api.Group("/media")
		media.Use(MediaRateLimit())
		{
			media.POST("/tts", handler.TextToVoice)
			media.POST("/describe", handler.DescribeImage)
			media.POST("/video", handler.ImageToVideo)
			media.POST("/suggest-prompt", handler.SuggestImagePrompt)
		}

		api.GET("/voices", handler.ListVoices)
		api.GET("/stats", handler.GetStats)

		api.GET("/settings", handler.GetSettings)
		api.PUT("/settings", AdminAuthMiddleware(), handler.UpdateSettings)
	}

	return r, nil
}

// requestIDMiddleware 为每个请求生成追踪ID
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

package services

import (
	"strings"
	"sync"

	"github.com/Corphon/StoryWeaverMCP/internal/config"
	apperrors "github.com/Corphon/StoryWeaverMCP/internal/errors"
	"github.com/Corphon/StoryWeaverMCP/internal/gemini"
	"github.com/Corphon/StoryWeaverMCP/internal/utils"
)

// Settings 设置接口对外返回的配置视图，密钥脱敏
type Settings struct {
	Port       string `json:"port"`
	DebugMode  bool   `json:"debug_mode"`
	HasAPIKey  bool   `json:"has_api_key"`
	MaskedKey  string `json:"masked_key,omitempty"`
	AssetsDir  string `json:"assets_dir"`
	ExportsDir string `json:"exports_dir"`
}

// ConfigService 配置读写与密钥能力探测
// 密钥更新后重建远端客户端并推送给依赖方
type ConfigService struct {
	mu     sync.Mutex
	story  *StoryService
	media  *MediaService
	logger *utils.Logger
}

// NewConfigService 创建配置服务
func NewConfigService() *ConfigService {
	return &ConfigService{
		logger: utils.GetLogger(),
	}
}

// BindConsumers 注册密钥更新后需要重建生成器的服务
func (s *ConfigService) BindConsumers(story *StoryService, media *MediaService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.story = story
	s.media = media
}

// HasKey 实现 APIKeyCapability
func (s *ConfigService) HasKey() bool {
	return config.HasAPIKey()
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// GetSettings 返回脱敏后的当前配置
func (s *ConfigService) GetSettings() *Settings {
	cfg := config.GetCurrentConfig()
	settings := &Settings{
		Port:       cfg.Port,
		DebugMode:  cfg.DebugMode,
		HasAPIKey:  cfg.GeminiAPIKey != "",
		AssetsDir:  cfg.AssetsDir,
		ExportsDir: cfg.ExportsDir,
	}
	if settings.HasAPIKey {
		settings.MaskedKey = maskKey(cfg.GeminiAPIKey)
	}
	return settings
}

// UpdateAPIKey 更新Gemini密钥并重建远端客户端
func (s *ConfigService) UpdateAPIKey(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return apperrors.NewValidationError("API密钥不能为空", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := config.UpdateGeminiConfig(apiKey, nil); err != nil {
		return apperrors.WrapError(err, "保存配置失败", apperrors.ErrorTypeOperation)
	}

	cfg := config.GetCurrentConfig()
	client, err := gemini.NewClient(cfg.GeminiConfig)
	if err != nil {
		return apperrors.WrapError(err, "重建远端客户端失败", apperrors.ErrorTypeOperation)
	}
	if s.story != nil {
		s.story.SetGenerator(client)
	}
	if s.media != nil {
		s.media.SetGenerator(client)
	}

	s.logger.Info("Gemini密钥已更新", map[string]interface{}{"masked": maskKey(apiKey)})
	return nil
}

package services

import (
	"context"
	"strings"
	"sync"

	apperrors "github.com/Corphon/StoryWeaverMCP/internal/errors"
	"github.com/Corphon/StoryWeaverMCP/internal/gemini"
	"github.com/Corphon/StoryWeaverMCP/internal/utils"
)

// MediaGenerator 独立媒体工具所需的远端能力
type MediaGenerator interface {
	GenerateSpeech(ctx context.Context, text string, voiceID string) (*gemini.Resource, error)
	DescribeImage(ctx context.Context, prompt string, image gemini.ImagePart) (string, error)
	GenerateVideo(ctx context.Context, prompt string, image gemini.ImagePart) (*gemini.Resource, error)
	SuggestImagePrompt(ctx context.Context, narration string) (string, error)
}

// MediaService 与故事工作流无关的独立媒体工具
// 文本转语音、图像描述、图像转视频、画面描述建议
type MediaService struct {
	mu         sync.RWMutex
	gen        MediaGenerator
	capability APIKeyCapability
	stats      *StatsService
	logger     *utils.Logger
}

// NewMediaService 创建媒体工具服务
func NewMediaService(gen MediaGenerator, capability APIKeyCapability, stats *StatsService) *MediaService {
	return &MediaService{
		gen:        gen,
		capability: capability,
		stats:      stats,
		logger:     utils.GetLogger(),
	}
}

// SetGenerator 替换远端生成器
func (s *MediaService) SetGenerator(gen MediaGenerator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen = gen
}

func (s *MediaService) generator() (MediaGenerator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.gen == nil {
		return nil, apperrors.NewOperationError("生成器未初始化", nil)
	}
	if s.capability != nil && !s.capability.HasKey() {
		return nil, apperrors.NewValidationError("Gemini API密钥未配置，请先在设置中填写", nil)
	}
	return s.gen, nil
}

// TextToVoice 将文本合成为WAV音频
func (s *MediaService) TextToVoice(ctx context.Context, text, voiceID string) (*gemini.Resource, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("文本内容不能为空", nil)
	}
	if voiceID == "" {
		voiceID = gemini.DefaultVoiceID
	}

	gen, err := s.generator()
	if err != nil {
		return nil, err
	}

	res, err := gen.GenerateSpeech(ctx, text, voiceID)
	s.stats.RecordAudio(err == nil)
	if err != nil {
		s.logger.Error("文本转语音失败", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	return res, nil
}

// DescribeImage 生成图像的文字描述
// prompt 为空时使用默认描述指令
func (s *MediaService) DescribeImage(ctx context.Context, prompt string, image gemini.ImagePart) (string, error) {
	if len(image.Data) == 0 {
		return "", apperrors.NewValidationError("图像数据为空", nil)
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = "Describe this image in detail."
	}

	gen, err := s.generator()
	if err != nil {
		return "", err
	}

	text, err := gen.DescribeImage(ctx, prompt, image)
	if err != nil {
		s.logger.Error("图像描述失败", map[string]interface{}{"error": err.Error()})
		return "", err
	}
	return text, nil
}

// ImageToVideo 以图像和提示词生成短视频
// 长轮询由生成器内部处理，调用方通过ctx控制超时
func (s *MediaService) ImageToVideo(ctx context.Context, prompt string, image gemini.ImagePart) (*gemini.Resource, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, apperrors.NewValidationError("视频提示词不能为空", nil)
	}
	if len(image.Data) == 0 {
		return nil, apperrors.NewValidationError("图像数据为空", nil)
	}

	gen, err := s.generator()
	if err != nil {
		return nil, err
	}

	res, err := gen.GenerateVideo(ctx, prompt, image)
	s.stats.RecordVideo(err == nil)
	if err != nil {
		s.logger.Error("图像转视频失败", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	return res, nil
}

// SuggestImagePrompt 根据旁白生成画面描述建议
func (s *MediaService) SuggestImagePrompt(ctx context.Context, narration string) (string, error) {
	if strings.TrimSpace(narration) == "" {
		return "", apperrors.NewValidationError("旁白内容不能为空", nil)
	}

	gen, err := s.generator()
	if err != nil {
		return "", err
	}

	suggestion, err := gen.SuggestImagePrompt(ctx, narration)
	if err != nil {
		s.logger.Error("画面描述建议失败", map[string]interface{}{"error": err.Error()})
		return "", err
	}
	return suggestion, nil
}

// Voices 返回可选音色列表
func (s *MediaService) Voices() []gemini.Voice {
	return gemini.AvailableVoices
}

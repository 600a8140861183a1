// internal/gemini/media.go
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"

	apperrors "github.com/Corphon/StoryWeaverMCP/internal/errors"
)

// Voice 可选的TTS音色
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultVoiceID 未指定音色时的默认选择
const DefaultVoiceID = "Kore"

// AvailableVoices 远端TTS支持的预置音色
var AvailableVoices = []Voice{
	{ID: "Kore", Name: "Kore - 女声旁白（清晰温暖）"},
	{ID: "Puck", Name: "Puck - 男声旁白（低沉稳重）"},
	{ID: "Charon", Name: "Charon - 男声（亲切友好）"},
	{ID: "Zephyr", Name: "Zephyr - 女声（平静柔和）"},
}

// IsValidVoice 检查音色ID是否受支持
func IsValidVoice(voiceID string) bool {
	for _, v := range AvailableVoices {
		if v.ID == voiceID {
			return true
		}
	}
	return false
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func decodeBase64(data string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(data)
}

// GenerateImage 为提示词生成一张图像
// 策略拒绝返回ContentBlocked，成功但无载荷返回NoData
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*Resource, error) {
	genCfg := &generationConfig{
		ResponseModalities: []string{"IMAGE"},
	}

	resp, err := c.generateContent(ctx, ModelImage, []map[string]interface{}{textPart(prompt)}, genCfg)
	if err != nil {
		return nil, err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, apperrors.NewContentBlockedError(
			fmt.Sprintf("图像生成被策略拒绝: %s", resp.PromptFeedback.BlockReason), nil)
	}

	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.InlineData == nil {
				continue
			}
			data, err := decodeBase64(part.InlineData.Data)
			if err != nil {
				return nil, apperrors.NewMalformedError("图像数据解码失败", err)
			}
			return &Resource{Data: data, MIMEType: part.InlineData.MIMEType}, nil
		}
	}

	return nil, apperrors.NewNoDataError("图像生成未返回数据", nil)
}

// GenerateSpeech 为文本合成旁白音频
// 远端返回24kHz单声道16位PCM，这里包装为WAV
func (c *Client) GenerateSpeech(ctx context.Context, text string, voiceID string) (*Resource, error) {
	if !IsValidVoice(voiceID) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("不支持的音色: %s", voiceID), nil)
	}

	prompt := fmt.Sprintf("Say this with a gentle, storytelling tone: %s", text)

	genCfg := &generationConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: map[string]interface{}{
			"voiceConfig": map[string]interface{}{
				"prebuiltVoiceConfig": map[string]string{"voiceName": voiceID},
			},
		},
	}

	resp, err := c.generateContent(ctx, ModelTTS, []map[string]interface{}{textPart(prompt)}, genCfg)
	if err != nil {
		return nil, err
	}

	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.InlineData == nil {
				continue
			}
			pcm, err := decodeBase64(part.InlineData.Data)
			if err != nil {
				return nil, apperrors.NewMalformedError("音频数据解码失败", err)
			}
			return &Resource{Data: PCMToWAV(pcm, 24000, 1), MIMEType: "audio/wav"}, nil
		}
	}

	return nil, apperrors.NewNoDataError("语音生成未返回音频数据", nil)
}

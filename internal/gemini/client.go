// internal/gemini/client.go
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Corphon/StoryWeaverMCP/internal/errors"
	"github.com/Corphon/StoryWeaverMCP/internal/models"
	"github.com/Corphon/StoryWeaverMCP/internal/utils"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// 各能力使用的模型
	ModelPlan  = "gemini-2.5-pro"
	ModelText  = "gemini-2.5-flash"
	ModelImage = "gemini-2.5-flash-image"
	ModelTTS   = "gemini-2.5-flash-preview-tts"
	ModelVideo = "veo-3.1-fast-generate-preview"
)

// Resource 远端返回的二进制资源
type Resource struct {
	Data     []byte
	MIMEType string
}

// ImagePart 多模态请求中的图像输入
type ImagePart struct {
	Data     []byte
	MIMEType string
}

// Client 封装对远端生成服务的REST调用
// 每次调用都是独立的请求/响应，视频路径为长轮询操作
type Client struct {
	apiKey    string
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	metrics   *utils.APIMetrics
	planModel string
	textModel string
}

// NewClient 创建客户端实例
func NewClient(config map[string]string) (*Client, error) {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return nil, fmt.Errorf("gemini API密钥未提供")
	}

	c := &Client{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		client:    &http.Client{},
		metrics:   utils.NewAPIMetrics(),
		planModel: ModelPlan,
		textModel: ModelText,
		// 出站限速，避免批量生成触发远端速率限制
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	if model, exists := config["plan_model"]; exists && model != "" {
		c.planModel = model
	}
	if model, exists := config["text_model"]; exists && model != "" {
		c.textModel = model
	}

	return c, nil
}

// generationConfig generateContent请求的生成参数
type generationConfig struct {
	ResponseMIMEType   string                 `json:"responseMimeType,omitempty"`
	ResponseSchema     map[string]interface{} `json:"responseSchema,omitempty"`
	ResponseModalities []string               `json:"responseModalities,omitempty"`
	SpeechConfig       map[string]interface{} `json:"speechConfig,omitempty"`
}

// contentResponse generateContent响应的通用结构
type contentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text       string `json:"text,omitempty"`
				InlineData *struct {
					MIMEType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData,omitempty"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

// generateContent 执行一次generateContent调用
func (c *Client) generateContent(ctx context.Context, model string, parts []map[string]interface{}, genCfg *generationConfig) (*contentResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": parts},
		},
	}
	if genCfg != nil {
		requestBody["generationConfig"] = genCfg
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	apiURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		c.metrics.RecordRemoteCall(model, "generateContent", false, time.Since(started))
		return nil, apperrors.NewRemoteError("gemini请求失败", err)
	}
	defer httpResp.Body.Close()
	c.metrics.RecordRemoteCall(model, "generateContent", httpResp.StatusCode == http.StatusOK, time.Since(started))

	if httpResp.StatusCode != http.StatusOK {
		var errorResp map[string]interface{}
		body, _ := io.ReadAll(httpResp.Body)
		if err := json.Unmarshal(body, &errorResp); err == nil {
			if errorObj, ok := errorResp["error"].(map[string]interface{}); ok {
				return nil, apperrors.NewRemoteError(
					fmt.Sprintf("gemini API错误(%d): %v", httpResp.StatusCode, errorObj["message"]), nil)
			}
		}
		return nil, apperrors.NewRemoteError(
			fmt.Sprintf("gemini API错误(%d): %s", httpResp.StatusCode, string(body)), nil)
	}

	var response contentResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, apperrors.NewMalformedError("解析gemini响应失败", err)
	}

	return &response, nil
}

// firstText 提取响应中的全部文本内容
func (r *contentResponse) firstText() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// textPart 构建纯文本请求片段
func textPart(text string) map[string]interface{} {
	return map[string]interface{}{"text": text}
}

// imageInlinePart 构建图像请求片段
func imageInlinePart(img ImagePart) map[string]interface{} {
	return map[string]interface{}{
		"inlineData": map[string]string{
			"mimeType": img.MIMEType,
			"data":     encodeBase64(img.Data),
		},
	}
}

// stripJSONFence 去掉模型偶尔附带的markdown代码围栏
func stripJSONFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}

// sceneSchema 单个场景的响应schema
func sceneSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "OBJECT",
		"properties": map[string]interface{}{
			"scene":       map[string]interface{}{"type": "INTEGER", "description": "场景的顺序编号"},
			"narration":   map[string]interface{}{"type": "STRING", "description": "该场景的旁白文本"},
			"imagePrompt": map[string]interface{}{"type": "STRING", "description": "用于图像生成的详细视觉提示词"},
		},
		"required": []string{"scene", "narration", "imagePrompt"},
	}
}

// PlanStory 根据一句话创意生成完整的故事计划
func (c *Client) PlanStory(ctx context.Context, idea string) (*models.ProjectPlan, error) {
	prompt := fmt.Sprintf(`You are a creative assistant that generates structured story plans. Based on the user's idea, create a project plan. The plan must include a title for the story and a series of scenes (between 3 and 5 scenes). For each scene, you must provide the scene number, the narration text, and a detailed visual prompt for generating an image. The entire output must be a single JSON object that strictly adheres to the provided schema. Do not add any explanatory text, markdown formatting, or any other characters before or after the JSON object. User's Idea: %q`, idea)

	genCfg := &generationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: map[string]interface{}{
			"type": "OBJECT",
			"properties": map[string]interface{}{
				"title": map[string]interface{}{"type": "STRING", "description": "故事标题"},
				"scenes": map[string]interface{}{
					"type":  "ARRAY",
					"items": sceneSchema(),
				},
			},
			"required": []string{"title", "scenes"},
		},
	}

	resp, err := c.generateContent(ctx, c.planModel, []map[string]interface{}{textPart(prompt)}, genCfg)
	if err != nil {
		return nil, err
	}

	var plan models.ProjectPlan
	jsonText := stripJSONFence(resp.firstText())
	if err := json.Unmarshal([]byte(jsonText), &plan); err != nil {
		return nil, apperrors.NewMalformedError("故事计划不是合法的JSON", err)
	}

	// 结构校验：标题非空且至少一个场景
	if plan.Title == "" || len(plan.Scenes) == 0 {
		return nil, apperrors.NewMalformedError("故事计划缺少标题或场景", nil)
	}

	return &plan, nil
}

// ContinuePlan 基于已有计划续写接下来的场景
func (c *Client) ContinuePlan(ctx context.Context, plan *models.ProjectPlan) ([]models.Scene, error) {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`You are a creative assistant continuing a story. Based on the existing story plan, generate the next 2 to 3 scenes to continue the narrative logically. The new scenes must follow the same JSON structure as the existing scenes. The entire output must be a single JSON object containing only a "new_scenes" array. Do not add any explanatory text or markdown. Existing Plan: %s`, planJSON)

	genCfg := &generationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: map[string]interface{}{
			"type": "OBJECT",
			"properties": map[string]interface{}{
				"new_scenes": map[string]interface{}{
					"type":  "ARRAY",
					"items": sceneSchema(),
				},
			},
			"required": []string{"new_scenes"},
		},
	}

	resp, err := c.generateContent(ctx, c.planModel, []map[string]interface{}{textPart(prompt)}, genCfg)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		NewScenes []models.Scene `json:"new_scenes"`
	}
	jsonText := stripJSONFence(resp.firstText())
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		return nil, apperrors.NewMalformedError("续写结果不是合法的JSON", err)
	}
	if len(parsed.NewScenes) == 0 {
		return nil, apperrors.NewMalformedError("续写结果缺少new_scenes数组", nil)
	}

	return parsed.NewScenes, nil
}

// GenerateConclusion 为完整故事生成一段结尾
func (c *Client) GenerateConclusion(ctx context.Context, plan *models.ProjectPlan) (string, error) {
	narrations := make([]string, 0, len(plan.Scenes))
	for _, s := range plan.Scenes {
		narrations = append(narrations, s.Narration)
	}
	storyText := strings.Join(narrations, "\n\n")

	prompt := fmt.Sprintf("You are a storyteller. Based on the following story, write a single, satisfying concluding paragraph to end it. Output only the text of the conclusion, with no extra formatting or titles.\n\nSTORY:\n%s", storyText)

	resp, err := c.generateContent(ctx, c.textModel, []map[string]interface{}{textPart(prompt)}, nil)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.firstText())
	if text == "" {
		return "", apperrors.NewNoDataError("结尾生成未返回文本", nil)
	}
	return text, nil
}

// SuggestImagePrompt 根据旁白文本推荐图像提示词
func (c *Client) SuggestImagePrompt(ctx context.Context, narration string) (string, error) {
	prompt := fmt.Sprintf("Based on the following narration, create a detailed, vibrant, and imaginative prompt for an AI image generator. The prompt should capture the mood, characters, setting, and action. Focus on visual details.\n\nNarration: %q", narration)

	resp, err := c.generateContent(ctx, c.textModel, []map[string]interface{}{textPart(prompt)}, nil)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.firstText())
	if text == "" {
		return "", apperrors.NewNoDataError("提示词建议未返回文本", nil)
	}
	return text, nil
}

// DescribeImage 以指定提示词描述一张图像
func (c *Client) DescribeImage(ctx context.Context, prompt string, image ImagePart) (string, error) {
	parts := []map[string]interface{}{
		imageInlinePart(image),
		textPart(prompt),
	}

	resp, err := c.generateContent(ctx, c.textModel, parts, nil)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.firstText())
	if text == "" {
		return "", apperrors.NewNoDataError("图像描述未返回文本", nil)
	}
	return text, nil
}

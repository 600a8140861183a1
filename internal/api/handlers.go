// internal/api/handlers.go
package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StoryWeaverMCP/internal/gemini"
	"github.com/Corphon/StoryWeaverMCP/internal/models"
	"github.com/Corphon/StoryWeaverMCP/internal/services"
	"github.com/Corphon/StoryWeaverMCP/internal/utils"
)

// 上传文件大小限制
const (
	maxAudioUploadBytes = 20 << 20 // 20MB
	maxImageUploadBytes = 10 << 20 // 10MB
)

// Handler API处理器
type Handler struct {
	StoryService    *services.StoryService
	MediaService    *services.MediaService
	ExportService   *services.ExportService
	PlaybackService *services.PlaybackService
	ConfigService   *services.ConfigService
	StatsService    *services.StatsService
	ProgressService *services.ProgressService
	helper          *ResponseHelper
	logger          *utils.Logger
}

// NewHandler 创建API处理器
func NewHandler(
	story *services.StoryService,
	media *services.MediaService,
	export *services.ExportService,
	playback *services.PlaybackService,
	configSvc *services.ConfigService,
	stats *services.StatsService,
	progress *services.ProgressService,
) *Handler {
	return &Handler{
		StoryService:    story,
		MediaService:    media,
		ExportService:   export,
		PlaybackService: playback,
		ConfigService:   configSvc,
		StatsService:    stats,
		ProgressService: progress,
		helper:          NewResponseHelper(),
		logger:          utils.GetLogger(),
	}
}

// APIResponse 统一的API响应结构
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError API错误详情
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ===============================
// 请求结构
// ===============================

// SubmitIdeaRequest 提交创意请求
type SubmitIdeaRequest struct {
	Idea string `json:"idea" binding:"required"`
}

// UpdateSceneRequest 场景文本更新请求
type UpdateSceneRequest struct {
	Narration   string `json:"narration" binding:"required"`
	ImagePrompt string `json:"image_prompt" binding:"required"`
}

// ApproveRequest 确认计划请求
type ApproveRequest struct {
	VoiceOption string `json:"voice_option" binding:"required"`
	VoiceID     string `json:"voice_id"`
}

// ExportRequest 导出请求
type ExportRequest struct {
	Kind string `json:"kind" binding:"required"`
}

// TTSRequest 文本转语音请求
type TTSRequest struct {
	Text    string `json:"text" binding:"required"`
	VoiceID string `json:"voice_id"`
}

// SuggestPromptRequest 画面描述建议请求
type SuggestPromptRequest struct {
	Narration string `json:"narration" binding:"required"`
}

// UpdateSettingsRequest 设置更新请求
type UpdateSettingsRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// ===============================
// 项目生命周期
// ===============================

// CreateProject 创建新项目
func (h *Handler) CreateProject(c *gin.Context) {
	snapshot := h.StoryService.CreateProject()
	h.helper.Created(c, snapshot, "项目创建成功")
}

// ListProjects 列出全部项目
func (h *Handler) ListProjects(c *gin.Context) {
	h.helper.Success(c, h.StoryService.ListProjects())
}

// GetProject 返回项目快照
func (h *Handler) GetProject(c *gin.Context) {
	snapshot, err := h.StoryService.GetSnapshot(c.Param("id"))
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.Success(c, snapshot)
}

// DeleteProject 删除项目及其资源
func (h *Handler) DeleteProject(c *gin.Context) {
	if err := h.StoryService.RemoveProject(c.Param("id")); err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.Success(c, nil, "项目已删除")
}

// SubmitIdea 提交创意并等待规划完成
func (h *Handler) SubmitIdea(c *gin.Context) {
	var req SubmitIdeaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.helper.BadRequest(c, "请求格式错误", err.Error())
		return
	}

	snapshot, err := h.StoryService.SubmitIdea(c.Request.Context(), c.Param("id"), req.Idea)
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.Success(c, snapshot, "故事规划完成")
}

// UpdatePlannedScene 在确认阶段修改场景文本
func (h *Handler) UpdatePlannedScene(c *gin.Context) {
	sceneNumber, ok := h.sceneParam(c)
	if !ok {
		return
	}

	var req UpdateSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.helper.BadRequest(c, "请求格式错误", err.Error())
		return
	}

	snapshot, err := h.StoryService.UpdatePlannedScene(c.Param("id"), sceneNumber, req.Narration, req.ImagePrompt)
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.Success(c, snapshot)
}

// ApprovePlan 确认计划并在后台启动批量生成
// 请求立即返回202，进度通过快照轮询或WebSocket获取
func (h *Handler) ApprovePlan(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.helper.BadRequest(c, "请求格式错误", err.Error())
		return
	}

	voiceOption := models.VoiceOption(req.VoiceOption)
	if voiceOption != models.VoiceAI && voiceOption != models.VoiceUser {
		h.helper.BadRequest(c, "无效的声音来源: "+req.VoiceOption)
		return
	}
	if voiceOption == models.VoiceAI && req.VoiceID != "" && !gemini.IsValidVoice(req.VoiceID) {
		h.helper.BadRequest(c, "无效的声音: "+req.VoiceID)
		return
	}

	projectID := c.Param("id")
	snapshot, err := h.StoryService.GetSnapshot(projectID)
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	if snapshot.State != models.StateConfirmation {
		h.helper.Conflict(c, "当前状态不允许确认计划: "+string(snapshot.State))
		return
	}

	// 生成过程远长于请求生命周期，脱离请求上下文执行
	go func() {
		if err := h.StoryService.Approve(context.Background(), projectID, voiceOption, req.VoiceID); err != nil {
			h.logger.Error("批量生成失败", map[string]interface{}{
				"project_id": projectID,
				"error":      err.Error(),
			})
		}
	}()

	h.helper.Accepted(c, gin.H{"project_id": projectID}, "已开始生成资源")
}

// RegenerateScene 用新文本重新生成单个场景
func (h *Handler) RegenerateScene(c *gin.Context) {
	sceneNumber, ok := h.sceneParam(c)
	if !ok {
		return
	}

	var req UpdateSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.helper.BadRequest(c, "请求格式错误", err.Error())
		return
	}

	projectID := c.Param("id")
	go func() {
		if err := h.StoryService.RegenerateScene(context.Background(), projectID, sceneNumber, req.Narration, req.ImagePrompt); err != nil {
			h.logger.Error("场景重新生成失败", map[string]interface{}{
				"project_id": projectID,
				"scene":      sceneNumber,
				"error":      err.Error(),
			})
		}
	}()

	h.helper.Accepted(c, gin.H{"project_id": projectID, "scene": sceneNumber}, "已开始重新生成场景")
}

// ContinueStory 在后台续写新场景
func (h *Handler) ContinueStory(c *gin.Context) {
	projectID := c.Param("id")

	snapshot, err := h.StoryService.GetSnapshot(projectID)
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	if snapshot.State != models.StateDone {
		h.helper.Conflict(c, "当前状态不允许续写: "+string(snapshot.State))
		return
	}
	if snapshot.Continuing {
		h.helper.Conflict(c, "续写请求已在进行中")
		return
	}
	if snapshot.Finalizing || snapshot.Conclusion != "" {
		h.helper.Conflict(c, "结语已生成，故事不能再续写")
		return
	}

	go func() {
		if err := h.StoryService.ContinueStory(context.Background(), projectID); err != nil {
			h.logger.Error("续写失败", map[string]interface{}{
				"project_id": projectID,
				"error":      err.Error(),
			})
		}
	}()

	h.helper.Accepted(c, gin.H{"project_id": projectID}, "已开始续写")
}

// FinalizeStory 生成故事结语
func (h *Handler) FinalizeStory(c *gin.Context) {
	conclusion, err := h.StoryService.FinalizeStory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.Success(c, gin.H{"conclusion": conclusion}, "结语生成完成")
}

// ResetProject 重置项目到初始状态
func (h *Handler) ResetProject(c *gin.Context) {
	if err := h.StoryService.Reset(c.Param("id")); err != nil {
		h.helper.AppError(c, err)
		return
	}
	snapshot, err := h.StoryService.GetSnapshot(c.Param("id"))
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.Success(c, snapshot, "项目已重置")
}

// UploadSceneAudio 上传用户自录的场景旁白
func (h *Handler) UploadSceneAudio(c *gin.Context) {
	sceneNumber, ok := h.sceneParam(c)
	if !ok {
		return
	}

	file, _, err := c.Request.FormFile("audio")
	if err != nil {
		h.helper.BadRequest(c, "缺少audio文件字段", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAudioUploadBytes+1))
	if err != nil {
		h.helper.Error(c, http.StatusBadRequest, ErrorFileUploadFailed, "读取上传文件失败", err.Error())
		return
	}
	if len(data) > maxAudioUploadBytes {
		h.helper.Error(c, http.StatusRequestEntityTooLarge, ErrorFileInvalid, "音频文件过大")
		return
	}

	url, err := h.StoryService.AttachUserAudio(c.Param("id"), sceneNumber, data)
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.Success(c, gin.H{"audio_url": url}, "音频上传成功")
}

// ===============================
// 播放与导出
// ===============================

// GetPlaybackTimeline 返回播放时间轴
func (h *Handler) GetPlaybackTimeline(c *gin.Context) {
	timeline, err := h.PlaybackService.Timeline(c.Param("id"))
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.Success(c, timeline)
}

// ExportProject 打包项目资源
func (h *Handler) ExportProject(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.helper.BadRequest(c, "请求格式错误", err.Error())
		return
	}

	result, err := h.ExportService.Export(c.Param("id"), models.ExportKind(req.Kind))
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.Success(c, result, "导出成功")
}

// DownloadExport 下载已生成的导出文件
func (h *Handler) DownloadExport(c *gin.Context) {
	fullPath, err := h.ExportService.OpenExport(c.Param("file"))
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.DownloadResponse(c, fullPath, c.Param("file"), "application/zip")
}

// ===============================
// 独立媒体工具
// ===============================

// ListVoices 返回可选音色列表
func (h *Handler) ListVoices(c *gin.Context) {
	h.helper.Success(c, h.MediaService.Voices())
}

// TextToVoice 文本转语音，返回WAV音频
func (h *Handler) TextToVoice(c *gin.Context) {
	var req TTSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.helper.BadRequest(c, "请求格式错误", err.Error())
		return
	}

	res, err := h.MediaService.TextToVoice(c.Request.Context(), req.Text, req.VoiceID)
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.BinaryResponse(c, res.Data, res.MIMEType)
}

// DescribeImage 上传图像并生成文字描述
func (h *Handler) DescribeImage(c *gin.Context) {
	image, ok := h.imageUpload(c)
	if !ok {
		return
	}

	text, err := h.MediaService.DescribeImage(c.Request.Context(), c.PostForm("prompt"), image)
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.Success(c, gin.H{"description": text})
}

// ImageToVideo 上传图像生成短视频，返回MP4
func (h *Handler) ImageToVideo(c *gin.Context) {
	image, ok := h.imageUpload(c)
	if !ok {
		return
	}

	prompt := c.PostForm("prompt")
	res, err := h.MediaService.ImageToVideo(c.Request.Context(), prompt, image)
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.BinaryResponse(c, res.Data, res.MIMEType)
}

// SuggestImagePrompt 根据旁白生成画面描述建议
func (h *Handler) SuggestImagePrompt(c *gin.Context) {
	var req SuggestPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.helper.BadRequest(c, "请求格式错误", err.Error())
		return
	}

	suggestion, err := h.MediaService.SuggestImagePrompt(c.Request.Context(), req.Narration)
	if err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.Success(c, gin.H{"image_prompt": suggestion})
}

// ===============================
// 设置与状态
// ===============================

// GetSettings 返回脱敏后的设置
func (h *Handler) GetSettings(c *gin.Context) {
	h.helper.Success(c, h.ConfigService.GetSettings())
}

// UpdateSettings 更新Gemini密钥
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.helper.BadRequest(c, "请求格式错误", err.Error())
		return
	}

	if err := h.ConfigService.UpdateAPIKey(req.APIKey); err != nil {
		h.helper.AppError(c, err)
		return
	}
	h.helper.Success(c, h.ConfigService.GetSettings(), "设置已更新")
}

// GetStats 返回生成统计与运行指标
func (h *Handler) GetStats(c *gin.Context) {
	h.helper.Success(c, gin.H{
		"generation": h.StatsService.Snapshot(),
		"metrics":    utils.GetMetricsCollector().GetMetrics(),
	})
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"has_api_key": h.ConfigService.HasKey(),
		"timestamp":   time.Now(),
	})
}

// ProgressWebSocket 升级连接并推送项目进度
func (h *Handler) ProgressWebSocket(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := h.StoryService.GetSnapshot(projectID); err != nil {
		h.helper.AppError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket升级失败", map[string]interface{}{"error": err.Error()})
		return
	}

	serveProgressSocket(conn, projectID)
}

// ===============================
// 辅助方法
// ===============================

// sceneParam 解析并校验场景号路径参数
func (h *Handler) sceneParam(c *gin.Context) (int, bool) {
	sceneNumber, err := strconv.Atoi(c.Param("scene"))
	if err != nil || sceneNumber < 1 {
		h.helper.BadRequest(c, "无效的场景号: "+c.Param("scene"))
		return 0, false
	}
	return sceneNumber, true
}

// imageUpload 读取multipart图像字段并校验大小与类型
func (h *Handler) imageUpload(c *gin.Context) (gemini.ImagePart, bool) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		h.helper.BadRequest(c, "缺少image文件字段", err.Error())
		return gemini.ImagePart{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageUploadBytes+1))
	if err != nil {
		h.helper.Error(c, http.StatusBadRequest, ErrorFileUploadFailed, "读取上传文件失败", err.Error())
		return gemini.ImagePart{}, false
	}
	if len(data) > maxImageUploadBytes {
		h.helper.Error(c, http.StatusRequestEntityTooLarge, ErrorFileInvalid, "图像文件过大")
		return gemini.ImagePart{}, false
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/png"
	}

	return gemini.ImagePart{Data: data, MIMEType: mimeType}, true
}

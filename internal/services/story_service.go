package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/StoryWeaverMCP/internal/errors"
	"github.com/Corphon/StoryWeaverMCP/internal/gemini"
	"github.com/Corphon/StoryWeaverMCP/internal/models"
	"github.com/Corphon/StoryWeaverMCP/internal/storage"
	"github.com/Corphon/StoryWeaverMCP/internal/utils"
)

// Generator 故事工作流所需的远端生成能力
// *gemini.Client 实现此接口，测试中用脚本化实现替代
type Generator interface {
	PlanStory(ctx context.Context, idea string) (*models.ProjectPlan, error)
	ContinuePlan(ctx context.Context, plan *models.ProjectPlan) ([]models.Scene, error)
	GenerateConclusion(ctx context.Context, plan *models.ProjectPlan) (string, error)
	GenerateImage(ctx context.Context, prompt string) (*gemini.Resource, error)
	GenerateSpeech(ctx context.Context, text string, voiceID string) (*gemini.Resource, error)
}

// APIKeyCapability 平台密钥能力的可选探测
type APIKeyCapability interface {
	HasKey() bool
}

// storyProject 单个项目的协调器状态
// 远端调用期间不持有锁，任务结果回写前先检查纪元
type storyProject struct {
	mu          sync.RWMutex
	id          string
	state       models.WorkflowState
	idea        string
	plan        *models.ProjectPlan
	conclusion  string
	voiceOption models.VoiceOption
	voiceID     string
	continuing  bool
	finalizing  bool
	lastError   string
	epoch       uint64
	sceneGens   map[int]uint64
	assets      *AssetStore
	board       *ProgressBoard
	createdAt   time.Time
	updatedAt   time.Time
}

// current 判断任务携带的纪元与场景代数是否仍然有效
// 重置或单场景重生成之后，旧任务的结果会被丢弃
func (p *storyProject) current(epoch uint64, sceneNumber int, gen uint64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.epoch == epoch && p.sceneGens[sceneNumber] == gen
}

func (p *storyProject) touchLocked() {
	p.updatedAt = time.Now()
}

// snapshotLocked 构造一致性快照，调用方必须已持锁
func (p *storyProject) snapshotLocked() *models.ProjectSnapshot {
	var planCopy *models.ProjectPlan
	if p.plan != nil {
		planCopy = &models.ProjectPlan{
			Title:  p.plan.Title,
			Scenes: append([]models.Scene(nil), p.plan.Scenes...),
		}
	}
	return &models.ProjectSnapshot{
		ID:          p.id,
		State:       p.state,
		Idea:        p.idea,
		Plan:        planCopy,
		Assets:      p.assets.List(),
		Progress:    p.board.Snapshot(),
		Conclusion:  p.conclusion,
		VoiceOption: p.voiceOption,
		VoiceID:     p.voiceID,
		Continuing:  p.continuing,
		Finalizing:  p.finalizing,
		LastError:   p.lastError,
		CreatedAt:   p.createdAt,
		UpdatedAt:   p.updatedAt,
	}
}

// StoryService 故事工作流协调器
// 管理多个项目，每个项目独立推进 IDLE→PLANNING→CONFIRMATION→GENERATING→DONE
type StoryService struct {
	mu         sync.RWMutex
	projects   map[string]*storyProject
	gen        Generator
	capability APIKeyCapability
	progress   *ProgressService
	storage    *storage.FileStorage
	stats      *StatsService
	logger     *utils.Logger
}

// NewStoryService 创建故事服务
func NewStoryService(gen Generator, capability APIKeyCapability, progress *ProgressService, fileStorage *storage.FileStorage, stats *StatsService) *StoryService {
	return &StoryService{
		projects:   make(map[string]*storyProject),
		gen:        gen,
		capability: capability,
		progress:   progress,
		storage:    fileStorage,
		stats:      stats,
		logger:     utils.GetLogger(),
	}
}

// SetGenerator 替换远端生成器，密钥更新后由配置层调用
func (s *StoryService) SetGenerator(gen Generator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen = gen
}

func (s *StoryService) generator() Generator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// checkCapability 在发起任何远端调用前检查密钥是否就绪
func (s *StoryService) checkCapability() error {
	s.mu.RLock()
	capability := s.capability
	gen := s.gen
	s.mu.RUnlock()

	if gen == nil {
		return apperrors.NewOperationError("生成器未初始化", nil)
	}
	if capability != nil && !capability.HasKey() {
		return apperrors.NewValidationError("Gemini API密钥未配置，请先在设置中填写", nil)
	}
	return nil
}

// CreateProject 创建空项目，初始状态为 IDLE
func (s *StoryService) CreateProject() *models.ProjectSnapshot {
	now := time.Now()
	p := &storyProject{
		id:        uuid.NewString(),
		state:     models.StateIdle,
		sceneGens: make(map[int]uint64),
		assets:    NewAssetStore(),
		createdAt: now,
		updatedAt: now,
	}

	s.mu.Lock()
	s.projects[p.id] = p
	s.mu.Unlock()

	p.board = s.progress.Board(p.id)

	s.logger.Info("创建项目", map[string]interface{}{"project_id": p.id})

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (s *StoryService) project(projectID string) (*storyProject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projectID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("项目不存在: %s", projectID), nil)
	}
	return p, nil
}

// GetSnapshot 返回项目的一致性快照
func (s *StoryService) GetSnapshot(projectID string) (*models.ProjectSnapshot, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked(), nil
}

// ListProjects 按创建时间升序返回全部项目快照
func (s *StoryService) ListProjects() []*models.ProjectSnapshot {
	s.mu.RLock()
	projects := make([]*storyProject, 0, len(s.projects))
	for _, p := range s.projects {
		projects = append(projects, p)
	}
	s.mu.RUnlock()

	result := make([]*models.ProjectSnapshot, 0, len(projects))
	for _, p := range projects {
		p.mu.RLock()
		result = append(result, p.snapshotLocked())
		p.mu.RUnlock()
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// RemoveProject 移除项目并清理磁盘资源与进度板
func (s *StoryService) RemoveProject(projectID string) error {
	s.mu.Lock()
	p, ok := s.projects[projectID]
	delete(s.projects, projectID)
	s.mu.Unlock()

	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("项目不存在: %s", projectID), nil)
	}

	p.mu.Lock()
	p.epoch++
	p.mu.Unlock()

	s.progress.Remove(projectID)
	if err := s.storage.DeleteProject(projectID); err != nil {
		s.logger.Warn("删除项目资源失败", map[string]interface{}{
			"project_id": projectID,
			"error":      err.Error(),
		})
	}
	return nil
}

// SubmitIdea 提交创意并规划分场景故事
// IDLE→PLANNING，成功后进入 CONFIRMATION，失败回到 IDLE
func (s *StoryService) SubmitIdea(ctx context.Context, projectID, idea string) (*models.ProjectSnapshot, error) {
	if strings.TrimSpace(idea) == "" {
		return nil, apperrors.NewValidationError("创意内容不能为空", nil)
	}
	if err := s.checkCapability(); err != nil {
		return nil, err
	}

	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.state != models.StateIdle {
		state := p.state
		p.mu.Unlock()
		return nil, apperrors.NewConflictError(fmt.Sprintf("当前状态不允许提交创意: %s", state), nil)
	}
	p.state = models.StatePlanning
	p.idea = idea
	p.lastError = ""
	epoch := p.epoch
	p.touchLocked()
	p.mu.Unlock()

	s.stats.RecordPlan()
	plan, genErr := s.generator().PlanStory(ctx, idea)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch != epoch {
		// 规划期间项目被重置，丢弃结果
		return p.snapshotLocked(), nil
	}
	if genErr != nil {
		p.state = models.StateIdle
		p.lastError = genErr.Error()
		p.touchLocked()
		s.logger.Error("故事规划失败", map[string]interface{}{
			"project_id": projectID,
			"error":      genErr.Error(),
		})
		return nil, genErr
	}

	sort.SliceStable(plan.Scenes, func(i, j int) bool {
		return plan.Scenes[i].SceneNumber < plan.Scenes[j].SceneNumber
	})
	p.plan = plan
	p.state = models.StateConfirmation
	p.touchLocked()

	s.logger.Info("故事规划完成", map[string]interface{}{
		"project_id":  projectID,
		"title":       plan.Title,
		"scene_count": len(plan.Scenes),
	})
	return p.snapshotLocked(), nil
}

// UpdatePlannedScene 在确认阶段修改某个场景的文本
func (s *StoryService) UpdatePlannedScene(projectID string, sceneNumber int, narration, imagePrompt string) (*models.ProjectSnapshot, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != models.StateConfirmation {
		return nil, apperrors.NewConflictError(fmt.Sprintf("当前状态不允许编辑计划: %s", p.state), nil)
	}
	idx := p.plan.FindScene(sceneNumber)
	if idx < 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("场景不存在: %d", sceneNumber), nil)
	}
	if strings.TrimSpace(narration) == "" || strings.TrimSpace(imagePrompt) == "" {
		return nil, apperrors.NewValidationError("旁白和画面描述不能为空", nil)
	}

	p.plan.Scenes[idx].Narration = narration
	p.plan.Scenes[idx].ImagePrompt = imagePrompt
	p.touchLocked()
	return p.snapshotLocked(), nil
}

// Approve 确认故事计划并启动资源生成
// CONFIRMATION→GENERATING，全部场景结束后进入 DONE
// 同一场景的图像与音频并发生成，各场景之间也并发
func (s *StoryService) Approve(ctx context.Context, projectID string, voiceOption models.VoiceOption, voiceID string) error {
	if err := s.checkCapability(); err != nil {
		return err
	}
	if voiceOption != models.VoiceAI && voiceOption != models.VoiceUser {
		return apperrors.NewValidationError(fmt.Sprintf("无效的声音来源: %s", voiceOption), nil)
	}
	if voiceOption == models.VoiceAI {
		if voiceID == "" {
			voiceID = gemini.DefaultVoiceID
		}
		if !gemini.IsValidVoice(voiceID) {
			return apperrors.NewValidationError(fmt.Sprintf("无效的声音: %s", voiceID), nil)
		}
	}

	p, err := s.project(projectID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.state != models.StateConfirmation {
		state := p.state
		p.mu.Unlock()
		return apperrors.NewConflictError(fmt.Sprintf("当前状态不允许确认计划: %s", state), nil)
	}
	p.state = models.StateGenerating
	p.voiceOption = voiceOption
	p.voiceID = voiceID
	p.lastError = ""
	epoch := p.epoch
	scenes := append([]models.Scene(nil), p.plan.Scenes...)

	// 调度之前先登记全部场景的 pending 进度和资源占位
	numbers := make([]int, 0, len(scenes))
	for _, scene := range scenes {
		p.assets.InitScene(scene)
		numbers = append(numbers, scene.SceneNumber)
	}
	p.board.InitScenes(numbers)
	p.touchLocked()
	p.mu.Unlock()

	s.logger.Info("开始生成资源", map[string]interface{}{
		"project_id":  projectID,
		"scene_count": len(scenes),
		"voice":       string(voiceOption),
	})

	s.generateScenes(ctx, p, scenes, epoch)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch == epoch && p.state == models.StateGenerating {
		p.state = models.StateDone
		p.touchLocked()
	}
	return nil
}

// generateScenes 对每个场景派发图像与音频两个任务并等待全部结束
// 任务至多派发一次，失败只记录状态，不自动重试
func (s *StoryService) generateScenes(ctx context.Context, p *storyProject, scenes []models.Scene, epoch uint64) {
	p.mu.RLock()
	voiceOption := p.voiceOption
	voiceID := p.voiceID
	gens := make(map[int]uint64, len(scenes))
	for _, scene := range scenes {
		gens[scene.SceneNumber] = p.sceneGens[scene.SceneNumber]
	}
	p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, scene := range scenes {
		wg.Add(2)
		go func(scene models.Scene) {
			defer wg.Done()
			s.generateSceneImage(ctx, p, scene, epoch, gens[scene.SceneNumber])
		}(scene)
		go func(scene models.Scene) {
			defer wg.Done()
			s.generateSceneAudio(ctx, p, scene, epoch, gens[scene.SceneNumber], voiceOption, voiceID)
		}(scene)
	}
	wg.Wait()
}

func (s *StoryService) generateSceneImage(ctx context.Context, p *storyProject, scene models.Scene, epoch, gen uint64) {
	if !p.current(epoch, scene.SceneNumber, gen) {
		return
	}
	p.board.SetImage(scene.SceneNumber, models.StatusGenerating)

	res, err := s.generator().GenerateImage(ctx, scene.ImagePrompt)
	if err == nil {
		var url string
		url, err = s.storage.SaveSceneAsset(p.id, scene.SceneNumber, storage.AssetImage, res.Data)
		if err == nil {
			s.stats.RecordImage(true)
			if p.current(epoch, scene.SceneNumber, gen) {
				p.assets.SetImageURL(scene.SceneNumber, &url)
				p.board.SetImage(scene.SceneNumber, models.StatusDone)
			}
			return
		}
	}

	s.stats.RecordImage(false)
	s.logger.Error("场景图像生成失败", map[string]interface{}{
		"project_id": p.id,
		"scene":      scene.SceneNumber,
		"error":      err.Error(),
	})
	if p.current(epoch, scene.SceneNumber, gen) {
		p.board.SetImage(scene.SceneNumber, models.StatusError)
		p.noteError(err)
	}
}

func (s *StoryService) generateSceneAudio(ctx context.Context, p *storyProject, scene models.Scene, epoch, gen uint64, voiceOption models.VoiceOption, voiceID string) {
	if !p.current(epoch, scene.SceneNumber, gen) {
		return
	}
	if voiceOption == models.VoiceUser {
		// 用户自录旁白，跳过合成，等待后续上传
		p.board.SetAudio(scene.SceneNumber, models.StatusDone)
		return
	}
	p.board.SetAudio(scene.SceneNumber, models.StatusGenerating)

	res, err := s.generator().GenerateSpeech(ctx, scene.Narration, voiceID)
	if err == nil {
		var url string
		url, err = s.storage.SaveSceneAsset(p.id, scene.SceneNumber, storage.AssetAudio, res.Data)
		if err == nil {
			s.stats.RecordAudio(true)
			if p.current(epoch, scene.SceneNumber, gen) {
				p.assets.SetAudioURL(scene.SceneNumber, &url)
				p.board.SetAudio(scene.SceneNumber, models.StatusDone)
			}
			return
		}
	}

	s.stats.RecordAudio(false)
	s.logger.Error("场景音频生成失败", map[string]interface{}{
		"project_id": p.id,
		"scene":      scene.SceneNumber,
		"error":      err.Error(),
	})
	if p.current(epoch, scene.SceneNumber, gen) {
		p.board.SetAudio(scene.SceneNumber, models.StatusError)
		p.noteError(err)
	}
}

func (p *storyProject) noteError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastError = err.Error()
	p.touchLocked()
}

// RegenerateScene 用新文本重新生成单个场景的图像与音频
// 旧的二进制资源先清除，文本立即生效
// 同场景仍在途的旧任务通过代数递增作废，结果不会回写
func (s *StoryService) RegenerateScene(ctx context.Context, projectID string, sceneNumber int, narration, imagePrompt string) error {
	if strings.TrimSpace(narration) == "" || strings.TrimSpace(imagePrompt) == "" {
		return apperrors.NewValidationError("旁白和画面描述不能为空", nil)
	}
	if err := s.checkCapability(); err != nil {
		return err
	}

	p, err := s.project(projectID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.state != models.StateDone {
		state := p.state
		p.mu.Unlock()
		return apperrors.NewConflictError(fmt.Sprintf("当前状态不允许重新生成场景: %s", state), nil)
	}
	idx := p.plan.FindScene(sceneNumber)
	if idx < 0 {
		p.mu.Unlock()
		return apperrors.NewNotFoundError(fmt.Sprintf("场景不存在: %d", sceneNumber), nil)
	}

	p.plan.Scenes[idx].Narration = narration
	p.plan.Scenes[idx].ImagePrompt = imagePrompt
	p.assets.UpdateText(sceneNumber, narration, imagePrompt)
	p.assets.ClearBinaries(sceneNumber)
	p.sceneGens[sceneNumber]++
	epoch := p.epoch
	scene := p.plan.Scenes[idx]
	p.board.MarkGenerating(sceneNumber)
	p.touchLocked()
	p.mu.Unlock()

	_ = s.storage.DeleteSceneAsset(projectID, sceneNumber, storage.AssetImage)
	_ = s.storage.DeleteSceneAsset(projectID, sceneNumber, storage.AssetAudio)

	s.stats.RecordRegeneration()
	s.logger.Info("重新生成场景", map[string]interface{}{
		"project_id": projectID,
		"scene":      sceneNumber,
	})

	s.generateScenes(ctx, p, []models.Scene{scene}, epoch)
	return nil
}

// ContinueStory 在现有故事之后续写新场景
// 新场景号从当前最大场景号+1开始连续分配，保持返回顺序
func (s *StoryService) ContinueStory(ctx context.Context, projectID string) error {
	if err := s.checkCapability(); err != nil {
		return err
	}

	p, err := s.project(projectID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.state != models.StateDone {
		state := p.state
		p.mu.Unlock()
		return apperrors.NewConflictError(fmt.Sprintf("当前状态不允许续写: %s", state), nil)
	}
	if p.continuing {
		p.mu.Unlock()
		return apperrors.NewConflictError("续写请求已在进行中", nil)
	}
	if p.finalizing || p.conclusion != "" {
		p.mu.Unlock()
		return apperrors.NewConflictError("结语已生成，故事不能再续写", nil)
	}
	p.continuing = true
	p.lastError = ""
	epoch := p.epoch
	planCopy := &models.ProjectPlan{
		Title:  p.plan.Title,
		Scenes: append([]models.Scene(nil), p.plan.Scenes...),
	}
	p.touchLocked()
	p.mu.Unlock()

	s.stats.RecordContinue()
	newScenes, genErr := s.generator().ContinuePlan(ctx, planCopy)

	p.mu.Lock()
	if p.epoch != epoch {
		p.mu.Unlock()
		return nil
	}
	if genErr != nil {
		p.continuing = false
		p.lastError = genErr.Error()
		p.touchLocked()
		p.mu.Unlock()
		s.logger.Error("续写规划失败", map[string]interface{}{
			"project_id": projectID,
			"error":      genErr.Error(),
		})
		return genErr
	}
	if len(newScenes) == 0 {
		p.continuing = false
		p.touchLocked()
		p.mu.Unlock()
		return apperrors.NewNoDataError("续写未返回任何新场景", nil)
	}

	// 重新编号为 max+1..max+k，再按场景号稳定排序
	base := p.plan.MaxSceneNumber()
	for i := range newScenes {
		newScenes[i].SceneNumber = base + i + 1
	}
	sort.SliceStable(newScenes, func(i, j int) bool {
		return newScenes[i].SceneNumber < newScenes[j].SceneNumber
	})

	// 续写期间项目停留在 DONE，只用 continuing 标记占用
	// 结语、单场景重生成和播放不受影响
	p.plan.Scenes = append(p.plan.Scenes, newScenes...)
	numbers := make([]int, 0, len(newScenes))
	for _, scene := range newScenes {
		p.assets.InitScene(scene)
		numbers = append(numbers, scene.SceneNumber)
	}
	p.board.InitScenes(numbers)
	p.touchLocked()
	p.mu.Unlock()

	s.logger.Info("续写新场景", map[string]interface{}{
		"project_id":  projectID,
		"new_scenes":  len(newScenes),
		"first_scene": base + 1,
	})

	s.generateScenes(ctx, p, newScenes, epoch)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch == epoch {
		p.continuing = false
		p.touchLocked()
	}
	return nil
}

// FinalizeStory 为完整故事生成结语
func (s *StoryService) FinalizeStory(ctx context.Context, projectID string) (string, error) {
	if err := s.checkCapability(); err != nil {
		return "", err
	}

	p, err := s.project(projectID)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	if p.state != models.StateDone {
		state := p.state
		p.mu.Unlock()
		return "", apperrors.NewConflictError(fmt.Sprintf("当前状态不允许生成结语: %s", state), nil)
	}
	if p.finalizing {
		p.mu.Unlock()
		return "", apperrors.NewConflictError("结语生成已在进行中", nil)
	}
	if p.conclusion != "" {
		p.mu.Unlock()
		return "", apperrors.NewConflictError("结语已存在", nil)
	}
	p.finalizing = true
	epoch := p.epoch
	planCopy := &models.ProjectPlan{
		Title:  p.plan.Title,
		Scenes: append([]models.Scene(nil), p.plan.Scenes...),
	}
	p.touchLocked()
	p.mu.Unlock()

	s.stats.RecordConclusion()
	text, genErr := s.generator().GenerateConclusion(ctx, planCopy)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch != epoch {
		return "", nil
	}
	p.finalizing = false
	if genErr != nil {
		p.lastError = genErr.Error()
		p.touchLocked()
		return "", genErr
	}
	p.conclusion = text
	p.touchLocked()
	return text, nil
}

// AttachUserAudio 保存用户自录的场景旁白音频
func (s *StoryService) AttachUserAudio(projectID string, sceneNumber int, wavData []byte) (string, error) {
	if len(wavData) == 0 {
		return "", apperrors.NewValidationError("音频数据为空", nil)
	}

	p, err := s.project(projectID)
	if err != nil {
		return "", err
	}

	if _, ok := p.assets.Get(sceneNumber); !ok {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("场景不存在: %d", sceneNumber), nil)
	}

	url, err := s.storage.SaveSceneAsset(projectID, sceneNumber, storage.AssetAudio, wavData)
	if err != nil {
		return "", apperrors.WrapError(err, "保存用户音频失败", apperrors.ErrorTypeOperation)
	}

	p.assets.SetAudioURL(sceneNumber, &url)
	p.board.SetAudio(sceneNumber, models.StatusDone)

	p.mu.Lock()
	p.touchLocked()
	p.mu.Unlock()
	return url, nil
}

// Reset 将项目回到 IDLE，清空计划、资源与进度
// 纪元递增使在途任务的结果全部作废
func (s *StoryService) Reset(projectID string) error {
	p, err := s.project(projectID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.epoch++
	p.state = models.StateIdle
	p.idea = ""
	p.plan = nil
	p.conclusion = ""
	p.voiceOption = ""
	p.voiceID = ""
	p.continuing = false
	p.finalizing = false
	p.lastError = ""
	p.sceneGens = make(map[int]uint64)
	p.assets.Reset()
	p.board.Reset()
	p.touchLocked()
	p.mu.Unlock()

	if err := s.storage.DeleteProject(projectID); err != nil {
		s.logger.Warn("清理项目资源失败", map[string]interface{}{
			"project_id": projectID,
			"error":      err.Error(),
		})
	}

	s.logger.Info("项目已重置", map[string]interface{}{"project_id": projectID})
	return nil
}

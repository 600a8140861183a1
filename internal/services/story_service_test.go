package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	apperrors "github.com/Corphon/StoryWeaverMCP/internal/errors"
	"github.com/Corphon/StoryWeaverMCP/internal/gemini"
	"github.com/Corphon/StoryWeaverMCP/internal/models"
	"github.com/Corphon/StoryWeaverMCP/internal/storage"
)

// fakeGenerator 测试用脚本化生成器
// 每个函数可单独替换，未设置的走默认成功路径
type fakeGenerator struct {
	planFn       func(ctx context.Context, idea string) (*models.ProjectPlan, error)
	continueFn   func(ctx context.Context, plan *models.ProjectPlan) ([]models.Scene, error)
	conclusionFn func(ctx context.Context, plan *models.ProjectPlan) (string, error)
	imageFn      func(ctx context.Context, prompt string) (*gemini.Resource, error)
	speechFn     func(ctx context.Context, text, voiceID string) (*gemini.Resource, error)

	imageCalls  int64
	speechCalls int64
}

func defaultPlan() *models.ProjectPlan {
	return &models.ProjectPlan{
		Title: "测试故事",
		Scenes: []models.Scene{
			{SceneNumber: 1, Narration: "第一幕的旁白", ImagePrompt: "prompt one"},
			{SceneNumber: 2, Narration: "第二幕的旁白", ImagePrompt: "prompt two"},
			{SceneNumber: 3, Narration: "第三幕的旁白", ImagePrompt: "prompt three"},
		},
	}
}

func (g *fakeGenerator) PlanStory(ctx context.Context, idea string) (*models.ProjectPlan, error) {
	if g.planFn != nil {
		return g.planFn(ctx, idea)
	}
	return defaultPlan(), nil
}

func (g *fakeGenerator) ContinuePlan(ctx context.Context, plan *models.ProjectPlan) ([]models.Scene, error) {
	if g.continueFn != nil {
		return g.continueFn(ctx, plan)
	}
	return []models.Scene{
		{SceneNumber: 1, Narration: "续写第一幕", ImagePrompt: "cont one"},
		{SceneNumber: 2, Narration: "续写第二幕", ImagePrompt: "cont two"},
	}, nil
}

func (g *fakeGenerator) GenerateConclusion(ctx context.Context, plan *models.ProjectPlan) (string, error) {
	if g.conclusionFn != nil {
		return g.conclusionFn(ctx, plan)
	}
	return "这是结语。", nil
}

func (g *fakeGenerator) GenerateImage(ctx context.Context, prompt string) (*gemini.Resource, error) {
	atomic.AddInt64(&g.imageCalls, 1)
	if g.imageFn != nil {
		return g.imageFn(ctx, prompt)
	}
	return &gemini.Resource{Data: []byte("png:" + prompt), MIMEType: "image/png"}, nil
}

func (g *fakeGenerator) GenerateSpeech(ctx context.Context, text, voiceID string) (*gemini.Resource, error) {
	atomic.AddInt64(&g.speechCalls, 1)
	if g.speechFn != nil {
		return g.speechFn(ctx, text, voiceID)
	}
	return &gemini.Resource{Data: gemini.PCMToWAV(make([]byte, 4800), 24000, 1), MIMEType: "audio/wav"}, nil
}

// newTestStack 构建带临时存储的完整服务栈
func newTestStack(t *testing.T, gen Generator) (*StoryService, *ProgressService, *storage.FileStorage, string) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "story_test_*")
	if err != nil {
		t.Fatalf("创建临时测试目录失败: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	fileStorage, err := storage.NewFileStorage(tempDir)
	if err != nil {
		t.Fatalf("创建文件存储失败: %v", err)
	}

	progress := NewProgressService()
	return NewStoryService(gen, nil, progress, fileStorage, NewStatsService()), progress, fileStorage, tempDir
}

func newTestStoryService(t *testing.T, gen Generator) (*StoryService, *ProgressService) {
	t.Helper()
	s, progress, _, _ := newTestStack(t, gen)
	return s, progress
}

// planProject 建项目并推进到 CONFIRMATION
func planProject(t *testing.T, s *StoryService) string {
	t.Helper()

	snapshot := s.CreateProject()
	if snapshot.State != models.StateIdle {
		t.Fatalf("新项目状态应为IDLE，实际为 %s", snapshot.State)
	}

	snapshot, err := s.SubmitIdea(context.Background(), snapshot.ID, "一个测试创意")
	if err != nil {
		t.Fatalf("提交创意失败: %v", err)
	}
	if snapshot.State != models.StateConfirmation {
		t.Fatalf("规划完成后状态应为CONFIRMATION，实际为 %s", snapshot.State)
	}
	return snapshot.ID
}

// generateProject 建项目并完整跑完批量生成
func generateProject(t *testing.T, s *StoryService, voice models.VoiceOption) string {
	t.Helper()

	projectID := planProject(t, s)
	if err := s.Approve(context.Background(), projectID, voice, "Kore"); err != nil {
		t.Fatalf("确认计划失败: %v", err)
	}

	snapshot, err := s.GetSnapshot(projectID)
	if err != nil {
		t.Fatalf("获取快照失败: %v", err)
	}
	if snapshot.State != models.StateDone {
		t.Fatalf("生成完成后状态应为DONE，实际为 %s", snapshot.State)
	}
	return projectID
}

func TestSubmitIdeaEmptyRejected(t *testing.T) {
	s, _ := newTestStoryService(t, &fakeGenerator{})
	snapshot := s.CreateProject()

	_, err := s.SubmitIdea(context.Background(), snapshot.ID, "   ")
	if !apperrors.IsValidationError(err) {
		t.Fatalf("空创意应返回校验错误，实际为 %v", err)
	}

	// 状态不应改变
	after, _ := s.GetSnapshot(snapshot.ID)
	if after.State != models.StateIdle {
		t.Errorf("校验失败后状态应保持IDLE，实际为 %s", after.State)
	}
}

func TestSubmitIdeaWrongStateConflict(t *testing.T) {
	s, _ := newTestStoryService(t, &fakeGenerator{})
	projectID := planProject(t, s)

	_, err := s.SubmitIdea(context.Background(), projectID, "又一个创意")
	if !apperrors.IsConflictError(err) {
		t.Fatalf("CONFIRMATION状态下提交创意应返回冲突错误，实际为 %v", err)
	}
}

func TestSubmitIdeaFailureReturnsToIdle(t *testing.T) {
	gen := &fakeGenerator{
		planFn: func(ctx context.Context, idea string) (*models.ProjectPlan, error) {
			return nil, apperrors.NewRemoteError("远端故障", nil)
		},
	}
	s, _ := newTestStoryService(t, gen)
	snapshot := s.CreateProject()

	if _, err := s.SubmitIdea(context.Background(), snapshot.ID, "创意"); err == nil {
		t.Fatal("规划失败应返回错误")
	}

	after, _ := s.GetSnapshot(snapshot.ID)
	if after.State != models.StateIdle {
		t.Errorf("规划失败后状态应回到IDLE，实际为 %s", after.State)
	}
	if after.LastError == "" {
		t.Error("规划失败后应记录lastError")
	}
}

func TestApproveGeneratesAllScenes(t *testing.T) {
	gen := &fakeGenerator{}
	s, progress := newTestStoryService(t, gen)
	projectID := generateProject(t, s, models.VoiceAI)

	snapshot, _ := s.GetSnapshot(projectID)
	if len(snapshot.Assets) != 3 {
		t.Fatalf("应有3个场景资源，实际为 %d", len(snapshot.Assets))
	}
	for _, asset := range snapshot.Assets {
		if asset.ImageURL == nil {
			t.Errorf("场景%d缺少图像URL", asset.SceneNumber)
		}
		if asset.AudioURL == nil {
			t.Errorf("场景%d缺少音频URL", asset.SceneNumber)
		}
	}

	board := progress.Board(projectID)
	if !board.AllSettled([]int{1, 2, 3}) {
		t.Error("全部场景的进度都应已结束")
	}
	if got := atomic.LoadInt64(&gen.imageCalls); got != 3 {
		t.Errorf("应调用3次图像生成，实际为 %d", got)
	}
	if got := atomic.LoadInt64(&gen.speechCalls); got != 3 {
		t.Errorf("应调用3次语音合成，实际为 %d", got)
	}
}

func TestApprovePartialFailureStillSettles(t *testing.T) {
	gen := &fakeGenerator{
		imageFn: func(ctx context.Context, prompt string) (*gemini.Resource, error) {
			if prompt == "prompt two" {
				return nil, apperrors.NewContentBlockedError("图像被策略拒绝", nil)
			}
			return &gemini.Resource{Data: []byte("png"), MIMEType: "image/png"}, nil
		},
	}
	s, progress := newTestStoryService(t, gen)
	projectID := generateProject(t, s, models.VoiceAI)

	board := progress.Board(projectID)
	failed := board.FailedScenes()
	if len(failed) != 1 || failed[0] != 2 {
		t.Fatalf("应只有场景2失败，实际为 %v", failed)
	}

	entry, _ := board.Get(2)
	if entry.Image != models.StatusError {
		t.Errorf("场景2图像状态应为error，实际为 %s", entry.Image)
	}
	if entry.Audio != models.StatusDone {
		t.Errorf("场景2音频状态应为done，实际为 %s", entry.Audio)
	}

	snapshot, _ := s.GetSnapshot(projectID)
	for _, asset := range snapshot.Assets {
		if asset.SceneNumber == 2 && asset.ImageURL != nil {
			t.Error("失败的场景不应有图像URL")
		}
	}
	if snapshot.LastError == "" {
		t.Error("部分失败应记录lastError")
	}
}

func TestApproveUserVoiceSkipsTTS(t *testing.T) {
	gen := &fakeGenerator{}
	s, progress := newTestStoryService(t, gen)
	projectID := generateProject(t, s, models.VoiceUser)

	if got := atomic.LoadInt64(&gen.speechCalls); got != 0 {
		t.Errorf("用户自录模式不应调用语音合成，实际调用 %d 次", got)
	}

	board := progress.Board(projectID)
	if !board.AllSettled([]int{1, 2, 3}) {
		t.Error("用户自录模式下音频进度也应结束")
	}

	snapshot, _ := s.GetSnapshot(projectID)
	for _, asset := range snapshot.Assets {
		if asset.AudioURL != nil {
			t.Errorf("场景%d在上传前不应有音频URL", asset.SceneNumber)
		}
	}
}

func TestApproveInvalidVoiceRejected(t *testing.T) {
	s, _ := newTestStoryService(t, &fakeGenerator{})
	projectID := planProject(t, s)

	if err := s.Approve(context.Background(), projectID, models.VoiceAI, "NoSuchVoice"); !apperrors.IsValidationError(err) {
		t.Fatalf("无效音色应返回校验错误，实际为 %v", err)
	}
	if err := s.Approve(context.Background(), projectID, "robot", ""); !apperrors.IsValidationError(err) {
		t.Fatalf("无效声音来源应返回校验错误，实际为 %v", err)
	}
}

func TestContinueStoryRenumbersScenes(t *testing.T) {
	gen := &fakeGenerator{}
	s, _ := newTestStoryService(t, gen)
	projectID := generateProject(t, s, models.VoiceAI)

	if err := s.ContinueStory(context.Background(), projectID); err != nil {
		t.Fatalf("续写失败: %v", err)
	}

	snapshot, _ := s.GetSnapshot(projectID)
	if snapshot.State != models.StateDone {
		t.Fatalf("续写生成后状态应为DONE，实际为 %s", snapshot.State)
	}
	if len(snapshot.Plan.Scenes) != 5 {
		t.Fatalf("续写后应有5个场景，实际为 %d", len(snapshot.Plan.Scenes))
	}

	// 新场景编号应为 4、5，顺序与返回顺序一致
	if snapshot.Plan.Scenes[3].SceneNumber != 4 || snapshot.Plan.Scenes[4].SceneNumber != 5 {
		t.Errorf("新场景应编号为4和5，实际为 %d 和 %d",
			snapshot.Plan.Scenes[3].SceneNumber, snapshot.Plan.Scenes[4].SceneNumber)
	}
	if snapshot.Plan.Scenes[3].Narration != "续写第一幕" {
		t.Errorf("新场景顺序应与返回顺序一致，场景4的旁白为 %q", snapshot.Plan.Scenes[3].Narration)
	}

	// 原有场景的资源保持不变
	if len(snapshot.Assets) != 5 {
		t.Errorf("续写后应有5个场景资源，实际为 %d", len(snapshot.Assets))
	}
}

func TestContinueStoryWrongStateConflict(t *testing.T) {
	s, _ := newTestStoryService(t, &fakeGenerator{})
	projectID := planProject(t, s)

	if err := s.ContinueStory(context.Background(), projectID); !apperrors.IsConflictError(err) {
		t.Fatalf("CONFIRMATION状态下续写应返回冲突错误，实际为 %v", err)
	}
}

func TestContinueStoryRejectedAfterConclusion(t *testing.T) {
	s, _ := newTestStoryService(t, &fakeGenerator{})
	projectID := generateProject(t, s, models.VoiceAI)

	if _, err := s.FinalizeStory(context.Background(), projectID); err != nil {
		t.Fatalf("生成结语失败: %v", err)
	}

	if err := s.ContinueStory(context.Background(), projectID); !apperrors.IsConflictError(err) {
		t.Fatalf("结语存在时续写应返回冲突错误，实际为 %v", err)
	}

	snapshot, _ := s.GetSnapshot(projectID)
	if len(snapshot.Plan.Scenes) != 3 {
		t.Errorf("被拒绝的续写不应追加场景，场景数 %d", len(snapshot.Plan.Scenes))
	}
}

func TestContinueStoryKeepsDoneState(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var startOnce sync.Once

	gen := &fakeGenerator{}
	s, _ := newTestStoryService(t, gen)
	projectID := generateProject(t, s, models.VoiceAI)

	// 批量生成结束后再换上受控的图像生成，只拦截续写场景
	gen.imageFn = func(ctx context.Context, prompt string) (*gemini.Resource, error) {
		startOnce.Do(func() { close(started) })
		<-release
		return &gemini.Resource{Data: []byte("cont png"), MIMEType: "image/png"}, nil
	}

	continueDone := make(chan error, 1)
	go func() {
		continueDone <- s.ContinueStory(context.Background(), projectID)
	}()
	<-started

	// 续写进行中项目仍停留在DONE，只靠continuing标记占用
	snapshot, _ := s.GetSnapshot(projectID)
	if snapshot.State != models.StateDone {
		t.Errorf("续写进行中状态应保持DONE，实际为 %s", snapshot.State)
	}
	if !snapshot.Continuing {
		t.Error("续写进行中continuing标记应为true")
	}

	// 结语生成不因续写而被拒绝
	if _, err := s.FinalizeStory(context.Background(), projectID); err != nil {
		t.Errorf("续写进行中生成结语不应失败: %v", err)
	}

	close(release)
	if err := <-continueDone; err != nil {
		t.Fatalf("续写返回错误: %v", err)
	}

	snapshot, _ = s.GetSnapshot(projectID)
	if snapshot.Continuing {
		t.Error("续写结束后continuing标记应清除")
	}
	if snapshot.State != models.StateDone || len(snapshot.Plan.Scenes) != 5 {
		t.Errorf("续写结束后应为DONE且有5个场景，实际为 %s / %d",
			snapshot.State, len(snapshot.Plan.Scenes))
	}
}

func TestRegenerateSceneReplacesAssets(t *testing.T) {
	gen := &fakeGenerator{}
	s, _ := newTestStoryService(t, gen)
	projectID := generateProject(t, s, models.VoiceAI)

	before, _ := s.GetSnapshot(projectID)
	beforeCalls := atomic.LoadInt64(&gen.imageCalls)

	err := s.RegenerateScene(context.Background(), projectID, 2, "新的旁白", "new prompt")
	if err != nil {
		t.Fatalf("重新生成场景失败: %v", err)
	}

	after, _ := s.GetSnapshot(projectID)
	if after.State != models.StateDone {
		t.Errorf("重新生成后状态应保持DONE，实际为 %s", after.State)
	}

	var scene2 *models.GeneratedAsset
	for i := range after.Assets {
		if after.Assets[i].SceneNumber == 2 {
			scene2 = &after.Assets[i]
		}
	}
	if scene2 == nil {
		t.Fatal("场景2资源丢失")
	}
	if scene2.Narration != "新的旁白" || scene2.ImagePrompt != "new prompt" {
		t.Errorf("场景2文本未更新: %q / %q", scene2.Narration, scene2.ImagePrompt)
	}
	if scene2.ImageURL == nil || scene2.AudioURL == nil {
		t.Error("重新生成后场景2应有新的图像和音频URL")
	}
	if atomic.LoadInt64(&gen.imageCalls) != beforeCalls+1 {
		t.Error("应只为场景2生成一次新图像")
	}

	// 其他场景不受影响
	if len(after.Assets) != len(before.Assets) {
		t.Errorf("场景数量不应变化: %d -> %d", len(before.Assets), len(after.Assets))
	}
}

func TestRegenerateSceneValidation(t *testing.T) {
	s, _ := newTestStoryService(t, &fakeGenerator{})
	projectID := generateProject(t, s, models.VoiceAI)

	if err := s.RegenerateScene(context.Background(), projectID, 2, "", "prompt"); !apperrors.IsValidationError(err) {
		t.Errorf("空旁白应返回校验错误，实际为 %v", err)
	}
	if err := s.RegenerateScene(context.Background(), projectID, 99, "旁白", "prompt"); !apperrors.IsNotFoundError(err) {
		t.Errorf("未知场景应返回不存在错误，实际为 %v", err)
	}
}

func TestRegenerateSceneResetsProgressToGenerating(t *testing.T) {
	s, progress := newTestStoryService(t, &fakeGenerator{})
	projectID := generateProject(t, s, models.VoiceAI)

	// 提交重生成之前订阅，第一条场景2的更新就是提交时刻的状态
	board := progress.Board(projectID)
	updates := board.Subscribe()
	defer board.Unsubscribe(updates)

	if err := s.RegenerateScene(context.Background(), projectID, 2, "新旁白", "new prompt"); err != nil {
		t.Fatalf("重新生成场景失败: %v", err)
	}

	first := <-updates
	if first.SceneNumber != 2 {
		t.Fatalf("第一条更新应属于场景2，实际为 %d", first.SceneNumber)
	}
	if first.Progress.Image != models.StatusGenerating || first.Progress.Audio != models.StatusGenerating {
		t.Errorf("重生成提交后进度应直接置为generating/generating，实际为 %s/%s",
			first.Progress.Image, first.Progress.Audio)
	}

	if entry, ok := board.Get(2); !ok || entry.Image != models.StatusDone || entry.Audio != models.StatusDone {
		t.Errorf("重生成完成后进度应为done/done，实际为 %+v", entry)
	}
}

func TestFinalizeStoryOnce(t *testing.T) {
	s, _ := newTestStoryService(t, &fakeGenerator{})
	projectID := generateProject(t, s, models.VoiceAI)

	conclusion, err := s.FinalizeStory(context.Background(), projectID)
	if err != nil {
		t.Fatalf("生成结语失败: %v", err)
	}
	if conclusion != "这是结语。" {
		t.Errorf("结语内容不符: %q", conclusion)
	}

	if _, err := s.FinalizeStory(context.Background(), projectID); !apperrors.IsConflictError(err) {
		t.Fatalf("重复生成结语应返回冲突错误，实际为 %v", err)
	}
}

func TestResetDropsInFlightResults(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var startOnce sync.Once

	gen := &fakeGenerator{
		imageFn: func(ctx context.Context, prompt string) (*gemini.Resource, error) {
			startOnce.Do(func() { close(started) })
			<-release
			return &gemini.Resource{Data: []byte("late png"), MIMEType: "image/png"}, nil
		},
	}
	s, progress := newTestStoryService(t, gen)
	projectID := planProject(t, s)

	approveDone := make(chan error, 1)
	go func() {
		approveDone <- s.Approve(context.Background(), projectID, models.VoiceAI, "Kore")
	}()

	// 等第一个图像任务开始后立即重置
	<-started
	if err := s.Reset(projectID); err != nil {
		t.Fatalf("重置失败: %v", err)
	}

	// 放行在途任务并等待批量生成收尾
	close(release)
	if err := <-approveDone; err != nil {
		t.Fatalf("确认计划返回错误: %v", err)
	}

	snapshot, _ := s.GetSnapshot(projectID)
	if snapshot.State != models.StateIdle {
		t.Errorf("重置后状态应为IDLE，实际为 %s", snapshot.State)
	}
	if snapshot.Plan != nil {
		t.Error("重置后计划应被清空")
	}
	if len(snapshot.Assets) != 0 {
		t.Errorf("在途任务的结果不应在重置后出现，资源数 %d", len(snapshot.Assets))
	}
	if len(progress.Board(projectID).Snapshot()) != 0 {
		t.Error("重置后进度板应为空")
	}
}

func TestAttachUserAudio(t *testing.T) {
	s, progress := newTestStoryService(t, &fakeGenerator{})
	projectID := generateProject(t, s, models.VoiceUser)

	url, err := s.AttachUserAudio(projectID, 1, []byte("RIFF fake wav"))
	if err != nil {
		t.Fatalf("上传用户音频失败: %v", err)
	}
	expected := fmt.Sprintf("/assets/%s/scene_1_audio.wav", projectID)
	if url != expected {
		t.Errorf("音频URL不符: %q != %q", url, expected)
	}

	entry, _ := progress.Board(projectID).Get(1)
	if entry.Audio != models.StatusDone {
		t.Errorf("上传后音频状态应为done，实际为 %s", entry.Audio)
	}

	if _, err := s.AttachUserAudio(projectID, 1, nil); !apperrors.IsValidationError(err) {
		t.Errorf("空音频数据应返回校验错误，实际为 %v", err)
	}
}

func TestProjectNotFound(t *testing.T) {
	s, _ := newTestStoryService(t, &fakeGenerator{})

	if _, err := s.GetSnapshot("no-such-id"); !apperrors.IsNotFoundError(err) {
		t.Errorf("未知项目应返回不存在错误，实际为 %v", err)
	}
	if err := s.Reset("no-such-id"); !apperrors.IsNotFoundError(err) {
		t.Errorf("重置未知项目应返回不存在错误，实际为 %v", err)
	}
}

func TestRemoveProject(t *testing.T) {
	s, _ := newTestStoryService(t, &fakeGenerator{})
	projectID := generateProject(t, s, models.VoiceAI)

	if err := s.RemoveProject(projectID); err != nil {
		t.Fatalf("删除项目失败: %v", err)
	}
	if _, err := s.GetSnapshot(projectID); !apperrors.IsNotFoundError(err) {
		t.Error("删除后的项目不应再能获取")
	}
	if err := s.RemoveProject(projectID); !apperrors.IsNotFoundError(err) {
		t.Errorf("重复删除应返回不存在错误，实际为 %v", err)
	}
}

// cmd/demo/main.go
// 离线演示：用脚本化生成器走完整个故事工作流，不访问远端服务
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Corphon/StoryWeaverMCP/internal/gemini"
	"github.com/Corphon/StoryWeaverMCP/internal/models"
	"github.com/Corphon/StoryWeaverMCP/internal/services"
	"github.com/Corphon/StoryWeaverMCP/internal/storage"
)

// stubGenerator 本地演示用的脚本化生成器
type stubGenerator struct{}

func (g *stubGenerator) PlanStory(ctx context.Context, idea string) (*models.ProjectPlan, error) {
	return &models.ProjectPlan{
		Title: "灯塔守望者",
		Scenes: []models.Scene{
			{SceneNumber: 1, Narration: "暴风雨夜，老守塔人点亮了最后一盏油灯。", ImagePrompt: "A lighthouse keeper lighting an oil lamp during a storm, dramatic lighting"},
			{SceneNumber: 2, Narration: "海面上，一艘渔船在巨浪中寻找着光。", ImagePrompt: "A small fishing boat in towering waves searching for a distant light"},
			{SceneNumber: 3, Narration: "灯光穿透雨幕，渔船调转了船头。", ImagePrompt: "A beam of lighthouse light cutting through rain, a boat turning toward it"},
		},
	}, nil
}

func (g *stubGenerator) ContinuePlan(ctx context.Context, plan *models.ProjectPlan) ([]models.Scene, error) {
	return []models.Scene{
		{SceneNumber: 1, Narration: "黎明时分，渔船安全靠岸。", ImagePrompt: "A fishing boat safely docked at dawn, calm sea"},
		{SceneNumber: 2, Narration: "守塔人熄灭了油灯，微笑着睡去。", ImagePrompt: "An old lighthouse keeper extinguishing a lamp with a gentle smile"},
	}, nil
}

func (g *stubGenerator) GenerateConclusion(ctx context.Context, plan *models.ProjectPlan) (string, error) {
	return "有些光不为自己点亮，却照亮了所有归途。", nil
}

func (g *stubGenerator) GenerateImage(ctx context.Context, prompt string) (*gemini.Resource, error) {
	// 最小合法PNG头加占位数据
	png := append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, []byte(prompt)...)
	return &gemini.Resource{Data: png, MIMEType: "image/png"}, nil
}

func (g *stubGenerator) GenerateSpeech(ctx context.Context, text string, voiceID string) (*gemini.Resource, error) {
	pcm := make([]byte, 24000*2) // 约1秒静音
	return &gemini.Resource{Data: gemini.PCMToWAV(pcm, 24000, 1), MIMEType: "audio/wav"}, nil
}

func main() {
	tempDir, err := os.MkdirTemp("", "storyweaver_demo_*")
	if err != nil {
		log.Fatalf("创建演示目录失败: %v", err)
	}
	defer os.RemoveAll(tempDir)

	fileStorage, err := storage.NewFileStorage(filepath.Join(tempDir, "assets"))
	if err != nil {
		log.Fatalf("初始化存储失败: %v", err)
	}

	progress := services.NewProgressService()
	stats := services.NewStatsService()
	story := services.NewStoryService(&stubGenerator{}, nil, progress, fileStorage, stats)
	export, err := services.NewExportService(story, fileStorage, filepath.Join(tempDir, "exports"))
	if err != nil {
		log.Fatalf("初始化导出服务失败: %v", err)
	}
	playback := services.NewPlaybackService(story, fileStorage)

	ctx := context.Background()

	// 1. 创建项目并提交创意
	snapshot := story.CreateProject()
	projectID := snapshot.ID
	fmt.Printf("== 创建项目 %s (状态 %s)\n", projectID, snapshot.State)

	snapshot, err = story.SubmitIdea(ctx, projectID, "一个关于灯塔守望者的暴风雨之夜")
	if err != nil {
		log.Fatalf("提交创意失败: %v", err)
	}
	fmt.Printf("== 规划完成: 《%s》 %d个场景 (状态 %s)\n", snapshot.Plan.Title, len(snapshot.Plan.Scenes), snapshot.State)

	// 2. 订阅进度并确认计划
	board := progress.Board(projectID)
	updates := board.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range updates {
			fmt.Printf("   进度 场景%d: 图像=%s 音频=%s\n", update.SceneNumber, update.Progress.Image, update.Progress.Audio)
		}
	}()

	if err := story.Approve(ctx, projectID, models.VoiceAI, "Kore"); err != nil {
		log.Fatalf("确认计划失败: %v", err)
	}
	board.Unsubscribe(updates)
	<-done

	snapshot, _ = story.GetSnapshot(projectID)
	fmt.Printf("== 生成完成 (状态 %s)，资源数 %d\n", snapshot.State, len(snapshot.Assets))

	// 3. 续写两个场景
	if err := story.ContinueStory(ctx, projectID); err != nil {
		log.Fatalf("续写失败: %v", err)
	}
	snapshot, _ = story.GetSnapshot(projectID)
	fmt.Printf("== 续写完成，共 %d 个场景\n", len(snapshot.Plan.Scenes))

	// 4. 重写第2场并重新生成
	if err := story.RegenerateScene(ctx, projectID, 2, "海面上，渔船的灯也熄灭了。", "A dark sea with a boat whose lights just went out"); err != nil {
		log.Fatalf("重新生成场景失败: %v", err)
	}
	fmt.Println("== 场景2重新生成完成")

	// 5. 生成结语
	conclusion, err := story.FinalizeStory(ctx, projectID)
	if err != nil {
		log.Fatalf("生成结语失败: %v", err)
	}
	fmt.Printf("== 结语: %s\n", conclusion)

	// 6. 播放时间轴
	timeline, err := playback.Timeline(projectID)
	if err != nil {
		log.Fatalf("构造时间轴失败: %v", err)
	}
	fmt.Printf("== 播放时间轴: %d个场景，总时长 %dms (步进 %dms)\n", timeline.SceneCount, timeline.TotalMS, timeline.TickMS)
	for _, cue := range timeline.Cues {
		fmt.Printf("   场景%d: 起点%dms 时长%dms 估算=%v\n", cue.SceneNumber, cue.StartMS, cue.DurationMS, cue.Estimated)
	}

	// 7. 导出完整归档
	result, err := export.Export(projectID, models.ExportAll)
	if err != nil {
		log.Fatalf("导出失败: %v", err)
	}
	fmt.Printf("== 导出完成: %s (%d场景, %d字节)\n", result.FileName, result.SceneCount, result.SizeBytes)

	fmt.Println("== 演示结束")
}

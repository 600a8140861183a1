package services

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	apperrors "github.com/Corphon/StoryWeaverMCP/internal/errors"
	"github.com/Corphon/StoryWeaverMCP/internal/models"
)

func newTestExportService(t *testing.T, gen Generator) (*ExportService, *StoryService) {
	t.Helper()

	story, _, fileStorage, tempDir := newTestStack(t, gen)
	exportSvc, err := NewExportService(story, fileStorage, filepath.Join(tempDir, "exports"))
	if err != nil {
		t.Fatalf("创建导出服务失败: %v", err)
	}
	return exportSvc, story
}

func zipEntryNames(t *testing.T, path string) map[string]bool {
	t.Helper()

	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("打开zip归档失败: %v", err)
	}
	defer reader.Close()

	names := make(map[string]bool)
	for _, f := range reader.File {
		names[f.Name] = true
	}
	return names
}

func TestSanitizeTitleRuneBoundary(t *testing.T) {
	// 64字节截断不能把多字节字符切成两半
	long := strings.Repeat("灯塔守夜人", 10)
	got := sanitizeTitle(long)
	if len(got) > 64 {
		t.Errorf("标题应截断到64字节以内，实际为 %d", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("截断后的标题应是合法UTF-8: %q", got)
	}
	if got != strings.Repeat("灯塔守夜人", 4)+"灯" {
		t.Errorf("截断应落在字符边界上，实际为 %q", got)
	}

	if sanitizeTitle("  ") != "story" {
		t.Error("空标题应回退为story")
	}
	if sanitizeTitle("My Story!") != "My_Story" {
		t.Errorf("空格应转为下划线，其余符号丢弃: %q", sanitizeTitle("My Story!"))
	}
}

func TestExportAllLayout(t *testing.T) {
	exportSvc, story := newTestExportService(t, &fakeGenerator{})
	projectID := generateProject(t, story, models.VoiceAI)

	if _, err := story.FinalizeStory(context.Background(), projectID); err != nil {
		t.Fatalf("生成结语失败: %v", err)
	}

	result, err := exportSvc.Export(projectID, models.ExportAll)
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if result.SceneCount != 3 {
		t.Errorf("应导出3个场景，实际为 %d", result.SceneCount)
	}
	if !strings.HasSuffix(result.FileName, ".zip") {
		t.Errorf("导出文件名应以.zip结尾: %s", result.FileName)
	}
	if result.SizeBytes <= 0 {
		t.Error("导出文件大小应大于0")
	}

	names := zipEntryNames(t, result.FilePath)
	for _, want := range []string{
		"scene_1/narration.txt", "scene_1/image_prompt.txt", "scene_1/image.png", "scene_1/audio.wav",
		"scene_3/narration.txt", "scene_3/image.png",
		"conclusion.txt",
	} {
		if !names[want] {
			t.Errorf("归档中缺少条目 %s", want)
		}
	}
}

func TestExportImagesFlatLayout(t *testing.T) {
	exportSvc, story := newTestExportService(t, &fakeGenerator{})
	projectID := generateProject(t, story, models.VoiceAI)

	result, err := exportSvc.Export(projectID, models.ExportImages)
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}

	names := zipEntryNames(t, result.FilePath)
	if !names["scene_1_image.png"] || !names["scene_2_image.png"] || !names["scene_3_image.png"] {
		t.Errorf("图像归档条目不符: %v", names)
	}
	for name := range names {
		if strings.Contains(name, "audio") || strings.Contains(name, "narration") {
			t.Errorf("图像归档不应包含 %s", name)
		}
	}
}

func TestExportAudioSkipsMissing(t *testing.T) {
	exportSvc, story := newTestExportService(t, &fakeGenerator{})
	// 用户自录模式下没有任何音频文件
	projectID := generateProject(t, story, models.VoiceUser)

	result, err := exportSvc.Export(projectID, models.ExportAudio)
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if result.SceneCount != 0 {
		t.Errorf("无音频时导出场景数应为0，实际为 %d", result.SceneCount)
	}
}

func TestExportValidation(t *testing.T) {
	exportSvc, story := newTestExportService(t, &fakeGenerator{})

	empty := story.CreateProject()
	if _, err := exportSvc.Export(empty.ID, models.ExportAll); !apperrors.IsConflictError(err) {
		t.Errorf("空项目导出应返回冲突错误，实际为 %v", err)
	}

	projectID := generateProject(t, story, models.VoiceAI)
	if _, err := exportSvc.Export(projectID, models.ExportKind("pdf")); !apperrors.IsValidationError(err) {
		t.Errorf("未知导出类型应返回校验错误，实际为 %v", err)
	}
	if _, err := exportSvc.Export("no-such-id", models.ExportAll); !apperrors.IsNotFoundError(err) {
		t.Errorf("未知项目导出应返回不存在错误，实际为 %v", err)
	}
}

func TestOpenExport(t *testing.T) {
	exportSvc, story := newTestExportService(t, &fakeGenerator{})
	projectID := generateProject(t, story, models.VoiceAI)

	result, err := exportSvc.Export(projectID, models.ExportAll)
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}

	path, err := exportSvc.OpenExport(result.FileName)
	if err != nil {
		t.Fatalf("打开导出文件失败: %v", err)
	}
	if path != result.FilePath {
		t.Errorf("路径不符: %q != %q", path, result.FilePath)
	}

	if _, err := exportSvc.OpenExport("../" + result.FileName); !apperrors.IsValidationError(err) {
		t.Errorf("路径穿越应返回校验错误，实际为 %v", err)
	}
	if _, err := exportSvc.OpenExport("missing.zip"); !apperrors.IsNotFoundError(err) {
		t.Errorf("缺失文件应返回不存在错误，实际为 %v", err)
	}
}

func TestCleanupOldExports(t *testing.T) {
	exportSvc, story := newTestExportService(t, &fakeGenerator{})
	projectID := generateProject(t, story, models.VoiceAI)

	result, err := exportSvc.Export(projectID, models.ExportAll)
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}

	// 新文件在保留期内，不应被清理
	if removed := exportSvc.CleanupOldExports(time.Hour); removed != 0 {
		t.Errorf("保留期内不应清理文件，实际清理 %d", removed)
	}

	// 保留期为0时全部清理
	if removed := exportSvc.CleanupOldExports(-time.Minute); removed != 1 {
		t.Errorf("应清理1个文件，实际清理 %d", removed)
	}
	if _, err := os.Stat(result.FilePath); !os.IsNotExist(err) {
		t.Error("清理后文件应不存在")
	}
}

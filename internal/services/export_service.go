package services

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/Corphon/StoryWeaverMCP/internal/errors"
	"github.com/Corphon/StoryWeaverMCP/internal/models"
	"github.com/Corphon/StoryWeaverMCP/internal/storage"
	"github.com/Corphon/StoryWeaverMCP/internal/utils"
)

// ExportService 将项目资源打包为zip归档
type ExportService struct {
	story      *StoryService
	storage    *storage.FileStorage
	exportsDir string
	logger     *utils.Logger
}

// NewExportService 创建导出服务
func NewExportService(story *StoryService, fileStorage *storage.FileStorage, exportsDir string) (*ExportService, error) {
	if err := os.MkdirAll(exportsDir, 0755); err != nil {
		return nil, fmt.Errorf("创建导出目录失败: %w", err)
	}
	return &ExportService{
		story:      story,
		storage:    fileStorage,
		exportsDir: exportsDir,
		logger:     utils.GetLogger(),
	}, nil
}

// sanitizeTitle 将故事标题转换为安全的文件名片段
func sanitizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "story"
	}
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r > 127:
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
	}
	result := b.String()
	if result == "" {
		return "story"
	}
	// 截断到64字节以内，保持在rune边界上
	for len(result) > 64 {
		_, size := utf8.DecodeLastRuneInString(result)
		result = result[:len(result)-size]
	}
	return result
}

// Export 按类型打包项目资源
// all: 每场景一个目录，含旁白、画面描述与二进制资源
// images/audio: 扁平结构，仅含对应类型的二进制资源
func (s *ExportService) Export(projectID string, kind models.ExportKind) (*models.ExportResult, error) {
	snapshot, err := s.story.GetSnapshot(projectID)
	if err != nil {
		return nil, err
	}
	if snapshot.Plan == nil || len(snapshot.Assets) == 0 {
		return nil, apperrors.NewConflictError("项目尚无可导出的资源", nil)
	}
	if kind != models.ExportAll && kind != models.ExportImages && kind != models.ExportAudio {
		return nil, apperrors.NewValidationError(fmt.Sprintf("无效的导出类型: %s", kind), nil)
	}

	fileName := fmt.Sprintf("%s_%s_%s.zip", sanitizeTitle(snapshot.Plan.Title), kind, time.Now().Format("20060102_150405"))
	filePath := filepath.Join(s.exportsDir, fileName)

	out, err := os.Create(filePath)
	if err != nil {
		return nil, apperrors.WrapError(err, "创建导出文件失败", apperrors.ErrorTypeOperation)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	sceneCount := 0
	for _, asset := range snapshot.Assets {
		added, err := s.addScene(zw, projectID, asset, kind)
		if err != nil {
			zw.Close()
			os.Remove(filePath)
			return nil, err
		}
		if added {
			sceneCount++
		}
	}
	if snapshot.Conclusion != "" && kind == models.ExportAll {
		if err := writeZipEntry(zw, "conclusion.txt", []byte(snapshot.Conclusion)); err != nil {
			zw.Close()
			os.Remove(filePath)
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		os.Remove(filePath)
		return nil, apperrors.WrapError(err, "写入zip归档失败", apperrors.ErrorTypeOperation)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, apperrors.WrapError(err, "读取导出文件信息失败", apperrors.ErrorTypeOperation)
	}

	s.logger.Info("导出完成", map[string]interface{}{
		"project_id": projectID,
		"kind":       string(kind),
		"file":       fileName,
		"scenes":     sceneCount,
		"bytes":      info.Size(),
	})

	return &models.ExportResult{
		ProjectID:  projectID,
		Kind:       kind,
		FileName:   fileName,
		FilePath:   filePath,
		SceneCount: sceneCount,
		SizeBytes:  info.Size(),
		CreatedAt:  time.Now(),
	}, nil
}

// addScene 将单个场景写入归档，缺失的资源跳过不报错
func (s *ExportService) addScene(zw *zip.Writer, projectID string, asset models.GeneratedAsset, kind models.ExportKind) (bool, error) {
	added := false

	switch kind {
	case models.ExportAll:
		prefix := fmt.Sprintf("scene_%d/", asset.SceneNumber)
		if err := writeZipEntry(zw, prefix+"narration.txt", []byte(asset.Narration)); err != nil {
			return false, err
		}
		if err := writeZipEntry(zw, prefix+"image_prompt.txt", []byte(asset.ImagePrompt)); err != nil {
			return false, err
		}
		added = true
		if asset.ImageURL != nil {
			data, err := s.storage.LoadSceneAsset(projectID, asset.SceneNumber, storage.AssetImage)
			if err == nil {
				if err := writeZipEntry(zw, prefix+"image.png", data); err != nil {
					return false, err
				}
			}
		}
		if asset.AudioURL != nil {
			data, err := s.storage.LoadSceneAsset(projectID, asset.SceneNumber, storage.AssetAudio)
			if err == nil {
				if err := writeZipEntry(zw, prefix+"audio.wav", data); err != nil {
					return false, err
				}
			}
		}
	case models.ExportImages:
		if asset.ImageURL == nil {
			return false, nil
		}
		data, err := s.storage.LoadSceneAsset(projectID, asset.SceneNumber, storage.AssetImage)
		if err != nil {
			return false, nil
		}
		name := fmt.Sprintf("scene_%d_image.png", asset.SceneNumber)
		if err := writeZipEntry(zw, name, data); err != nil {
			return false, err
		}
		added = true
	case models.ExportAudio:
		if asset.AudioURL == nil {
			return false, nil
		}
		data, err := s.storage.LoadSceneAsset(projectID, asset.SceneNumber, storage.AssetAudio)
		if err != nil {
			return false, nil
		}
		name := fmt.Sprintf("scene_%d_audio.wav", asset.SceneNumber)
		if err := writeZipEntry(zw, name, data); err != nil {
			return false, err
		}
		added = true
	}
	return added, nil
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return apperrors.WrapError(err, fmt.Sprintf("创建zip条目失败: %s", name), apperrors.ErrorTypeOperation)
	}
	if _, err := w.Write(data); err != nil {
		return apperrors.WrapError(err, fmt.Sprintf("写入zip条目失败: %s", name), apperrors.ErrorTypeOperation)
	}
	return nil
}

// OpenExport 打开已生成的导出文件供下载
func (s *ExportService) OpenExport(fileName string) (string, error) {
	cleaned := filepath.Base(fileName)
	if cleaned != fileName || !strings.HasSuffix(cleaned, ".zip") {
		return "", apperrors.NewValidationError(fmt.Sprintf("无效的导出文件名: %s", fileName), nil)
	}
	fullPath := filepath.Join(s.exportsDir, cleaned)
	if _, err := os.Stat(fullPath); err != nil {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("导出文件不存在: %s", cleaned), nil)
	}
	return fullPath, nil
}

// CleanupOldExports 删除超过保留期的导出文件
func (s *ExportService) CleanupOldExports(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.exportsDir)
	if err != nil {
		return 0
	}

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".zip") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(s.exportsDir, entry.Name())) == nil {
			removed++
		}
	}
	return removed
}

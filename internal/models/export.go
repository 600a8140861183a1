// internal/models/export.go
package models

import "time"

// ExportKind 导出归档的种类
type ExportKind string

const (
	ExportAll    ExportKind = "all"
	ExportImages ExportKind = "images"
	ExportAudio  ExportKind = "audio"
)

// ExportResult 导出操作的结果
type ExportResult struct {
	ProjectID  string     `json:"project_id"`
	Kind       ExportKind `json:"kind"`
	FileName   string     `json:"file_name"`
	FilePath   string     `json:"file_path"`
	SceneCount int        `json:"scene_count"`
	SizeBytes  int64      `json:"size_bytes"`
	CreatedAt  time.Time  `json:"created_at"`
}

// PlaybackCue 播放时间轴上的一个场景
type PlaybackCue struct {
	SceneNumber int     `json:"scene"`
	Narration   string  `json:"narration"`
	ImageURL    string  `json:"imageUrl"`
	AudioURL    string  `json:"audioUrl"`
	DurationMS  int64   `json:"duration_ms"`
	StartMS     int64   `json:"start_ms"`
	Estimated   bool    `json:"estimated"`
}

// PlaybackTimeline 完整的播放时间轴
// 只包含图像与音频都已解析的场景，按场景号升序
type PlaybackTimeline struct {
	ProjectID  string        `json:"project_id"`
	Title      string        `json:"title"`
	Cues       []PlaybackCue `json:"cues"`
	TotalMS    int64         `json:"total_ms"`
	TickMS     int64         `json:"tick_ms"`
	SceneCount int           `json:"scene_count"`
}

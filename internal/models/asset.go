// internal/models/asset.go
package models

// GenerationStatus 单个资源的生成状态
type GenerationStatus string

const (
	StatusPending    GenerationStatus = "pending"
	StatusGenerating GenerationStatus = "generating"
	StatusDone       GenerationStatus = "done"
	StatusError      GenerationStatus = "error"
)

// Settled 判断状态是否已结算（成功或失败，不再变化）
func (s GenerationStatus) Settled() bool {
	return s == StatusDone || s == StatusError
}

// GeneratedAsset 一个场景对应的生成资源
// 图像与音频各自独立异步解析，字段在解析前为nil
// URL是服务端相对路径，指向storage中的二进制文件
type GeneratedAsset struct {
	SceneNumber int     `json:"scene"`
	Narration   string  `json:"narration"`
	ImagePrompt string  `json:"imagePrompt"`
	ImageURL    *string `json:"imageUrl"`
	AudioURL    *string `json:"audioUrl"`
}

// SceneProgress 每个场景按资源类型划分的进度条目
type SceneProgress struct {
	Image GenerationStatus `json:"image"`
	Audio GenerationStatus `json:"audio"`
}

// Settled 场景的两类资源是否都已结算
func (p SceneProgress) Settled() bool {
	return p.Image.Settled() && p.Audio.Settled()
}

// internal/models/project.go
package models

import "time"

// WorkflowState 工作流协调器的状态机状态
type WorkflowState string

const (
	StateIdle         WorkflowState = "IDLE"
	StatePlanning     WorkflowState = "PLANNING"
	StateConfirmation WorkflowState = "CONFIRMATION"
	StateGenerating   WorkflowState = "GENERATING"
	StateDone         WorkflowState = "DONE"
)

// VoiceOption 旁白声音来源：AI合成或用户自录
type VoiceOption string

const (
	VoiceAI   VoiceOption = "ai"
	VoiceUser VoiceOption = "user"
)

// ProjectSnapshot 协调器对外暴露的一致性快照
// 展示层只读，所有字段在任务边界粒度上保持一致
type ProjectSnapshot struct {
	ID          string                `json:"id"`
	State       WorkflowState         `json:"state"`
	Idea        string                `json:"idea"`
	Plan        *ProjectPlan          `json:"plan,omitempty"`
	Assets      []GeneratedAsset      `json:"assets"`
	Progress    map[int]SceneProgress `json:"progress"`
	Conclusion  string                `json:"conclusion,omitempty"`
	VoiceOption VoiceOption           `json:"voice_option"`
	VoiceID     string                `json:"voice_id,omitempty"`
	Continuing  bool                  `json:"continuing"`
	Finalizing  bool                  `json:"finalizing"`
	LastError   string                `json:"last_error,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

package services

import (
	"sort"
	"sync"
	"time"

	"github.com/Corphon/StoryWeaverMCP/internal/models"
)

// ProgressUpdate 单个场景进度变化的通知
type ProgressUpdate struct {
	ProjectID   string                `json:"project_id"`
	SceneNumber int                   `json:"scene"`
	Progress    models.SceneProgress  `json:"progress"`
	State       models.WorkflowState  `json:"state,omitempty"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// ProgressBoard 跟踪一个项目内各场景的生成进度
// 图像和音频分别记录，订阅者通过通道接收增量更新
type ProgressBoard struct {
	mu          sync.Mutex
	projectID   string
	entries     map[int]models.SceneProgress
	subscribers map[chan ProgressUpdate]bool
}

// NewProgressBoard 创建项目进度板
func NewProgressBoard(projectID string) *ProgressBoard {
	return &ProgressBoard{
		projectID:   projectID,
		entries:     make(map[int]models.SceneProgress),
		subscribers: make(map[chan ProgressUpdate]bool),
	}
}

// InitScenes 为给定场景号登记 pending 条目
// 调度任何任务之前必须先调用，保证进度快照覆盖全部场景
func (b *ProgressBoard) InitScenes(sceneNumbers []int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, n := range sceneNumbers {
		b.entries[n] = models.SceneProgress{
			Image: models.StatusPending,
			Audio: models.StatusPending,
		}
	}
	for _, n := range sceneNumbers {
		b.notifyLocked(n)
	}
}

// SetImage 更新场景的图像状态
func (b *ProgressBoard) SetImage(sceneNumber int, status models.GenerationStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := b.entries[sceneNumber]
	entry.Image = status
	b.entries[sceneNumber] = entry
	b.notifyLocked(sceneNumber)
}

// SetAudio 更新场景的音频状态
func (b *ProgressBoard) SetAudio(sceneNumber int, status models.GenerationStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := b.entries[sceneNumber]
	entry.Audio = status
	b.entries[sceneNumber] = entry
	b.notifyLocked(sceneNumber)
}

// MarkGenerating 将场景的两种状态同时置为 generating
func (b *ProgressBoard) MarkGenerating(sceneNumber int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[sceneNumber] = models.SceneProgress{
		Image: models.StatusGenerating,
		Audio: models.StatusGenerating,
	}
	b.notifyLocked(sceneNumber)
}

// Get 返回场景进度
func (b *ProgressBoard) Get(sceneNumber int) (models.SceneProgress, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[sceneNumber]
	return entry, ok
}

// Snapshot 返回全部进度条目的副本
func (b *ProgressBoard) Snapshot() map[int]models.SceneProgress {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make(map[int]models.SceneProgress, len(b.entries))
	for n, entry := range b.entries {
		result[n] = entry
	}
	return result
}

// AllSettled 判断给定场景是否全部结束（done 或 error）
func (b *ProgressBoard) AllSettled(sceneNumbers []int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, n := range sceneNumbers {
		entry, ok := b.entries[n]
		if !ok || !entry.Settled() {
			return false
		}
	}
	return true
}

// FailedScenes 按升序返回任一资源处于 error 的场景号
func (b *ProgressBoard) FailedScenes() []int {
	b.mu.Lock()
	defer b.mu.Unlock()

	var failed []int
	for n, entry := range b.entries {
		if entry.Image == models.StatusError || entry.Audio == models.StatusError {
			failed = append(failed, n)
		}
	}
	sort.Ints(failed)
	return failed
}

// Subscribe 订阅进度更新，返回接收通道
func (b *ProgressBoard) Subscribe() chan ProgressUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ProgressUpdate, 32)
	b.subscribers[ch] = true
	return ch
}

// Unsubscribe 取消订阅并关闭通道
func (b *ProgressBoard) Unsubscribe(ch chan ProgressUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[ch] {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Reset 清空进度条目，订阅保留
func (b *ProgressBoard) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[int]models.SceneProgress)
}

// notifyLocked 向订阅者非阻塞推送更新，慢消费者丢弃
// 调用方必须已持有 b.mu
func (b *ProgressBoard) notifyLocked(sceneNumber int) {
	update := ProgressUpdate{
		ProjectID:   b.projectID,
		SceneNumber: sceneNumber,
		Progress:    b.entries[sceneNumber],
		UpdatedAt:   time.Now(),
	}
	for ch := range b.subscribers {
		select {
		case ch <- update:
		default:
		}
	}
}

// ProgressService 管理各项目的进度板
type ProgressService struct {
	mu     sync.RWMutex
	boards map[string]*ProgressBoard
}

// NewProgressService 创建进度服务
func NewProgressService() *ProgressService {
	return &ProgressService{
		boards: make(map[string]*ProgressBoard),
	}
}

// Board 返回项目的进度板，不存在时创建
func (s *ProgressService) Board(projectID string) *ProgressBoard {
	s.mu.RLock()
	board, ok := s.boards[projectID]
	s.mu.RUnlock()
	if ok {
		return board
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if board, ok = s.boards[projectID]; ok {
		return board
	}
	board = NewProgressBoard(projectID)
	s.boards[projectID] = board
	return board
}

// Remove 移除项目的进度板并关闭全部订阅
func (s *ProgressService) Remove(projectID string) {
	s.mu.Lock()
	board, ok := s.boards[projectID]
	delete(s.boards, projectID)
	s.mu.Unlock()
	if !ok {
		return
	}

	board.mu.Lock()
	defer board.mu.Unlock()
	for ch := range board.subscribers {
		delete(board.subscribers, ch)
		close(ch)
	}
}

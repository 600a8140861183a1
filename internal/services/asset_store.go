package services

import (
	"sort"
	"sync"

	"github.com/Corphon/StoryWeaverMCP/internal/models"
)

// AssetStore 按场景号保存生成结果的内存集合
// 同一场景号的更新按键合并，不追加
type AssetStore struct {
	mu     sync.RWMutex
	assets map[int]*models.GeneratedAsset
}

// NewAssetStore 创建空的资源集合
func NewAssetStore() *AssetStore {
	return &AssetStore{
		assets: make(map[int]*models.GeneratedAsset),
	}
}

// InitScene 为场景创建占位条目，图像和音频引用为空
// 已存在的条目会被文本部分覆盖，二进制引用保留
func (s *AssetStore) InitScene(scene models.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.assets[scene.SceneNumber]; ok {
		existing.Narration = scene.Narration
		existing.ImagePrompt = scene.ImagePrompt
		return
	}
	s.assets[scene.SceneNumber] = &models.GeneratedAsset{
		SceneNumber: scene.SceneNumber,
		Narration:   scene.Narration,
		ImagePrompt: scene.ImagePrompt,
	}
}

// UpdateText 覆盖场景的文本部分
func (s *AssetStore) UpdateText(sceneNumber int, narration, imagePrompt string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[sceneNumber]
	if !ok {
		return false
	}
	asset.Narration = narration
	asset.ImagePrompt = imagePrompt
	return true
}

// SetImageURL 更新场景的图像引用
func (s *AssetStore) SetImageURL(sceneNumber int, url *string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[sceneNumber]
	if !ok {
		return false
	}
	asset.ImageURL = url
	return true
}

// SetAudioURL 更新场景的音频引用
func (s *AssetStore) SetAudioURL(sceneNumber int, url *string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[sceneNumber]
	if !ok {
		return false
	}
	asset.AudioURL = url
	return true
}

// ClearBinaries 清除场景的二进制引用，文本保留
// 重新生成前调用，避免旧资源与新文本混用
func (s *AssetStore) ClearBinaries(sceneNumber int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if asset, ok := s.assets[sceneNumber]; ok {
		asset.ImageURL = nil
		asset.AudioURL = nil
	}
}

// Get 返回场景资源的副本
func (s *AssetStore) Get(sceneNumber int) (models.GeneratedAsset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, ok := s.assets[sceneNumber]
	if !ok {
		return models.GeneratedAsset{}, false
	}
	return *asset, true
}

// List 按场景号升序返回全部资源的副本
func (s *AssetStore) List() []models.GeneratedAsset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.GeneratedAsset, 0, len(s.assets))
	for _, asset := range s.assets {
		result = append(result, *asset)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SceneNumber < result[j].SceneNumber
	})
	return result
}

// SceneNumbers 按升序返回已登记的场景号
func (s *AssetStore) SceneNumbers() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	numbers := make([]int, 0, len(s.assets))
	for n := range s.assets {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

// Count 返回场景数量
func (s *AssetStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets)
}

// Reset 清空全部资源
func (s *AssetStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets = make(map[int]*models.GeneratedAsset)
}

// internal/storage/file_storage.go
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AssetKind 二进制资源的种类，决定存储文件名
type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetAudio AssetKind = "audio"
	AssetVideo AssetKind = "video"
)

var assetExtensions = map[AssetKind]string{
	AssetImage: ".png",
	AssetAudio: ".wav",
	AssetVideo: ".mp4",
}

// FileStorage 提供项目资源的文件存储服务
// 目录布局: {BaseDir}/{projectID}/scene_{N}_{kind}{ext}
type FileStorage struct {
	BaseDir string

	// 并发控制
	fileLocks sync.Map // 文件级别锁 path -> *sync.RWMutex

	// 简单缓存，避免导出/播放路径反复读同一资源
	cache        map[string]*CacheEntry
	cacheMutex   sync.RWMutex
	cacheExpiry  time.Duration
	maxCacheSize int
}

// CacheEntry 缓存条目
type CacheEntry struct {
	Data      []byte
	Timestamp time.Time
}

// NewFileStorage 创建文件存储服务
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}

	fs := &FileStorage{
		BaseDir:      baseDir,
		cache:        make(map[string]*CacheEntry),
		cacheExpiry:  5 * time.Minute,
		maxCacheSize: 64,
	}

	// 启动缓存清理
	fs.startCacheCleanup()

	return fs, nil
}

// 获取文件锁
func (fs *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// assetFilename 资源文件名，固定命名方案与导出归档保持一致
func assetFilename(sceneNumber int, kind AssetKind) string {
	return fmt.Sprintf("scene_%d_%s%s", sceneNumber, kind, assetExtensions[kind])
}

// SaveSceneAsset 保存一个场景的二进制资源，返回服务端相对URL
func (fs *FileStorage) SaveSceneAsset(projectID string, sceneNumber int, kind AssetKind, data []byte) (string, error) {
	filename := assetFilename(sceneNumber, kind)
	if err := fs.saveFile(projectID, filename, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("/assets/%s/%s", projectID, filename), nil
}

// LoadSceneAsset 读取一个场景的二进制资源
func (fs *FileStorage) LoadSceneAsset(projectID string, sceneNumber int, kind AssetKind) ([]byte, error) {
	return fs.loadFile(projectID, assetFilename(sceneNumber, kind))
}

// HasSceneAsset 检查场景资源是否存在
func (fs *FileStorage) HasSceneAsset(projectID string, sceneNumber int, kind AssetKind) bool {
	fullPath := filepath.Join(fs.BaseDir, projectID, assetFilename(sceneNumber, kind))
	_, err := os.Stat(fullPath)
	return err == nil
}

// DeleteSceneAsset 删除场景资源，资源不存在时视为成功
// 单场景重新生成时清空旧资源句柄会走这里
func (fs *FileStorage) DeleteSceneAsset(projectID string, sceneNumber int, kind AssetKind) error {
	fullPath := filepath.Join(fs.BaseDir, projectID, assetFilename(sceneNumber, kind))

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除资源失败: %w", err)
	}

	fs.invalidateCache(fullPath)
	return nil
}

// DeleteProject 删除整个项目目录，工作流重置时调用
func (fs *FileStorage) DeleteProject(projectID string) error {
	fullPath := filepath.Join(fs.BaseDir, projectID)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("删除项目目录失败: %w", err)
	}

	fs.removeCacheEntriesWithPrefix(fullPath)
	return nil
}

// saveFile 原子性写入文件
func (fs *FileStorage) saveFile(dirPath, filename string, content []byte) error {
	fullDirPath := filepath.Join(fs.BaseDir, dirPath)
	fullPath := filepath.Join(fullDirPath, filename)

	// 获取文件锁
	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	// 确保目录存在
	if err := os.MkdirAll(fullDirPath, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	// 原子性文件写入
	tempPath := fullPath + ".tmp"

	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			fmt.Printf("警告: 重命名失败后清理临时文件失败 %s: %v\n", tempPath, removeErr)
		}
		return fmt.Errorf("保存文件失败: %w", err)
	}

	fs.invalidateCache(fullPath)
	return nil
}

// loadFile 读取文件，带缓存
func (fs *FileStorage) loadFile(dirPath, filename string) ([]byte, error) {
	fullPath := filepath.Join(fs.BaseDir, dirPath, filename)

	// 检查缓存
	fs.cacheMutex.RLock()
	if entry, exists := fs.cache[fullPath]; exists {
		if time.Since(entry.Timestamp) < fs.cacheExpiry {
			fs.cacheMutex.RUnlock()
			return entry.Data, nil
		}
	}
	fs.cacheMutex.RUnlock()

	// 获取文件锁（读锁）
	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}

	fs.updateCache(fullPath, content)
	return content, nil
}

// 缓存管理
func (fs *FileStorage) updateCache(path string, data []byte) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	fs.cache[path] = &CacheEntry{
		Data:      data,
		Timestamp: time.Now(),
	}

	// 简单的缓存大小控制
	if len(fs.cache) > fs.maxCacheSize {
		var oldestKey string
		var oldestTime time.Time

		for key, entry := range fs.cache {
			if oldestKey == "" || entry.Timestamp.Before(oldestTime) {
				oldestKey = key
				oldestTime = entry.Timestamp
			}
		}

		if oldestKey != "" {
			delete(fs.cache, oldestKey)
		}
	}
}

// removeCacheEntriesWithPrefix 移除指定前缀的缓存条目
func (fs *FileStorage) removeCacheEntriesWithPrefix(prefix string) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	for key := range fs.cache {
		if strings.HasPrefix(key, prefix) {
			delete(fs.cache, key)
		}
	}
}

// invalidateCache 清除指定路径的缓存
func (fs *FileStorage) invalidateCache(path string) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	delete(fs.cache, path)
}

// 开始缓存清理
func (fs *FileStorage) startCacheCleanup() {
	go func() {
		ticker := time.NewTicker(2 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			fs.cleanupExpiredCache()
		}
	}()
}

// 清理过期缓存
func (fs *FileStorage) cleanupExpiredCache() {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	now := time.Now()
	for path, entry := range fs.cache {
		if now.Sub(entry.Timestamp) > fs.cacheExpiry {
			delete(fs.cache, path)
		}
	}
}

package services

import (
	"sync"
	"time"
)

// GenerationStats 生成操作的累计统计
type GenerationStats struct {
	PlanRequests         int64     `json:"plan_requests"`
	ContinueRequests     int64     `json:"continue_requests"`
	ConclusionRequests   int64     `json:"conclusion_requests"`
	ImagesGenerated      int64     `json:"images_generated"`
	ImagesFailed         int64     `json:"images_failed"`
	AudioGenerated       int64     `json:"audio_generated"`
	AudioFailed          int64     `json:"audio_failed"`
	VideosGenerated      int64     `json:"videos_generated"`
	VideosFailed         int64     `json:"videos_failed"`
	RegenerationRequests int64     `json:"regeneration_requests"`
	StartedAt            time.Time `json:"started_at"`
}

// StatsService 记录生成统计，供状态接口查询
type StatsService struct {
	mu    sync.Mutex
	stats GenerationStats
}

// NewStatsService 创建统计服务
func NewStatsService() *StatsService {
	return &StatsService{
		stats: GenerationStats{StartedAt: time.Now()},
	}
}

// RecordPlan 记录一次规划请求
func (s *StatsService) RecordPlan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.PlanRequests++
}

// RecordContinue 记录一次续写请求
func (s *StatsService) RecordContinue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ContinueRequests++
}

// RecordConclusion 记录一次结语请求
func (s *StatsService) RecordConclusion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ConclusionRequests++
}

// RecordRegeneration 记录一次单场景重生成
func (s *StatsService) RecordRegeneration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.RegenerationRequests++
}

// RecordImage 记录图像生成结果
func (s *StatsService) RecordImage(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.stats.ImagesGenerated++
	} else {
		s.stats.ImagesFailed++
	}
}

// RecordAudio 记录音频生成结果
func (s *StatsService) RecordAudio(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.stats.AudioGenerated++
	} else {
		s.stats.AudioFailed++
	}
}

// RecordVideo 记录视频生成结果
func (s *StatsService) RecordVideo(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.stats.VideosGenerated++
	} else {
		s.stats.VideosFailed++
	}
}

// Snapshot 返回统计副本
func (s *StatsService) Snapshot() GenerationStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

package services

import (
	"strings"

	apperrors "github.com/Corphon/StoryWeaverMCP/internal/errors"
	"github.com/Corphon/StoryWeaverMCP/internal/gemini"
	"github.com/Corphon/StoryWeaverMCP/internal/models"
	"github.com/Corphon/StoryWeaverMCP/internal/storage"
)

const (
	// playbackTickMS 播放进度条的刷新粒度
	playbackTickMS = 50
	// minFallbackDurationMS 无音频场景的最短停留时间
	minFallbackDurationMS = 5000
	// perWordDurationMS 无音频时按旁白词数估算的单词时长
	perWordDurationMS = 500
)

// PlaybackService 根据已生成资源构造幻灯片播放时间轴
type PlaybackService struct {
	story   *StoryService
	storage *storage.FileStorage
}

// NewPlaybackService 创建播放服务
func NewPlaybackService(story *StoryService, fileStorage *storage.FileStorage) *PlaybackService {
	return &PlaybackService{
		story:   story,
		storage: fileStorage,
	}
}

// estimateDurationMS 按旁白词数估算场景停留时间
// 不低于最短停留时间
func estimateDurationMS(narration string) int64 {
	words := len(strings.Fields(narration))
	estimated := int64(words) * perWordDurationMS
	if estimated < minFallbackDurationMS {
		return minFallbackDurationMS
	}
	return estimated
}

// Timeline 构造项目的播放时间轴
// 只收录图像已就绪的场景；有音频的场景按WAV实际时长，
// 无音频的场景按旁白词数估算
func (s *PlaybackService) Timeline(projectID string) (*models.PlaybackTimeline, error) {
	snapshot, err := s.story.GetSnapshot(projectID)
	if err != nil {
		return nil, err
	}
	if snapshot.State != models.StateDone {
		return nil, apperrors.NewConflictError("资源生成尚未完成，无法播放", nil)
	}

	title := ""
	if snapshot.Plan != nil {
		title = snapshot.Plan.Title
	}

	timeline := &models.PlaybackTimeline{
		ProjectID: projectID,
		Title:     title,
		TickMS:    playbackTickMS,
	}

	var offset int64
	for _, asset := range snapshot.Assets {
		if asset.ImageURL == nil {
			continue
		}

		cue := models.PlaybackCue{
			SceneNumber: asset.SceneNumber,
			Narration:   asset.Narration,
			ImageURL:    *asset.ImageURL,
			StartMS:     offset,
		}

		if asset.AudioURL != nil {
			cue.AudioURL = *asset.AudioURL
			if data, err := s.storage.LoadSceneAsset(projectID, asset.SceneNumber, storage.AssetAudio); err == nil {
				if ms := gemini.WAVDurationMS(data); ms > 0 {
					cue.DurationMS = ms
				}
			}
		}
		if cue.DurationMS == 0 {
			cue.DurationMS = estimateDurationMS(asset.Narration)
			cue.Estimated = true
		}

		offset += cue.DurationMS
		timeline.Cues = append(timeline.Cues, cue)
	}

	if len(timeline.Cues) == 0 {
		return nil, apperrors.NewNoDataError("没有可播放的场景", nil)
	}
	timeline.TotalMS = offset
	timeline.SceneCount = len(timeline.Cues)
	return timeline, nil
}

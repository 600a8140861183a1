package services

import (
	"context"
	"testing"

	apperrors "github.com/Corphon/StoryWeaverMCP/internal/errors"
	"github.com/Corphon/StoryWeaverMCP/internal/gemini"
	"github.com/Corphon/StoryWeaverMCP/internal/models"
)

func TestEstimateDurationMS(t *testing.T) {
	tests := []struct {
		narration string
		want      int64
	}{
		{"", 5000},
		{"one two three", 5000},
		{"w w w w w w w w w w w w", 6000}, // 12词 * 500ms
	}
	for _, tt := range tests {
		if got := estimateDurationMS(tt.narration); got != tt.want {
			t.Errorf("estimateDurationMS(%q) = %d，期望 %d", tt.narration, got, tt.want)
		}
	}
}

func TestTimelineUsesWAVDuration(t *testing.T) {
	// 24kHz单声道16bit，2秒PCM
	pcm := make([]byte, 24000*2*2)
	gen := &fakeGenerator{
		speechFn: func(ctx context.Context, text, voiceID string) (*gemini.Resource, error) {
			return &gemini.Resource{Data: gemini.PCMToWAV(pcm, 24000, 1), MIMEType: "audio/wav"}, nil
		},
	}
	story, _, fileStorage, _ := newTestStack(t, gen)
	playback := NewPlaybackService(story, fileStorage)

	projectID := generateProject(t, story, models.VoiceAI)
	timeline, err := playback.Timeline(projectID)
	if err != nil {
		t.Fatalf("构造时间轴失败: %v", err)
	}

	if timeline.SceneCount != 3 || len(timeline.Cues) != 3 {
		t.Fatalf("应有3个场景，实际为 %d", timeline.SceneCount)
	}
	if timeline.TickMS != 50 {
		t.Errorf("刷新粒度应为50ms，实际为 %d", timeline.TickMS)
	}

	var offset int64
	for _, cue := range timeline.Cues {
		if cue.Estimated {
			t.Errorf("场景%d有音频，不应使用估算时长", cue.SceneNumber)
		}
		if cue.DurationMS != 2000 {
			t.Errorf("场景%d时长应为2000ms，实际为 %d", cue.SceneNumber, cue.DurationMS)
		}
		if cue.StartMS != offset {
			t.Errorf("场景%d起点应为%d，实际为 %d", cue.SceneNumber, offset, cue.StartMS)
		}
		offset += cue.DurationMS
	}
	if timeline.TotalMS != 6000 {
		t.Errorf("总时长应为6000ms，实际为 %d", timeline.TotalMS)
	}
}

func TestTimelineEstimatesWithoutAudio(t *testing.T) {
	story, _, fileStorage, _ := newTestStack(t, &fakeGenerator{})
	playback := NewPlaybackService(story, fileStorage)

	// 用户自录模式生成后没有音频文件
	projectID := generateProject(t, story, models.VoiceUser)
	timeline, err := playback.Timeline(projectID)
	if err != nil {
		t.Fatalf("构造时间轴失败: %v", err)
	}

	for _, cue := range timeline.Cues {
		if !cue.Estimated {
			t.Errorf("场景%d无音频，应标记为估算时长", cue.SceneNumber)
		}
		if cue.DurationMS < 5000 {
			t.Errorf("估算时长不应低于5000ms，实际为 %d", cue.DurationMS)
		}
		if cue.AudioURL != "" {
			t.Errorf("场景%d不应有音频URL", cue.SceneNumber)
		}
	}
}

func TestTimelineRequiresDone(t *testing.T) {
	story, _, fileStorage, _ := newTestStack(t, &fakeGenerator{})
	playback := NewPlaybackService(story, fileStorage)

	projectID := planProject(t, story)
	if _, err := playback.Timeline(projectID); !apperrors.IsConflictError(err) {
		t.Fatalf("未完成的项目应返回冲突错误，实际为 %v", err)
	}
	if _, err := playback.Timeline("no-such-id"); !apperrors.IsNotFoundError(err) {
		t.Fatalf("未知项目应返回不存在错误，实际为 %v", err)
	}
}

func TestTimelineSkipsScenesWithoutImage(t *testing.T) {
	gen := &fakeGenerator{
		imageFn: func(ctx context.Context, prompt string) (*gemini.Resource, error) {
			if prompt == "prompt two" {
				return nil, apperrors.NewRemoteError("图像生成失败", nil)
			}
			return &gemini.Resource{Data: []byte("png"), MIMEType: "image/png"}, nil
		},
	}
	story, _, fileStorage, _ := newTestStack(t, gen)
	playback := NewPlaybackService(story, fileStorage)

	projectID := generateProject(t, story, models.VoiceAI)
	timeline, err := playback.Timeline(projectID)
	if err != nil {
		t.Fatalf("构造时间轴失败: %v", err)
	}
	if timeline.SceneCount != 2 {
		t.Fatalf("无图像的场景应被跳过，场景数应为2，实际为 %d", timeline.SceneCount)
	}
	for _, cue := range timeline.Cues {
		if cue.SceneNumber == 2 {
			t.Error("场景2无图像，不应出现在时间轴中")
		}
	}
}

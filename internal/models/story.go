// internal/models/story.go
package models

// Scene 故事计划中的单个场景
// JSON字段名与规划接口返回的结构保持一致
type Scene struct {
	SceneNumber int    `json:"scene"`
	Narration   string `json:"narration"`
	ImagePrompt string `json:"imagePrompt"`
}

// ProjectPlan 规划调用产生的故事大纲
// 场景只允许追加，场景号全局严格递增，顺序即播放顺序
type ProjectPlan struct {
	Title  string  `json:"title"`
	Scenes []Scene `json:"scenes"`
}

// MaxSceneNumber 返回计划中最大的场景号，空计划返回0
func (p *ProjectPlan) MaxSceneNumber() int {
	max := 0
	for _, s := range p.Scenes {
		if s.SceneNumber > max {
			max = s.SceneNumber
		}
	}
	return max
}

// FindScene 按场景号查找场景，返回索引，未找到返回-1
func (p *ProjectPlan) FindScene(sceneNumber int) int {
	for i := range p.Scenes {
		if p.Scenes[i].SceneNumber == sceneNumber {
			return i
		}
	}
	return -1
}

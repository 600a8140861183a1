// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port       string `json:"port"`
	DataDir    string `json:"data_dir"`
	AssetsDir  string `json:"assets_dir"`
	ExportsDir string `json:"exports_dir"`
	LogDir     string `json:"log_dir"`
	DebugMode  bool   `json:"debug_mode"`

	// 远端生成服务配置
	GeminiAPIKey string            `json:"gemini_api_key,omitempty"`
	GeminiConfig map[string]string `json:"gemini_config"`
}

// Config 存储从环境加载的基础配置
type Config struct {
	Port         string
	GeminiAPIKey string
	DataDir      string
	AssetsDir    string
	ExportsDir   string
	LogDir       string
	DebugMode    bool
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	// 创建配置
	config := &Config{
		Port:         getEnv("PORT", "8080"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		DataDir:      getEnvPath("DATA_DIR", "data"),
		AssetsDir:    getEnvPath("ASSETS_DIR", filepath.Join("data", "assets")),
		ExportsDir:   getEnvPath("EXPORTS_DIR", filepath.Join("data", "exports")),
		LogDir:       getEnvPath("LOG_DIR", "logs"),
		DebugMode:    getEnvBool("DEBUG_MODE", true),
	}

	// 验证Gemini API密钥
	if config.GeminiAPIKey == "" {
		// 只记录警告，不返回错误；可在设置接口中补充密钥
		log.Println("警告: 未设置Gemini API密钥，生成功能在配置密钥前不可用")
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	// 加载基础配置
	baseConfig, err := Load()
	if err != nil {
		return err
	}

	// 创建初始配置
	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = &AppConfig{
		Port:         baseConfig.Port,
		DataDir:      baseConfig.DataDir,
		AssetsDir:    baseConfig.AssetsDir,
		ExportsDir:   baseConfig.ExportsDir,
		LogDir:       baseConfig.LogDir,
		DebugMode:    baseConfig.DebugMode,
		GeminiAPIKey: baseConfig.GeminiAPIKey,
		GeminiConfig: map[string]string{
			"api_key":    baseConfig.GeminiAPIKey,
			"plan_model": "gemini-2.5-pro",
			"text_model": "gemini-2.5-flash",
		},
	}

	// 尝试从文件加载已保存的配置
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// 合并配置，保留文件中的Gemini设置，但使用最新的基础配置
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.AssetsDir = baseConfig.AssetsDir
				savedConfig.ExportsDir = baseConfig.ExportsDir
				savedConfig.LogDir = baseConfig.LogDir

				// 如果文件中没有API密钥，使用环境变量的密钥
				if savedConfig.GeminiAPIKey == "" {
					savedConfig.GeminiAPIKey = baseConfig.GeminiAPIKey
				}
				if savedConfig.GeminiConfig == nil {
					savedConfig.GeminiConfig = map[string]string{}
				}
				if savedConfig.GeminiConfig["api_key"] == "" {
					savedConfig.GeminiConfig["api_key"] = savedConfig.GeminiAPIKey
				}

				currentConfig = &savedConfig
			}
		}
	}

	// 保存初始配置到文件
	return SaveConfig()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		baseConfig, _ := Load()
		return &AppConfig{
			Port:         baseConfig.Port,
			DataDir:      baseConfig.DataDir,
			AssetsDir:    baseConfig.AssetsDir,
			ExportsDir:   baseConfig.ExportsDir,
			LogDir:       baseConfig.LogDir,
			DebugMode:    baseConfig.DebugMode,
			GeminiAPIKey: baseConfig.GeminiAPIKey,
			GeminiConfig: map[string]string{
				"api_key": baseConfig.GeminiAPIKey,
			},
		}
	}

	// 返回配置的副本
	configCopy := *currentConfig
	return &configCopy
}

// HasAPIKey 检查是否已配置远端服务密钥
// 协调器在任何需要密钥的远端调用前检查一次（可选能力注入）
func HasAPIKey() bool {
	configMutex.RLock()
	defer configMutex.RUnlock()

	return currentConfig != nil && currentConfig.GeminiAPIKey != ""
}

// UpdateGeminiConfig 更新远端生成服务配置
func UpdateGeminiConfig(apiKey string, extra map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.GeminiAPIKey = apiKey
	if currentConfig.GeminiConfig == nil {
		currentConfig.GeminiConfig = map[string]string{}
	}
	currentConfig.GeminiConfig["api_key"] = apiKey
	for k, v := range extra {
		currentConfig.GeminiConfig[k] = v
	}

	return SaveConfig()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	// 确保目录存在
	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	// 序列化并保存
	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}

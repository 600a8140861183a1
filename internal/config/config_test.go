package config

import (
	"os"
	"path/filepath"
	"testing"
)

// setupConfigTest 用临时目录初始化配置，测试后还原全局状态
func setupConfigTest(t *testing.T) string {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "config_test_*")
	if err != nil {
		t.Fatalf("创建临时测试目录失败: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	t.Setenv("DATA_DIR", tempDir)
	t.Setenv("ASSETS_DIR", filepath.Join(tempDir, "assets"))
	t.Setenv("EXPORTS_DIR", filepath.Join(tempDir, "exports"))
	t.Setenv("LOG_DIR", filepath.Join(tempDir, "logs"))

	t.Cleanup(func() {
		configMutex.Lock()
		currentConfig = nil
		configFile = ""
		configMutex.Unlock()
	})
	return tempDir
}

func TestLoadDefaults(t *testing.T) {
	tempDir := setupConfigTest(t)
	t.Setenv("PORT", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("默认端口应为8080，实际为 %s", cfg.Port)
	}
	if cfg.DataDir != tempDir {
		t.Errorf("数据目录应为 %s，实际为 %s", tempDir, cfg.DataDir)
	}
	if !cfg.DebugMode {
		t.Error("调试模式默认应开启")
	}
}

func TestLoadFromEnv(t *testing.T) {
	setupConfigTest(t)
	t.Setenv("PORT", "9090")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("DEBUG_MODE", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Port != "9090" || cfg.GeminiAPIKey != "env-key" {
		t.Errorf("环境变量未生效: %s / %s", cfg.Port, cfg.GeminiAPIKey)
	}
	if cfg.DebugMode {
		t.Error("DEBUG_MODE=false时调试模式应关闭")
	}
}

func TestInitConfigCreatesFile(t *testing.T) {
	tempDir := setupConfigTest(t)
	t.Setenv("GEMINI_API_KEY", "")

	if err := InitConfig(tempDir); err != nil {
		t.Fatalf("初始化配置失败: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "config.json")); err != nil {
		t.Error("初始化后应生成config.json")
	}

	cfg := GetCurrentConfig()
	if cfg.GeminiConfig["plan_model"] != "gemini-2.5-pro" {
		t.Errorf("规划模型默认值不符: %s", cfg.GeminiConfig["plan_model"])
	}
	if cfg.GeminiConfig["text_model"] != "gemini-2.5-flash" {
		t.Errorf("文本模型默认值不符: %s", cfg.GeminiConfig["text_model"])
	}
	if HasAPIKey() {
		t.Error("未设置密钥时HasAPIKey应为false")
	}
}

func TestUpdateGeminiConfig(t *testing.T) {
	tempDir := setupConfigTest(t)
	t.Setenv("GEMINI_API_KEY", "")

	if err := InitConfig(tempDir); err != nil {
		t.Fatalf("初始化配置失败: %v", err)
	}

	if err := UpdateGeminiConfig("new-key", map[string]string{"plan_model": "custom-model"}); err != nil {
		t.Fatalf("更新配置失败: %v", err)
	}

	cfg := GetCurrentConfig()
	if cfg.GeminiAPIKey != "new-key" || cfg.GeminiConfig["api_key"] != "new-key" {
		t.Error("密钥未同步更新")
	}
	if cfg.GeminiConfig["plan_model"] != "custom-model" {
		t.Error("附加配置未合并")
	}
	if !HasAPIKey() {
		t.Error("设置密钥后HasAPIKey应为true")
	}
}

func TestInitConfigLoadsSavedSettings(t *testing.T) {
	tempDir := setupConfigTest(t)
	t.Setenv("GEMINI_API_KEY", "")

	if err := InitConfig(tempDir); err != nil {
		t.Fatalf("初始化配置失败: %v", err)
	}
	if err := UpdateGeminiConfig("persisted-key", nil); err != nil {
		t.Fatalf("更新配置失败: %v", err)
	}

	// 模拟重启：清空内存状态后重新初始化
	configMutex.Lock()
	currentConfig = nil
	configMutex.Unlock()

	if err := InitConfig(tempDir); err != nil {
		t.Fatalf("再次初始化配置失败: %v", err)
	}
	if cfg := GetCurrentConfig(); cfg.GeminiAPIKey != "persisted-key" {
		t.Errorf("重启后应保留文件中的密钥，实际为 %q", cfg.GeminiAPIKey)
	}
}

func TestGetCurrentConfigReturnsCopy(t *testing.T) {
	tempDir := setupConfigTest(t)
	if err := InitConfig(tempDir); err != nil {
		t.Fatalf("初始化配置失败: %v", err)
	}

	cfg := GetCurrentConfig()
	cfg.Port = "changed"
	if GetCurrentConfig().Port == "changed" {
		t.Error("修改副本不应影响全局配置")
	}
}

package app

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/Corphon/StoryWeaverMCP/internal/di"
	"github.com/Corphon/StoryWeaverMCP/internal/services"
)

// mockServer 记录调用的假HTTP服务器
type mockServer struct {
	listenCalled   bool
	shutdownCalled bool
	listenResult   error
}

func (m *mockServer) ListenAndServe() error {
	m.listenCalled = true
	if m.listenResult != nil {
		return m.listenResult
	}
	select {} // 阻塞直到进程结束，真实服务器的行为
}

func (m *mockServer) Shutdown(ctx context.Context) error {
	m.shutdownCalled = true
	return nil
}

// setupAppTest 用临时目录初始化整个应用
func setupAppTest(t *testing.T) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "app_test_*")
	if err != nil {
		t.Fatalf("创建临时测试目录失败: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	t.Setenv("DATA_DIR", tempDir)
	t.Setenv("ASSETS_DIR", filepath.Join(tempDir, "assets"))
	t.Setenv("EXPORTS_DIR", filepath.Join(tempDir, "exports"))
	t.Setenv("LOG_DIR", filepath.Join(tempDir, "logs"))
	t.Setenv("GEMINI_API_KEY", "test-key")

	t.Cleanup(func() {
		di.GetContainer().Clear()
		instance = nil
	})
}

func TestGetAppSingleton(t *testing.T) {
	setupAppTest(t)

	if GetApp() != GetApp() {
		t.Error("应用实例应是单例")
	}
}

func TestInitialize(t *testing.T) {
	setupAppTest(t)

	if err := Initialize(); err != nil {
		t.Fatalf("初始化应用失败: %v", err)
	}

	app := GetApp()
	if app.GetConfig() == nil {
		t.Fatal("初始化后配置不应为空")
	}
	if app.router == nil {
		t.Fatal("初始化后路由不应为空")
	}
	if app.GetConfig().Port != "8080" {
		t.Errorf("默认端口应为8080，实际为 %s", app.GetConfig().Port)
	}
}

func TestInitServicesRegistersAll(t *testing.T) {
	setupAppTest(t)

	if err := Initialize(); err != nil {
		t.Fatalf("初始化应用失败: %v", err)
	}

	container := GetApp().GetDIContainer()
	for _, name := range []string{"storage", "progress", "stats", "config", "story", "media", "export", "playback"} {
		if !container.Has(name) {
			t.Errorf("服务 %s 未注册", name)
		}
	}

	if _, ok := container.Get("story").(*services.StoryService); !ok {
		t.Error("story服务类型不符")
	}
	if _, ok := container.Get("export").(*services.ExportService); !ok {
		t.Error("export服务类型不符")
	}
}

func TestRunShutdownOnSignal(t *testing.T) {
	setupAppTest(t)

	if err := Initialize(); err != nil {
		t.Fatalf("初始化应用失败: %v", err)
	}

	app := GetApp()
	server := &mockServer{}
	app.server = server

	done := make(chan error, 1)
	go func() { done <- Run() }()

	// 等服务器启动后发送终止信号
	deadline := time.Now().Add(2 * time.Second)
	for !server.listenCalled && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	app.stopChan <- syscall.SIGTERM

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run返回错误: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run未在信号后退出")
	}

	if !server.shutdownCalled {
		t.Error("收到信号后应调用Shutdown")
	}
	if len(GetApp().GetDIContainer().GetNames()) != 0 {
		t.Error("清理后容器应为空")
	}
}

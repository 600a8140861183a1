// internal/api/auth_middleware.go
package api

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StoryWeaverMCP/internal/auth"
	"github.com/Corphon/StoryWeaverMCP/internal/config"
	"github.com/Corphon/StoryWeaverMCP/internal/utils"
)

var tokenConfig *auth.TokenConfig

// InitializeAuth 初始化设置接口的管理令牌
// 密钥优先取环境变量，调试模式使用固定密钥便于本地开发
// 启动时签发一枚管理令牌写入日志，生产环境凭它修改设置
func InitializeAuth() error {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	var secret []byte
	if envSecret := os.Getenv("AUTH_SECRET_KEY"); envSecret != "" {
		secret = []byte(envSecret)
	} else if cfg.DebugMode {
		secret = []byte("dev_auth_key_for_testing_purposes_only_")
		utils.GetLogger().Warn("开发模式下使用固定认证密钥，生产环境请通过环境变量设置 AUTH_SECRET_KEY", nil)
	} else {
		var err error
		secret, err = auth.GenerateSecureKey(32)
		if err != nil {
			return fmt.Errorf("生成认证密钥失败: %w", err)
		}
	}

	if len(secret) < 32 {
		padded := make([]byte, 32)
		copy(padded, secret)
		secret = padded
	}

	tokenConfig = &auth.TokenConfig{
		Secret:     secret,
		Expiration: 24 * time.Hour,
	}

	adminToken, err := auth.GenerateToken("admin", tokenConfig)
	if err != nil {
		return fmt.Errorf("签发管理令牌失败: %w", err)
	}
	utils.GetLogger().Info("管理令牌已签发，修改设置时在Authorization头中携带", map[string]interface{}{
		"token": adminToken,
	})

	return nil
}

// AdminAuthMiddleware 保护设置修改接口
// 调试模式直接放行，否则要求有效的Bearer管理令牌
func AdminAuthMiddleware() gin.HandlerFunc {
	helper := NewResponseHelper()

	return func(c *gin.Context) {
		cfg := config.GetCurrentConfig()
		if cfg != nil && cfg.DebugMode {
			c.Next()
			return
		}

		if tokenConfig == nil {
			helper.Unauthorized(c, "认证系统未初始化")
			c.Abort()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			helper.Unauthorized(c, "缺少管理令牌")
			c.Abort()
			return
		}

		token, err := auth.ParseToken(strings.TrimPrefix(header, "Bearer "), tokenConfig)
		if err != nil || token.Subject != "admin" {
			helper.Unauthorized(c, "管理令牌无效或已过期")
			c.Abort()
			return
		}

		c.Next()
	}
}

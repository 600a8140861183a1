// internal/gemini/video.go
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Corphon/StoryWeaverMCP/internal/errors"
)

// 远端操作的固定轮询间隔
const videoPollInterval = 10 * time.Second

// videoOperation 长时间运行操作的状态
type videoOperation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// GenerateVideo 基于提示词和首帧图像生成一段视频
// 内部是异步操作：发起后以固定间隔轮询，直到远端报告done或error
// 轮询没有最大尝试次数，超时上界由ctx承担
func (c *Client) GenerateVideo(ctx context.Context, prompt string, image ImagePart) (*Resource, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"instances": []map[string]interface{}{
			{
				"prompt": prompt,
				"image": map[string]string{
					"bytesBase64Encoded": encodeBase64(image.Data),
					"mimeType":           image.MIMEType,
				},
			},
		},
		"parameters": map[string]interface{}{
			"numberOfVideos": 1,
			"resolution":     "720p",
			"aspectRatio":    "16:9",
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	apiURL := fmt.Sprintf("%s/models/%s:predictLongRunning?key=%s", c.baseURL, ModelVideo, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordRemoteCall(ModelVideo, "predictLongRunning", false, time.Since(started))
		return nil, apperrors.NewRemoteError("视频生成请求失败", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordRemoteCall(ModelVideo, "predictLongRunning", resp.StatusCode == http.StatusOK, time.Since(started))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.NewRemoteError(
			fmt.Sprintf("视频生成API错误(%d): %s", resp.StatusCode, string(body)), nil)
	}

	var op videoOperation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, apperrors.NewMalformedError("解析操作响应失败", err)
	}
	if op.Name == "" {
		return nil, apperrors.NewMalformedError("操作响应缺少name", nil)
	}

	uri, err := c.pollVideoOperation(ctx, op.Name)
	if err != nil {
		return nil, err
	}

	return c.downloadVideo(ctx, uri)
}

// pollVideoOperation 以固定间隔轮询操作状态，返回视频下载地址
func (c *Client) pollVideoOperation(ctx context.Context, name string) (string, error) {
	apiURL := fmt.Sprintf("%s/%s?key=%s", c.baseURL, name, c.apiKey)

	ticker := time.NewTicker(videoPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
			if err != nil {
				return "", err
			}

			resp, err := c.client.Do(req)
			if err != nil {
				return "", apperrors.NewRemoteError("轮询操作状态失败", err)
			}

			var op videoOperation
			decodeErr := json.NewDecoder(resp.Body).Decode(&op)
			resp.Body.Close()
			if decodeErr != nil {
				return "", apperrors.NewMalformedError("解析操作状态失败", decodeErr)
			}

			if !op.Done {
				continue
			}

			if op.Error != nil {
				// 远端报告的失败只对本次请求致命
				return "", apperrors.NewOperationError(
					fmt.Sprintf("视频生成操作失败: %s", op.Error.Message), nil)
			}

			if op.Response == nil || len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
				return "", apperrors.NewNoDataError("视频操作完成但没有下载地址", nil)
			}

			return op.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI, nil
		}
	}
}

// downloadVideo 下载生成的视频字节
// "Requested entity was not found"说明密钥所在项目配置有问题，
// 需要引导用户回到密钥配置流程而不是显示普通错误
func (c *Client) downloadVideo(ctx context.Context, uri string) (*Resource, error) {
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}

	req, err := http.NewRequestWithContext(ctx, "GET", uri+sep+"key="+c.apiKey, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.NewRemoteError("下载视频失败", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if strings.Contains(string(body), "Requested entity was not found") {
			return nil, apperrors.NewEntityNotFoundError(
				"视频下载地址无效，请检查项目是否启用了Generative Language API并配置了结算", nil)
		}
		return nil, apperrors.NewRemoteError(
			fmt.Sprintf("下载视频失败(%d)", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewRemoteError("读取视频数据失败", err)
	}

	return &Resource{Data: data, MIMEType: "video/mp4"}, nil
}

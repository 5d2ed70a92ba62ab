package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"loto-bot/internal/config"
	"loto-bot/internal/database"
	"loto-bot/internal/importer"
	"loto-bot/internal/logger"

	"github.com/cenkalti/backoff/v4"
)

// maxFeedSize CSV源文件大小上限
const maxFeedSize = 32 << 20

// Client 开奖数据源客户端，从CSV地址拉取历史开奖
type Client struct {
	httpClient *http.Client
	baseURL    string
	retryCount int
	retryDelay time.Duration
}

// HTTPStatusError 非200响应
type HTTPStatusError struct {
	StatusCode int
}

// Error implements the error interface
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// NewClient 创建新的API客户端
func NewClient(cfg *config.API) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    cfg.URL,
		retryCount: cfg.RetryCount,
		retryDelay: cfg.RetryDelay,
	}
}

// FetchDraws 拉取并解析开奖数据，网络错误与5xx按指数退避重试，4xx不重试
func (c *Client) FetchDraws(ctx context.Context) ([]database.Draw, error) {
	body, err := c.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch draws after %d retries: %w", c.retryCount, err)
	}

	draws, err := importer.ParseCSV(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	logger.Debugf("Feed returned %d draws", len(draws))
	return draws, nil
}

// fetch 带重试地下载源文件
func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	var body []byte
	attempt := 0

	operation := func() error {
		attempt++
		if attempt > 1 {
			logger.Warnf("Feed request retry attempt %d/%d", attempt-1, c.retryCount)
		}

		data, err := c.makeRequest(ctx)
		if err != nil {
			return err
		}
		body = data
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = c.retryDelay
	strategy.MaxElapsedTime = 0
	strategy.Reset()

	maxRetries := c.retryCount
	if maxRetries < 0 {
		maxRetries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(strategy, uint64(maxRetries)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}

// makeRequest 执行HTTP请求
func (c *Client) makeRequest(ctx context.Context) ([]byte, error) {
	logger.Debugf("Making feed request to: %s", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &HTTPStatusError{StatusCode: resp.StatusCode}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(statusErr)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// HealthCheck 检查数据源是否可用
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.makeRequest(ctx); err != nil {
		return fmt.Errorf("feed health check failed: %w", err)
	}

	logger.Debug("Feed health check passed")
	return nil
}

// GetAPIStats 获取API统计信息
func (c *Client) GetAPIStats() map[string]interface{} {
	return map[string]interface{}{
		"base_url":    c.baseURL,
		"timeout":     c.httpClient.Timeout,
		"retry_count": c.retryCount,
		"retry_delay": c.retryDelay,
	}
}

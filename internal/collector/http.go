package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const maxResponseBytes = 8 << 20 // 8MB，政府站点偶尔返回很大的页面

// httpGet 单次 GET，不重试；网络错误、超时与非 200 状态统一归为 ErrRetrieval
func httpGet(ctx context.Context, client *http.Client, rawURL, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRetrieval, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrRetrieval, err)
	}
	return body, nil
}

// visitPage 用 colly 拉取一个 HTML 页面并返回原始响应体，具体解析交给提取策略
func visitPage(ctx context.Context, rawURL, userAgent string, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	// 站点常在 www 与裸域之间跳转，两者都放行
	host := strings.TrimPrefix(u.Hostname(), "www.")
	c := colly.NewCollector(
		colly.AllowedDomains(host, "www."+host),
		colly.UserAgent(userAgent),
		colly.MaxBodySize(maxResponseBytes),
	)
	c.SetRequestTimeout(timeout)

	var body []byte
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: empty response from %s", ErrRetrieval, u.Host)
	}
	return body, nil
}

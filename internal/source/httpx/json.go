package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/segmentio/encoding/json"

	"tickpump.com/internal/pump"
)

const (
	DefaultTimeout = 10 * time.Second
	userAgent      = "tickpump/1.0"
	// 错误信息里最多带多少字节响应体
	maxErrBody = 512
)

// DefaultClient reader 周期不会被 Stop 取消，超时由 client 兜底
var DefaultClient = &http.Client{Timeout: DefaultTimeout}

// StatusError 非 2xx 响应
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.Status, e.Body)
}

// GetJSON 发 GET 请求并把 JSON 响应解码到 out。数字保留为 json.Number。
func GetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	if client == nil {
		client = DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return &StatusError{URL: url, Status: resp.StatusCode, Body: string(b)}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// GetPayload 把 JSON 对象响应直接作为 reader 的结果
func GetPayload(ctx context.Context, client *http.Client, url string) (pump.Payload, error) {
	var p pump.Payload
	if err := GetJSON(ctx, client, url, &p); err != nil {
		return nil, err
	}
	return p, nil
}

package llm

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

// RetryPolicy 限流错误的重试策略
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy 默认重试策略
func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  2 * time.Second,
		MaxDelay:   90 * time.Second,
	}
}

// IsRateLimitError 是否为 429 / RESOURCE_EXHAUSTED
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "too many requests")
}

// retryDelayRegex 匹配 "Please retry in Xs" 或 "retryDelay: Xs"
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[":\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay 解析服务端建议的重试间隔，没有则返回 0
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}
	seconds, perr := strconv.ParseFloat(matches[1], 64)
	if perr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// Backoff 第 attempt 次重试前的等待时间，上限为 MaxDelay
func (p RetryPolicy) Backoff(attempt int, err error) time.Duration {
	if d := ExtractRetryDelay(err); d > 0 {
		if p.MaxDelay > 0 && d > p.MaxDelay {
			return p.MaxDelay
		}
		return d
	}
	d := p.BaseDelay * time.Duration(1<<attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

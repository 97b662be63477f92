package api

import (
	"context"
	"time"

	"okx-trigger-trader/internal/metrics"
	"okx-trigger-trader/internal/service"
)

// RetryPolicy 固定瞬态错误码集合 + 指数退避
// 只看响应顶层 code，不触碰业务负载；非瞬态响应（成功或硬失败）立即返回
type RetryPolicy struct {
	RetryableCodes map[string]struct{}
	MaxRetries     int
	BaseDelay      time.Duration
}

// DefaultRetryPolicy 50001 = service temporarily unavailable
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		RetryableCodes: map[string]struct{}{"50001": {}},
		MaxRetries:     2,
		BaseDelay:      300 * time.Millisecond,
	}
}

// PolicyFromConfig 从配置构造重试策略
func PolicyFromConfig(cfg service.RetryConfig) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		p.MaxRetries = cfg.MaxRetries
	}
	if cfg.BaseDelay > 0 {
		p.BaseDelay = cfg.BaseDelay
	}
	if len(cfg.RetryableCodes) > 0 {
		p.RetryableCodes = make(map[string]struct{}, len(cfg.RetryableCodes))
		for _, code := range cfg.RetryableCodes {
			p.RetryableCodes[code] = struct{}{}
		}
	}
	return p
}

// WithRetry 包装一次交易所调用
// 重试耗尽时返回最后一次响应而非错误，由上层决定是否视为硬失败
func WithRetry(ctx context.Context, p RetryPolicy, call func(context.Context) (*Response, error)) (*Response, error) {
	delay := p.BaseDelay
	var last *Response
	for attempt := 0; ; attempt++ {
		resp, err := call(ctx)
		if err != nil {
			return resp, err
		}
		last = resp
		if _, retryable := p.RetryableCodes[resp.Code]; !retryable || attempt >= p.MaxRetries {
			return last, nil
		}
		metrics.RetriesTotal.Inc()
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Rule struct {
	// Half-Open 状态允许通过的探测请求数
	MaxRequests uint32
	// Closed 状态计数窗口
	Interval time.Duration
	// Open 状态持续时间，到期进入 Half-Open
	Timeout time.Duration
	// 连续失败多少次熔断
	TripConsecutiveFailures uint32
}

// DefaultRule 适合每个周期只调用一次的下游
var DefaultRule = Rule{
	MaxRequests:             1,
	Interval:                time.Minute,
	Timeout:                 30 * time.Second,
	TripConsecutiveFailures: 5,
}

// IsRejected 熔断器拒绝（open 或 half-open 探测名额已满）
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func NewBreaker(name string, rule Rule) *gobreaker.CircuitBreaker[struct{}] {
	if rule.MaxRequests == 0 {
		rule.MaxRequests = DefaultRule.MaxRequests
	}
	if rule.Interval <= 0 {
		rule.Interval = DefaultRule.Interval
	}
	if rule.Timeout <= 0 {
		rule.Timeout = DefaultRule.Timeout
	}
	if rule.TripConsecutiveFailures == 0 {
		rule.TripConsecutiveFailures = DefaultRule.TripConsecutiveFailures
	}

	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: rule.MaxRequests,
		Interval:    rule.Interval,
		Timeout:     rule.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= rule.TripConsecutiveFailures
		},
		// 调用方主动取消不代表下游不健康
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

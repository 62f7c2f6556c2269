package sink

import (
	"context"
	"fmt"

	"tickpump.com/internal/pump"
	"tickpump.com/pkg/metrics"
	"tickpump.com/pkg/ratelimit"
)

// Breaker 下游连续失败后熔断，熔断期间直接失败，不再阻塞周期
func Breaker(name string, rule ratelimit.Rule, w pump.Writer) pump.Writer {
	cb := ratelimit.NewBreaker(name, rule)
	return func(ctx context.Context, pc pump.Context, p pump.Payload) error {
		_, err := cb.Execute(func() (struct{}, error) {
			return struct{}{}, w(ctx, pc, p)
		})
		if ratelimit.IsRejected(err) {
			metrics.OnSinkReject(name)
			return fmt.Errorf("%s: circuit breaker open: %w", name, err)
		}
		return err
	}
}

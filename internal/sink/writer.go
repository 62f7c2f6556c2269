package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"tickpump.com/internal/pump"
	"tickpump.com/pkg/logger"
)

var errNoPrice = errors.New("sink: payload has no numeric price")

// KafkaWriter *kafka.Writer 满足该接口，测试里用 mock 替换
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter 同步写，一次一条；超时由 WriteTimeout 控制
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
}

// ToBroker 把事件发布到 <prefix>:<symbol>
func ToBroker(b Broker, prefix string) pump.Writer {
	return func(ctx context.Context, pc pump.Context, p pump.Payload) error {
		ev, body, err := encode(pc, p)
		if err != nil {
			return err
		}
		if err := b.Publish(ctx, Topic(prefix, ev.Symbol), body); err != nil {
			return fmt.Errorf("broker publish: %w", err)
		}
		return nil
	}
}

// ToKafka 以 symbol 作为 key，同一个 symbol 落在同一分区
func ToKafka(w KafkaWriter) pump.Writer {
	return func(ctx context.Context, pc pump.Context, p pump.Payload) error {
		ev, body, err := encode(pc, p)
		if err != nil {
			return err
		}
		if err := w.WriteMessages(ctx, kafka.Message{Key: []byte(ev.Symbol), Value: body}); err != nil {
			return fmt.Errorf("kafka write: %w", err)
		}
		return nil
	}
}

// ToRedis PUBLISH 到固定 channel，channel 为空时使用 ticker:<symbol>
func ToRedis(rdb redis.Cmdable, channel string) pump.Writer {
	return func(ctx context.Context, pc pump.Context, p pump.Payload) error {
		ev, body, err := encode(pc, p)
		if err != nil {
			return err
		}
		ch := channel
		if ch == "" {
			ch = Topic("", ev.Symbol)
		}
		if err := rdb.Publish(ctx, ch, body).Err(); err != nil {
			return fmt.Errorf("redis publish: %w", err)
		}
		return nil
	}
}

// Multi 依次调用所有 writer；某个失败不影响后面的，错误合并返回
func Multi(writers ...pump.Writer) pump.Writer {
	ws := make([]pump.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			ws = append(ws, w)
		}
	}
	if len(ws) == 1 {
		return ws[0]
	}
	return func(ctx context.Context, pc pump.Context, p pump.Payload) error {
		var errs []error
		for _, w := range ws {
			if err := w(ctx, pc, p); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// Logged 写失败时打一条 warn，错误继续向上返回
func Logged(name string, w pump.Writer) pump.Writer {
	return func(ctx context.Context, pc pump.Context, p pump.Payload) error {
		err := w(ctx, pc, p)
		if err != nil {
			logger.Warn(ctx, "sink write failed", zap.String("sink", name), zap.String("symbol", pc.Symbol), zap.Error(err))
		}
		return err
	}
}

func encode(pc pump.Context, p pump.Payload) (Event, []byte, error) {
	ev, err := NewEvent(pc, p)
	if err != nil {
		return Event{}, nil, err
	}
	body, err := Encode(ev)
	if err != nil {
		return Event{}, nil, err
	}
	return ev, body, nil
}

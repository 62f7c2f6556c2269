package sink

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Broker 只负责把事件发出去，订阅方不在本进程
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

type Message struct {
	Topic   string
	Payload []byte
}

// MemBroker 进程内 broker，只记录发布过的消息，测试和单机调试用
type MemBroker struct {
	mu   sync.Mutex
	msgs []Message
}

func NewMemBroker() *MemBroker { return &MemBroker{} }

func (b *MemBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, Message{Topic: topic, Payload: payload})
	return nil
}

// Messages 返回已发布消息的拷贝
func (b *MemBroker) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.msgs)
}

func (b *MemBroker) Close() error { return nil }

// 关闭前等待未发出的数据刷到服务端的最长时间
const natsFlushTimeout = 2 * time.Second

type NatsBroker struct {
	nc *nats.Conn
}

func NewNatsBroker(url string, opts ...nats.Option) (*NatsBroker, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NatsBroker{nc: nc}, nil
}

func (b *NatsBroker) Publish(_ context.Context, topic string, payload []byte) error {
	return b.nc.Publish(topicToSubject(topic), payload)
}

// Close 先把缓冲里的 PUB 刷给服务端再断开，最后一条 tick 不会丢
func (b *NatsBroker) Close() error {
	if b.nc == nil || b.nc.IsClosed() {
		return nil
	}
	err := b.nc.FlushTimeout(natsFlushTimeout)
	b.nc.Close()
	return err
}

func topicToSubject(topic string) string { return strings.ReplaceAll(topic, ":", ".") }

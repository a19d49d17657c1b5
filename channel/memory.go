package channel

import (
	"context"
	"math/rand"
	"sync/atomic"

	"github.com/sasha-s/go-deadlock"

	"dungeonsync/protocol"
)

// Bus 进程内的频道实现，测试与单进程演示使用
type Bus struct {
	mu   deadlock.RWMutex
	subs map[string]map[*MemoryChannel]Handler

	// dropProb 模拟丢包概率
	dropProb float64
	rng      *rand.Rand
}

// NewBus 创建总线
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]map[*MemoryChannel]Handler),
		rng:  rand.New(rand.NewSource(1)),
	}
}

// SetDropProbability 设置模拟丢包概率，seed 决定丢包序列
func (b *Bus) SetDropProbability(p float64, seed int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropProb = p
	b.rng = rand.New(rand.NewSource(seed))
}

// Connect 以给定身份接入总线
func (b *Bus) Connect(self string) *MemoryChannel {
	return &MemoryChannel{bus: b, self: self}
}

func (b *Bus) deliver(from *MemoryChannel, env protocol.Envelope) {
	b.mu.Lock()
	targets := make([]Handler, 0, len(b.subs[env.Topic]))
	for mc, h := range b.subs[env.Topic] {
		if mc == from {
			continue
		}
		if b.dropProb > 0 && b.rng.Float64() < b.dropProb {
			continue
		}
		targets = append(targets, h)
	}
	b.mu.Unlock()
	for _, h := range targets {
		h(env)
	}
}

// MemoryChannel Bus 上的一个端点
type MemoryChannel struct {
	bus    *Bus
	self   string
	closed atomic.Bool
}

// Subscribe 立即生效
func (c *MemoryChannel) Subscribe(ctx context.Context, topic string, h Handler) error {
	if err := ctx.Err(); err != nil {
		return ErrSubscribeFailed
	}
	if topic == "" || c.closed.Load() {
		return ErrSubscribeFailed
	}
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	if c.bus.subs[topic] == nil {
		c.bus.subs[topic] = make(map[*MemoryChannel]Handler)
	}
	c.bus.subs[topic][c] = h
	return nil
}

// Publish 同步投递给其他订阅者；载荷经过一次 JSON 编码，与线上一致
func (c *MemoryChannel) Publish(topic string, event protocol.Event, payload any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	env, err := protocol.NewEnvelope(topic, event, c.self, payload)
	if err != nil {
		return err
	}
	c.bus.deliver(c, env)
	return nil
}

// Close 退订全部主题
func (c *MemoryChannel) Close() error {
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	for _, m := range c.bus.subs {
		delete(m, c)
	}
	c.closed.Store(true)
	return nil
}

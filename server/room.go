package server

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sasha-s/go-deadlock"

	"dungeonsync/logging"
	"dungeonsync/protocol"
)

var errRoomBusy = errors.New("relay: room join queue full")

// RoomConfig 可热更新的房间规则
type RoomConfig struct {
	MaxPublishesPerTick int     `json:"maxPublishesPerTick"`
	SimulateDelayMinMs  int     `json:"simulateDelayMinMs"`
	SimulateDelayMaxMs  int     `json:"simulateDelayMaxMs"`
	SimulateDropProb    float64 `json:"simulateDropProb"`
}

// DefaultRoomConfig 默认不限流、不模拟网络
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{MaxPublishesPerTick: 128}
}

// Room 一个频道主题：订阅者集合只在 Tick 线程中修改
type Room struct {
	Topic string

	Subscribers map[PlayerID]*Subscriber
	inputChan   chan Frame
	joinChan    chan *Subscriber
	leaveChan   chan *Subscriber
	pending     []Frame

	cfgMu deadlock.RWMutex
	cfg   RoomConfig

	rng     *rand.Rand
	metrics *RoomMetrics
	tickSeq atomic.Int64
	members atomic.Int64
	sent    map[PlayerID]int // 本帧各发送者已接受的帧数

	manager       *RoomManager
	interval      time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
	tickerStarted bool
}

// NewRoom 创建房间，初始化数据结构；m 为空时房间不会自动回收
func NewRoom(topic string, cfg RoomConfig, m *RoomManager) *Room {
	return &Room{
		Topic:       topic,
		Subscribers: make(map[PlayerID]*Subscriber),
		inputChan:   make(chan Frame, 1024), // 足够缓冲，避免网络读阻塞影响 Tick
		joinChan:    make(chan *Subscriber, 64),
		leaveChan:   make(chan *Subscriber, 64),
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		metrics:     &RoomMetrics{},
		sent:        make(map[PlayerID]int),
		manager:     m,
		interval:    tickInterval,
		stop:        make(chan struct{}),
	}
}

// Config 当前规则副本
func (r *Room) Config() RoomConfig {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.cfg
}

// SetConfig 热更新规则，下一 Tick 生效
func (r *Room) SetConfig(cfg RoomConfig) {
	r.cfgMu.Lock()
	r.cfg = cfg
	r.cfgMu.Unlock()
}

// Members 订阅者数量（可跨协程读取）
func (r *Room) Members() int { return int(r.members.Load()) }

// RequestJoin 请求在 Tick 线程中加入订阅者；确认帧由 Tick 发出
func (r *Room) RequestJoin(s *Subscriber) error {
	select {
	case r.joinChan <- s:
		return nil
	default:
		return errRoomBusy
	}
}

// RequestLeave 请求在 Tick 线程中移除订阅者，避免并发改动房间状态
func (r *Room) RequestLeave(s *Subscriber) {
	select {
	case r.leaveChan <- s:
	case <-r.stop:
	}
}

// OnPublish 入站发布（不立即转发），等下一次 Tick 处理
func (r *Room) OnPublish(f Frame) bool {
	r.metrics.IncPublished()
	// 不阻塞：拥塞时丢弃，保证 Tick 准时
	select {
	case r.inputChan <- f:
		return true
	default:
		r.metrics.IncChanFullDiscarded()
		return false
	}
}

// BeginTick 重置帧内状态
func (r *Room) BeginTick() {
	r.tickSeq.Add(1)
	clear(r.sent)
}

// ProcessInputs 处理加入/离开与本帧所有发布（非阻塞 drain）
func (r *Room) ProcessInputs(now time.Time) {
	cfg := r.Config()
	for {
		select {
		case s := <-r.joinChan:
			r.join(s)
		case s := <-r.leaveChan:
			r.leave(s)
		case f := <-r.inputChan:
			r.accept(f, cfg, now)
		default:
			return
		}
	}
}

func (r *Room) join(s *Subscriber) {
	r.Subscribers[s.ID] = s
	r.members.Store(int64(len(r.Subscribers)))
	ack, _ := protocol.Envelope{Op: protocol.OpSubscribed, Topic: r.Topic}.Encode()
	s.Conn.Enqueue(ack)
	logging.Log.Debugf("relay: %s subscribed to %s", s.ID, r.Topic)
}

func (r *Room) leave(s *Subscriber) {
	// 同一玩家重连后旧连接的离开请求不影响新连接
	if cur, ok := r.Subscribers[s.ID]; ok && cur == s {
		delete(r.Subscribers, s.ID)
		r.members.Store(int64(len(r.Subscribers)))
		logging.Log.Debugf("relay: %s left %s", s.ID, r.Topic)
	}
}

func (r *Room) accept(f Frame, cfg RoomConfig, now time.Time) {
	if cfg.MaxPublishesPerTick > 0 && r.sent[f.From] >= cfg.MaxPublishesPerTick {
		r.metrics.IncRateLimited()
		return
	}
	r.sent[f.From]++
	if cfg.SimulateDropProb > 0 && r.rng.Float64() < cfg.SimulateDropProb {
		r.metrics.IncDropsSimulated()
		return
	}
	if cfg.SimulateDelayMaxMs > 0 {
		d := cfg.SimulateDelayMinMs
		if span := cfg.SimulateDelayMaxMs - cfg.SimulateDelayMinMs; span > 0 {
			d += r.rng.Intn(span + 1)
		}
		f.Due = now.UnixMilli() + int64(d)
	}
	r.pending = append(r.pending, f)
}

// Flush 将到期的帧转发给除发送者外的所有订阅者
func (r *Room) Flush(now time.Time) {
	ms := now.UnixMilli()
	kept := r.pending[:0]
	for _, f := range r.pending {
		if f.Due > ms {
			kept = append(kept, f)
			continue
		}
		r.deliver(f)
	}
	clear(r.pending[len(kept):])
	r.pending = kept
}

func (r *Room) deliver(f Frame) {
	for id, s := range r.Subscribers {
		if id == f.From {
			continue
		}
		if s.Conn.Enqueue(f.Raw) {
			r.metrics.IncDelivered()
		} else {
			r.metrics.IncSendQueueFull()
		}
	}
}

// idle 没有订阅者也没有待处理的帧
func (r *Room) idle() bool {
	return len(r.Subscribers) == 0 && len(r.pending) == 0
}

// Stop 停止 Tick 循环，可重复调用
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

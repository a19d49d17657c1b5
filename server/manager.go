package server

import (
	"slices"
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"

	"dungeonsync/logging"
)

// RoomManager 管理多个房间（频道主题）的生命周期
type RoomManager struct {
	mu       deadlock.RWMutex
	rooms    map[string]*Room
	defaults RoomConfig
	interval time.Duration
}

var (
	defaultManager *RoomManager
	once           sync.Once
)

// GetRoomManager 单例房间管理器
func GetRoomManager() *RoomManager {
	once.Do(func() {
		defaultManager = NewRoomManager(TicksPerSecond)
	})
	return defaultManager
}

// NewRoomManager tps<=0 时使用 TicksPerSecond
func NewRoomManager(tps int) *RoomManager {
	if tps <= 0 {
		tps = TicksPerSecond
	}
	return &RoomManager{
		rooms:    make(map[string]*Room),
		defaults: DefaultRoomConfig(),
		interval: time.Second / time.Duration(tps),
	}
}

// SetTickRate 只影响之后创建的房间
func (m *RoomManager) SetTickRate(tps int) {
	if tps <= 0 {
		return
	}
	m.mu.Lock()
	m.interval = time.Second / time.Duration(tps)
	m.mu.Unlock()
}

// Subscribe 获取或创建房间并排队加入；加锁期间入队，保证房间不会在此之间被回收
func (m *RoomManager) Subscribe(topic string, s *Subscriber) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[topic]
	if !ok {
		r = NewRoom(topic, m.defaults, m)
		r.interval = m.interval
		m.rooms[topic] = r
		r.StartTicker()
		logging.Log.Infof("relay: room %s created", topic)
	}
	if err := r.RequestJoin(s); err != nil {
		return nil, err
	}
	return r, nil
}

// Get 查找房间
func (m *RoomManager) Get(topic string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[topic]
	return r, ok
}

// Topics 当前存活的主题，按名称排序
func (m *RoomManager) Topics() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.rooms))
	for t := range m.rooms {
		out = append(out, t)
	}
	m.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Defaults 新房间使用的规则
func (m *RoomManager) Defaults() RoomConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaults
}

// SetDefaults 更新新房间使用的规则
func (m *RoomManager) SetDefaults(cfg RoomConfig) {
	m.mu.Lock()
	m.defaults = cfg
	m.mu.Unlock()
}

// release 由房间的 Tick 协程调用；仍有排队加入时不回收
func (m *RoomManager) release(r *Room) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(r.joinChan) > 0 || !r.idle() {
		return false
	}
	if m.rooms[r.Topic] == r {
		delete(m.rooms, r.Topic)
	}
	r.Stop()
	logging.Log.Infof("relay: room %s released", r.Topic)
	return true
}

// Shutdown 停止所有房间
func (m *RoomManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for topic, r := range m.rooms {
		r.Stop()
		delete(m.rooms, topic)
	}
}

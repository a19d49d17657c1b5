package replication

import (
	"dungeonsync/dungeon"
)

// Kind 限流维度中的消息种类
type Kind int

const (
	MonstersLive Kind = iota
	MonstersBackground
	Projectiles
	Items
	PlayerUpdates
)

var kindNames = [...]string{"monsters_live", "monsters_background", "projectiles", "items", "player_updates"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// DefaultIntervals 每种消息的最小发布间隔（毫秒）
var DefaultIntervals = map[Kind]int64{
	MonstersLive:       0,
	MonstersBackground: 500,
	Projectiles:        100,
	Items:              100,
	PlayerUpdates:      50,
}

type limitKey struct {
	chamber dungeon.ChamberKey
	kind    Kind
}

// RateLimiter 按 (房间, 消息种类) 限流；超限直接跳过，不排队
//
// 只在会话的 tick 协程里使用，不加锁。now 为单调毫秒。
type RateLimiter struct {
	intervals map[Kind]int64
	last      map[limitKey]int64
}

// NewRateLimiter intervals 为 nil 时使用 DefaultIntervals
func NewRateLimiter(intervals map[Kind]int64) *RateLimiter {
	if intervals == nil {
		intervals = DefaultIntervals
	}
	return &RateLimiter{intervals: intervals, last: make(map[limitKey]int64)}
}

// Allow 距离上次放行已超过间隔则放行并记录
func (l *RateLimiter) Allow(chamber dungeon.ChamberKey, kind Kind, now int64) bool {
	k := limitKey{chamber, kind}
	last, seen := l.last[k]
	if seen && now-last < l.intervals[kind] {
		return false
	}
	l.last[k] = now
	return true
}

// Touch 记录一次越过限流的发布（如同步请求的即时回复）
func (l *RateLimiter) Touch(chamber dungeon.ChamberKey, kind Kind, now int64) {
	l.last[limitKey{chamber, kind}] = now
}

// Reset 清空全部记录
func (l *RateLimiter) Reset() {
	clear(l.last)
}

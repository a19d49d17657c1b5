package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount         int64 // 统计的 Tick 次数
	Published         int64 // 收到的发布帧数
	Delivered         int64 // 成功压入订阅者队列的帧数
	RateLimited       int64 // 因同帧限流被拒绝的帧数
	DropsSimulated    int64 // 因模拟丢包被丢弃的帧数
	ChanFullDiscarded int64 // 因入站通道满被丢弃的帧数
	SendQueueFull     int64 // 因订阅者发送队列满被丢弃的帧数
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
}

func (m *RoomMetrics) IncPublished()         { atomic.AddInt64(&m.Published, 1) }
func (m *RoomMetrics) IncDelivered()         { atomic.AddInt64(&m.Delivered, 1) }
func (m *RoomMetrics) IncRateLimited()       { atomic.AddInt64(&m.RateLimited, 1) }
func (m *RoomMetrics) IncDropsSimulated()    { atomic.AddInt64(&m.DropsSimulated, 1) }
func (m *RoomMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *RoomMetrics) IncSendQueueFull()     { atomic.AddInt64(&m.SendQueueFull, 1) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"published":           atomic.LoadInt64(&m.Published),
		"delivered":           atomic.LoadInt64(&m.Delivered),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"drops_simulated":     atomic.LoadInt64(&m.DropsSimulated),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"send_queue_full":     atomic.LoadInt64(&m.SendQueueFull),
		"avg_tick_ms":         avgMs,
	}
}

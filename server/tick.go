package server

import "time"

const (
	// TicksPerSecond 中继转发频率（20 TPS）
	TicksPerSecond = 20
)

var tickInterval = time.Duration(1000/TicksPerSecond) * time.Millisecond // 50ms

// Tick 一帧：处理入站 → 转发到期帧
func (r *Room) Tick(now time.Time) {
	r.BeginTick() // 同一 Tick 时间线：重置发送计数等帧内状态
	r.ProcessInputs(now)
	r.Flush(now)
}

// StartTicker 启动房间的 Tick 循环（单线程推进）；房间空闲时交回管理器回收
func (r *Room) StartTicker() {
	if r.tickerStarted {
		return
	}
	r.tickerStarted = true
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case now := <-ticker.C:
				start := time.Now()
				r.Tick(now)
				r.metrics.AddTick(time.Since(start).Nanoseconds())
				if r.idle() && r.manager != nil && r.manager.release(r) {
					return
				}
			}
		}
	}()
}

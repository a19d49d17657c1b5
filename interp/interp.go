// Package interp 渲染用的收敛滤波：渲染位置每帧向复制来的目标靠近一部分
//
// 不是物理积分，只用于掩盖网络抖动。权威端不平滑自己的实时实体，本地玩家也不平滑。
package interp

import (
	"dungeonsync/sim"
)

// 平滑系数：每个 60Hz 帧缩小剩余距离的比例
const (
	PlayerFactor  = 0.3
	MonsterFactor = 0.25
)

// Approach 向目标靠近 factor*dt 的比例；比例超过 1 时直接到达，不会越过目标
func Approach(pos, target, factor, dt float64) float64 {
	f := factor * dt
	if f <= 0 {
		return pos
	}
	if f >= 1 {
		return target
	}
	return pos + (target-pos)*f
}

// Monsters 跟随端的怪物向插值目标靠近
func Monsters(list []*sim.Monster, dt float64) {
	for _, m := range list {
		if m == nil || !m.HasTarget {
			continue
		}
		m.X = Approach(m.X, m.TargetX, MonsterFactor, dt)
		m.Y = Approach(m.Y, m.TargetY, MonsterFactor, dt)
	}
}

// Players 其他玩家向插值目标靠近
func Players(list map[string]*sim.RemotePlayer, dt float64) {
	for _, p := range list {
		if !p.HasTarget {
			continue
		}
		p.X = Approach(p.X, p.TargetX, PlayerFactor, dt)
		p.Y = Approach(p.Y, p.TargetY, PlayerFactor, dt)
	}
}

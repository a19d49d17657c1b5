package sim

import (
	"math"
	"math/rand"
)

// Point 平面坐标
type Point struct {
	X, Y float64
}

// StepContext 一次 AI 推进所需的上下文
//
// DT 以 60Hz 帧为单位；Now 为会话单调毫秒。
type StepContext struct {
	DT      float64
	Now     int64
	Rng     *rand.Rand
	Targets []Point

	// 实时模拟产出：召唤物与子弹
	Spawned []*Monster
	Fired   []Projectile
}

// 实时 AI 参数
const (
	shooterCooldownMs = 1500
	summonCooldownMs  = 5000
	maxMinions        = 3
	bossVolleyMs      = 2000
	bulletSpeed       = 4.0
	bulletDamage      = 10.0
)

func behaviour(m *Monster) MonsterKind {
	if m.Kind == Summoned {
		return m.ActualKind
	}
	return m.Kind
}

// BackgroundStep 非当前房间的简化 AI：不追玩家，只保持“看起来还活着”
func BackgroundStep(m *Monster, c *StepContext) {
	switch behaviour(m) {
	case Wanderer:
		wander(m, c, 0.5)
	case Dasher:
		angle := c.Rng.Float64() * 2 * math.Pi
		stepDash(m, c, math.Cos(angle), math.Sin(angle), 0.5)
	case Necromancer:
		if c.Rng.Float64() < 0.01 {
			m.X += (c.Rng.Float64() - 0.5) * 2
			m.Y += (c.Rng.Float64() - 0.5) * 2
		}
	}
}

// wander 随机游走，每 60 步重新瞄一次方向，越出边框的分量直接丢弃
func wander(m *Monster, c *StepContext, scale float64) {
	m.WanderTimer++
	if m.WanderTimer > 60 {
		m.WanderAngle += (c.Rng.Float64() - 0.5) * 0.5
		m.WanderTimer = 0
	}
	nx := m.X + math.Cos(m.WanderAngle)*m.Speed*c.DT*scale
	ny := m.Y + math.Sin(m.WanderAngle)*m.Speed*c.DT*scale
	if nx > WanderMargin && nx < RoomWidth-WanderMargin {
		m.X = nx
	}
	if ny > WanderMargin && ny < RoomHeight-WanderMargin {
		m.Y = ny
	}
}

// stepDash 推进 idle→windup→dashing→cooldown；(hx,hy) 为进入蓄力时采用的方向
func stepDash(m *Monster, c *StepContext, hx, hy, scale float64) {
	d := &m.Dash
	switch d.Phase {
	case DashWindup:
		if c.Now-d.WindupAt >= DashWindupMs {
			d.Phase = DashDashing
			d.DashAt = c.Now
		}
	case DashDashing:
		m.X = clamp(m.X+d.DirX*DashSpeed*c.DT*scale, WanderMargin, RoomWidth-WanderMargin)
		m.Y = clamp(m.Y+d.DirY*DashSpeed*c.DT*scale, WanderMargin, RoomHeight-WanderMargin)
		if c.Now-d.DashAt >= DashDurationMs {
			d.Phase = DashCooldown
			d.CooldownAt = c.Now
			d.LastDash = c.Now
		}
	case DashCooldown:
		if c.Now-d.CooldownAt >= DashRecoverMs {
			d.Phase = DashIdle
		}
	default:
		if c.Now-d.LastDash > DashCooldownMs {
			d.Phase = DashWindup
			d.WindupAt = c.Now
			d.DirX, d.DirY = normalize(hx, hy)
		}
	}
}

// LiveStep 权威端当前房间的完整 AI；没有目标时退化为后台 AI
func LiveStep(m *Monster, c *StepContext) {
	target, ok := nearest(m, c.Targets)
	if !ok {
		BackgroundStep(m, c)
		return
	}
	dx, dy := target.X-m.X, target.Y-m.Y

	switch behaviour(m) {
	case Wanderer:
		// 朝玩家缓慢修正游走方向
		want := math.Atan2(dy, dx)
		m.WanderAngle += angleDiff(want, m.WanderAngle) * 0.05
		wander(m, c, 1)
	case Shooter:
		if math.Hypot(dx, dy) > 200 {
			moveToward(m, dx, dy, c.DT)
		}
		if c.Now-m.LastShot >= shooterCooldownMs {
			m.LastShot = c.Now
			m.ShotPattern = (m.ShotPattern + 1) % 3
			base := math.Atan2(dy, dx)
			for i := -1; i <= 1; i++ {
				if m.ShotPattern == 0 && i != 0 {
					continue
				}
				fire(m, c, base+float64(i)*0.2)
			}
		}
	case Dasher:
		if m.Dash.Phase == DashIdle || m.Dash.Phase == DashCooldown {
			moveToward(m, dx, dy, c.DT*0.3)
		}
		stepDash(m, c, dx, dy, 1)
	case Necromancer:
		// 与玩家保持距离
		if math.Hypot(dx, dy) < 250 {
			moveToward(m, -dx, -dy, c.DT)
		}
		if c.Now-m.LastSummon >= summonCooldownMs && m.Minions < maxMinions {
			m.LastSummon = c.Now
			m.Minions++
			actual := Wanderer
			if c.Rng.Float64() < 0.5 {
				actual = Dasher
			}
			minion := NewMonster(Summoned, m.X+(c.Rng.Float64()-0.5)*60, m.Y+(c.Rng.Float64()-0.5)*60, m.MaxHealth*0.3)
			minion.ActualKind = actual
			minion.Master = m
			minion.Speed = DefaultSpeed(actual)
			minion.WanderAngle = c.Rng.Float64() * 2 * math.Pi
			c.Spawned = append(c.Spawned, minion)
		}
	case BossMonster:
		moveToward(m, dx, dy, c.DT)
		if c.Now-m.LastShot >= bossVolleyMs {
			m.LastShot = c.Now
			m.ShotPattern = (m.ShotPattern + 1) % 2
			offset := float64(m.ShotPattern) * math.Pi / 12
			for i := range 12 {
				fire(m, c, offset+float64(i)*math.Pi/6)
			}
		}
	}
	m.X = clamp(m.X, 20, RoomWidth-20)
	m.Y = clamp(m.Y, 20, RoomHeight-20)
}

// AdvanceProjectiles 直线推进，离开房间的子弹被移除
func AdvanceProjectiles(list []Projectile, dt float64) []Projectile {
	out := list[:0]
	for _, p := range list {
		p.X += p.VX * dt
		p.Y += p.VY * dt
		if p.X < 0 || p.X > RoomWidth || p.Y < 0 || p.Y > RoomHeight {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Overlaps 圆形碰撞
func Overlaps(ax, ay, ar, bx, by, br float64) bool {
	return math.Hypot(ax-bx, ay-by) < ar+br
}

func fire(m *Monster, c *StepContext, angle float64) {
	c.Fired = append(c.Fired, Projectile{
		X: m.X, Y: m.Y,
		VX: math.Cos(angle) * bulletSpeed, VY: math.Sin(angle) * bulletSpeed,
		Damage: bulletDamage, Size: 6,
	})
}

func moveToward(m *Monster, dx, dy, dt float64) {
	nx, ny := normalize(dx, dy)
	m.X += nx * m.Speed * dt
	m.Y += ny * m.Speed * dt
}

func nearest(m *Monster, targets []Point) (Point, bool) {
	best, bestDist := Point{}, math.Inf(1)
	for _, t := range targets {
		if d := math.Hypot(t.X-m.X, t.Y-m.Y); d < bestDist {
			best, bestDist = t, d
		}
	}
	return best, len(targets) > 0
}

func normalize(x, y float64) (float64, float64) {
	l := math.Hypot(x, y)
	if l == 0 {
		return 0, 0
	}
	return x / l, y / l
}

func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b+math.Pi, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	return d - math.Pi
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

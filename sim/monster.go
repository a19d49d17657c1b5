package sim

import (
	"fmt"
	"strings"
)

// 房间尺寸（像素单位），所有客户端一致
const (
	RoomWidth  = 800.0
	RoomHeight = 600.0
	// WanderMargin 后台游走时离墙的最小距离
	WanderMargin = 50.0
)

// MonsterKind 怪物种类
type MonsterKind int

const (
	Wanderer MonsterKind = iota
	Shooter
	Dasher
	Necromancer
	Summoned
	BossMonster
)

var monsterKindNames = [...]string{
	Wanderer:    "wanderer",
	Shooter:     "shooter",
	Dasher:      "dasher",
	Necromancer: "necromancer",
	Summoned:    "summoned",
	BossMonster: "boss",
}

func (k MonsterKind) String() string {
	if k < 0 || int(k) >= len(monsterKindNames) {
		return "unknown"
	}
	return monsterKindNames[k]
}

// MarshalText 以名字编码
func (k MonsterKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText 从名字解析
func (k *MonsterKind) UnmarshalText(b []byte) error {
	s := strings.ToLower(string(b))
	for i, name := range monsterKindNames {
		if name == s {
			*k = MonsterKind(i)
			return nil
		}
	}
	return fmt.Errorf("sim: unknown monster kind %q", s)
}

// DashPhase Dasher 的状态机
type DashPhase int

const (
	DashIdle DashPhase = iota
	DashWindup
	DashDashing
	DashCooldown
)

var dashPhaseNames = [...]string{"idle", "windup", "dashing", "cooldown"}

func (p DashPhase) String() string {
	if p < 0 || int(p) >= len(dashPhaseNames) {
		return "idle"
	}
	return dashPhaseNames[p]
}

// MarshalText 以名字编码
func (p DashPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText 未知值按 idle 处理
func (p *DashPhase) UnmarshalText(b []byte) error {
	*p = DashIdle
	for i, name := range dashPhaseNames {
		if name == string(b) {
			*p = DashPhase(i)
		}
	}
	return nil
}

// Dasher 时序参数（毫秒）
const (
	DashWindupMs   = 500
	DashDurationMs = 300
	DashRecoverMs  = 400
	DashCooldownMs = 2000
	DashSpeed      = 8.0
)

// DashState Dasher 子状态，时间戳为会话单调毫秒
type DashState struct {
	Phase      DashPhase
	DirX, DirY float64
	WindupAt   int64
	DashAt     int64
	CooldownAt int64
	LastDash   int64
}

// Monster 怪物没有稳定 ID，跨快照的身份由就近匹配推断
type Monster struct {
	X, Y float64
	// TargetX/TargetY 跟随端的插值目标，也是最近一次复制来的位置
	TargetX, TargetY float64
	HasTarget        bool

	Health, MaxHealth float64
	Kind              MonsterKind
	Size              float64
	Speed             float64

	WanderAngle float64
	WanderTimer int
	LastShot    int64
	ShotPattern int

	Dash DashState

	LastSummon int64
	Minions    int
	// Master 召唤者；只在权威端的同一房间内有效，不参与复制
	Master *Monster
	// ActualKind Summoned 伪装成的具体种类
	ActualKind MonsterKind
}

// NewMonster 按种类填默认属性
func NewMonster(kind MonsterKind, x, y, health float64) *Monster {
	m := &Monster{
		X: x, Y: y,
		Health: health, MaxHealth: health,
		Kind:       kind,
		Size:       18,
		Speed:      DefaultSpeed(kind),
		ActualKind: kind,
	}
	if kind == BossMonster {
		m.Size = 40
	}
	return m
}

// DefaultSpeed 种类默认速度
func DefaultSpeed(kind MonsterKind) float64 {
	switch kind {
	case Shooter:
		return 0.8
	case Wanderer:
		return 1.2
	case Dasher:
		return 1.0
	case Necromancer:
		return 0.6
	case BossMonster:
		return 0.9
	default:
		return 1.0
	}
}

// Alive 生命值大于零
func (m *Monster) Alive() bool {
	return m.Health > 0
}

// Clone 值拷贝（Monster 内无引用字段）
func (m *Monster) Clone() *Monster {
	cp := *m
	return &cp
}

// Position 当前渲染位置
func (m *Monster) Position() (float64, float64) {
	return m.X, m.Y
}

// Anchor 复制匹配时使用的位置：有插值目标时用目标
func (m *Monster) Anchor() (float64, float64) {
	if m.HasTarget {
		return m.TargetX, m.TargetY
	}
	return m.X, m.Y
}

package protocol

import (
	"dungeonsync/sim"
)

// MonsterRecord 线上的怪物。只有坐标是必需的，其余字段在紧凑载荷里可以省略
type MonsterRecord struct {
	X          float64          `json:"x"`
	Y          float64          `json:"y"`
	Kind       *sim.MonsterKind `json:"type,omitempty"`
	Health     *float64         `json:"health,omitempty"`
	MaxHealth  *float64         `json:"maxHealth,omitempty"`
	Size       *float64         `json:"size,omitempty"`
	Speed      *float64         `json:"speed,omitempty"`
	DashState  *sim.DashPhase   `json:"dashState,omitempty"`
	DashDirX   *float64         `json:"dashDirX,omitempty"`
	DashDirY   *float64         `json:"dashDirY,omitempty"`
	ActualKind *sim.MonsterKind `json:"actualType,omitempty"`
	Minions    *int             `json:"minionCount,omitempty"`
}

// RecordMonster 完整序列化
func RecordMonster(m *sim.Monster) MonsterRecord {
	kind, actual := m.Kind, m.ActualKind
	health, maxHealth, size, speed := m.Health, m.MaxHealth, m.Size, m.Speed
	r := MonsterRecord{
		X: m.X, Y: m.Y,
		Kind:      &kind,
		Health:    &health,
		MaxHealth: &maxHealth,
		Size:      &size,
		Speed:     &speed,
	}
	switch m.Kind {
	case sim.Dasher:
		phase, dx, dy := m.Dash.Phase, m.Dash.DirX, m.Dash.DirY
		r.DashState, r.DashDirX, r.DashDirY = &phase, &dx, &dy
	case sim.Summoned:
		r.ActualKind = &actual
	case sim.Necromancer:
		n := m.Minions
		r.Minions = &n
	}
	return r
}

// RecordMonsters 序列化整张列表，跳过已死亡的
func RecordMonsters(list []*sim.Monster) []MonsterRecord {
	out := make([]MonsterRecord, 0, len(list))
	for _, m := range list {
		if m != nil && m.Alive() {
			out = append(out, RecordMonster(m))
		}
	}
	return out
}

// KindOrDefault 缺省按 Wanderer 处理
func (r MonsterRecord) KindOrDefault() sim.MonsterKind {
	if r.Kind == nil {
		return sim.Wanderer
	}
	return *r.Kind
}

// NewMonster 跟随端新建本地怪物，缺失字段取种类默认值
func (r MonsterRecord) NewMonster() *sim.Monster {
	health := 30.0
	if r.MaxHealth != nil {
		health = *r.MaxHealth
	} else if r.Health != nil {
		health = *r.Health
	}
	m := sim.NewMonster(r.KindOrDefault(), r.X, r.Y, health)
	r.ApplyTo(m)
	return m
}

// ApplyTo 把记录里出现的字段写入本地怪物，并把插值目标设为记录坐标
func (r MonsterRecord) ApplyTo(m *sim.Monster) {
	m.TargetX, m.TargetY, m.HasTarget = r.X, r.Y, true
	if r.Health != nil {
		m.Health = *r.Health
	}
	if r.MaxHealth != nil {
		m.MaxHealth = *r.MaxHealth
	}
	if r.Size != nil {
		m.Size = *r.Size
	}
	if r.Speed != nil {
		m.Speed = *r.Speed
	}
	if r.DashState != nil {
		m.Dash.Phase = *r.DashState
	}
	if r.DashDirX != nil {
		m.Dash.DirX = *r.DashDirX
	}
	if r.DashDirY != nil {
		m.Dash.DirY = *r.DashDirY
	}
	if r.ActualKind != nil {
		m.ActualKind = *r.ActualKind
	}
	if r.Minions != nil {
		m.Minions = *r.Minions
	}
}

// BulletRecord 线上的子弹
type BulletRecord struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Damage float64 `json:"damage,omitempty"`
	Size   float64 `json:"size,omitempty"`
}

// RecordBullets 序列化敌方子弹，玩家子弹由 player_shot 单独传播
func RecordBullets(list []sim.Projectile) []BulletRecord {
	out := make([]BulletRecord, 0, len(list))
	for _, p := range list {
		if p.FromPlayer {
			continue
		}
		out = append(out, RecordBullet(p))
	}
	return out
}

// RecordBullet 单颗子弹
func RecordBullet(p sim.Projectile) BulletRecord {
	return BulletRecord{X: p.X, Y: p.Y, VX: p.VX, VY: p.VY, Damage: p.Damage, Size: p.Size}
}

// Projectile 反序列化
func (b BulletRecord) Projectile() sim.Projectile {
	size := b.Size
	if size == 0 {
		size = 6
	}
	return sim.Projectile{X: b.X, Y: b.Y, VX: b.VX, VY: b.VY, Damage: b.Damage, Size: size}
}

// ItemRecord 线上的物件
type ItemRecord struct {
	X        float64      `json:"x"`
	Y        float64      `json:"y"`
	Kind     sim.ItemKind `json:"type"`
	Size     float64      `json:"size,omitempty"`
	Amount   int          `json:"amount,omitempty"`
	Data     string       `json:"data,omitempty"`
	MiniBoss string       `json:"minibossType,omitempty"`
}

// RecordItems 序列化物件列表
func RecordItems(list []sim.Item) []ItemRecord {
	out := make([]ItemRecord, 0, len(list))
	for _, it := range list {
		out = append(out, ItemRecord{X: it.X, Y: it.Y, Kind: it.Kind, Size: it.Size, Amount: it.Amount, Data: it.Data, MiniBoss: it.MiniBoss})
	}
	return out
}

// Item 反序列化
func (r ItemRecord) Item() sim.Item {
	return sim.Item{X: r.X, Y: r.Y, Kind: r.Kind, Size: r.Size, Amount: r.Amount, Data: r.Data, MiniBoss: r.MiniBoss}
}

// IndicatorRecord 线上的生成提示
type IndicatorRecord struct {
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Kind   sim.MonsterKind `json:"type"`
	IsBoss bool            `json:"isBoss,omitempty"`
	Radius float64         `json:"radius,omitempty"`
}

// RecordIndicators 序列化提示列表
func RecordIndicators(list []sim.SpawnIndicator) []IndicatorRecord {
	out := make([]IndicatorRecord, 0, len(list))
	for _, s := range list {
		out = append(out, IndicatorRecord{X: s.X, Y: s.Y, Kind: s.Kind, IsBoss: s.IsBoss, Radius: s.Radius})
	}
	return out
}

// Indicator 反序列化，出现时间由接收方决定
func (r IndicatorRecord) Indicator(now int64) sim.SpawnIndicator {
	return sim.SpawnIndicator{X: r.X, Y: r.Y, Kind: r.Kind, IsBoss: r.IsBoss, Radius: r.Radius, SpawnTime: now}
}

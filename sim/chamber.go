package sim

// Projectile 子弹，没有身份，每次快照整体替换
type Projectile struct {
	X, Y       float64
	VX, VY     float64
	Damage     float64
	Size       float64
	FromPlayer bool
}

// ItemKind 房间内可拾取或交互的物件
type ItemKind string

const (
	ItemKey       ItemKind = "key"
	ItemShop      ItemKind = "shop"
	ItemGunBox    ItemKind = "gun_box"
	ItemWeapon    ItemKind = "weapon"
	ItemPowerup   ItemKind = "powerup"
	ItemPedestal  ItemKind = "miniboss_pedestal"
	ItemLocked    ItemKind = "locked_door"
	ItemNextFloor ItemKind = "next_floor"
	ItemCoin      ItemKind = "coin"
)

// Item 房间物件
type Item struct {
	X, Y     float64
	Kind     ItemKind
	Size     float64
	Amount   int
	Data     string
	MiniBoss string
}

// SpawnIndicator 怪物即将出现的提示，只作参考
type SpawnIndicator struct {
	X, Y      float64
	Kind      MonsterKind
	IsBoss    bool
	Radius    float64
	SpawnTime int64
}

// IndicatorLifetimeMs 提示在没有真实怪物到达时的存活时间
const IndicatorLifetimeMs = 3000

// Expired 是否超时
func (s SpawnIndicator) Expired(now int64) bool {
	return now-s.SpawnTime > IndicatorLifetimeMs
}

// RemotePlayer 其他玩家的只读视图
type RemotePlayer struct {
	ID, Name          string
	X, Y              float64
	TargetX, TargetY  float64
	HasTarget         bool
	Angle             float64
	Health, MaxHealth float64
	Weapon            string
	GridX, GridY      int
	LastSeen          int64
}

// ChamberState 一个房间的运行时状态，是复制的分区单位
type ChamberState struct {
	Monsters    []*Monster
	Projectiles []Projectile
	Items       []Item
}

// NewChamberState 空状态
func NewChamberState() *ChamberState {
	return &ChamberState{}
}

// Clone 深拷贝：之后修改实时列表不会影响存档
func (s *ChamberState) Clone() *ChamberState {
	if s == nil {
		return NewChamberState()
	}
	cp := &ChamberState{
		Monsters:    make([]*Monster, 0, len(s.Monsters)),
		Projectiles: append([]Projectile(nil), s.Projectiles...),
		Items:       append([]Item(nil), s.Items...),
	}
	copies := make(map[*Monster]*Monster, len(s.Monsters))
	for _, m := range s.Monsters {
		if m != nil {
			c := m.Clone()
			copies[m] = c
			cp.Monsters = append(cp.Monsters, c)
		}
	}
	// 召唤关系指向副本里的召唤者
	for _, c := range cp.Monsters {
		if c.Master != nil {
			c.Master = copies[c.Master]
		}
	}
	return cp
}

// Reset 清空三类列表
func (s *ChamberState) Reset() {
	s.Monsters = nil
	s.Projectiles = nil
	s.Items = nil
}

// AliveMonsters 存活怪物数
func (s *ChamberState) AliveMonsters() int {
	n := 0
	for _, m := range s.Monsters {
		if m.Alive() {
			n++
		}
	}
	return n
}

// RemoveItem 删除第 i 个物件
func (s *ChamberState) RemoveItem(i int) {
	if i < 0 || i >= len(s.Items) {
		return
	}
	s.Items = append(s.Items[:i], s.Items[i+1:]...)
}

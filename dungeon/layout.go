package dungeon

import (
	"fmt"
	"strings"
)

// ChamberType 房间角色
type ChamberType int

const (
	NormalChamber ChamberType = iota
	StartChamber
	BossChamber
	MiniBossChamber
	KeyChamber
	ShopChamber
	GunChamber
	TreasureChamber
)

var chamberTypeNames = [...]string{
	NormalChamber:   "NORMAL",
	StartChamber:    "START",
	BossChamber:     "BOSS",
	MiniBossChamber: "MINIBOSS",
	KeyChamber:      "KEY",
	ShopChamber:     "SHOP",
	GunChamber:      "GUN",
	TreasureChamber: "TREASURE",
}

var chamberGlyphs = [...]byte{
	NormalChamber:   'o',
	StartChamber:    '@',
	BossChamber:     'B',
	MiniBossChamber: 'b',
	KeyChamber:      'k',
	ShopChamber:     '$',
	GunChamber:      'g',
	TreasureChamber: 't',
}

func (t ChamberType) String() string {
	if t < 0 || int(t) >= len(chamberTypeNames) {
		return "UNKNOWN"
	}
	return chamberTypeNames[t]
}

// MarshalText 让 JSON 中以名字出现，便于调试与跨端阅读
func (t ChamberType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText 从名字解析房间角色
func (t *ChamberType) UnmarshalText(b []byte) error {
	s := strings.ToUpper(string(b))
	for i, name := range chamberTypeNames {
		if name == s {
			*t = ChamberType(i)
			return nil
		}
	}
	return fmt.Errorf("dungeon: unknown chamber type %q", s)
}

// MiniBossType 小 Boss 的具体种类（生成时从同一随机流抽取）
type MiniBossType int

const (
	NoMiniBoss MiniBossType = iota
	Brute
	Gunner
	Phantom
	Warlock
)

// miniBossTypes 抽取顺序固定，改顺序会改变地图
var miniBossTypes = []MiniBossType{Brute, Gunner, Phantom, Warlock}

func (m MiniBossType) String() string {
	switch m {
	case Brute:
		return "brute"
	case Gunner:
		return "gunner"
	case Phantom:
		return "phantom"
	case Warlock:
		return "warlock"
	default:
		return ""
	}
}

// Direction 四个门的方向
type Direction int

const (
	North Direction = iota
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	default:
		return "none"
	}
}

// Opposite 反方向，用于对称开门
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	default:
		return East
	}
}

// Delta 方向对应的网格偏移
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case North:
		return 0, -1
	case South:
		return 0, 1
	case East:
		return 1, 0
	default:
		return -1, 0
	}
}

// Doors 门集合，门总是成对存在于相邻两个房间
type Doors struct {
	North bool `json:"north"`
	South bool `json:"south"`
	East  bool `json:"east"`
	West  bool `json:"west"`
}

// Has 是否有该方向的门
func (d Doors) Has(dir Direction) bool {
	switch dir {
	case North:
		return d.North
	case South:
		return d.South
	case East:
		return d.East
	case West:
		return d.West
	}
	return false
}

func (d *Doors) set(dir Direction) {
	switch dir {
	case North:
		d.North = true
	case South:
		d.South = true
	case East:
		d.East = true
	case West:
		d.West = true
	}
}

// Count 门的数量
func (d Doors) Count() int {
	n := 0
	for _, dir := range []Direction{North, South, East, West} {
		if d.Has(dir) {
			n++
		}
	}
	return n
}

// ChamberKey 房间坐标，是复制分区的键
type ChamberKey struct {
	X int `json:"gridX"`
	Y int `json:"gridY"`
}

func (k ChamberKey) String() string {
	return fmt.Sprintf("%d,%d", k.X, k.Y)
}

// Step 沿方向移动一格
func (k ChamberKey) Step(dir Direction) ChamberKey {
	dx, dy := dir.Delta()
	return ChamberKey{X: k.X + dx, Y: k.Y + dy}
}

// Chamber 网格中的一个房间
type Chamber struct {
	X        int          `json:"gridX"`
	Y        int          `json:"gridY"`
	Type     ChamberType  `json:"type"`
	Doors    Doors        `json:"doors"`
	Visited  bool         `json:"visited"`
	Cleared  bool         `json:"cleared"`
	MiniBoss MiniBossType `json:"miniBossType,omitempty"`
	// BossUnlocked 非 Boss 层持钥匙进入后置位
	BossUnlocked bool `json:"bossUnlocked,omitempty"`
}

// Key 房间坐标
func (c *Chamber) Key() ChamberKey {
	return ChamberKey{X: c.X, Y: c.Y}
}

// Layout 一层地牢：边长 Size 的方格，Grid[y][x] 为 nil 表示空位
type Layout struct {
	Seed      Seed
	BossFloor bool
	Size      int
	Start     ChamberKey
	Grid      [][]*Chamber
}

func newLayout(size int) *Layout {
	grid := make([][]*Chamber, size)
	for y := range grid {
		grid[y] = make([]*Chamber, size)
	}
	return &Layout{Size: size, Grid: grid}
}

// InBounds 坐标是否在网格内
func (l *Layout) InBounds(k ChamberKey) bool {
	return k.X >= 0 && k.X < l.Size && k.Y >= 0 && k.Y < l.Size
}

// At 取房间，越界或空位返回 nil
func (l *Layout) At(k ChamberKey) *Chamber {
	if l == nil || !l.InBounds(k) {
		return nil
	}
	return l.Grid[k.Y][k.X]
}

// Chambers 按行优先顺序返回所有房间
func (l *Layout) Chambers() []*Chamber {
	out := make([]*Chamber, 0, l.Size*l.Size)
	for y := 0; y < l.Size; y++ {
		for x := 0; x < l.Size; x++ {
			if c := l.Grid[y][x]; c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}

// Count 房间总数
func (l *Layout) Count() int {
	return len(l.Chambers())
}

// CountType 某类房间的数量
func (l *Layout) CountType(t ChamberType) int {
	n := 0
	for _, c := range l.Chambers() {
		if c.Type == t {
			n++
		}
	}
	return n
}

// FindType 第一个该类型的房间（行优先）
func (l *Layout) FindType(t ChamberType) *Chamber {
	for _, c := range l.Chambers() {
		if c.Type == t {
			return c
		}
	}
	return nil
}

// Neighbor 通过门相连的相邻房间；无门或越界返回 nil
func (l *Layout) Neighbor(k ChamberKey, dir Direction) *Chamber {
	c := l.At(k)
	if c == nil || !c.Doors.Has(dir) {
		return nil
	}
	return l.At(k.Step(dir))
}

// Clone 深拷贝（客户端各自持有一份拓扑）
func (l *Layout) Clone() *Layout {
	if l == nil {
		return nil
	}
	cp := newLayout(l.Size)
	cp.Seed = l.Seed
	cp.BossFloor = l.BossFloor
	cp.Start = l.Start
	for y := range l.Grid {
		for x, c := range l.Grid[y] {
			if c != nil {
				dup := *c
				cp.Grid[y][x] = &dup
			}
		}
	}
	return cp
}

// String 文本小地图，每格两字符
func (l *Layout) String() string {
	var b strings.Builder
	for y := 0; y < l.Size; y++ {
		for x := 0; x < l.Size; x++ {
			c := l.Grid[y][x]
			if c == nil {
				b.WriteString(". ")
				continue
			}
			b.WriteByte(chamberGlyphs[c.Type])
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

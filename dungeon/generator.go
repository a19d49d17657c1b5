package dungeon

// 生成参数
const (
	GridSize      = 5
	RoomsToCreate = 14
	// GunChance 武器房出现概率
	GunChance = 0.25
)

// Options 生成器可调参数；零值使用默认
type Options struct {
	GridSize      int
	RoomsToCreate int
}

func (o Options) withDefaults() Options {
	if o.GridSize <= 0 {
		o.GridSize = GridSize
	}
	if o.RoomsToCreate <= 0 {
		o.RoomsToCreate = RoomsToCreate
	}
	return o
}

// growthDirections 洗牌前的方向顺序，属于生成协议的一部分
var growthDirections = [4]Direction{North, South, East, West}

// Generate 纯函数：同一 (seed, isBossFloor) 在任何客户端得到逐字节相同的布局
func Generate(seed Seed, isBossFloor bool) *Layout {
	return GenerateWith(seed, isBossFloor, Options{})
}

// GenerateWith 同 Generate，可指定网格尺寸与目标房间数
//
// 随机流的消耗顺序固定：先连通生长，再分配特殊房间。
// 改动任何一次抽取的先后都会让各端地图不一致。
func GenerateWith(seed Seed, isBossFloor bool, opts Options) *Layout {
	opts = opts.withDefaults()
	rng := NewLCG(seed)
	l := newLayout(opts.GridSize)
	l.Seed = seed
	l.BossFloor = isBossFloor
	l.Start = ChamberKey{X: opts.GridSize / 2, Y: opts.GridSize / 2}
	l.Grid[l.Start.Y][l.Start.X] = &Chamber{X: l.Start.X, Y: l.Start.Y, Type: StartChamber}

	grow(l, rng, opts.RoomsToCreate)
	assignRoles(l, rng, isBossFloor)
	return l
}

// grow 前沿随机游走：每次只往空位长一个新房间，所以结果必然是一棵树
func grow(l *Layout, rng *LCG, target int) {
	created := 1
	frontier := []ChamberKey{l.Start}
	for created < target && len(frontier) > 0 {
		idx := rng.Intn(len(frontier))
		current := frontier[idx]

		dirs := growthDirections
		for i := len(dirs) - 1; i > 0; i-- {
			j := rng.Intn(i + 1)
			dirs[i], dirs[j] = dirs[j], dirs[i]
		}

		added := false
		for _, dir := range dirs {
			next := current.Step(dir)
			if !l.InBounds(next) || l.At(next) != nil {
				continue
			}
			room := &Chamber{X: next.X, Y: next.Y, Type: NormalChamber}
			l.Grid[next.Y][next.X] = room
			l.At(current).Doors.set(dir)
			room.Doors.set(dir.Opposite())
			frontier = append(frontier, next)
			created++
			added = true
			break
		}

		if !added {
			// 四周已满：移出前沿
			frontier = append(frontier[:idx], frontier[idx+1:]...)
		}
	}
}

// assignRoles 顺序：boss/key → miniboss → gun → shop → treasure
// 每次抽中即从候选池移除；池空时静默跳过
func assignRoles(l *Layout, rng *LCG, isBossFloor bool) {
	pool := make([]*Chamber, 0, l.Size*l.Size)
	for _, c := range l.Chambers() {
		if c.Type == NormalChamber {
			pool = append(pool, c)
		}
	}

	take := func(i int) *Chamber {
		c := pool[i]
		pool = append(pool[:i], pool[i+1:]...)
		return c
	}
	draw := func() *Chamber {
		return take(rng.Intn(len(pool)))
	}

	if len(pool) > 0 {
		// Boss 取离起点曼哈顿距离最远者，不消耗随机数
		far, maxDist := 0, 0
		for i, c := range pool {
			if d := manhattan(c.Key(), l.Start); d > maxDist {
				far, maxDist = i, d
			}
		}
		take(far).Type = BossChamber
	}

	if !isBossFloor && len(pool) > 0 {
		draw().Type = KeyChamber
	}

	if len(pool) > 0 {
		mb := draw()
		mb.Type = MiniBossChamber
		mb.MiniBoss = miniBossTypes[rng.Intn(len(miniBossTypes))]
	}

	if len(pool) > 0 && rng.Next() < GunChance {
		draw().Type = GunChamber
	}

	if len(pool) > 0 {
		draw().Type = ShopChamber
	}

	if len(pool) > 0 {
		draw().Type = TreasureChamber
	}
}

func manhattan(a, b ChamberKey) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package dungeon

// EntryState 单个客户端视角下的房间状态
type EntryState int

const (
	Unseen EntryState = iota
	VisitedUncleared
	VisitedCleared
)

func (s EntryState) String() string {
	switch s {
	case VisitedUncleared:
		return "visited-uncleared"
	case VisitedCleared:
		return "visited-cleared"
	default:
		return "unseen"
	}
}

// Content 进入房间时需要放置的内容
type Content int

const (
	ContentNone Content = iota
	ContentSpawnMonsters
	ContentSpawnBoss
	ContentPedestal
	ContentLockedDoor
	ContentNextFloor
	ContentKey
	ContentShop
	ContentGunBox
	ContentTreasure
)

// EntryContext 进入时影响规则的客户端状态
type EntryContext struct {
	HasKey    bool
	Authority bool
}

// Entry 一次进入房间的结果
type Entry struct {
	Key          ChamberKey
	Chamber      *Chamber
	FirstEntry   bool
	DoorsBlocked bool
	Contents     []Content
}

// Has 结果中是否包含某种内容
func (e Entry) Has(c Content) bool {
	for _, x := range e.Contents {
		if x == c {
			return true
		}
	}
	return false
}

// Topology 某个客户端持有的拓扑：共享布局 + 本端自己的已访问集合
//
// 共享的 Visited 可能已被其他玩家置位，而本端仍是第一次进入，
// 因此首次进入规则按 visitedByMe 判断。
type Topology struct {
	Layout      *Layout
	visitedByMe map[ChamberKey]bool
}

// NewTopology 包装一层布局
func NewTopology(l *Layout) *Topology {
	return &Topology{Layout: l, visitedByMe: make(map[ChamberKey]bool)}
}

// VisitedByMe 本端是否进入过
func (t *Topology) VisitedByMe(k ChamberKey) bool {
	return t.visitedByMe[k]
}

// State 本端视角下的状态
func (t *Topology) State(k ChamberKey) EntryState {
	c := t.Layout.At(k)
	if c == nil || !t.visitedByMe[k] {
		return Unseen
	}
	if c.Cleared {
		return VisitedCleared
	}
	return VisitedUncleared
}

// DoorsBlocked 门阻挡规则：本端进入过、未清理、且为普通或小 Boss 房
func (t *Topology) DoorsBlocked(k ChamberKey) bool {
	c := t.Layout.At(k)
	if c == nil {
		return false
	}
	return t.visitedByMe[k] && !c.Cleared &&
		(c.Type == NormalChamber || c.Type == MiniBossChamber)
}

// Enter 进入房间：计算门是否阻挡，并给出首次/再次进入要放置的内容
func (t *Topology) Enter(k ChamberKey, ctx EntryContext) Entry {
	c := t.Layout.At(k)
	if c == nil {
		return Entry{Key: k}
	}
	e := Entry{Key: k, Chamber: c, DoorsBlocked: t.DoorsBlocked(k)}

	if !t.visitedByMe[k] {
		e.FirstEntry = true
		t.visitedByMe[k] = true
		c.Visited = true
		e.Contents = firstEntryContents(c, t.Layout.BossFloor, ctx)
		return e
	}
	e.Contents = reentryContents(c, t.Layout.BossFloor, ctx)
	return e
}

func firstEntryContents(c *Chamber, bossFloor bool, ctx EntryContext) []Content {
	switch c.Type {
	case NormalChamber:
		return []Content{ContentSpawnMonsters}
	case MiniBossChamber:
		// 其他玩家已击败小头目时不再放置祭坛
		if c.Cleared {
			return nil
		}
		return []Content{ContentPedestal}
	case BossChamber:
		return bossContents(c, bossFloor, ctx)
	case KeyChamber:
		c.Cleared = true
		return []Content{ContentKey}
	case ShopChamber:
		c.Cleared = true
		return []Content{ContentShop}
	case GunChamber:
		c.Cleared = true
		return []Content{ContentGunBox}
	case TreasureChamber:
		c.Cleared = true
		return []Content{ContentTreasure}
	case StartChamber:
		c.Cleared = true
	}
	return nil
}

func reentryContents(c *Chamber, bossFloor bool, ctx EntryContext) []Content {
	switch c.Type {
	case MiniBossChamber:
		if !c.Cleared {
			return []Content{ContentPedestal}
		}
	case BossChamber:
		return bossContents(c, bossFloor, ctx)
	case ShopChamber:
		return []Content{ContentShop}
	}
	return nil
}

func bossContents(c *Chamber, bossFloor bool, ctx EntryContext) []Content {
	if bossFloor {
		if c.Cleared {
			return []Content{ContentNextFloor}
		}
		// 只有权威端生成 Boss，其余端等复制
		if ctx.Authority {
			return []Content{ContentSpawnBoss}
		}
		return nil
	}
	if c.BossUnlocked {
		return []Content{ContentNextFloor}
	}
	if ctx.HasKey {
		c.BossUnlocked = true
		c.Cleared = true
		return []Content{ContentNextFloor}
	}
	return []Content{ContentLockedDoor}
}

// MarkVisited 共享标志只会 false→true，可重复应用
func (t *Topology) MarkVisited(k ChamberKey) bool {
	c := t.Layout.At(k)
	if c == nil || c.Visited {
		return false
	}
	c.Visited = true
	return true
}

// MarkCleared 置位 cleared；返回是否发生了变化
func (t *Topology) MarkCleared(k ChamberKey) bool {
	c := t.Layout.At(k)
	if c == nil || c.Cleared {
		return false
	}
	c.Cleared = true
	return true
}

// UnlockBoss 钥匙开门
func (t *Topology) UnlockBoss(k ChamberKey) bool {
	c := t.Layout.At(k)
	if c == nil || c.Type != BossChamber || c.BossUnlocked {
		return false
	}
	c.BossUnlocked = true
	c.Cleared = true
	return true
}

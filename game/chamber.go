package game

import (
	"context"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dungeonsync/dungeon"
	"dungeonsync/protocol"
	"dungeonsync/sim"
)

const (
	indicatorRadius = 25.0
	// spawnClearance 生成点离房间中心的最小距离
	spawnClearance = 120.0
	maxIndicators  = 8
)

// announceFloor 权威端广播新楼层
func (s *Session) announceFloor(seed dungeon.Seed, floor int) {
	v := int32(seed)
	s.publish(protocol.GameStarted, protocol.GameStartedPayload{
		Difficulty: s.diff.Name,
		Seed:       &v,
		Floor:      floor,
		HostID:     s.role.HostID,
	})
}

// startFloor 用种子生成本层并进入起始房间；所有客户端得到相同的布局
func (s *Session) startFloor(ctx context.Context, seed dungeon.Seed, floor int) {
	ctx, span := s.tracer.Start(ctx, "game.generate_floor", trace.WithAttributes(
		attribute.Int("floor", floor),
		attribute.Int64("seed", int64(seed)),
	))
	defer span.End()

	layout := dungeon.Generate(seed, IsBossFloor(floor))
	s.topo = dungeon.NewTopology(layout)
	s.seed, s.floor, s.started = seed, floor, true
	s.auth.Reset()
	s.cache.Reset()
	clear(s.spawned)
	if floor <= 1 {
		s.resetPlayer()
	}
	s.self.HasKey = false
	for _, r := range s.remotes {
		r.GridX, r.GridY = layout.Start.X, layout.Start.Y
	}
	s.self.X, s.self.Y = sim.RoomWidth/2, sim.RoomHeight/2
	s.log.Infow("floor generated", "floor", floor, "seed", seed, "rooms", layout.Count(), "bossFloor", layout.BossFloor)
	s.enter(ctx, layout.Start)
}

// advanceFloor 权威端踏入下一层入口
func (s *Session) advanceFloor(ctx context.Context) {
	seed := dungeon.Seed(s.rng.Int31())
	next := s.floor + 1
	s.announceFloor(seed, next)
	s.startFloor(ctx, seed, next)
}

// tryExit 穿门；门被阻挡或没有门时不动
func (s *Session) tryExit(ctx context.Context, dir dungeon.Direction) bool {
	if s.doorsBlocked {
		return false
	}
	next := s.topo.Layout.Neighbor(s.current, dir)
	if next == nil {
		return false
	}
	if s.role.IsAuthority() {
		if s.spawnAt > 0 {
			s.materializePending()
		}
		s.auth.StoreChamberState(s.current, s.live)
	}
	s.self.X, s.self.Y = arrival(dir)
	s.enter(ctx, next.Key())
	return true
}

// enter 进入房间：恢复或预填实时列表，再按拓扑规则放置内容
func (s *Session) enter(ctx context.Context, key dungeon.ChamberKey) {
	_, span := s.tracer.Start(ctx, "game.enter_chamber", trace.WithAttributes(
		attribute.Int("grid.x", key.X),
		attribute.Int("grid.y", key.Y),
	))
	defer span.End()

	s.current = key
	s.live = sim.NewChamberState()
	s.indicators = nil
	s.spawnAt, s.syncAt = 0, 0

	authority := s.role.IsAuthority()
	stored := false
	if authority {
		if st, ok := s.auth.LoadChamberState(key); ok {
			s.live, stored = st, true
		}
	} else {
		s.cache.Seed(key, s.live)
	}

	chamber := s.topo.Layout.At(key)
	wasUnlocked := chamber != nil && chamber.BossUnlocked
	entry := s.topo.Enter(key, dungeon.EntryContext{HasKey: s.self.HasKey, Authority: authority})
	s.doorsBlocked = entry.DoorsBlocked
	s.publish(protocol.RoomChanged, protocol.RoomChangedPayload{PlayerID: s.self.ID, Cell: protocol.At(key)})
	if chamber != nil && !wasUnlocked && chamber.BossUnlocked {
		s.publish(protocol.RoomCleared, protocol.RoomClearedPayload{Cell: protocol.At(key)})
	}

	for _, c := range entry.Contents {
		s.place(key, chamber, c, stored)
	}
	span.SetAttributes(attribute.Bool("first_entry", entry.FirstEntry), attribute.Bool("doors_blocked", entry.DoorsBlocked))

	if !authority {
		s.syncAt = s.now() + s.cfg.SyncRequestDelay.Milliseconds()
	}
}

// place 放置一项进入内容。权威端从存档恢复时，存档里的物件就是事实，不再补放
func (s *Session) place(key dungeon.ChamberKey, c *dungeon.Chamber, content dungeon.Content, stored bool) {
	switch content {
	case dungeon.ContentSpawnMonsters:
		if c.Cleared || s.live.AliveMonsters() > 0 {
			return
		}
		s.indicators = s.rollIndicators()
		if s.role.IsAuthority() {
			s.spawnAt = s.now() + s.cfg.SpawnDelay.Milliseconds()
			s.publish(protocol.SpawnIndicators, protocol.SpawnIndicatorsPayload{
				Cell:       protocol.At(key),
				Indicators: protocol.RecordIndicators(s.indicators),
			})
		}
	case dungeon.ContentSpawnBoss:
		if s.live.AliveMonsters() > 0 {
			return
		}
		s.live.Monsters = append(s.live.Monsters, s.newBoss())
		s.spawned[key] = true
	case dungeon.ContentNextFloor:
		s.live.Items = removeKind(s.live.Items, sim.ItemLocked)
		addUnique(s.live, contentItems(c, content)...)
	case dungeon.ContentLockedDoor:
		addUnique(s.live, contentItems(c, content)...)
	case dungeon.ContentPedestal:
		if s.live.AliveMonsters() > 0 {
			return
		}
		if !stored {
			addUnique(s.live, contentItems(c, content)...)
		}
	default:
		if !stored {
			addUnique(s.live, contentItems(c, content)...)
		}
	}
}

// contentItems 一项进入内容对应的物件，位置固定，所有客户端一致
func contentItems(c *dungeon.Chamber, content dungeon.Content) []sim.Item {
	cx, cy := sim.RoomWidth/2, sim.RoomHeight/2
	switch content {
	case dungeon.ContentKey:
		return []sim.Item{{X: cx, Y: cy, Kind: sim.ItemKey, Size: 20}}
	case dungeon.ContentShop:
		return []sim.Item{{X: cx, Y: cy - 60, Kind: sim.ItemShop, Size: 40}}
	case dungeon.ContentGunBox:
		return []sim.Item{{X: cx, Y: cy, Kind: sim.ItemGunBox, Size: 30}}
	case dungeon.ContentTreasure:
		return []sim.Item{
			{X: cx, Y: cy, Kind: sim.ItemPowerup, Size: 20, Amount: 25, Data: "health"},
			{X: cx - 60, Y: cy + 40, Kind: sim.ItemCoin, Size: 12, Amount: 5},
			{X: cx + 60, Y: cy + 40, Kind: sim.ItemCoin, Size: 12, Amount: 5},
		}
	case dungeon.ContentPedestal:
		return []sim.Item{{X: cx, Y: cy, Kind: sim.ItemPedestal, Size: 30, MiniBoss: c.MiniBoss.String()}}
	case dungeon.ContentLockedDoor:
		return []sim.Item{{X: cx, Y: 80, Kind: sim.ItemLocked, Size: 60}}
	case dungeon.ContentNextFloor:
		return []sim.Item{{X: cx, Y: cy, Kind: sim.ItemNextFloor, Size: 50}}
	}
	return nil
}

// seedContents 权威端替尚未进入过的房间建档时放置的物件内容
func seedContents(c *dungeon.Chamber) []dungeon.Content {
	switch c.Type {
	case dungeon.KeyChamber:
		return []dungeon.Content{dungeon.ContentKey}
	case dungeon.ShopChamber:
		return []dungeon.Content{dungeon.ContentShop}
	case dungeon.GunChamber:
		return []dungeon.Content{dungeon.ContentGunBox}
	case dungeon.TreasureChamber:
		return []dungeon.Content{dungeon.ContentTreasure}
	case dungeon.MiniBossChamber:
		if !c.Cleared {
			return []dungeon.Content{dungeon.ContentPedestal}
		}
	}
	return nil
}

func addUnique(st *sim.ChamberState, items ...sim.Item) {
	for _, it := range items {
		dup := false
		for _, have := range st.Items {
			if have.Kind == it.Kind && have.X == it.X && have.Y == it.Y {
				dup = true
				break
			}
		}
		if !dup {
			st.Items = append(st.Items, it)
		}
	}
}

func removeKind(items []sim.Item, kind sim.ItemKind) []sim.Item {
	out := items[:0]
	for _, it := range items {
		if it.Kind != kind {
			out = append(out, it)
		}
	}
	return out
}

// removeItemNear 删除离 (x,y) 最近的同类物件
func removeItemNear(st *sim.ChamberState, kind sim.ItemKind, x, y float64) bool {
	const tolerance = 10.0
	best, bestDist := -1, math.Inf(1)
	for i, it := range st.Items {
		if it.Kind != kind {
			continue
		}
		if d := math.Hypot(it.X-x, it.Y-y); d <= tolerance && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return false
	}
	st.RemoveItem(best)
	return true
}

// monsterPool 按楼层可出现的普通怪物
func (s *Session) monsterPool() []sim.MonsterKind {
	pool := []sim.MonsterKind{sim.Wanderer, sim.Shooter, sim.Dasher}
	if s.floor >= 3 {
		pool = append(pool, sim.Necromancer)
	}
	return pool
}

// rollIndicators 为普通房间抽取生成提示
func (s *Session) rollIndicators() []sim.SpawnIndicator {
	n := 3 + s.rng.Intn(2) + s.floor/2 + s.diff.EnemyCountBonus
	if n > maxIndicators {
		n = maxIndicators
	}
	pool := s.monsterPool()
	now := s.now()
	out := make([]sim.SpawnIndicator, 0, n)
	for len(out) < n {
		x := 100 + s.rng.Float64()*(sim.RoomWidth-200)
		y := 100 + s.rng.Float64()*(sim.RoomHeight-200)
		if math.Hypot(x-sim.RoomWidth/2, y-sim.RoomHeight/2) < spawnClearance {
			continue
		}
		out = append(out, sim.SpawnIndicator{
			X: x, Y: y,
			Kind:      pool[s.rng.Intn(len(pool))],
			Radius:    indicatorRadius,
			SpawnTime: now,
		})
	}
	return out
}

// materializePending 权威端把当前房间的提示转为真实怪物
func (s *Session) materializePending() {
	for _, rec := range protocol.RecordIndicators(s.indicators) {
		s.live.Monsters = append(s.live.Monsters, s.spawnMonster(rec))
	}
	if len(s.indicators) > 0 {
		s.spawned[s.current] = true
	}
	s.indicators = nil
	s.spawnAt = 0
}

func (s *Session) enemyHealth() float64 {
	return (30 + float64(s.floor)*5) * s.diff.EnemyHealthMult
}

// spawnMonster 由提示实例化怪物，血量随楼层与难度变化；isBoss 为小 Boss
func (s *Session) spawnMonster(ind protocol.IndicatorRecord) *sim.Monster {
	health := s.enemyHealth()
	if ind.IsBoss {
		health *= 4
	}
	m := sim.NewMonster(ind.Kind, ind.X, ind.Y, health)
	if ind.IsBoss {
		m.Size = 30
	}
	m.WanderAngle = s.rng.Float64() * 2 * math.Pi
	return m
}

func (s *Session) newBoss() *sim.Monster {
	return sim.NewMonster(sim.BossMonster, sim.RoomWidth/2, sim.RoomHeight/3, s.enemyHealth()*10)
}

// miniBossKind 小 Boss 种类对应的行为
func miniBossKind(t dungeon.MiniBossType) sim.MonsterKind {
	switch t {
	case dungeon.Gunner:
		return sim.Shooter
	case dungeon.Phantom:
		return sim.Wanderer
	case dungeon.Warlock:
		return sim.Necromancer
	default:
		return sim.Dasher
	}
}

// summonMiniBoss 触碰祭坛：权威端直接生成，跟随端以带 isBoss 的提示请求权威端生成
func (s *Session) summonMiniBoss(c *dungeon.Chamber) {
	ind := sim.SpawnIndicator{
		X: sim.RoomWidth / 2, Y: sim.RoomHeight / 3,
		Kind:      miniBossKind(c.MiniBoss),
		IsBoss:    true,
		Radius:    indicatorRadius * 1.5,
		SpawnTime: s.now(),
	}
	s.doorsBlocked = true
	if s.role.IsAuthority() {
		s.live.Monsters = append(s.live.Monsters, s.spawnMonster(protocol.RecordIndicators([]sim.SpawnIndicator{ind})[0]))
		s.spawned[s.current] = true
		return
	}
	s.indicators = append(s.indicators, ind)
	s.requestSync(s.current)
}

// checkCleared 权威端判定遭遇结束：生成过怪物、全部死亡且没有待生成的提示
func (s *Session) checkCleared(key dungeon.ChamberKey, st *sim.ChamberState) {
	c := s.topo.Layout.At(key)
	if c == nil || c.Cleared || !s.spawned[key] || st.AliveMonsters() > 0 {
		return
	}
	if key == s.current && s.spawnAt > 0 {
		return
	}
	s.topo.MarkCleared(key)
	delete(s.spawned, key)
	s.publish(protocol.RoomCleared, protocol.RoomClearedPayload{Cell: protocol.At(key)})
	s.log.Infow("chamber cleared", "chamber", key, "type", c.Type)

	switch c.Type {
	case dungeon.MiniBossChamber:
		st.Items = append(st.Items, sim.Item{
			X: sim.RoomWidth / 2, Y: sim.RoomHeight / 2,
			Kind: sim.ItemWeapon, Size: 20, Data: gunBoxWeapons[s.rng.Intn(len(gunBoxWeapons))],
		})
	case dungeon.BossChamber:
		addUnique(st, contentItems(c, dungeon.ContentNextFloor)...)
	}
	if key == s.current {
		s.doorsBlocked = false
	} else {
		s.auth.Forget(key)
	}
}

// pickups 本地玩家与物件的接触
func (s *Session) pickups(ctx context.Context) {
	p := &s.self
	c := s.topo.Layout.At(s.current)
	for i := 0; i < len(s.live.Items); i++ {
		it := s.live.Items[i]
		if !sim.Overlaps(p.X, p.Y, s.cfg.PlayerRadius, it.X, it.Y, it.Size/2) {
			continue
		}
		take := true
		switch it.Kind {
		case sim.ItemKey:
			p.HasKey = true
		case sim.ItemCoin:
			p.Coins += it.Amount
		case sim.ItemPowerup:
			p.Health = math.Min(p.MaxHealth, p.Health+float64(it.Amount))
		case sim.ItemWeapon:
			p.Weapon = it.Data
		case sim.ItemGunBox:
			p.Weapon = gunBoxWeapons[s.rng.Intn(len(gunBoxWeapons))]
		case sim.ItemPedestal:
			if c != nil {
				s.summonMiniBoss(c)
			}
		case sim.ItemLocked:
			take = false
			if p.HasKey && s.topo.UnlockBoss(s.current) {
				s.live.Items = removeKind(s.live.Items, sim.ItemLocked)
				addUnique(s.live, contentItems(c, dungeon.ContentNextFloor)...)
				s.publish(protocol.RoomCleared, protocol.RoomClearedPayload{Cell: protocol.At(s.current)})
				return
			}
		case sim.ItemNextFloor:
			if s.role.IsAuthority() {
				s.advanceFloor(ctx)
				return
			}
			take = false
		default:
			take = false
		}
		if !take {
			continue
		}
		s.live.RemoveItem(i)
		i--
		s.publish(protocol.ItemTaken, protocol.ItemTakenPayload{
			PlayerID: p.ID, X: it.X, Y: it.Y, Kind: it.Kind, Cell: protocol.At(s.current),
		})
		s.log.Debugw("item taken", "kind", it.Kind, "chamber", s.current)
	}
}

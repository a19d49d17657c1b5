package game

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dungeonsync/dungeon"
	"dungeonsync/protocol"
	"dungeonsync/replication"
	"dungeonsync/sim"
)

func decode[T any](s *Session, env protocol.Envelope) (T, bool) {
	var p T
	if err := env.Decode(&p); err != nil {
		s.log.Debugw("bad payload", "event", env.Event, "from", env.From, "error", err)
		return p, false
	}
	return p, true
}

// handle 在 tick 协程上处理一条入站事件
func (s *Session) handle(ctx context.Context, env protocol.Envelope) {
	if env.From == s.self.ID {
		return
	}
	switch env.Event {
	case protocol.GameStarted:
		s.onGameStarted(ctx, env)
	case protocol.PlayerJoined:
		s.onPlayerJoined(env)
	case protocol.PlayerLeft:
		s.onPlayerLeft(env)
	case protocol.ChatMessage:
		if p, ok := decode[protocol.ChatMessagePayload](s, env); ok {
			s.appendChat(ChatLine{PlayerID: p.PlayerID, Name: p.Name, Text: p.Text, At: s.now()})
		}
	default:
		// 以下事件都依赖本层拓扑
		if !s.started {
			return
		}
		s.handleInGame(ctx, env)
	}
}

func (s *Session) handleInGame(ctx context.Context, env protocol.Envelope) {
	switch env.Event {
	case protocol.RoomChanged:
		s.onRoomChanged(env)
	case protocol.RoomCleared:
		s.onRoomCleared(env)
	case protocol.PlayerUpdate:
		s.onPlayerUpdate(env)
	case protocol.PlayerShot:
		s.onPlayerShot(env)
	case protocol.EnemiesSync:
		s.onEnemiesSync(env)
	case protocol.EnemyBulletsSync:
		s.onEnemyBulletsSync(env)
	case protocol.ItemsSync:
		s.onItemsSync(env)
	case protocol.SpawnIndicators:
		s.onSpawnIndicators(env)
	case protocol.RequestEnemySync:
		s.onRequestEnemySync(ctx, env)
	case protocol.ItemTaken:
		s.onItemTaken(env)
	default:
		s.log.Debugw("unhandled event", "event", env.Event, "from", env.From)
	}
}

// onGameStarted 跟随端按房主的种子生成楼层；同一种子与楼层的重复广播被忽略
func (s *Session) onGameStarted(ctx context.Context, env protocol.Envelope) {
	if s.role.IsAuthority() {
		return
	}
	p, ok := decode[protocol.GameStartedPayload](s, env)
	if !ok || p.Seed == nil {
		return
	}
	if env.From != "" && env.From != s.role.HostID {
		s.log.Warnw("game_started from non-host ignored", "from", env.From)
		return
	}
	seed, floor := dungeon.Seed(*p.Seed), max(p.Floor, 1)
	if s.started && seed == s.seed && floor == s.floor {
		return
	}
	if p.Difficulty != "" {
		s.diff = LookupDifficulty(p.Difficulty)
	}
	s.startFloor(ctx, seed, floor)
}

func (s *Session) remote(id string) *sim.RemotePlayer {
	r, ok := s.remotes[id]
	if !ok {
		r = &sim.RemotePlayer{ID: id, Health: 100, MaxHealth: 100}
		if s.topo != nil {
			r.GridX, r.GridY = s.topo.Layout.Start.X, s.topo.Layout.Start.Y
		}
		s.remotes[id] = r
	}
	return r
}

func (s *Session) onPlayerJoined(env protocol.Envelope) {
	p, ok := decode[protocol.PlayerJoinedPayload](s, env)
	if !ok || p.PlayerID == "" {
		return
	}
	r := s.remote(p.PlayerID)
	r.Name = p.Name
	s.appendChat(ChatLine{Name: "system", Text: p.Name + " joined", At: s.now()})
	// 中途加入的玩家需要当前楼层的种子
	if s.role.IsAuthority() && s.started {
		s.announceFloor(s.seed, s.floor)
	}
}

func (s *Session) onPlayerLeft(env protocol.Envelope) {
	p, ok := decode[protocol.PlayerLeftPayload](s, env)
	if !ok {
		return
	}
	name := p.PlayerID
	if r, ok := s.remotes[p.PlayerID]; ok && r.Name != "" {
		name = r.Name
	}
	delete(s.remotes, p.PlayerID)
	s.appendChat(ChatLine{Name: "system", Text: name + " left", At: s.now()})
	if p.PlayerID == s.role.HostID {
		s.hostGone = true
		s.log.Warnw("host left the session", "host", p.PlayerID)
	}
}

// onRoomChanged 更新其他玩家所在房间；同房间的跟随端顺便请求一次快照
func (s *Session) onRoomChanged(env protocol.Envelope) {
	p, ok := decode[protocol.RoomChangedPayload](s, env)
	if !ok {
		return
	}
	key, ok := p.Key()
	if !ok || p.PlayerID == "" {
		return
	}
	r := s.remote(p.PlayerID)
	r.GridX, r.GridY = key.X, key.Y
	s.topo.MarkVisited(key)
	if !s.role.IsAuthority() && key == s.current && s.syncAt == 0 {
		s.requestSync(key)
	}
}

// onRoomCleared 清理标志只会置位；当前房间立即解除门阻挡并清空怪物
func (s *Session) onRoomCleared(env protocol.Envelope) {
	p, ok := decode[protocol.RoomClearedPayload](s, env)
	if !ok {
		return
	}
	key, ok := p.Key()
	if !ok {
		return
	}
	c := s.topo.Layout.At(key)
	if c == nil {
		return
	}
	s.topo.MarkCleared(key)
	if c.Type == dungeon.BossChamber && !s.topo.Layout.BossFloor {
		s.topo.UnlockBoss(key)
	}
	if key == s.current {
		s.doorsBlocked = false
		s.live.Monsters = nil
		s.indicators = nil
		s.spawnAt = 0
		if c.BossUnlocked {
			s.live.Items = removeKind(s.live.Items, sim.ItemLocked)
			addUnique(s.live, contentItems(c, dungeon.ContentNextFloor)...)
		}
	}
	if s.role.IsAuthority() {
		delete(s.spawned, key)
		if key != s.current {
			s.auth.Forget(key)
		}
		return
	}
	s.cache.Forget(key)
}

func (s *Session) onPlayerUpdate(env protocol.Envelope) {
	p, ok := decode[protocol.PlayerUpdatePayload](s, env)
	if !ok || p.PlayerID == "" || p.PlayerID == s.self.ID {
		return
	}
	_, known := s.remotes[p.PlayerID]
	r := s.remote(p.PlayerID)
	if p.Name != "" {
		r.Name = p.Name
	}
	if p.X != nil && p.Y != nil {
		if !known {
			r.X, r.Y = *p.X, *p.Y
		}
		r.TargetX, r.TargetY, r.HasTarget = *p.X, *p.Y, true
	}
	if p.Health != nil {
		r.Health = *p.Health
	}
	if p.MaxHealth != nil {
		r.MaxHealth = *p.MaxHealth
	}
	if p.Weapon != "" {
		r.Weapon = p.Weapon
	}
	if key, ok := p.Key(); ok {
		if key.X != r.GridX || key.Y != r.GridY {
			// 换了房间，直接跳到新位置
			r.X, r.Y = r.TargetX, r.TargetY
		}
		r.GridX, r.GridY = key.X, key.Y
	}
	r.Angle = p.Angle
	r.LastSeen = s.now()
}

// onPlayerShot 同房间的子弹用于显示；权威端还要把它们计入命中结算
func (s *Session) onPlayerShot(env protocol.Envelope) {
	p, ok := decode[protocol.PlayerShotPayload](s, env)
	if !ok || p.Bullet == nil {
		return
	}
	key, ok := p.Key()
	if !ok {
		return
	}
	b := p.Bullet.Projectile()
	b.FromPlayer = true
	if key == s.current {
		s.live.Projectiles = append(s.live.Projectiles, b)
		return
	}
	if s.role.IsAuthority() {
		if st, ok := s.auth.Stored(key); ok {
			st.Projectiles = append(st.Projectiles, b)
		}
	}
}

// onEnemiesSync 当前房间的快照就近合并进实时列表，其余房间只进缓存
func (s *Session) onEnemiesSync(env protocol.Envelope) {
	if s.role.IsAuthority() {
		return
	}
	p, ok := decode[protocol.EnemiesSyncPayload](s, env)
	if !ok {
		return
	}
	key, ok := p.Key()
	if !ok {
		return
	}
	if key != s.current {
		s.cache.PutMonsters(key, p.Enemies, s.now())
		return
	}
	s.live.Monsters = replication.Reconcile(s.live.Monsters, p.Enemies)
	if len(p.Enemies) > 0 {
		s.indicators = nil
	}
}

func (s *Session) onEnemyBulletsSync(env protocol.Envelope) {
	if s.role.IsAuthority() {
		return
	}
	p, ok := decode[protocol.EnemyBulletsSyncPayload](s, env)
	if !ok {
		return
	}
	key, ok := p.Key()
	if !ok {
		return
	}
	if key != s.current {
		s.cache.PutProjectiles(key, p.Bullets, s.now())
		return
	}
	s.live.Projectiles = append(sim.PlayerProjectiles(s.live.Projectiles), replication.ReplaceProjectiles(p.Bullets)...)
}

func (s *Session) onItemsSync(env protocol.Envelope) {
	if s.role.IsAuthority() {
		return
	}
	p, ok := decode[protocol.ItemsSyncPayload](s, env)
	if !ok {
		return
	}
	key, ok := p.Key()
	if !ok {
		return
	}
	if key != s.current {
		s.cache.PutItems(key, p.Items, s.now())
		return
	}
	s.live.Items = replication.ReplaceItems(p.Items)
}

func (s *Session) onSpawnIndicators(env protocol.Envelope) {
	if s.role.IsAuthority() {
		return
	}
	p, ok := decode[protocol.SpawnIndicatorsPayload](s, env)
	if !ok {
		return
	}
	if key, ok := p.Key(); !ok || key != s.current || s.live.AliveMonsters() > 0 {
		return
	}
	now := s.now()
	s.indicators = s.indicators[:0]
	for _, r := range p.Indicators {
		s.indicators = append(s.indicators, r.Indicator(now))
	}
}

// onRequestEnemySync 权威端立即回复；未建档的房间先按房间类型放好物件
func (s *Session) onRequestEnemySync(ctx context.Context, env protocol.Envelope) {
	if !s.role.IsAuthority() {
		return
	}
	p, ok := decode[protocol.RequestEnemySyncPayload](s, env)
	if !ok {
		return
	}
	key, ok := p.Key()
	if !ok {
		return
	}
	c := s.topo.Layout.At(key)
	if c == nil {
		return
	}
	_, span := s.tracer.Start(ctx, "game.sync_request", trace.WithAttributes(
		attribute.String("player", p.PlayerID),
		attribute.Int("grid.x", key.X),
		attribute.Int("grid.y", key.Y),
		attribute.Int("indicators", len(p.Indicators)),
	))
	defer span.End()

	var target *sim.ChamberState
	if key == s.current {
		if s.spawnAt > 0 {
			s.materializePending()
		}
		target = s.live
	} else {
		if !s.auth.Has(key) {
			st := sim.NewChamberState()
			for _, content := range seedContents(c) {
				addUnique(st, contentItems(c, content)...)
			}
			s.auth.StoreChamberState(key, st)
		}
		target, _ = s.auth.Stored(key)
	}
	for _, ind := range p.Indicators {
		if ind.IsBoss {
			target.Items = removeKind(target.Items, sim.ItemPedestal)
		}
	}

	before := target.AliveMonsters()
	s.auth.OnSyncRequest(replication.SyncRequest{
		RequestEnemySyncPayload: p,
		Current:                 s.current,
		Live:                    s.live,
		Cleared:                 c.Cleared,
	}, s.now())
	if target.AliveMonsters() > before {
		s.spawned[key] = true
		span.SetAttributes(attribute.Int("materialized", target.AliveMonsters()-before))
	}
}

// onItemTaken 其他玩家拿走了物件
func (s *Session) onItemTaken(env protocol.Envelope) {
	p, ok := decode[protocol.ItemTakenPayload](s, env)
	if !ok {
		return
	}
	key, ok := p.Key()
	if !ok {
		return
	}
	if key == s.current {
		removeItemNear(s.live, p.Kind, p.X, p.Y)
		return
	}
	if s.role.IsAuthority() {
		if st, ok := s.auth.Stored(key); ok {
			removeItemNear(st, p.Kind, p.X, p.Y)
		}
	}
}

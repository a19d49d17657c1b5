package game

import (
	"context"
	"math"
	"slices"

	"dungeonsync/dungeon"
	"dungeonsync/interp"
	"dungeonsync/protocol"
	"dungeonsync/replication"
	"dungeonsync/sim"
)

// Tick 推进一帧：处理入站 → 本地输入 → 实体 → 后台房间 → 发布
// dt 以 60Hz 帧计
func (s *Session) Tick(ctx context.Context, dt float64, in Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.drainInbound(ctx)
	if !s.started {
		return
	}
	now := s.now()

	s.applyIntent(ctx, in, dt, now)
	if s.role.IsAuthority() {
		s.simulateAuthority(dt, now)
	} else {
		s.simulateFollower(dt, now)
	}
	interp.Players(s.remotes, dt)
	s.expireIndicators(now)

	if s.role.IsAuthority() {
		s.tickBackground(dt, now)
		s.checkCleared(s.current, s.live)
	}
	s.publishState(now)
}

// drainInbound 非阻塞取空入站队列
func (s *Session) drainInbound(ctx context.Context) {
	for {
		select {
		case env := <-s.inbound:
			s.handle(ctx, env)
		default:
			return
		}
	}
}

func (s *Session) applyIntent(ctx context.Context, in Intent, dt float64, now int64) {
	p := &s.self
	if p.Health <= 0 {
		return
	}
	p.move(in, s.cfg.PlayerSpeed, s.cfg.PlayerRadius, dt)

	if in.Fire && now-p.lastShot >= s.cfg.FireCooldown.Milliseconds() {
		p.lastShot = now
		for _, b := range p.shots() {
			s.live.Projectiles = append(s.live.Projectiles, b)
			rec := protocol.RecordBullet(b)
			s.publish(protocol.PlayerShot, protocol.PlayerShotPayload{PlayerID: p.ID, Bullet: &rec, Cell: protocol.At(s.current)})
		}
	}

	s.pickups(ctx)

	dir, ok := in.Exit, in.WantExit
	if !ok {
		if c := s.topo.Layout.At(s.current); c != nil {
			dir, ok = doorAt(p.X, p.Y, s.cfg.PlayerRadius, c.Doors)
		}
	}
	if ok {
		s.tryExit(ctx, dir)
	}
}

// targets 当前房间里活着的玩家
func (s *Session) targets() []sim.Point {
	var out []sim.Point
	if s.self.Health > 0 {
		out = append(out, sim.Point{X: s.self.X, Y: s.self.Y})
	}
	for _, r := range s.remotes {
		if r.GridX == s.current.X && r.GridY == s.current.Y && r.Health > 0 {
			out = append(out, sim.Point{X: r.X, Y: r.Y})
		}
	}
	return out
}

func (s *Session) simulateAuthority(dt float64, now int64) {
	if s.spawnAt > 0 && now >= s.spawnAt {
		s.materializePending()
	}
	live := s.live
	c := &sim.StepContext{DT: dt, Now: now, Rng: s.rng, Targets: s.targets()}
	for _, m := range live.Monsters {
		sim.LiveStep(m, c)
	}
	live.Monsters = append(live.Monsters, c.Spawned...)
	live.Projectiles = append(live.Projectiles, c.Fired...)
	live.Projectiles = sim.AdvanceProjectiles(live.Projectiles, dt)
	if killed := sim.ResolvePlayerHits(live, true); killed > 0 {
		s.log.Debugw("monsters killed", "chamber", s.current, "count", killed)
	}
	live.PruneDead()
	s.takeDamage(sim.HitPlayer(live, s.self.X, s.self.Y, s.cfg.PlayerRadius))
}

func (s *Session) simulateFollower(dt float64, now int64) {
	live := s.live
	interp.Monsters(live.Monsters, dt)
	live.Projectiles = sim.AdvanceProjectiles(live.Projectiles, dt)
	sim.ResolvePlayerHits(live, false)
	s.takeDamage(sim.HitPlayer(live, s.self.X, s.self.Y, s.cfg.PlayerRadius))

	if s.syncAt > 0 && now >= s.syncAt {
		s.syncAt = 0
		s.requestSync(s.current)
	}
}

func (s *Session) takeDamage(dmg float64) {
	if dmg <= 0 || s.self.Health <= 0 {
		return
	}
	s.self.Health = math.Max(0, s.self.Health-dmg)
	if s.self.Health == 0 {
		s.log.Infow("player down", "chamber", s.current)
	}
}

// requestSync 跟随端请求某房间的即时快照，附带本地提示
func (s *Session) requestSync(key dungeon.ChamberKey) {
	s.publish(protocol.RequestEnemySync, protocol.RequestEnemySyncPayload{
		PlayerID:   s.self.ID,
		Cell:       protocol.At(key),
		Indicators: protocol.RecordIndicators(s.indicators),
	})
}

func (s *Session) expireIndicators(now int64) {
	if s.spawnAt > 0 {
		return
	}
	s.indicators = slices.DeleteFunc(s.indicators, func(ind sim.SpawnIndicator) bool {
		return ind.Expired(now)
	})
}

// tickBackground 权威端推进其余房间，并结算其中的玩家子弹
func (s *Session) tickBackground(dt float64, now int64) {
	if s.auth.TickBackgroundChambers(dt, now, s.current) == 0 {
		return
	}
	for _, key := range s.auth.Chambers() {
		if key == s.current {
			continue
		}
		st, _ := s.auth.Stored(key)
		sim.ResolvePlayerHits(st, true)
		st.PruneDead()
		s.checkCleared(key, st)
	}
}

func (s *Session) publishState(now int64) {
	if s.limiter.Allow(s.current, replication.PlayerUpdates, now) {
		p := s.self
		s.publish(protocol.PlayerUpdate, protocol.PlayerUpdatePayload{
			PlayerID:  p.ID,
			Name:      p.Name,
			X:         &p.X,
			Y:         &p.Y,
			Angle:     p.Angle,
			Health:    &p.Health,
			MaxHealth: &p.MaxHealth,
			Weapon:    p.Weapon,
			Cell:      protocol.At(s.current),
		})
	}
	if !s.role.IsAuthority() {
		return
	}
	s.auth.PublishChamberSnapshot(s.current, s.live, false, now)
	s.auth.PublishProjectiles(s.current, s.live.Projectiles, now)
	s.auth.PublishItems(s.current, s.live.Items, now)
	s.auth.PublishBackground(now, s.current)
}

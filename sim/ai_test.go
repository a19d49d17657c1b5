package sim

import (
	"math/rand"
	"testing"
)

func TestBackgroundWandererStaysInBox(t *testing.T) {
	m := NewMonster(Wanderer, 60, 60, 30)
	m.WanderAngle = 3.5 // 朝左上
	c := &StepContext{DT: 6, Rng: rand.New(rand.NewSource(1))}
	for range 500 {
		BackgroundStep(m, c)
		if m.X < WanderMargin || m.X > RoomWidth-WanderMargin || m.Y < WanderMargin || m.Y > RoomHeight-WanderMargin {
			t.Fatalf("wanderer left the box: %.1f,%.1f", m.X, m.Y)
		}
	}
}

func TestBackgroundWandererReaims(t *testing.T) {
	m := NewMonster(Wanderer, 400, 300, 30)
	c := &StepContext{DT: 1, Rng: rand.New(rand.NewSource(2))}
	before := m.WanderAngle
	for range 61 {
		BackgroundStep(m, c)
	}
	if m.WanderAngle == before {
		t.Error("wander angle should change after 60 steps")
	}
	if m.WanderTimer != 0 {
		t.Errorf("timer = %d, want reset", m.WanderTimer)
	}
}

func TestDasherCycle(t *testing.T) {
	m := NewMonster(Dasher, 400, 300, 30)
	c := &StepContext{DT: 6, Rng: rand.New(rand.NewSource(3))}

	c.Now = DashCooldownMs + 1
	BackgroundStep(m, c)
	if m.Dash.Phase != DashWindup {
		t.Fatalf("phase = %v, want windup", m.Dash.Phase)
	}
	if m.Dash.DirX == 0 && m.Dash.DirY == 0 {
		t.Fatal("dash heading not chosen")
	}

	c.Now += DashWindupMs
	BackgroundStep(m, c)
	if m.Dash.Phase != DashDashing {
		t.Fatalf("phase = %v, want dashing", m.Dash.Phase)
	}

	x, y := m.X, m.Y
	c.Now += DashDurationMs
	BackgroundStep(m, c)
	if m.Dash.Phase != DashCooldown {
		t.Fatalf("phase = %v, want cooldown", m.Dash.Phase)
	}
	if m.X == x && m.Y == y {
		t.Error("dasher did not move while dashing")
	}

	c.Now += DashRecoverMs
	BackgroundStep(m, c)
	if m.Dash.Phase != DashIdle {
		t.Fatalf("phase = %v, want idle", m.Dash.Phase)
	}
	// 冷却未到，不会再次蓄力
	BackgroundStep(m, c)
	if m.Dash.Phase != DashIdle {
		t.Errorf("phase = %v, dash cooldown not respected", m.Dash.Phase)
	}
}

func TestLiveShooterFires(t *testing.T) {
	m := NewMonster(Shooter, 100, 100, 30)
	c := &StepContext{DT: 1, Now: shooterCooldownMs, Rng: rand.New(rand.NewSource(4)), Targets: []Point{{X: 150, Y: 100}}}
	LiveStep(m, c)
	if len(c.Fired) == 0 {
		t.Fatal("shooter should fire once the cooldown elapsed")
	}
	if c.Fired[0].VX <= 0 {
		t.Errorf("bullet should head toward the player, vx=%v", c.Fired[0].VX)
	}
	n := len(c.Fired)
	c.Now += 100
	LiveStep(m, c)
	if len(c.Fired) != n {
		t.Error("shooter fired again before cooldown")
	}
}

func TestLiveNecromancerSummonCap(t *testing.T) {
	m := NewMonster(Necromancer, 400, 300, 60)
	c := &StepContext{DT: 1, Rng: rand.New(rand.NewSource(5)), Targets: []Point{{X: 700, Y: 500}}}
	for i := range 10 {
		c.Now = int64(i+1) * summonCooldownMs
		LiveStep(m, c)
	}
	if len(c.Spawned) != maxMinions {
		t.Fatalf("spawned %d minions, want %d", len(c.Spawned), maxMinions)
	}
	for _, s := range c.Spawned {
		if s.Kind != Summoned || (s.ActualKind != Wanderer && s.ActualKind != Dasher) {
			t.Errorf("minion = %v/%v", s.Kind, s.ActualKind)
		}
	}
}

func TestNecromancerResummonsAfterMinionDies(t *testing.T) {
	m := NewMonster(Necromancer, 400, 300, 60)
	st := NewChamberState()
	st.Monsters = []*Monster{m}
	c := &StepContext{DT: 1, Rng: rand.New(rand.NewSource(7)), Targets: []Point{{X: 700, Y: 500}}}
	for i := range maxMinions {
		c.Now = int64(i+1) * summonCooldownMs
		LiveStep(m, c)
	}
	st.Monsters = append(st.Monsters, c.Spawned...)
	if m.Minions != maxMinions {
		t.Fatalf("minions = %d", m.Minions)
	}

	// 存档再读回后召唤关系仍然成立
	st = st.Clone()
	m = st.Monsters[0]
	st.Monsters[1].Health = 0
	if n := st.PruneDead(); n != 1 {
		t.Fatalf("pruned %d", n)
	}
	if m.Minions != maxMinions-1 {
		t.Fatalf("minions after death = %d", m.Minions)
	}

	c.Spawned = nil
	c.Now += summonCooldownMs
	LiveStep(m, c)
	if len(c.Spawned) != 1 || c.Spawned[0].Master != m {
		t.Errorf("necromancer did not summon a replacement: %+v", c.Spawned)
	}
}

func TestLiveWithoutTargetsFallsBack(t *testing.T) {
	m := NewMonster(Shooter, 100, 100, 30)
	c := &StepContext{DT: 1, Now: 10_000, Rng: rand.New(rand.NewSource(6))}
	LiveStep(m, c)
	if len(c.Fired) != 0 {
		t.Error("no targets, nothing to shoot at")
	}
}

func TestAdvanceProjectilesExpires(t *testing.T) {
	list := []Projectile{
		{X: 10, Y: 10, VX: -20},
		{X: 400, Y: 300, VX: 1},
	}
	out := AdvanceProjectiles(list, 1)
	if len(out) != 1 || out[0].X != 401 {
		t.Fatalf("projectiles = %+v", out)
	}
}

func TestChamberStateCloneIsDeep(t *testing.T) {
	s := NewChamberState()
	s.Monsters = append(s.Monsters, NewMonster(Wanderer, 1, 2, 30))
	s.Items = append(s.Items, Item{Kind: ItemKey})
	cp := s.Clone()

	s.Monsters[0].X = 99
	s.Items[0].Kind = ItemCoin
	s.Monsters = append(s.Monsters, NewMonster(Dasher, 0, 0, 1))

	if cp.Monsters[0].X != 1 || cp.Items[0].Kind != ItemKey || len(cp.Monsters) != 1 {
		t.Errorf("clone shares state with original: %+v", cp)
	}
}

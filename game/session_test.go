package game

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"dungeonsync/channel"
	"dungeonsync/directory"
	"dungeonsync/dungeon"
	"dungeonsync/protocol"
	"dungeonsync/sim"
	"dungeonsync/telemetry"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	ctx   context.Context
	bus   *channel.Bus
	dir   *directory.Store
	clock *fakeClock

	host, guest *Session
}

func (f *fixture) deps(id string, seed int64) Deps {
	return Deps{
		Directory: f.dir,
		Channel:   f.bus.Connect(id),
		Clock:     f.clock,
		Tracer:    telemetry.NoopTracer(),
		Rand:      rand.New(rand.NewSource(seed)),
		PlayerID:  id,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		bus:   channel.NewBus(),
		dir:   directory.NewStore(),
		clock: &fakeClock{t: time.Unix(1_700_000_000, 0)},
	}
	var err error
	if f.host, err = Create(f.ctx, f.deps("host", 1), "Ana", "normal"); err != nil {
		t.Fatal(err)
	}
	if f.guest, err = Join(f.ctx, f.deps("guest", 2), f.host.RoomCode(), "Bo"); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.host.StartGame(f.ctx); err != nil {
		t.Fatal(err)
	}
	f.tick(f.guest)
	if !f.guest.started {
		t.Fatal("guest did not start from game_started")
	}
}

func (f *fixture) tick(ss ...*Session) {
	for _, s := range ss {
		s.Tick(f.ctx, 1, Intent{})
	}
}

func firstOfType(t *testing.T, l *dungeon.Layout, typ dungeon.ChamberType) dungeon.ChamberKey {
	t.Helper()
	c := l.FindType(typ)
	if c == nil {
		t.Fatalf("layout has no %v chamber:\n%s", typ, l)
	}
	return c.Key()
}

func inject(t *testing.T, s *Session, from string, event protocol.Event, payload any) {
	t.Helper()
	env, err := protocol.NewEnvelope(s.topic, event, from, payload)
	if err != nil {
		t.Fatal(err)
	}
	s.OnEvent(env)
}

func TestCreateJoinStart(t *testing.T) {
	f := newFixture(t)
	if !f.host.IsAuthority() || f.guest.IsAuthority() {
		t.Fatal("role mismatch")
	}
	f.start(t)

	hs, gs := f.host.Snapshot(), f.guest.Snapshot()
	if hs.Seed != gs.Seed || hs.Floor != 1 || gs.Floor != 1 {
		t.Fatalf("seed/floor: host %v/%d guest %v/%d", hs.Seed, hs.Floor, gs.Seed, gs.Floor)
	}
	if hs.Layout.String() != gs.Layout.String() {
		t.Errorf("layouts differ:\n%s\n%s", hs.Layout, gs.Layout)
	}
	if gs.Current != gs.Layout.Start || hs.Current != hs.Layout.Start {
		t.Error("sessions should begin in the start chamber")
	}

	room, ok, err := f.dir.FindRoom(f.ctx, f.host.RoomCode())
	if err != nil || !ok || room.Status != directory.StatusPlaying {
		t.Errorf("room = %+v %v %v", room, ok, err)
	}

	f.tick(f.host)
	players := f.host.Snapshot().Players
	if len(players) != 1 || players[0].ID != "guest" || players[0].Name != "Bo" {
		t.Errorf("host sees players %+v", players)
	}
}

func TestStartGameRequiresHost(t *testing.T) {
	f := newFixture(t)
	if err := f.guest.StartGame(f.ctx); !errors.Is(err, ErrNotAuthority) {
		t.Errorf("err = %v", err)
	}
}

func TestJoinUnknownCode(t *testing.T) {
	f := newFixture(t)
	_, err := Join(f.ctx, f.deps("p3", 3), "ZZZZZZ", "Cy")
	if !errors.Is(err, directory.ErrRoomNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestOffChamberSnapshotGoesToCache(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	g := f.guest

	local := sim.NewMonster(sim.Wanderer, 200, 200, 30)
	g.live.Monsters = []*sim.Monster{local}
	other := dungeon.ChamberKey{X: (g.current.X + 1) % dungeon.GridSize, Y: (g.current.Y + 2) % dungeon.GridSize}

	inject(t, g, "host", protocol.EnemiesSync, protocol.EnemiesSyncPayload{
		Cell:    protocol.At(other),
		Enemies: []protocol.MonsterRecord{protocol.RecordMonster(sim.NewMonster(sim.Shooter, 50, 50, 30))},
	})
	f.tick(g)

	if len(g.live.Monsters) != 1 || g.live.Monsters[0] != local || local.X != 200 {
		t.Fatalf("live list changed by off-chamber snapshot: %+v", g.live.Monsters)
	}
	if snap, ok := g.cache.Get(other); !ok || len(snap.Monsters) != 1 {
		t.Errorf("snapshot not cached: %+v %v", snap, ok)
	}

	// 缺少坐标的快照直接忽略
	inject(t, g, "host", protocol.EnemiesSync, protocol.EnemiesSyncPayload{})
	f.tick(g)
	if len(g.live.Monsters) != 1 || g.cache.Len() != 1 {
		t.Error("snapshot without a chamber key was applied")
	}
}

func TestCurrentChamberSnapshotReconciled(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	g := f.guest

	payload := protocol.EnemiesSyncPayload{
		Cell: protocol.At(g.current),
		Enemies: []protocol.MonsterRecord{
			protocol.RecordMonster(sim.NewMonster(sim.Wanderer, 100, 100, 30)),
			protocol.RecordMonster(sim.NewMonster(sim.Dasher, 600, 400, 30)),
		},
	}
	inject(t, g, "host", protocol.EnemiesSync, payload)
	f.tick(g)
	if len(g.live.Monsters) != 2 {
		t.Fatalf("monsters = %d", len(g.live.Monsters))
	}
	first := []*sim.Monster{g.live.Monsters[0], g.live.Monsters[1]}

	inject(t, g, "host", protocol.EnemiesSync, payload)
	f.tick(g)
	for i, m := range g.live.Monsters {
		if m != first[i] {
			t.Errorf("monster %d replaced by identical snapshot", i)
		}
	}
}

func TestRoomClearedUnblocksCurrent(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	g := f.guest
	g.doorsBlocked = true
	g.live.Monsters = []*sim.Monster{sim.NewMonster(sim.Wanderer, 100, 100, 30)}

	inject(t, g, "host", protocol.RoomCleared, protocol.RoomClearedPayload{Cell: protocol.At(g.current)})
	f.tick(g)

	if g.doorsBlocked || len(g.live.Monsters) != 0 {
		t.Errorf("blocked=%v monsters=%d", g.doorsBlocked, len(g.live.Monsters))
	}
	if !g.topo.Layout.At(g.current).Cleared {
		t.Error("chamber not marked cleared")
	}
}

func TestHostSpawnReplicatesToCache(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	h, g := f.host, f.guest
	key := firstOfType(t, h.topo.Layout, dungeon.NormalChamber)

	h.enter(f.ctx, key)
	if len(h.indicators) < 3 || h.spawnAt == 0 {
		t.Fatalf("indicators=%d spawnAt=%d", len(h.indicators), h.spawnAt)
	}
	want := len(h.indicators)

	f.clock.Advance(h.cfg.SpawnDelay + time.Millisecond)
	f.tick(h)
	if len(h.live.Monsters) != want || !h.spawned[key] || len(h.indicators) != 0 {
		t.Fatalf("materialized %d of %d", len(h.live.Monsters), want)
	}

	f.tick(g)
	if len(g.live.Monsters) != 0 {
		t.Fatal("guest in another chamber received monsters live")
	}
	g.enter(f.ctx, key)
	if len(g.live.Monsters) != want {
		t.Errorf("guest seeded %d monsters from cache, want %d", len(g.live.Monsters), want)
	}
	if len(g.indicators) != 0 {
		t.Error("guest rolled indicators for an already populated chamber")
	}
}

func TestFollowerSyncRequestMaterializes(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	h, g := f.host, f.guest
	key := firstOfType(t, g.topo.Layout, dungeon.NormalChamber)

	g.enter(f.ctx, key)
	n := len(g.indicators)
	if n == 0 || g.syncAt == 0 {
		t.Fatalf("guest indicators=%d syncAt=%d", n, g.syncAt)
	}

	f.clock.Advance(250 * time.Millisecond)
	f.tick(g, h, g)

	if !h.auth.Has(key) || !h.spawned[key] {
		t.Fatal("host did not take over the chamber")
	}
	if st, _ := h.auth.Stored(key); len(st.Monsters) != n {
		t.Errorf("host stored %d monsters, want %d", len(st.Monsters), n)
	}
	if len(g.live.Monsters) != n || len(g.indicators) != 0 {
		t.Errorf("guest monsters=%d indicators=%d", len(g.live.Monsters), len(g.indicators))
	}
}

func TestClearDetectionPublishes(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	h, g := f.host, f.guest
	key := firstOfType(t, h.topo.Layout, dungeon.NormalChamber)

	h.enter(f.ctx, key)
	f.clock.Advance(h.cfg.SpawnDelay + time.Millisecond)
	f.tick(h)
	for _, m := range h.live.Monsters {
		m.Health = 0
	}
	f.tick(h, g)

	if !h.topo.Layout.At(key).Cleared || h.doorsBlocked {
		t.Error("host did not clear the chamber")
	}
	if !g.topo.Layout.At(key).Cleared {
		t.Error("room_cleared did not reach the guest")
	}
	if h.spawned[key] {
		t.Error("cleared chamber still tracked as an encounter")
	}
}

func TestKeyPickup(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	h, g := f.host, f.guest
	key := firstOfType(t, h.topo.Layout, dungeon.KeyChamber)

	g.enter(f.ctx, key)
	if len(g.live.Items) != 1 || g.live.Items[0].Kind != sim.ItemKey {
		t.Fatalf("guest items = %+v", g.live.Items)
	}
	h.enter(f.ctx, key)
	f.tick(h)
	if !h.self.HasKey || len(h.live.Items) != 0 {
		t.Fatalf("host key=%v items=%+v", h.self.HasKey, h.live.Items)
	}

	f.tick(g)
	if g.self.HasKey || len(g.live.Items) != 0 {
		t.Errorf("guest key=%v items=%+v", g.self.HasKey, g.live.Items)
	}
}

func TestBlockedDoorsRefuseExit(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	h := f.host
	start := h.current
	c := h.topo.Layout.At(start)
	var dir dungeon.Direction
	for _, d := range []dungeon.Direction{dungeon.North, dungeon.South, dungeon.East, dungeon.West} {
		if c.Doors.Has(d) {
			dir = d
			break
		}
	}

	h.doorsBlocked = true
	if h.tryExit(f.ctx, dir) || h.current != start {
		t.Fatal("exit through blocked doors")
	}
	h.doorsBlocked = false
	if !h.tryExit(f.ctx, dir) || h.current != start.Step(dir) {
		t.Fatal("exit through open door failed")
	}
	if !h.auth.Has(start) {
		t.Error("authority did not store the chamber it left")
	}
}

func TestLateJoinerReceivesFloor(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	late, err := Join(f.ctx, f.deps("late", 3), f.host.RoomCode(), "Cy")
	if err != nil {
		t.Fatal(err)
	}
	// startFloor 会把玩家放回房间中心
	f.guest.self.X = 123

	f.tick(f.host)
	late.Tick(f.ctx, 1, Intent{})
	f.guest.drainInbound(f.ctx)

	if !late.started || late.seed != f.host.seed || late.floor != f.host.floor {
		t.Fatalf("late joiner: started=%v seed=%v floor=%d", late.started, late.seed, late.floor)
	}
	if late.topo.Layout.String() != f.host.topo.Layout.String() {
		t.Error("late joiner generated a different layout")
	}
	if f.guest.self.X != 123 {
		t.Error("repeated game_started reset an existing follower")
	}
}

func TestLeave(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	if err := f.guest.Leave(f.ctx); err != nil {
		t.Fatal(err)
	}
	players, err := f.dir.ListPlayers(f.ctx, f.host.RoomID())
	if err != nil || len(players) != 1 || players[0].ID != "host" {
		t.Errorf("players = %+v %v", players, err)
	}
	f.tick(f.host)
	if len(f.host.Snapshot().Players) != 0 {
		t.Error("host still lists the departed player")
	}

	if err := f.host.Leave(f.ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := f.dir.FindRoom(f.ctx, f.host.RoomCode()); ok {
		t.Error("host leaving should delete the room")
	}
	if err := f.host.Leave(f.ctx); err != nil {
		t.Error("second leave should be a no-op")
	}
}

func TestInboundQueueDrops(t *testing.T) {
	f := newFixture(t)
	deps := f.deps("p4", 4)
	deps.Config = Config{InboundQueue: 1}
	s, err := Join(f.ctx, deps, f.host.RoomCode(), "Di")
	if err != nil {
		t.Fatal(err)
	}
	inject(t, s, "host", protocol.ChatMessage, protocol.ChatMessagePayload{PlayerID: "host", Text: "a"})
	inject(t, s, "host", protocol.ChatMessage, protocol.ChatMessagePayload{PlayerID: "host", Text: "b"})
	if s.Dropped() != 1 {
		t.Errorf("dropped = %d", s.Dropped())
	}
	s.Tick(f.ctx, 1, Intent{})
	if chat := s.Snapshot().Chat; len(chat) != 1 || chat[0].Text != "a" {
		t.Errorf("chat = %+v", chat)
	}
}

func TestDifficultyAndBossFloors(t *testing.T) {
	if LookupDifficulty("bogus").Name != "normal" || !LookupDifficulty("nightmare").OneHit {
		t.Error("difficulty lookup")
	}
	for floor, want := range map[int]bool{1: false, 4: false, 5: true, 10: true, 0: false} {
		if IsBossFloor(floor) != want {
			t.Errorf("IsBossFloor(%d) != %v", floor, want)
		}
	}
}

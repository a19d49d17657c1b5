package replication

import (
	"encoding/json"
	"reflect"
	"slices"
	"testing"

	"dungeonsync/dungeon"
	"dungeonsync/protocol"
	"dungeonsync/sim"
)

func rec(kind sim.MonsterKind, x, y, health float64) protocol.MonsterRecord {
	m := sim.NewMonster(kind, x, y, 30)
	m.Health = health
	return protocol.RecordMonster(m)
}

func snapshotOf(list []*sim.Monster) []sim.Monster {
	out := make([]sim.Monster, 0, len(list))
	for _, m := range list {
		out = append(out, *m)
	}
	return out
}

func TestReconcileIdempotent(t *testing.T) {
	local := []*sim.Monster{
		sim.NewMonster(sim.Wanderer, 100, 100, 30),
		sim.NewMonster(sim.Shooter, 300, 200, 30),
	}
	incoming := []protocol.MonsterRecord{
		rec(sim.Wanderer, 110, 95, 25),
		rec(sim.Shooter, 305, 210, 30),
		rec(sim.Dasher, 500, 500, 30),
	}

	once := Reconcile(local, incoming)
	before := snapshotOf(once)
	twice := Reconcile(once, incoming)

	if len(twice) != len(once) {
		t.Fatalf("len %d -> %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("monster %d replaced on second pass", i)
		}
	}
	if !reflect.DeepEqual(before, snapshotOf(twice)) {
		t.Errorf("second pass changed state:\n%+v\n%+v", before, snapshotOf(twice))
	}
}

func TestReconcileUpdatesMatchedAndKeepsRenderPosition(t *testing.T) {
	w := sim.NewMonster(sim.Wanderer, 100, 100, 30)
	out := Reconcile([]*sim.Monster{w}, []protocol.MonsterRecord{rec(sim.Wanderer, 120, 100, 12)})
	if len(out) != 1 || out[0] != w {
		t.Fatal("nearby record of the same kind should update the existing monster")
	}
	if w.X != 100 || w.TargetX != 120 || !w.HasTarget || w.Health != 12 {
		t.Errorf("monster = %+v", w)
	}
}

func TestReconcileCompleteness(t *testing.T) {
	a := sim.NewMonster(sim.Wanderer, 100, 100, 30)
	b := sim.NewMonster(sim.Wanderer, 400, 400, 30)
	n := Reconcile([]*sim.Monster{a, b}, []protocol.MonsterRecord{rec(sim.Wanderer, 100, 100, 30), rec(sim.Wanderer, 400, 400, 30)})
	n1 := Reconcile(n, []protocol.MonsterRecord{rec(sim.Wanderer, 402, 401, 30)})
	if len(n1) != 1 || n1[0] != b {
		t.Fatalf("monster absent from the snapshot must be removed, got %d", len(n1))
	}
	if empty := Reconcile(n1, nil); len(empty) != 0 {
		t.Errorf("empty snapshot left %d monsters", len(empty))
	}
}

func TestReconcileThresholdAndKind(t *testing.T) {
	w := sim.NewMonster(sim.Wanderer, 100, 100, 30)
	out := Reconcile([]*sim.Monster{w}, []protocol.MonsterRecord{rec(sim.Wanderer, 100+MatchThreshold+1, 100, 30)})
	if len(out) != 1 || out[0] == w {
		t.Error("record beyond the threshold must create a new monster")
	}

	d := sim.NewMonster(sim.Dasher, 100, 100, 30)
	out = Reconcile([]*sim.Monster{d}, []protocol.MonsterRecord{rec(sim.Shooter, 100, 100, 30)})
	if len(out) != 1 || out[0] == d || out[0].Kind != sim.Shooter {
		t.Error("kind mismatch must not match")
	}
}

func TestReconcileOrderIndependent(t *testing.T) {
	// a 离 r2 更近，但 r1 只能配 a；全局最近优先时 a-r2、b-r1
	mk := func() (*sim.Monster, *sim.Monster) {
		return sim.NewMonster(sim.Wanderer, 100, 100, 30), sim.NewMonster(sim.Wanderer, 130, 100, 30)
	}
	r1 := rec(sim.Wanderer, 95, 100, 1)
	r2 := rec(sim.Wanderer, 101, 100, 2)

	type result map[float64]string // health -> 原怪物
	run := func(localRev, inRev bool) result {
		a, b := mk()
		local := []*sim.Monster{a, b}
		in := []protocol.MonsterRecord{r1, r2}
		if localRev {
			slices.Reverse(local)
		}
		if inRev {
			slices.Reverse(in)
		}
		res := result{}
		for _, m := range Reconcile(local, in) {
			switch m {
			case a:
				res[m.Health] = "a"
			case b:
				res[m.Health] = "b"
			default:
				res[m.Health] = "new"
			}
		}
		return res
	}

	want := run(false, false)
	if want[2] != "a" {
		t.Fatalf("nearest pair should win: %v", want)
	}
	for _, lr := range []bool{false, true} {
		for _, ir := range []bool{false, true} {
			if got := run(lr, ir); !reflect.DeepEqual(got, want) {
				t.Errorf("local reversed=%v incoming reversed=%v: %v, want %v", lr, ir, got, want)
			}
		}
	}
}

func TestReconcileMeasuresFromTarget(t *testing.T) {
	// 渲染位置落后于插值目标时，匹配仍以目标为准
	m := sim.NewMonster(sim.Wanderer, 0, 0, 30)
	m.TargetX, m.TargetY, m.HasTarget = 200, 200, true
	out := Reconcile([]*sim.Monster{m}, []protocol.MonsterRecord{rec(sim.Wanderer, 210, 200, 30)})
	if out[0] != m {
		t.Error("should match against the interpolation target")
	}
}

func TestReconcileCompactPayload(t *testing.T) {
	var recs []protocol.MonsterRecord
	if err := json.Unmarshal([]byte(`[{"x":50,"y":60}]`), &recs); err != nil {
		t.Fatal(err)
	}
	out := Reconcile(nil, recs)
	if len(out) != 1 || out[0].Kind != sim.Wanderer || out[0].Health <= 0 {
		t.Fatalf("compact record = %+v", out)
	}
}

func TestRemoteCacheSeed(t *testing.T) {
	c := NewRemoteCache()
	k := dungeon.ChamberKey{X: 1, Y: 2}
	c.PutMonsters(k, []protocol.MonsterRecord{rec(sim.Shooter, 10, 10, 30)}, 5)
	c.PutItems(k, []protocol.ItemRecord{{X: 1, Y: 1, Kind: sim.ItemKey}}, 6)

	live := sim.NewChamberState()
	if !c.Seed(k, live) {
		t.Fatal("seed missed cached chamber")
	}
	if len(live.Monsters) != 1 || live.Monsters[0].Kind != sim.Shooter || len(live.Items) != 1 {
		t.Errorf("live = %+v", live)
	}
	if c.Len() != 0 {
		t.Error("seeded entry should be consumed")
	}
	if c.Seed(dungeon.ChamberKey{}, live) {
		t.Error("seed of unknown chamber")
	}
}

package dungeon

import (
	"reflect"
	"testing"
)

func TestGenerateDeterministic(t *testing.T) {
	for seed := Seed(-50); seed < 500; seed += 7 {
		for _, boss := range []bool{false, true} {
			a := Generate(seed, boss)
			b := Generate(seed, boss)
			if !reflect.DeepEqual(a, b) {
				t.Fatalf("seed %d boss=%v: layouts differ\n%s\n%s", seed, boss, a, b)
			}
		}
	}
}

func TestGenerateDifferentSeeds(t *testing.T) {
	a := Generate(12345, false)
	b := Generate(54321, false)
	if reflect.DeepEqual(a.Grid, b.Grid) {
		t.Error("different seeds should not produce identical grids")
	}
}

func TestGenerateSeed42(t *testing.T) {
	l := Generate(42, false)

	if l.Start != (ChamberKey{X: 2, Y: 2}) {
		t.Fatalf("start = %v, want 2,2", l.Start)
	}
	if got := l.At(l.Start).Type; got != StartChamber {
		t.Fatalf("center type = %v", got)
	}
	if n := l.Count(); n != 14 {
		t.Fatalf("chambers = %d, want 14", n)
	}

	want := map[ChamberKey]ChamberType{
		{0, 0}: BossChamber,
		{2, 1}: KeyChamber,
		{3, 2}: MiniBossChamber,
		{0, 3}: ShopChamber,
		{2, 3}: TreasureChamber,
	}
	for k, typ := range want {
		if c := l.At(k); c == nil || c.Type != typ {
			t.Errorf("chamber %v: got %+v, want %v", k, c, typ)
		}
	}
	if l.CountType(GunChamber) != 0 {
		t.Error("seed 42 gun roll is 0.79, no gun chamber expected")
	}
	if mb := l.At(ChamberKey{3, 2}); mb.MiniBoss != Phantom {
		t.Errorf("miniboss type = %v, want phantom", mb.MiniBoss)
	}
	if got := l.At(ChamberKey{1, 2}).Doors; got != (Doors{North: true, South: true, West: true}) {
		t.Errorf("doors at 1,2 = %+v", got)
	}
}

func TestGenerateSeed7HasGun(t *testing.T) {
	l := Generate(7, false)
	gun := l.FindType(GunChamber)
	if gun == nil || gun.Key() != (ChamberKey{2, 0}) {
		t.Fatalf("gun chamber = %+v, want 2,0", gun)
	}
	if boss := l.FindType(BossChamber); boss.Key() != (ChamberKey{4, 3}) {
		t.Errorf("boss at %v, want 4,3", boss.Key())
	}
}

func TestGenerateBossFloorHasNoKey(t *testing.T) {
	l := Generate(42, true)
	if l.CountType(KeyChamber) != 0 {
		t.Error("boss floor must not have a key chamber")
	}
	if boss := l.FindType(BossChamber); boss == nil || boss.Key() != (ChamberKey{0, 0}) {
		t.Errorf("boss = %+v", boss)
	}
	if mb := l.FindType(MiniBossChamber); mb == nil || mb.Key() != (ChamberKey{2, 1}) {
		t.Errorf("miniboss = %+v", mb)
	}
}

func TestGenerateInvariants(t *testing.T) {
	for seed := Seed(0); seed < 2000; seed += 13 {
		for _, boss := range []bool{false, true} {
			l := Generate(seed, boss)
			checkTree(t, l)
			checkDoorSymmetry(t, l)

			if n := l.CountType(BossChamber); n != 1 {
				t.Fatalf("seed %d: %d boss chambers", seed, n)
			}
			wantKey := 1
			if boss {
				wantKey = 0
			}
			if n := l.CountType(KeyChamber); n != wantKey {
				t.Fatalf("seed %d boss=%v: %d key chambers", seed, boss, n)
			}
			if n := l.CountType(MiniBossChamber); n != 1 {
				t.Fatalf("seed %d: %d miniboss chambers", seed, n)
			}
			if n := l.CountType(GunChamber); n > 1 {
				t.Fatalf("seed %d: %d gun chambers", seed, n)
			}
			if n := l.CountType(ShopChamber); n != 1 {
				t.Fatalf("seed %d: %d shop chambers", seed, n)
			}
			if n := l.CountType(TreasureChamber); n != 1 {
				t.Fatalf("seed %d: %d treasure chambers", seed, n)
			}
			if n := l.CountType(StartChamber); n != 1 {
				t.Fatalf("seed %d: %d start chambers", seed, n)
			}

			bossRoom := l.FindType(BossChamber)
			for _, c := range l.Chambers() {
				if c.Type == StartChamber {
					continue
				}
				if manhattan(c.Key(), l.Start) > manhattan(bossRoom.Key(), l.Start) {
					t.Fatalf("seed %d: %v is farther than boss %v", seed, c.Key(), bossRoom.Key())
				}
			}
		}
	}
}

func TestGenerateGridExhaustion(t *testing.T) {
	l := GenerateWith(5, false, Options{GridSize: 3, RoomsToCreate: 20})
	if n := l.Count(); n != 9 {
		t.Fatalf("3x3 grid should fill to 9 chambers, got %d", n)
	}
	checkTree(t, l)
	checkDoorSymmetry(t, l)
}

func TestGenerateDegenerateSkipsRoles(t *testing.T) {
	l := GenerateWith(3, false, Options{GridSize: 5, RoomsToCreate: 2})
	if n := l.Count(); n != 2 {
		t.Fatalf("chambers = %d, want 2", n)
	}
	if l.CountType(BossChamber) != 1 {
		t.Error("single normal chamber becomes the boss")
	}
	if l.CountType(KeyChamber)+l.CountType(ShopChamber)+l.CountType(MiniBossChamber) != 0 {
		t.Error("optional roles must be skipped when the pool is empty")
	}
}

func TestLCGSequence(t *testing.T) {
	r := NewLCG(42)
	// (42*9301+49297) % 233280 = 206659
	if got := r.Next(); got != 206659.0/233280 {
		t.Fatalf("first draw = %v", got)
	}
	neg := NewLCG(-1000000)
	for range 100 {
		if v := neg.Next(); v < 0 || v >= 1 {
			t.Fatalf("draw out of range: %v", v)
		}
	}
}

func checkTree(t *testing.T, l *Layout) {
	t.Helper()
	nodes := l.Chambers()
	edges := 0
	for _, c := range nodes {
		edges += c.Doors.Count()
	}
	edges /= 2
	if edges != len(nodes)-1 {
		t.Fatalf("seed %d: %d chambers but %d edges, not a tree", l.Seed, len(nodes), edges)
	}

	seen := map[ChamberKey]bool{l.Start: true}
	queue := []ChamberKey{l.Start}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		for _, dir := range growthDirections {
			if n := l.Neighbor(k, dir); n != nil && !seen[n.Key()] {
				seen[n.Key()] = true
				queue = append(queue, n.Key())
			}
		}
	}
	if len(seen) != len(nodes) {
		t.Fatalf("seed %d: reached %d of %d chambers", l.Seed, len(seen), len(nodes))
	}
}

func checkDoorSymmetry(t *testing.T, l *Layout) {
	t.Helper()
	for _, c := range l.Chambers() {
		for _, dir := range growthDirections {
			if !c.Doors.Has(dir) {
				continue
			}
			n := l.At(c.Key().Step(dir))
			if n == nil {
				t.Fatalf("seed %d: door %v from %v leads nowhere", l.Seed, dir, c.Key())
			}
			if !n.Doors.Has(dir.Opposite()) {
				t.Fatalf("seed %d: door %v from %v has no return door", l.Seed, dir, c.Key())
			}
		}
	}
}

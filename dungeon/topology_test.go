package dungeon

import "testing"

func TestTopologyFirstEntryPerClient(t *testing.T) {
	shared := Generate(42, false)
	mine := NewTopology(shared)
	theirs := NewTopology(shared)

	k := ChamberKey{1, 2}
	first := theirs.Enter(k, EntryContext{})
	if !first.FirstEntry || !first.Has(ContentSpawnMonsters) {
		t.Fatalf("first entry = %+v", first)
	}
	if !shared.At(k).Visited {
		t.Fatal("shared visited flag should be set")
	}

	// 共享标志已置位，但本端仍是第一次进入
	e := mine.Enter(k, EntryContext{})
	if !e.FirstEntry || !e.Has(ContentSpawnMonsters) {
		t.Fatalf("second client entry = %+v", e)
	}
	if e.DoorsBlocked {
		t.Error("doors should not block on this client's first entry")
	}

	again := mine.Enter(k, EntryContext{})
	if again.FirstEntry {
		t.Error("re-entry reported as first entry")
	}
	if !again.DoorsBlocked {
		t.Error("uncleared normal chamber should block doors on re-entry")
	}
	if mine.State(k) != VisitedUncleared {
		t.Errorf("state = %v", mine.State(k))
	}

	if !mine.MarkCleared(k) {
		t.Fatal("MarkCleared should report a change")
	}
	if mine.MarkCleared(k) {
		t.Error("MarkCleared must be idempotent")
	}
	if mine.DoorsBlocked(k) {
		t.Error("cleared chamber must not block doors")
	}
	if mine.State(k) != VisitedCleared {
		t.Errorf("state = %v", mine.State(k))
	}
}

func TestTopologyContentRules(t *testing.T) {
	cases := []struct {
		typ      ChamberType
		content  Content
		cleared  bool
		blocking bool
	}{
		{NormalChamber, ContentSpawnMonsters, false, true},
		{MiniBossChamber, ContentPedestal, false, true},
		{KeyChamber, ContentKey, true, false},
		{ShopChamber, ContentShop, true, false},
		{GunChamber, ContentGunBox, true, false},
		{TreasureChamber, ContentTreasure, true, false},
		{BossChamber, ContentLockedDoor, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.typ.String(), func(t *testing.T) {
			l := newLayout(3)
			l.Grid[1][1] = &Chamber{X: 1, Y: 1, Type: tc.typ}
			topo := NewTopology(l)
			k := ChamberKey{1, 1}

			e := topo.Enter(k, EntryContext{})
			if !e.Has(tc.content) {
				t.Fatalf("contents = %v, want %v", e.Contents, tc.content)
			}
			if l.At(k).Cleared != tc.cleared {
				t.Errorf("cleared = %v", l.At(k).Cleared)
			}
			if topo.DoorsBlocked(k) != tc.blocking {
				t.Errorf("blocking = %v", topo.DoorsBlocked(k))
			}
		})
	}
}

func TestTopologyMiniBossClearedBeforeFirstEntry(t *testing.T) {
	l := newLayout(3)
	l.Grid[1][1] = &Chamber{X: 1, Y: 1, Type: MiniBossChamber}
	topo := NewTopology(l)
	k := ChamberKey{1, 1}

	// 房主先击败了小头目，room_cleared 先于本端进入到达
	topo.MarkCleared(k)

	first := topo.Enter(k, EntryContext{})
	if !first.FirstEntry || first.Has(ContentPedestal) {
		t.Fatalf("first entry = %+v", first)
	}
	if !l.At(k).Cleared {
		t.Fatal("cleared flag went back to false")
	}
	again := topo.Enter(k, EntryContext{})
	if again.DoorsBlocked || again.Has(ContentPedestal) {
		t.Errorf("re-entry = %+v", again)
	}
}

func TestTopologyBossUnlock(t *testing.T) {
	l := newLayout(3)
	l.Grid[0][0] = &Chamber{X: 0, Y: 0, Type: BossChamber}
	topo := NewTopology(l)
	k := ChamberKey{0, 0}

	if e := topo.Enter(k, EntryContext{}); !e.Has(ContentLockedDoor) {
		t.Fatalf("without key: %v", e.Contents)
	}
	if e := topo.Enter(k, EntryContext{HasKey: true}); !e.Has(ContentNextFloor) {
		t.Fatalf("with key: %v", e.Contents)
	}
	if !l.At(k).BossUnlocked || !l.At(k).Cleared {
		t.Error("boss chamber should be unlocked and cleared")
	}
	if e := topo.Enter(k, EntryContext{}); !e.Has(ContentNextFloor) {
		t.Errorf("unlocked re-entry: %v", e.Contents)
	}
}

func TestTopologyBossFloorOnlyAuthoritySpawns(t *testing.T) {
	l := newLayout(3)
	l.BossFloor = true
	l.Grid[0][0] = &Chamber{X: 0, Y: 0, Type: BossChamber}

	if e := NewTopology(l.Clone()).Enter(ChamberKey{}, EntryContext{}); len(e.Contents) != 0 {
		t.Errorf("follower boss entry = %v", e.Contents)
	}
	if e := NewTopology(l.Clone()).Enter(ChamberKey{}, EntryContext{Authority: true}); !e.Has(ContentSpawnBoss) {
		t.Errorf("authority boss entry = %v", e.Contents)
	}
}

func TestTopologyMissingChamber(t *testing.T) {
	topo := NewTopology(Generate(1, false))
	e := topo.Enter(ChamberKey{9, 9}, EntryContext{})
	if e.Chamber != nil || e.FirstEntry {
		t.Errorf("out of bounds entry = %+v", e)
	}
	if topo.MarkCleared(ChamberKey{-1, 0}) {
		t.Error("MarkCleared on a missing chamber")
	}
}

package replication

import (
	"cmp"
	"math"
	"slices"

	"dungeonsync/dungeon"
	"dungeonsync/protocol"
	"dungeonsync/sim"
)

// MatchThreshold 就近匹配的最大距离（像素）。超过即视为不同的怪物
var MatchThreshold = 40.0

type candidate struct {
	in, local int
	dist      float64
}

// Reconcile 用权威端快照更新本地怪物列表
//
// 怪物没有稳定 ID：同种类且距离不超过 MatchThreshold 的 (快照, 本地) 对按距离从近到远
// 全局贪心配对，距离相同时依次比较快照坐标、本地坐标和下标，因此结果与列表顺序无关。
// 距离以本地怪物的插值目标（即上一次复制来的位置）计算。
// 配上的本地怪物更新字段与插值目标；没配上的快照记录新建怪物；没配上的本地怪物被删除。
// 对同一快照重复调用不会再产生变化。
func Reconcile(local []*sim.Monster, incoming []protocol.MonsterRecord) []*sim.Monster {
	var cands []candidate
	for i, r := range incoming {
		kind := r.KindOrDefault()
		for j, m := range local {
			if m == nil || m.Kind != kind {
				continue
			}
			ax, ay := m.Anchor()
			if d := math.Hypot(r.X-ax, r.Y-ay); d <= MatchThreshold {
				cands = append(cands, candidate{in: i, local: j, dist: d})
			}
		}
	}
	slices.SortFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		ra, rb := incoming[a.in], incoming[b.in]
		if c := cmp.Or(cmp.Compare(ra.X, rb.X), cmp.Compare(ra.Y, rb.Y)); c != 0 {
			return c
		}
		lax, lay := local[a.local].Anchor()
		lbx, lby := local[b.local].Anchor()
		if c := cmp.Or(cmp.Compare(lax, lbx), cmp.Compare(lay, lby)); c != 0 {
			return c
		}
		return cmp.Or(cmp.Compare(a.in, b.in), cmp.Compare(a.local, b.local))
	})

	match := make([]int, len(incoming))
	for i := range match {
		match[i] = -1
	}
	used := make([]bool, len(local))
	for _, c := range cands {
		if match[c.in] >= 0 || used[c.local] {
			continue
		}
		match[c.in] = c.local
		used[c.local] = true
	}

	out := make([]*sim.Monster, 0, len(incoming))
	for i, r := range incoming {
		if j := match[i]; j >= 0 {
			r.ApplyTo(local[j])
			out = append(out, local[j])
			continue
		}
		out = append(out, r.NewMonster())
	}
	return out
}

// ReplaceProjectiles 子弹没有身份，整表替换
func ReplaceProjectiles(records []protocol.BulletRecord) []sim.Projectile {
	out := make([]sim.Projectile, 0, len(records))
	for _, b := range records {
		out = append(out, b.Projectile())
	}
	return out
}

// ReplaceItems 物件整表替换
func ReplaceItems(records []protocol.ItemRecord) []sim.Item {
	out := make([]sim.Item, 0, len(records))
	for _, r := range records {
		out = append(out, r.Item())
	}
	return out
}

// RemoteSnapshot 跟随端缓存的某个房间的最新快照
type RemoteSnapshot struct {
	Monsters    []protocol.MonsterRecord
	Projectiles []protocol.BulletRecord
	Items       []protocol.ItemRecord
	HasMonsters bool
	HasItems    bool
	At          int64
}

// RemoteCache 跟随端对非当前房间快照的缓存，每个房间只保留最新一份
//
// 非当前房间的快照只写入这里，永远不改动实时列表；进入该房间时用缓存预先填充视图。
type RemoteCache struct {
	byChamber map[dungeon.ChamberKey]*RemoteSnapshot
}

// NewRemoteCache 空缓存
func NewRemoteCache() *RemoteCache {
	return &RemoteCache{byChamber: make(map[dungeon.ChamberKey]*RemoteSnapshot)}
}

func (c *RemoteCache) slot(key dungeon.ChamberKey, now int64) *RemoteSnapshot {
	s, ok := c.byChamber[key]
	if !ok {
		s = &RemoteSnapshot{}
		c.byChamber[key] = s
	}
	s.At = now
	return s
}

// PutMonsters 记录怪物快照
func (c *RemoteCache) PutMonsters(key dungeon.ChamberKey, recs []protocol.MonsterRecord, now int64) {
	s := c.slot(key, now)
	s.Monsters = slices.Clone(recs)
	s.HasMonsters = true
}

// PutProjectiles 记录子弹快照
func (c *RemoteCache) PutProjectiles(key dungeon.ChamberKey, recs []protocol.BulletRecord, now int64) {
	c.slot(key, now).Projectiles = slices.Clone(recs)
}

// PutItems 记录物件快照
func (c *RemoteCache) PutItems(key dungeon.ChamberKey, recs []protocol.ItemRecord, now int64) {
	s := c.slot(key, now)
	s.Items = slices.Clone(recs)
	s.HasItems = true
}

// Get 取缓存
func (c *RemoteCache) Get(key dungeon.ChamberKey) (RemoteSnapshot, bool) {
	s, ok := c.byChamber[key]
	if !ok {
		return RemoteSnapshot{}, false
	}
	return *s, true
}

// Seed 进入房间时用缓存填充实时视图，并把缓存项移除
func (c *RemoteCache) Seed(key dungeon.ChamberKey, live *sim.ChamberState) bool {
	s, ok := c.byChamber[key]
	if !ok {
		return false
	}
	delete(c.byChamber, key)
	if s.HasMonsters {
		live.Monsters = Reconcile(live.Monsters, s.Monsters)
	}
	if s.HasItems {
		live.Items = ReplaceItems(s.Items)
	}
	live.Projectiles = ReplaceProjectiles(s.Projectiles)
	return true
}

// Forget 房间被清理
func (c *RemoteCache) Forget(key dungeon.ChamberKey) {
	if s, ok := c.byChamber[key]; ok {
		s.Monsters = nil
		s.Projectiles = nil
	}
}

// Len 缓存的房间数
func (c *RemoteCache) Len() int { return len(c.byChamber) }

// Reset 清空
func (c *RemoteCache) Reset() {
	clear(c.byChamber)
}

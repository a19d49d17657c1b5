package replication

import (
	"math/rand"
	"slices"

	"dungeonsync/dungeon"
	"dungeonsync/logging"
	"dungeonsync/protocol"
	"dungeonsync/sim"
)

// BackgroundStepFrames 后台房间的 AI 步长（60Hz 帧），即 100ms
const BackgroundStepFrames = 6.0

// maxBackgroundSteps 单次 tick 最多补几步，避免卡顿后雪崩
const maxBackgroundSteps = 5

// Publisher 发布到会话主题；channel.Channel 满足该接口
type Publisher interface {
	Publish(topic string, event protocol.Event, payload any) error
}

// Spawner 由生成提示实例化真实怪物（血量等取决于会话难度与等级）
type Spawner func(ind protocol.IndicatorRecord) *sim.Monster

// Authority 权威端：每个房间的怪物/子弹/物件的唯一真相
//
// 只被所属会话的 tick 协程调用，内部不加锁。
type Authority struct {
	topic   string
	pub     Publisher
	limiter *RateLimiter
	rng     *rand.Rand
	spawn   Spawner

	store map[dungeon.ChamberKey]*sim.ChamberState
	acc   float64
}

// NewAuthority 创建权威端存储
func NewAuthority(topic string, pub Publisher, limiter *RateLimiter, rng *rand.Rand, spawn Spawner) *Authority {
	return &Authority{
		topic:   topic,
		pub:     pub,
		limiter: limiter,
		rng:     rng,
		spawn:   spawn,
		store:   make(map[dungeon.ChamberKey]*sim.ChamberState),
	}
}

// StoreChamberState 离开房间前存档实时列表（深拷贝）
func (a *Authority) StoreChamberState(key dungeon.ChamberKey, live *sim.ChamberState) {
	a.store[key] = live.Clone()
}

// LoadChamberState 进入房间时取回存档；ok=false 表示首次进入，需要按房间规则生成
func (a *Authority) LoadChamberState(key dungeon.ChamberKey) (*sim.ChamberState, bool) {
	st, ok := a.store[key]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// Stored 存档本体（非拷贝），供 tick 协程就地结算后台房间的命中与拾取
func (a *Authority) Stored(key dungeon.ChamberKey) (*sim.ChamberState, bool) {
	st, ok := a.store[key]
	return st, ok
}

// Has 是否已有存档
func (a *Authority) Has(key dungeon.ChamberKey) bool {
	_, ok := a.store[key]
	return ok
}

// Chambers 有存档的房间，行优先排序
func (a *Authority) Chambers() []dungeon.ChamberKey {
	keys := make([]dungeon.ChamberKey, 0, len(a.store))
	for k := range a.store {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(p, q dungeon.ChamberKey) int {
		if p.Y != q.Y {
			return p.Y - q.Y
		}
		return p.X - q.X
	})
	return keys
}

// TickBackgroundChambers 以较粗步长推进非当前房间的简化 AI
// dt 为 60Hz 帧数，now 为会话单调毫秒
func (a *Authority) TickBackgroundChambers(dt float64, now int64, current dungeon.ChamberKey) int {
	a.acc += dt
	steps := 0
	for a.acc >= BackgroundStepFrames && steps < maxBackgroundSteps {
		a.acc -= BackgroundStepFrames
		steps++
		for _, key := range a.Chambers() {
			if key == current {
				continue
			}
			st := a.store[key]
			c := &sim.StepContext{DT: BackgroundStepFrames, Now: now, Rng: a.rng}
			for _, m := range st.Monsters {
				sim.BackgroundStep(m, c)
			}
			st.Projectiles = sim.AdvanceProjectiles(st.Projectiles, BackgroundStepFrames)
		}
	}
	if steps == maxBackgroundSteps {
		a.acc = 0
	}
	return steps
}

// PublishChamberSnapshot 发布一个房间的怪物列表；受限流约束，返回是否真正发出
func (a *Authority) PublishChamberSnapshot(key dungeon.ChamberKey, st *sim.ChamberState, background bool, now int64) bool {
	kind := MonstersLive
	if background {
		kind = MonstersBackground
	}
	if !a.limiter.Allow(key, kind, now) {
		return false
	}
	a.publishMonsters(key, st, background)
	return true
}

// PublishProjectiles 发布敌方子弹，至少间隔 100ms
func (a *Authority) PublishProjectiles(key dungeon.ChamberKey, list []sim.Projectile, now int64) bool {
	if !a.limiter.Allow(key, Projectiles, now) {
		return false
	}
	a.send(protocol.EnemyBulletsSync, protocol.EnemyBulletsSyncPayload{Cell: protocol.At(key), Bullets: protocol.RecordBullets(list)})
	return true
}

// PublishItems 发布物件，至少间隔 100ms
func (a *Authority) PublishItems(key dungeon.ChamberKey, list []sim.Item, now int64) bool {
	if !a.limiter.Allow(key, Items, now) {
		return false
	}
	a.publishItems(key, list)
	return true
}

// PublishBackground 为当前房间以外、仍有怪物的房间发布低频快照
func (a *Authority) PublishBackground(now int64, current dungeon.ChamberKey) int {
	n := 0
	for _, key := range a.Chambers() {
		if key == current {
			continue
		}
		st := a.store[key]
		if len(st.Monsters) == 0 {
			continue
		}
		if a.PublishChamberSnapshot(key, st, true, now) {
			n++
		}
	}
	return n
}

// SyncRequest 同步请求的上下文
type SyncRequest struct {
	protocol.RequestEnemySyncPayload
	Current dungeon.ChamberKey
	Live    *sim.ChamberState
	// Cleared 房间已结束遭遇，不再根据提示生成怪物
	Cleared bool
}

// OnSyncRequest 立即回复请求房间的当前快照，不等下一次定时发布
//
// 请求的是权威端所在房间时用实时列表，否则用存档。
// 房间里没有怪物、尚未清理且请求携带了生成提示时，按提示实例化怪物并接管。
func (a *Authority) OnSyncRequest(req SyncRequest, now int64) (dungeon.ChamberKey, bool) {
	key, ok := req.Key()
	if !ok {
		return key, false
	}

	var st *sim.ChamberState
	if key == req.Current && req.Live != nil {
		st = req.Live
	} else {
		st = a.store[key]
		if st == nil {
			st = sim.NewChamberState()
			a.store[key] = st
		}
	}

	if len(st.Monsters) == 0 && !req.Cleared && len(req.Indicators) > 0 && a.spawn != nil {
		for _, ind := range req.Indicators {
			if m := a.spawn(ind); m != nil {
				st.Monsters = append(st.Monsters, m)
			}
		}
		logging.Log.Debugf("replication: materialized %d monsters in %v for %s", len(st.Monsters), key, req.PlayerID)
	}

	kind := MonstersBackground
	if key == req.Current {
		kind = MonstersLive
	}
	a.limiter.Touch(key, kind, now)
	a.limiter.Touch(key, Items, now)
	a.publishMonsters(key, st, key != req.Current)
	a.publishItems(key, st.Items)
	return key, true
}

// Forget 房间被清理：丢弃存档中的怪物与子弹，保留物件
func (a *Authority) Forget(key dungeon.ChamberKey) {
	if st, ok := a.store[key]; ok {
		st.Monsters = nil
		st.Projectiles = nil
	}
}

// Reset 离开会话或换层时清空全部存档
func (a *Authority) Reset() {
	clear(a.store)
	a.acc = 0
	a.limiter.Reset()
}

func (a *Authority) publishMonsters(key dungeon.ChamberKey, st *sim.ChamberState, background bool) {
	a.send(protocol.EnemiesSync, protocol.EnemiesSyncPayload{
		Cell:       protocol.At(key),
		Enemies:    protocol.RecordMonsters(st.Monsters),
		Background: background,
	})
}

func (a *Authority) publishItems(key dungeon.ChamberKey, list []sim.Item) {
	a.send(protocol.ItemsSync, protocol.ItemsSyncPayload{Cell: protocol.At(key), Items: protocol.RecordItems(list)})
}

// send 发布失败只记日志，下一次发布会覆盖
func (a *Authority) send(event protocol.Event, payload any) {
	if a.pub == nil {
		return
	}
	if err := a.pub.Publish(a.topic, event, payload); err != nil {
		logging.Log.Debugf("replication: publish %s: %v", event, err)
	}
}

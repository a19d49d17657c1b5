// Package protocol 广播频道上的事件目录与载荷
//
// 所有载荷都是 JSON 对象；字段缺失时接收方视为本帧无操作，因此可选字段一律用指针。
package protocol

import (
	"dungeonsync/dungeon"
	"dungeonsync/sim"
)

// Event 事件名
type Event string

const (
	GameStarted      Event = "game_started"
	RoomChanged      Event = "room_changed"
	RoomCleared      Event = "room_cleared"
	PlayerUpdate     Event = "player_update"
	PlayerShot       Event = "player_shot"
	EnemiesSync      Event = "enemies_sync"
	EnemyBulletsSync Event = "enemy_bullets_sync"
	ItemsSync        Event = "items_sync"
	SpawnIndicators  Event = "spawn_indicators"
	RequestEnemySync Event = "request_enemy_sync"
	PlayerJoined     Event = "player_joined"
	PlayerLeft       Event = "player_left"
	ChatMessage      Event = "chat_message"
	ItemTaken        Event = "item_taken"
)

// Catalog 全部事件，按固定顺序
var Catalog = []Event{
	GameStarted, RoomChanged, RoomCleared, PlayerUpdate, PlayerShot,
	EnemiesSync, EnemyBulletsSync, ItemsSync, SpawnIndicators, RequestEnemySync,
	PlayerJoined, PlayerLeft, ChatMessage, ItemTaken,
}

// Known 是否为目录内事件
func (e Event) Known() bool {
	for _, c := range Catalog {
		if c == e {
			return true
		}
	}
	return false
}

// Cell 房间坐标，嵌入到按房间划分的载荷中
type Cell struct {
	GridX *int `json:"gridX,omitempty" jsonschema:"description=Chamber column"`
	GridY *int `json:"gridY,omitempty" jsonschema:"description=Chamber row"`
}

// At 由房间坐标构造
func At(k dungeon.ChamberKey) Cell {
	x, y := k.X, k.Y
	return Cell{GridX: &x, GridY: &y}
}

// Key 两个坐标都存在时才有效
func (c Cell) Key() (dungeon.ChamberKey, bool) {
	if c.GridX == nil || c.GridY == nil {
		return dungeon.ChamberKey{}, false
	}
	return dungeon.ChamberKey{X: *c.GridX, Y: *c.GridY}, true
}

// GameStartedPayload 新楼层：所有客户端用同一种子重新生成
type GameStartedPayload struct {
	Difficulty string `json:"difficulty,omitempty"`
	Seed       *int32 `json:"seed,omitempty" jsonschema:"description=Generator seed for the floor"`
	Floor      int    `json:"floor,omitempty"`
	HostID     string `json:"hostId,omitempty"`
}

// RoomChangedPayload 某玩家进入了某房间
type RoomChangedPayload struct {
	PlayerID string `json:"playerId"`
	Cell
}

// RoomClearedPayload 房间遭遇结束
type RoomClearedPayload struct {
	Cell
}

// PlayerUpdatePayload 玩家自身状态
type PlayerUpdatePayload struct {
	PlayerID  string   `json:"playerId"`
	Name      string   `json:"playerName,omitempty"`
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
	Angle     float64  `json:"angle,omitempty"`
	Health    *float64 `json:"health,omitempty"`
	MaxHealth *float64 `json:"maxHealth,omitempty"`
	Weapon    string   `json:"currentWeapon,omitempty"`
	Cell
}

// PlayerShotPayload 玩家开火，仅用于同房间的其他客户端显示
type PlayerShotPayload struct {
	PlayerID string        `json:"playerId"`
	Bullet   *BulletRecord `json:"bullet,omitempty"`
	Cell
}

// EnemiesSyncPayload 一个房间的怪物列表快照
type EnemiesSyncPayload struct {
	Enemies    []MonsterRecord `json:"enemies"`
	Background bool            `json:"background,omitempty" jsonschema:"description=Snapshot of a chamber the authority is not in"`
	Cell
}

// EnemyBulletsSyncPayload 一个房间的敌方子弹
type EnemyBulletsSyncPayload struct {
	Bullets []BulletRecord `json:"bullets"`
	Cell
}

// ItemsSyncPayload 一个房间的物件
type ItemsSyncPayload struct {
	Items []ItemRecord `json:"items"`
	Cell
}

// SpawnIndicatorsPayload 即将出现的怪物位置
type SpawnIndicatorsPayload struct {
	Indicators []IndicatorRecord `json:"indicators"`
	Cell
}

// RequestEnemySyncPayload 跟随端请求权威端立即发送房间快照
type RequestEnemySyncPayload struct {
	PlayerID   string            `json:"playerId"`
	Indicators []IndicatorRecord `json:"enemies,omitempty" jsonschema:"description=Locally shown spawn indicators the authority may materialize"`
	Cell
}

// PlayerJoinedPayload 新玩家加入会话
type PlayerJoinedPayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"playerName,omitempty"`
}

// PlayerLeftPayload 玩家离开会话
type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

// ChatMessagePayload 聊天
type ChatMessagePayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"playerName,omitempty"`
	Text     string `json:"message"`
}

// ItemTakenPayload 玩家拾取了房间里的共享物件，权威端据此从列表中移除
type ItemTakenPayload struct {
	PlayerID string       `json:"playerId"`
	X        float64      `json:"x"`
	Y        float64      `json:"y"`
	Kind     sim.ItemKind `json:"type"`
	Cell
}

// Payloads 事件到载荷类型的映射，用于 schema 导出与解码
func Payloads() map[Event]any {
	return map[Event]any{
		GameStarted:      &GameStartedPayload{},
		RoomChanged:      &RoomChangedPayload{},
		RoomCleared:      &RoomClearedPayload{},
		PlayerUpdate:     &PlayerUpdatePayload{},
		PlayerShot:       &PlayerShotPayload{},
		EnemiesSync:      &EnemiesSyncPayload{},
		EnemyBulletsSync: &EnemyBulletsSyncPayload{},
		ItemsSync:        &ItemsSyncPayload{},
		SpawnIndicators:  &SpawnIndicatorsPayload{},
		RequestEnemySync: &RequestEnemySyncPayload{},
		PlayerJoined:     &PlayerJoinedPayload{},
		PlayerLeft:       &PlayerLeftPayload{},
		ChatMessage:      &ChatMessagePayload{},
		ItemTaken:        &ItemTakenPayload{},
	}
}

package protocol

import (
	"github.com/invopop/jsonschema"
)

// Document 全部载荷的集合，只用于 schema 导出
type Document struct {
	Envelope         Envelope                `json:"envelope" jsonschema:"description=Frame exchanged with the relay"`
	GameStarted      GameStartedPayload      `json:"game_started"`
	RoomChanged      RoomChangedPayload      `json:"room_changed"`
	RoomCleared      RoomClearedPayload      `json:"room_cleared"`
	PlayerUpdate     PlayerUpdatePayload     `json:"player_update"`
	PlayerShot       PlayerShotPayload       `json:"player_shot"`
	EnemiesSync      EnemiesSyncPayload      `json:"enemies_sync"`
	EnemyBulletsSync EnemyBulletsSyncPayload `json:"enemy_bullets_sync"`
	ItemsSync        ItemsSyncPayload        `json:"items_sync"`
	SpawnIndicators  SpawnIndicatorsPayload  `json:"spawn_indicators"`
	RequestEnemySync RequestEnemySyncPayload `json:"request_enemy_sync"`
	PlayerJoined     PlayerJoinedPayload     `json:"player_joined"`
	PlayerLeft       PlayerLeftPayload       `json:"player_left"`
	ChatMessage      ChatMessagePayload      `json:"chat_message"`
	ItemTaken        ItemTakenPayload        `json:"item_taken"`
}

// Schema 反射生成事件目录的 JSON Schema
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(Document))
	schema.Title = "dungeonsync broadcast catalog"
	schema.Description = "Payloads published on a session topic, keyed by event name"
	return schema
}

package server

import (
	"encoding/json"
	"net/http"

	"dungeonsync/logging"
	"dungeonsync/protocol"
)

type configPatch struct {
	MaxPublishesPerTick *int     `json:"maxPublishesPerTick,omitempty"`
	SimulateDelayMinMs  *int     `json:"simulateDelayMinMs,omitempty"`
	SimulateDelayMaxMs  *int     `json:"simulateDelayMaxMs,omitempty"`
	SimulateDropProb    *float64 `json:"simulateDropProb,omitempty"`
}

func (p configPatch) apply(cfg RoomConfig) RoomConfig {
	if p.MaxPublishesPerTick != nil {
		cfg.MaxPublishesPerTick = *p.MaxPublishesPerTick
	}
	if p.SimulateDelayMinMs != nil {
		cfg.SimulateDelayMinMs = *p.SimulateDelayMinMs
	}
	if p.SimulateDelayMaxMs != nil {
		cfg.SimulateDelayMaxMs = *p.SimulateDelayMaxMs
	}
	if p.SimulateDropProb != nil {
		cfg.SimulateDropProb = *p.SimulateDropProb
	}
	if cfg.SimulateDelayMaxMs < cfg.SimulateDelayMinMs {
		cfg.SimulateDelayMaxMs = cfg.SimulateDelayMinMs
	}
	return cfg
}

// HandleAdminConfig 提供转发规则的读取与更新（热更新）
// GET /admin/config?room=room:<id>  返回房间当前规则；不带 room 时为新房间默认规则
// POST /admin/config?room=room:<id> 以 JSON 载荷更新部分字段
func (m *RoomManager) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("room")
	var room *Room
	if topic != "" {
		var ok bool
		if room, ok = m.Get(topic); !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
	}
	current := func() RoomConfig {
		if room != nil {
			return room.Config()
		}
		return m.Defaults()
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, current())
	case http.MethodPost:
		var body configPatch
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.SimulateDropProb != nil && (*body.SimulateDropProb < 0 || *body.SimulateDropProb > 1) {
			http.Error(w, "simulateDropProb must be within [0,1]", http.StatusBadRequest)
			return
		}
		cfg := body.apply(current())
		if room != nil {
			room.SetConfig(cfg)
		} else {
			m.SetDefaults(cfg)
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		logging.Log.Infof("config updated: room=%q maxPublishesPerTick=%d delay=[%d,%d] drop=%.2f",
			topic, cfg.MaxPublishesPerTick, cfg.SimulateDelayMinMs, cfg.SimulateDelayMaxMs, cfg.SimulateDropProb)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出房间运行指标
// GET /metrics?room=room:<id>；不带 room 时输出全部房间
func (m *RoomManager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if topic := r.URL.Query().Get("room"); topic != "" {
		room, ok := m.Get(topic)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, roomMetrics(room))
		return
	}
	var rooms []map[string]any
	for _, topic := range m.Topics() {
		if room, ok := m.Get(topic); ok {
			rooms = append(rooms, roomMetrics(room))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func roomMetrics(room *Room) map[string]any {
	return map[string]any{
		"room":        room.Topic,
		"tick":        room.tickSeq.Load(),
		"subscribers": room.Members(),
		"metrics":     room.metrics.Snapshot(),
	}
}

// HandleSchema 输出广播事件目录的 JSON Schema
func HandleSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, protocol.Schema())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"dungeonsync/directory"
	"dungeonsync/logging"
)

// roomLister 可选：能列出全部房间的目录实现
type roomLister interface {
	Rooms() []directory.Room
}

// DirectoryAPI 将会话目录暴露为 /rooms HTTP 接口
type DirectoryAPI struct {
	dir directory.Directory
}

func NewDirectoryAPI(dir directory.Directory) *DirectoryAPI {
	return &DirectoryAPI{dir: dir}
}

// Register 挂载路由
func (a *DirectoryAPI) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /rooms", a.createRoom)
	mux.HandleFunc("GET /rooms", a.findRoom)
	mux.HandleFunc("DELETE /rooms/{id}", a.deleteRoom)
	mux.HandleFunc("PUT /rooms/{id}/status", a.setStatus)
	mux.HandleFunc("POST /rooms/{id}/players", a.addPlayer)
	mux.HandleFunc("GET /rooms/{id}/players", a.listPlayers)
	mux.HandleFunc("DELETE /rooms/{id}/players/{player}", a.removePlayer)
}

func (a *DirectoryAPI) createRoom(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code       string `json:"roomCode"`
		Difficulty string `json:"difficulty"`
		HostID     string `json:"hostId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	id, err := a.dir.CreateRoom(r.Context(), body.Code, body.Difficulty, body.HostID)
	if err != nil {
		writeError(w, err)
		return
	}
	logging.Log.Infof("directory: room %s created code=%s host=%s", id, body.Code, body.HostID)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// findRoom GET /rooms?code=；不带 code 时列出全部房间
func (a *DirectoryAPI) findRoom(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		l, ok := a.dir.(roomLister)
		if !ok {
			writeError(w, fmt.Errorf("%w: code is required", directory.ErrInvalid))
			return
		}
		writeJSON(w, http.StatusOK, l.Rooms())
		return
	}
	room, ok, err := a.dir.FindRoom(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", directory.ErrRoomNotFound, directory.NormalizeCode(code)))
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *DirectoryAPI) deleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := a.dir.DeleteRoom(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *DirectoryAPI) setStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status directory.Status `json:"status"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := a.dir.SetStatus(r.Context(), r.PathValue("id"), body.Status); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *DirectoryAPI) addPlayer(w http.ResponseWriter, r *http.Request) {
	var row directory.PlayerRow
	if !decodeBody(w, r, &row) {
		return
	}
	if err := a.dir.AddPlayer(r.Context(), r.PathValue("id"), row); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (a *DirectoryAPI) listPlayers(w http.ResponseWriter, r *http.Request) {
	rows, err := a.dir.ListPlayers(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []directory.PlayerRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *DirectoryAPI) removePlayer(w http.ResponseWriter, r *http.Request) {
	if err := a.dir.RemovePlayer(r.Context(), r.PathValue("id"), r.PathValue("player")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, fmt.Errorf("%w: %v", directory.ErrInvalid, err))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	kind, status := directory.KindOf(err)
	if status == http.StatusInternalServerError {
		logging.Log.Errorf("directory: %v", err)
	}
	writeJSON(w, status, directory.ErrorBody{Error: err.Error(), Kind: kind})
}

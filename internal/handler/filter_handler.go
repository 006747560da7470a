package handler

import (
	"encoding/json"
	"net/http"
)

// FilterSwitch はリプライフィルタの機能フラグインターフェース。
// filter.Coordinatorが実装する。設定は即座に以降の判定へ反映される。
type FilterSwitch interface {
	Enabled() bool
	SetEnabled(enabled bool)
}

// FilterHandler はリプライフィルタ機能フラグのHTTPハンドラー。
// フィルタの動作診断時に無効化するエスケープハッチとして使用する。
type FilterHandler struct {
	filter FilterSwitch
}

// NewFilterHandler はFilterHandlerを生成する。
func NewFilterHandler(filter FilterSwitch) *FilterHandler {
	return &FilterHandler{filter: filter}
}

// filterStateResponse はフィルタ状態のAPIレスポンス。
type filterStateResponse struct {
	Enabled bool `json:"enabled"`
}

// updateFilterRequest はフィルタ状態更新リクエストのボディ。
type updateFilterRequest struct {
	Enabled *bool `json:"enabled"`
}

// GetFilterState はフィルタの現在の状態を返す。
// GET /api/filter
func (h *FilterHandler) GetFilterState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, filterStateResponse{Enabled: h.filter.Enabled()})
}

// UpdateFilterState はフィルタの状態を切り替える。再起動不要で即座に反映される。
// PUT /api/filter
func (h *FilterHandler) UpdateFilterState(w http.ResponseWriter, r *http.Request) {
	var req updateFilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeInvalidRequestBody(w)
		return
	}

	h.filter.SetEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, filterStateResponse{Enabled: h.filter.Enabled()})
}

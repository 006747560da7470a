package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/crossfeed/internal/model"
	"github.com/hitoshi/crossfeed/internal/repository"
)

// FeedDetectorInterface はソースハンドラーが必要とするフィード検出インターフェース。
type FeedDetectorInterface interface {
	// DetectFeedURL は入力URLからRSS/AtomフィードのURLを検出する。
	DetectFeedURL(ctx context.Context, inputURL string) (string, error)
}

// SourceHandler はRSSソース管理のHTTPハンドラー。
type SourceHandler struct {
	repo     repository.SourceRepository
	detector FeedDetectorInterface
}

// NewSourceHandler はSourceHandlerを生成する。
func NewSourceHandler(repo repository.SourceRepository, detector FeedDetectorInterface) *SourceHandler {
	return &SourceHandler{repo: repo, detector: detector}
}

// createSourceRequest はRSSソース登録リクエストのボディ。
// URLはフィードURLそのものでも、フィードが検出可能なページのURLでもよい。
type createSourceRequest struct {
	URL string `json:"url"`
}

// sourceResponse はRSSソースのAPIレスポンス。
type sourceResponse struct {
	ID        string    `json:"id"`
	FeedURL   string    `json:"feed_url"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

func toSourceResponse(source *model.RSSSource) sourceResponse {
	return sourceResponse{
		ID:        source.ID,
		FeedURL:   source.FeedURL,
		Title:     source.Title,
		CreatedAt: source.CreatedAt,
	}
}

// ListSources はRSSソース一覧を返す。
// GET /api/sources
func (h *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.repo.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]sourceResponse, 0, len(sources))
	for i := range sources {
		resp = append(resp, toSourceResponse(&sources[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateSource はURLからフィードを検出してRSSソースを登録する。
// POST /api/sources
func (h *SourceHandler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	feedURL, err := h.detector.DetectFeedURL(r.Context(), req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	existing, err := h.repo.FindByFeedURL(r.Context(), feedURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if existing != nil {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewDuplicateSourceError())
		return
	}

	now := time.Now().UTC()
	source := &model.RSSSource{
		ID:        uuid.NewString(),
		FeedURL:   feedURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.repo.Create(r.Context(), source); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSourceResponse(source))
}

// DeleteSource はRSSソースを削除する。
// DELETE /api/sources/{id}
func (h *SourceHandler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	source, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if source == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSourceNotFoundError(id))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

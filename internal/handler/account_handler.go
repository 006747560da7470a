package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/crossfeed/internal/model"
	"github.com/hitoshi/crossfeed/internal/repository"
)

// AccountHandler は連携アカウント管理のHTTPハンドラー。
// アクセストークンの取得（OAuthフロー）は外部の責務であり、
// ここでは取得済みのトークンを登録・管理するだけ。
type AccountHandler struct {
	repo repository.AccountRepository
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(repo repository.AccountRepository) *AccountHandler {
	return &AccountHandler{repo: repo}
}

// createAccountRequest は連携アカウント登録リクエストのボディ。
type createAccountRequest struct {
	Platform    string `json:"platform"`
	InstanceURL string `json:"instance_url"`
	Handle      string `json:"handle"`
	AccountID   string `json:"account_id"`
	AccessToken string `json:"access_token"`
}

// accountResponse は連携アカウントのAPIレスポンス。
// アクセストークンはレスポンスに含めない。
type accountResponse struct {
	ID          string    `json:"id"`
	Platform    string    `json:"platform"`
	InstanceURL string    `json:"instance_url"`
	Handle      string    `json:"handle"`
	AccountID   string    `json:"account_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAccountResponse(account *model.LinkedAccount) accountResponse {
	return accountResponse{
		ID:          account.ID,
		Platform:    string(account.Platform),
		InstanceURL: account.InstanceURL,
		Handle:      account.Handle,
		AccountID:   account.AccountID,
		CreatedAt:   account.CreatedAt,
	}
}

// ListAccounts は連携アカウント一覧を返す。
// GET /api/accounts
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.repo.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		resp = append(resp, toAccountResponse(&accounts[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateAccount は連携アカウントを登録する。
// POST /api/accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	platform := model.Platform(req.Platform)
	if platform != model.PlatformMastodon && platform != model.PlatformBluesky {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPlatformError(req.Platform))
		return
	}
	if req.InstanceURL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("インスタンスURLが空です"))
		return
	}

	existing, err := h.repo.FindByPlatformAccount(r.Context(), platform, req.InstanceURL, req.AccountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if existing != nil {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewDuplicateAccountError())
		return
	}

	now := time.Now().UTC()
	account := &model.LinkedAccount{
		ID:          uuid.NewString(),
		Platform:    platform,
		InstanceURL: req.InstanceURL,
		Handle:      req.Handle,
		AccountID:   req.AccountID,
		AccessToken: req.AccessToken,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.repo.Create(r.Context(), account); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

// DeleteAccount は連携アカウントを削除する。
// DELETE /api/accounts/{id}
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	account, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if account == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAccountNotFoundError(id))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

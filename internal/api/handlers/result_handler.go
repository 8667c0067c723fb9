package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kiitris/kiitris-backend/internal/models"
	"github.com/kiitris/kiitris-backend/internal/services/result"
)

// ランキング取得件数
const (
	defaultResultLimit = 50
	maxResultLimit     = 100
)

// ResultHandler はゲーム結果関連のハンドラーを管理する構造体です。
type ResultHandler struct {
	resultService result.ResultService
}

// NewResultHandler は新しいResultHandlerインスタンスを作成します。
func NewResultHandler(resultService result.ResultService) *ResultHandler {
	return &ResultHandler{
		resultService: resultService,
	}
}

// parseLimit は limit クエリを 1..100 の範囲で解釈します。範囲外や不正な値はデフォルトの50件です。
func parseLimit(raw string) int {
	if raw == "" {
		return defaultResultLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > maxResultLimit {
		return defaultResultLimit
	}
	return limit
}

// writeServiceError はサービスのエラーをHTTPステータスに変換します。
func writeServiceError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, result.ErrStorageUnavailable) {
		WriteErrorResponse(w, http.StatusServiceUnavailable, "ランキングは現在利用できません")
		return
	}
	log.Printf("[ResultHandler] %s: %v", message, err)
	WriteErrorResponse(w, http.StatusInternalServerError, message)
}

// GetTopResults は上位ランキングを取得するハンドラーです。
// GET /api/results?limit=50
func (h *ResultHandler) GetTopResults(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))

	results, err := h.resultService.GetLeaderboard(limit)
	if err != nil {
		writeServiceError(w, err, "ゲーム結果取得に失敗しました")
		return
	}

	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"results": results,
	})
}

// GetUserResult は指定したユーザーのランキングを取得するハンドラーです。
// GET /api/results/user/{userID}
func (h *ResultHandler) GetUserResult(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	if userID == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "user_idが指定されていません")
		return
	}

	userResult, err := h.resultService.GetUserRanking(userID)
	if err != nil {
		writeServiceError(w, err, "ユーザー結果取得に失敗しました")
		return
	}

	if userResult == nil {
		WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"result":  nil,
			"message": "ユーザーのスコアが見つかりません",
		})
		return
	}

	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  userResult,
	})
}

// PostScore は外部で送信済みのスコアメモを記録するハンドラーです。
// POST /api/protected/results  body: {"memo": "...", "tx_hash": "..."}
func (h *ResultHandler) PostScore(w http.ResponseWriter, r *http.Request) {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, "未認証: ユーザーIDが見つかりません")
		return
	}

	var req models.ResultRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "無効なリクエストボディです")
		return
	}

	saved, err := h.resultService.SubmitMemo(r.Context(), userID, req.Memo, req.TxHash)
	if errors.Is(err, models.ErrInvalidMemo) {
		WriteErrorResponse(w, http.StatusBadRequest, "スコアメモの形式が正しくありません")
		return
	}
	if err != nil {
		writeServiceError(w, err, "スコア保存に失敗しました")
		return
	}

	// 報酬トークン発行用のメモはクライアントが署名して送信する
	reward := models.NewRewardMemo(saved.Score, saved.CreatedAt)
	WriteJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"result":  saved,
		"reward":  reward,
	})
}

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket" // WebSocketライブラリ

	"github.com/kiitris/kiitris-backend/internal/api/middleware"
	"github.com/kiitris/kiitris-backend/internal/services/tetris" // SessionManager をインポート
)

// authTimeout は接続後、認証メッセージを待つ時間です。
const authTimeout = 10 * time.Second

// GameHandler はゲーム関連のHTTPリクエスト（セッション作成、取得、終了、WebSocket接続）を処理します。
type GameHandler struct {
	sessionManager *tetris.SessionManager // ゲームセッションの管理サービス
	auth           *middleware.Authenticator
	upgrader       websocket.Upgrader
}

// NewGameHandler は新しい GameHandler インスタンスを作成します。
//
// Parameters:
//   sm             : セッションマネージャーへのポインタ
//   auth           : WebSocketの認証メッセージを検証する Authenticator
//   allowedOrigins : WebSocket接続を許可するオリジン（"*" ならすべて許可）
// Returns:
//   *GameHandler: 新しく作成された GameHandler のポインタ
func NewGameHandler(sm *tetris.SessionManager, auth *middleware.Authenticator, allowedOrigins []string) *GameHandler {
	return &GameHandler{
		sessionManager: sm,
		auth:           auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker はOriginヘッダーを許可リストと照合する関数を返します。
// Originヘッダーのないリクエスト（ブラウザ以外）は許可します。
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

type createGameRequest struct {
	Seed *int64 `json:"seed"`
}

type gameResponse struct {
	SessionID string          `json:"session_id"`
	State     tetris.Snapshot `json:"state"`
}

// CreateGame は新しいゲームセッションを作成するためのHTTPハンドラーです。
// POST /api/protected/games  body: {"seed": 42}（省略可）
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, "未認証: ユーザーIDが見つかりません")
		return
	}

	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteErrorResponse(w, http.StatusBadRequest, "リクエストボディのパースに失敗しました")
		return
	}

	sessionID, err := h.sessionManager.CreateSession(userID, req.Seed)
	if errors.Is(err, tetris.ErrTooManySessions) {
		WriteErrorResponse(w, http.StatusServiceUnavailable, "現在ゲームを開始できません。しばらくしてから再度お試しください")
		return
	}
	if err != nil {
		log.Printf("[GameHandler] Failed to create session for user %s: %v", userID, err)
		WriteErrorResponse(w, http.StatusInternalServerError, "セッションの作成に失敗しました")
		return
	}

	session, ok := h.sessionManager.GetSession(sessionID)
	if !ok {
		WriteErrorResponse(w, http.StatusInternalServerError, "セッションの作成に失敗しました")
		return
	}
	WriteJSONResponse(w, http.StatusCreated, gameResponse{SessionID: sessionID, State: session.Snapshot()})
}

// ownedSession はURLのセッションを取得し、認証済みユーザーのものか確認します。
// 問題があればエラーレスポンスを書き込み、ok=false を返します。
func (h *GameHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*tetris.Session, bool) {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, "未認証: ユーザーIDが見つかりません")
		return nil, false
	}

	sessionID := mux.Vars(r)["sessionID"]
	session, ok := h.sessionManager.GetSession(sessionID)
	if !ok {
		WriteErrorResponse(w, http.StatusNotFound, "指定されたセッションは見つかりませんでした")
		return nil, false
	}
	if session.UserID != userID {
		WriteErrorResponse(w, http.StatusForbidden, "他のユーザーのセッションにはアクセスできません")
		return nil, false
	}
	return session, true
}

// GetGame はセッションの現在のスナップショットを返します。
// GET /api/protected/games/{sessionID}
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	WriteJSONResponse(w, http.StatusOK, gameResponse{SessionID: session.ID, State: session.Snapshot()})
}

// EndGame はセッションを終了します。
// DELETE /api/protected/games/{sessionID}
func (h *GameHandler) EndGame(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	if err := h.sessionManager.EndSession(session.ID); err != nil {
		if errors.Is(err, tetris.ErrSessionNotFound) {
			WriteErrorResponse(w, http.StatusNotFound, "指定されたセッションは見つかりませんでした")
			return
		}
		log.Printf("[GameHandler] Failed to end session %s: %v", session.ID, err)
		WriteErrorResponse(w, http.StatusInternalServerError, "セッションの終了に失敗しました")
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"session_id": session.ID, "message": "セッションを終了しました"})
}

type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// HandleWebSocketConnection はHTTP接続をWebSocketプロトコルにアップグレードし、
// 認証メッセージを確認してから接続をセッションマネージャーに引き渡します。
// GET /ws/games/{sessionID}
func (h *GameHandler) HandleWebSocketConnection(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	if _, ok := h.sessionManager.GetSession(sessionID); !ok {
		WriteErrorResponse(w, http.StatusNotFound, "指定されたセッションは見つかりませんでした")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[GameHandler] Failed to upgrade to websocket for session %s: %v", sessionID, err)
		return // アップグレード失敗時はUpgraderがレスポンスを書き込む
	}

	// 最初のメッセージは認証メッセージでなければならない
	conn.SetReadDeadline(time.Now().Add(authTimeout))
	var msg authMessage
	if err := conn.ReadJSON(&msg); err != nil {
		log.Printf("[GameHandler] Failed to read auth message: %v", err)
		conn.Close()
		return
	}
	if msg.Type != "auth" {
		log.Printf("[GameHandler] Unexpected message type: %s", msg.Type)
		rejectConnection(conn, "Expected auth message")
		return
	}

	userID, err := h.auth.ParseUserID(msg.Token)
	if err != nil {
		log.Printf("[GameHandler] WebSocket auth failed for session %s: %v", sessionID, err)
		rejectConnection(conn, "Invalid token")
		return
	}

	// タイムアウトを解除
	conn.SetReadDeadline(time.Time{})
	if err := conn.WriteJSON(map[string]string{"type": "auth_success", "message": "Authentication successful"}); err != nil {
		conn.Close()
		return
	}

	if err := h.sessionManager.RegisterClient(sessionID, userID, conn); err != nil {
		log.Printf("[GameHandler] Failed to register client %s to session %s: %v", userID, sessionID, err)
		rejectConnection(conn, err.Error())
		return
	}
	// 以降の読み書きは SessionManager の readPump / writePump が担当する
}

func rejectConnection(conn *websocket.Conn, message string) {
	conn.WriteJSON(map[string]string{"type": "error", "error": message})
	conn.Close()
}

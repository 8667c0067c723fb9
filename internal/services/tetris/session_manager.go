package tetris

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket" // WebSocketライブラリのインポート

	"github.com/kiitris/kiitris-backend/internal/models"
	"github.com/kiitris/kiitris-backend/internal/models/tetris"
)

// WebSocket接続の設定
const (
	writeWait      = 10 * time.Second  // 1メッセージの書き込みタイムアウト
	pongWait       = 300 * time.Second // Pongを待つ時間
	pingPeriod     = 60 * time.Second  // Pingの送信間隔（pongWaitより短くすること）
	maxMessageSize = 1024              // クライアントから受け取るメッセージの上限
	sendBufferSize = 64
	commandBuffer  = 64
	recordTimeout  = 10 * time.Second
)

// actionResync は現在の状態を updates に流し直す内部コマンドです。Submit では受け付けません。
const actionResync = "resync"

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionClosed    = errors.New("session closed")
	ErrTooManySessions  = errors.New("too many active sessions")
	ErrCommandQueueFull = errors.New("command queue is full")
	ErrNotSessionOwner  = errors.New("user does not own this session")
)

// ResultRecorder はゲームオーバー時の最終結果を保存します。
type ResultRecorder interface {
	RecordResult(ctx context.Context, sessionID, userID string, result models.GameResult) error
}

// Client はWebSocket接続を持つ単一のクライアントを表します。
type Client struct {
	UserID    string          // このクライアントに紐づくユーザーのID
	SessionID string          // このクライアントが見ているセッションのID
	Conn      *websocket.Conn // クライアントとの実際のWebSocketコネクション
	Send      chan []byte     // クライアントへメッセージを送信するためのバッファ付きチャネル
	closed    bool            // チャネルが閉じられたかどうかのフラグ
	mu        sync.Mutex      // closedフラグ保護用
}

// SafeSend は安全にチャネルにメッセージを送信します（closedチェック付き）
func (c *Client) SafeSend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false // 既に閉じられている
	}

	select {
	case c.Send <- message:
		return true
	default:
		return false // チャネルがフル
	}
}

// SafeClose は安全にチャネルを閉じます
func (c *Client) SafeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

// ServerMessage はクライアントへ送るメッセージです。
type ServerMessage struct {
	Type      string    `json:"type"` // "state" または "error"
	SessionID string    `json:"session_id"`
	State     *Snapshot `json:"state,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// InputMessage はクライアントから受け取る操作メッセージです。
type InputMessage struct {
	Action string `json:"action"`
}

// Session は1人のプレイヤーのゲームを動かします。
// Game は run ゴルーチンだけが触ります。外からは Submit と Snapshot を使ってください。
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	game         *Game
	newGenerator func() *tetris.Generator
	dropSpeed    func(level int) time.Duration
	onGameOver   func(s *Session, result models.GameResult)
	pending      *models.GameResult // 遷移中に発生したゲームオーバー

	commands chan string
	updates  chan Snapshot // 最新のスナップショットだけを保持
	done     chan struct{}
	finished chan struct{}
	once     sync.Once

	mu     sync.RWMutex
	latest Snapshot
}

func newSession(id, userID string, newGenerator func() *tetris.Generator, dropSpeed func(int) time.Duration, onGameOver func(*Session, models.GameResult)) *Session {
	s := &Session{
		ID:           id,
		UserID:       userID,
		CreatedAt:    time.Now(),
		newGenerator: newGenerator,
		dropSpeed:    dropSpeed,
		onGameOver:   onGameOver,
		commands:     make(chan string, commandBuffer),
		updates:      make(chan Snapshot, 1),
		done:         make(chan struct{}),
		finished:     make(chan struct{}),
	}
	s.reset()
	return s
}

// reset は新しい Game を作って最初のピースを出現させます。
func (s *Session) reset() {
	s.game = NewGame(s.newGenerator(), func(result models.GameResult) {
		r := result
		s.pending = &r
	})
	s.game.Spawn()
	s.publish()
}

// Submit はアクションをセッションのキューに積みます。
//
// Parameters:
//   action : "move_left" などのアクション名
// Returns:
//   error: 未知のアクション、終了済みのセッション、キューが満杯の場合
func (s *Session) Submit(action string) error {
	if !IsValidAction(action) {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.commands <- action:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// resync は現在の状態をイベントループから公開し直すよう依頼します。
// 公開はセッションのゴルーチンで行われるので、それまでの更新より後に届きます。
func (s *Session) resync() {
	select {
	case s.commands <- actionResync:
	case <-s.done:
	}
}

// Snapshot は最後に公開されたスナップショットを返します。
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Updates は遷移のたびに公開されるスナップショットのチャネルです。
// 読み手が遅れた場合は古いスナップショットが捨てられます。
func (s *Session) Updates() <-chan Snapshot {
	return s.updates
}

// Done はセッションが閉じられると閉じるチャネルを返します。
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.once.Do(func() { close(s.done) })
}

// publish は現在の状態のスナップショットを保存し、updates に流します。
func (s *Session) publish() {
	snap := s.game.Snapshot()

	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()

	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- snap:
	default:
	}
}

// run はセッションのイベントループです。入力と自動落下のティックをここで直列化します。
func (s *Session) run() {
	defer close(s.finished)

	timer := time.NewTimer(s.dropSpeed(s.game.State().Level))
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return
		case action := <-s.commands:
			s.handleCommand(action, timer)
		case <-timer.C:
			if s.game.Tick() {
				s.publish()
			}
			s.armTimer(timer, s.dropSpeed(s.game.State().Level))
		}
		s.flushGameOver()
	}
}

func (s *Session) handleCommand(action string, timer *time.Timer) {
	switch action {
	case actionResync:
		s.publish()
		return
	case ActionRestart:
		s.reset()
		s.armTimer(timer, s.dropSpeed(s.game.State().Level))
		return
	}

	changed, err := ApplyPlayerInput(s.game, action)
	if err != nil {
		log.Printf("[Session %s] Rejected action %q: %v", s.ID, action, err)
		return
	}

	// ハードドロップは既に着地済みでも次のティックで固定する
	if action == ActionHardDrop {
		s.armTimer(timer, HardDropLockDelay)
	}
	if !changed {
		return
	}

	state := s.game.State()
	if action == ActionTogglePause || state.IsGameOver {
		s.armTimer(timer, s.dropSpeed(state.Level))
	}
	s.publish()
}

// armTimer はタイマーを止めてから d 後に再設定します。一時停止中とゲームオーバー後は止めたままにします。
func (s *Session) armTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	state := s.game.State()
	if state.IsPaused || state.IsGameOver {
		return
	}
	timer.Reset(d)
}

// flushGameOver は遷移の外でゲームオーバーを通知します。
func (s *Session) flushGameOver() {
	if s.pending == nil {
		return
	}
	result := *s.pending
	s.pending = nil
	if s.onGameOver != nil {
		s.onGameOver(s, result)
	}
}

// SessionManager はゲームセッションとWebSocketクライアント接続の全体を管理します。
// これはアプリケーション内でシングルトンとして動作することが想定されます。
type SessionManager struct {
	sessions    map[string]*Session // sessionID -> Session
	clients     map[string]*Client  // sessionID -> そのセッションを見ているクライアント
	mu          sync.RWMutex        // sessions と clients マップへのアクセスを保護するためのRWMutex
	recorder    ResultRecorder      // ゲーム結果の保存先（nilなら保存しない）
	maxSessions int
	dropSpeed   func(level int) time.Duration
	recordings  sync.WaitGroup
}

// NewSessionManager は新しい SessionManager インスタンスを作成します。
//
// Parameters:
//   recorder    : ゲーム結果の保存先（nil可）
//   maxSessions : 同時に存在できるセッション数（0以下なら無制限）
// Returns:
//   *SessionManager: 初期化されたセッションマネージャーのポインタ
func NewSessionManager(recorder ResultRecorder, maxSessions int) *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*Session),
		clients:     make(map[string]*Client),
		recorder:    recorder,
		maxSessions: maxSessions,
		dropSpeed:   DropSpeed,
	}
}

// CreateSession は新しいゲームセッションを作成し、イベントループを開始します。
//
// Parameters:
//   userID : プレイヤーのユーザーID
//   seed   : ピース生成のシード（nilなら現在時刻）。リスタート時も同じシードを使います
// Returns:
//   string: 作成されたセッションのID
//   error : セッション数が上限に達している場合
func (sm *SessionManager) CreateSession(userID string, seed *int64) (string, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		log.Printf("[SessionManager] Refusing new session for user %s: %d sessions active", userID, len(sm.sessions))
		return "", ErrTooManySessions
	}

	sessionID := uuid.New().String()
	newGenerator := func() *tetris.Generator {
		if seed != nil {
			return tetris.NewSeededGenerator(*seed)
		}
		return tetris.NewSeededGenerator(time.Now().UnixNano())
	}

	session := newSession(sessionID, userID, newGenerator, sm.dropSpeed, sm.handleGameOver)
	sm.sessions[sessionID] = session

	go session.run()
	go sm.forward(session)

	log.Printf("[SessionManager] Session %s created for user %s", sessionID, userID)
	return sessionID, nil
}

// GetSession は指定されたIDのセッションを取得します。
func (sm *SessionManager) GetSession(sessionID string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[sessionID]
	return session, ok
}

// SessionCount は現在のセッション数を返します。
func (sm *SessionManager) SessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// handleGameOver はセッションのゴルーチンから、ゲームオーバーの遷移が終わった後に呼ばれます。
func (sm *SessionManager) handleGameOver(s *Session, result models.GameResult) {
	log.Printf("[SessionManager] Game over in session %s (user %s): score=%d lines=%d level=%d",
		s.ID, s.UserID, result.Score, result.Lines, result.Level)
	if sm.recorder == nil {
		return
	}

	sm.recordings.Add(1)
	go func() {
		defer sm.recordings.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := sm.recorder.RecordResult(ctx, s.ID, s.UserID, result); err != nil {
			log.Printf("[SessionManager] Failed to record result for session %s: %v", s.ID, err)
		}
	}()
}

// forward はセッションのスナップショットを接続中のクライアントへ送り続けます。
func (sm *SessionManager) forward(s *Session) {
	for {
		select {
		case <-s.done:
			return
		case snap := <-s.updates:
			sm.sendSnapshot(s.ID, snap)
		}
	}
}

func (sm *SessionManager) sendSnapshot(sessionID string, snap Snapshot) {
	sm.mu.RLock()
	client, ok := sm.clients[sessionID]
	sm.mu.RUnlock()
	if !ok {
		return
	}

	message, err := json.Marshal(ServerMessage{Type: "state", SessionID: sessionID, State: &snap})
	if err != nil {
		log.Printf("[SessionManager] Error marshaling snapshot for session %s: %v", sessionID, err)
		return
	}
	if !client.SafeSend(message) {
		log.Printf("[SessionManager] Failed to send to client %s (channel closed or full)", client.UserID)
	}
}

func (sm *SessionManager) sendError(client *Client, message string) {
	payload, err := json.Marshal(ServerMessage{Type: "error", SessionID: client.SessionID, Error: message})
	if err != nil {
		return
	}
	client.SafeSend(payload)
}

// RegisterClient は新しいWebSocket接続をセッションに登録し、読み書きのゴルーチンを開始します。
// 同じセッションに既存の接続があれば置き換えます。
//
// Parameters:
//   sessionID : クライアントが参加するセッションのID
//   userID    : 認証済みのユーザーID
//   conn      : WebSocketコネクション
// Returns:
//   error: セッションが存在しない、または他人のセッションの場合
func (sm *SessionManager) RegisterClient(sessionID, userID string, conn *websocket.Conn) error {
	sm.mu.Lock()
	session, ok := sm.sessions[sessionID]
	if !ok {
		sm.mu.Unlock()
		return ErrSessionNotFound
	}
	if session.UserID != userID {
		sm.mu.Unlock()
		return ErrNotSessionOwner
	}

	// 既存の接続があれば先にクリーンアップ（再接続対応）
	if existing, exists := sm.clients[sessionID]; exists {
		log.Printf("[SessionManager] Replacing existing connection for session %s", sessionID)
		existing.SafeClose()
	}

	client := &Client{
		UserID:    userID,
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, sendBufferSize),
	}
	sm.clients[sessionID] = client
	sm.mu.Unlock()

	go sm.readPump(client, session)
	go client.writePump()

	// 接続直後の状態も forward 経由で送り、古いスナップショットが後から届かないようにする
	session.resync()

	log.Printf("[SessionManager] Client %s registered for session %s", userID, sessionID)
	return nil
}

// unregisterClient はクライアントが現在の登録と同じ場合だけ登録を解除します。
func (sm *SessionManager) unregisterClient(client *Client) {
	sm.mu.Lock()
	if current, ok := sm.clients[client.SessionID]; ok && current == client {
		delete(sm.clients, client.SessionID)
		log.Printf("[SessionManager] Client unregistered: %s (Session: %s)", client.UserID, client.SessionID)
	}
	sm.mu.Unlock()
	client.SafeClose()
}

// readPump はクライアントからのWebSocketメッセージを読み込み、セッションにアクションを送ります。
func (sm *SessionManager) readPump(client *Client, session *Session) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SessionManager] Panic in readPump for user %s: %v", client.UserID, r)
		}
		sm.unregisterClient(client)
		if err := client.Conn.Close(); err != nil {
			log.Printf("[SessionManager] Error closing WebSocket connection for user %s: %v", client.UserID, err)
		}
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[SessionManager] WebSocket unexpected close error for user %s: %v", client.UserID, err)
			}
			return
		}
		if len(message) == 0 {
			continue
		}

		var input InputMessage
		if err := json.Unmarshal(message, &input); err != nil {
			log.Printf("[SessionManager] Failed to unmarshal input message from %s: %v", client.UserID, err)
			sm.sendError(client, "invalid message")
			continue
		}

		if err := session.Submit(input.Action); err != nil {
			if errors.Is(err, ErrSessionClosed) {
				return
			}
			sm.sendError(client, err.Error())
		}
	}
}

// writePump は Client の Send チャネルからのメッセージをWebSocketコネクションに書き込みます。
// クライアントごとにこのゴルーチンが動作します。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// マネージャーがチャネルを閉じた場合 (置き換えやセッション終了時)
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[Client] Error writing message for user %s: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			// ピングメッセージを定期的に送信してコネクションの生存確認
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[Client] Error sending ping for user %s: %v", c.UserID, err)
				return
			}
		}
	}
}

// EndSession はセッションのイベントループを止め、クライアントを切断してセッションを削除します。
//
// Parameters:
//   sessionID : 終了するセッションのID
// Returns:
//   error: セッションが存在しない場合 ErrSessionNotFound
func (sm *SessionManager) EndSession(sessionID string) error {
	sm.mu.Lock()
	session, ok := sm.sessions[sessionID]
	if !ok {
		sm.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(sm.sessions, sessionID)
	client, hasClient := sm.clients[sessionID]
	delete(sm.clients, sessionID)
	sm.mu.Unlock()

	session.close()
	<-session.finished

	if hasClient {
		client.SafeClose()
	}
	log.Printf("[SessionManager] Session %s ended", sessionID)
	return nil
}

// Shutdown は全セッションを終了させ、保存中のゲーム結果を待ちます。
func (sm *SessionManager) Shutdown() {
	log.Printf("[SessionManager] シャットダウン開始...")

	sm.mu.RLock()
	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	sm.mu.RUnlock()

	for _, id := range ids {
		if err := sm.EndSession(id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			log.Printf("[SessionManager] Failed to end session %s: %v", id, err)
		}
	}
	sm.recordings.Wait()

	log.Printf("[SessionManager] シャットダウン完了")
}

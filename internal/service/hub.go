package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"voiceroom/internal/models"
)

// Session 代表一個 WebSocket 訂閱者連線
// 一個連線同時只訂閱一個房間，join_room 會自動離開先前的房間
type Session struct {
	Conn     *websocket.Conn          // WebSocket 連接
	UserID   uint                     // 用戶 ID
	roomID   uint                     // 目前訂閱的房間，0 表示尚未加入；由 hub 的鎖保護
	SendChan chan *models.ServerEvent // 事件發送通道，用於異步傳送事件
}

// queueDispatcher 是即時層需要的協調器操作
// REST handler 和 socket 走同一套協調器實作，不是兩條獨立的路徑
type queueDispatcher interface {
	Snapshot(roomID uint) (*RoomSnapshot, error)
	RequestToSpeak(roomID, userID uint) error
	AcceptSpeaker(roomID, hostID, targetID uint) error
	RemoveSpeaker(roomID, hostID, targetID uint) error
	RemoveSpeakerOnDisconnect(roomID, userID uint) error
}

// RealtimeHub 管理所有訂閱者連線並向房間扇出事件
// 以明確的建構與關閉取代惰性初始化的全域單例
type RealtimeHub struct {
	rooms    map[uint]map[*Session]bool // 兩層 map: roomID -> session -> bool
	roomsMux sync.RWMutex               // 用於保護 rooms map 的讀寫鎖
	closed   bool

	coordinator queueDispatcher
}

// NewRealtimeHub 創建並初始化新的即時訂閱中樞
func NewRealtimeHub() *RealtimeHub {
	return &RealtimeHub{
		rooms: make(map[uint]map[*Session]bool),
	}
}

// BindCoordinator 接上協調器；必須在處理任何連線之前呼叫
// (hub 與協調器互相依賴，兩者建構完成後才能綁定)
func (h *RealtimeHub) BindCoordinator(coordinator queueDispatcher) {
	h.coordinator = coordinator
}

// HandleSession 處理新的 WebSocket 連接請求，阻塞直到連線結束
func (h *RealtimeHub) HandleSession(conn *websocket.Conn, userID uint) {
	session := &Session{
		Conn:     conn,
		UserID:   userID,
		SendChan: make(chan *models.ServerEvent, 256), // 設置緩衝大小為 256 的事件通道
	}

	// 確保連接關閉時清理資源
	defer func() {
		roomID := h.removeSession(session)
		conn.Close()
		close(session.SendChan)

		// 斷線的發言者由協調器代為移除，避免幽靈發言者
		if roomID != 0 {
			if err := h.coordinator.RemoveSpeakerOnDisconnect(roomID, session.UserID); err != nil {
				log.Error().Err(err).Uint("room_id", roomID).Uint("user_id", session.UserID).
					Msg("failed to remove disconnected speaker")
			}
		}
	}()

	// 啟動讀寫處理
	go h.writePump(session)
	h.readPump(session)
}

// readPump 持續監聽並處理從客戶端接收的事件
func (h *RealtimeHub) readPump(session *Session) {
	session.Conn.SetReadLimit(4096) // 設置最大消息大小為 4KB
	session.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	session.Conn.SetPongHandler(func(string) error {
		session.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := session.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("websocket unexpected close error")
			}
			break
		}

		// 解析接收到的事件
		var event models.ClientEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Warn().Err(err).Msg("event parse error")
			h.trySend(session, models.NewErrorEvent("無法解析事件"))
			continue
		}

		// 進入協調器之前先在邊界驗證
		if err := event.Validate(); err != nil {
			h.trySend(session, models.NewErrorEvent(err.Error()))
			continue
		}

		h.dispatch(session, &event)
	}
}

// dispatch 把通過驗證的事件轉交給協調器
func (h *RealtimeHub) dispatch(session *Session, event *models.ClientEvent) {
	switch event.Type {
	case models.EventJoinRoom:
		h.joinRoom(session, event.RoomID)

	case models.EventRequestToSpeak:
		// 只能為自己申請發言
		if event.UserID != session.UserID {
			h.trySend(session, models.NewErrorEvent("只能為自己申請發言"))
			return
		}
		if err := h.coordinator.RequestToSpeak(event.RoomID, session.UserID); err != nil {
			h.trySend(session, models.NewErrorEvent(err.Error()))
		}

	case models.EventAcceptSpeaker:
		// 發送者是操作者，事件中的 user_id 是目標
		if err := h.coordinator.AcceptSpeaker(event.RoomID, session.UserID, event.UserID); err != nil {
			h.trySend(session, models.NewErrorEvent(err.Error()))
		}

	case models.EventRemoveSpeaker:
		if err := h.coordinator.RemoveSpeaker(event.RoomID, session.UserID, event.UserID); err != nil {
			h.trySend(session, models.NewErrorEvent(err.Error()))
		}
	}
}

// joinRoom 讓連線訂閱新房間並回傳完整快照
// 加入新房間會隱含離開先前訂閱的房間
//
// 先註冊再讀快照：註冊之後才提交的變更一定會廣播進這個連線的隊列，
// 而快照讀到的狀態至少和註冊之前的任何變更一樣新，
// 所以 INITIAL_STATE 加上後續事件必然收斂到權威狀態
func (h *RealtimeHub) joinRoom(session *Session, roomID uint) {
	h.roomsMux.Lock()
	if session.roomID != 0 {
		if sessions, ok := h.rooms[session.roomID]; ok {
			delete(sessions, session)
			if len(sessions) == 0 {
				delete(h.rooms, session.roomID)
			}
		}
	}
	session.roomID = roomID
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Session]bool)
	}
	h.rooms[roomID][session] = true
	h.roomsMux.Unlock()

	snapshot, err := h.coordinator.Snapshot(roomID)
	if err != nil {
		h.removeSession(session)
		h.trySend(session, models.NewErrorEvent("無法取得房間狀態"))
		return
	}

	h.trySend(session, models.NewInitialStateEvent(snapshot.Speakers, snapshot.Waitlist))

	log.Info().Uint("room_id", roomID).Uint("user_id", session.UserID).
		Msg("session joined room")
}

// writePump 處理向客戶端發送事件的邏輯
func (h *RealtimeHub) writePump(session *Session) {
	// 設置心跳檢查計時器
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-session.SendChan:
			// 設置寫入超時
			session.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				session.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// 獲取寫入器並發送事件
			w, err := session.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			// JSON 編碼
			eventBytes, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Msg("event encoding error")
				continue
			}

			if _, err := w.Write(eventBytes); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			// 發送心跳包
			session.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := session.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// BroadcastToRoom 向房間內的所有訂閱者廣播事件（包含發起操作的人）
//
// 發送必須在持有讀鎖時進行：SendChan 只會在 removeSession（寫鎖）
// 之後才被關閉，持鎖發送保證不會寫入已關閉的通道
func (h *RealtimeHub) BroadcastToRoom(roomID uint, event *models.ServerEvent) {
	var slow []*Session

	h.roomsMux.RLock()
	for session := range h.rooms[roomID] {
		select {
		case session.SendChan <- event:
			// 事件成功加入發送隊列
		default:
			slow = append(slow, session)
		}
	}
	h.roomsMux.RUnlock()

	// 客戶端事件隊列已滿，只關閉連接；清理（包含發言席移除）
	// 交給該連線自己的結束流程，重連後重新同步
	for _, session := range slow {
		session.Conn.Close()
	}
}

// trySend 對單一連線發送事件，隊列滿時直接丟棄
func (h *RealtimeHub) trySend(session *Session, event *models.ServerEvent) {
	select {
	case session.SendChan <- event:
	default:
	}
}

// removeSession 安全地移除連線，回傳它離開前訂閱的房間
func (h *RealtimeHub) removeSession(session *Session) uint {
	h.roomsMux.Lock()
	defer h.roomsMux.Unlock()

	roomID := session.roomID
	if sessions, ok := h.rooms[roomID]; ok {
		delete(sessions, session)
		// 如果房間空了，刪除房間
		if len(sessions) == 0 {
			delete(h.rooms, roomID)
		}
	}
	session.roomID = 0
	return roomID
}

// CountRoomSessions 獲取指定房間的在線連線數量
func (h *RealtimeHub) CountRoomSessions(roomID uint) int {
	h.roomsMux.RLock()
	defer h.roomsMux.RUnlock()

	return len(h.rooms[roomID])
}

// Shutdown 關閉所有連線，之後的連線請求不再被接受
func (h *RealtimeHub) Shutdown() {
	h.roomsMux.Lock()
	h.closed = true
	sessions := make([]*Session, 0)
	for _, roomSessions := range h.rooms {
		for session := range roomSessions {
			sessions = append(sessions, session)
		}
	}
	h.rooms = make(map[uint]map[*Session]bool)
	h.roomsMux.Unlock()

	for _, session := range sessions {
		session.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		session.Conn.Close()
	}

	log.Info().Int("sessions", len(sessions)).Msg("realtime hub shut down")
}

// Closed 回報 hub 是否已關閉
func (h *RealtimeHub) Closed() bool {
	h.roomsMux.RLock()
	defer h.roomsMux.RUnlock()
	return h.closed
}

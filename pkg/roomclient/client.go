// Package roomclient 實作房間狀態的客戶端同步協議。
//
// 連線或重連後，本地快取的清單一律視為不可信，
// 在收到 INITIAL_STATE 之前收到的增量事件直接丟棄，
// 改以重新請求快照的方式收斂。所有清單事件都是完整替換，
// 同一個事件套用兩次結果不變。
package roomclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"voiceroom/internal/models"
)

const (
	maxConnectAttempts = 3 // 重連次數上限，用完後回報連線失敗
	connectBackoff     = time.Second
)

// ErrConnectionFailed 重連次數用完後回報給呼叫端
var ErrConnectionFailed = errors.New("無法連上伺服器")

// State 房間的本地視圖，永遠是伺服器清單的完整替換
type State struct {
	Speakers []models.Speaker
	Waitlist []models.WaitlistEntry
}

// Client 訂閱單一房間並維護收斂後的本地狀態
type Client struct {
	url    string
	token  string
	roomID uint

	mu     sync.RWMutex
	conn   *websocket.Conn
	state  State
	synced bool // 是否已收到本次連線的 INITIAL_STATE
	err    error

	onChange func(State)
	closed   chan struct{}
	once     sync.Once
}

// New 創建房間客戶端；url 是伺服器的 websocket 端點 (ws://.../api/ws)
func New(url, token string, roomID uint) *Client {
	return &Client{
		url:    url,
		token:  token,
		roomID: roomID,
		closed: make(chan struct{}),
	}
}

// OnChange 註冊狀態變更回呼，必須在 Connect 之前設定
func (c *Client) OnChange(fn func(State)) {
	c.onChange = fn
}

// Connect 建立連線並開始同步，連不上時以退避重試到次數上限
func (c *Client) Connect() error {
	if err := c.dial(); err != nil {
		return err
	}
	go c.readLoop()
	return nil
}

func (c *Client) dial() error {
	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		conn, _, err := websocket.DefaultDialer.Dial(c.url+"?token="+c.token, nil)
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.synced = false // 重新連上後舊快取不可信
			c.mu.Unlock()

			if err := c.joinRoom(conn); err != nil {
				conn.Close()
				lastErr = err
				continue
			}
			return nil
		}
		lastErr = err

		log.Warn().Err(err).Int("attempt", attempt).Msg("connect failed")
		select {
		case <-c.closed:
			return ErrConnectionFailed
		case <-time.After(connectBackoff):
		}
	}
	return fmt.Errorf("%w: %v", ErrConnectionFailed, lastErr)
}

func (c *Client) joinRoom(conn *websocket.Conn) error {
	return conn.WriteJSON(&models.ClientEvent{
		Type:   models.EventJoinRoom,
		RoomID: c.roomID,
	})
}

func (c *Client) readLoop() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}

			// 斷線後重連並重新請求快照
			if err := c.dial(); err != nil {
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
				return
			}
			continue
		}

		var event models.ServerEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Warn().Err(err).Msg("event parse error")
			continue
		}

		c.apply(&event)
	}
}

// apply 套用伺服器事件；快照到達前的增量事件一律丟棄
func (c *Client) apply(event *models.ServerEvent) {
	c.mu.Lock()

	switch event.Type {
	case models.EventInitialState:
		c.state = State{Speakers: event.Speakers, Waitlist: event.Waitlist}
		c.synced = true

	case models.EventQueueUpdated:
		if !c.synced {
			c.mu.Unlock()
			return
		}
		c.state = State{Speakers: event.Speakers, Waitlist: event.Waitlist}

	case models.EventSpeakersUpdated:
		if !c.synced {
			c.mu.Unlock()
			return
		}
		c.state.Speakers = event.Speakers

	case models.EventWaitlistUpdated:
		if !c.synced {
			c.mu.Unlock()
			return
		}
		c.state.Waitlist = event.Waitlist

	default:
		// SPEAKER_REQUEST 等提示事件不影響本地狀態
		c.mu.Unlock()
		return
	}

	state := c.state
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}

// Speakers 回傳目前的發言席視圖
func (c *Client) Speakers() []models.Speaker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Speakers
}

// Waitlist 回傳目前的候位清單視圖
func (c *Client) Waitlist() []models.WaitlistEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Waitlist
}

// Synced 回報是否已收到本次連線的快照
func (c *Client) Synced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}

// Err 回傳終止同步的錯誤（若有）
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// RequestToSpeak 送出發言申請事件
func (c *Client) RequestToSpeak(userID uint) error {
	return c.send(&models.ClientEvent{
		Type:   models.EventRequestToSpeak,
		RoomID: c.roomID,
		UserID: userID,
	})
}

// AcceptSpeaker 主持人接受發言申請
func (c *Client) AcceptSpeaker(userID uint) error {
	return c.send(&models.ClientEvent{
		Type:   models.EventAcceptSpeaker,
		RoomID: c.roomID,
		UserID: userID,
	})
}

// RemoveSpeaker 主持人移除發言者
func (c *Client) RemoveSpeaker(userID uint) error {
	return c.send(&models.ClientEvent{
		Type:   models.EventRemoveSpeaker,
		RoomID: c.roomID,
		UserID: userID,
	})
}

func (c *Client) send(event *models.ClientEvent) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrConnectionFailed
	}
	return conn.WriteJSON(event)
}

// Close 結束同步並關閉連線
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.closed)
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	})
}

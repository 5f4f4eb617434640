package models

import (
	"errors"
	"time"
)

// 客戶端發出的事件名稱
const (
	EventJoinRoom       = "join_room"
	EventRequestToSpeak = "REQUEST_TO_SPEAK"
	EventAcceptSpeaker  = "ACCEPT_SPEAKER"
	EventRemoveSpeaker  = "REMOVE_SPEAKER"
)

// 伺服器推送的事件名稱
const (
	EventInitialState    = "INITIAL_STATE"
	EventSpeakerRequest  = "SPEAKER_REQUEST"
	EventSpeakersUpdated = "SPEAKERS_UPDATED"
	EventWaitlistUpdated = "WAITLIST_UPDATED"
	EventQueueUpdated    = "QUEUE_UPDATED"
	EventError           = "ERROR"
)

// ClientEvent 是客戶端經由 WebSocket 發出的事件
// 事件集合是封閉的，欄位在進入協調器之前先在邊界驗證
type ClientEvent struct {
	Type   string `json:"type"`
	RoomID uint   `json:"room_id"`
	UserID uint   `json:"user_id,omitempty"`
}

// Validate 檢查事件類型與必要欄位
func (e *ClientEvent) Validate() error {
	switch e.Type {
	case EventJoinRoom:
		if e.RoomID == 0 {
			return errors.New("join_room 需要 room_id")
		}
	case EventRequestToSpeak, EventAcceptSpeaker, EventRemoveSpeaker:
		if e.RoomID == 0 || e.UserID == 0 {
			return errors.New(e.Type + " 需要 room_id 與 user_id")
		}
	default:
		return errors.New("未知的事件類型: " + e.Type)
	}
	return nil
}

// ServerEvent 是伺服器推送給訂閱者的事件
// 清單欄位一律是完整替換，不是增量補丁，
// 所以同一個事件重複套用兩次不會改變結果
type ServerEvent struct {
	Type      string          `json:"type"`
	UserID    uint            `json:"user_id,omitempty"`
	Speakers  []Speaker       `json:"speakers,omitempty"`
	Waitlist  []WaitlistEntry `json:"waitlist,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewInitialStateEvent(speakers []Speaker, waitlist []WaitlistEntry) *ServerEvent {
	return &ServerEvent{
		Type:      EventInitialState,
		Speakers:  speakers,
		Waitlist:  waitlist,
		Timestamp: time.Now(),
	}
}

func NewSpeakerRequestEvent(userID uint) *ServerEvent {
	return &ServerEvent{
		Type:      EventSpeakerRequest,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func NewSpeakersUpdatedEvent(speakers []Speaker) *ServerEvent {
	return &ServerEvent{
		Type:      EventSpeakersUpdated,
		Speakers:  speakers,
		Timestamp: time.Now(),
	}
}

func NewWaitlistUpdatedEvent(waitlist []WaitlistEntry) *ServerEvent {
	return &ServerEvent{
		Type:      EventWaitlistUpdated,
		Waitlist:  waitlist,
		Timestamp: time.Now(),
	}
}

// NewQueueUpdatedEvent 是接受發言者時使用的合併事件，
// 兩份清單在同一筆交易中計算，用單一事件送出以避免被交錯觀察
func NewQueueUpdatedEvent(speakers []Speaker, waitlist []WaitlistEntry) *ServerEvent {
	return &ServerEvent{
		Type:      EventQueueUpdated,
		Speakers:  speakers,
		Waitlist:  waitlist,
		Timestamp: time.Now(),
	}
}

func NewErrorEvent(message string) *ServerEvent {
	return &ServerEvent{
		Type:      EventError,
		Message:   message,
		Timestamp: time.Now(),
	}
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// Speaker 表示目前可以在房間內發言的用戶
// (room_id, user_id) 的唯一索引是防止重複插入的最後防線，
// 正常情況下協調器的序列化已讓違反此約束的操作不可能發生。
// 索引連軟刪除的列也算在內，所以 repository 層的刪除一律是物理刪除
type Speaker struct {
	gorm.Model
	RoomID   uint `gorm:"uniqueIndex:idx_room_speaker;not null" json:"room_id"`
	UserID   uint `gorm:"uniqueIndex:idx_room_speaker;not null" json:"user_id"`
	Position int  `gorm:"not null" json:"position"` // 1 起算，連續無空洞
	Muted    bool `json:"muted"`
	User     User `gorm:"foreignKey:UserID" json:"user"`
}

// WaitlistEntry 表示已申請發言、等待主持人接受的用戶
type WaitlistEntry struct {
	gorm.Model
	RoomID      uint      `gorm:"uniqueIndex:idx_room_waitlist;not null" json:"room_id"`
	UserID      uint      `gorm:"uniqueIndex:idx_room_waitlist;not null" json:"user_id"`
	Position    int       `gorm:"not null" json:"position"`
	RequestedAt time.Time `json:"requested_at"`
	User        User      `gorm:"foreignKey:UserID" json:"user"`
}

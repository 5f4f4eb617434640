package models

import (
	"gorm.io/gorm"
)

// Room 表示一個語音房間
// 房間的建立者 (CreatorID) 是唯一的主持人，
// 主持人身份由這個欄位推導，不會出現在發言席或候位清單中
type Room struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	CreatorID   uint   `gorm:"index;not null" json:"creator_id"`
}

// RoomMember 表示用戶與房間的成員關係
// 一個用戶可以同時是多個房間的成員，角色是以房間為單位的
type RoomMember struct {
	gorm.Model
	RoomID uint `gorm:"uniqueIndex:idx_room_member;not null" json:"room_id"`
	UserID uint `gorm:"uniqueIndex:idx_room_member;not null" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"user"`
}

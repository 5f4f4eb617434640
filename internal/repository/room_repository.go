package repository

import (
	"voiceroom/internal/models"
	"voiceroom/internal/storage"
)

type RoomRepository interface {
	Create(room *models.Room) error
	FindByID(id uint) (*models.Room, error)
	FindAll() ([]models.Room, error) // 簡單的列表查詢
	AddMember(member *models.RoomMember) error
	RemoveMember(roomID, userID uint) error
	FindMember(roomID, userID uint) (*models.RoomMember, error)
	ListMembers(roomID uint) ([]models.RoomMember, error)
}

type roomRepository struct {
	db *storage.PostgresDB
}

func NewRoomRepository(db *storage.PostgresDB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(room *models.Room) error {
	return r.db.Create(room).Error
}

func (r *roomRepository) FindByID(id uint) (*models.Room, error) {
	var room models.Room
	err := r.db.First(&room, id).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// FindAll 查詢所有房間
func (r *roomRepository) FindAll() ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.Order("created_at DESC").Find(&rooms).Error
	return rooms, err
}

func (r *roomRepository) AddMember(member *models.RoomMember) error {
	return r.db.Create(member).Error
}

// RemoveMember 物理刪除成員關係，讓用戶離開後可以重新加入
// (room_id, user_id) 的唯一索引連軟刪除的列也算在內
func (r *roomRepository) RemoveMember(roomID, userID uint) error {
	return r.db.Unscoped().
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.RoomMember{}).Error
}

func (r *roomRepository) FindMember(roomID, userID uint) (*models.RoomMember, error) {
	var member models.RoomMember
	err := r.db.Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// ListMembers 查詢房間成員，連同用戶顯示資料
func (r *roomRepository) ListMembers(roomID uint) ([]models.RoomMember, error) {
	var members []models.RoomMember
	err := r.db.Preload("User").
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

package repository

import (
	"gorm.io/gorm"

	"voiceroom/internal/models"
	"voiceroom/internal/storage"
)

// QueueRepository 負責發言席與候位清單的持久化
// Transaction 讓協調器可以在同一筆交易中同時改動兩份清單，
// 例如接受發言者時刪除候位並插入發言席
type QueueRepository interface {
	ListSpeakers(roomID uint) ([]models.Speaker, error)
	ListWaitlist(roomID uint) ([]models.WaitlistEntry, error)
	CountSpeakers(roomID uint) (int64, error)
	CountWaitlist(roomID uint) (int64, error)
	FindSpeaker(roomID, userID uint) (*models.Speaker, error)
	FindWaitlistEntry(roomID, userID uint) (*models.WaitlistEntry, error)
	CreateSpeaker(speaker *models.Speaker) error
	CreateWaitlistEntry(entry *models.WaitlistEntry) error
	DeleteSpeaker(roomID, userID uint) error
	DeleteWaitlistEntry(roomID, userID uint) error
	UpdateSpeakerPosition(id uint, position int) error
	UpdateWaitlistPosition(id uint, position int) error
	UpdateSpeakerMuted(id uint, muted bool) error
	Transaction(fn func(QueueRepository) error) error
}

type queueRepository struct {
	db *gorm.DB
}

func NewQueueRepository(db *storage.PostgresDB) QueueRepository {
	return &queueRepository{db: db.DB}
}

// ListSpeakers 依 position 排序查詢發言席，連同用戶顯示資料
func (r *queueRepository) ListSpeakers(roomID uint) ([]models.Speaker, error) {
	var speakers []models.Speaker
	err := r.db.Preload("User").
		Where("room_id = ?", roomID).
		Order("position ASC").
		Find(&speakers).Error
	return speakers, err
}

func (r *queueRepository) ListWaitlist(roomID uint) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	err := r.db.Preload("User").
		Where("room_id = ?", roomID).
		Order("position ASC").
		Find(&entries).Error
	return entries, err
}

func (r *queueRepository) CountSpeakers(roomID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Speaker{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	return count, err
}

func (r *queueRepository) CountWaitlist(roomID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.WaitlistEntry{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	return count, err
}

func (r *queueRepository) FindSpeaker(roomID, userID uint) (*models.Speaker, error) {
	var speaker models.Speaker
	err := r.db.Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&speaker).Error
	if err != nil {
		return nil, err
	}
	return &speaker, nil
}

func (r *queueRepository) FindWaitlistEntry(roomID, userID uint) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := r.db.Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *queueRepository) CreateSpeaker(speaker *models.Speaker) error {
	return r.db.Create(speaker).Error
}

func (r *queueRepository) CreateWaitlistEntry(entry *models.WaitlistEntry) error {
	return r.db.Create(entry).Error
}

// DeleteSpeaker 物理刪除發言席
// (room_id, user_id) 的唯一索引連軟刪除的列也算在內，
// 留下軟刪除殘留會讓同一個用戶之後再被接受時撞唯一約束
func (r *queueRepository) DeleteSpeaker(roomID, userID uint) error {
	return r.db.Unscoped().
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.Speaker{}).Error
}

func (r *queueRepository) DeleteWaitlistEntry(roomID, userID uint) error {
	return r.db.Unscoped().
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.WaitlistEntry{}).Error
}

func (r *queueRepository) UpdateSpeakerPosition(id uint, position int) error {
	return r.db.Model(&models.Speaker{}).
		Where("id = ?", id).
		Update("position", position).Error
}

func (r *queueRepository) UpdateWaitlistPosition(id uint, position int) error {
	return r.db.Model(&models.WaitlistEntry{}).
		Where("id = ?", id).
		Update("position", position).Error
}

func (r *queueRepository) UpdateSpeakerMuted(id uint, muted bool) error {
	return r.db.Model(&models.Speaker{}).
		Where("id = ?", id).
		Update("muted", muted).Error
}

// Transaction 在資料庫交易中執行 fn，fn 回傳錯誤時整筆回滾
func (r *queueRepository) Transaction(fn func(QueueRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&queueRepository{db: tx})
	})
}

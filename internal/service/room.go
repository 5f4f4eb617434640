package service

import (
	"errors"

	"gorm.io/gorm"

	"voiceroom/internal/models"
	"voiceroom/internal/repository"
)

// RoomWithMembers 房間資料連同成員清單
type RoomWithMembers struct {
	Room    *models.Room        `json:"room"`
	Members []models.RoomMember `json:"members"`
}

type RoomService struct {
	roomRepo repository.RoomRepository
}

func NewRoomService(roomRepo repository.RoomRepository) *RoomService {
	return &RoomService{roomRepo: roomRepo}
}

// CreateRoom 建立房間，建立者自動成為成員與主持人
func (s *RoomService) CreateRoom(name, description string, creatorID uint) (*models.Room, error) {
	room := &models.Room{
		Name:        name,
		Description: description,
		CreatorID:   creatorID,
	}

	if err := s.roomRepo.Create(room); err != nil {
		return nil, err
	}

	if err := s.roomRepo.AddMember(&models.RoomMember{
		RoomID: room.ID,
		UserID: creatorID,
	}); err != nil {
		return nil, err
	}

	return room, nil
}

func (s *RoomService) GetRoom(roomID uint) (*models.Room, error) {
	room, err := s.roomRepo.FindByID(roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return room, nil
}

// GetRoomWithMembers 查詢房間與成員清單
func (s *RoomService) GetRoomWithMembers(roomID uint) (*RoomWithMembers, error) {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return nil, err
	}

	members, err := s.roomRepo.ListMembers(roomID)
	if err != nil {
		return nil, err
	}

	return &RoomWithMembers{Room: room, Members: members}, nil
}

func (s *RoomService) ListRooms() ([]models.Room, error) {
	return s.roomRepo.FindAll()
}

// JoinRoom 把用戶加入房間成員
func (s *RoomService) JoinRoom(roomID, userID uint) error {
	if _, err := s.GetRoom(roomID); err != nil {
		return err
	}

	if _, err := s.roomRepo.FindMember(roomID, userID); err == nil {
		return errors.New("用戶已經是房間成員")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return s.roomRepo.AddMember(&models.RoomMember{
		RoomID: roomID,
		UserID: userID,
	})
}

// LeaveRoom 用戶離開房間
func (s *RoomService) LeaveRoom(roomID, userID uint) error {
	if _, err := s.roomRepo.FindMember(roomID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("用戶不是房間成員")
		}
		return err
	}

	return s.roomRepo.RemoveMember(roomID, userID)
}

// IsCreator 判斷用戶是否為房間主持人
func (s *RoomService) IsCreator(roomID, userID uint) (bool, error) {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return false, err
	}
	return room.CreatorID == userID, nil
}

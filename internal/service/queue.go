package service

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"voiceroom/internal/models"
	"voiceroom/internal/repository"
)

// RoomBroadcaster 是協調器對即時層的唯一依賴
type RoomBroadcaster interface {
	BroadcastToRoom(roomID uint, event *models.ServerEvent)
}

// RoomSnapshot 房間當下完整的發言席與候位清單
type RoomSnapshot struct {
	Speakers []models.Speaker       `json:"speakers"`
	Waitlist []models.WaitlistEntry `json:"waitlist"`
}

// QueueCoordinator 是房間佇列的權威狀態機
//
// 同一個房間的變更操作以 per-room mutex 序列化，
// 不同房間的操作完全平行。每個變更先在單一交易中提交，
// 提交成功後才廣播，因此任何收到事件後回頭拉快照的客戶端，
// 看到的狀態至少和事件一樣新。
type QueueCoordinator struct {
	queueRepo repository.QueueRepository
	roomRepo  repository.RoomRepository
	hub       RoomBroadcaster
	voice     VoiceSessionBridge

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewQueueCoordinator(queueRepo repository.QueueRepository, roomRepo repository.RoomRepository,
	hub RoomBroadcaster, voice VoiceSessionBridge) *QueueCoordinator {
	return &QueueCoordinator{
		queueRepo: queueRepo,
		roomRepo:  roomRepo,
		hub:       hub,
		voice:     voice,
		locks:     make(map[uint]*sync.Mutex),
	}
}

// roomLock 取得房間專屬的鎖，第一次使用時建立
func (c *QueueCoordinator) roomLock(roomID uint) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[roomID] = lock
	}
	return lock
}

func (c *QueueCoordinator) findRoom(roomID uint) (*models.Room, error) {
	room, err := c.roomRepo.FindByID(roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return room, nil
}

// RequestToSpeak 把用戶加入候位清單尾端
// 已在發言席或候位清單中的用戶會收到 ErrAlreadyQueued，不會重複排隊
func (c *QueueCoordinator) RequestToSpeak(roomID, userID uint) error {
	lock := c.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := c.findRoom(roomID)
	if err != nil {
		return err
	}

	// 主持人身份由 CreatorID 推導，永遠不進入任何一份清單
	if room.CreatorID == userID {
		return ErrAlreadyQueued
	}

	err = c.queueRepo.Transaction(func(q repository.QueueRepository) error {
		if _, err := q.FindSpeaker(roomID, userID); err == nil {
			return ErrAlreadyQueued
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if _, err := q.FindWaitlistEntry(roomID, userID); err == nil {
			return ErrAlreadyQueued
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		count, err := q.CountWaitlist(roomID)
		if err != nil {
			return err
		}

		return q.CreateWaitlistEntry(&models.WaitlistEntry{
			RoomID:      roomID,
			UserID:      userID,
			Position:    int(count) + 1,
			RequestedAt: time.Now(),
		})
	})
	if err != nil {
		return err
	}

	waitlist, err := c.queueRepo.ListWaitlist(roomID)
	if err != nil {
		return err
	}

	// SPEAKER_REQUEST 只是給主持人介面的提示，
	// 權威狀態永遠是接著送出的 WAITLIST_UPDATED
	c.hub.BroadcastToRoom(roomID, models.NewSpeakerRequestEvent(userID))
	c.hub.BroadcastToRoom(roomID, models.NewWaitlistUpdatedEvent(waitlist))

	log.Info().Uint("room_id", roomID).Uint("user_id", userID).
		Msg("user requested to speak")
	return nil
}

// AcceptSpeaker 主持人把候位用戶移到發言席尾端
// 刪除候位、插入發言席、兩份清單重新編號都在同一筆交易中完成，
// 成功後以單一合併事件廣播，避免兩份清單被交錯觀察
func (c *QueueCoordinator) AcceptSpeaker(roomID, hostID, targetID uint) error {
	lock := c.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := c.findRoom(roomID)
	if err != nil {
		return err
	}
	if room.CreatorID != hostID {
		return ErrUnauthorized
	}

	err = c.queueRepo.Transaction(func(q repository.QueueRepository) error {
		if _, err := q.FindWaitlistEntry(roomID, targetID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := q.DeleteWaitlistEntry(roomID, targetID); err != nil {
			return err
		}
		if err := renumberWaitlist(q, roomID); err != nil {
			return err
		}

		count, err := q.CountSpeakers(roomID)
		if err != nil {
			return err
		}

		// 接受一律附加在發言席尾端，主持人不能指定位置
		return q.CreateSpeaker(&models.Speaker{
			RoomID:   roomID,
			UserID:   targetID,
			Position: int(count) + 1,
		})
	})
	if err != nil {
		return err
	}

	if err := c.voice.GrantPublish(roomID, targetID); err != nil {
		log.Error().Err(err).Uint("room_id", roomID).Uint("user_id", targetID).
			Msg("failed to grant voice publish")
	}

	snapshot, err := c.listBoth(roomID)
	if err != nil {
		return err
	}

	c.hub.BroadcastToRoom(roomID, models.NewQueueUpdatedEvent(snapshot.Speakers, snapshot.Waitlist))

	log.Info().Uint("room_id", roomID).Uint("host_id", hostID).Uint("user_id", targetID).
		Msg("speaker accepted")
	return nil
}

// RemoveSpeaker 主持人將發言者移出發言席
func (c *QueueCoordinator) RemoveSpeaker(roomID, hostID, targetID uint) error {
	lock := c.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := c.findRoom(roomID)
	if err != nil {
		return err
	}
	if room.CreatorID != hostID {
		return ErrUnauthorized
	}

	if err := c.deleteSpeaker(roomID, targetID, false); err != nil {
		return err
	}

	log.Info().Uint("room_id", roomID).Uint("host_id", hostID).Uint("user_id", targetID).
		Msg("speaker removed")
	return nil
}

// RemoveSpeakerOnDisconnect 發言者斷線時由即時層代為移除，
// 避免發言席留下幽靈發言者；不持有發言席時是 no-op
func (c *QueueCoordinator) RemoveSpeakerOnDisconnect(roomID, userID uint) error {
	lock := c.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := c.findRoom(roomID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	if err := c.deleteSpeaker(roomID, userID, true); err != nil {
		return err
	}

	log.Info().Uint("room_id", roomID).Uint("user_id", userID).
		Msg("speaker removed after disconnect")
	return nil
}

// deleteSpeaker 刪除發言席並重新編號，呼叫端必須已持有房間鎖
func (c *QueueCoordinator) deleteSpeaker(roomID, userID uint, ignoreMissing bool) error {
	err := c.queueRepo.Transaction(func(q repository.QueueRepository) error {
		if _, err := q.FindSpeaker(roomID, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := q.DeleteSpeaker(roomID, userID); err != nil {
			return err
		}
		return renumberSpeakers(q, roomID)
	})
	if err != nil {
		if ignoreMissing && errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	if err := c.voice.RevokePublish(roomID, userID); err != nil {
		log.Error().Err(err).Uint("room_id", roomID).Uint("user_id", userID).
			Msg("failed to revoke voice publish")
	}

	speakers, err := c.queueRepo.ListSpeakers(roomID)
	if err != nil {
		return err
	}
	c.hub.BroadcastToRoom(roomID, models.NewSpeakersUpdatedEvent(speakers))
	return nil
}

// Withdraw 用戶撤回自己的發言申請，不在候位清單時是 no-op
func (c *QueueCoordinator) Withdraw(roomID, userID uint) error {
	lock := c.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := c.findRoom(roomID); err != nil {
		return err
	}

	removed := false
	err := c.queueRepo.Transaction(func(q repository.QueueRepository) error {
		if _, err := q.FindWaitlistEntry(roomID, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if err := q.DeleteWaitlistEntry(roomID, userID); err != nil {
			return err
		}
		removed = true
		return renumberWaitlist(q, roomID)
	})
	if err != nil || !removed {
		return err
	}

	waitlist, err := c.queueRepo.ListWaitlist(roomID)
	if err != nil {
		return err
	}
	c.hub.BroadcastToRoom(roomID, models.NewWaitlistUpdatedEvent(waitlist))

	log.Info().Uint("room_id", roomID).Uint("user_id", userID).
		Msg("waitlist request withdrawn")
	return nil
}

// SetSpeakerMuted 切換發言者的靜音狀態，本人或主持人可操作
// 只改旗標，不動任何 position
func (c *QueueCoordinator) SetSpeakerMuted(roomID, actorID, targetID uint, muted bool) error {
	lock := c.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := c.findRoom(roomID)
	if err != nil {
		return err
	}
	if actorID != targetID && actorID != room.CreatorID {
		return ErrUnauthorized
	}

	err = c.queueRepo.Transaction(func(q repository.QueueRepository) error {
		speaker, err := q.FindSpeaker(roomID, targetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return q.UpdateSpeakerMuted(speaker.ID, muted)
	})
	if err != nil {
		return err
	}

	speakers, err := c.queueRepo.ListSpeakers(roomID)
	if err != nil {
		return err
	}
	c.hub.BroadcastToRoom(roomID, models.NewSpeakersUpdatedEvent(speakers))
	return nil
}

// IsHost 判斷用戶是否為房間主持人
func (c *QueueCoordinator) IsHost(roomID, userID uint) (bool, error) {
	room, err := c.findRoom(roomID)
	if err != nil {
		return false, err
	}
	return room.CreatorID == userID, nil
}

// Snapshot 回傳房間完整的兩份清單
// 讀取不經過房間鎖，直接讀最近一次提交的狀態
func (c *QueueCoordinator) Snapshot(roomID uint) (*RoomSnapshot, error) {
	if _, err := c.findRoom(roomID); err != nil {
		return nil, err
	}
	return c.listBoth(roomID)
}

func (c *QueueCoordinator) listBoth(roomID uint) (*RoomSnapshot, error) {
	speakers, err := c.queueRepo.ListSpeakers(roomID)
	if err != nil {
		return nil, err
	}
	waitlist, err := c.queueRepo.ListWaitlist(roomID)
	if err != nil {
		return nil, err
	}
	return &RoomSnapshot{Speakers: speakers, Waitlist: waitlist}, nil
}

// renumberSpeakers 把剩餘發言者依原本的相對順序重編為 1..N
func renumberSpeakers(q repository.QueueRepository, roomID uint) error {
	speakers, err := q.ListSpeakers(roomID)
	if err != nil {
		return err
	}
	for i, speaker := range speakers {
		if speaker.Position != i+1 {
			if err := q.UpdateSpeakerPosition(speaker.ID, i+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func renumberWaitlist(q repository.QueueRepository, roomID uint) error {
	entries, err := q.ListWaitlist(roomID)
	if err != nil {
		return err
	}
	for i, entry := range entries {
		if entry.Position != i+1 {
			if err := q.UpdateWaitlistPosition(entry.ID, i+1); err != nil {
				return err
			}
		}
	}
	return nil
}

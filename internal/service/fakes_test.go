package service

import (
	"sort"
	"sync"

	"gorm.io/gorm"

	"voiceroom/internal/models"
	"voiceroom/internal/repository"
)

// 測試用的記憶體實作，行為對齊 gorm 版本：
// 找不到資料時回傳 gorm.ErrRecordNotFound，
// Transaction 在 fn 失敗時還原所有改動

type memoryQueueRepo struct {
	mu       sync.Mutex
	nextID   uint
	speakers []models.Speaker
	waitlist []models.WaitlistEntry
}

func newMemoryQueueRepo() *memoryQueueRepo {
	return &memoryQueueRepo{nextID: 1}
}

func (m *memoryQueueRepo) ListSpeakers(roomID uint) ([]models.Speaker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Speaker
	for _, s := range m.speakers {
		if s.RoomID == roomID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memoryQueueRepo) ListWaitlist(roomID uint) ([]models.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.WaitlistEntry
	for _, e := range m.waitlist {
		if e.RoomID == roomID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memoryQueueRepo) CountSpeakers(roomID uint) (int64, error) {
	speakers, _ := m.ListSpeakers(roomID)
	return int64(len(speakers)), nil
}

func (m *memoryQueueRepo) CountWaitlist(roomID uint) (int64, error) {
	entries, _ := m.ListWaitlist(roomID)
	return int64(len(entries)), nil
}

func (m *memoryQueueRepo) FindSpeaker(roomID, userID uint) (*models.Speaker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.speakers {
		if s.RoomID == roomID && s.UserID == userID {
			found := s
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryQueueRepo) FindWaitlistEntry(roomID, userID uint) (*models.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.waitlist {
		if e.RoomID == roomID && e.UserID == userID {
			found := e
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryQueueRepo) CreateSpeaker(speaker *models.Speaker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	speaker.ID = m.nextID
	m.nextID++
	m.speakers = append(m.speakers, *speaker)
	return nil
}

func (m *memoryQueueRepo) CreateWaitlistEntry(entry *models.WaitlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = m.nextID
	m.nextID++
	m.waitlist = append(m.waitlist, *entry)
	return nil
}

func (m *memoryQueueRepo) DeleteSpeaker(roomID, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.speakers {
		if s.RoomID == roomID && s.UserID == userID {
			m.speakers = append(m.speakers[:i], m.speakers[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memoryQueueRepo) DeleteWaitlistEntry(roomID, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.waitlist {
		if e.RoomID == roomID && e.UserID == userID {
			m.waitlist = append(m.waitlist[:i], m.waitlist[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memoryQueueRepo) UpdateSpeakerPosition(id uint, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.speakers {
		if m.speakers[i].ID == id {
			m.speakers[i].Position = position
		}
	}
	return nil
}

func (m *memoryQueueRepo) UpdateWaitlistPosition(id uint, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.waitlist {
		if m.waitlist[i].ID == id {
			m.waitlist[i].Position = position
		}
	}
	return nil
}

func (m *memoryQueueRepo) UpdateSpeakerMuted(id uint, muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.speakers {
		if m.speakers[i].ID == id {
			m.speakers[i].Muted = muted
		}
	}
	return nil
}

func (m *memoryQueueRepo) Transaction(fn func(repository.QueueRepository) error) error {
	m.mu.Lock()
	speakersBackup := append([]models.Speaker(nil), m.speakers...)
	waitlistBackup := append([]models.WaitlistEntry(nil), m.waitlist...)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.speakers = speakersBackup
		m.waitlist = waitlistBackup
		m.mu.Unlock()
		return err
	}
	return nil
}

type memoryRoomRepo struct {
	mu      sync.Mutex
	rooms   map[uint]models.Room
	members []models.RoomMember
}

func newMemoryRoomRepo() *memoryRoomRepo {
	return &memoryRoomRepo{rooms: make(map[uint]models.Room)}
}

func (m *memoryRoomRepo) Create(room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room.ID = uint(len(m.rooms) + 1)
	m.rooms[room.ID] = *room
	return nil
}

func (m *memoryRoomRepo) FindByID(id uint) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &room, nil
}

func (m *memoryRoomRepo) FindAll() ([]models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Room
	for _, room := range m.rooms {
		out = append(out, room)
	}
	return out, nil
}

func (m *memoryRoomRepo) AddMember(member *models.RoomMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.members = append(m.members, *member)
	return nil
}

func (m *memoryRoomRepo) RemoveMember(roomID, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, member := range m.members {
		if member.RoomID == roomID && member.UserID == userID {
			m.members = append(m.members[:i], m.members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memoryRoomRepo) FindMember(roomID, userID uint) (*models.RoomMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, member := range m.members {
		if member.RoomID == roomID && member.UserID == userID {
			found := member
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRoomRepo) ListMembers(roomID uint) ([]models.RoomMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.RoomMember
	for _, member := range m.members {
		if member.RoomID == roomID {
			out = append(out, member)
		}
	}
	return out, nil
}

// captureHub 記錄協調器廣播的事件
type captureHub struct {
	mu     sync.Mutex
	events []*models.ServerEvent
}

func (h *captureHub) BroadcastToRoom(roomID uint, event *models.ServerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *captureHub) all() []*models.ServerEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*models.ServerEvent(nil), h.events...)
}

func (h *captureHub) last() *models.ServerEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		return nil
	}
	return h.events[len(h.events)-1]
}

func (h *captureHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

// fakeVoice 記錄發布權限的授予與撤銷
type fakeVoice struct {
	mu      sync.Mutex
	granted []uint
	revoked []uint
}

func (v *fakeVoice) GrantPublish(roomID, userID uint) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.granted = append(v.granted, userID)
	return nil
}

func (v *fakeVoice) RevokePublish(roomID, userID uint) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.revoked = append(v.revoked, userID)
	return nil
}

func (v *fakeVoice) lastRevoked() uint {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.revoked) == 0 {
		return 0
	}
	return v.revoked[len(v.revoked)-1]
}

func (v *fakeVoice) lastGranted() uint {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.granted) == 0 {
		return 0
	}
	return v.granted[len(v.granted)-1]
}

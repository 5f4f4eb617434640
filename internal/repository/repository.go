package repository

import "voiceroom/internal/storage"

type Repositories struct {
	User  UserRepository
	Room  RoomRepository
	Queue QueueRepository
}

func NewRepositories(db *storage.PostgresDB) *Repositories {
	return &Repositories{
		User:  NewUserRepository(db),
		Room:  NewRoomRepository(db),
		Queue: NewQueueRepository(db),
	}
}

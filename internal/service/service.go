package service

import (
	"time"

	"voiceroom/internal/repository"
	"voiceroom/pkg/config"
)

type Services struct {
	User  *UserService
	Room  *RoomService
	Queue *QueueCoordinator
	Hub   *RealtimeHub
	Voice *VoiceTokenService
}

func NewServices(repos *repository.Repositories, cfg *config.Config) *Services {
	hub := NewRealtimeHub()
	voice := NewVoiceTokenService(cfg.Voice.Secret,
		time.Duration(cfg.Voice.TokenTTLMinutes)*time.Minute)

	coordinator := NewQueueCoordinator(repos.Queue, repos.Room, hub, voice)
	// hub 與協調器互相依賴，建構完成後才綁定
	hub.BindCoordinator(coordinator)

	return &Services{
		User:  NewUserService(repos.User),
		Room:  NewRoomService(repos.Room),
		Queue: coordinator,
		Hub:   hub,
		Voice: voice,
	}
}

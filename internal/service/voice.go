package service

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/rs/zerolog/log"
)

// VoiceSessionBridge 是語音傳輸層的對外介面
// 協調器只告訴它「誰可以發布音訊」，它永遠不知道佇列順序
type VoiceSessionBridge interface {
	GrantPublish(roomID, userID uint) error
	RevokePublish(roomID, userID uint) error
}

type voiceKey struct {
	roomID uint
	userID uint
}

// VoiceClaims 語音權杖的內容
type VoiceClaims struct {
	RoomID     uint `json:"room_id"`
	UserID     uint `json:"user_id"`
	CanPublish bool `json:"can_publish"`
	jwt.StandardClaims
}

// VoiceTokenService 以短效 JWT 實作發布權限
// 被授權的 (room, user) 可以換到 can_publish 的權杖，其他人只能訂閱
type VoiceTokenService struct {
	secret   []byte
	tokenTTL time.Duration

	mu      sync.RWMutex
	allowed map[voiceKey]bool
}

func NewVoiceTokenService(secret string, tokenTTL time.Duration) *VoiceTokenService {
	return &VoiceTokenService{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		allowed:  make(map[voiceKey]bool),
	}
}

func (s *VoiceTokenService) GrantPublish(roomID, userID uint) error {
	s.mu.Lock()
	s.allowed[voiceKey{roomID, userID}] = true
	s.mu.Unlock()

	log.Info().Uint("room_id", roomID).Uint("user_id", userID).
		Msg("voice publish granted")
	return nil
}

func (s *VoiceTokenService) RevokePublish(roomID, userID uint) error {
	s.mu.Lock()
	delete(s.allowed, voiceKey{roomID, userID})
	s.mu.Unlock()

	log.Info().Uint("room_id", roomID).Uint("user_id", userID).
		Msg("voice publish revoked")
	return nil
}

// CanPublish 查詢目前的發布權限
func (s *VoiceTokenService) CanPublish(roomID, userID uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowed[voiceKey{roomID, userID}]
}

// IssueToken 簽發語音權杖，權杖內容依當下的發布權限決定
func (s *VoiceTokenService) IssueToken(roomID, userID uint) (string, error) {
	now := time.Now()
	claims := VoiceClaims{
		RoomID:     roomID,
		UserID:     userID,
		CanPublish: s.CanPublish(roomID, userID),
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.tokenTTL).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseToken 解析和驗證語音權杖
func (s *VoiceTokenService) ParseToken(tokenString string) (*VoiceClaims, error) {
	tokenClaims, err := jwt.ParseWithClaims(tokenString, &VoiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})

	if tokenClaims != nil {
		if claims, ok := tokenClaims.Claims.(*VoiceClaims); ok && tokenClaims.Valid {
			return claims, nil
		}
	}

	return nil, err
}

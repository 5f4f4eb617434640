package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"voiceroom/internal/service"
)

// QueueHandler 處理發言席與候位清單的 REST 請求
// 它和 socket 事件走同一個協調器，不是獨立的第二條路徑
type QueueHandler struct {
	coordinator *service.QueueCoordinator
	voice       *service.VoiceTokenService
}

// NewQueueHandler 創建一個新的 QueueHandler 實例
func NewQueueHandler(coordinator *service.QueueCoordinator, voice *service.VoiceTokenService) *QueueHandler {
	return &QueueHandler{coordinator: coordinator, voice: voice}
}

// respondQueueError 把協調器的錯誤分類對應到 HTTP 狀態碼
func respondQueueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "資源不存在"})
	case errors.Is(err, service.ErrAlreadyQueued):
		c.JSON(http.StatusBadRequest, gin.H{"error": "已在發言席或候位清單中"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "只有主持人可以執行此操作"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "內部錯誤"})
	}
}

// ListSpeakers 回傳依 position 排序的發言席
func (h *QueueHandler) ListSpeakers(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	snapshot, err := h.coordinator.Snapshot(roomID)
	if err != nil {
		respondQueueError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot.Speakers)
}

// AcceptSpeaker 主持人把候位用戶移到發言席尾端
func (h *QueueHandler) AcceptSpeaker(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	var input struct {
		UserID uint `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hostID, _ := c.Get("userID")

	if err := h.coordinator.AcceptSpeaker(roomID, hostID.(uint), input.UserID); err != nil {
		respondQueueError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "已接受發言申請"})
}

// RemoveSpeaker 主持人將發言者移出發言席
func (h *QueueHandler) RemoveSpeaker(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	var input struct {
		UserID uint `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hostID, _ := c.Get("userID")

	if err := h.coordinator.RemoveSpeaker(roomID, hostID.(uint), input.UserID); err != nil {
		respondQueueError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// MuteSpeaker 切換發言者的靜音狀態
func (h *QueueHandler) MuteSpeaker(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	targetID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "不存在的用戶ID"})
		return
	}

	var input struct {
		Muted *bool `json:"muted" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID, _ := c.Get("userID")

	if err := h.coordinator.SetSpeakerMuted(roomID, actorID.(uint), uint(targetID), *input.Muted); err != nil {
		respondQueueError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "已更新靜音狀態"})
}

// ListWaitlist 回傳依 position 排序的候位清單
func (h *QueueHandler) ListWaitlist(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	snapshot, err := h.coordinator.Snapshot(roomID)
	if err != nil {
		respondQueueError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot.Waitlist)
}

// RequestToSpeak 用戶申請發言，加入候位清單尾端
func (h *QueueHandler) RequestToSpeak(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	var input struct {
		UserID uint `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 只能為自己申請發言
	userID, _ := c.Get("userID")
	if input.UserID != userID.(uint) {
		c.JSON(http.StatusForbidden, gin.H{"error": "只能為自己申請發言"})
		return
	}

	if err := h.coordinator.RequestToSpeak(roomID, input.UserID); err != nil {
		respondQueueError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "已加入候位清單"})
}

// Withdraw 撤回發言申請；本人或主持人可操作
func (h *QueueHandler) Withdraw(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	var input struct {
		UserID uint `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID, _ := c.Get("userID")
	if input.UserID != actorID.(uint) {
		// 主持人可以替他人撤回（拒絕申請）
		isHost, err := h.coordinator.IsHost(roomID, actorID.(uint))
		if err != nil {
			respondQueueError(c, err)
			return
		}
		if !isHost {
			c.JSON(http.StatusForbidden, gin.H{"error": "只能撤回自己的申請"})
			return
		}
	}

	if err := h.coordinator.Withdraw(roomID, input.UserID); err != nil {
		respondQueueError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// VoiceToken 簽發語音權杖，發布能力依協調器授權而定
func (h *QueueHandler) VoiceToken(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	userID, _ := c.Get("userID")

	token, err := h.voice.IssueToken(roomID, userID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "簽發語音權杖失敗"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":       token,
		"can_publish": h.voice.CanPublish(roomID, userID.(uint)),
	})
}

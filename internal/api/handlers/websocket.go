package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"voiceroom/internal/service"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 注意：在生產環境中，應該檢查 origin
	},
}

// WebSocketHandler 處理 WebSocket 連接
type WebSocketHandler struct {
	hub *service.RealtimeHub
}

// NewWebSocketHandler 創建一個新的 WebSocketHandler 實例
func NewWebSocketHandler(hub *service.RealtimeHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket 處理 WebSocket 連接請求
// 連線建立後客戶端用 join_room 事件選擇房間，同一個連線可以換房間
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	if h.hub.Closed() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "伺服器正在關閉"})
		return
	}

	// 從上下文中獲取用戶 ID
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	// 升級 HTTP 連接為 WebSocket 連接
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "升級WebSocket失敗"})
		return
	}

	// 處理連線，阻塞直到斷線
	h.hub.HandleSession(conn, userID.(uint))
}

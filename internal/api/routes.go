package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voiceroom/internal/api/handlers"
	"voiceroom/internal/middleware"
	"voiceroom/internal/service"
)

func SetupRoutes(r *gin.Engine, services *service.Services) {
	// 初始化 handlers
	authHandler := handlers.NewAuthHandler(services.User)
	roomHandler := handlers.NewRoomHandler(services.Room)
	queueHandler := handlers.NewQueueHandler(services.Queue, services.Voice)
	wsHandler := handlers.NewWebSocketHandler(services.Hub)

	// API 路由群組
	api := r.Group("/api")

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	// 公開路由
	{
		// 用戶認證相關
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	// 需要驗證的路由
	authorized := api.Group("/")
	authorized.Use(middleware.AuthMiddleware())
	{
		// WebSocket 連接點，房間透過 join_room 事件選擇
		authorized.GET("/ws", wsHandler.HandleWebSocket)

		// 語音房間相關
		rooms := authorized.Group("/rooms")
		{
			// 基本操作
			rooms.GET("", roomHandler.ListRooms)   // 獲取房間列表
			rooms.POST("", roomHandler.CreateRoom) // 創建房間
			rooms.GET("/:id", roomHandler.GetRoom) // 獲取房間信息與成員

			// 房間參與
			rooms.POST("/:id/join", roomHandler.JoinRoom)   // 加入房間
			rooms.POST("/:id/leave", roomHandler.LeaveRoom) // 離開房間

			// 發言席
			rooms.GET("/:id/speakers", queueHandler.ListSpeakers)              // 發言席列表
			rooms.POST("/:id/speakers", queueHandler.AcceptSpeaker)            // 接受發言申請
			rooms.DELETE("/:id/speakers", queueHandler.RemoveSpeaker)          // 移除發言者
			rooms.POST("/:id/speakers/:userId/mute", queueHandler.MuteSpeaker) // 切換靜音

			// 候位清單
			rooms.GET("/:id/waitlist", queueHandler.ListWaitlist)    // 候位清單
			rooms.POST("/:id/waitlist", queueHandler.RequestToSpeak) // 申請發言
			rooms.DELETE("/:id/waitlist", queueHandler.Withdraw)     // 撤回申請

			// 語音權杖
			rooms.GET("/:id/voice_token", queueHandler.VoiceToken)
		}
	}
}

package http

import (
	"github.com/gin-gonic/gin"

	"github.com/duetapp/duet-sync/internal/delivery/http/handler"
	"github.com/duetapp/duet-sync/internal/delivery/http/middleware"
)

type Router struct {
	profileHandler *handler.ProfileHandler
	chatHandler    *handler.ChatHandler
	authMiddleware *middleware.AuthMiddleware
}

func NewRouter(
	profileHandler *handler.ProfileHandler,
	chatHandler *handler.ChatHandler,
	authMiddleware *middleware.AuthMiddleware,
) *Router {
	return &Router{
		profileHandler: profileHandler,
		chatHandler:    chatHandler,
		authMiddleware: authMiddleware,
	}
}

func (r *Router) Setup() *gin.Engine {
	router := gin.Default()

	// Health check (supports both GET and HEAD)
	healthHandler := func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	// API v1
	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(r.authMiddleware.RequireAuth())
		{
			// Profile routes
			profile := protected.Group("/profile")
			{
				profile.GET("/me", r.profileHandler.Me)
				profile.PUT("/me", r.profileHandler.UpdateMyProfile)
				profile.POST("/me/photos", r.profileHandler.AddPhoto)
				profile.GET("/:user_id", r.profileHandler.GetProfile)
			}

			// Discovery routes
			profiles := protected.Group("/profiles")
			{
				profiles.GET("", r.profileHandler.ListVisible)
				profiles.GET("/matches", r.profileHandler.Matches)
			}

			// Chat routes
			chats := protected.Group("/chats")
			{
				chats.GET("", r.chatHandler.ListConversations)
				chats.POST("/open", r.chatHandler.OpenConversation)
				chats.GET("/:chat_id", r.chatHandler.GetConversation)
				chats.POST("/:chat_id/messages", r.chatHandler.SendMessage)
				chats.POST("/:chat_id/read", r.chatHandler.MarkRead)
				chats.POST("/:chat_id/typing", r.chatHandler.SetTyping)
				chats.POST("/:chat_id/messages/:message_id/translate", r.chatHandler.Translate)
				chats.GET("/:chat_id/icebreakers", r.chatHandler.Icebreakers)
				chats.GET("/:chat_id/stats", r.chatHandler.Stats)
			}

			// Admin routes
			admin := protected.Group("/admin")
			{
				admin.PUT("/profiles/:user_id", r.profileHandler.AdminUpdateProfile)
				admin.DELETE("/profiles/:user_id", r.profileHandler.AdminDeleteProfile)
			}
		}
	}

	return router
}

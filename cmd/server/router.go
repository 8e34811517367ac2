package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/thereayou/guildchat/internal/config"
	"github.com/thereayou/guildchat/internal/handlers"
	"github.com/thereayou/guildchat/internal/middleware"
	"github.com/thereayou/guildchat/pkg/auth"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	User       *handlers.UserHandler
	Group      *handlers.GroupHandler
	Channel    *handlers.ChannelHandler
	Membership *handlers.MembershipHandler
	Message    *handlers.MessageHandler
	WebSocket  *handlers.WebSocketHandler
	Blob       *handlers.BlobHandler
}

func APIEndpoints(r *gin.Engine, cfg *config.Config, jwtMgr *auth.JWTManager, blacklist auth.Blacklist, h Handlers) {
	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 || cfg.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	corsCfg.AddAllowHeaders("Authorization")
	corsCfg.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsCfg))

	authMw := middleware.AuthMiddleware(jwtMgr, blacklist)

	// Auth endpoints
	authG := r.Group("/auth", middleware.RateLimit(cfg.RateLimitPerSecond))
	{
		authG.POST("/register", h.Auth.Register)
		authG.POST("/login", h.Auth.Login)
		authG.POST("/logout", authMw, h.Auth.Logout)
	}

	if h.Blob != nil {
		r.GET("/blobs/*key", h.Blob.Serve)
	}

	r.GET("/ws", middleware.WSAuthMiddleware(jwtMgr, blacklist), h.WebSocket.HandleWebSocket)

	// API endpoints
	api := r.Group("/api/v1", middleware.RateLimit(cfg.RateLimitPerSecond), authMw)
	{
		api.GET("/users/me", h.User.GetMe)

		api.POST("/groups", h.Group.Create)
		api.GET("/groups", h.Group.ListMine)

		group := api.Group("/groups/:groupID")
		{
			group.GET("", h.Group.Get)
			group.PATCH("", h.Group.Update)
			group.DELETE("", h.Group.Delete)

			group.POST("/members", h.Membership.Join)
			group.GET("/members", h.Membership.List)
			group.GET("/members/me", h.Membership.Self)
			group.PATCH("/members/me", h.Membership.UpdateNickname)
			group.DELETE("/members/me", h.Membership.Leave)
			group.GET("/members/:memberID", h.Membership.Get)
			group.PATCH("/members/:memberID", h.Membership.Update)
			group.DELETE("/members/:memberID", h.Membership.Remove)

			group.POST("/channels", h.Channel.Create)
			group.GET("/channels", h.Channel.List)
			group.GET("/channels/:channelID", h.Channel.Get)
			group.PATCH("/channels/:channelID", h.Channel.Update)
			group.DELETE("/channels/:channelID", h.Channel.Delete)

			group.POST("/channels/:channelID/messages", h.Message.Create)
			group.GET("/channels/:channelID/messages", h.Message.List)
			group.GET("/channels/:channelID/messages/:messageID", h.Message.Get)
			group.DELETE("/channels/:channelID/messages/:messageID", h.Message.Delete)
		}
	}
}

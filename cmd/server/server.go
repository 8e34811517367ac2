package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/thereayou/guildchat/internal/broadcast"
	"github.com/thereayou/guildchat/internal/config"
	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/handlers"
	"github.com/thereayou/guildchat/internal/services"
	"github.com/thereayou/guildchat/internal/storage"
	"github.com/thereayou/guildchat/internal/websocket"
	"github.com/thereayou/guildchat/pkg/auth"
)

type Server struct {
	cfg    *config.Config
	Router *gin.Engine
	DB     *database.Database
	Redis  *redis.Client
	Hub    *websocket.Hub

	// relay слушает события других инстансов (redis/kafka); nil для local
	relay interface {
		Run(ctx context.Context) error
	}
	closers []func() error
}

func NewServer(cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg}

	s.DB = &database.Database{}
	if err := s.DB.Connect(cfg.DatabaseDriver, cfg.DatabaseURL); err != nil {
		return nil, err
	}
	s.closers = append(s.closers, s.DB.Close)

	var blacklist auth.Blacklist = auth.NewMemoryBlacklist()
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		s.Redis = redis.NewClient(redisOpts)
		if err := s.Redis.Ping(context.Background()).Err(); err != nil {
			return nil, err
		}
		s.closers = append(s.closers, s.Redis.Close)
		blacklist = auth.NewRedisBlacklist(s.Redis)
	}

	blobs, localBlobs, err := s.blobStore()
	if err != nil {
		return nil, err
	}

	s.Hub = websocket.NewHub()

	publisher, err := s.publisher()
	if err != nil {
		return nil, err
	}
	broadcaster := broadcast.NewBroadcaster(publisher, broadcast.RetryPolicy{
		Attempts:  cfg.BroadcastAttempts,
		BaseDelay: cfg.BroadcastBaseDelay,
		MaxDelay:  cfg.BroadcastMaxDelay,
		Budget:    cfg.BroadcastBudget,
	})

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	guard := services.NewRoleGuard(s.DB, s.DB)
	pipeline := services.NewMessagePipeline(s.DB, blobs, broadcaster)
	paginator := services.NewPaginator(s.DB, cfg.PageMaxLimit)
	messages := services.NewMessageService(s.DB, blobs, broadcaster)
	groups := services.NewGroupService(s.DB, blobs)
	channels := services.NewChannelService(s.DB, blobs)
	memberships := services.NewMembershipService(s.DB, s.DB)

	groupH := handlers.NewGroupHandler(guard, groups, cfg.MaxUploadBytes)
	h := Handlers{
		Auth:       handlers.NewAuthHandler(s.DB, jwtMgr, blacklist),
		User:       handlers.NewUserHandler(s.DB),
		Group:      groupH,
		Channel:    handlers.NewChannelHandler(groupH, channels),
		Membership: handlers.NewMembershipHandler(groupH, memberships),
		Message:    handlers.NewMessageHandler(guard, pipeline, paginator, messages, blobs, cfg.MaxUploadBytes, cfg.PageDefaultLimit),
		WebSocket:  handlers.NewWebSocketHandler(s.Hub, guard, cfg.CORSOrigins),
	}
	if localBlobs != nil {
		h.Blob = handlers.NewBlobHandler(localBlobs)
	}

	s.Router = gin.Default()
	APIEndpoints(s.Router, cfg, jwtMgr, blacklist, h)

	return s, nil
}

// blobStore выбирает хранилище вложений; второй результат не nil для локального
func (s *Server) blobStore() (storage.BlobStore, *storage.LocalStore, error) {
	switch s.cfg.BlobBackend {
	case "gcs":
		gcs, err := storage.NewGCSStore(context.Background(), s.cfg.GCSBucket, s.cfg.GCSCredentialsFile, s.cfg.SignedURLTTL)
		if err != nil {
			return nil, nil, err
		}
		s.closers = append(s.closers, gcs.Close)
		return gcs, nil, nil

	default:
		local, err := storage.NewLocalStore(s.cfg.BlobDir, s.cfg.BlobBaseURL, []byte(s.cfg.BlobSigningKey), s.cfg.SignedURLTTL)
		if err != nil {
			return nil, nil, err
		}
		return local, local, nil
	}
}

// publisher выбирает транспорт рассылки. Для redis и kafka hub получает события через relay,
// включая собственные.
func (s *Server) publisher() (broadcast.Publisher, error) {
	switch s.cfg.BroadcastBackend {
	case "redis":
		if s.Redis == nil {
			return nil, errors.New("redis broadcast backend requires REDIS_URL")
		}
		relay := broadcast.NewRedisRelay(s.Redis, s.Hub)
		s.relay = relay
		return relay, nil

	case "kafka":
		groupID := s.cfg.KafkaGroupID
		if groupID == "" {
			host, _ := os.Hostname()
			groupID = "guildchat-" + host
		}
		relay := broadcast.NewKafkaRelay(s.cfg.KafkaBrokers, s.cfg.KafkaTopic, groupID, s.Hub)
		s.relay = relay
		s.closers = append(s.closers, relay.Close)
		return relay, nil

	default:
		return s.Hub, nil
	}
}

func (s *Server) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.Hub.Run()

	if s.relay != nil {
		go func() {
			if err := s.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Broadcast relay stopped: %v", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.Router,
	}

	go func() {
		log.Printf("Server starting on port %s", s.cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server run error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}

	s.Hub.Stop()

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Printf("Close: %v", err)
		}
	}
}

package server

import (
	"github.com/herd-1807-capstone/api-routes/internal/auth"
	"github.com/herd-1807-capstone/api-routes/internal/chat"
	"github.com/herd-1807-capstone/api-routes/internal/config"
	"github.com/herd-1807-capstone/api-routes/internal/shared/lock"
	"github.com/herd-1807-capstone/api-routes/internal/storage"
	"github.com/herd-1807-capstone/api-routes/internal/store"
	"github.com/herd-1807-capstone/api-routes/internal/stream"
	"github.com/herd-1807-capstone/api-routes/internal/tour"
	"github.com/herd-1807-capstone/api-routes/internal/user"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	Store  store.Store
	Locks  lock.Locker
	Stream *stream.Hub
}

// NewServer wires the store, the lock discipline and all routes. Without
// Postgres it falls back to the in-process store; without Redis, locks
// stay process-local (single-instance deployments only).
func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	var st store.Store = store.NewMemory()
	if db != nil {
		st = store.NewPostgres(db)
	}

	var locks lock.Locker = lock.NewTable()
	if redisClient != nil {
		locks = lock.NewRedisLocker(redisClient)
	}

	s := &Server{
		App:    app,
		Cfg:    cfg,
		Store:  st,
		Locks:  locks,
		Stream: stream.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authMiddleware := auth.Middleware(s.Cfg.JWTSecret, s.Store)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.Store))
	user.RegisterRoutes(s.App.Group("/users"), user.NewService(s.Store, s.Stream), authMiddleware)
	tour.RegisterRoutes(s.App.Group("/tours"), tour.NewService(s.Store, s.Locks), authMiddleware)
	chat.RegisterRoutes(s.App.Group("/chat"), chat.NewService(s.Store, s.Locks), authMiddleware)
	storage.RegisterRoutes(s.App.Group("/storage"), storage.NewService(s.Store), authMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

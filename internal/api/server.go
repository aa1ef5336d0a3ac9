package api

import (
	"context"
	"fmt"
	"net/http"

	"ticketd/internal/booking"
	"ticketd/internal/cache"
	"ticketd/internal/capacity"
	"ticketd/internal/config"
	"ticketd/internal/database"
	"ticketd/internal/handlers"
	"ticketd/internal/lock"
	"ticketd/internal/logger"
	"ticketd/internal/messaging"
	"ticketd/internal/middleware"
	"ticketd/internal/ratelimit"
	"ticketd/internal/repository"
	"ticketd/internal/search"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires the HTTP API together with the booking orchestrator and its
// background jobs.
type Server struct {
	router     *gin.Engine
	config     *config.Config
	db         *database.DB
	cache      *cache.Client
	bus        *messaging.Client
	repos      *repository.Repositories
	bookings   *booking.Service
	rpc        *booking.RPCServer
	sweeper    *booking.Sweeper
	reconciler *booking.Reconciler
	search     *search.Client

	jobsCancel context.CancelFunc
}

func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	cacheClient, err := cache.NewClient(cfg.Cache)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", "error", err)
	}

	bus, err := messaging.Connect(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}

	searchClient, err := search.NewClient(cfg.Search)
	if err != nil {
		// Search is a read model; the API degrades to Postgres listings.
		logger.Get().Warn("Elasticsearch unavailable, search disabled", "error", err)
		searchClient = nil
	}

	repos := repository.NewRepositories(db)
	locks := lock.NewManager(cacheClient.Redis())
	limiter := ratelimit.NewLimiter(cacheClient.Redis())
	capacityClient := capacity.NewClient(bus, cfg.Capacity)

	bookings := booking.NewService(cfg.Booking, locks, limiter, capacityClient,
		bus, repos.Bookings, repos.Events, repos.Users)

	server := &Server{
		router:     gin.New(),
		config:     cfg,
		db:         db,
		cache:      cacheClient,
		bus:        bus,
		repos:      repos,
		bookings:   bookings,
		rpc:        booking.NewRPCServer(bookings, bus),
		sweeper:    booking.NewSweeper(bookings),
		reconciler: booking.NewReconciler(cfg.Booking, repos.Ledger, capacityClient, locks),
		search:     searchClient,
	}

	server.router.Use(middleware.Recovery())
	server.router.Use(middleware.RequestID())
	server.router.Use(middleware.Logger())
	server.router.Use(middleware.CORS())

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.bookings, s.repos, s.search)

	api := s.router.Group("/api")
	api.Use(middleware.BasicAuth(s.repos.Users, s.cache))
	{
		events := api.Group("/events")
		{
			events.POST("", h.CreateEvent)
			events.GET("", h.ListEvents)
			events.GET("/:id", h.GetEvent)
			events.PATCH("/:id/capacity", h.UpdateCapacity)
		}

		bookings := api.Group("/bookings")
		{
			bookings.POST("", h.CreateBooking)
			bookings.GET("", h.ListBookings)
			bookings.PATCH("/cancel", h.CancelBooking)
			bookings.PATCH("/confirmPayment", h.ConfirmPayment)
			bookings.POST("/validate", h.ValidateBooking)
		}
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	if err := s.db.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
		return
	}
	if err := s.cache.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "cache": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ticketd-api",
	})
}

// Start brings up the bus-facing side: booking RPC handlers, the expiry
// sweeper and the capacity reconciler. HTTP serving is left to the caller so
// it can own graceful shutdown.
func (s *Server) Start() error {
	if err := s.rpc.Start(); err != nil {
		return fmt.Errorf("failed to start booking RPC handlers: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.jobsCancel = cancel
	go s.sweeper.Start(ctx)
	go s.reconciler.Start(ctx)

	return nil
}

// Run starts everything and serves HTTP until the listener fails.
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter exposes the router for handler tests.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

func (s *Server) Cleanup() error {
	if s.jobsCancel != nil {
		s.jobsCancel()
	}
	s.sweeper.Stop()
	s.reconciler.Stop()

	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			logger.Get().Error("Error closing NATS connection", "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			logger.Get().Error("Error closing Redis connection", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Get().Error("Error closing database connection", "error", err)
			return err
		}
	}
	return nil
}

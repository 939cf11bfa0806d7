package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"restaurant-service/config"
	"restaurant-service/consumers"
	"restaurant-service/controllers"
	"restaurant-service/database"
	"restaurant-service/guard"
	"restaurant-service/middlewares"
	"restaurant-service/models"
	"restaurant-service/rabbitmq"
	"restaurant-service/session"
	"restaurant-service/store"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "restaurant-service").Logger()

	cfg := config.LoadConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := database.InitDB(cfg); err != nil {
		log.Fatal().Err(err).Msg("database initialization failed")
	}
	defer database.CloseDB()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	rmq, err := rabbitmq.NewRabbitMQ(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq initialization failed")
	}
	defer rmq.Close()

	if err := rmq.SetupQueues(); err != nil {
		log.Fatal().Err(err).Msg("rabbitmq queue setup failed")
	}

	orders := store.NewOrderStore(log)
	repo := database.NewOrderRepository(database.DB)
	sessions := session.NewManager(rdb, log)

	// Restore the open working set so dashboards see in-flight orders
	// across restarts.
	open, err := repo.LoadOpenOrders(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("loading open orders failed")
	}
	orders.Load(open)
	log.Info().Int("count", len(open)).Msg("open orders loaded")

	consumer := consumers.NewOrderConsumer(rmq.Channel, cfg, orders, repo, log)
	consumerDone := make(chan error, 1)
	go func() { consumerDone <- consumer.Start(ctx) }()

	orderCtl := controllers.NewOrderController(orders, repo, sessions, rmq, cfg, log)
	tableCtl := controllers.NewTableController(sessions, cfg, log)
	handoffCtl := controllers.NewHandoffController(orders, repo, sessions, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.PrometheusMiddleware())
	r.Use(middlewares.AuthMiddleware([]byte(cfg.JWTSecret)))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// Customer ordering flow: the only routes that demand a table binding.
	ordering := api.Group("")
	ordering.Use(middlewares.GuardMiddleware(sessions, guard.Rule{
		RequiredRoles:        []models.Role{models.RoleCustomer},
		RequiresTableBinding: true,
	}, log))
	ordering.POST("/orders", orderCtl.CreateOrder)
	ordering.GET("/orders", orderCtl.GetUserOrders)

	// Check-in happens before a binding exists.
	checkin := api.Group("")
	checkin.Use(middlewares.GuardMiddleware(sessions, guard.Rule{
		RequiredRoles: []models.Role{models.RoleCustomer},
	}, log))
	checkin.POST("/tables/checkin", tableCtl.Checkin)

	// Order details are visible to everyone signed in; customers are
	// restricted to their own orders inside the handler.
	anyRole := api.Group("")
	anyRole.Use(middlewares.GuardMiddleware(sessions, guard.Rule{
		RequiredRoles: []models.Role{models.RoleCustomer, models.RoleAdmin, models.RoleKitchen, models.RoleWaiter},
	}, log))
	anyRole.GET("/orders/:id", orderCtl.GetOrderDetails)

	staff := api.Group("")
	staff.Use(middlewares.GuardMiddleware(sessions, guard.Rule{
		RequiredRoles: []models.Role{models.RoleAdmin, models.RoleKitchen, models.RoleWaiter},
	}, log))
	staff.PUT("/orders/:id/status", orderCtl.UpdateOrderStatus)

	kitchen := api.Group("/kitchen")
	kitchen.Use(middlewares.GuardMiddleware(sessions, guard.Rule{
		RequiredRoles: []models.Role{models.RoleKitchen, models.RoleAdmin},
	}, log))
	kitchen.GET("/orders", orderCtl.ListKitchenOrders)

	waiter := api.Group("/waiter")
	waiter.Use(middlewares.GuardMiddleware(sessions, guard.Rule{
		RequiredRoles: []models.Role{models.RoleWaiter, models.RoleAdmin},
	}, log))
	waiter.GET("/orders", orderCtl.ListWaiterOrders)

	handoffs := api.Group("/handoffs")
	handoffs.Use(middlewares.GuardMiddleware(sessions, guard.Rule{
		RequiredRoles: []models.Role{models.RoleWaiter, models.RoleAdmin},
	}, log))
	handoffs.POST("", handoffCtl.CreateHandoff)
	handoffs.POST("/:id/confirm", handoffCtl.ConfirmHandoff)

	admin := api.Group("/admin")
	admin.Use(middlewares.GuardMiddleware(sessions, guard.Rule{
		RequiredRoles: []models.Role{models.RoleAdmin},
	}, log))
	admin.GET("/orders", orderCtl.ListAdminOrders)
	admin.DELETE("/orders/:id", orderCtl.DeleteOrder)
	admin.GET("/tables/:id/qr", tableCtl.IssueTableToken)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.ListenAndServe() }()
	log.Info().Str("port", cfg.Port).Msg("restaurant service started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
		}
	case err := <-consumerDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("consumer failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ticket-gate/config"
	"ticket-gate/internal/handlers"
	"ticket-gate/internal/services"
	"ticket-gate/internal/services/notify"
	"ticket-gate/internal/services/paystack"
	"ticket-gate/internal/ticketcode"
	_ "ticket-gate/migrations"
	"ticket-gate/monitoring"
	"ticket-gate/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient *redis.Client
	if cfg.TicketStore == "redis" {
		var err error
		redisClient, err = utils.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	monitor := monitoring.NewMonitor()
	if cfg.EnableMetrics {
		go func() {
			if err := monitoring.Serve(ctx, ":"+cfg.MetricsPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	var feed *notify.GateFeed
	if cfg.PubNubPublishKey != "" {
		publisher := notify.NewPubNubPublisher(cfg.PubNubPublishKey, cfg.PubNubSubscribeKey, cfg.PubNubSecretKey)
		feed = notify.NewGateFeed(publisher, cfg.GateChannel)
	}

	verifier := paystack.New(paystack.Config{
		BaseURL:   cfg.PaystackBaseURL,
		SecretKey: cfg.PaystackSecretKey,
		Timeout:   cfg.PaystackTimeout,
	})
	if cfg.PaystackSecretKey == "" {
		slog.Warn("PAYSTACK_SECRET_KEY not set, purchases will fail as unavailable")
	}

	mailClient := notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SenderEmail, cfg.SenderPassword, cfg.SMTPTLS)
	sender := notify.NewEmailSender(mailClient, notify.EmailConfig{
		SenderName:    cfg.SenderName,
		SenderAddress: cfg.SenderEmail,
		Timeout:       cfg.NotifyTimeout,
	})

	codec := ticketcode.New(nil)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.IsDevelopment(),
	})

	app.RootCmd.AddCommand(newTicketsCommand(app, redisClient))

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		ticketStore, err := newTicketStore(app, redisClient)
		if err != nil {
			return err
		}
		slog.Info("Ticket store ready", "backend", cfg.TicketStore)

		issuance := services.NewIssuanceService(ticketStore, verifier, sender, codec, services.IssuanceConfig{
			MaxQuantity:   cfg.MaxTicketsPerPurchase,
			MaxIDAttempts: cfg.MaxIDAttempts,
			Feed:          feed,
			Monitor:       monitor,
		})
		redemption := services.NewRedemptionService(ticketStore, codec, feed, monitor)
		ticketHandler := handlers.NewTicketHandler(issuance, redemption)

		// Purchase endpoints
		e.Router.POST("/verify", ticketHandler.VerifyPayment)
		e.Router.POST("/api/v1/purchases/verify", ticketHandler.VerifyPayment)

		// Gate endpoints
		e.Router.GET("/verify-ticket/{ticketNumber}", ticketHandler.RedeemTicket)
		e.Router.POST("/api/v1/tickets/{ticketNumber}/redeem", ticketHandler.RedeemTicket)
		e.Router.GET("/api/v1/tickets/{ticketNumber}", ticketHandler.GetTicket)

		// Debug issuance without a payment
		if cfg.DebugIssuanceEnabled() {
			slog.Warn("Debug issuance enabled, tickets can be issued without payment")
			e.Router.POST("/debug-send", ticketHandler.DebugIssue)
			e.Router.POST("/api/v1/test/issue", ticketHandler.DebugIssue)
		}

		// Health check
		e.Router.GET("/health", ticketHandler.Health)

		slog.Info("Server routes registered", "environment", cfg.Environment)

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		cancel()
		return e.Next()
	})

	// Serve on PORT when started without a subcommand
	if len(os.Args) == 1 {
		app.RootCmd.SetArgs([]string{"serve", "--http", "0.0.0.0:" + cfg.Port})
	}

	return app.Start()
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Shutdown signal received, cleaning up...")
	cancel()
}

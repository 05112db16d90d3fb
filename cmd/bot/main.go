package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mymmrac/telego"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"spin-bot/internal/bot"
	"spin-bot/internal/config"
	"spin-bot/internal/database"
	"spin-bot/internal/gate"
	"spin-bot/internal/ledger"
	"spin-bot/internal/session"
	"spin-bot/internal/webhook"
	"spin-bot/internal/worker"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	// Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("Unknown LOG_LEVEL %q, keeping %s", cfg.LogLevel, log.GetLevel())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer closeStore()

	sessions, rdb, err := openSessions(ctx, cfg)
	if err != nil {
		log.Fatalf("Could not connect to redis: %v", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	instance, err := telego.NewBot(cfg.BotToken, telego.WithLogger(log.StandardLogger()))
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	gateway := bot.NewGateway(instance, cfg.AdminID)

	l := ledger.New(store, rewardSource(cfg), gateway, ledger.Options{
		DailyBonus:    cfg.DailyBonus,
		MinWithdrawal: cfg.MinWithdrawal,
		ReferralSpins: cfg.ReferralSpins,
		Location:      cfg.Location,
	})
	if err := l.LoadChannels(ctx); err != nil {
		log.Fatalf("Could not load channel allow-list: %v", err)
	}

	b := bot.NewBot(instance, gateway, l, gate.New(l, gateway, gate.DefaultOptions()), sessions, cfg.AdminID)
	b.AnimationURL = cfg.SpinAnimationURL
	b.ReferralSpins = cfg.ReferralSpins

	checker := worker.NewChecker(l, sessions, gateway)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		checker.Start(ctx)
		return nil
	})

	if cfg.WebhookURL == "" {
		if err := instance.DeleteWebhook(ctx, nil); err != nil {
			log.Warnf("Failed to delete webhook: %v", err)
		}
		updates, err := instance.UpdatesViaLongPolling(ctx, nil)
		if err != nil {
			log.Fatalf("Failed to start long polling: %v", err)
		}
		log.Info("Receiving updates via long polling")
		eg.Go(func() error { return b.Start(ctx, updates) })
	} else {
		var cidrs []string
		if cfg.WebhookCheckIP {
			cidrs = webhook.TelegramCIDRs
		}
		allowed, err := webhook.ParseAllowList(cidrs)
		if err != nil {
			log.Fatalf("Invalid webhook allow-list: %v", err)
		}
		proxies, err := webhook.ParseAllowList(cfg.WebhookTrustedProxies)
		if err != nil {
			log.Fatalf("Invalid WEBHOOK_TRUSTED_PROXIES: %v", err)
		}
		hook := webhook.NewHandler(cfg.WebhookSecret, allowed, 128)
		hook.TrustedProxies = proxies
		srv := webhook.NewServer(":"+cfg.Port, cfg.WebhookPath(), hook)

		if err := instance.SetWebhook(ctx, &telego.SetWebhookParams{
			URL:         cfg.WebhookURL,
			SecretToken: cfg.WebhookSecret,
		}); err != nil {
			log.Fatalf("Failed to set webhook: %v", err)
		}
		log.Infof("Receiving updates via webhook %s", cfg.WebhookURL)

		eg.Go(func() error { return webhook.Serve(ctx, srv) })
		eg.Go(func() error {
			<-ctx.Done()
			hook.Close()
			return nil
		})
		eg.Go(func() error { return b.Start(ctx, hook.Updates()) })
	}

	log.Info("Service started successfully")
	if err := eg.Wait(); err != nil {
		log.Errorf("Service stopped with error: %v", err)
		return
	}
	log.Info("Service stopped")
}

func openStore(cfg *config.Config) (ledger.Store, func(), error) {
	if cfg.DBDriver == config.DriverMemory {
		log.Warn("Using in-memory storage, data is lost on restart")
		return database.NewMemoryStore(), func() {}, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return database.NewGormStore(db), closeDB, nil
}

func openSessions(ctx context.Context, cfg *config.Config) (session.Store, *redis.Client, error) {
	if !cfg.RedisEnabled {
		log.Warn("Redis disabled, keeping conversation state in memory")
		return session.NewMemoryStore(session.DefaultTTL), nil, nil
	}

	rdb, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return session.NewRedisStore(rdb, session.DefaultTTL), rdb, nil
}

func rewardSource(cfg *config.Config) ledger.RewardSource {
	if cfg.RewardMode == config.RewardModeUniform {
		return ledger.NewUniformRewards(cfg.RewardMin, cfg.RewardMax)
	}
	return ledger.NewWeightedRewards(ledger.DefaultPayouts)
}

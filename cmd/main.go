package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/asaskevich/EventBus"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxaizer/jobboard-core/internal/bot"
	"github.com/maxaizer/jobboard-core/internal/clients"
	"github.com/maxaizer/jobboard-core/internal/clients/mail"
	"github.com/maxaizer/jobboard-core/internal/clients/telegram"
	"github.com/maxaizer/jobboard-core/internal/config"
	"github.com/maxaizer/jobboard-core/internal/logger"
	"github.com/maxaizer/jobboard-core/internal/metrics"
	"github.com/maxaizer/jobboard-core/internal/notifications"
	"github.com/maxaizer/jobboard-core/internal/repositories"
	"github.com/maxaizer/jobboard-core/internal/services"
	log "github.com/sirupsen/logrus"
)

const mailRetryDelay = 2 * time.Second

func newRouter(cfg *config.Config, api *botApi.BotAPI) *clients.Router {
	mailClient, err := mail.NewClient(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password)
	if err != nil {
		log.Fatalf("can't create mail client: %v", err)
	}
	mailClient.SetRateLimit(cfg.Mail.MaxSendsPerSecond)
	mailClient.SetRetries(cfg.Mail.Retries, mailRetryDelay)

	if api == nil {
		return clients.NewRouter(mailClient, nil)
	}
	return clients.NewRouter(mailClient, telegram.NewTransport(api))
}

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()

	logger.Setup(ctx, cfg.Logger)
	defer logger.Cleanup()

	metrics.StartMetricsServer(cfg.MetricsAddr)

	dbContext, err := repositories.NewDbContext(cfg.DB.ConnectionString)
	if err != nil {
		log.Fatalf("can't create db context: %v", err)
	}
	defer dbContext.Close()

	if err = dbContext.SetMaxOpenConns(cfg.DB.MaxOpenConns); err != nil {
		log.Fatalf("can't configure db pool: %v", err)
	}

	if err = dbContext.Migrate(); err != nil {
		log.Fatalf("can't migrate db context: %v", err)
	}
	if err = dbContext.SeedOptions(cfg.Notifications.Defaults()); err != nil {
		log.Fatalf("can't seed options: %v", err)
	}

	entities := repositories.NewEntitiesRepository(dbContext.DB)
	users := repositories.NewCachedUsers(repositories.NewUsersRepository(dbContext.DB))
	options := repositories.NewCachedOptions(repositories.NewOptionsRepository(dbContext.DB), cfg.Notifications.OptionsCacheTTL)
	notificationLogs := repositories.NewNotificationLogsRepository(dbContext.DB)

	bus := EventBus.New()

	executor, err := services.NewTransitionExecutor(entities, bus)
	if err != nil {
		log.Fatalf("can't create transition executor: %v", err)
	}

	var api *botApi.BotAPI
	if cfg.Telegram.Enabled() {
		api, err = botApi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Fatalf("can't create telegram api: %v", err)
		}
	}

	dispatcher, err := notifications.NewDispatcher(newRouter(cfg, api), options, notificationLogs, users,
		notifications.Options{
			Workers:     cfg.Notifications.Workers,
			QueueSize:   cfg.Notifications.QueueSize,
			SendTimeout: cfg.Notifications.SendTimeout,
		})
	if err != nil {
		log.Fatalf("can't create dispatcher: %v", err)
	}
	if err = dispatcher.Start(bus); err != nil {
		log.Fatalf("can't start dispatcher: %v", err)
	}

	expirer, err := services.NewJobsExpirer(entities, executor)
	if err != nil {
		log.Fatalf("can't create jobs expirer: %v", err)
	}
	if err = expirer.Start(cfg.Jobs.ExpirySchedule); err != nil {
		log.Fatalf("can't start jobs expirer: %v", err)
	}

	var adminBot *bot.Bot
	if api != nil {
		adminBot, err = bot.NewBot(api, bot.Services{
			Users:      users,
			Executor:   executor,
			Dispatcher: dispatcher,
			Logs:       notificationLogs,
		})
		if err != nil {
			log.Fatalf("can't create bot: %v", err)
		}
		go adminBot.Run()
	} else {
		log.Info("telegram token is not set, admin bot disabled")
	}

	<-ctx.Done()

	log.Info("Shutting down services...")
	if adminBot != nil {
		adminBot.Stop()
	}
	expirer.Stop()
	dispatcher.Stop()
	log.Info("Services stopped.")
}

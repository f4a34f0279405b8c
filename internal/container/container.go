package container

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/barterx-accounts/config"
	"github.com/oksasatya/barterx-accounts/internal/application"
	repo "github.com/oksasatya/barterx-accounts/internal/domain/repository"
	"github.com/oksasatya/barterx-accounts/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/barterx-accounts/internal/infrastructure/postgres"
	"github.com/oksasatya/barterx-accounts/internal/infrastructure/search"
	"github.com/oksasatya/barterx-accounts/internal/infrastructure/storage"
	"github.com/oksasatya/barterx-accounts/pkg/helpers"
	"github.com/oksasatya/barterx-accounts/pkg/mailer"
	mailtpl "github.com/oksasatya/barterx-accounts/pkg/mailer/templates"
)

// Container owns the process-wide components the router modules are wired from.
type Container struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Redis    *redis.Client // nil when rate limiting is off
	Repo     repo.AccountRepository
	Accounts *application.AccountService
	Profiles *application.ProfileService

	closers []func()
}

// New builds every component cfg asks for. Search, picture storage and Redis
// are optional: when unconfigured or unreachable they are left out and the
// service degrades instead of refusing to start.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	store, err := c.openStore(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("store: %w", err)
	}
	notifier, err := c.openNotifier()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("notifier: %w", err)
	}
	index := c.openIndex(ctx)
	pictures := c.openPictures(ctx)
	c.Redis = c.openRedis(ctx)

	c.Repo = store
	c.Accounts = application.NewAccountService(store, helpers.NewCodeIssuer(), notifier, index, logger, mailtpl.BrandFromConfig(cfg))
	c.Accounts.NotifyTimeout = cfg.NotifierTimeout
	c.Accounts.BcryptCost = cfg.BcryptCost
	c.Profiles = application.NewProfileService(store, index, pictures, logger)
	return c, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Container) onClose(f func()) { c.closers = append(c.closers, f) }

func (c *Container) openStore(ctx context.Context) (repo.AccountRepository, error) {
	switch c.Config.StoreDriver {
	case "memory":
		c.Logger.Warn("using in-memory account store; data is lost on restart")
		return memory.NewAccountRepository(), nil
	case "postgres", "":
		pool, err := pginfra.NewPool(ctx, pginfra.PoolConfig{
			DSN:         c.Config.PostgresDSN(),
			MaxConns:    c.Config.DBMaxConns,
			MinConns:    c.Config.DBMinConns,
			MaxConnLife: c.Config.DBMaxConnLife,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.onClose(pool.Close)
		if err := pginfra.Migrate(c.Config.PostgresDSN(), c.Config.MigrationsDir, c.Logger); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return pginfra.NewAccountRepository(pool), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", c.Config.StoreDriver)
	}
}

func (c *Container) openNotifier() (application.Notifier, error) {
	cfg := c.Config
	if !cfg.MailSendEnabled {
		c.Logger.Warn("MAIL_SEND_ENABLED=false; codes are logged as dropped, not mailed")
		return &mailer.LogNotifier{Logger: c.Logger}, nil
	}
	switch cfg.NotifierDriver {
	case "log":
		return &mailer.LogNotifier{Logger: c.Logger}, nil
	case "mailgun":
		if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
			return nil, fmt.Errorf("mailgun not configured")
		}
		return mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender), nil
	case "queue", "":
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		c.onClose(pub.Close)
		return mailer.NewQueueNotifier(pub), nil
	default:
		return nil, fmt.Errorf("unknown NOTIFIER_DRIVER %q", cfg.NotifierDriver)
	}
}

// openIndex returns a nil interface, never a typed nil, when search is off.
func (c *Container) openIndex(ctx context.Context) application.ProfileIndex {
	addrs := c.Config.ESAddrs()
	if len(addrs) == 0 {
		return nil
	}
	es, err := helpers.NewESClient(addrs, c.Config.ElasticsearchUser, c.Config.ElasticsearchPass)
	if err != nil {
		c.Logger.WithError(err).Warn("elasticsearch disabled")
		return nil
	}
	if err := helpers.PingES(ctx, es); err != nil {
		c.Logger.WithError(err).Warn("elasticsearch unreachable; profile indexing is best effort")
	}
	return search.NewProfileIndex(es, c.Config.ESProfilesIndex)
}

func (c *Container) openPictures(ctx context.Context) application.PictureStore {
	if c.Config.GCSBucket == "" {
		return nil
	}
	client, err := helpers.NewGCSClient(ctx, c.Config.GCSCredentialsJSONPath)
	if err != nil {
		c.Logger.WithError(err).Warn("gcs disabled; picture upload unavailable")
		return nil
	}
	c.onClose(func() { _ = client.Close() })
	return storage.NewPictureStore(client, c.Config.GCSBucket)
}

func (c *Container) openRedis(ctx context.Context) *redis.Client {
	if !c.Config.RateLimitEnabled {
		return nil
	}
	rdb := helpers.NewRedisClient(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB)
	c.onClose(func() { _ = rdb.Close() })
	if err := helpers.PingRedis(ctx, rdb); err != nil {
		c.Logger.WithError(err).Warn("redis unreachable; rate limits fail open")
	}
	return rdb
}

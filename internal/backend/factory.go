package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fintrack/internal/archive"
	"fintrack/internal/checkpoint"
	"fintrack/internal/config"
	"fintrack/internal/delivery"
	"fintrack/internal/delivery/gmail"
	"fintrack/internal/delivery/resend"
	"fintrack/internal/delivery/smtp"
	"fintrack/internal/fetch"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/report/pdf"
	"fintrack/internal/report/xlsx"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/store/memory"
	"fintrack/internal/store/supabase"
)

const storageLockKey = "fintrack:report-storage"

// Factory builds Components from configuration.
type Factory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Build wires every collaborator. On error, anything already opened is
// released.
func (f *Factory) Build(ctx context.Context, cfg Config) (_ *Components, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Components{}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if c.Data, err = f.createDataSource(c, cfg); err != nil {
		return nil, err
	}
	c.Fetcher = fetch.New(c.Data, c.Data, f.logger)

	var storageOpts []report.StorageOption
	storageOpts = append(storageOpts, report.WithStorageLogger(f.logger))
	if cfg.RedisURL != "" {
		if c.redis, err = f.createRedis(c, cfg.RedisURL); err != nil {
			return nil, err
		}
		locker := report.NewRedisLocker(c.redis, storageLockKey, 30*time.Second, f.logger)
		storageOpts = append(storageOpts, report.WithLocker(locker))
	}
	c.Storage = report.NewStorage(cfg.StorageDir, cfg.RotationThreshold, storageOpts...)

	writer, err := createWriter(cfg.Format)
	if err != nil {
		return nil, err
	}
	rendererOpts := []report.RendererOption{report.WithLogger(f.logger)}
	if cfg.GCSBucket != "" {
		gcs, err := archive.NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON, f.logger)
		if err != nil {
			return nil, err
		}
		c.onClose(gcs.Close)
		rendererOpts = append(rendererOpts, report.WithArchiver(gcs))
		f.logger.Info("Archiving reports to GCS", "bucket", cfg.GCSBucket)
	}
	c.Renderer = report.NewRenderer(c.Storage, writer, rendererOpts...)

	transport, err := f.createTransport(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.Mailer = delivery.NewDispatcher(transport, cfg.MailFrom, f.logger)

	c.Reports = services.NewReportService(c.Fetcher, c.Renderer, f.logger)
	c.Orchestrator = services.NewOrchestrator(c.Fetcher, c.Renderer, c.Mailer,
		services.WithPoolSize(cfg.PoolSize),
		services.WithOrchestratorLogger(f.logger))

	if cfg.Scheduled {
		if c.Checkpoint, err = f.createCheckpoint(c, cfg); err != nil {
			return nil, err
		}
	}

	f.logger.Info("Backend ready",
		"backend", cfg.Type.String(),
		"format", c.Renderer.Format().Extension,
		"mail_transport", cfg.MailTransport,
		"storage_dir", cfg.StorageDir)
	return c, nil
}

func (f *Factory) createDataSource(c *Components, cfg Config) (DataSource, error) {
	switch cfg.Type {
	case SupabaseBackend:
		client, err := supabase.New(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create supabase client: %w", err)
		}
		return client, nil
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		c.onClose(repo.Close)
		return repo, nil
	case MemoryBackend:
		if cfg.MemorySeedFile == "" {
			f.logger.Warn("Memory backend started without seed data")
			return memory.New(), nil
		}
		s, err := memory.NewFromFile(cfg.MemorySeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load memory seed: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

func (f *Factory) createRedis(c *Components, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	c.onClose(rdb.Close)
	return rdb, nil
}

// createCheckpoint picks where the scheduler records finished months: Redis
// when configured, then the SQLite data store, then a dedicated SQLite file.
func (f *Factory) createCheckpoint(c *Components, cfg Config) (services.RunCheckpoint, error) {
	if c.redis != nil {
		f.logger.Info("Scheduler checkpoint in Redis", "key", checkpoint.DefaultKey)
		return checkpoint.NewRedis(c.redis, ""), nil
	}
	if repo, ok := c.Data.(*storage.SQLiteRepository); ok {
		f.logger.Info("Scheduler checkpoint in SQLite data store", "path", cfg.SQLiteDBPath)
		return repo, nil
	}
	if cfg.StateDBPath == "" {
		f.logger.Warn("Scheduler checkpoint kept in memory; a restart may repeat the last run")
		return nil, nil
	}
	repo, err := storage.NewSQLiteRepository(cfg.StateDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open scheduler state: %w", err)
	}
	c.onClose(repo.Close)
	f.logger.Info("Scheduler checkpoint in SQLite", "path", cfg.StateDBPath)
	return repo, nil
}

func createWriter(format string) (report.Writer, error) {
	switch format {
	case "", "pdf":
		return pdf.New(), nil
	case "xlsx":
		return xlsx.New(), nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

func (f *Factory) createTransport(ctx context.Context, cfg Config) (delivery.Transport, error) {
	switch cfg.MailTransport {
	case config.MailSMTP:
		return smtp.New(smtp.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			StartTLS: cfg.SMTPStartTLS,
		})
	case config.MailGmail:
		return gmail.New(ctx, gmailCredentials(cfg), f.logger)
	case config.MailResend:
		return resend.New(cfg.ResendAPIKey, f.logger)
	default:
		return delivery.NewLogTransport(f.logger), nil
	}
}

// gmailCredentials tells a service account key from an OAuth client file
// by its "type" field.
func gmailCredentials(cfg Config) gmail.Credentials {
	var kind struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(cfg.GmailCredentials, &kind)
	if kind.Type == "service_account" {
		return gmail.Credentials{ServiceAccountJSON: cfg.GmailCredentials, Subject: cfg.GmailSubject}
	}
	return gmail.Credentials{OAuthClientJSON: cfg.GmailCredentials, TokenFile: cfg.GmailTokenFile}
}

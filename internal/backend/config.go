package backend

import (
	"fmt"
	"os"

	"fintrack/internal/config"
)

// Config is the subset of the application config the factory needs, with
// file-based secrets already read.
type Config struct {
	Type BackendType

	SupabaseURL        string
	SupabaseServiceKey string
	SQLiteDBPath       string
	MemorySeedFile     string

	StorageDir        string
	Format            string
	RotationThreshold int
	PoolSize          int

	MailTransport string
	MailFrom      string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPStartTLS  bool

	GmailCredentials []byte
	GmailSubject     string
	GmailTokenFile   string
	ResendAPIKey     string

	RedisURL           string
	GCSBucket          string
	GCSCredentialsJSON string

	// Scheduled builds a run checkpoint for the monthly scheduler.
	Scheduled   bool
	StateDBPath string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	gmailCreds := []byte(appConfig.GmailCredentialsJSON)
	if len(gmailCreds) == 0 && appConfig.GmailCredentialsFile != "" {
		b, err := os.ReadFile(appConfig.GmailCredentialsFile)
		if err != nil {
			return Config{}, fmt.Errorf("read gmail credentials: %w", err)
		}
		gmailCreds = b
	}

	return Config{
		Type: backendType,

		SupabaseURL:        appConfig.SupabaseURL,
		SupabaseServiceKey: appConfig.SupabaseServiceKey,
		SQLiteDBPath:       appConfig.SQLiteDBPath,
		MemorySeedFile:     appConfig.MemorySeedFile,

		StorageDir:        appConfig.ReportStorageDir,
		Format:            appConfig.ReportFormat,
		RotationThreshold: appConfig.RotationThreshold,
		PoolSize:          appConfig.WorkerPoolSize,

		MailTransport: appConfig.MailTransport,
		MailFrom:      appConfig.MailFrom,
		SMTPHost:      appConfig.SMTPHost,
		SMTPPort:      appConfig.SMTPPort,
		SMTPUsername:  appConfig.SMTPUsername,
		SMTPPassword:  appConfig.SMTPPassword,
		SMTPStartTLS:  appConfig.SMTPStartTLS,

		GmailCredentials: gmailCreds,
		GmailSubject:     appConfig.GmailSubject,
		GmailTokenFile:   appConfig.GmailTokenFile,
		ResendAPIKey:     appConfig.ResendAPIKey,

		RedisURL:           appConfig.RedisURL,
		GCSBucket:          appConfig.GCSBucket,
		GCSCredentialsJSON: appConfig.GCSCredentialsJSON,

		Scheduled:   appConfig.ScheduleInterval > 0,
		StateDBPath: appConfig.ScheduleStateDB,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SupabaseBackend:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("supabase url and service key are required for supabase backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("sqlite database path is required for sqlite backend")
		}
	case MemoryBackend:
		// An empty seed file starts an empty store.
	}

	if c.StorageDir == "" {
		return fmt.Errorf("report storage directory is required")
	}
	switch c.MailTransport {
	case config.MailLog, config.MailSMTP:
	case config.MailGmail:
		if len(c.GmailCredentials) == 0 {
			return fmt.Errorf("gmail credentials are required for gmail transport")
		}
	case config.MailResend:
		if c.ResendAPIKey == "" {
			return fmt.Errorf("resend api key is required for resend transport")
		}
	default:
		return fmt.Errorf("unsupported mail transport: %s", c.MailTransport)
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SupabaseBackend, SQLiteBackend, MemoryBackend}
}

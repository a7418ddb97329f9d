package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
	}
	Log struct {
		Level string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret    string
		SessionTTL   time.Duration
		BcryptCost   int
		CookieName   string
		CookieSecure bool
	}
	Media struct {
		MaxBytes       int64
		AllowedTypes   []string
		UploadTimeout  time.Duration
		UploadAttempts int
		PostFolder     string
		AvatarFolder   string
	}
	Storage struct {
		Backend       string
		Bucket        string
		KeyPrefix     string
		Region        string
		Endpoint      string
		PublicBaseURL string
		AccessKey     string
		SecretKey     string
		UseSSL        bool
	}
	AWS struct {
		Profile string
	}
	Maintenance struct {
		Interval time.Duration
		// CleanupGrace keeps freshly uploaded objects out of operator cleanup.
		CleanupGrace time.Duration
	}
}

// Load reads configuration from environment variables and optional config files.
// A .env file in the working directory is applied first without overriding
// variables already set in the environment.
func Load() (Config, error) {
	_ = godotenv.Load() // optional file

	v := viper.New()
	v.SetEnvPrefix("PIXNEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.readtimeout", 30*time.Second)
	v.SetDefault("server.writetimeout", 60*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("database.path", "data/pixnest.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.sessionttl", 24*time.Hour)
	v.SetDefault("auth.bcryptcost", 12)
	v.SetDefault("auth.cookiename", "pixnest_session")
	v.SetDefault("auth.cookiesecure", false)
	v.SetDefault("media.maxbytes", int64(10<<20))
	v.SetDefault("media.allowedtypes", []string{"image/jpeg", "image/png"})
	v.SetDefault("media.uploadtimeout", 30*time.Second)
	v.SetDefault("media.uploadattempts", 2)
	v.SetDefault("media.postfolder", "posts")
	v.SetDefault("media.avatarfolder", "avatars")
	v.SetDefault("storage.backend", "s3")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "pixnest")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.publicbaseurl", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.usessl", true)
	v.SetDefault("aws.profile", "")
	v.SetDefault("maintenance.interval", 10*time.Minute)
	v.SetDefault("maintenance.cleanupgrace", 24*time.Hour)
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth jwt secret is required")
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("auth session ttl must be positive")
	}
	if c.Media.MaxBytes <= 0 {
		return errors.New("media max bytes must be positive")
	}
	if len(c.Media.AllowedTypes) == 0 {
		return errors.New("media allowed types must not be empty")
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return errors.New("storage bucket is required")
	}
	switch c.Storage.Backend {
	case "s3", "minio":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

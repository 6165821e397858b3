// Package config loads service configuration from config.toml and the environment.
package config

import (
	"log/slog"
	"sync"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
)

type Config struct {
	FeedSource      string   `toml:"feed_source" env:"FEED_SOURCE"`
	FeedUserAgent   string   `toml:"feed_user_agent" env:"FEED_USER_AGENT" default:"Go/RSSNotifier"`
	FromEmail       string   `toml:"from_email" env:"FROM_EMAIL"`
	FromName        string   `toml:"from_name" env:"FROM_NAME"`
	SubjectNewEntry string   `toml:"subject_new_entry" env:"SUBJECT_NEW_ENTRY" default:"New post published!"`
	UnsubscribeURL  string   `toml:"unsubscribe_url" env:"UNSUBSCRIBE_URL"`
	MailerSendToken string   `toml:"mailersend_token" env:"MAILERSEND_TOKEN"`
	MailerSendPlan  string   `toml:"mailersend_plan" env:"MAILERSEND_PLAN" default:"no_plan"`
	VerifierAPIKey  string   `toml:"verifier_api_key" env:"VERIFIER_API_KEY"`
	StorageBucket   string   `toml:"storage_bucket" env:"STORAGE_BUCKET"`
	LocalStorage    string   `toml:"local_storage" env:"LOCAL_STORAGE"`
	StorageSalt     string   `toml:"storage_salt" env:"STORAGE_SALT"`
	Port            string   `toml:"port" env:"PORT" default:"8080"`
	CORSOrigins     []string `toml:"cors_origins" env:"CORS_ORIGINS" default:"*"`
}

var (
	cfg  Config
	once sync.Once
)

func Get() Config {
	once.Do(func() {
		loader := aconfig.LoaderFor(&cfg, aconfig.Config{
			EnvPrefix: "RSSN",
			SkipFlags: true,
			Files:     []string{"./config.toml", "./config.local.toml"},
			FileDecoders: map[string]aconfig.FileDecoder{
				".toml": aconfigtoml.New(),
			},
		})

		if err := loader.Load(); err != nil {
			slog.Error("failed to load config", "err", err)
		}
	})

	return cfg
}

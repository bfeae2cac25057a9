// Package config loads minicd's configuration once at startup from
// layered TOML/YAML files and an environment-variable overlay, producing
// an immutable Config value.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved, immutable runtime configuration.
type Config struct {
	BindAddress     string
	Port            int
	RepoRoot        string
	IndexInterval   time.Duration
	SecretsFile     string
	Mail            MailConfig
	HookfileVersion int
}

// MailConfig holds SMTP transport settings. A zero value means "no
// mailer is configured" — callers observe this and log-warn.
type MailConfig struct {
	SMTPServer string
	SMTPPort   int
	Username   string
	Password   string
	From       string
}

// Configured reports whether enough SMTP settings are present to build a
// mailer.
func (m MailConfig) Configured() bool {
	return m.SMTPServer != "" && m.From != ""
}

// CurrentHookfileVersion is the version stamped into generated
// post-receive hooks; bump it whenever the hook body template changes so
// the indexer knows to replace stale hooks.
const CurrentHookfileVersion = 1

// defaults mirrors spec.md §3: bind address 0.0.0.0, indexing interval
// 30s, port 8080, SMTP port 587, everything else empty/unset until a
// layer overrides it.
func defaults(v *viper.Viper) {
	v.SetDefault("bind_address", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("repo_root", "")
	v.SetDefault("index_interval", "30s")
	v.SetDefault("secrets_file", "")
	v.SetDefault("mail.smtp_server", "")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
}

// Load resolves configuration from, in increasing precedence:
// ./minicd.toml, ./minicd.yaml, /etc/minicd/config.toml,
// /etc/minicd/config.yaml, then environment variables prefixed MINICD_
// with "__" as the nesting separator (e.g. MINICD_MAIL__SMTP_SERVER).
func Load() (Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("MINICD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	for _, path := range []string{
		"./minicd.toml",
		"./minicd.yaml",
		"/etc/minicd/config.toml",
		"/etc/minicd/config.yaml",
	} {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			if isNotFound(err) {
				continue
			}
			return Config{}, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	interval, err := time.ParseDuration(v.GetString("index_interval"))
	if err != nil {
		return Config{}, fmt.Errorf("parsing index_interval: %w", err)
	}

	cfg := Config{
		BindAddress:     v.GetString("bind_address"),
		Port:            v.GetInt("port"),
		RepoRoot:        v.GetString("repo_root"),
		IndexInterval:   interval,
		SecretsFile:     v.GetString("secrets_file"),
		HookfileVersion: CurrentHookfileVersion,
		Mail: MailConfig{
			SMTPServer: v.GetString("mail.smtp_server"),
			SMTPPort:   v.GetInt("mail.smtp_port"),
			Username:   v.GetString("mail.username"),
			Password:   v.GetString("mail.password"),
			From:       v.GetString("mail.from"),
		},
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}

	return cfg, nil
}

func isNotFound(err error) bool {
	_, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		return true
	}
	// SetConfigFile + MergeInConfig returns a plain *os.PathError-wrapped
	// error on a missing explicit path rather than ConfigFileNotFoundError.
	return strings.Contains(err.Error(), "no such file or directory")
}

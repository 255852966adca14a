package config

import "slices"

const redacted = "***"

// RedactedConfig returns a copy of cfg that is safe to log: every non-empty
// credential reads "***" and slices are cloned so the copy never aliases cfg.
func RedactedConfig(cfg *Config) Config {
	out := *cfg
	for _, secret := range []*string{
		&out.Redis.Password,
		&out.Postgres.DSN,
		&out.Postgres.Password,
		&out.S3.AccessKey,
		&out.S3.SecretKey,
		&out.Notify.TelegramToken,
		&out.Notify.DiscordWebhookURL,
		&out.Server.APIKey,
	} {
		if *secret != "" {
			*secret = redacted
		}
	}
	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	return out
}

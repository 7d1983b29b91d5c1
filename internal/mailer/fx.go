package mailer

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/config"
)

var Module = fx.Module("mailer",
	fx.Provide(NewFromConfig),
)

// NewFromConfig wires SMTP when a host is configured and a no-op provider
// otherwise.
func NewFromConfig(cfg config.Config) (Provider, error) {
	if cfg.SMTP.Host == "" {
		zap.L().Named("mailer").Warn("no smtp host configured, outbound mail disabled")
		return &NoOpProvider{}, nil
	}
	return NewSMTP(Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

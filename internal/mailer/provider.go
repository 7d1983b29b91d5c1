// Package mailer delivers transactional account email.
package mailer

import "context"

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error
}

// NoOpProvider discards mail. It is wired when no SMTP host is configured,
// which keeps development and tests free of a mail dependency.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
	return nil
}

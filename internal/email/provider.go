// Package email sends the new-postings digest. Providers are swappable:
// the Brevo HTTP API in production, a logging mock everywhere else.
package email

import "context"

// Provider delivers one message. Implementations retry transient
// failures internally; a returned error is final.
type Provider interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

package email

import (
	"context"

	"github.com/arbmuseum/arb/backend/internal/logger"
)

// Sender delivers promo codes to visitors
type Sender interface {
	SendPromoCode(ctx context.Context, toEmail, code string) error
}

// LogSender only logs. Used when SES is not configured.
type LogSender struct{}

// SendPromoCode logs the code that would have been sent
func (LogSender) SendPromoCode(ctx context.Context, toEmail, code string) error {
	logger.Log.Info("Promo code email (SES disabled)",
		logger.WithPromoCode(code),
		logger.WithEmail(toEmail),
	)
	return nil
}

var (
	_ Sender = (*SESSender)(nil)
	_ Sender = LogSender{}
)

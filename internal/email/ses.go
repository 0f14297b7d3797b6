package email

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/arbmuseum/arb/backend/internal/telemetry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// sesAPI is the subset of the SES client used here
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender sends promo codes via AWS SES
type SESSender struct {
	client    sesAPI
	fromEmail string
	fromName  string
	baseURL   string
}

// NewSESSender creates a sender using the default AWS credential chain
func NewSESSender(region, fromEmail, fromName, baseURL string) (*SESSender, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newSESSender(ses.NewFromConfig(cfg), fromEmail, fromName, baseURL), nil
}

func newSESSender(client sesAPI, fromEmail, fromName, baseURL string) *SESSender {
	return &SESSender{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
		baseURL:   baseURL,
	}
}

// SendPromoCode emails a completion reward code to a visitor
func (e *SESSender) SendPromoCode(ctx context.Context, toEmail, code string) error {
	ctx, span := telemetry.TraceSESCall(ctx, "send_email", "promo_code")
	defer span.End()

	subject, htmlBody, textBody := renderPromoEmail(code, e.baseURL)

	from := e.fromEmail
	if e.fromName != "" {
		from = fmt.Sprintf("%s <%s>", e.fromName, e.fromEmail)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(textBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := e.client.SendEmail(ctx, input); err != nil {
		telemetry.RecordServiceError(span, "ses", err)
		return fmt.Errorf("failed to send promo code email: %w", err)
	}

	telemetry.RecordServiceSuccess(span)
	return nil
}

func renderPromoEmail(code, baseURL string) (subject, htmlBody, textBody string) {
	subject = "Your museum reward code"
	escaped := html.EscapeString(code)

	link := ""
	if baseURL != "" {
		link = fmt.Sprintf(`<p><a href="%s" class="button">Back to the museum</a></p>`, html.EscapeString(baseURL))
	}

	htmlBody = fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<head>
			<meta charset="UTF-8">
			<style>
				body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; }
				.container { max-width: 600px; margin: 0 auto; padding: 20px; }
				.code { font-family: monospace; font-size: 22px; padding: 12px 16px; background: #f4f1ea; border-radius: 6px; display: inline-block; }
				.button { display: inline-block; padding: 12px 24px; background-color: #8a5a2b; color: white; text-decoration: none; border-radius: 6px; margin: 20px 0; }
			</style>
		</head>
		<body>
			<div class="container">
				<h1>Thank you for visiting!</h1>
				<p>You explored every exhibit. Here is your promo code:</p>
				<p class="code">%s</p>
				%s
				<hr>
				<p style="color: #999; font-size: 12px;">This is an automated message. The code can be used once.</p>
			</div>
		</body>
		</html>
	`, escaped, link)

	textBody = fmt.Sprintf(`
Thank you for visiting!

You explored every exhibit. Here is your promo code:

    %s

The code can be used once.
	`, code)

	return subject, htmlBody, textBody
}

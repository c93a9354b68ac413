package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailService defines the interface for sending emails
type EmailService interface {
	SendLockoutAlert(ctx context.Context, email string, lockedUntil time.Time) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendLockoutAlert notifies the account owner that sign-in has been
// locked after repeated failures.
func (s *AWSSESEmailService) SendLockoutAlert(ctx context.Context, email string, lockedUntil time.Time) error {
	lockedUntilText := lockedUntil.UTC().Format("2006-01-02 15:04 MST")

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .content { padding: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
        .warning { background-color: #fff3cd; padding: 10px; border-left: 4px solid #ffc107; margin: 10px 0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Sign-in Temporarily Locked</h1>
        </div>
        <div class="content">
            <p>We detected several failed sign-in attempts for your account.</p>
            <p>To protect it, sign-in has been locked until:</p>
            <p><strong>%s</strong></p>
            <div class="warning">
                <strong>Was this you?</strong> If you simply mistyped your password, no action is needed. Sign-in will work again after the time above.
            </div>
            <p><strong>Didn't try to sign in?</strong><br>
            Someone else may be trying to access your account. We recommend changing your password once the lock expires.</p>
        </div>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
            <p>If you have any questions, please contact your club administrator.</p>
        </div>
    </div>
</body>
</html>
`, lockedUntilText)

	textBody := fmt.Sprintf(`Sign-in Temporarily Locked

We detected several failed sign-in attempts for your account.

To protect it, sign-in has been locked until: %s

Was this you? If you simply mistyped your password, no action is needed. Sign-in will work again after the time above.

Didn't try to sign in?
Someone else may be trying to access your account. We recommend changing your password once the lock expires.

This is an automated message. Please do not reply to this email.
If you have any questions, please contact your club administrator.
`, lockedUntilText)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your account sign-in is temporarily locked"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send lockout alert via SES",
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("lockout alert sent",
		slog.String("message_id", *result.MessageId))

	return nil
}

// NoopEmailService drops alerts. Used when EMAIL_ENABLED is false and in
// local development.
type NoopEmailService struct {
	logger *slog.Logger
}

func NewNoopEmailService(logger *slog.Logger) *NoopEmailService {
	return &NoopEmailService{logger: logger}
}

func (s *NoopEmailService) SendLockoutAlert(ctx context.Context, email string, lockedUntil time.Time) error {
	s.logger.Debug("email disabled, dropping lockout alert",
		slog.String("locked_until", lockedUntil.UTC().Format(time.RFC3339)))
	return nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/carebase/internal/models"
	pkglogger "github.com/BradenHooton/carebase/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// LockoutNotifier is told when an account transitions to locked.
// Delivery is best effort; errors never change the login outcome.
type LockoutNotifier interface {
	NotifyAccountLocked(ctx context.Context, user *models.User) error
}

// SESClient is the subset of the SES API used for notifications
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESLockoutNotifier emails the account holder through AWS SES
type SESLockoutNotifier struct {
	client      SESClient
	fromAddress string
	logger      *slog.Logger
}

// NewSESLockoutNotifier loads the default AWS credential chain for region
func NewSESLockoutNotifier(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESLockoutNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESLockoutNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

// NewSESLockoutNotifierWithClient wraps an existing SES client
func NewSESLockoutNotifierWithClient(client SESClient, fromAddress string, logger *slog.Logger) *SESLockoutNotifier {
	return &SESLockoutNotifier{client: client, fromAddress: fromAddress, logger: logger}
}

func (n *SESLockoutNotifier) NotifyAccountLocked(ctx context.Context, user *models.User) error {
	if user.Email == "" {
		return nil
	}

	textBody := fmt.Sprintf(`Account locked

The carebase account "%s" was locked after repeated failed sign-in attempts.

If this was you, contact an administrator to unlock the account.
If it was not, someone may be trying to guess your password: report it to the IT security team.

This is an automated message. Please do not reply to this email.
`, user.Login)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <h1>Account locked</h1>
    <p>The carebase account <strong>%s</strong> was locked after repeated failed sign-in attempts.</p>
    <p>If this was you, contact an administrator to unlock the account.<br>
    If it was not, someone may be trying to guess your password: report it to the IT security team.</p>
    <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`, user.Login)

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{user.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your carebase account has been locked"),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		n.logger.Error("failed to send lockout email via SES",
			slog.String("email", pkglogger.SanitizedEmail(user.Email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("lockout email sent",
		slog.Int64("user_id", user.ID),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// LogLockoutNotifier only writes a log line, used when email is disabled
type LogLockoutNotifier struct {
	logger *slog.Logger
}

func NewLogLockoutNotifier(logger *slog.Logger) *LogLockoutNotifier {
	return &LogLockoutNotifier{logger: logger}
}

func (n *LogLockoutNotifier) NotifyAccountLocked(ctx context.Context, user *models.User) error {
	n.logger.Info("lockout notification skipped: email disabled", slog.Int64("user_id", user.ID))
	return nil
}

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

// AWSSESEmailService delivers password-reset links through AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendPasswordResetEmail sends the reset link carrying the raw token
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	minutes := int(time.Until(expiresAt).Minutes())

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2>Reset your Corkboard password</h2>
    <p>Someone (hopefully you) asked to reset the password for this account.
       The link below works once and expires in %d minutes.</p>
    <p><a href="%s" style="display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Reset password</a></p>
    <p style="color: #666; font-size: 12px;">If you did not request this, you can ignore this email; your password is unchanged.</p>
  </div>
</body>
</html>`, minutes, resetLink)

	textBody := fmt.Sprintf(
		"Reset your Corkboard password.\n\nOpen this link (valid for %d minutes, works once):\n%s\n\nIf you did not request this, ignore this email.",
		minutes, resetLink)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String("Reset your Corkboard password"),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	s.logger.Info("password reset email sent")
	return nil
}

// LogOnlyEmailService stands in for SES in development environments: it
// writes the reset link to the log instead of sending anything.
type LogOnlyEmailService struct {
	baseURL string
	logger  *slog.Logger
}

func NewLogOnlyEmailService(baseURL string, logger *slog.Logger) *LogOnlyEmailService {
	return &LogOnlyEmailService{baseURL: baseURL, logger: logger}
}

func (s *LogOnlyEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	s.logger.Info("password reset link (development delivery)",
		slog.String("email", email),
		slog.String("link", fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)),
		slog.Time("expires_at", expiresAt),
	)
	return nil
}

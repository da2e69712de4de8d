package service

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// EmailService delivers invite links via Amazon SES. Without a configured
// sender address it constructs disabled and skips every send with a log
// line, so invite emails stay optional.
type EmailService struct {
	client    *sesv2.Client
	fromEmail string
	fromName  string
	enabled   bool
}

func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName string) (*EmailService, error) {
	if fromEmail == "" {
		log.Println("Email delivery disabled: SES_FROM_EMAIL not configured")
		return &EmailService{}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Printf("Email delivery enabled: from=%s, region=%s", fromEmail, awsRegion)
	return &EmailService{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
	}, nil
}

// IsEnabled reports whether sends will actually go out.
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendInviteEmail mails the join link to the partner. The link carries the
// invite code and expires with it (one hour).
func (s *EmailService) SendInviteEmail(ctx context.Context, toEmail, inviteURL string) error {
	if !s.enabled {
		log.Printf("Skipping email send (service disabled): invite to %s", toEmail)
		return nil
	}

	subject := "You're invited to share your energy balance"
	htmlBody := fmt.Sprintf(`<p>Your partner wants to track your household energy together.</p>
<p><a href="%s">Connect your Google Fit account</a> to join.</p>
<p>This link expires in 1 hour.</p>`, inviteURL)
	textBody := fmt.Sprintf(`Your partner wants to track your household energy together.

Connect your Google Fit account to join:
%s

This link expires in 1 hour.
`, inviteURL)

	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
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
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send invite email to %s: %w", toEmail, err)
	}
	log.Printf("Invite email sent: to=%s", toEmail)
	return nil
}

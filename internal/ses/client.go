// Package ses is the optional SES v2 send-only transport. SES has no
// transactional event feed comparable to Brevo's, so when SES is the sender
// response detection falls back to manual entry and the webhook path.
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/photoreach/club-outreach/internal/config"
	"github.com/photoreach/club-outreach/internal/domain"
	"github.com/photoreach/club-outreach/internal/pkg/logger"
)

// Client is an AWS SES v2 send client.
type Client struct {
	client      *sesv2.Client
	senderEmail string
	senderName  string
}

// NewClient creates the SES client using the default AWS credential chain.
func NewClient(ctx context.Context, cfg appconfig.SESConfig) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Client{
		client:      sesv2.NewFromConfig(awsCfg),
		senderEmail: cfg.SenderEmail,
		senderName:  cfg.SenderName,
	}, nil
}

// SendRequest describes one outreach email to send.
type SendRequest struct {
	ToEmail  string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string

	ClubName  string
	EmailType domain.EmailType
}

// Send delivers one email and returns the SES message ID. Club and email
// type ride along as message tags for later attribution in SES event
// destinations.
func (c *Client) Send(ctx context.Context, req SendRequest) (string, error) {
	body := &types.Body{}
	if req.HTMLBody != "" {
		body.Html = &types.Content{Data: aws.String(req.HTMLBody)}
	}
	if req.TextBody != "" {
		body.Text = &types.Content{Data: aws.String(req.TextBody)}
	}

	from := c.senderEmail
	if c.senderName != "" {
		from = fmt.Sprintf("%s <%s>", c.senderName, c.senderEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{req.ToEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(req.Subject)},
				Body:    body,
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("club"), Value: aws.String(tagValue(req.ClubName))},
			{Name: aws.String("email_type"), Value: aws.String(string(req.EmailType))},
		},
	}

	output, err := c.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)
	}

	messageID := aws.ToString(output.MessageId)
	logger.Info("email sent",
		"transport", "ses",
		"club", req.ClubName,
		"email_type", req.EmailType,
		"contact_email", req.ToEmail,
		"message_id", messageID)
	return messageID, nil
}

// SES tag values only allow alphanumerics, underscore and dash.
func tagValue(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		case r == ' ':
			out = append(out, '-')
		}
	}
	return string(out)
}

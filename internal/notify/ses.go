package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/evanofslack/ddns-sync/internal/awsutil"
	"github.com/evanofslack/ddns-sync/internal/metrics"
)

const charset = "UTF-8"

// sesAPI is the subset of the SES v2 client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type SESNotifier struct {
	client    sesAPI
	metrics   *metrics.Metrics
	sender    string
	recipient string
	subject   string
}

func NewSES(ctx context.Context, region, sender, recipient, subject string, metrics *metrics.Metrics) (*SESNotifier, error) {
	cfg, err := awsutil.LoadConfig(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("failed to create SES client: %w", err)
	}
	return newSESWithClient(sesv2.NewFromConfig(cfg), sender, recipient, subject, metrics), nil
}

func newSESWithClient(client sesAPI, sender, recipient, subject string, metrics *metrics.Metrics) *SESNotifier {
	return &SESNotifier{
		client:    client,
		metrics:   metrics,
		sender:    sender,
		recipient: recipient,
		subject:   subject,
	}
}

func (n *SESNotifier) Notify(ctx context.Context, e Event) (string, error) {
	start := time.Now()
	msg, err := Render(n.subject, e)
	if err != nil {
		n.metrics.IncNotification(false)
		return "", err
	}

	out, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.sender),
		Destination: &types.Destination{
			ToAddresses: []string{n.recipient},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String(charset)},
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charset)},
				},
			},
		},
	})
	if err != nil {
		n.metrics.IncNotification(false)
		return "", fmt.Errorf("failed to send email: %w", awsutil.Describe(err))
	}
	n.metrics.IncNotification(true)

	id := aws.ToString(out.MessageId)
	slog.Debug("Sent notification", "recipient", n.recipient, "message_id", id, "duration", time.Since(start))
	return id, nil
}

package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

// SESAPI is the part of the SES v2 client used for email
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SNSAPI is the part of the SNS client used for SMS
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SESSender struct {
	client SESAPI
	from   string
}

func NewSESSender(client SESAPI, from string) (*SESSender, error) {
	if from == "" {
		return nil, errors.New("ses sender: from address not configured")
	}
	return &SESSender{client: client, from: from}, nil
}

func (s *SESSender) Send(ctx context.Context, to string, msg Message) (string, error) {
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &sestypes.Destination{ToAddresses: []string{to}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
					Html: &sestypes.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send email: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

type SNSSender struct {
	client SNSAPI
}

func NewSNSSender(client SNSAPI) *SNSSender {
	return &SNSSender{client: client}
}

func (s *SNSSender) Send(ctx context.Context, to string, msg Message) (string, error) {
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(msg.Text),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	})
	if err != nil {
		return "", fmt.Errorf("sns publish: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// LogSender writes messages to the log instead of delivering them
type LogSender struct {
	Channel string
	Log     *slog.Logger
}

func (s LogSender) Send(_ context.Context, to string, msg Message) (string, error) {
	id := uuid.NewString()
	s.Log.Info("notification (log only)",
		slog.String("channel", s.Channel),
		slog.String("to", to),
		slog.String("subject", msg.Subject),
		slog.String("text", msg.Text),
		slog.String("message_id", id),
	)
	return id, nil
}

// Options selects real or log-only delivery per channel
type Options struct {
	Region       string
	FromEmail    string
	EmailEnabled bool
	SMSEnabled   bool
}

// NewSenders builds the email and SMS senders. AWS credentials are loaded only when a real channel is enabled.
func NewSenders(ctx context.Context, opts Options, log *slog.Logger) (email Sender, sms Sender, err error) {
	email = LogSender{Channel: ChannelEmail, Log: log}
	sms = LogSender{Channel: ChannelSMS, Log: log}
	if !opts.EmailEnabled && !opts.SMSEnabled {
		return email, sms, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, nil, fmt.Errorf("load aws config: %w", err)
	}
	if opts.EmailEnabled {
		ses, err := NewSESSender(sesv2.NewFromConfig(cfg), opts.FromEmail)
		if err != nil {
			return nil, nil, err
		}
		email = ses
	}
	if opts.SMSEnabled {
		sms = NewSNSSender(sns.NewFromConfig(cfg))
	}
	return email, sms, nil
}

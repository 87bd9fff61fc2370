package channel

import (
	"context"
	"fmt"
	"html"
	"net/mail"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"gopkg.in/gomail.v2"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/pkg/logger"
)

const (
	ProviderSMTP = "smtp"
	ProviderSES  = "ses"
)

// MailDialer is satisfied by *gomail.Dialer.
type MailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SESService is the subset of the SES client the adapter uses.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type EmailOption func(*EmailAdapter)

// WithMailDialer replaces the gomail dialer factory.
func WithMailDialer(fn func(model.EmailSettings) MailDialer) EmailOption {
	return func(a *EmailAdapter) { a.newDialer = fn }
}

// WithSESClient replaces the SES client factory.
func WithSESClient(fn func(ctx context.Context, region string) (SESService, error)) EmailOption {
	return func(a *EmailAdapter) { a.newSES = fn }
}

type EmailAdapter struct {
	settings      SettingsSource
	defaultRegion string
	newDialer     func(model.EmailSettings) MailDialer
	newSES        func(ctx context.Context, region string) (SESService, error)
	breakers      *breakerSet
	logger        *logger.Logger

	mu        sync.Mutex
	sesByArea map[string]SESService
}

func NewEmailAdapter(settings SettingsSource, awsRegion string, log *logger.Logger, opts ...EmailOption) *EmailAdapter {
	a := &EmailAdapter{
		settings:      settings,
		defaultRegion: awsRegion,
		newDialer:     defaultDialer,
		newSES:        defaultSESClient,
		breakers:      newBreakerSet(log),
		logger:        log,
		sesByArea:     make(map[string]SESService),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *EmailAdapter) Send(ctx context.Context, to, subject, body string) Outcome {
	s, err := a.settings.EmailSettings(ctx)
	if err != nil {
		return failed("", fmt.Errorf("email settings unavailable: %w", err))
	}

	provider := strings.ToLower(s.Provider)
	if provider == "" {
		provider = ProviderSMTP
	}

	switch provider {
	case ProviderNone:
		a.logger.Info("email simulated", "to", to, "subject", subject)
		return simulated()
	case ProviderSMTP:
		err = a.breakers.get(provider).Execute(func() error {
			return a.newDialer(s).DialAndSend(buildMailMessage(s, to, subject, body))
		})
	case ProviderSES:
		err = a.breakers.get(provider).Execute(func() error {
			return a.sendSES(ctx, s, to, subject, body)
		})
	default:
		err = fmt.Errorf("unsupported email provider %q", s.Provider)
	}

	if err != nil {
		return failed(provider, err)
	}
	return succeeded(provider)
}

func buildMailMessage(s model.EmailSettings, to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.FromAddress, s.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	m.AddAlternative("text/html", htmlBody(body))
	return m
}

func htmlBody(body string) string {
	return strings.ReplaceAll(html.EscapeString(body), "\n", "<br>")
}

func defaultDialer(s model.EmailSettings) MailDialer {
	d := gomail.NewDialer(s.SMTPHost, s.SMTPPort, s.Username, s.Password)
	d.SSL = strings.EqualFold(s.Encryption, "ssl")
	return d
}

func (a *EmailAdapter) sendSES(ctx context.Context, s model.EmailSettings, to, subject, body string) error {
	region := s.SESRegion
	if region == "" {
		region = a.defaultRegion
	}
	client, err := a.sesClient(ctx, region)
	if err != nil {
		return fmt.Errorf("ses client: %w", err)
	}

	from := (&mail.Address{Name: s.FromName, Address: s.FromAddress}).String()
	_, err = client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
				Html: &sestypes.Content{Data: aws.String(htmlBody(body))},
			},
		},
		Source: aws.String(from),
	})
	return err
}

func (a *EmailAdapter) sesClient(ctx context.Context, region string) (SESService, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.sesByArea[region]; ok {
		return c, nil
	}
	c, err := a.newSES(ctx, region)
	if err != nil {
		return nil, err
	}
	a.sesByArea[region] = c
	return c, nil
}

func defaultSESClient(ctx context.Context, region string) (SESService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return ses.NewFromConfig(cfg), nil
}

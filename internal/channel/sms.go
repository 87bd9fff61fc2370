package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/pkg/logger"
)

const (
	ProviderTwilio         = "twilio"
	ProviderAfricasTalking = "africastalking"
	ProviderSNS            = "sns"

	defaultTwilioBaseURL         = "https://api.twilio.com"
	defaultAfricasTalkingBaseURL = "https://api.africastalking.com"
)

var (
	errTwilioCredentials = errors.New("twilio credentials not configured")
	errATCredentials     = errors.New("africa's talking credentials not configured")
	errInvalidPhone      = errors.New("invalid phone number")
)

// SNSService is the subset of the SNS client the adapter uses.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SMSOption func(*SMSAdapter)

func WithHTTPClient(c *http.Client) SMSOption {
	return func(a *SMSAdapter) { a.http = c }
}

// WithProviderURLs overrides the Twilio and Africa's Talking API roots.
func WithProviderURLs(twilio, africasTalking string) SMSOption {
	return func(a *SMSAdapter) {
		a.twilioURL = strings.TrimRight(twilio, "/")
		a.atURL = strings.TrimRight(africasTalking, "/")
	}
}

func WithSNSClient(fn func(ctx context.Context, region string) (SNSService, error)) SMSOption {
	return func(a *SMSAdapter) { a.newSNS = fn }
}

type SMSAdapter struct {
	settings      SettingsSource
	defaultRegion string
	http          *http.Client
	twilioURL     string
	atURL         string
	newSNS        func(ctx context.Context, region string) (SNSService, error)
	breakers      *breakerSet
	logger        *logger.Logger

	mu          sync.Mutex
	snsByRegion map[string]SNSService
}

func NewSMSAdapter(settings SettingsSource, awsRegion string, log *logger.Logger, opts ...SMSOption) *SMSAdapter {
	a := &SMSAdapter{
		settings:      settings,
		defaultRegion: awsRegion,
		http:          &http.Client{Timeout: 15 * time.Second},
		twilioURL:     defaultTwilioBaseURL,
		atURL:         defaultAfricasTalkingBaseURL,
		newSNS:        defaultSNSClient,
		breakers:      newBreakerSet(log),
		logger:        log,
		snsByRegion:   make(map[string]SNSService),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NormalizePhone keeps digits and '+' only.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (a *SMSAdapter) Send(ctx context.Context, to, _, body string) Outcome {
	s, err := a.settings.SMSSettings(ctx)
	if err != nil {
		return failed("", fmt.Errorf("sms settings unavailable: %w", err))
	}

	provider := strings.ToLower(s.Provider)
	if provider == "" {
		provider = ProviderNone
	}

	phone := NormalizePhone(to)
	if phone == "" {
		return failed(provider, errInvalidPhone)
	}

	switch provider {
	case ProviderNone:
		a.logger.Info("sms simulated", "to", phone, "length", len(body))
		return simulated()
	case ProviderTwilio:
		err = a.breakers.get(provider).Execute(func() error {
			return a.sendTwilio(ctx, s, phone, body)
		})
	case ProviderAfricasTalking:
		err = a.breakers.get(provider).Execute(func() error {
			return a.sendAfricasTalking(ctx, s, phone, body)
		})
	case ProviderSNS:
		err = a.breakers.get(provider).Execute(func() error {
			return a.sendSNS(ctx, s, phone, body)
		})
	default:
		err = fmt.Errorf("unsupported sms provider %q", s.Provider)
	}

	if err != nil {
		return failed(provider, err)
	}
	return succeeded(provider)
}

func (a *SMSAdapter) sendTwilio(ctx context.Context, s model.SMSSettings, phone, body string) error {
	if s.APIKey == "" || s.APISecret == "" {
		return errTwilioCredentials
	}

	form := url.Values{}
	form.Set("From", s.SenderID)
	form.Set("To", phone)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", a.twilioURL, url.PathEscape(s.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.APIKey, s.APISecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
		return errors.New(apiErr.Message)
	}
	return fmt.Errorf("twilio API error (HTTP %d)", resp.StatusCode)
}

type atResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			Number    string `json:"number"`
			Status    string `json:"status"`
			MessageID string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

func (a *SMSAdapter) sendAfricasTalking(ctx context.Context, s model.SMSSettings, phone, body string) error {
	if s.APIKey == "" || s.APISecret == "" {
		return errATCredentials
	}

	form := url.Values{}
	form.Set("username", s.APIKey)
	form.Set("to", phone)
	form.Set("message", body)
	if s.SenderID != "" {
		form.Set("from", s.SenderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.atURL+"/version1/messaging", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("apiKey", s.APISecret)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("africa's talking request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed atResponse
	if resp.StatusCode >= 200 && resp.StatusCode < 300 &&
		json.Unmarshal(raw, &parsed) == nil &&
		len(parsed.SMSMessageData.Recipients) > 0 {
		return nil
	}
	return fmt.Errorf("africa's talking API error: %s", strings.TrimSpace(string(raw)))
}

func (a *SMSAdapter) sendSNS(ctx context.Context, s model.SMSSettings, phone, body string) error {
	region := s.SNSRegion
	if region == "" {
		region = a.defaultRegion
	}
	client, err := a.snsClient(ctx, region)
	if err != nil {
		return fmt.Errorf("sns client: %w", err)
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(body),
	}
	if s.SenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.SenderID),
			},
		}
	}
	_, err = client.Publish(ctx, input)
	return err
}

func (a *SMSAdapter) snsClient(ctx context.Context, region string) (SNSService, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.snsByRegion[region]; ok {
		return c, nil
	}
	c, err := a.newSNS(ctx, region)
	if err != nil {
		return nil, err
	}
	a.snsByRegion[region] = c
	return c, nil
}

func defaultSNSClient(ctx context.Context, region string) (SNSService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return sns.NewFromConfig(cfg), nil
}

// Package notify sends transactional email and SMS. Transports sit behind the
// Sender interface so the errand and auth services can be tested without
// network calls, and so a transport failure stays a warning at the caller
// rather than rolling back a committed state change.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// Channel identifies a transport.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Message is a single outbound notification. Subject is ignored for SMS.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message over one transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// EmailSender delivers mail through Amazon SES v2.
type EmailSender struct {
	client *sesv2.Client
	from   string
}

func NewEmailSender(client *sesv2.Client, from string) *EmailSender {
	return &EmailSender{client: client, from: from}
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &sestypes.Destination{ToAddresses: []string{msg.To}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(msg.Subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(msg.Body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("notify.EmailSender.Send: %w", err)
	}
	return nil
}

// SMSSender delivers texts through Twilio's Messages REST endpoint.
type SMSSender struct {
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
	baseURL    string
}

func NewSMSSender(accountSID, authToken, from string) *SMSSender {
	return &SMSSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    "https://api.twilio.com",
	}
}

func (s *SMSSender) Send(ctx context.Context, msg Message) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	form := url.Values{}
	form.Set("To", formatE164(msg.To))
	form.Set("From", s.from)
	form.Set("Body", msg.Body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("notify.SMSSender.Send: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify.SMSSender.Send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify.SMSSender.Send: twilio returned %s", resp.Status)
	}
	return nil
}

// formatE164 prefixes a bare number with '+' and strips separators so Twilio
// accepts numbers stored without the leading plus.
func formatE164(phone string) string {
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	var b strings.Builder
	b.WriteByte('+')
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LogSender writes messages to the process log. Used in local development
// when transport credentials are not configured.
type LogSender struct {
	Channel string
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	log.Printf("[notify:%s] to=%s subject=%q body=%q", s.Channel, msg.To, msg.Subject, msg.Body)
	return nil
}

package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Naman6019/News-Agent/internal/config"
)

// ErrNotConfigured marks sends attempted without Twilio credentials. Callers
// treat it as a skip, not a failure.
var ErrNotConfigured = errors.New("whatsapp messaging not configured")

const defaultAPIBase = "https://api.twilio.com"

// maxMessageLength is WhatsApp's hard limit on message body size.
const maxMessageLength = 4096

// Client sends WhatsApp messages through the Twilio REST API.
type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	toNumber   string
	enabled    bool
	location   *time.Location
	httpClient *http.Client
	apiBase    string
	logger     *slog.Logger
}

// NewClient creates a WhatsApp client. With incomplete Twilio credentials the
// client starts disabled and every send returns ErrNotConfigured.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	location, err := cfg.Location()
	if err != nil {
		location = time.UTC
	}

	apiBase := strings.TrimSuffix(cfg.TwilioAPIBase, "/")
	if apiBase == "" {
		apiBase = defaultAPIBase
	}

	client := &Client{
		accountSID: cfg.TwilioAccountSID,
		authToken:  cfg.TwilioAuthToken,
		fromNumber: cfg.TwilioPhoneNumber,
		toNumber:   cfg.WhatsAppRecipientNumber,
		enabled:    cfg.MessagingConfigured(),
		location:   location,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiBase: apiBase,
		logger:  logger,
	}

	if !client.enabled {
		logger.Warn("twilio credentials not configured, message delivery disabled")
	}
	return client
}

// Enabled reports whether the client has full Twilio credentials.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Recipient returns the configured destination number.
func (c *Client) Recipient() string {
	return c.toNumber
}

// messageResponse is the Twilio message resource returned on success.
type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// apiError is Twilio's error payload for rejected requests.
type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// Send delivers one message body to the configured recipient. Bodies over the
// WhatsApp limit are truncated before sending.
func (c *Client) Send(ctx context.Context, body string) error {
	if !c.enabled {
		c.logger.Warn("message not sent, whatsapp delivery disabled")
		return ErrNotConfigured
	}

	body = capLength(body, maxMessageLength)

	form := url.Values{}
	form.Set("From", "whatsapp:"+c.fromNumber)
	form.Set("To", "whatsapp:"+c.toNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.apiBase, c.accountSID)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.SetBasicAuth(c.accountSID, c.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var twilioErr apiError
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &twilioErr); err != nil || twilioErr.Message == "" {
			return fmt.Errorf("twilio API returned status %d: %s", resp.StatusCode, string(raw))
		}
		return fmt.Errorf("twilio API error %d: %s", twilioErr.Code, twilioErr.Message)
	}

	var message messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&message); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	c.logger.Info("whatsapp message sent", "sid", message.SID, "status", message.Status)
	return nil
}

// SendDigest wraps a formatted digest in the delivery envelope and sends it.
func (c *Client) SendDigest(ctx context.Context, digest string) error {
	timestamp := time.Now().In(c.location).Format("03:04 PM MST")

	message := fmt.Sprintf(`📰 *News Digest - %s*

%s

---
*Sent by AI News Agent*`, timestamp, digest)

	return c.Send(ctx, message)
}

// SendTestMessage sends the integration check message.
func (c *Client) SendTestMessage(ctx context.Context) error {
	message := `✅ *AI News Agent Test*

This is a test message to verify WhatsApp integration.

If you received this message, the WhatsApp service is working correctly!

📰 Your daily news digests will appear here.

---
*Test Message*`

	return c.Send(ctx, message)
}

// SendErrorNotification tells the recipient a cycle hit a problem.
func (c *Client) SendErrorNotification(ctx context.Context, errorMessage string) error {
	timestamp := time.Now().In(c.location).Format("2006-01-02 03:04 PM MST")

	message := fmt.Sprintf(`⚠️ *AI News Agent Error*

*Time:* %s
*Error:* %s

The news agent will continue to operate. Please check the logs for more details.

---
*Automated Error Notification*`, timestamp, errorMessage)

	return c.Send(ctx, message)
}

// SendDeliveryConfirmation reports a successful digest delivery.
func (c *Client) SendDeliveryConfirmation(ctx context.Context, deliveryType string, articleCount int) error {
	timestamp := time.Now().In(c.location).Format("03:04 PM MST")

	message := fmt.Sprintf(`✅ *News Delivery Confirmed*

*Delivery:* %s
*Time:* %s
*Articles:* %d summarized

Your news digest has been delivered successfully!

---
*AI News Agent*`, capitalize(deliveryType), timestamp, articleCount)

	return c.Send(ctx, message)
}

// NumberValidation reports the result of checking the configured numbers.
type NumberValidation struct {
	TwilioNumberValid    bool     `json:"twilio_number_valid"`
	RecipientNumberValid bool     `json:"recipient_number_valid"`
	Errors               []string `json:"errors"`
}

// ValidateNumbers checks both configured phone numbers against E.164.
func (c *Client) ValidateNumbers() NumberValidation {
	validation := NumberValidation{Errors: []string{}}

	if !strings.HasPrefix(c.fromNumber, "+") {
		validation.Errors = append(validation.Errors, "Twilio phone number must start with +")
	}
	if !strings.HasPrefix(c.toNumber, "+") {
		validation.Errors = append(validation.Errors, "Recipient phone number must start with +")
	}
	if !config.ValidPhoneNumber(c.fromNumber) {
		validation.Errors = append(validation.Errors, "Twilio phone number format is invalid")
	}
	if !config.ValidPhoneNumber(c.toNumber) {
		validation.Errors = append(validation.Errors, "Recipient phone number format is invalid")
	}

	if len(validation.Errors) == 0 {
		validation.TwilioNumberValid = true
		validation.RecipientNumberValid = true
	}
	return validation
}

// capitalize upper-cases the first letter of s.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + s[size:]
}

// capLength trims s to at most max bytes, ending on a rune boundary with an
// ellipsis when cut.
func capLength(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

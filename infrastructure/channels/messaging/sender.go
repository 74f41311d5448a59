// Package messaging adapts SMTP email and an HTTP SMS gateway to the
// messaging port.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"time"

	"go.uber.org/zap"

	"analyst-backend/application/ports"
	pkgerrors "analyst-backend/pkg/errors"
)

// SenderConfig holds the delivery endpoints and credentials.
type SenderConfig struct {
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	FromAddress   string
	SMSGatewayURL string
	SMSAPIKey     string
}

// Sender delivers messages over email and SMS.
type Sender struct {
	config     SenderConfig
	httpClient *http.Client
	metrics    ports.MetricsRecorder
	logger     *zap.Logger
}

// NewSender creates a messaging sender
func NewSender(config SenderConfig, metrics ports.MetricsRecorder, logger *zap.Logger) *Sender {
	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		metrics:    metrics,
		logger:     logger,
	}
}

// Send delivers the message over its channel
func (s *Sender) Send(ctx context.Context, msg ports.Message) error {
	switch msg.Channel {
	case ports.MessageChannelEmail:
		return s.sendEmail(msg)
	case ports.MessageChannelSMS:
		return s.sendSMS(ctx, msg)
	default:
		return pkgerrors.NewValidation(fmt.Sprintf("unknown message channel: %s", msg.Channel))
	}
}

func (s *Sender) sendEmail(msg ports.Message) error {
	if msg.Recipient == "" {
		return pkgerrors.NewValidation("email recipient cannot be empty")
	}

	var body bytes.Buffer
	fmt.Fprintf(&body, "From: %s\r\n", s.config.FromAddress)
	fmt.Fprintf(&body, "To: %s\r\n", msg.Recipient)
	fmt.Fprintf(&body, "Subject: %s\r\n", msg.Subject)
	body.WriteString("\r\n")
	body.WriteString(msg.Body)

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	var auth smtp.Auth
	if s.config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
	}

	start := time.Now()
	err := smtp.SendMail(addr, auth, s.config.FromAddress, []string{msg.Recipient}, body.Bytes())
	if err != nil {
		s.metrics.RecordChannelCall("email", "failure", time.Since(start).Seconds())
		return pkgerrors.NewExternal("sending email: " + err.Error())
	}

	s.metrics.RecordChannelCall("email", "success", time.Since(start).Seconds())
	s.logger.Info("email sent", zap.String("recipient", msg.Recipient))
	return nil
}

func (s *Sender) sendSMS(ctx context.Context, msg ports.Message) error {
	if msg.Recipient == "" {
		return pkgerrors.NewValidation("sms recipient cannot be empty")
	}

	payload, err := json.Marshal(map[string]string{
		"to":   msg.Recipient,
		"body": msg.Body,
	})
	if err != nil {
		return pkgerrors.Wrap(err, "encoding sms payload")
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.SMSGatewayURL, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(err, "building sms request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.SMSAPIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.metrics.RecordChannelCall("sms", "failure", time.Since(start).Seconds())
		return pkgerrors.NewExternal("sending sms: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.metrics.RecordChannelCall("sms", "failure", time.Since(start).Seconds())
		return pkgerrors.NewExternal(fmt.Sprintf("sms gateway returned %d", resp.StatusCode))
	}

	s.metrics.RecordChannelCall("sms", "success", time.Since(start).Seconds())
	s.logger.Info("sms sent", zap.String("recipient", msg.Recipient))
	return nil
}

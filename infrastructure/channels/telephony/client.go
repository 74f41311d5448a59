// Package telephony adapts a REST voice provider to the telephony port.
// The provider API is Twilio-shaped: form-encoded call creation and a JSON
// transcript resource addressed by call SID.
package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"analyst-backend/application/ports"
	pkgerrors "analyst-backend/pkg/errors"
)

// Client calls the voice provider's REST API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	accountSID   string
	authToken    string
	callerNumber string
	metrics      ports.MetricsRecorder
	logger       *zap.Logger
}

// New creates a telephony client
func New(baseURL, accountSID, authToken, callerNumber string, metrics ports.MetricsRecorder, logger *zap.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		accountSID:   accountSID,
		authToken:    authToken,
		callerNumber: callerNumber,
		metrics:      metrics,
		logger:       logger,
	}
}

type callResponse struct {
	SID      string `json:"sid"`
	Status   string `json:"status"`
	Duration int    `json:"duration"`
}

// InitiateCall starts an outbound interview call
func (c *Client) InitiateCall(ctx context.Context, phoneNumber, topic string) (*ports.CallResult, error) {
	form := url.Values{}
	form.Set("To", phoneNumber)
	form.Set("From", c.callerNumber)
	form.Set("Topic", topic)

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "building call request")
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordChannelCall("telephony", "failure", time.Since(start).Seconds())
		return nil, pkgerrors.NewExternal("initiating call: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.metrics.RecordChannelCall("telephony", "failure", time.Since(start).Seconds())
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, pkgerrors.NewExternal(fmt.Sprintf(
			"call provider returned %d: %s", resp.StatusCode, string(body)))
	}

	var call callResponse
	if err := json.NewDecoder(resp.Body).Decode(&call); err != nil {
		c.metrics.RecordChannelCall("telephony", "failure", time.Since(start).Seconds())
		return nil, pkgerrors.NewExternal("decoding call response: " + err.Error())
	}

	c.metrics.RecordChannelCall("telephony", "success", time.Since(start).Seconds())
	c.logger.Info("outbound call initiated",
		zap.String("callId", call.SID), zap.String("status", call.Status))
	return &ports.CallResult{
		CallID:   call.SID,
		Status:   call.Status,
		Duration: call.Duration,
	}, nil
}

type transcriptResponse struct {
	Transcript string `json:"transcript"`
	Status     string `json:"status"`
}

// Transcribe fetches the transcript for a finished call
func (c *Client) Transcribe(ctx context.Context, callID string) (string, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/Accounts/%s/Calls/%s/Transcript.json", c.baseURL, c.accountSID, callID), nil)
	if err != nil {
		return "", pkgerrors.Wrap(err, "building transcript request")
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordChannelCall("telephony", "failure", time.Since(start).Seconds())
		return "", pkgerrors.NewExternal("fetching transcript: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.metrics.RecordChannelCall("telephony", "failure", time.Since(start).Seconds())
		return "", pkgerrors.NewExternal(fmt.Sprintf(
			"transcript fetch returned %d", resp.StatusCode))
	}

	var transcript transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&transcript); err != nil {
		c.metrics.RecordChannelCall("telephony", "failure", time.Since(start).Seconds())
		return "", pkgerrors.NewExternal("decoding transcript: " + err.Error())
	}

	c.metrics.RecordChannelCall("telephony", "success", time.Since(start).Seconds())
	return transcript.Transcript, nil
}

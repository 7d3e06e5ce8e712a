package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/message"
	"github.com/ignite/mailroom/internal/pkg/httpretry"
)

// SparkPost delivers messages through the SparkPost transmissions API.
type SparkPost struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewSparkPost creates a SparkPost transport.
func NewSparkPost(cfg config.SparkPostConfig) *SparkPost {
	return &SparkPost{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// Name returns the provider name.
func (sp *SparkPost) Name() string { return config.ProviderSparkPost }

// Deliver posts one transmission. Provider rejections and network
// failures come back as transient transport errors; only payload
// assembly bugs are fatal.
func (sp *SparkPost) Deliver(ctx context.Context, msg *message.OutboundMessage) (*Response, error) {
	payload := sp.buildTransmission(msg)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sparkpost: marshal transmission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sp.baseURL+"/transmissions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sparkpost: build request: %w", err)
	}
	req.Header.Set("Authorization", sp.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := sp.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Transient: true, Message: "sparkpost request failed", Err: err}
	}
	defer resp.Body.Close()

	var spResp struct {
		Results struct {
			TotalAcceptedRecipients int    `json:"total_accepted_recipients"`
			ID                      string `json:"id"`
		} `json:"results"`
		Errors []struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"errors"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&spResp)

	if resp.StatusCode != http.StatusOK || len(spResp.Errors) > 0 {
		errMsg := fmt.Sprintf("sparkpost rejected transmission (status %d)", resp.StatusCode)
		if len(spResp.Errors) > 0 {
			errMsg = spResp.Errors[0].Message
		}
		return nil, &Error{Transient: true, Message: errMsg}
	}
	// An OK status with an unreadable body means we never learned the
	// transmission id, so the send has to be retried later.
	if decodeErr != nil {
		return nil, &Error{Transient: true, Message: "sparkpost returned an unreadable body", Err: decodeErr}
	}

	return &Response{
		MessageID: spResp.Results.ID,
		Line:      fmt.Sprintf("250 accepted %d recipient(s) id=%s", spResp.Results.TotalAcceptedRecipients, spResp.Results.ID),
	}, nil
}

func (sp *SparkPost) buildTransmission(msg *message.OutboundMessage) map[string]interface{} {
	recipients := make([]map[string]interface{}, 0, len(msg.To)+len(msg.CC)+len(msg.BCC))
	for _, to := range msg.To {
		recipients = append(recipients, map[string]interface{}{
			"address": map[string]string{"email": to},
		})
	}
	// SparkPost models cc/bcc as extra recipients whose header_to stays
	// the primary recipient.
	for _, addr := range append(append([]string{}, msg.CC...), msg.BCC...) {
		recipients = append(recipients, map[string]interface{}{
			"address": map[string]string{"email": addr, "header_to": msg.PrimaryRecipient()},
		})
	}

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Name] = h.Value
	}

	return map[string]interface{}{
		"recipients": recipients,
		"content": map[string]interface{}{
			"from":    map[string]string{"email": msg.From},
			"subject": msg.Subject,
			"html":    msg.HTMLBody,
			"text":    msg.TextBody,
			"headers": headers,
		},
		"options": map[string]interface{}{
			"open_tracking":  false,
			"click_tracking": false,
		},
	}
}

// Package gateway implements the outbound send collaborator over
// HTTP. The remote transport service owns the actual chat network
// connection and assigns the canonical message id.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/guonaihong/gout"
	"github.com/sirupsen/logrus"

	domainMessage "github.com/kolibrisuite/chatsync/domains/message"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type HTTPGateway struct {
	baseURL string
	timeout time.Duration
}

var _ domainMessage.Gateway = (*HTTPGateway)(nil)

func NewHTTPGateway(cfg Config) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{baseURL: cfg.BaseURL, timeout: timeout}
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

// Send pushes one outbound message to the transport service and
// returns the message id it assigned. Any transport failure comes
// back as an error; the caller decides how to persist the attempt.
func (g *HTTPGateway) Send(ctx context.Context, sessionName, toIdentifier, content string) (string, error) {
	var (
		resp sendResponse
		code int
	)

	err := gout.POST(g.baseURL + "/send").
		WithContext(ctx).
		SetTimeout(g.timeout).
		SetJSON(gout.H{
			"session_name":  sessionName,
			"to_identifier": toIdentifier,
			"content":       content,
		}).
		BindJSON(&resp).
		Code(&code).
		Do()
	if err != nil {
		logrus.WithError(err).Errorf("[GATEWAY] Send request failed for session %s", sessionName)
		return "", fmt.Errorf("gateway request failed: %w", err)
	}

	if code < 200 || code >= 300 {
		reason := resp.Error
		if reason == "" {
			reason = fmt.Sprintf("gateway returned status %d", code)
		}
		return "", fmt.Errorf("gateway rejected send: %s", reason)
	}

	if resp.MessageID == "" {
		return "", fmt.Errorf("gateway returned empty message id")
	}

	return resp.MessageID, nil
}

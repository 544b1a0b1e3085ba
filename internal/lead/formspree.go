// Package lead forwards contact/lead forms to a hosted form service.
package lead

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"template_shop_server/internal/apperr"
)

// DefaultEndpoint is the shared contact form the landing pages post to.
const DefaultEndpoint = "https://formspree.io/f/xvgajnqr"

type Lead struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message,omitempty"`
	Source  string `json:"_subject,omitempty"`
}

// Validate applies the same rules as checkout: a name and an email with '@'.
func (l Lead) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return apperr.Validation("Please enter your name.")
	}
	if !strings.Contains(l.Email, "@") {
		return apperr.Validation("Please enter a valid email address.")
	}
	return nil
}

// Client posts leads to a Formspree form.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(endpoint string, timeout time.Duration, logger *zap.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("LeadClient"),
	}
}

func (c *Client) Submit(ctx context.Context, l Lead) error {
	if err := l.Validate(); err != nil {
		return err
	}

	jsonData, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal lead: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("build lead request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Network("Could not send your message. Please try again.", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Form service rejected lead", zap.Int("status", resp.StatusCode))
		return apperr.Network("Could not send your message. Please try again.", fmt.Errorf("form service status %s", resp.Status))
	}

	c.logger.Info("Lead submitted", zap.String("source", l.Source))
	return nil
}

// Package esign provides the signature backend client used by the
// transaction coordinator to route documents for e-signature.
package esign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/logx"
	"realtycrm/pkg/persistence"
)

// Signer is one party asked to sign an envelope.
type Signer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// EnvelopeRequest describes a document to route for signature.
type EnvelopeRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Signers []Signer `json:"signers"`
}

// Envelope is the signature backend's view of a routed document.
type Envelope struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Provider defines the signing operations the transaction coordinator
// depends on. The backend is modeled as an opaque JSON-over-HTTP service.
type Provider interface {
	CreateEnvelope(ctx context.Context, req *EnvelopeRequest) (*Envelope, error)
	GetEnvelopeStatus(ctx context.Context, envelopeID string) (string, error)
	VoidEnvelope(ctx context.Context, envelopeID, reason string) error
	CreateEmbeddedSigningURL(ctx context.Context, envelopeID, signerEmail, returnURL string) (string, error)
}

// MapProviderStatus translates the backend's envelope status vocabulary
// into document statuses. Unrecognized values map to draft.
func MapProviderStatus(providerStatus string) string {
	switch providerStatus {
	case "sent", "delivered":
		return persistence.DocStatusPendingSignature
	case "completed":
		return persistence.DocStatusSigned
	case "voided", "declined":
		return persistence.DocStatusCancelled
	default:
		return persistence.DocStatusDraft
	}
}

// Client talks to the signature backend.
type Client struct {
	baseURL    string
	accountID  string
	apiKey     string
	httpClient *http.Client
	logger     *logx.Logger
}

// NewClient creates a signing client for the given backend.
func NewClient(baseURL, accountID, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		accountID:  accountID,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logx.NewLogger("esign"),
	}
}

// CreateEnvelope routes a document for signature and returns the new
// envelope.
func (c *Client) CreateEnvelope(ctx context.Context, req *EnvelopeRequest) (*Envelope, error) {
	if len(req.Signers) == 0 {
		return nil, agent.ValidationError("esign", "envelope requires at least one signer")
	}

	var envelope Envelope
	if err := c.doRequest(ctx, http.MethodPost, c.envelopesPath(), req, &envelope); err != nil {
		return nil, err
	}
	c.logger.Info("created envelope %s for %q", envelope.ID, req.Title)
	return &envelope, nil
}

// GetEnvelopeStatus fetches the envelope and returns its mapped document
// status.
func (c *Client) GetEnvelopeStatus(ctx context.Context, envelopeID string) (string, error) {
	var envelope Envelope
	path := c.envelopesPath() + "/" + url.PathEscape(envelopeID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &envelope); err != nil {
		return "", err
	}
	return MapProviderStatus(envelope.Status), nil
}

// VoidEnvelope cancels an envelope that is still in flight.
func (c *Client) VoidEnvelope(ctx context.Context, envelopeID, reason string) error {
	path := c.envelopesPath() + "/" + url.PathEscape(envelopeID) + "/void"
	body := map[string]string{"reason": reason}
	return c.doRequest(ctx, http.MethodPost, path, body, nil)
}

// CreateEmbeddedSigningURL returns a URL the signer can be redirected to.
func (c *Client) CreateEmbeddedSigningURL(ctx context.Context, envelopeID, signerEmail, returnURL string) (string, error) {
	path := c.envelopesPath() + "/" + url.PathEscape(envelopeID) + "/views"
	body := map[string]string{"signer_email": signerEmail, "return_url": returnURL}

	var view struct {
		URL string `json:"url"`
	}
	if err := c.doRequest(ctx, http.MethodPost, path, body, &view); err != nil {
		return "", err
	}
	return view.URL, nil
}

func (c *Client) envelopesPath() string {
	return fmt.Sprintf("%s/accounts/%s/envelopes", c.baseURL, url.PathEscape(c.accountID))
}

func (c *Client) doRequest(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return agent.NewError(agent.ErrorTypeUnavailable, "esign",
			fmt.Errorf("backend unreachable: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return agent.Errorf(agent.ErrorTypeNotFound, "esign", "envelope not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return agent.Errorf(agent.ErrorTypeRejected, "esign",
			"backend returned %d: %s", resp.StatusCode, string(snippet))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return agent.NewError(agent.ErrorTypeRejected, "esign",
			fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

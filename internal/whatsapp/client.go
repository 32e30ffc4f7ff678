package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"furniplan/internal/models"
	"furniplan/internal/utils"
)

const DefaultGraphBaseURL = "https://graph.facebook.com"

// Credentials are the per-integration values needed to call the Cloud API.
type Credentials struct {
	AccessToken   string
	PhoneNumberID string
	APIVersion    string
}

// CredentialsFrom extracts the send credentials from stored settings.
func CredentialsFrom(s *models.IntegrationSettings) Credentials {
	return Credentials{
		AccessToken:   s.APIKey,
		PhoneNumberID: s.PhoneNumberID,
		APIVersion:    s.APIVersion,
	}
}

// APIError is a non-2xx answer from the Graph API.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error: status=%d code=%d message=%s", e.StatusCode, e.Code, e.Message)
}

type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
}

// NewClient builds a Cloud API client. A nil httpClient gets a 30s timeout client.
func NewClient(baseURL string, creds Credentials, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	if creds.APIVersion == "" {
		creds.APIVersion = models.DefaultWhatsAppAPIVersion
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    httpClient,
	}
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends a plain text message and returns the provider message id.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", errors.New("empty text body")
	}
	return c.send(ctx, to, "text", map[string]any{
		"preview_url": false,
		"body":        body,
	})
}

// SendMedia sends an attachment by link. The message type is derived from the MIME type.
func (c *Client) SendMedia(ctx context.Context, to string, att models.Attachment, caption string) (string, error) {
	if strings.TrimSpace(att.URL) == "" {
		return "", errors.New("attachment without url")
	}
	kind := MediaKind(att.MimeType)
	media := map[string]any{"link": att.URL}
	if caption != "" && kind != "audio" {
		media["caption"] = caption
	}
	if kind == "document" && att.Name != "" {
		media["filename"] = att.Name
	}
	return c.send(ctx, to, kind, media)
}

// MediaURL is the Graph API reference for an inbound media object.
func (c *Client) MediaURL(mediaID string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.creds.APIVersion, mediaID)
}

func (c *Client) send(ctx context.Context, to, kind string, content map[string]any) (string, error) {
	if c.creds.AccessToken == "" || c.creds.PhoneNumberID == "" {
		return "", errors.New("whatsapp credentials not configured")
	}

	ctx, span := otel.Tracer("furniplan/whatsapp").Start(ctx, "whatsapp.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("whatsapp.phone_number_id", c.creds.PhoneNumberID),
		attribute.String("whatsapp.type", kind),
	)

	reqBody := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                utils.WhatsAppRecipient(to),
		"type":              kind,
		kind:                content,
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.creds.APIVersion, c.creds.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "http")
		log.Printf("[wa][send][err] phone_number_id=%s type=%s: %v", c.creds.PhoneNumberID, kind, err)
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(respBody, &er) == nil {
			apiErr.Code = er.Error.Code
			apiErr.Message = er.Error.Message
		}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, "api")
		log.Printf("[wa][send] phone_number_id=%s type=%s http_status=%d code=%d", c.creds.PhoneNumberID, kind, resp.StatusCode, apiErr.Code)
		return "", apiErr
	}

	var sr sendResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	if len(sr.Messages) == 0 {
		return "", nil
	}
	return sr.Messages[0].ID, nil
}

// MediaKind maps a MIME type onto a Cloud API media message type.
func MediaKind(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return "image"
	case strings.HasPrefix(mt, "audio/"):
		return "audio"
	case strings.HasPrefix(mt, "video/"):
		return "video"
	default:
		return "document"
	}
}

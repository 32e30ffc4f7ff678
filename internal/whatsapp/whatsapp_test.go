package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furniplan/internal/models"
)

const textPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "5511900000000", "phone_number_id": "PNID"},
        "contacts": [{"wa_id": "551199990000", "profile": {"name": "Maria"}}],
        "messages": [
          {"from": "551199990000", "id": "wamid.1", "timestamp": "1700000000", "type": "text", "text": {"body": " Olá "}},
          {"from": "551199990000", "id": "wamid.2", "timestamp": "1700000005", "type": "image", "image": {"id": "MEDIA1", "mime_type": "image/jpeg", "caption": "sofa"}},
          {"from": "551199990000", "id": "wamid.3", "timestamp": "1700000006", "type": "reaction", "reaction": {"emoji": "👍"}}
        ]
      }
    }]
  }]
}`

func TestParsePayload(t *testing.T) {
	msgs, err := ParsePayload([]byte(textPayload))
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	text := msgs[0]
	assert.Equal(t, "+551199990000", text.From)
	assert.Equal(t, "wamid.1", text.ExternalID)
	assert.Equal(t, "Maria", text.ProfileName)
	assert.Equal(t, "PNID", text.PhoneNumberID)
	assert.Equal(t, "Olá", text.Body)
	assert.Equal(t, models.MessageTypeText, text.Kind)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), text.SentAt)
	assert.Nil(t, text.Media)

	media := msgs[1]
	assert.Equal(t, models.MessageTypeMedia, media.Kind)
	assert.Equal(t, "sofa", media.Body)
	require.NotNil(t, media.Media)
	assert.Equal(t, "MEDIA1", media.Media.ID)
	assert.Equal(t, "image/jpeg", media.Media.MimeType)
	assert.Equal(t, "image-MEDIA1", media.Media.AttachmentName())
}

func TestParsePayloadKeepsInternationalSender(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{from: "14155550123", want: "+14155550123"},
		{from: "4915123456789", want: "+4915123456789"},
		{from: "5511999990000", want: "+5511999990000"},
	}
	for _, tt := range tests {
		body := `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{` +
			`"metadata":{"phone_number_id":"PNID"},` +
			`"messages":[{"from":"` + tt.from + `","id":"wamid.x","timestamp":"1700000000","type":"text","text":{"body":"hi"}}]}}]}]}`
		msgs, err := ParsePayload([]byte(body))
		require.NoError(t, err, tt.from)
		require.Len(t, msgs, 1)
		assert.Equal(t, tt.want, msgs[0].From, tt.from)
	}
}

func TestParsePayloadStatusOnly(t *testing.T) {
	body := `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{"statuses":[{"id":"wamid.9","status":"read"}]}}]}]}`
	msgs, err := ParsePayload([]byte(body))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestParsePayloadRejects(t *testing.T) {
	tests := map[string]string{
		"empty":          ``,
		"not json":       `{"object":`,
		"wrong object":   `{"object":"page","entry":[]}`,
		"missing entry":  `{"object":"whatsapp_business_account"}`,
		"missing value":  `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages"}]}]}`,
		"missing from":   `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{"messages":[{"id":"x","timestamp":"1","type":"text","text":{"body":"a"}}]}}]}]}`,
		"bad timestamp":  `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{"messages":[{"from":"551199990000","id":"x","timestamp":"yesterday","type":"text","text":{"body":"a"}}]}}]}]}`,
		"text no body":   `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{"messages":[{"from":"551199990000","id":"x","timestamp":"1","type":"text"}]}}]}]}`,
		"media no id":    `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{"messages":[{"from":"551199990000","id":"x","timestamp":"1","type":"document","document":{}}]}}]}]}`,
		"bad from phone": `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{"messages":[{"from":"12","id":"x","timestamp":"1","type":"text","text":{"body":"a"}}]}}]}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			msgs, err := ParsePayload([]byte(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPayload))
			assert.Nil(t, msgs)
		})
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(textPayload)
	sig := Sign(body, "app-secret")

	require.NoError(t, VerifySignature(body, sig, "app-secret"))
	assert.ErrorIs(t, VerifySignature(body, sig, "other-secret"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature([]byte(`{}`), sig, "app-secret"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(body, "", "app-secret"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(body, "sha256=zz", "app-secret"), ErrInvalidSignature)
	assert.Error(t, VerifySignature(body, sig, ""))
}

func TestClientSendText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v20.0/PNID/messages", r.URL.Path)
		assert.Equal(t, "Bearer token-1234", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.out"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Credentials{AccessToken: "token-1234", PhoneNumberID: "PNID"}, srv.Client())
	id, err := c.SendText(context.Background(), "+551199990000", "Olá")
	require.NoError(t, err)
	assert.Equal(t, "wamid.out", id)
	assert.Equal(t, "551199990000", got["to"])
	assert.Equal(t, "text", got["type"])
	assert.Equal(t, "Olá", got["text"].(map[string]any)["body"])
}

func TestClientSendMedia(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &got))
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.doc"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Credentials{AccessToken: "t", PhoneNumberID: "PNID", APIVersion: "v19.0"}, nil)
	id, err := c.SendMedia(context.Background(), "+551199990000", models.Attachment{
		Name: "plan.pdf", URL: "https://files.example/plan.pdf", MimeType: "application/pdf",
	}, "layout")
	require.NoError(t, err)
	assert.Equal(t, "wamid.doc", id)
	assert.Equal(t, "document", got["type"])
	doc := got["document"].(map[string]any)
	assert.Equal(t, "https://files.example/plan.pdf", doc["link"])
	assert.Equal(t, "plan.pdf", doc["filename"])
	assert.Equal(t, "layout", doc["caption"])
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","code":190}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Credentials{AccessToken: "t", PhoneNumberID: "PNID"}, srv.Client())
	_, err := c.SendText(context.Background(), "+551199990000", "hi")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, 190, apiErr.Code)
}

func TestClientRequiresCredentials(t *testing.T) {
	c := NewClient("", Credentials{}, nil)
	_, err := c.SendText(context.Background(), "+551199990000", "hi")
	assert.Error(t, err)
	assert.Equal(t, DefaultGraphBaseURL+"/v20.0/M1", c.MediaURL("M1"))
}

func TestMediaKind(t *testing.T) {
	assert.Equal(t, "image", MediaKind("image/png"))
	assert.Equal(t, "audio", MediaKind("audio/ogg"))
	assert.Equal(t, "video", MediaKind("Video/MP4"))
	assert.Equal(t, "document", MediaKind("application/pdf"))
	assert.Equal(t, "document", MediaKind(""))
}

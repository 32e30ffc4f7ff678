package whatsapp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"furniplan/internal/models"
	"furniplan/internal/utils"
)

const ObjectBusinessAccount = "whatsapp_business_account"

var ErrInvalidPayload = errors.New("invalid whatsapp payload")

// WebhookPayload mirrors the Cloud API webhook body. Only the fields the relay
// reads are modelled; anything else the provider sends is ignored.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string       `json:"field"`
	Value *ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         Metadata          `json:"metadata"`
	Contacts         []Contact         `json:"contacts"`
	Messages         []WebhookMessage  `json:"messages"`
	Statuses         []json.RawMessage `json:"statuses"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type WebhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *Media `json:"image"`
	Audio    *Media `json:"audio"`
	Video    *Media `json:"video"`
	Document *Media `json:"document"`
	Sticker  *Media `json:"sticker"`
}

type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
}

// InboundMessage is a provider message normalized for the conversation store.
type InboundMessage struct {
	From          string
	ExternalID    string
	ProfileName   string
	PhoneNumberID string
	Body          string
	Kind          models.MessageType
	SentAt        time.Time
	Media         *InboundMedia
}

type InboundMedia struct {
	ID       string
	Kind     string
	MimeType string
	Filename string
}

// ParsePayload decodes and validates a webhook body. Any structural problem
// rejects the whole payload; message kinds the relay does not store are skipped.
func ParsePayload(raw []byte) ([]InboundMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}
	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.Object != ObjectBusinessAccount {
		return nil, fmt.Errorf("%w: unexpected object %q", ErrInvalidPayload, payload.Object)
	}
	if payload.Entry == nil {
		return nil, fmt.Errorf("%w: missing entry", ErrInvalidPayload)
	}

	var out []InboundMessage
	for i, entry := range payload.Entry {
		for j, change := range entry.Changes {
			if strings.TrimSpace(change.Field) != "messages" {
				continue
			}
			if change.Value == nil {
				return nil, fmt.Errorf("%w: entry[%d].changes[%d] has no value", ErrInvalidPayload, i, j)
			}
			names := contactNames(change.Value.Contacts)
			for k, m := range change.Value.Messages {
				msg, ok, err := normalize(m, names, change.Value.Metadata.PhoneNumberID)
				if err != nil {
					return nil, fmt.Errorf("%w: entry[%d].changes[%d].messages[%d]: %v", ErrInvalidPayload, i, j, k, err)
				}
				if ok {
					out = append(out, msg)
				}
			}
		}
	}
	return out, nil
}

func contactNames(contacts []Contact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		if c.WaID != "" && strings.TrimSpace(c.Profile.Name) != "" {
			names[c.WaID] = strings.TrimSpace(c.Profile.Name)
		}
	}
	return names
}

func normalize(m WebhookMessage, names map[string]string, phoneNumberID string) (InboundMessage, bool, error) {
	if strings.TrimSpace(m.From) == "" {
		return InboundMessage{}, false, errors.New("missing from")
	}
	if strings.TrimSpace(m.ID) == "" {
		return InboundMessage{}, false, errors.New("missing id")
	}
	if strings.TrimSpace(m.Type) == "" {
		return InboundMessage{}, false, errors.New("missing type")
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(m.Timestamp), 10, 64)
	if err != nil || secs <= 0 {
		return InboundMessage{}, false, fmt.Errorf("invalid timestamp %q", m.Timestamp)
	}
	from, err := utils.NormalizeE164(m.From)
	if err != nil {
		return InboundMessage{}, false, fmt.Errorf("invalid from: %v", err)
	}

	msg := InboundMessage{
		From:          from,
		ExternalID:    strings.TrimSpace(m.ID),
		ProfileName:   names[strings.TrimSpace(m.From)],
		PhoneNumberID: phoneNumberID,
		SentAt:        time.Unix(secs, 0).UTC(),
	}

	kind := strings.ToLower(strings.TrimSpace(m.Type))
	switch kind {
	case "text":
		if m.Text == nil || strings.TrimSpace(m.Text.Body) == "" {
			return InboundMessage{}, false, errors.New("text message without body")
		}
		msg.Kind = models.MessageTypeText
		msg.Body = strings.TrimSpace(m.Text.Body)
		return msg, true, nil
	case "image", "audio", "video", "document", "sticker":
		media := mediaOf(m, kind)
		if media == nil || strings.TrimSpace(media.ID) == "" {
			return InboundMessage{}, false, fmt.Errorf("%s message without media id", kind)
		}
		msg.Kind = models.MessageTypeMedia
		msg.Body = strings.TrimSpace(media.Caption)
		msg.Media = &InboundMedia{
			ID:       strings.TrimSpace(media.ID),
			Kind:     kind,
			MimeType: media.MimeType,
			Filename: media.Filename,
		}
		return msg, true, nil
	default:
		// reactions, locations, interactive replies etc. are not stored
		return InboundMessage{}, false, nil
	}
}

func mediaOf(m WebhookMessage, kind string) *Media {
	switch kind {
	case "image":
		return m.Image
	case "audio":
		return m.Audio
	case "video":
		return m.Video
	case "document":
		return m.Document
	case "sticker":
		return m.Sticker
	}
	return nil
}

// AttachmentName picks a display name for an inbound media file.
func (m *InboundMedia) AttachmentName() string {
	if m.Filename != "" {
		return m.Filename
	}
	return m.Kind + "-" + m.ID
}

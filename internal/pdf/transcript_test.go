package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furniplan/internal/models"
)

func TestTranscriptWithoutFont(t *testing.T) {
	g := NewGenerator("does/not/exist.ttf")
	g.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	number := "+551199990000"
	title := "Maria - sofá"
	chat := &models.Chat{
		ID: 12, Type: models.ChatTypeWhatsApp, Status: models.ChatStatusActive,
		Title: &title, WhatsAppNumber: &number,
		Participants: []models.UserSummary{{ID: 1, Name: "Ana"}},
	}
	content := "Olá, gostaria de um orçamento"
	msgs := []models.Message{
		{ID: 1, ChatID: 12, SenderID: 99, Content: &content, Source: models.SourceExternal, SentAt: time.Now()},
		{ID: 2, ChatID: 12, SenderID: 1, Source: models.SourceHuman, SentAt: time.Now(),
			Sender:      &models.UserSummary{ID: 1, Name: "Ana"},
			Attachments: []models.Attachment{{Name: "plan.pdf", URL: "https://files/plan.pdf", MimeType: "application/pdf"}}},
	}

	var buf bytes.Buffer
	require.NoError(t, g.Transcript(&buf, chat, msgs))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestTranscriptEmptyChat(t *testing.T) {
	var buf bytes.Buffer
	err := NewGenerator("").Transcript(&buf, &models.Chat{ID: 3, Type: models.ChatTypeDirect, Status: models.ChatStatusArchived}, nil)
	require.NoError(t, err)
	assert.NotZero(t, buf.Len())
}

package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"furniplan/internal/models"
)

type AlerterMock struct {
	mock.Mock
}

func (m *AlerterMock) Alert(ctx context.Context, subject, body string) error {
	args := m.Called(ctx, subject, body)
	return args.Error(0)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastMessage(msg *models.Message) {
	m.Called(msg)
}

func (m *BroadcasterMock) BroadcastRead(chatID, readerID int64, messageIDs []int64) {
	m.Called(chatID, readerID, messageIDs)
}

// ChannelSenderMock stands in for the WhatsApp Cloud API client.
type ChannelSenderMock struct {
	mock.Mock
}

func (m *ChannelSenderMock) SendText(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}

func (m *ChannelSenderMock) SendMedia(ctx context.Context, to string, att models.Attachment, caption string) (string, error) {
	args := m.Called(ctx, to, att, caption)
	return args.String(0), args.Error(1)
}

func (m *ChannelSenderMock) MediaURL(mediaID string) string {
	return "https://graph.test/v20.0/" + mediaID
}

type TranscriptMock struct {
	mock.Mock
}

func (m *TranscriptMock) Transcript(w io.Writer, chat *models.Chat, msgs []models.Message) error {
	args := m.Called(w, chat, msgs)
	if err := args.Error(0); err != nil {
		return err
	}
	_, err := io.WriteString(w, "%PDF-1.3 mock")
	return err
}

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"furniplan/internal/models"
	"furniplan/internal/repositories"
)

var (
	_ repositories.ChatRepository        = (*ChatRepositoryMock)(nil)
	_ repositories.MessageRepository     = (*MessageRepositoryMock)(nil)
	_ repositories.IntegrationRepository = (*IntegrationRepositoryMock)(nil)
	_ repositories.UserRepository        = (*UserRepositoryMock)(nil)
	_ repositories.LeadRepository        = (*LeadRepositoryMock)(nil)
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) ListForUser(ctx context.Context, userID int64, f models.ChatFilter) ([]models.Chat, error) {
	args := m.Called(ctx, userID, f)
	var list []models.Chat
	if val := args.Get(0); val != nil {
		list = val.([]models.Chat)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) GetForParticipant(ctx context.Context, chatID, userID int64) (*models.Chat, error) {
	args := m.Called(ctx, chatID, userID)
	return chatOrNil(args.Get(0)), args.Error(1)
}

func (m *ChatRepositoryMock) Create(ctx context.Context, createdBy int64, in models.CreateChatInput) (*models.Chat, error) {
	args := m.Called(ctx, createdBy, in)
	return chatOrNil(args.Get(0)), args.Error(1)
}

func (m *ChatRepositoryMock) Update(ctx context.Context, chatID int64, in models.UpdateChatInput) (*models.Chat, error) {
	args := m.Called(ctx, chatID, in)
	return chatOrNil(args.Get(0)), args.Error(1)
}

func (m *ChatRepositoryMock) Archive(ctx context.Context, chatID int64) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ResolveInbound(ctx context.Context, in models.InboundChat) (*models.Chat, bool, error) {
	args := m.Called(ctx, in)
	return chatOrNil(args.Get(0)), args.Bool(1), args.Error(2)
}

func chatOrNil(v any) *models.Chat {
	if v == nil {
		return nil
	}
	return v.(*models.Chat)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, nm models.NewMessage) (*models.Message, error) {
	args := m.Called(ctx, nm)
	return messageOrNil(args.Get(0)), args.Error(1)
}

func (m *MessageRepositoryMock) List(ctx context.Context, chatID int64, q models.MessageQuery) ([]models.Message, error) {
	args := m.Called(ctx, chatID, q)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListAll(ctx context.Context, chatID int64) ([]models.Message, error) {
	args := m.Called(ctx, chatID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, chatID, messageID int64) (*models.Message, error) {
	args := m.Called(ctx, chatID, messageID)
	return messageOrNil(args.Get(0)), args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, chatID, readerID int64, messageIDs []int64) (map[int64]time.Time, error) {
	args := m.Called(ctx, chatID, readerID, messageIDs)
	var out map[int64]time.Time
	if val := args.Get(0); val != nil {
		out = val.(map[int64]time.Time)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) MarkSuggestionUsed(ctx context.Context, chatID, suggestionID int64) (*models.AISuggestedReply, error) {
	args := m.Called(ctx, chatID, suggestionID)
	var s *models.AISuggestedReply
	if val := args.Get(0); val != nil {
		s = val.(*models.AISuggestedReply)
	}
	return s, args.Error(1)
}

func messageOrNil(v any) *models.Message {
	if v == nil {
		return nil
	}
	return v.(*models.Message)
}

type IntegrationRepositoryMock struct {
	mock.Mock
}

func (m *IntegrationRepositoryMock) Get(ctx context.Context) (*models.IntegrationSettings, error) {
	args := m.Called(ctx)
	var s *models.IntegrationSettings
	if val := args.Get(0); val != nil {
		s = val.(*models.IntegrationSettings)
	}
	return s, args.Error(1)
}

func (m *IntegrationRepositoryMock) Upsert(ctx context.Context, in repositories.IntegrationUpsert) (*models.IntegrationSettings, error) {
	args := m.Called(ctx, in)
	var s *models.IntegrationSettings
	if val := args.Get(0); val != nil {
		s = val.(*models.IntegrationSettings)
	}
	return s, args.Error(1)
}

func (m *IntegrationRepositoryMock) Deactivate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *UserRepositoryMock) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *UserRepositoryMock) CountExisting(ctx context.Context, ids []int64) (int, error) {
	args := m.Called(ctx, ids)
	return args.Int(0), args.Error(1)
}

func (m *UserRepositoryMock) Create(ctx context.Context, u *models.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func userOrNil(v any) *models.User {
	if v == nil {
		return nil
	}
	return v.(*models.User)
}

type LeadRepositoryMock struct {
	mock.Mock
}

func (m *LeadRepositoryMock) GetByID(ctx context.Context, id int64) (*models.Lead, error) {
	args := m.Called(ctx, id)
	var l *models.Lead
	if val := args.Get(0); val != nil {
		l = val.(*models.Lead)
	}
	return l, args.Error(1)
}

func (m *LeadRepositoryMock) FindByPhone(ctx context.Context, phone string) (*models.Lead, error) {
	args := m.Called(ctx, phone)
	var l *models.Lead
	if val := args.Get(0); val != nil {
		l = val.(*models.Lead)
	}
	return l, args.Error(1)
}

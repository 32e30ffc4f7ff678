package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"furniplan/internal/authz"
	"furniplan/internal/handlers"
	"furniplan/internal/middleware"
	"furniplan/internal/mocks"
	"furniplan/internal/models"
	"furniplan/internal/realtime"
	"furniplan/internal/repositories"
	"furniplan/internal/services"
	"furniplan/internal/whatsapp"
)

var testSecret = []byte("test-secret")

const inboundPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{"id": "WABA", "changes": [{"field": "messages", "value": {
    "metadata": {"phone_number_id": "PNID"},
    "contacts": [{"wa_id": "551199990000", "profile": {"name": "Maria"}}],
    "messages": [{"from": "551199990000", "id": "wamid.in1", "timestamp": "1700000000", "type": "text", "text": {"body": "Oi"}}]
  }}]}]
}`

type testEnv struct {
	router   *gin.Engine
	chats    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	users    *mocks.UserRepositoryMock
	leads    *mocks.LeadRepositoryMock
	settings *mocks.IntegrationRepositoryMock
	sender   *mocks.ChannelSenderMock
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)
	e := &testEnv{
		chats:    new(mocks.ChatRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		leads:    new(mocks.LeadRepositoryMock),
		settings: new(mocks.IntegrationRepositoryMock),
		sender:   new(mocks.ChannelSenderMock),
	}
	senders := func(whatsapp.Credentials) services.ChannelSender { return e.sender }

	chatService := services.NewChatService(e.chats, e.messages, e.users, e.leads, nil, new(mocks.TranscriptMock))
	integrationService := services.NewIntegrationService(e.settings)
	dispatcher := services.NewDispatcher(e.chats, e.messages, e.settings, senders, nil, nil, nil, time.Second)
	ingestor := services.NewIngestor(e.chats, e.messages, e.leads, dispatcher, senders, nil, nil, nil, 1, nil)
	authService := services.NewAuthService(e.users, testSecret, time.Hour)

	e.router = SetupRoutes(gin.New(), testSecret,
		handlers.NewAuthHandler(authService),
		handlers.NewChatHandler(chatService, dispatcher),
		handlers.NewWebhookHandler(integrationService, ingestor),
		handlers.NewIntegrationHandler(integrationService),
		handlers.NewStreamHandler(chatService, realtime.NewChatHub(), testSecret),
	)
	return e
}

func (e *testEnv) do(t *testing.T, method, path, body string, userID int64, roleID int) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		token, _, err := middleware.IssueToken(testSecret, userID, roleID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func activeSettings() *models.IntegrationSettings {
	return &models.IntegrationSettings{
		ID:                 models.IntegrationSettingsID,
		APIKey:             "EAAG-secret-token-1234",
		PhoneNumberID:      "PNID",
		APIVersion:         models.DefaultWhatsAppAPIVersion,
		IsActive:           true,
		WebhookVerifyToken: "verify-me",
	}
}

func strPtr(s string) *string { return &s }

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newTestEnv()
	for _, path := range []string{"/api/chat", "/api/chat/1/messages", "/api/whatsapp-integration"} {
		w := e.do(t, http.MethodGet, path, "", 0, 0)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestHealthz(t *testing.T) {
	e := newTestEnv()
	w := e.do(t, http.MethodGet, "/healthz", "", 0, 0)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMissingAndForeignChatAreIndistinguishable(t *testing.T) {
	e := newTestEnv()
	e.chats.On("GetForParticipant", mock.Anything, int64(999), int64(5)).Return(nil, repositories.ErrChatNotFound)
	e.chats.On("GetForParticipant", mock.Anything, int64(3), int64(5)).Return(nil, repositories.ErrChatNotFound)

	missing := e.do(t, http.MethodGet, "/api/chat/999", "", 5, authz.RoleSales)
	foreign := e.do(t, http.MethodGet, "/api/chat/3", "", 5, authz.RoleSales)

	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, missing.Code, foreign.Code)
	assert.JSONEq(t, missing.Body.String(), foreign.Body.String())

	post := e.do(t, http.MethodPost, "/api/chat/3/messages", `{"content":"oi"}`, 5, authz.RoleSales)
	assert.Equal(t, http.StatusNotFound, post.Code)
	assert.JSONEq(t, missing.Body.String(), post.Body.String())
	e.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInvalidChatID(t *testing.T) {
	e := newTestEnv()
	w := e.do(t, http.MethodGet, "/api/chat/abc", "", 5, authz.RoleSales)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessageForwardFailureIsWarning(t *testing.T) {
	e := newTestEnv()
	chat := &models.Chat{ID: 3, Type: models.ChatTypeWhatsApp, Status: models.ChatStatusActive,
		IsWhatsAppIntegrated: true, WhatsAppNumber: strPtr("+551199990000")}
	stored := &models.Message{ID: 10, ChatID: 3, SenderID: 5, Content: strPtr("Olá"),
		Type: models.MessageTypeText, Source: models.SourceHuman, SentAt: time.Now()}

	e.chats.On("GetForParticipant", mock.Anything, int64(3), int64(5)).Return(chat, nil).Once()
	e.messages.On("Create", mock.Anything, mock.MatchedBy(func(nm models.NewMessage) bool {
		return nm.ChatID == 3 && nm.SenderID == 5 && nm.Content != nil && *nm.Content == "Olá"
	})).Return(stored, nil).Once()
	e.settings.On("Get", mock.Anything).Return(activeSettings(), nil).Once()
	e.sender.On("SendText", mock.Anything, "+551199990000", "Olá").Return("", errors.New("graph: 401 expired token")).Once()

	w := e.do(t, http.MethodPost, "/api/chat/3/messages", `{"content":"  Olá  "}`, 5, authz.RoleSales)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 10, body["id"])
	assert.Contains(t, body["warning"], "not delivered to WhatsApp")
	assert.NotContains(t, w.Body.String(), "EAAG-secret-token-1234")
	e.sender.AssertExpectations(t)
}

func TestSendMessageDeliveredHasNoWarning(t *testing.T) {
	e := newTestEnv()
	chat := &models.Chat{ID: 3, Status: models.ChatStatusActive, IsWhatsAppIntegrated: true, WhatsAppNumber: strPtr("+551199990000")}
	stored := &models.Message{ID: 11, ChatID: 3, SenderID: 5, Content: strPtr("ok")}

	e.chats.On("GetForParticipant", mock.Anything, int64(3), int64(5)).Return(chat, nil).Once()
	e.messages.On("Create", mock.Anything, mock.Anything).Return(stored, nil).Once()
	e.settings.On("Get", mock.Anything).Return(activeSettings(), nil).Once()
	e.sender.On("SendText", mock.Anything, "+551199990000", "ok").Return("wamid.out", nil).Once()

	w := e.do(t, http.MethodPost, "/api/chat/3/messages", `{"content":"ok"}`, 5, authz.RoleSales)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "warning")
}

func TestSendEmptyMessageRejected(t *testing.T) {
	e := newTestEnv()
	e.chats.On("GetForParticipant", mock.Anything, int64(3), int64(5)).
		Return(&models.Chat{ID: 3, Status: models.ChatStatusActive}, nil).Once()

	w := e.do(t, http.MethodPost, "/api/chat/3/messages", `{"content":"   "}`, 5, authz.RoleSales)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	e.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuditRoleCannotWrite(t *testing.T) {
	e := newTestEnv()
	w := e.do(t, http.MethodPost, "/api/chat/3/messages", `{"content":"oi"}`, 7, authz.RoleAudit)
	assert.Equal(t, http.StatusForbidden, w.Code)
	e.chats.AssertNotCalled(t, "GetForParticipant", mock.Anything, mock.Anything, mock.Anything)
}

func TestPatchMessagesNeedsExactlyOneTarget(t *testing.T) {
	e := newTestEnv()
	for _, body := range []string{`{}`, `{"messageId":1,"suggestionId":2}`} {
		w := e.do(t, http.MethodPatch, "/api/chat/3/messages", body, 5, authz.RoleSales)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestWebhookHandshake(t *testing.T) {
	e := newTestEnv()
	e.settings.On("Get", mock.Anything).Return(activeSettings(), nil)

	w := e.do(t, http.MethodGet, "/api/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=1158201444", "", 0, 0)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1158201444", w.Body.String())

	w = e.do(t, http.MethodGet, "/api/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1158201444", "", 0, 0)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "1158201444")
}

func TestWebhookHandshakeNotConfigured(t *testing.T) {
	e := newTestEnv()
	e.settings.On("Get", mock.Anything).Return(nil, repositories.ErrIntegrationNotFound)

	w := e.do(t, http.MethodGet, "/api/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=x&hub.challenge=1", "", 0, 0)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebhookReceiveStoresMessage(t *testing.T) {
	e := newTestEnv()
	chat := &models.Chat{ID: 3, Status: models.ChatStatusActive, IsWhatsAppIntegrated: true, WhatsAppNumber: strPtr("+551199990000")}
	e.settings.On("Get", mock.Anything).Return(activeSettings(), nil).Once()
	e.leads.On("FindByPhone", mock.Anything, "+551199990000").Return(nil, repositories.ErrLeadNotFound).Once()
	e.chats.On("ResolveInbound", mock.Anything, mock.Anything).Return(chat, false, nil).Once()
	e.messages.On("Create", mock.Anything, mock.Anything).Return(&models.Message{ID: 50, ChatID: 3, SenderID: 1}, nil).Once()

	w := e.do(t, http.MethodPost, "/api/webhooks/whatsapp", inboundPayload, 0, 0)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	e.messages.AssertExpectations(t)
}

func TestWebhookReceiveMalformed(t *testing.T) {
	e := newTestEnv()
	e.settings.On("Get", mock.Anything).Return(activeSettings(), nil).Once()

	w := e.do(t, http.MethodPost, "/api/webhooks/whatsapp", `{"object":`, 0, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	e.chats.AssertNotCalled(t, "ResolveInbound", mock.Anything, mock.Anything)
}

func TestWebhookReceiveSignature(t *testing.T) {
	e := newTestEnv()
	settings := activeSettings()
	settings.AppSecret = "app-secret"
	e.settings.On("Get", mock.Anything).Return(settings, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/whatsapp", bytes.NewBufferString(inboundPayload))
	req.Header.Set(whatsapp.SignatureHeader, whatsapp.Sign([]byte(inboundPayload), "other-secret"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	e.chats.AssertNotCalled(t, "ResolveInbound", mock.Anything, mock.Anything)
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestWebhookReceiveBodyErrors(t *testing.T) {
	e := newTestEnv()

	big := httptest.NewRequest(http.MethodPost, "/api/webhooks/whatsapp", strings.NewReader(strings.Repeat("x", 1<<20+1)))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	broken := httptest.NewRequest(http.MethodPost, "/api/webhooks/whatsapp", failingBody{})
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, broken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.settings.AssertNotCalled(t, "Get", mock.Anything)
}

func TestWebhookReceiveAllFailedAsksForRetry(t *testing.T) {
	e := newTestEnv()
	e.settings.On("Get", mock.Anything).Return(activeSettings(), nil).Once()
	e.leads.On("FindByPhone", mock.Anything, mock.Anything).Return(nil, repositories.ErrLeadNotFound).Once()
	e.chats.On("ResolveInbound", mock.Anything, mock.Anything).Return(nil, false, errors.New("db down")).Once()

	w := e.do(t, http.MethodPost, "/api/webhooks/whatsapp", inboundPayload, 0, 0)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookReceiveWithoutIntegrationIsAccepted(t *testing.T) {
	e := newTestEnv()
	e.settings.On("Get", mock.Anything).Return(nil, repositories.ErrIntegrationNotFound).Once()

	w := e.do(t, http.MethodPost, "/api/webhooks/whatsapp", inboundPayload, 0, 0)
	assert.Equal(t, http.StatusOK, w.Code)
	e.chats.AssertNotCalled(t, "ResolveInbound", mock.Anything, mock.Anything)
}

func TestIntegrationRoleGate(t *testing.T) {
	e := newTestEnv()
	for _, role := range []int{authz.RoleSales, authz.RoleOperations, authz.RoleAudit} {
		w := e.do(t, http.MethodGet, "/api/whatsapp-integration", "", 9, role)
		assert.Equal(t, http.StatusForbidden, w.Code, role)
	}
	e.settings.AssertNotCalled(t, "Get", mock.Anything)
}

func TestIntegrationGetIsMasked(t *testing.T) {
	e := newTestEnv()
	settings := activeSettings()
	settings.AppSecret = "app-secret-9876"
	e.settings.On("Get", mock.Anything).Return(settings, nil).Once()

	w := e.do(t, http.MethodGet, "/api/whatsapp-integration", "", 1, authz.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.IntegrationSettings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, strings.HasSuffix(got.APIKey, "1234"))
	assert.NotEqual(t, "EAAG-secret-token-1234", got.APIKey)
	assert.True(t, strings.HasSuffix(got.AppSecret, "9876"))
	assert.NotContains(t, w.Body.String(), "EAAG-secret-token")
	assert.Equal(t, "verify-me", got.WebhookVerifyToken)
}

func TestIntegrationGetNotConfigured(t *testing.T) {
	e := newTestEnv()
	e.settings.On("Get", mock.Anything).Return(nil, repositories.ErrIntegrationNotFound).Once()

	w := e.do(t, http.MethodGet, "/api/whatsapp-integration", "", 1, authz.RoleManagement)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogin(t *testing.T) {
	e := newTestEnv()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	e.users.On("GetByEmail", mock.Anything, "ana@furniplan.test").
		Return(&models.User{ID: 5, Email: "ana@furniplan.test", PasswordHash: string(hash), RoleID: authz.RoleSales}, nil)

	w := e.do(t, http.MethodPost, "/login", `{"email":"ana@furniplan.test","password":"s3cret-pass"}`, 0, 0)
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	claims, err := middleware.ParseToken(testSecret, res.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(5), claims.UserID)

	w = e.do(t, http.MethodPost, "/login", `{"email":"ana@furniplan.test","password":"wrong"}`, 0, 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

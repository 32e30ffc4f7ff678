package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeMail struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeMail) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

type recorder struct {
	subjects []string
	err      error
}

func (r *recorder) Alert(_ context.Context, subject, _ string) error {
	r.subjects = append(r.subjects, subject)
	return r.err
}

func TestEmailNotifier(t *testing.T) {
	mail := &fakeMail{}
	n := &EmailNotifier{dialer: mail, from: "crm@furniplan.test", to: []string{"ops@furniplan.test"}}

	require.NoError(t, n.Alert(context.Background(), "New WhatsApp contact", "chat 5\n<b>x</b>"))
	require.Len(t, mail.sent, 1)
	assert.Equal(t, []string{"[FurniPlan] New WhatsApp contact"}, mail.sent[0].GetHeader("Subject"))

	mail.err = errors.New("smtp down")
	assert.Error(t, n.Alert(context.Background(), "x", "y"))
}

func TestEmailNotifierWithoutRecipients(t *testing.T) {
	mail := &fakeMail{}
	n := &EmailNotifier{dialer: mail, from: "crm@furniplan.test"}
	require.NoError(t, n.Alert(context.Background(), "x", "y"))
	assert.Empty(t, mail.sent)
}

func TestTelegramNotifier(t *testing.T) {
	bot := &fakeBot{}
	n := &TelegramNotifier{bot: bot, chatID: -100500}

	require.NoError(t, n.Alert(context.Background(), "Forward failed", "chat=3 message=9"))
	require.Len(t, bot.sent, 1)
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(-100500), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "<b>Forward failed</b>")

	skip := &TelegramNotifier{bot: bot}
	require.NoError(t, skip.Alert(context.Background(), "x", "y"))
	assert.Len(t, bot.sent, 1)
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{err: errors.New("boom")}
	err := Multi{ok, nil, bad, Noop{}}.Alert(context.Background(), "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"s"}, ok.subjects)
	assert.Equal(t, []string{"s"}, bad.subjects)

	assert.NoError(t, Multi{ok}.Alert(context.Background(), "s2", "b"))
}

type chanNotifier chan string

func (c chanNotifier) Alert(_ context.Context, subject, _ string) error {
	c <- subject
	return errors.New("ignored")
}

func TestAsyncDoesNotBlock(t *testing.T) {
	got := make(chanNotifier, 1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, Async{Next: got}.Alert(ctx, "New WhatsApp contact", "b"))
	cancel()

	select {
	case subject := <-got:
		assert.Equal(t, "New WhatsApp contact", subject)
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not delivered")
	}

	assert.NoError(t, Async{}.Alert(context.Background(), "x", "y"))
}

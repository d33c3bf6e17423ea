package notificator

import (
	"context"
	"errors"
	"net/smtp"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/internal/repository"
	"github.com/promohive/rewards/pkg/logger"
)

type recordingSender struct {
	mu   sync.Mutex
	sent map[string][]*models.Notification
	err  error
	boom bool
}

func (s *recordingSender) SendNotification(to string, n *models.Notification) error {
	if s.boom {
		panic("sender exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = map[string][]*models.Notification{}
	}
	s.sent[to] = append(s.sent[to], n)
	return s.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func newTestRepo(t *testing.T) *repository.Database {
	t.Helper()
	db, err := repository.NewRepository(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), logger.NewNopLogger())
	require.NoError(t, err)
	sqlDB, err := db.Conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNotifyFansOut(t *testing.T) {
	repo := newTestRepo(t)
	user := &models.User{Email: "ann@example.com", ReferralCode: "ANN00001", Status: models.UserStatusApproved, Role: models.RoleUser, TelegramChatID: "42"}
	require.NoError(t, repo.CreateUser(user))

	tg, mail, pub := &recordingSender{}, &recordingSender{}, &recordingPublisher{}
	n := NewNotificator(logger.NewNopLogger(), repo, pub, tg, mail)

	n.Notify(&models.Event{Type: models.EventTaskApproved, UserID: user.ID, Amount: 1350, BalanceAfter: 1850})
	n.Wait()

	feed, err := repo.ListNotifications(user.ID, 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, models.EventTaskApproved, feed[0].Kind)
	assert.Equal(t, "You earned $13.50. Balance: $18.50.", feed[0].Message)

	require.Len(t, pub.events, 1)
	assert.NotZero(t, pub.events[0].Timestamp)
	assert.Len(t, tg.sent["42"], 1)
	assert.Len(t, mail.sent["ann@example.com"], 1)
}

func TestDispatchSwallowsFailures(t *testing.T) {
	repo := newTestRepo(t)
	user := &models.User{Email: "bob@example.com", ReferralCode: "BOB00001", Status: models.UserStatusApproved, Role: models.RoleUser, TelegramChatID: "7"}
	require.NoError(t, repo.CreateUser(user))

	tg := &recordingSender{boom: true}
	mail := &recordingSender{err: errors.New("smtp down")}
	pub := &recordingPublisher{err: errors.New("redis down")}
	n := NewNotificator(logger.NewNopLogger(), repo, pub, tg, mail)

	assert.NotPanics(t, func() {
		n.Dispatch(&models.Event{Type: models.EventWithdrawalCompleted, UserID: user.ID, Amount: 1000, Detail: "0xabc"})
	})
	assert.Len(t, mail.sent["bob@example.com"], 1)

	// unknown user: the channel lookup fails quietly
	assert.NotPanics(t, func() {
		n.Dispatch(&models.Event{Type: models.EventTaskApproved, UserID: 999})
	})
}

func TestRender(t *testing.T) {
	assert.Equal(t, "Welcome aboard! A bonus of $5.00 has been added to your balance.",
		Render(&models.Event{Type: models.EventUserApproved, Amount: 500}))
	assert.Equal(t, "Your withdrawal of $10.00 has been sent. Transaction: 0xabc",
		Render(&models.Event{Type: models.EventWithdrawalCompleted, Amount: 1000, Detail: "0xabc"}))
	assert.Equal(t, "You are now level 2.",
		Render(&models.Event{Type: models.EventLevelApproved, Detail: "2"}))
}

func TestEmailNotificator(t *testing.T) {
	e := NewEmailNotificator(logger.NewNopLogger(), "smtp.example.com", 587, "user", "pass", "noreply@example.com")
	var gotAddr string
	var gotMsg []byte
	e.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotMsg = addr, msg
		assert.Equal(t, "noreply@example.com", from)
		assert.Equal(t, []string{"ann@example.com"}, to)
		return nil
	}
	err := e.SendNotification("ann@example.com", &models.Notification{Title: "Task approved", Message: "You earned $1.00."})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Contains(t, string(gotMsg), "Subject: PromoHive: Task approved\r\n")
	assert.Contains(t, string(gotMsg), "You earned $1.00.")

	e.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	assert.Error(t, e.SendNotification("ann@example.com", &models.Notification{}))
}

func TestParseStartCommand(t *testing.T) {
	token, ok := parseStartCommand("/start 9F8e7d")
	assert.True(t, ok)
	assert.Equal(t, "9f8e7d", token)

	token, ok = parseStartCommand("/start")
	assert.True(t, ok)
	assert.Empty(t, token)

	_, ok = parseStartCommand("hello")
	assert.False(t, ok)
}

func TestTelegramLinkRequiresIssuedToken(t *testing.T) {
	repo := newTestRepo(t)
	user := &models.User{Email: "cat@example.com", ReferralCode: "CAT00001", Status: models.UserStatusApproved, Role: models.RoleUser}
	require.NoError(t, repo.CreateUser(user))
	tg := &TelegramNotificator{logger: logger.NewNopLogger(), db: repo}

	chatOf := func() string {
		u, err := repo.GetUser(user.ID)
		require.NoError(t, err)
		return u.TelegramChatID
	}

	// the public referral code is not a credential
	assert.Contains(t, tg.linkChat("cat00001", "666"), "invalid")
	assert.Contains(t, tg.linkChat("unknown", "666"), "invalid")
	assert.Contains(t, tg.linkChat("", "666"), "request a Telegram link")
	assert.Empty(t, chatOf())

	require.NoError(t, repo.SetTelegramLinkToken(user.ID, "expiredtoken", time.Now().Add(-time.Minute).Unix()))
	assert.Contains(t, tg.linkChat("expiredtoken", "666"), "invalid")
	assert.Empty(t, chatOf())

	require.NoError(t, repo.SetTelegramLinkToken(user.ID, "freshtoken", time.Now().Add(time.Minute).Unix()))
	assert.Contains(t, tg.linkChat("freshtoken", "42"), "You will now receive")
	assert.Equal(t, "42", chatOf())

	// tokens are single-use
	assert.Contains(t, tg.linkChat("freshtoken", "666"), "invalid")
	assert.Equal(t, "42", chatOf())
}

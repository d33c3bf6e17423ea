package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/pkg/logger"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewRepository(sqlite.Open(filepath.Join(t.TempDir(), "repo.db")), logger.NewNopLogger())
	require.NoError(t, err)
	sqlDB, err := db.Conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyWalletDeltaGuards(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.CreateWallet(&models.Wallet{UserID: 1}))

	wallet, err := db.ApplyWalletDelta(1, models.WalletDelta{Balance: 500, Earned: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(500), wallet.Balance)
	assert.Equal(t, int64(1), wallet.Version)

	_, err = db.ApplyWalletDelta(1, models.WalletDelta{Balance: -501, Pending: 501})
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)

	_, err = db.ApplyWalletDelta(1, models.WalletDelta{Pending: -1})
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)

	_, err = db.ApplyWalletDelta(2, models.WalletDelta{Balance: 1})
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	wallet, err = db.GetWallet(1)
	require.NoError(t, err)
	assert.Equal(t, models.Totals{Balance: 500, TotalEarned: 500}, wallet.Totals())
}

func TestTransactionRollsBack(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.CreateWallet(&models.Wallet{UserID: 1}))

	boom := errors.New("boom")
	err := db.Transaction(context.Background(), func(tx models.Repository) error {
		if _, err := tx.ApplyWalletDelta(1, models.WalletDelta{Balance: 100}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	wallet, err := db.GetWallet(1)
	require.NoError(t, err)
	assert.Zero(t, wallet.Balance)
}

func TestOnePendingWithdrawalPerUser(t *testing.T) {
	db := newTestDB(t)
	first := &models.Withdrawal{UserID: 1, Amount: 1000, ConversionRate: "1", WalletAddress: "a", Network: models.NetworkTRC20, Status: models.WithdrawalPending}
	require.NoError(t, db.CreateWithdrawal(first))

	second := &models.Withdrawal{UserID: 1, Amount: 1000, ConversionRate: "1", WalletAddress: "a", Network: models.NetworkTRC20, Status: models.WithdrawalPending}
	assert.ErrorIs(t, db.CreateWithdrawal(second), models.ErrWithdrawalAlreadyPending)

	pending, err := db.HasPendingWithdrawal(1)
	require.NoError(t, err)
	assert.True(t, pending)

	first.Status = models.WithdrawalCompleted
	first.TxHash = "0xabc"
	ok, err := db.FinishWithdrawal(first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.FinishWithdrawal(first)
	require.NoError(t, err)
	assert.False(t, ok, "a settled withdrawal cannot be settled twice")

	second.ID = 0
	require.NoError(t, db.CreateWithdrawal(second))
}

func TestDuplicateOfferCompletion(t *testing.T) {
	db := newTestDB(t)
	completion := func() *models.OfferCompletion {
		return &models.OfferCompletion{Network: "adgem", ExternalID: "x-1", UserID: 1, Payout: 125, Reward: 125}
	}
	require.NoError(t, db.CreateOfferCompletion(completion()))
	assert.ErrorIs(t, db.CreateOfferCompletion(completion()), models.ErrDuplicateOffer)
}

func TestMarkReferralPaidOnce(t *testing.T) {
	db := newTestDB(t)
	referral := &models.Referral{ReferrerID: 1, ReferredID: 2, Level: 1}
	require.NoError(t, db.CreateReferral(referral))

	ok, err := db.MarkReferralPaid(referral.ID, 50, time.Now().Unix())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.MarkReferralPaid(referral.ID, 50, time.Now().Unix())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettings(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.EnsureSetting("WELCOME_BONUS", "500"))
	require.NoError(t, db.EnsureSetting("WELCOME_BONUS", "900"))
	value, ok, err := db.GetSetting("WELCOME_BONUS")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "500", value)

	require.NoError(t, db.SetSetting("WELCOME_BONUS", "700"))
	value, _, err = db.GetSetting("WELCOME_BONUS")
	require.NoError(t, err)
	assert.Equal(t, "700", value)

	_, ok, err = db.GetSetting("MISSING")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppLock(t *testing.T) {
	db := newTestDB(t)

	ok, err := db.AcquireLock(models.AccrualLockName, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.AcquireLock(models.AccrualLockName, "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held by another instance")

	ok, err = db.AcquireLock(models.AccrualLockName, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "owner may renew")

	require.NoError(t, db.ReleaseLock(models.AccrualLockName, "b"))
	ok, err = db.AcquireLock(models.AccrualLockName, "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "release by a non-owner is a no-op")

	require.NoError(t, db.ReleaseLock(models.AccrualLockName, "a"))
	ok, err = db.AcquireLock(models.AccrualLockName, "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAppLockExpires(t *testing.T) {
	db := newTestDB(t)
	expired := models.AppLock{LockName: models.AccrualLockName, InstanceID: "a", AcquiredAt: 1, ExpiresAt: 2}
	require.NoError(t, db.Conn.Create(&expired).Error)

	ok, err := db.AcquireLock(models.AccrualLockName, "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDriverFailuresAreTransient(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.CreateWallet(&models.Wallet{UserID: 1}))
	require.NoError(t, db.Close())

	_, err := db.GetWallet(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTransient)
	assert.NotErrorIs(t, err, models.ErrUserNotFound)
	assert.Equal(t, "get wallet: transient storage failure", err.Error())

	var transientErr *models.TransientError
	require.ErrorAs(t, err, &transientErr)
	assert.Equal(t, "get wallet", transientErr.Op)
	assert.NotNil(t, transientErr.Unwrap())

	_, err = db.ApplyWalletDelta(1, models.WalletDelta{Balance: 1})
	assert.ErrorIs(t, err, models.ErrTransient)

	err = db.Transaction(context.Background(), func(models.Repository) error { return nil })
	assert.ErrorIs(t, err, models.ErrTransient)
}

func TestAfterCommit(t *testing.T) {
	db := newTestDB(t)
	var ran []string

	db.AfterCommit(func() { ran = append(ran, "direct") })
	assert.Equal(t, []string{"direct"}, ran)

	err := db.Transaction(context.Background(), func(tx models.Repository) error {
		tx.AfterCommit(func() { ran = append(ran, "committed") })
		assert.Len(t, ran, 1, "hooks wait for the commit")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"direct", "committed"}, ran)

	err = db.Transaction(context.Background(), func(tx models.Repository) error {
		tx.AfterCommit(func() { ran = append(ran, "rolled back") })
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Equal(t, []string{"direct", "committed"}, ran)
}

func TestLinkTelegramChat(t *testing.T) {
	db := newTestDB(t)
	user := &models.User{Email: "tg@example.com", ReferralCode: "TG000001", Status: models.UserStatusApproved, Role: models.RoleUser}
	require.NoError(t, db.CreateUser(user))
	now := time.Now().Unix()

	_, err := db.LinkTelegramChat("", "1", now)
	assert.ErrorIs(t, err, models.ErrTelegramLinkInvalid, "users without a token never match the empty token")

	require.NoError(t, db.SetTelegramLinkToken(user.ID, "tok", now+60))
	_, err = db.LinkTelegramChat("tok", "1", now+61)
	assert.ErrorIs(t, err, models.ErrTelegramLinkInvalid)

	id, err := db.LinkTelegramChat("tok", "1", now)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = db.LinkTelegramChat("tok", "2", now)
	assert.ErrorIs(t, err, models.ErrTelegramLinkInvalid)

	stored, err := db.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", stored.TelegramChatID)
	assert.Empty(t, stored.TelegramLinkToken)

	assert.ErrorIs(t, db.SetTelegramLinkToken(999, "x", now), models.ErrUserNotFound)
}

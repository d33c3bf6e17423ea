package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/pkg/logger"
)

// Database implements models.Repository on top of gorm. The same type serves
// the root connection and transaction-bound handles.
type Database struct {
	logger *logger.Logger

	Conn *gorm.DB

	// afterCommit collects hooks of the enclosing transaction; nil outside one.
	afterCommit *[]func()
}

// NewPostgresDB connects to PostgreSQL and migrates the schema.
func NewPostgresDB(dsn string, logger *logger.Logger) (models.Repository, error) {
	db, err := NewRepository(postgres.Open(dsn), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return db, nil
}

// NewRepository opens any gorm dialector and migrates the schema.
func NewRepository(dialector gorm.Dialector, logger *logger.Logger) (*Database, error) {
	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	conn, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, err
	}

	db := &Database{Conn: conn, logger: logger}
	if err := db.Migrate(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *Database) Migrate() error {
	if err := db.Conn.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.LedgerEntry{},
		&models.Referral{},
		&models.Withdrawal{},
		&models.LevelRequest{},
		&models.Setting{},
		&models.Task{},
		&models.TaskSubmission{},
		&models.OfferCompletion{},
		&models.Notification{},
		&models.AppLock{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return nil
}

func (db *Database) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

func (db *Database) Transaction(ctx context.Context, fn func(models.Repository) error) error {
	var hooks []func()
	pending := db.afterCommit
	if pending == nil {
		pending = &hooks
	}

	var fnErr error
	err := db.Conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&Database{Conn: tx, logger: db.logger, afterCommit: pending})
		return fnErr
	})
	if err == nil {
		// nested transactions leave the hooks to the outermost commit
		for _, hook := range hooks {
			hook()
		}
		return nil
	}
	if fnErr != nil {
		return fnErr
	}
	return transient("commit transaction", err)
}

// AfterCommit runs fn once the enclosing transaction has committed. Outside a
// transaction it runs fn immediately.
func (db *Database) AfterCommit(fn func()) {
	if db.afterCommit == nil {
		fn()
		return
	}
	*db.afterCommit = append(*db.afterCommit, fn)
}

// transient hides driver errors behind models.ErrTransient.
func transient(op string, err error) error {
	return models.NewTransientError(op, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// first loads one row into dest, mapping a missing row to notFound.
func (db *Database) first(dest interface{}, notFound error, op string, query interface{}, args ...interface{}) error {
	if err := db.Conn.Where(query, args...).First(dest).Error; err != nil {
		if isNotFound(err) {
			return notFound
		}
		return transient(op, err)
	}
	return nil
}

func withLimit(q *gorm.DB, limit int) *gorm.DB {
	if limit > 0 {
		return q.Limit(limit)
	}
	return q
}

// ---------------------------------------------------------------------------
// Users

func (db *Database) CreateUser(user *models.User) error {
	if err := db.Conn.Create(user).Error; err != nil {
		if isDuplicate(err) {
			return models.ErrEmailTaken
		}
		return transient("create user", err)
	}
	return nil
}

func (db *Database) GetUser(id int64) (*models.User, error) {
	var user models.User
	if err := db.first(&user, models.ErrUserNotFound, "get user", "id = ?", id); err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Database) GetUserByReferralCode(code string) (*models.User, error) {
	var user models.User
	if err := db.first(&user, models.ErrUserNotFound, "get user by referral code", "referral_code = ?", code); err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Database) ListUsers(status models.UserStatus, limit int) ([]*models.User, error) {
	var users []*models.User
	q := db.Conn.Order("id")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := withLimit(q, limit).Find(&users).Error; err != nil {
		return nil, transient("list users", err)
	}
	return users, nil
}

func (db *Database) UpdateUserStatus(id int64, from, to models.UserStatus, at int64) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if to == models.UserStatusApproved {
		updates["approved_at"] = at
	}
	res := db.Conn.Model(&models.User{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if res.Error != nil {
		return false, transient("update user status", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (db *Database) SetUserLevel(id int64, level int) error {
	res := db.Conn.Model(&models.User{}).Where("id = ?", id).Update("level", level)
	if res.Error != nil {
		return transient("set user level", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (db *Database) SetTelegramLinkToken(id int64, token string, expiresAt int64) error {
	res := db.Conn.Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"telegram_link_token":      token,
		"telegram_link_expires_at": expiresAt,
	})
	if res.Error != nil {
		return transient("set telegram link token", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (db *Database) LinkTelegramChat(token, chatID string, now int64) (int64, error) {
	if token == "" {
		return 0, models.ErrTelegramLinkInvalid
	}
	var user models.User
	err := db.first(&user, models.ErrTelegramLinkInvalid, "get user by telegram link token",
		"telegram_link_token = ? AND telegram_link_expires_at >= ?", token, now)
	if err != nil {
		return 0, err
	}
	// clearing the token in the same statement makes it single-use
	res := db.Conn.Model(&models.User{}).
		Where("id = ? AND telegram_link_token = ?", user.ID, token).
		Updates(map[string]interface{}{
			"telegram_chat_id":         chatID,
			"telegram_link_token":      "",
			"telegram_link_expires_at": 0,
		})
	if res.Error != nil {
		return 0, transient("link telegram chat", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, models.ErrTelegramLinkInvalid
	}
	return user.ID, nil
}

// ---------------------------------------------------------------------------
// Wallets

func (db *Database) CreateWallet(wallet *models.Wallet) error {
	if err := db.Conn.Create(wallet).Error; err != nil {
		return transient("create wallet", err)
	}
	return nil
}

func (db *Database) GetWallet(userID int64) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := db.first(&wallet, models.ErrUserNotFound, "get wallet", "user_id = ?", userID); err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (db *Database) ApplyWalletDelta(userID int64, delta models.WalletDelta) (*models.Wallet, error) {
	// The guard and the increments run in one statement, so the row lock taken
	// by UPDATE serialises concurrent writers on the same wallet.
	res := db.Conn.Model(&models.Wallet{}).
		Where("user_id = ? AND balance + ? >= 0 AND pending_balance + ? >= 0", userID, delta.Balance, delta.Pending).
		Updates(map[string]interface{}{
			"balance":         gorm.Expr("balance + ?", delta.Balance),
			"pending_balance": gorm.Expr("pending_balance + ?", delta.Pending),
			"total_earned":    gorm.Expr("total_earned + ?", delta.Earned),
			"total_withdrawn": gorm.Expr("total_withdrawn + ?", delta.Withdrawn),
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now().Unix(),
		})
	if res.Error != nil {
		return nil, transient("apply wallet delta", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.Conn.Model(&models.Wallet{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return nil, transient("apply wallet delta", err)
		}
		if count == 0 {
			return nil, models.ErrUserNotFound
		}
		return nil, models.ErrInsufficientBalance
	}
	return db.GetWallet(userID)
}

// ---------------------------------------------------------------------------
// Ledger

func (db *Database) AppendLedgerEntry(entry *models.LedgerEntry) error {
	if err := db.Conn.Create(entry).Error; err != nil {
		return transient("append ledger entry", err)
	}
	return nil
}

func (db *Database) ListLedgerEntries(userID int64, limit int) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	q := db.Conn.Where("user_id = ?", userID).Order("id DESC")
	if err := withLimit(q, limit).Find(&entries).Error; err != nil {
		return nil, transient("list ledger entries", err)
	}
	return entries, nil
}

func (db *Database) ListAllLedgerEntries(userID int64) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	if err := db.Conn.Where("user_id = ?", userID).Order("id").Find(&entries).Error; err != nil {
		return nil, transient("list all ledger entries", err)
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Referrals

func (db *Database) CreateReferral(referral *models.Referral) error {
	if err := db.Conn.Create(referral).Error; err != nil {
		return transient("create referral", err)
	}
	return nil
}

func (db *Database) GetReferral(id int64) (*models.Referral, error) {
	var referral models.Referral
	if err := db.first(&referral, models.ErrReferralEdgeNotFound, "get referral", "id = ?", id); err != nil {
		return nil, err
	}
	return &referral, nil
}

func (db *Database) ListReferralsByReferrer(referrerID int64) ([]*models.Referral, error) {
	var referrals []*models.Referral
	if err := db.Conn.Where("referrer_id = ?", referrerID).Order("level, id").Find(&referrals).Error; err != nil {
		return nil, transient("list referrals", err)
	}
	return referrals, nil
}

func (db *Database) ListAccrualCandidates() ([]*models.AccrualCandidate, error) {
	var candidates []*models.AccrualCandidate
	err := db.Conn.Table("referrals").
		Select("referrals.*, wallets.total_earned AS referred_total_earned").
		Joins("JOIN wallets ON wallets.user_id = referrals.referred_id").
		Where("referrals.is_paid = ? AND wallets.total_earned > 0", false).
		Order("referrals.id").
		Scan(&candidates).Error
	if err != nil {
		return nil, transient("list accrual candidates", err)
	}
	return candidates, nil
}

func (db *Database) MarkReferralPaid(id int64, bonus int64, at int64) (bool, error) {
	res := db.Conn.Model(&models.Referral{}).
		Where("id = ? AND is_paid = ?", id, false).
		Updates(map[string]interface{}{"is_paid": true, "bonus": bonus, "paid_at": at})
	if res.Error != nil {
		return false, transient("mark referral paid", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ---------------------------------------------------------------------------
// Withdrawals

func (db *Database) CreateWithdrawal(withdrawal *models.Withdrawal) error {
	if err := db.Conn.Create(withdrawal).Error; err != nil {
		if isDuplicate(err) {
			return models.ErrWithdrawalAlreadyPending
		}
		return transient("create withdrawal", err)
	}
	return nil
}

func (db *Database) GetWithdrawal(id int64) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := db.first(&withdrawal, models.ErrWithdrawalNotFound, "get withdrawal", "id = ?", id); err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

func (db *Database) HasPendingWithdrawal(userID int64) (bool, error) {
	var count int64
	err := db.Conn.Model(&models.Withdrawal{}).
		Where("user_id = ? AND status = ?", userID, models.WithdrawalPending).
		Count(&count).Error
	if err != nil {
		return false, transient("check pending withdrawal", err)
	}
	return count > 0, nil
}

func (db *Database) ListWithdrawals(userID int64, status models.WithdrawalStatus, limit int) ([]*models.Withdrawal, error) {
	var withdrawals []*models.Withdrawal
	q := db.Conn.Order("id DESC")
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := withLimit(q, limit).Find(&withdrawals).Error; err != nil {
		return nil, transient("list withdrawals", err)
	}
	return withdrawals, nil
}

func (db *Database) FinishWithdrawal(withdrawal *models.Withdrawal) (bool, error) {
	res := db.Conn.Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", withdrawal.ID, models.WithdrawalPending).
		Updates(map[string]interface{}{
			"status":           withdrawal.Status,
			"tx_hash":          withdrawal.TxHash,
			"rejection_reason": withdrawal.RejectionReason,
			"processed_by":     withdrawal.ProcessedBy,
			"processed_at":     withdrawal.ProcessedAt,
		})
	if res.Error != nil {
		return false, transient("finish withdrawal", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ---------------------------------------------------------------------------
// Level requests

func (db *Database) CreateLevelRequest(request *models.LevelRequest) error {
	if err := db.Conn.Create(request).Error; err != nil {
		return transient("create level request", err)
	}
	return nil
}

func (db *Database) GetLevelRequest(id int64) (*models.LevelRequest, error) {
	var request models.LevelRequest
	if err := db.first(&request, models.ErrLevelRequestNotFound, "get level request", "id = ?", id); err != nil {
		return nil, err
	}
	return &request, nil
}

func (db *Database) HasPendingLevelRequest(userID int64) (bool, error) {
	var count int64
	err := db.Conn.Model(&models.LevelRequest{}).
		Where("user_id = ? AND status = ?", userID, models.RequestPending).
		Count(&count).Error
	if err != nil {
		return false, transient("check pending level request", err)
	}
	return count > 0, nil
}

func (db *Database) ListLevelRequests(status models.RequestStatus, limit int) ([]*models.LevelRequest, error) {
	var requests []*models.LevelRequest
	q := db.Conn.Order("id")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := withLimit(q, limit).Find(&requests).Error; err != nil {
		return nil, transient("list level requests", err)
	}
	return requests, nil
}

func (db *Database) FinishLevelRequest(request *models.LevelRequest) (bool, error) {
	res := db.Conn.Model(&models.LevelRequest{}).
		Where("id = ? AND status = ?", request.ID, models.RequestPending).
		Updates(map[string]interface{}{
			"status":           request.Status,
			"rejection_reason": request.RejectionReason,
			"processed_by":     request.ProcessedBy,
			"processed_at":     request.ProcessedAt,
		})
	if res.Error != nil {
		return false, transient("finish level request", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ---------------------------------------------------------------------------
// Tasks

func (db *Database) CreateTask(task *models.Task) error {
	if err := db.Conn.Create(task).Error; err != nil {
		return transient("create task", err)
	}
	return nil
}

func (db *Database) GetTask(id int64) (*models.Task, error) {
	var task models.Task
	if err := db.first(&task, models.ErrTaskNotFound, "get task", "id = ?", id); err != nil {
		return nil, err
	}
	return &task, nil
}

func (db *Database) ListTasks(activeOnly bool) ([]*models.Task, error) {
	var tasks []*models.Task
	q := db.Conn.Order("id")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, transient("list tasks", err)
	}
	return tasks, nil
}

func (db *Database) CreateSubmission(submission *models.TaskSubmission) error {
	if err := db.Conn.Create(submission).Error; err != nil {
		if isDuplicate(err) {
			return models.ErrAlreadySubmitted
		}
		return transient("create task submission", err)
	}
	return nil
}

func (db *Database) GetSubmission(id int64) (*models.TaskSubmission, error) {
	var submission models.TaskSubmission
	if err := db.first(&submission, models.ErrSubmissionNotFound, "get task submission", "id = ?", id); err != nil {
		return nil, err
	}
	return &submission, nil
}

func (db *Database) ListSubmissions(status models.RequestStatus, limit int) ([]*models.TaskSubmission, error) {
	var submissions []*models.TaskSubmission
	q := db.Conn.Order("id")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := withLimit(q, limit).Find(&submissions).Error; err != nil {
		return nil, transient("list task submissions", err)
	}
	return submissions, nil
}

func (db *Database) FinishSubmission(submission *models.TaskSubmission) (bool, error) {
	res := db.Conn.Model(&models.TaskSubmission{}).
		Where("id = ? AND status = ?", submission.ID, models.RequestPending).
		Updates(map[string]interface{}{
			"status":           submission.Status,
			"reward":           submission.Reward,
			"rejection_reason": submission.RejectionReason,
			"reviewed_by":      submission.ReviewedBy,
			"reviewed_at":      submission.ReviewedAt,
		})
	if res.Error != nil {
		return false, transient("finish task submission", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (db *Database) CreateOfferCompletion(completion *models.OfferCompletion) error {
	if err := db.Conn.Create(completion).Error; err != nil {
		if isDuplicate(err) {
			return models.ErrDuplicateOffer
		}
		return transient("create offer completion", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Settings

func (db *Database) GetSetting(key string) (string, bool, error) {
	var setting models.Setting
	if err := db.Conn.Where(&models.Setting{Key: key}).First(&setting).Error; err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, transient("get setting", err)
	}
	return setting.Value, true, nil
}

func (db *Database) SetSetting(key, value string) error {
	setting := models.Setting{Key: key, Value: value}
	err := db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return transient("set setting", err)
	}
	return nil
}

func (db *Database) EnsureSetting(key, value string) error {
	setting := models.Setting{Key: key, Value: value}
	if err := db.Conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&setting).Error; err != nil {
		return transient("ensure setting", err)
	}
	return nil
}

func (db *Database) ListSettings() ([]*models.Setting, error) {
	var settings []*models.Setting
	if err := db.Conn.Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&settings).Error; err != nil {
		return nil, transient("list settings", err)
	}
	return settings, nil
}

// ---------------------------------------------------------------------------
// Notifications

func (db *Database) CreateNotification(notification *models.Notification) error {
	if err := db.Conn.Create(notification).Error; err != nil {
		return transient("create notification", err)
	}
	return nil
}

func (db *Database) ListNotifications(userID int64, limit int) ([]*models.Notification, error) {
	var notifications []*models.Notification
	q := db.Conn.Where("user_id = ?", userID).Order("id DESC")
	if err := withLimit(q, limit).Find(&notifications).Error; err != nil {
		return nil, transient("list notifications", err)
	}
	return notifications, nil
}

func (db *Database) MarkNotificationRead(userID, id int64) error {
	if err := db.Conn.Model(&models.Notification{}).Where("id = ? AND user_id = ?", id, userID).Update("read", true).Error; err != nil {
		return transient("mark notification read", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// App locks

func (db *Database) AcquireLock(name, instanceID string, ttl time.Duration) (bool, error) {
	now := time.Now().Unix()
	lock := models.AppLock{
		LockName:   name,
		InstanceID: instanceID,
		AcquiredAt: now,
		ExpiresAt:  now + int64(ttl.Seconds()),
	}
	// Take over the row only when it has expired or is already ours.
	res := db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lock_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"instance_id", "acquired_at", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("app_locks.expires_at < ? OR app_locks.instance_id = ?", now, instanceID),
		}},
	}).Create(&lock)
	if res.Error != nil {
		return false, transient("acquire lock", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (db *Database) ReleaseLock(name, instanceID string) error {
	err := db.Conn.Where("lock_name = ? AND instance_id = ?", name, instanceID).Delete(&models.AppLock{}).Error
	if err != nil {
		return transient("release lock", err)
	}
	return nil
}

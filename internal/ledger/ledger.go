// Package ledger pairs every wallet mutation with an append-only ledger entry.
//
// All functions take a repository that callers obtain from
// models.Repository.Transaction, so the wallet update and the entry commit or
// roll back together.
package ledger

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/promohive/rewards/internal/metrics"
	"github.com/promohive/rewards/internal/models"
)

// Destination is where Release moves reserved funds.
type Destination int

const (
	// ToBalance refunds reserved funds to the spendable balance.
	ToBalance Destination = iota
	// ToWithdrawn settles reserved funds as withdrawn.
	ToWithdrawn
)

// Posting describes the ledger entry written alongside a wallet mutation.
type Posting struct {
	Type          models.EntryType
	Description   string
	ReferenceType string
	ReferenceID   int64
}

// Result is the entry written and the wallet after the mutation.
type Result struct {
	Entry  *models.LedgerEntry
	Wallet *models.Wallet
}

// Credit increases balance, and total earned when trackEarned is set.
func Credit(repo models.Repository, userID, amount int64, trackEarned bool, p Posting) (*Result, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	return apply(repo, userID, p, &models.LedgerEntry{Amount: amount, Earning: trackEarned})
}

// Debit decreases balance, failing with ErrInsufficientBalance if it would go negative.
func Debit(repo models.Repository, userID, amount int64, p Posting) (*Result, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	return apply(repo, userID, p, &models.LedgerEntry{Amount: -amount})
}

// Reserve moves amount from balance to pending balance.
func Reserve(repo models.Repository, userID, amount int64, p Posting) (*Result, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	return apply(repo, userID, p, &models.LedgerEntry{Amount: -amount, PendingAmount: amount})
}

// Release moves amount out of pending balance, back to balance or into total withdrawn.
func Release(repo models.Repository, userID, amount int64, dest Destination, p Posting) (*Result, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	entry := &models.LedgerEntry{PendingAmount: -amount}
	switch dest {
	case ToBalance:
		entry.Amount = amount
	case ToWithdrawn:
		entry.WithdrawnAmount = amount
	default:
		return nil, fmt.Errorf("unknown release destination %d", dest)
	}
	return apply(repo, userID, p, entry)
}

func apply(repo models.Repository, userID int64, p Posting, entry *models.LedgerEntry) (*Result, error) {
	wallet, err := repo.ApplyWalletDelta(userID, entry.Delta())
	if err != nil {
		return nil, err
	}

	entry.EntryID = NewEntryID()
	entry.UserID = userID
	entry.Type = p.Type
	entry.Description = p.Description
	entry.ReferenceType = p.ReferenceType
	entry.ReferenceID = p.ReferenceID
	if err := repo.AppendLedgerEntry(entry); err != nil {
		return nil, err
	}

	repo.AfterCommit(func() { recordEntry(entry) })
	return &Result{Entry: entry, Wallet: wallet}, nil
}

func recordEntry(entry *models.LedgerEntry) {
	metrics.LedgerEntriesTotal.WithLabelValues(string(entry.Type)).Inc()
	amount := entry.Amount + entry.WithdrawnAmount
	if amount < 0 {
		amount = -amount
	}
	metrics.LedgerAmountTotal.WithLabelValues(string(entry.Type)).Add(float64(amount))
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewEntryID returns a monotonic ULID for a ledger entry.
func NewEntryID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ListFor returns a user's entries newest-first.
func ListFor(repo models.Repository, userID int64, limit int) ([]*models.LedgerEntry, error) {
	return repo.ListLedgerEntries(userID, limit)
}

// Replay folds entries, in any order, into wallet totals.
func Replay(entries []*models.LedgerEntry) models.Totals {
	var t models.Totals
	for _, e := range entries {
		d := e.Delta()
		t.Balance += d.Balance
		t.PendingBalance += d.Pending
		t.TotalEarned += d.Earned
		t.TotalWithdrawn += d.Withdrawn
	}
	return t
}

// Reconcile replays a user's ledger and compares it with the stored wallet.
func Reconcile(repo models.Repository, userID int64) (models.Totals, error) {
	wallet, err := repo.GetWallet(userID)
	if err != nil {
		return models.Totals{}, err
	}
	entries, err := repo.ListAllLedgerEntries(userID)
	if err != nil {
		return models.Totals{}, err
	}
	replayed := Replay(entries)
	if stored := wallet.Totals(); replayed != stored {
		return replayed, fmt.Errorf("%w: user %d ledger %+v, wallet %+v", models.ErrLedgerMismatch, userID, replayed, stored)
	}
	return replayed, nil
}

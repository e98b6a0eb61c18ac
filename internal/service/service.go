package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/config"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/repository"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/redis"
)

// Service aggregate of every service
type Service struct {
	ReferralCode ReferralCodeService
	ReferralLead ReferralLeadService
	Ledger       LedgerService
	Crediting    CreditingService
	Order        OrderService
	Export       ExportService
}

// NewService wires the services. rdb and external may be nil.
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	rdb *redis.Client,
	external ExternalOrderSource,
	logger *zap.Logger,
) (*Service, error) {
	ledger, err := newLedgerService(cfg, repo, rdb, logger)
	if err != nil {
		return nil, err
	}
	leads := NewReferralLeadService(cfg, repo, logger)
	order := NewOrderService(cfg, repo, leads, external, logger)

	return &Service{
		ReferralCode: NewReferralCodeService(cfg, repo, logger),
		ReferralLead: leads,
		Ledger:       ledger,
		Crediting:    newCreditingService(repo, ledger, logger),
		Order:        order,
		Export:       NewExportService(order, ledger, logger),
	}, nil
}

// Actor the authenticated caller of an operation
type Actor struct {
	UserID string
	Role   string
}

// IsAdmin admin role
func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// SeesAll admins and sales leads see every rep's data
func (a Actor) SeesAll() bool { return a.Role == model.RoleAdmin || a.Role == model.RoleSalesLead }

// ── transactions ──

// runInTx runs fn on a transaction-bound repository and commits when fn
// returns nil. Without a database (unit tests) fn runs on repo directly.
func runInTx(ctx context.Context, repo *repository.Repository, logger *zap.Logger, fn func(txRepo *repository.Repository) error) (err error) {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		logger.Error("begin transaction failed", zap.Error(err))
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	if err := fn(repo.WithTx(tx)); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return err
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			logger.Error("commit transaction failed", zap.Error(err))
			return err
		}
	}
	return nil
}

// ── per-key in-process lock ──

// keyedMutex serialises work per key within this process. Cross-process
// ordering comes from the database (advisory and row locks).
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns its unlock func
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/config"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/repository"
	pkgerrors "github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/errors"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/redis"
)

// ── credit ledger module errors ──

var (
	ErrInvalidAmount       = pkgerrors.New(pkgerrors.ErrValidation, "amount must be greater than zero")
	ErrInvalidEntry        = pkgerrors.New(pkgerrors.ErrValidation, "invalid ledger entry direction or reason")
	ErrCurrencyMismatch    = pkgerrors.New(pkgerrors.ErrValidation, "currency differs from the doctor's ledger currency")
	ErrInsufficientCredits = pkgerrors.New(pkgerrors.ErrConflict, "debit exceeds available credits")
	ErrInvalidReversal     = pkgerrors.New(pkgerrors.ErrValidation, "a reversal must be a debit of at most the amount of a credit on the same ledger")
	ErrAlreadyReversed     = pkgerrors.New(pkgerrors.ErrConflict, "ledger entry was already reversed")
	ErrAlreadyCredited     = pkgerrors.New(pkgerrors.ErrConflict, "referral was already credited")
	ErrLedgerForbidden     = pkgerrors.New(pkgerrors.ErrForbidden, "not allowed to access this doctor's credits")
)

// LedgerService per-doctor append-only credit ledger
type LedgerService interface {
	// Append admin manual adjustment or reversal
	Append(ctx context.Context, doctorID string, req *dto.AppendLedgerEntryRequest, actor Actor) (*dto.LedgerEntryResponse, error)
	Summarize(ctx context.Context, doctorID string, actor Actor) (*dto.DoctorCreditSummaryResponse, error)
	ListEntries(ctx context.Context, doctorID string, actor Actor) ([]dto.LedgerEntryResponse, error)
}

type ledgerService struct {
	repo            *repository.Repository
	rdb             *redis.Client
	node            *snowflake.Node
	locks           *keyedMutex
	defaultCurrency string
	cacheTTL        time.Duration
	logger          *zap.Logger
}

// NewLedgerService creates a LedgerService. rdb may be nil.
func NewLedgerService(cfg *config.Config, repo *repository.Repository, rdb *redis.Client, logger *zap.Logger) (LedgerService, error) {
	return newLedgerService(cfg, repo, rdb, logger)
}

func newLedgerService(cfg *config.Config, repo *repository.Repository, rdb *redis.Client, logger *zap.Logger) (*ledgerService, error) {
	node, err := snowflake.NewNode(cfg.Ledger.SnowflakeNode)
	if err != nil {
		return nil, err
	}
	currency := strings.ToUpper(cfg.Ledger.DefaultCurrency)
	if currency == "" {
		currency = "USD"
	}
	return &ledgerService{
		repo:            repo,
		rdb:             rdb,
		node:            node,
		locks:           newKeyedMutex(),
		defaultCurrency: currency,
		cacheTTL:        cfg.Ledger.SummaryCacheTTL,
		logger:          logger,
	}, nil
}

// ────────────────────── Append ──────────────────────

func (s *ledgerService) Append(ctx context.Context, doctorID string, req *dto.AppendLedgerEntryRequest, actor Actor) (*dto.LedgerEntryResponse, error) {
	if !actor.IsAdmin() {
		return nil, ErrLedgerForbidden
	}
	if req.Reason != model.ReasonManualAdjustment && req.Reason != model.ReasonReversal {
		return nil, ErrInvalidEntry
	}

	entry := &model.CreditLedgerEntry{
		DoctorID:        doctorID,
		OrderID:         model.StrPtr(req.OrderID),
		ReversesEntryID: model.StrPtr(req.ReversesEntryID),
		Amount:          req.Amount,
		Currency:        req.Currency,
		Direction:       req.Direction,
		Reason:          req.Reason,
		Description:     strings.TrimSpace(req.Description),
		Metadata:        datatypes.JSONMap{"source": "admin"},
		CreatedBy:       &actor.UserID,
	}

	unlock := s.locks.Lock(doctorID)
	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		return s.appendLocked(ctx, txRepo, entry)
	})
	unlock()
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, doctorID)
	s.logger.Info("ledger entry appended",
		zap.String("entry_id", entry.EntryID),
		zap.String("doctor_id", doctorID),
		zap.String("direction", entry.Direction),
		zap.String("reason", entry.Reason),
		zap.String("amount", entry.Amount.String()),
		zap.String("actor_id", actor.UserID),
	)
	return toLedgerEntryResponse(entry), nil
}

// appendLocked validates and inserts entry on txRepo. The caller holds the
// in-process doctor lock and runs inside a transaction; the advisory lock
// taken here extends the serialisation across processes.
func (s *ledgerService) appendLocked(ctx context.Context, txRepo *repository.Repository, entry *model.CreditLedgerEntry) error {
	amount, err := centAmount(entry.Amount)
	if err != nil {
		return err
	}
	entry.Amount = amount
	if entry.Direction != model.DirectionCredit && entry.Direction != model.DirectionDebit {
		return ErrInvalidEntry
	}
	switch entry.Reason {
	case model.ReasonReferralBonus, model.ReasonManualAdjustment:
		if entry.ReversesEntryID != nil {
			return ErrInvalidReversal
		}
	case model.ReasonReversal:
		if entry.Direction != model.DirectionDebit || entry.ReversesEntryID == nil {
			return ErrInvalidReversal
		}
	default:
		return ErrInvalidEntry
	}

	if err := txRepo.Ledger.LockDoctor(ctx, entry.DoctorID); err != nil {
		s.logger.Error("lock doctor ledger failed", zap.String("doctor_id", entry.DoctorID), zap.Error(err))
		return err
	}

	existing, err := txRepo.Ledger.Currency(ctx, entry.DoctorID)
	if err != nil {
		return err
	}
	entry.Currency = strings.ToUpper(strings.TrimSpace(entry.Currency))
	switch {
	case entry.Currency == "" && existing != "":
		entry.Currency = existing
	case entry.Currency == "":
		entry.Currency = s.defaultCurrency
	case existing != "" && entry.Currency != existing:
		return ErrCurrencyMismatch
	}

	if entry.Direction == model.DirectionDebit {
		if entry.Reason == model.ReasonReversal {
			if err := s.checkReversal(ctx, txRepo, entry); err != nil {
				return err
			}
		} else {
			totals, err := txRepo.Ledger.Totals(ctx, entry.DoctorID)
			if err != nil {
				return err
			}
			if totals.Available().Sub(entry.Amount).IsNegative() {
				return ErrInsufficientCredits
			}
		}
	}

	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	entry.Seq = s.node.Generate().Int64()
	now := time.Now()
	if entry.IssuedAt.IsZero() {
		entry.IssuedAt = now
	}
	entry.CreatedAt = now
	if entry.Metadata == nil {
		entry.Metadata = datatypes.JSONMap{}
	}

	if err := txRepo.Ledger.Create(ctx, entry); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			switch {
			case entry.ReferralID != nil && entry.IsCredit():
				return ErrAlreadyCredited
			case entry.ReversesEntryID != nil:
				return ErrAlreadyReversed
			}
		}
		s.logger.Error("insert ledger entry failed", zap.String("doctor_id", entry.DoctorID), zap.Error(err))
		return err
	}
	return nil
}

// checkReversal a reversal targets one credit of the same doctor, for at
// most its amount, and only once
func (s *ledgerService) checkReversal(ctx context.Context, txRepo *repository.Repository, entry *model.CreditLedgerEntry) error {
	original, err := txRepo.Ledger.GetByID(ctx, *entry.ReversesEntryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidReversal
		}
		return err
	}
	if original.DoctorID != entry.DoctorID || !original.IsCredit() || entry.Amount.GreaterThan(original.Amount) {
		return ErrInvalidReversal
	}

	reversed, err := txRepo.Ledger.ExistsReversalOf(ctx, original.EntryID)
	if err != nil {
		return err
	}
	if reversed {
		return ErrAlreadyReversed
	}
	return nil
}

// ────────────────────── Summarize ──────────────────────

func (s *ledgerService) Summarize(ctx context.Context, doctorID string, actor Actor) (*dto.DoctorCreditSummaryResponse, error) {
	if err := s.authorize(ctx, doctorID, actor); err != nil {
		return nil, err
	}
	return s.summarize(ctx, doctorID)
}

// summarize reads through the redis cache. Cached summaries may lag a
// ledger append by at most the cache TTL when invalidation fails.
func (s *ledgerService) summarize(ctx context.Context, doctorID string) (*dto.DoctorCreditSummaryResponse, error) {
	if payload, ok, err := s.rdb.GetSummary(ctx, doctorID); err != nil {
		s.logger.Warn("read summary cache failed", zap.String("doctor_id", doctorID), zap.Error(err))
	} else if ok {
		var cached dto.DoctorCreditSummaryResponse
		if err := json.Unmarshal(payload, &cached); err == nil {
			return &cached, nil
		}
	}

	entries, err := s.repo.Ledger.ListByDoctor(ctx, doctorID)
	if err != nil {
		s.logger.Error("list ledger entries failed", zap.String("doctor_id", doctorID), zap.Error(err))
		return nil, err
	}
	summary := buildSummary(doctorID, s.defaultCurrency, entries, time.Now())

	if payload, err := json.Marshal(summary); err == nil {
		if err := s.rdb.SetSummary(ctx, doctorID, payload, s.cacheTTL); err != nil {
			s.logger.Warn("write summary cache failed", zap.String("doctor_id", doctorID), zap.Error(err))
		}
	}
	return summary, nil
}

// ────────────────────── ListEntries ──────────────────────

func (s *ledgerService) ListEntries(ctx context.Context, doctorID string, actor Actor) ([]dto.LedgerEntryResponse, error) {
	if err := s.authorize(ctx, doctorID, actor); err != nil {
		return nil, err
	}

	entries, err := s.repo.Ledger.ListByDoctor(ctx, doctorID)
	if err != nil {
		s.logger.Error("list ledger entries failed", zap.String("doctor_id", doctorID), zap.Error(err))
		return nil, err
	}
	sortEntries(entries)

	result := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		result = append(result, *toLedgerEntryResponse(&entries[i]))
	}
	return result, nil
}

// ── helpers ──

// centAmount rounds to cents; amounts that round to zero are rejected
func centAmount(d decimal.Decimal) (decimal.Decimal, error) {
	rounded := d.Round(2)
	if !rounded.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return rounded, nil
}

// authorize doctors read their own ledger, reps the ledgers of doctors
// attributed to them, admins and sales leads any ledger
func (s *ledgerService) authorize(ctx context.Context, doctorID string, actor Actor) error {
	switch {
	case actor.SeesAll():
		return nil
	case actor.Role == model.RoleDoctor:
		if actor.UserID == doctorID {
			return nil
		}
		return ErrLedgerForbidden
	case actor.Role == model.RoleSalesRep:
		doctor, err := s.repo.User.GetByID(ctx, doctorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLedgerForbidden
			}
			return err
		}
		if model.StrVal(doctor.SalesRepID) == actor.UserID {
			return nil
		}
	}
	return ErrLedgerForbidden
}

func (s *ledgerService) invalidate(ctx context.Context, doctorID string) {
	if err := s.rdb.InvalidateSummary(ctx, doctorID); err != nil {
		s.logger.Warn("invalidate summary cache failed", zap.String("doctor_id", doctorID), zap.Error(err))
	}
}

func toLedgerEntryResponse(e *model.CreditLedgerEntry) *dto.LedgerEntryResponse {
	return &dto.LedgerEntryResponse{
		ID:              e.EntryID,
		Seq:             e.Seq,
		DoctorID:        e.DoctorID,
		SalesRepID:      e.SalesRepID,
		ReferralID:      e.ReferralID,
		OrderID:         e.OrderID,
		ReversesEntryID: e.ReversesEntryID,
		Amount:          e.Amount,
		Currency:        e.Currency,
		Direction:       e.Direction,
		Reason:          e.Reason,
		Description:     e.Description,
		FirstOrderBonus: e.FirstOrderBonus,
		IssuedAt:        formatTime(e.IssuedAt),
		Metadata:        e.Metadata,
	}
}

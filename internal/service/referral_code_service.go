package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/config"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/repository"
	pkgerrors "github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/errors"
)

// ── referral code module errors ──

var (
	ErrInvalidCode             = pkgerrors.New(pkgerrors.ErrValidation, "referral code must be 2 letters followed by 3 letters or digits")
	ErrCodeNotFound            = pkgerrors.New(pkgerrors.ErrNotFound, "referral code not found")
	ErrCodeUnavailable         = pkgerrors.New(pkgerrors.ErrConflict, "referral code is no longer available")
	ErrDoctorAlreadyAttributed = pkgerrors.New(pkgerrors.ErrConflict, "doctor already redeemed a referral code")
	ErrCodeForbidden           = pkgerrors.New(pkgerrors.ErrForbidden, "not allowed to manage this referral code")
	ErrSalesRepRequired        = pkgerrors.New(pkgerrors.ErrValidation, "sales_rep_id is required")
	ErrDoctorNotFound          = pkgerrors.New(pkgerrors.ErrNotFound, "doctor account not found")
	// ErrCodeGenerationExhausted carries no kind: it is an internal failure
	ErrCodeGenerationExhausted = errors.New("could not generate a unique referral code")
)

// CodePattern accepted referral code shape after normalisation
var CodePattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}$`)

const (
	codeLetters  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeAlphanum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NormalizeCode trims and upper-cases a code as typed by a user
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ReferralCodeService referral code registry
type ReferralCodeService interface {
	Issue(ctx context.Context, req *dto.IssueReferralCodeRequest, actor Actor) (*dto.ReferralCodeResponse, error)
	// Redeem assigns an available code to doctorID exactly once and
	// attributes the doctor to the code's sales rep
	Redeem(ctx context.Context, code, doctorID string) (*dto.ReferralCodeResponse, error)
	Revoke(ctx context.Context, codeID string, actor Actor) (*dto.ReferralCodeResponse, error)
	Retire(ctx context.Context, codeID string, actor Actor) (*dto.ReferralCodeResponse, error)
	ListForSalesRep(ctx context.Context, salesRepID string, actor Actor) ([]dto.ReferralCodeResponse, error)
	Get(ctx context.Context, codeID string, actor Actor) (*dto.ReferralCodeResponse, error)
	// Lookup finds a code by its typed value, scoped like Get
	Lookup(ctx context.Context, code string, actor Actor) (*dto.ReferralCodeResponse, error)
}

type referralCodeService struct {
	repo        *repository.Repository
	maxAttempts int
	generate    func() (string, error)
	logger      *zap.Logger
}

// NewReferralCodeService creates a ReferralCodeService
func NewReferralCodeService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) ReferralCodeService {
	maxAttempts := cfg.Referral.CodeMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &referralCodeService{
		repo:        repo,
		maxAttempts: maxAttempts,
		generate:    generateCode,
		logger:      logger,
	}
}

// ────────────────────── Issue ──────────────────────

func (s *referralCodeService) Issue(ctx context.Context, req *dto.IssueReferralCodeRequest, actor Actor) (*dto.ReferralCodeResponse, error) {
	salesRepID := req.SalesRepID
	switch actor.Role {
	case model.RoleSalesRep:
		if salesRepID == "" {
			salesRepID = actor.UserID
		}
		if salesRepID != actor.UserID {
			return nil, ErrCodeForbidden
		}
	case model.RoleAdmin:
		if salesRepID == "" {
			return nil, ErrSalesRepRequired
		}
	default:
		return nil, ErrCodeForbidden
	}

	now := time.Now()
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			s.logger.Error("generate referral code failed", zap.Error(err))
			return nil, err
		}

		rc := &model.ReferralCode{
			ReferralCodeID:   uuid.NewString(),
			SalesRepID:       salesRepID,
			Code:             code,
			Status:           model.CodeStatusAvailable,
			ReferrerDoctorID: model.StrPtr(req.ReferrerDoctorID),
			IssuedAt:         now,
			History: []model.CodeHistoryEvent{{
				Action:  model.CodeActionIssued,
				ActorID: actor.UserID,
				At:      now,
			}},
		}
		rc.CreatedBy = &actor.UserID
		rc.UpdatedBy = &actor.UserID

		err = s.repo.ReferralCode.Create(ctx, rc)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Debug("referral code collision, retrying", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			s.logger.Error("create referral code failed", zap.String("sales_rep_id", salesRepID), zap.Error(err))
			return nil, err
		}

		s.logger.Info("referral code issued",
			zap.String("code_id", rc.ReferralCodeID),
			zap.String("sales_rep_id", salesRepID),
			zap.String("actor_id", actor.UserID),
		)
		return toReferralCodeResponse(rc), nil
	}

	s.logger.Error("referral code generation exhausted", zap.Int("attempts", s.maxAttempts))
	return nil, ErrCodeGenerationExhausted
}

// ────────────────────── Redeem ──────────────────────

func (s *referralCodeService) Redeem(ctx context.Context, code, doctorID string) (*dto.ReferralCodeResponse, error) {
	normalized := NormalizeCode(code)
	if !CodePattern.MatchString(normalized) {
		return nil, ErrInvalidCode
	}

	var redeemed *model.ReferralCode
	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		event := model.CodeHistoryEvent{
			Action:  model.CodeActionRedeemed,
			ActorID: doctorID,
			At:      time.Now(),
		}

		n, err := txRepo.ReferralCode.Assign(ctx, normalized, doctorID, event)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDoctorAlreadyAttributed
		}
		if err != nil {
			s.logger.Error("assign referral code failed", zap.String("code", normalized), zap.Error(err))
			return err
		}

		rc, err := txRepo.ReferralCode.GetByCode(ctx, normalized)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCodeNotFound
			}
			return err
		}
		if n == 0 {
			return ErrCodeUnavailable
		}

		salesRepID := rc.SalesRepID
		if err := txRepo.User.SetAttribution(ctx, doctorID, &salesRepID, rc.ReferrerDoctorID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDoctorNotFound
			}
			s.logger.Error("stamp doctor attribution failed", zap.String("doctor_id", doctorID), zap.Error(err))
			return err
		}

		redeemed = rc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("referral code redeemed",
		zap.String("code_id", redeemed.ReferralCodeID),
		zap.String("doctor_id", doctorID),
		zap.String("sales_rep_id", redeemed.SalesRepID),
	)
	return toReferralCodeResponse(redeemed), nil
}

// ────────────────────── Revoke / Retire ──────────────────────

func (s *referralCodeService) Revoke(ctx context.Context, codeID string, actor Actor) (*dto.ReferralCodeResponse, error) {
	return s.terminate(ctx, codeID, model.CodeStatusRevoked, model.CodeActionRevoked, actor)
}

func (s *referralCodeService) Retire(ctx context.Context, codeID string, actor Actor) (*dto.ReferralCodeResponse, error) {
	return s.terminate(ctx, codeID, model.CodeStatusRetired, model.CodeActionRetired, actor)
}

// terminate moves a live code to a terminal status. A code that is already
// terminal is returned unchanged.
func (s *referralCodeService) terminate(ctx context.Context, codeID, status, action string, actor Actor) (*dto.ReferralCodeResponse, error) {
	rc, err := s.getScoped(ctx, codeID, actor)
	if err != nil {
		return nil, err
	}
	if rc.IsTerminal() {
		return toReferralCodeResponse(rc), nil
	}

	_, err = s.repo.ReferralCode.Transition(ctx, codeID,
		[]string{model.CodeStatusAvailable, model.CodeStatusAssigned}, status,
		model.CodeHistoryEvent{Action: action, ActorID: actor.UserID, At: time.Now()},
	)
	if err != nil {
		s.logger.Error("referral code transition failed", zap.String("code_id", codeID), zap.String("to", status), zap.Error(err))
		return nil, err
	}

	// zero rows means a concurrent caller terminated it first; report what is stored
	rc, err = s.repo.ReferralCode.GetByID(ctx, codeID)
	if err != nil {
		return nil, err
	}
	return toReferralCodeResponse(rc), nil
}

// ────────────────────── queries ──────────────────────

func (s *referralCodeService) ListForSalesRep(ctx context.Context, salesRepID string, actor Actor) ([]dto.ReferralCodeResponse, error) {
	switch actor.Role {
	case model.RoleSalesRep:
		if salesRepID == "" {
			salesRepID = actor.UserID
		}
		if salesRepID != actor.UserID {
			return nil, ErrCodeForbidden
		}
	case model.RoleAdmin:
		if salesRepID == "" {
			return nil, ErrSalesRepRequired
		}
	default:
		return nil, ErrCodeForbidden
	}

	codes, err := s.repo.ReferralCode.ListBySalesRep(ctx, salesRepID)
	if err != nil {
		s.logger.Error("list referral codes failed", zap.String("sales_rep_id", salesRepID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ReferralCodeResponse, 0, len(codes))
	for i := range codes {
		result = append(result, *toReferralCodeResponse(&codes[i]))
	}
	return result, nil
}

func (s *referralCodeService) Get(ctx context.Context, codeID string, actor Actor) (*dto.ReferralCodeResponse, error) {
	rc, err := s.getScoped(ctx, codeID, actor)
	if err != nil {
		return nil, err
	}
	return toReferralCodeResponse(rc), nil
}

func (s *referralCodeService) Lookup(ctx context.Context, code string, actor Actor) (*dto.ReferralCodeResponse, error) {
	normalized := NormalizeCode(code)
	if !CodePattern.MatchString(normalized) {
		return nil, ErrInvalidCode
	}
	rc, err := s.repo.ReferralCode.GetByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		s.logger.Error("lookup referral code failed", zap.String("code", normalized), zap.Error(err))
		return nil, err
	}
	if !canManageCode(rc, actor) {
		return nil, ErrCodeForbidden
	}
	return toReferralCodeResponse(rc), nil
}

// ── helpers ──

func (s *referralCodeService) getScoped(ctx context.Context, codeID string, actor Actor) (*model.ReferralCode, error) {
	rc, err := s.repo.ReferralCode.GetByID(ctx, codeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		s.logger.Error("get referral code failed", zap.String("code_id", codeID), zap.Error(err))
		return nil, err
	}
	if !canManageCode(rc, actor) {
		return nil, ErrCodeForbidden
	}
	return rc, nil
}

// canManageCode admins manage every code, reps their own
func canManageCode(rc *model.ReferralCode, actor Actor) bool {
	return actor.IsAdmin() || rc.SalesRepID == actor.UserID
}

// generateCode draws two letters and three alphanumerics from crypto/rand
func generateCode() (string, error) {
	b := make([]byte, 5)
	for i := range b {
		alphabet := codeAlphanum
		if i < 2 {
			alphabet = codeLetters
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}

func toReferralCodeResponse(rc *model.ReferralCode) *dto.ReferralCodeResponse {
	history := make([]dto.CodeHistoryResponse, 0, len(rc.History))
	for _, h := range rc.History {
		history = append(history, dto.CodeHistoryResponse{
			Action:  h.Action,
			ActorID: h.ActorID,
			At:      formatTime(h.At),
			Note:    h.Note,
		})
	}
	return &dto.ReferralCodeResponse{
		ID:               rc.ReferralCodeID,
		SalesRepID:       rc.SalesRepID,
		Code:             rc.Code,
		Status:           rc.Status,
		ReferrerDoctorID: rc.ReferrerDoctorID,
		DoctorID:         rc.DoctorID,
		IssuedAt:         formatTime(rc.IssuedAt),
		RedeemedAt:       formatTimePtr(rc.RedeemedAt),
		History:          history,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/config"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/repository"
	pkgerrors "github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/errors"
)

// ── order module errors ──

var (
	ErrInvalidOrderItems     = pkgerrors.New(pkgerrors.ErrValidation, "order needs at least one item with quantity >= 1 and a non-negative price")
	ErrInvalidOrderAmounts   = pkgerrors.New(pkgerrors.ErrValidation, "shipping and tax must not be negative")
	ErrCertificationRequired = pkgerrors.New(pkgerrors.ErrValidation, "physician certification is required")
	ErrTotalMismatch         = pkgerrors.New(pkgerrors.ErrValidation, "order total does not match the computed total")
	ErrInvalidIdempotencyKey = pkgerrors.New(pkgerrors.ErrValidation, "Idempotency-Key must be at most 255 characters")
	ErrOrderNotFound         = pkgerrors.New(pkgerrors.ErrNotFound, "order not found")
	ErrOrderForbidden        = pkgerrors.New(pkgerrors.ErrForbidden, "not allowed to access this order")
	ErrOrderAlreadyCanceled  = pkgerrors.New(pkgerrors.ErrConflict, "order is already canceled")
	ErrInvalidTimeZone       = pkgerrors.New(pkgerrors.ErrValidation, "unknown time zone")
	ErrInvalidPeriod         = pkgerrors.New(pkgerrors.ErrValidation, "period must be YYYY-MM-DD dates with start on or before end")
	ErrOrdersUpstream        = pkgerrors.New(pkgerrors.ErrUpstream, "storefront order service unavailable")
)

const (
	maxIdempotencyKeyLen = 255
	maxScopedOrders      = 500 // cap for the scope=all projection
	dateLayout           = "2006-01-02"
)

// ExternalOrderSource storefront collaborator holding orders placed outside
// this service. Payloads are raw and validated before use.
type ExternalOrderSource interface {
	FetchOrders(ctx context.Context, userID string) ([]json.RawMessage, error)
}

// OrderService order intake gateway
type OrderService interface {
	// CreateOrder creates at most one order per (user, idempotency key).
	// replayed is true when an earlier order with the same key is returned.
	CreateOrder(ctx context.Context, userID, idempotencyKey string, req *dto.CreateOrderRequest) (order *dto.OrderResponse, replayed bool, err error)
	GetOrdersForUser(ctx context.Context, userID string) ([]dto.OrderResponse, error)
	GetOrdersForSalesRep(ctx context.Context, actor Actor, q *dto.SalesRepOrdersQuery) ([]dto.OrderResponse, error)
	GetOrderForSalesRep(ctx context.Context, actor Actor, orderID, doctorEmail string) (*dto.OrderResponse, error)
	CancelOrder(ctx context.Context, userID, orderID string, req *dto.CancelOrderRequest) (*dto.OrderResponse, error)
	EstimateOrderTotals(req *dto.EstimateOrderRequest) (*dto.OrderEstimateResponse, error)
	GetSalesByRep(ctx context.Context, q *dto.SalesByRepQuery) (*dto.SalesByRepResponse, error)
}

type orderService struct {
	repo      *repository.Repository
	leads     ReferralLeadService
	external  ExternalOrderSource
	locks     *keyedMutex
	validate  *validator.Validate
	taxRate   decimal.Decimal
	tolerance decimal.Decimal
	currency  string
	defaultTZ string
	logger    *zap.Logger
}

// NewOrderService creates an OrderService. external may be nil; leads
// records eligibility for the ordering contact.
func NewOrderService(cfg *config.Config, repo *repository.Repository, leads ReferralLeadService, external ExternalOrderSource, logger *zap.Logger) OrderService {
	currency := strings.ToUpper(cfg.Ledger.DefaultCurrency)
	if currency == "" {
		currency = "USD"
	}
	tz := cfg.Orders.DefaultTimeZone
	if tz == "" {
		tz = "UTC"
	}
	return &orderService{
		repo:      repo,
		leads:     leads,
		external:  external,
		locks:     newKeyedMutex(),
		validate:  validator.New(),
		taxRate:   decimal.NewFromFloat(cfg.Orders.TaxRate),
		tolerance: decimal.NewFromFloat(cfg.Orders.TotalTolerance),
		currency:  currency,
		defaultTZ: tz,
		logger:    logger,
	}
}

// ────────────────────── CreateOrder ──────────────────────

func (s *orderService) CreateOrder(ctx context.Context, userID, idempotencyKey string, req *dto.CreateOrderRequest) (*dto.OrderResponse, bool, error) {
	key := strings.TrimSpace(idempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return nil, false, ErrInvalidIdempotencyKey
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	// a retry returns the stored order even if its body would no longer validate
	if key != "" {
		stored, err := s.repo.Order.GetByUserAndKey(ctx, userID, key)
		if err == nil {
			s.logger.Info("order replayed", zap.String("order_id", stored.OrderID), zap.String("user_id", userID))
			return toOrderResponse(stored), true, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("lookup idempotent order failed", zap.String("user_id", userID), zap.Error(err))
			return nil, false, err
		}
	}

	if !req.PhysicianCertification {
		return nil, false, ErrCertificationRequired
	}

	totals, items, err := s.price(req.Items, req.ShippingTotal, req.TaxTotal)
	if err != nil {
		return nil, false, err
	}
	if req.Total != nil && req.Total.Sub(totals.Total).Abs().GreaterThan(s.tolerance) {
		return nil, false, ErrTotalMismatch
	}

	order := &model.Order{
		OrderID:                uuid.NewString(),
		UserID:                 userID,
		IdempotencyKey:         model.StrPtr(key),
		Status:                 model.OrderStatusPaid,
		Currency:               s.currency,
		Subtotal:               totals.Subtotal,
		ShippingTotal:          totals.ShippingTotal,
		TaxTotal:               totals.TaxTotal,
		Total:                  totals.Total,
		PhysicianCertification: true,
		Items:                  items,
	}
	if code := NormalizeCode(req.ReferralCode); code != "" {
		order.ReferralCode = &code
	}
	if req.ShippingAddress != nil {
		b, err := json.Marshal(req.ShippingAddress)
		if err != nil {
			return nil, false, err
		}
		order.ShippingAddress = b
	}
	for i := range order.Items {
		order.Items[i].OrderItemID = uuid.NewString()
		order.Items[i].OrderID = order.OrderID
	}

	var (
		result   *model.Order
		replayed bool
	)
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.Order.LockUser(ctx, userID); err != nil {
			return err
		}

		user, err := txRepo.User.GetByID(ctx, userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		order.SalesRepID = s.resolveAttribution(ctx, txRepo, user, order.ReferralCode)

		prior, err := txRepo.Order.CountQualifyingByUser(ctx, userID)
		if err != nil {
			return err
		}
		order.IsFirstOrder = prior == 0
		now := time.Now()
		order.CreatedAt = now
		order.UpdatedAt = now

		created, err := txRepo.Order.CreateIdempotent(ctx, order)
		if err != nil {
			s.logger.Error("insert order failed", zap.String("user_id", userID), zap.Error(err))
			return err
		}
		if !created {
			stored, err := txRepo.Order.GetByUserAndKey(ctx, userID, key)
			if err != nil {
				return err
			}
			result, replayed = stored, true
			return nil
		}

		if user != nil {
			if err := s.leads.RecordOrderEligibility(ctx, txRepo, user, int(prior)+1); err != nil {
				return err
			}
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if replayed {
		s.logger.Info("order replayed", zap.String("order_id", result.OrderID), zap.String("user_id", userID))
	} else {
		s.logger.Info("order created",
			zap.String("order_id", result.OrderID),
			zap.String("user_id", userID),
			zap.String("total", result.Total.String()),
			zap.Bool("first_order", result.IsFirstOrder),
		)
	}
	return toOrderResponse(result), replayed, nil
}

// resolveAttribution the user's rep wins; otherwise a live referral code
// names the rep
func (s *orderService) resolveAttribution(ctx context.Context, txRepo *repository.Repository, user *model.User, code *string) *string {
	if user != nil && user.SalesRepID != nil {
		return user.SalesRepID
	}
	if code == nil || !CodePattern.MatchString(*code) {
		return nil
	}
	rc, err := txRepo.ReferralCode.GetByCode(ctx, *code)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("resolve referral code attribution failed", zap.String("code", *code), zap.Error(err))
		}
		return nil
	}
	if rc.IsTerminal() {
		return nil
	}
	salesRepID := rc.SalesRepID
	return &salesRepID
}

// ────────────────────── GetOrdersForUser ──────────────────────

func (s *orderService) GetOrdersForUser(ctx context.Context, userID string) ([]dto.OrderResponse, error) {
	local, err := s.repo.Order.ListByUsers(ctx, []string{userID})
	if err != nil {
		s.logger.Error("list user orders failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.OrderResponse, 0, len(local))
	seen := make(map[string]bool, len(local))
	for i := range local {
		result = append(result, *toOrderResponse(&local[i]))
		seen[local[i].OrderID] = true
	}

	if s.external != nil {
		payloads, err := s.external.FetchOrders(ctx, userID)
		if err != nil {
			s.logger.Warn("fetch external orders failed", zap.String("user_id", userID), zap.Error(err))
			return nil, ErrOrdersUpstream
		}
		for _, raw := range payloads {
			ext, ok := s.parseExternalOrder(raw, userID)
			if !ok || seen[ext.ID] {
				continue
			}
			seen[ext.ID] = true
			result = append(result, *ext)
		}
	}

	sortOrdersNewestFirst(result)
	return result, nil
}

// parseExternalOrder decodes and validates one collaborator payload.
// Payloads that fail are dropped and logged.
func (s *orderService) parseExternalOrder(raw json.RawMessage, userID string) (*dto.OrderResponse, bool) {
	var ext dto.ExternalOrder
	if err := json.Unmarshal(raw, &ext); err != nil {
		s.logger.Warn("drop malformed external order", zap.String("user_id", userID), zap.Error(err))
		return nil, false
	}
	if err := s.validate.Struct(&ext); err != nil {
		s.logger.Warn("drop invalid external order", zap.String("order_id", ext.ID), zap.Error(err))
		return nil, false
	}
	if ext.UserID != userID {
		s.logger.Warn("drop external order of another user", zap.String("order_id", ext.ID))
		return nil, false
	}

	currency := strings.ToUpper(ext.Currency)
	if currency == "" {
		currency = s.currency
	}
	resp := &dto.OrderResponse{
		ID:        ext.ID,
		UserID:    ext.UserID,
		Status:    ext.Status,
		Currency:  currency,
		Items:     make([]dto.OrderItemResponse, 0, len(ext.Items)),
		Subtotal:  decimal.Zero,
		Total:     ext.Total,
		CreatedAt: formatTime(ext.CreatedAt),
		Source:    "external",
	}
	for _, it := range ext.Items {
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		resp.Subtotal = resp.Subtotal.Add(line)
		resp.Items = append(resp.Items, dto.OrderItemResponse{
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: line,
		})
	}
	return resp, true
}

// ────────────────────── sales rep projections ──────────────────────

func (s *orderService) GetOrdersForSalesRep(ctx context.Context, actor Actor, q *dto.SalesRepOrdersQuery) ([]dto.OrderResponse, error) {
	if actor.Role != model.RoleSalesRep && !actor.SeesAll() {
		return nil, ErrOrderForbidden
	}

	if q.Scope == "all" {
		if !actor.SeesAll() {
			return nil, ErrOrderForbidden
		}
		offset, limit := 0, maxScopedOrders
		if q.Page > 0 || q.PageSize > 0 {
			offset, limit = q.GetOffset(), q.GetPageSize()
		}
		orders, err := s.repo.Order.ListAll(ctx, offset, limit)
		if err != nil {
			s.logger.Error("list all orders failed", zap.Error(err))
			return nil, err
		}
		return toOrderResponses(orders), nil
	}

	repID := actor.UserID
	if q.SalesRepID != "" && q.SalesRepID != actor.UserID {
		if !actor.SeesAll() {
			return nil, ErrOrderForbidden
		}
		repID = q.SalesRepID
	}
	repIDs := []string{repID}
	if len(q.AlternateSalesRepIDs) > 0 {
		if !actor.SeesAll() {
			return nil, ErrOrderForbidden
		}
		repIDs = append(repIDs, q.AlternateSalesRepIDs...)
	}

	var userIDs []string
	if q.IncludeDoctors == nil || *q.IncludeDoctors {
		ids, err := s.repo.User.ListIDsBySalesReps(ctx, repIDs)
		if err != nil {
			s.logger.Error("list attributed doctors failed", zap.Strings("sales_rep_ids", repIDs), zap.Error(err))
			return nil, err
		}
		userIDs = append(userIDs, ids...)
	}
	if q.IncludeSelfOrders {
		userIDs = append(userIDs, repIDs...)
	}

	orders, err := s.repo.Order.ListByUsers(ctx, dedupe(userIDs))
	if err != nil {
		s.logger.Error("list sales rep orders failed", zap.String("sales_rep_id", repID), zap.Error(err))
		return nil, err
	}
	return toOrderResponses(orders), nil
}

func (s *orderService) GetOrderForSalesRep(ctx context.Context, actor Actor, orderID, doctorEmail string) (*dto.OrderResponse, error) {
	if actor.Role != model.RoleSalesRep && !actor.SeesAll() {
		return nil, ErrOrderForbidden
	}

	order, err := s.repo.Order.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		s.logger.Error("get order failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}

	var owner *model.User
	if !actor.SeesAll() || doctorEmail != "" {
		owner, err = s.repo.User.GetByID(ctx, order.UserID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if !actor.SeesAll() {
		visible := order.UserID == actor.UserID ||
			model.StrVal(order.SalesRepID) == actor.UserID ||
			(owner != nil && model.StrVal(owner.SalesRepID) == actor.UserID)
		if !visible {
			return nil, ErrOrderForbidden
		}
	}

	if doctorEmail != "" && (owner == nil || !strings.EqualFold(strings.TrimSpace(doctorEmail), owner.Email)) {
		return nil, ErrOrderNotFound
	}
	return toOrderResponse(order), nil
}

// ────────────────────── CancelOrder ──────────────────────

// CancelOrder leaves lead eligibility and the ledger untouched; credit is
// a human decision and a cancellation is visible to whoever makes it
func (s *orderService) CancelOrder(ctx context.Context, userID, orderID string, req *dto.CancelOrderRequest) (*dto.OrderResponse, error) {
	order, err := s.repo.Order.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		s.logger.Error("get order failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderForbidden
	}
	if order.Status == model.OrderStatusCanceled {
		return nil, ErrOrderAlreadyCanceled
	}

	n, err := s.repo.Order.Cancel(ctx, orderID, strings.TrimSpace(req.Reason), time.Now())
	if err != nil {
		s.logger.Error("cancel order failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}
	if n == 0 {
		return nil, ErrOrderAlreadyCanceled
	}

	order, err = s.repo.Order.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("order canceled", zap.String("order_id", orderID), zap.String("user_id", userID))
	return toOrderResponse(order), nil
}

// ────────────────────── EstimateOrderTotals ──────────────────────

func (s *orderService) EstimateOrderTotals(req *dto.EstimateOrderRequest) (*dto.OrderEstimateResponse, error) {
	totals, _, err := s.price(req.Items, req.ShippingTotal, req.TaxTotal)
	if err != nil {
		return nil, err
	}
	return totals, nil
}

// price computes line totals, subtotal, tax and total in cents. Tax
// defaults to subtotal x the configured rate.
func (s *orderService) price(reqItems []dto.OrderItemRequest, shipping decimal.Decimal, tax *decimal.Decimal) (*dto.OrderEstimateResponse, []model.OrderItem, error) {
	if len(reqItems) == 0 {
		return nil, nil, ErrInvalidOrderItems
	}
	if shipping.IsNegative() || (tax != nil && tax.IsNegative()) {
		return nil, nil, ErrInvalidOrderAmounts
	}

	subtotal := decimal.Zero
	items := make([]model.OrderItem, 0, len(reqItems))
	for _, it := range reqItems {
		if strings.TrimSpace(it.SKU) == "" || it.Quantity < 1 || it.UnitPrice.IsNegative() {
			return nil, nil, ErrInvalidOrderItems
		}
		unit := it.UnitPrice.Round(2)
		line := unit.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		subtotal = subtotal.Add(line)
		items = append(items, model.OrderItem{
			SKU:       strings.TrimSpace(it.SKU),
			Name:      strings.TrimSpace(it.Name),
			Quantity:  it.Quantity,
			UnitPrice: unit,
			LineTotal: line,
		})
	}

	shipping = shipping.Round(2)
	taxTotal := subtotal.Mul(s.taxRate).Round(2)
	if tax != nil {
		taxTotal = tax.Round(2)
	}

	return &dto.OrderEstimateResponse{
		Subtotal:      subtotal,
		ShippingTotal: shipping,
		TaxTotal:      taxTotal,
		Total:         subtotal.Add(shipping).Add(taxTotal),
	}, items, nil
}

// ────────────────────── GetSalesByRep ──────────────────────

func (s *orderService) GetSalesByRep(ctx context.Context, q *dto.SalesByRepQuery) (*dto.SalesByRepResponse, error) {
	tz := q.TimeZone
	if tz == "" {
		tz = s.defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, ErrInvalidTimeZone
	}

	from, to, err := localDayWindow(q.PeriodStart, q.PeriodEnd, loc)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.Order.SalesByRep(ctx, repository.SalesByRepFilter{
		From:              from,
		To:                to,
		ExcludeSalesRepID: q.ExcludeSalesRepID,
		ExcludeDoctorIDs:  splitIDs(q.ExcludeDoctorIDs),
	})
	if err != nil {
		s.logger.Error("aggregate sales by rep failed", zap.Error(err))
		return nil, err
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Revenue.Equal(rows[j].Revenue) {
			return rows[i].Revenue.GreaterThan(rows[j].Revenue)
		}
		return rows[i].SalesRepID < rows[j].SalesRepID
	})

	resp := &dto.SalesByRepResponse{
		Rows:         make([]dto.SalesByRepRow, 0, len(rows)),
		TotalRevenue: decimal.Zero,
		PeriodStart:  q.PeriodStart,
		PeriodEnd:    q.PeriodEnd,
		TimeZone:     tz,
	}
	for _, r := range rows {
		resp.Rows = append(resp.Rows, dto.SalesByRepRow{
			SalesRepID:   r.SalesRepID,
			SalesRepName: r.SalesRepName,
			OrderCount:   r.OrderCount,
			Revenue:      r.Revenue,
		})
		resp.TotalOrders += r.OrderCount
		resp.TotalRevenue = resp.TotalRevenue.Add(r.Revenue)
	}
	return resp, nil
}

// localDayWindow turns inclusive calendar dates into [start 00:00, end+1 00:00)
// in loc. Either bound may be empty.
func localDayWindow(start, end string, loc *time.Location) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if start != "" {
		t, err := time.ParseInLocation(dateLayout, start, loc)
		if err != nil {
			return nil, nil, ErrInvalidPeriod
		}
		from = &t
	}
	if end != "" {
		t, err := time.ParseInLocation(dateLayout, end, loc)
		if err != nil {
			return nil, nil, ErrInvalidPeriod
		}
		next := time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
		to = &next
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, ErrInvalidPeriod
	}
	return from, to, nil
}

// ── helpers ──

// splitIDs accepts repeated and comma-separated query values
func splitIDs(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return dedupe(ids)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func sortOrdersNewestFirst(orders []dto.OrderResponse) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt != orders[j].CreatedAt {
			return orders[i].CreatedAt > orders[j].CreatedAt
		}
		return orders[i].ID > orders[j].ID
	})
}

func toOrderResponses(orders []model.Order) []dto.OrderResponse {
	result := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		result = append(result, *toOrderResponse(&orders[i]))
	}
	sortOrdersNewestFirst(result)
	return result
}

func toOrderResponse(o *model.Order) *dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, dto.OrderItemResponse{
			ID:        it.OrderItemID,
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		})
	}

	var address *dto.ShippingAddress
	if len(o.ShippingAddress) > 0 {
		var a dto.ShippingAddress
		if err := json.Unmarshal(o.ShippingAddress, &a); err == nil {
			address = &a
		}
	}

	return &dto.OrderResponse{
		ID:                     o.OrderID,
		UserID:                 o.UserID,
		Status:                 o.Status,
		Currency:               o.Currency,
		Items:                  items,
		Subtotal:               o.Subtotal,
		ShippingTotal:          o.ShippingTotal,
		TaxTotal:               o.TaxTotal,
		Total:                  o.Total,
		ReferralCode:           o.ReferralCode,
		SalesRepID:             o.SalesRepID,
		ShippingAddress:        address,
		PhysicianCertification: o.PhysicianCertification,
		IsFirstOrder:           o.IsFirstOrder,
		CancelReason:           o.CancelReason,
		CanceledAt:             formatTimePtr(o.CanceledAt),
		CreatedAt:              formatTime(o.CreatedAt),
		Source:                 "local",
	}
}

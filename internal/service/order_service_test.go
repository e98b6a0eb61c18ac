package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
)

type fakeExternalOrders struct {
	payloads []json.RawMessage
	err      error
}

func (f *fakeExternalOrders) FetchOrders(_ context.Context, _ string) ([]json.RawMessage, error) {
	return f.payloads, f.err
}

func setupTestOrderService(t *testing.T, external ExternalOrderSource) (OrderService, ReferralLeadService, *mockRepos) {
	t.Helper()
	repo, m := newMockRepository()
	seedUsers(m)
	cfg := newTestConfig()
	leads := NewReferralLeadService(cfg, repo, zap.NewNop())
	return NewOrderService(cfg, repo, leads, external, zap.NewNop()), leads, m
}

func orderRequest(total string) *dto.CreateOrderRequest {
	req := &dto.CreateOrderRequest{
		Items: []dto.OrderItemRequest{
			{SKU: "BPC-157", Name: "BPC-157 5mg", Quantity: 2, UnitPrice: decimal.RequireFromString("45.50")},
			{SKU: "TB-500", Name: "TB-500 2mg", Quantity: 1, UnitPrice: decimal.RequireFromString("60")},
		},
		ShippingTotal:          decimal.RequireFromString("9.99"),
		PhysicianCertification: true,
	}
	if total != "" {
		d := decimal.RequireFromString(total)
		req.Total = &d
	}
	return req
}

// ── CreateOrder ──

func TestOrderService_CreateOrder_ComputesTotalsAndAttribution(t *testing.T) {
	svc, _, _ := setupTestOrderService(t, nil)
	ctx := context.Background()

	order, replayed, err := svc.CreateOrder(ctx, testDoctorID, "key-1", orderRequest("160.99"))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if replayed {
		t.Error("first call must not be a replay")
	}
	if !order.Subtotal.Equal(decimal.RequireFromString("151")) || !order.Total.Equal(decimal.RequireFromString("160.99")) {
		t.Errorf("unexpected totals: subtotal %s total %s", order.Subtotal, order.Total)
	}
	if model.StrVal(order.SalesRepID) != testRepID {
		t.Errorf("expected order attributed to %s, got %q", testRepID, model.StrVal(order.SalesRepID))
	}
	if !order.IsFirstOrder || order.Source != "local" || order.Status != model.OrderStatusPaid {
		t.Errorf("unexpected order %+v", order)
	}

	second, _, err := svc.CreateOrder(ctx, testDoctorID, "key-2", orderRequest(""))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if second.IsFirstOrder {
		t.Error("second order must not be a first order")
	}
}

func TestOrderService_CreateOrder_Validation(t *testing.T) {
	svc, _, _ := setupTestOrderService(t, nil)
	ctx := context.Background()

	noCert := orderRequest("")
	noCert.PhysicianCertification = false
	if _, _, err := svc.CreateOrder(ctx, testDoctorID, "", noCert); !errors.Is(err, ErrCertificationRequired) {
		t.Errorf("expected ErrCertificationRequired, got %v", err)
	}

	if _, _, err := svc.CreateOrder(ctx, testDoctorID, "", orderRequest("150.00")); !errors.Is(err, ErrTotalMismatch) {
		t.Errorf("expected ErrTotalMismatch, got %v", err)
	}
	if _, _, err := svc.CreateOrder(ctx, testDoctorID, "", orderRequest("161.00")); err != nil {
		t.Errorf("total within tolerance should pass, got %v", err)
	}

	empty := orderRequest("")
	empty.Items = nil
	if _, _, err := svc.CreateOrder(ctx, testDoctorID, "", empty); !errors.Is(err, ErrInvalidOrderItems) {
		t.Errorf("expected ErrInvalidOrderItems, got %v", err)
	}

	negative := orderRequest("")
	negative.ShippingTotal = decimal.NewFromInt(-1)
	if _, _, err := svc.CreateOrder(ctx, testDoctorID, "", negative); !errors.Is(err, ErrInvalidOrderAmounts) {
		t.Errorf("expected ErrInvalidOrderAmounts, got %v", err)
	}

	long := make([]byte, 256)
	for i := range long {
		long[i] = 'k'
	}
	if _, _, err := svc.CreateOrder(ctx, testDoctorID, string(long), orderRequest("")); !errors.Is(err, ErrInvalidIdempotencyKey) {
		t.Errorf("expected ErrInvalidIdempotencyKey, got %v", err)
	}
}

func TestOrderService_CreateOrder_IdempotentReplay(t *testing.T) {
	svc, _, m := setupTestOrderService(t, nil)
	ctx := context.Background()

	first, _, err := svc.CreateOrder(ctx, testDoctorID, "same-key", orderRequest(""))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	again, replayed, err := svc.CreateOrder(ctx, testDoctorID, "same-key", orderRequest(""))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !replayed || again.ID != first.ID {
		t.Errorf("expected replay of %s, got %s (replayed=%v)", first.ID, again.ID, replayed)
	}

	other, replayed, err := svc.CreateOrder(ctx, testOtherDoc, "same-key", orderRequest(""))
	if err != nil {
		t.Fatalf("other user: %v", err)
	}
	if replayed || other.ID == first.ID {
		t.Error("keys are scoped per user")
	}
	if n, _ := m.order.CountQualifyingByUser(ctx, testDoctorID); n != 1 {
		t.Errorf("expected 1 order for %s, got %d", testDoctorID, n)
	}
}

func TestOrderService_CreateOrder_ReplayIgnoresChangedBody(t *testing.T) {
	svc, _, m := setupTestOrderService(t, nil)
	ctx := context.Background()

	first, _, err := svc.CreateOrder(ctx, testDoctorID, "retry-key", orderRequest("160.99"))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	changed := orderRequest("150.00")
	changed.PhysicianCertification = false
	again, replayed, err := svc.CreateOrder(ctx, testDoctorID, "retry-key", changed)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !replayed || again.ID != first.ID || !again.Total.Equal(first.Total) {
		t.Errorf("expected replay of %s, got %s (replayed=%v)", first.ID, again.ID, replayed)
	}

	// without a key the same body is validated
	if _, _, err := svc.CreateOrder(ctx, testDoctorID, "", changed); !errors.Is(err, ErrCertificationRequired) {
		t.Errorf("expected ErrCertificationRequired, got %v", err)
	}
	if n, _ := m.order.CountQualifyingByUser(ctx, testDoctorID); n != 1 {
		t.Errorf("expected 1 order, got %d", n)
	}
}

func TestOrderService_CreateOrder_ConcurrentSameKey(t *testing.T) {
	svc, _, m := setupTestOrderService(t, nil)

	const n = 10
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, _, err := svc.CreateOrder(context.Background(), testDoctorID, "race-key", orderRequest(""))
			if err == nil {
				ids[i] = order.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] == "" || ids[i] != ids[0] {
			t.Fatalf("expected every caller to see the same order, got %v", ids)
		}
	}
	if c, _ := m.order.CountQualifyingByUser(context.Background(), testDoctorID); c != 1 {
		t.Errorf("expected exactly one stored order, got %d", c)
	}
}

func TestOrderService_CreateOrder_AttributionFromReferralCode(t *testing.T) {
	svc, _, m := setupTestOrderService(t, nil)
	ctx := context.Background()
	m.addUser("walk-in", model.RoleDoctor, "Dr. Walk", "walk@example.com", nil)
	now := time.Now()
	for _, c := range []model.ReferralCode{
		{ReferralCodeID: "code-live", SalesRepID: testOtherRep, Code: "LV123", Status: model.CodeStatusAvailable, IssuedAt: now},
		{ReferralCodeID: "code-dead", SalesRepID: testOtherRep, Code: "RV123", Status: model.CodeStatusRevoked, IssuedAt: now},
	} {
		c := c
		if err := m.code.Create(ctx, &c); err != nil {
			t.Fatal(err)
		}
	}

	live := orderRequest("")
	live.ReferralCode = "lv123"
	order, _, err := svc.CreateOrder(ctx, "walk-in", "", live)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if model.StrVal(order.SalesRepID) != testOtherRep || model.StrVal(order.ReferralCode) != "LV123" {
		t.Errorf("expected attribution to %s via LV123, got %+v", testOtherRep, order)
	}

	dead := orderRequest("")
	dead.ReferralCode = "RV123"
	order, _, err = svc.CreateOrder(ctx, "walk-in", "", dead)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.SalesRepID != nil {
		t.Errorf("revoked code must not attribute, got %q", model.StrVal(order.SalesRepID))
	}

	unknown := orderRequest("")
	unknown.ReferralCode = "ZZ000"
	if _, _, err := svc.CreateOrder(ctx, "walk-in", "", unknown); err != nil {
		t.Errorf("unknown code is ignored, got %v", err)
	}
}

func TestOrderService_CreateOrder_RecordsLeadEligibility(t *testing.T) {
	svc, leads, m := setupTestOrderService(t, nil)
	ctx := context.Background()
	m.addUser("pat", model.RoleDoctor, "Pat Patient", "Pat@Example.com", nil)

	lead, err := leads.CreateReferral(ctx, testDoctorID, &dto.CreateReferralRequest{ContactName: "Pat", ContactEmail: "pat@example.com"})
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.CreateOrder(ctx, "pat", "k1", orderRequest("")); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	got, _ := m.lead.GetByID(ctx, lead.ID)
	if !got.ReferredContactEligibleForCredit || got.ReferredContactTotalOrders != 1 || model.StrVal(got.ReferredContactAccountID) != "pat" {
		t.Errorf("expected lead eligible with 1 order linked to pat, got %+v", got)
	}

	if _, _, err := svc.CreateOrder(ctx, "pat", "k2", orderRequest("")); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	got, _ = m.lead.GetByID(ctx, lead.ID)
	if got.ReferredContactTotalOrders != 2 {
		t.Errorf("expected 2 orders on the lead, got %d", got.ReferredContactTotalOrders)
	}
}

// ── CancelOrder ──

func TestOrderService_CancelOrder(t *testing.T) {
	svc, leads, m := setupTestOrderService(t, nil)
	ctx := context.Background()
	m.addUser("pat", model.RoleDoctor, "Pat", "pat@example.com", nil)
	lead, _ := leads.CreateReferral(ctx, testDoctorID, &dto.CreateReferralRequest{ContactName: "Pat", ContactEmail: "pat@example.com"})

	order, _, err := svc.CreateOrder(ctx, "pat", "k1", orderRequest(""))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.CancelOrder(ctx, testDoctorID, order.ID, &dto.CancelOrderRequest{}); !errors.Is(err, ErrOrderForbidden) {
		t.Errorf("other user: expected ErrOrderForbidden, got %v", err)
	}
	canceled, err := svc.CancelOrder(ctx, "pat", order.ID, &dto.CancelOrderRequest{Reason: " changed mind "})
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if canceled.Status != model.OrderStatusCanceled || model.StrVal(canceled.CancelReason) != "changed mind" || canceled.CanceledAt == nil {
		t.Errorf("unexpected canceled order %+v", canceled)
	}
	if _, err := svc.CancelOrder(ctx, "pat", order.ID, &dto.CancelOrderRequest{}); !errors.Is(err, ErrOrderAlreadyCanceled) {
		t.Errorf("expected ErrOrderAlreadyCanceled, got %v", err)
	}
	if _, err := svc.CancelOrder(ctx, "pat", "missing", &dto.CancelOrderRequest{}); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}

	got, _ := m.lead.GetByID(ctx, lead.ID)
	if !got.ReferredContactEligibleForCredit {
		t.Error("cancellation leaves eligibility untouched")
	}
}

// ── EstimateOrderTotals ──

func TestOrderService_EstimateOrderTotals(t *testing.T) {
	repo, m := newMockRepository()
	seedUsers(m)
	cfg := newTestConfig()
	cfg.Orders.TaxRate = 0.0825
	svc := NewOrderService(cfg, repo, NewReferralLeadService(cfg, repo, zap.NewNop()), nil, zap.NewNop())

	est, err := svc.EstimateOrderTotals(&dto.EstimateOrderRequest{
		Items:         []dto.OrderItemRequest{{SKU: "A", Quantity: 3, UnitPrice: decimal.RequireFromString("19.99")}},
		ShippingTotal: decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("EstimateOrderTotals: %v", err)
	}
	if !est.Subtotal.Equal(decimal.RequireFromString("59.97")) ||
		!est.TaxTotal.Equal(decimal.RequireFromString("4.95")) ||
		!est.Total.Equal(decimal.RequireFromString("69.92")) {
		t.Errorf("unexpected estimate %+v", est)
	}

	tax := decimal.NewFromInt(1)
	est, err = svc.EstimateOrderTotals(&dto.EstimateOrderRequest{
		Items:    []dto.OrderItemRequest{{SKU: "A", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
		TaxTotal: &tax,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !est.Total.Equal(decimal.NewFromInt(11)) {
		t.Errorf("explicit tax should win, got total %s", est.Total)
	}

	if _, err := svc.EstimateOrderTotals(&dto.EstimateOrderRequest{
		Items: []dto.OrderItemRequest{{SKU: "A", Quantity: 0, UnitPrice: decimal.NewFromInt(10)}},
	}); !errors.Is(err, ErrInvalidOrderItems) {
		t.Errorf("expected ErrInvalidOrderItems, got %v", err)
	}
}

// ── GetOrdersForUser ──

func TestOrderService_GetOrdersForUser_MergesExternal(t *testing.T) {
	external := &fakeExternalOrders{}
	svc, _, _ := setupTestOrderService(t, external)
	ctx := context.Background()

	local, _, err := svc.CreateOrder(ctx, testDoctorID, "k1", orderRequest(""))
	if err != nil {
		t.Fatal(err)
	}
	external.payloads = []json.RawMessage{
		json.RawMessage(`{"id":"woo-1","user_id":"doctor-1","status":"paid","total":"20.00","items":[{"sku":"X","quantity":1,"unit_price":"20.00"}],"created_at":"2020-01-01T00:00:00Z"}`),
		json.RawMessage(`{"id":"` + local.ID + `","user_id":"doctor-1","status":"canceled","total":"1","created_at":"2020-01-02T00:00:00Z"}`),
		json.RawMessage(`{"id":"bad","user_id":"doctor-1","status":"refunded","created_at":"2020-01-03T00:00:00Z"}`),
		json.RawMessage(`{"id":"theirs","user_id":"doctor-2","status":"paid","created_at":"2020-01-03T00:00:00Z"}`),
		json.RawMessage(`not json`),
	}

	orders, err := svc.GetOrdersForUser(ctx, testDoctorID)
	if err != nil {
		t.Fatalf("GetOrdersForUser: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected local + one valid external order, got %d: %+v", len(orders), orders)
	}
	if orders[0].ID != local.ID || orders[0].Source != "local" || orders[0].Status != model.OrderStatusPaid {
		t.Errorf("expected the local order first and winning the id clash, got %+v", orders[0])
	}
	if orders[1].ID != "woo-1" || orders[1].Source != "external" || orders[1].Currency != "USD" {
		t.Errorf("unexpected external order %+v", orders[1])
	}

	external.err = errors.New("connection refused")
	if _, err := svc.GetOrdersForUser(ctx, testDoctorID); !errors.Is(err, ErrOrdersUpstream) {
		t.Errorf("expected ErrOrdersUpstream, got %v", err)
	}
}

// ── sales rep projections ──

func TestOrderService_GetOrdersForSalesRep(t *testing.T) {
	svc, _, m := setupTestOrderService(t, nil)
	ctx := context.Background()
	m.addUser("doctor-3", model.RoleDoctor, "Dr. Three", "three@example.com", strPtr(testOtherRep))
	for _, uid := range []string{testDoctorID, testOtherDoc, "doctor-3", testRepID} {
		if _, _, err := svc.CreateOrder(ctx, uid, "", orderRequest("")); err != nil {
			t.Fatal(err)
		}
	}

	mine, err := svc.GetOrdersForSalesRep(ctx, repActor, &dto.SalesRepOrdersQuery{})
	if err != nil {
		t.Fatalf("GetOrdersForSalesRep: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("expected orders of 2 attributed doctors, got %d", len(mine))
	}

	withSelf, err := svc.GetOrdersForSalesRep(ctx, repActor, &dto.SalesRepOrdersQuery{IncludeSelfOrders: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(withSelf) != 3 {
		t.Errorf("expected 3 orders with self orders, got %d", len(withSelf))
	}

	tests := []struct {
		name string
		q    *dto.SalesRepOrdersQuery
	}{
		{"other rep id", &dto.SalesRepOrdersQuery{SalesRepID: testOtherRep}},
		{"scope all", &dto.SalesRepOrdersQuery{Scope: "all"}},
		{"alternate reps", &dto.SalesRepOrdersQuery{AlternateSalesRepIDs: []string{testOtherRep}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.GetOrdersForSalesRep(ctx, repActor, tt.q); !errors.Is(err, ErrOrderForbidden) {
				t.Errorf("expected ErrOrderForbidden, got %v", err)
			}
		})
	}

	combined, err := svc.GetOrdersForSalesRep(ctx, leadActor, &dto.SalesRepOrdersQuery{SalesRepID: testRepID, AlternateSalesRepIDs: []string{testOtherRep}})
	if err != nil {
		t.Fatal(err)
	}
	if len(combined) != 3 {
		t.Errorf("expected 3 orders across both reps, got %d", len(combined))
	}

	all, err := svc.GetOrdersForSalesRep(ctx, adminActor, &dto.SalesRepOrdersQuery{Scope: "all"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("expected all 4 orders, got %d", len(all))
	}

	page2, err := svc.GetOrdersForSalesRep(ctx, adminActor, &dto.SalesRepOrdersQuery{
		Scope:             "all",
		PaginationRequest: dto.PaginationRequest{Page: 2, PageSize: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 1 {
		t.Errorf("expected 1 order on page 2, got %d", len(page2))
	}

	if _, err := svc.GetOrdersForSalesRep(ctx, doctorActor, &dto.SalesRepOrdersQuery{}); !errors.Is(err, ErrOrderForbidden) {
		t.Errorf("doctor: expected ErrOrderForbidden, got %v", err)
	}
}

func TestOrderService_GetOrderForSalesRep(t *testing.T) {
	svc, _, m := setupTestOrderService(t, nil)
	ctx := context.Background()
	m.addUser("doctor-3", model.RoleDoctor, "Dr. Three", "three@example.com", strPtr(testOtherRep))
	order, _, err := svc.CreateOrder(ctx, testDoctorID, "", orderRequest(""))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.GetOrderForSalesRep(ctx, repActor, order.ID, ""); err != nil {
		t.Errorf("attributed rep: %v", err)
	}
	if _, err := svc.GetOrderForSalesRep(ctx, otherRep, order.ID, ""); !errors.Is(err, ErrOrderForbidden) {
		t.Errorf("other rep: expected ErrOrderForbidden, got %v", err)
	}
	if _, err := svc.GetOrderForSalesRep(ctx, repActor, order.ID, "DANA@example.com"); err != nil {
		t.Errorf("matching doctor email: %v", err)
	}
	if _, err := svc.GetOrderForSalesRep(ctx, repActor, order.ID, "someone@example.com"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("mismatched email: expected ErrOrderNotFound, got %v", err)
	}
	if _, err := svc.GetOrderForSalesRep(ctx, adminActor, "missing", ""); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("missing: expected ErrOrderNotFound, got %v", err)
	}
}

// ── GetSalesByRep ──

func TestOrderService_GetSalesByRep_LocalDayWindow(t *testing.T) {
	svc, _, m := setupTestOrderService(t, nil)
	ctx := context.Background()

	put := func(id, userID, rep, total string, at time.Time, status string) {
		t.Helper()
		o := &model.Order{
			OrderID:    id,
			UserID:     userID,
			Status:     status,
			Currency:   "USD",
			Total:      decimal.RequireFromString(total),
			SalesRepID: strPtr(rep),
			CreatedAt:  at,
		}
		if _, err := m.order.CreateIdempotent(ctx, o); err != nil {
			t.Fatal(err)
		}
	}
	// 2026-03-01 in Los Angeles is [08:00Z Mar 1, 08:00Z Mar 2)
	put("o-before", testDoctorID, testRepID, "100", time.Date(2026, 3, 1, 7, 59, 0, 0, time.UTC), model.OrderStatusPaid)
	put("o-start", testDoctorID, testRepID, "10", time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), model.OrderStatusPaid)
	put("o-late", testOtherDoc, testRepID, "15.50", time.Date(2026, 3, 2, 7, 59, 59, 0, time.UTC), model.OrderStatusPaid)
	put("o-after", testDoctorID, testRepID, "100", time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), model.OrderStatusPaid)
	put("o-other", testDoctorID, testOtherRep, "40", time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC), model.OrderStatusPaid)
	put("o-cancel", testDoctorID, testOtherRep, "999", time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC), model.OrderStatusCanceled)
	put("o-none", testDoctorID, "", "50", time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC), model.OrderStatusPaid)

	report, err := svc.GetSalesByRep(ctx, &dto.SalesByRepQuery{
		PeriodStart: "2026-03-01",
		PeriodEnd:   "2026-03-01",
		TimeZone:    "America/Los_Angeles",
	})
	if err != nil {
		t.Fatalf("GetSalesByRep: %v", err)
	}

	if len(report.Rows) != 2 {
		t.Fatalf("expected 2 reps, got %+v", report.Rows)
	}
	if report.Rows[0].SalesRepID != testOtherRep || !report.Rows[0].Revenue.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected %s first with 40, got %+v", testOtherRep, report.Rows[0])
	}
	if report.Rows[1].SalesRepID != testRepID || report.Rows[1].OrderCount != 2 || !report.Rows[1].Revenue.Equal(decimal.RequireFromString("25.50")) {
		t.Errorf("expected %s with 2 orders and 25.50, got %+v", testRepID, report.Rows[1])
	}
	if report.Rows[1].SalesRepName != "Rita Rep" {
		t.Errorf("expected rep name, got %q", report.Rows[1].SalesRepName)
	}
	if report.TotalOrders != 3 || !report.TotalRevenue.Equal(decimal.RequireFromString("65.50")) {
		t.Errorf("unexpected totals %d / %s", report.TotalOrders, report.TotalRevenue)
	}

	excluded, err := svc.GetSalesByRep(ctx, &dto.SalesByRepQuery{
		PeriodStart:       "2026-03-01",
		PeriodEnd:         "2026-03-01",
		ExcludeSalesRepID: testOtherRep,
		ExcludeDoctorIDs:  []string{" doctor-2 , nobody"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(excluded.Rows) != 1 || excluded.Rows[0].OrderCount != 1 || excluded.TimeZone != "America/Los_Angeles" {
		t.Errorf("unexpected filtered report %+v", excluded)
	}
}

func TestOrderService_GetSalesByRep_Validation(t *testing.T) {
	svc, _, _ := setupTestOrderService(t, nil)
	ctx := context.Background()

	if _, err := svc.GetSalesByRep(ctx, &dto.SalesByRepQuery{TimeZone: "Mars/Olympus"}); !errors.Is(err, ErrInvalidTimeZone) {
		t.Errorf("expected ErrInvalidTimeZone, got %v", err)
	}
	if _, err := svc.GetSalesByRep(ctx, &dto.SalesByRepQuery{PeriodStart: "2026-03-05", PeriodEnd: "2026-03-01"}); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod, got %v", err)
	}
	if _, err := svc.GetSalesByRep(ctx, &dto.SalesByRepQuery{PeriodStart: "03/01/2026"}); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod for bad format, got %v", err)
	}
	report, err := svc.GetSalesByRep(ctx, &dto.SalesByRepQuery{})
	if err != nil {
		t.Fatalf("open period: %v", err)
	}
	if len(report.Rows) != 0 || !report.TotalRevenue.IsZero() {
		t.Errorf("expected empty report, got %+v", report)
	}
}

func TestLocalDayWindow_DST(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// spring forward: 2026-03-08 is 23 hours long
	from, to, err := localDayWindow("2026-03-08", "2026-03-08", loc)
	if err != nil {
		t.Fatal(err)
	}
	if got := to.Sub(*from); got != 23*time.Hour {
		t.Errorf("expected a 23h day, got %s", got)
	}
}

func strPtr(s string) *string { return model.StrPtr(s) }

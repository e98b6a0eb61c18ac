package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/repository"
)

// The mocks are shared by concurrent tests, so every method takes the
// mutex. Unique indexes and conditional updates of the schema are emulated
// so races surface the same errors the database would return.

// ── Mock UserRepository ──

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.UserID]; ok {
		return gorm.ErrDuplicatedKey
	}
	u := *user
	m.users[user.UserID] = &u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (m *mockUserRepo) ListIDsBySalesReps(_ context.Context, salesRepIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, u := range m.users {
		for _, rep := range salesRepIDs {
			if model.StrVal(u.SalesRepID) == rep {
				ids = append(ids, u.UserID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockUserRepo) SetAttribution(_ context.Context, userID string, salesRepID, referrerDoctorID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.SalesRepID = salesRepID
	u.ReferrerDoctorID = referrerDoctorID
	return nil
}

// ── Mock ReferralCodeRepository ──

type mockReferralCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*model.ReferralCode
}

func newMockReferralCodeRepo() *mockReferralCodeRepo {
	return &mockReferralCodeRepo{codes: make(map[string]*model.ReferralCode)}
}

func (m *mockReferralCodeRepo) Create(_ context.Context, code *model.ReferralCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.Code == code.Code {
			return gorm.ErrDuplicatedKey
		}
	}
	c := *code
	c.History = append(c.History[:0:0], code.History...)
	m.codes[code.ReferralCodeID] = &c
	return nil
}

func (m *mockReferralCodeRepo) GetByID(_ context.Context, id string) (*model.ReferralCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.codes[id]; ok {
		return cloneCode(c), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReferralCodeRepo) GetByCode(_ context.Context, code string) (*model.ReferralCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.Code == code {
			return cloneCode(c), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReferralCodeRepo) ListBySalesRep(_ context.Context, salesRepID string) ([]model.ReferralCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.ReferralCode
	for _, c := range m.codes {
		if c.SalesRepID == salesRepID {
			result = append(result, *cloneCode(c))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

// Assign emulates ux_referral_codes_assigned_doctor and the status guard
func (m *mockReferralCodeRepo) Assign(_ context.Context, code, doctorID string, event model.CodeHistoryEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var target *model.ReferralCode
	for _, c := range m.codes {
		if c.Code == code {
			target = c
		}
	}
	if target == nil || target.Status != model.CodeStatusAvailable {
		return 0, nil
	}
	for _, c := range m.codes {
		if c.Status == model.CodeStatusAssigned && model.StrVal(c.DoctorID) == doctorID {
			return 0, gorm.ErrDuplicatedKey
		}
	}
	at := event.At
	target.Status = model.CodeStatusAssigned
	target.DoctorID = &doctorID
	target.RedeemedAt = &at
	target.History = append(target.History, event)
	return 1, nil
}

func (m *mockReferralCodeRepo) Transition(_ context.Context, id string, from []string, to string, event model.CodeHistoryEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[id]
	if !ok {
		return 0, nil
	}
	for _, f := range from {
		if c.Status == f {
			c.Status = to
			c.History = append(c.History, event)
			return 1, nil
		}
	}
	return 0, nil
}

func cloneCode(c *model.ReferralCode) *model.ReferralCode {
	cp := *c
	cp.History = append(c.History[:0:0], c.History...)
	return &cp
}

// ── Mock ReferralLeadRepository ──

type mockReferralLeadRepo struct {
	mu    sync.Mutex
	leads map[string]*model.ReferralLead
}

func newMockReferralLeadRepo() *mockReferralLeadRepo {
	return &mockReferralLeadRepo{leads: make(map[string]*model.ReferralLead)}
}

func (m *mockReferralLeadRepo) Create(_ context.Context, lead *model.ReferralLead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := *lead
	m.leads[lead.LeadID] = &l
	return nil
}

func (m *mockReferralLeadRepo) GetByID(_ context.Context, id string) (*model.ReferralLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leads[id]; ok {
		c := *l
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReferralLeadRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.ReferralLead, error) {
	return m.GetByID(ctx, id)
}

func (m *mockReferralLeadRepo) FindByAccountForUpdate(_ context.Context, accountID string) (*model.ReferralLead, error) {
	return m.newest(func(l *model.ReferralLead) bool {
		return model.StrVal(l.ReferredContactAccountID) == accountID
	})
}

func (m *mockReferralLeadRepo) FindByEmailForUpdate(_ context.Context, email string) (*model.ReferralLead, error) {
	return m.newest(func(l *model.ReferralLead) bool {
		return l.ReferredContactEmail != nil && strings.EqualFold(*l.ReferredContactEmail, email)
	})
}

func (m *mockReferralLeadRepo) newest(match func(*model.ReferralLead) bool) (*model.ReferralLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *model.ReferralLead
	for _, l := range m.leads {
		if match(l) && (found == nil || l.CreatedAt.After(found.CreatedAt)) {
			found = l
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	c := *found
	return &c, nil
}

func (m *mockReferralLeadRepo) List(_ context.Context, filter repository.LeadFilter) ([]model.ReferralLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.ReferralLead
	for _, l := range m.leads {
		if filter.ReferrerDoctorID != "" && model.StrVal(l.ReferrerDoctorID) != filter.ReferrerDoctorID {
			continue
		}
		if filter.SalesRepID != "" && model.StrVal(l.SalesRepID) != filter.SalesRepID {
			continue
		}
		result = append(result, *l)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockReferralLeadRepo) Update(_ context.Context, lead *model.ReferralLead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := *lead
	m.leads[lead.LeadID] = &l
	return nil
}

func (m *mockReferralLeadRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leads[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.leads, id)
	return nil
}

// ── Mock LedgerRepository ──

type mockLedgerRepo struct {
	mu      sync.Mutex
	entries []model.CreditLedgerEntry
}

func newMockLedgerRepo() *mockLedgerRepo {
	return &mockLedgerRepo{}
}

// LockDoctor is a no-op; the service's in-process lock serialises writers
func (m *mockLedgerRepo) LockDoctor(_ context.Context, _ string) error { return nil }

// Create emulates ux_ledger_referral_credit and ux_ledger_reverses_entry
func (m *mockLedgerRepo) Create(_ context.Context, entry *model.CreditLedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if entry.ReferralID != nil && entry.IsCredit() && e.IsCredit() && model.StrVal(e.ReferralID) == *entry.ReferralID {
			return gorm.ErrDuplicatedKey
		}
		if entry.ReversesEntryID != nil && model.StrVal(e.ReversesEntryID) == *entry.ReversesEntryID {
			return gorm.ErrDuplicatedKey
		}
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockLedgerRepo) GetByID(_ context.Context, id string) (*model.CreditLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.EntryID == id {
			c := e
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockLedgerRepo) ListByDoctor(_ context.Context, doctorID string) ([]model.CreditLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.CreditLedgerEntry
	for _, e := range m.entries {
		if e.DoctorID == doctorID {
			result = append(result, e)
		}
	}
	sortEntries(result)
	return result, nil
}

func (m *mockLedgerRepo) Totals(_ context.Context, doctorID string) (repository.LedgerTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := repository.LedgerTotals{Credits: decimal.Zero, Debits: decimal.Zero}
	for _, e := range m.entries {
		if e.DoctorID != doctorID {
			continue
		}
		if e.IsCredit() {
			totals.Credits = totals.Credits.Add(e.Amount)
		} else {
			totals.Debits = totals.Debits.Add(e.Amount)
		}
	}
	return totals, nil
}

func (m *mockLedgerRepo) Currency(_ context.Context, doctorID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.DoctorID == doctorID {
			return e.Currency, nil
		}
	}
	return "", nil
}

func (m *mockLedgerRepo) ExistsReversalOf(_ context.Context, entryID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if model.StrVal(e.ReversesEntryID) == entryID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLedgerRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// ── Mock OrderRepository ──

type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.Order
	users  *mockUserRepo
}

func newMockOrderRepo(users *mockUserRepo) *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]*model.Order), users: users}
}

func (m *mockOrderRepo) LockUser(_ context.Context, _ string) error { return nil }

// CreateIdempotent emulates ux_orders_user_idempotency with ON CONFLICT DO NOTHING
func (m *mockOrderRepo) CreateIdempotent(_ context.Context, order *model.Order) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.IdempotencyKey != nil {
		for _, o := range m.orders {
			if o.UserID == order.UserID && model.StrVal(o.IdempotencyKey) == *order.IdempotencyKey {
				return false, nil
			}
		}
	}
	o := *order
	o.Items = append(order.Items[:0:0], order.Items...)
	m.orders[order.OrderID] = &o
	return true, nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		c := *o
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOrderRepo) GetByUserAndKey(_ context.Context, userID, key string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.UserID == userID && model.StrVal(o.IdempotencyKey) == key {
			c := *o
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOrderRepo) CountQualifyingByUser(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, o := range m.orders {
		if o.UserID == userID && o.IsQualifying() {
			n++
		}
	}
	return n, nil
}

func (m *mockOrderRepo) ListByUsers(_ context.Context, userIDs []string) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	var result []model.Order
	for _, o := range m.orders {
		if want[o.UserID] {
			result = append(result, *o)
		}
	}
	return result, nil
}

func (m *mockOrderRepo) ListAll(_ context.Context, offset, limit int) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Order
	for _, o := range m.orders {
		result = append(result, *o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockOrderRepo) Cancel(_ context.Context, id, reason string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status == model.OrderStatusCanceled {
		return 0, nil
	}
	o.Status = model.OrderStatusCanceled
	o.CancelReason = model.StrPtr(reason)
	o.CanceledAt = &at
	return 1, nil
}

// SalesByRep half-open [From, To) on created_at, canceled and unattributed
// orders excluded
func (m *mockOrderRepo) SalesByRep(ctx context.Context, filter repository.SalesByRepFilter) ([]repository.SalesByRepRow, error) {
	m.mu.Lock()
	excluded := make(map[string]bool, len(filter.ExcludeDoctorIDs))
	for _, id := range filter.ExcludeDoctorIDs {
		excluded[id] = true
	}
	byRep := make(map[string]*repository.SalesByRepRow)
	for _, o := range m.orders {
		rep := model.StrVal(o.SalesRepID)
		switch {
		case !o.IsQualifying(), rep == "", rep == filter.ExcludeSalesRepID, excluded[o.UserID]:
			continue
		case filter.From != nil && o.CreatedAt.Before(*filter.From):
			continue
		case filter.To != nil && !o.CreatedAt.Before(*filter.To):
			continue
		}
		row, ok := byRep[rep]
		if !ok {
			row = &repository.SalesByRepRow{SalesRepID: rep, Revenue: decimal.Zero}
			byRep[rep] = row
		}
		row.OrderCount++
		row.Revenue = row.Revenue.Add(o.Total)
	}
	m.mu.Unlock()

	rows := make([]repository.SalesByRepRow, 0, len(byRep))
	for _, row := range byRep {
		if u, err := m.users.GetByID(ctx, row.SalesRepID); err == nil {
			row.SalesRepName = u.Name
		}
		rows = append(rows, *row)
	}
	return rows, nil
}

// ── fixtures ──

type mockRepos struct {
	user   *mockUserRepo
	code   *mockReferralCodeRepo
	lead   *mockReferralLeadRepo
	ledger *mockLedgerRepo
	order  *mockOrderRepo
}

func newMockRepository() (*repository.Repository, *mockRepos) {
	users := newMockUserRepo()
	m := &mockRepos{
		user:   users,
		code:   newMockReferralCodeRepo(),
		lead:   newMockReferralLeadRepo(),
		ledger: newMockLedgerRepo(),
		order:  newMockOrderRepo(users),
	}
	repo := &repository.Repository{
		User:         m.user,
		ReferralCode: m.code,
		ReferralLead: m.lead,
		Ledger:       m.ledger,
		Order:        m.order,
	}
	return repo, m
}

func (m *mockRepos) addUser(id, role, name, email string, salesRepID *string) {
	_ = m.user.Create(context.Background(), &model.User{
		UserID:     id,
		Name:       name,
		Email:      email,
		Role:       role,
		SalesRepID: salesRepID,
	})
}

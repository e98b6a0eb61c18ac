package service

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
)

// Allocate matches debits to the oldest credits with remaining balance.
// Credits and debits are each ordered by (issuedAt, seq), so the result is
// a pure function of the entry set. A reversal draws from the credit it
// reverses first and falls back to FIFO for any remainder. The allocation
// is for audit display only; it never gates an append.
func Allocate(entries []model.CreditLedgerEntry) dto.AllocationResponse {
	var credits, debits []model.CreditLedgerEntry
	for _, e := range entries {
		if e.IsCredit() {
			credits = append(credits, e)
		} else {
			debits = append(debits, e)
		}
	}
	sortEntries(credits)
	sortEntries(debits)

	remaining := make([]decimal.Decimal, len(credits))
	index := make(map[string]int, len(credits))
	for i, c := range credits {
		remaining[i] = c.Amount
		index[c.EntryID] = i
	}

	take := func(i int, need decimal.Decimal) decimal.Decimal {
		if remaining[i].LessThanOrEqual(decimal.Zero) || need.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero
		}
		amount := decimal.Min(need, remaining[i])
		remaining[i] = remaining[i].Sub(amount)
		return amount
	}

	result := dto.AllocationResponse{
		Credits: make([]dto.CreditAllocation, 0, len(credits)),
		Debits:  make([]dto.DebitAllocation, 0, len(debits)),
	}

	for _, d := range debits {
		need := d.Amount
		parts := []dto.DebitAllocationPart{}

		if d.Reason == model.ReasonReversal && d.ReversesEntryID != nil {
			if i, ok := index[*d.ReversesEntryID]; ok {
				if got := take(i, need); got.IsPositive() {
					parts = append(parts, dto.DebitAllocationPart{CreditEntryID: credits[i].EntryID, Amount: got})
					need = need.Sub(got)
				}
			}
		}

		for i := 0; i < len(credits) && need.IsPositive(); i++ {
			if got := take(i, need); got.IsPositive() {
				parts = append(parts, dto.DebitAllocationPart{CreditEntryID: credits[i].EntryID, Amount: got})
				need = need.Sub(got)
			}
		}

		result.Debits = append(result.Debits, dto.DebitAllocation{
			EntryID:     d.EntryID,
			Amount:      d.Amount,
			Allocations: parts,
			Unallocated: need,
		})
	}

	for i, c := range credits {
		result.Credits = append(result.Credits, dto.CreditAllocation{
			EntryID:   c.EntryID,
			Amount:    c.Amount,
			Consumed:  c.Amount.Sub(remaining[i]),
			Remaining: remaining[i],
			IsUsed:    remaining[i].IsZero(),
		})
	}
	return result
}

func sortEntries(entries []model.CreditLedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].IssuedAt.Equal(entries[j].IssuedAt) {
			return entries[i].IssuedAt.Before(entries[j].IssuedAt)
		}
		return entries[i].Seq < entries[j].Seq
	})
}

// buildSummary derives the doctor summary from the full entry set
func buildSummary(doctorID, defaultCurrency string, entries []model.CreditLedgerEntry, now time.Time) *dto.DoctorCreditSummaryResponse {
	ordered := make([]model.CreditLedgerEntry, len(entries))
	copy(ordered, entries)
	sortEntries(ordered)

	summary := &dto.DoctorCreditSummaryResponse{
		DoctorID:     doctorID,
		Currency:     defaultCurrency,
		TotalCredits: decimal.Zero,
		TotalDebits:  decimal.Zero,
		Ledger:       make([]dto.LedgerEntryResponse, 0, len(ordered)),
		GeneratedAt:  formatTime(now),
	}
	if len(ordered) > 0 {
		summary.Currency = ordered[0].Currency
	}

	for i := range ordered {
		e := &ordered[i]
		if e.IsCredit() {
			summary.TotalCredits = summary.TotalCredits.Add(e.Amount)
		} else {
			summary.TotalDebits = summary.TotalDebits.Add(e.Amount)
		}
		if e.FirstOrderBonus {
			summary.FirstOrderBonuses++
		}
		summary.Ledger = append(summary.Ledger, *toLedgerEntryResponse(e))
	}

	summary.AvailableCredits = decimal.Max(summary.TotalCredits.Sub(summary.TotalDebits), decimal.Zero)
	summary.Allocation = Allocate(ordered)
	return summary
}

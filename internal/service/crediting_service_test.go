package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
)

// convertedReferral creates a referral from doctor-1 whose contact has an
// account and one order
func convertedReferral(t *testing.T, svc *Service) *dto.LeadResponse {
	t.Helper()
	ctx := context.Background()
	lead, err := svc.ReferralLead.CreateReferral(ctx, testDoctorID, &dto.CreateReferralRequest{
		ContactName:  "Pat Patient",
		ContactEmail: "pat@example.com",
	})
	if err != nil {
		t.Fatalf("CreateReferral: %v", err)
	}
	if _, err := svc.ReferralLead.UpdateStatus(ctx, lead.ID, &dto.UpdateLeadStatusRequest{Status: model.LeadStatusConverted}, repActor); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := svc.ReferralLead.RecordEligibility(ctx, lead.ID, true, 1, "pat-account"); err != nil {
		t.Fatalf("RecordEligibility: %v", err)
	}
	return lead
}

func creditRequest(leadID string) *dto.AddManualCreditRequest {
	return &dto.AddManualCreditRequest{
		DoctorID:   testDoctorID,
		ReferralID: leadID,
		Amount:     decimal.NewFromInt(50),
	}
}

func TestCreditingService_AddManualCredit_Once(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	lead := convertedReferral(t, svc)

	resp, err := svc.Crediting.AddManualCredit(ctx, adminActor, creditRequest(lead.ID))
	if err != nil {
		t.Fatalf("AddManualCredit: %v", err)
	}
	if resp.Entry.Reason != model.ReasonReferralBonus || resp.Entry.Direction != model.DirectionCredit {
		t.Errorf("expected referral_bonus credit, got %s/%s", resp.Entry.Reason, resp.Entry.Direction)
	}
	if model.StrVal(resp.Entry.ReferralID) != lead.ID || !resp.Entry.FirstOrderBonus {
		t.Errorf("expected entry linked to referral with first order bonus, got %+v", resp.Entry)
	}
	if resp.Lead.CreditIssuedAt == nil || model.StrVal(resp.Lead.CreditIssuedAmount) != "50.00" {
		t.Errorf("expected lead stamped with credit, got %+v", resp.Lead)
	}
	if resp.Lead.ReferredContactEligibleForCredit {
		t.Error("credited lead must no longer be eligible")
	}

	_, err = svc.Crediting.AddManualCredit(ctx, adminActor, creditRequest(lead.ID))
	if !errors.Is(err, ErrAlreadyCredited) {
		t.Errorf("second credit: expected ErrAlreadyCredited, got %v", err)
	}

	summary, err := svc.Ledger.Summarize(ctx, testDoctorID, doctorActor)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !summary.AvailableCredits.Equal(decimal.NewFromInt(50)) || summary.FirstOrderBonuses != 1 {
		t.Errorf("expected 50 available and 1 bonus, got %s and %d", summary.AvailableCredits, summary.FirstOrderBonuses)
	}
}

func TestCreditingService_AddManualCredit_ConcurrentExactlyOnce(t *testing.T) {
	svc, m := setupTestService(t)
	lead := convertedReferral(t, svc)

	const n = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		oks      int
		dupes    int
		unknowns []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Crediting.AddManualCredit(context.Background(), adminActor, creditRequest(lead.ID))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				oks++
			case errors.Is(err, ErrAlreadyCredited):
				dupes++
			default:
				unknowns = append(unknowns, err)
			}
		}()
	}
	wg.Wait()

	if oks != 1 || dupes != n-1 || len(unknowns) != 0 {
		t.Errorf("expected 1 credit and %d duplicates, got %d, %d, %v", n-1, oks, dupes, unknowns)
	}
	if c := m.ledger.count(); c != 1 {
		t.Errorf("expected exactly one ledger entry, got %d", c)
	}
}

func TestCreditingService_AddManualCredit_Rejections(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	lead := convertedReferral(t, svc)

	if _, err := svc.Crediting.AddManualCredit(ctx, repActor, creditRequest(lead.ID)); !errors.Is(err, ErrCreditForbidden) {
		t.Errorf("rep: expected ErrCreditForbidden, got %v", err)
	}
	if _, err := svc.Crediting.AddManualCredit(ctx, leadActor, creditRequest(lead.ID)); !errors.Is(err, ErrCreditForbidden) {
		t.Errorf("sales lead: expected ErrCreditForbidden, got %v", err)
	}

	zero := creditRequest(lead.ID)
	zero.Amount = decimal.Zero
	if _, err := svc.Crediting.AddManualCredit(ctx, adminActor, zero); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero: expected ErrInvalidAmount, got %v", err)
	}

	subCent := creditRequest(lead.ID)
	subCent.Amount = decimal.RequireFromString("0.004")
	if _, err := svc.Crediting.AddManualCredit(ctx, adminActor, subCent); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("sub-cent: expected ErrInvalidAmount, got %v", err)
	}

	wrongDoctor := creditRequest(lead.ID)
	wrongDoctor.DoctorID = testOtherDoc
	if _, err := svc.Crediting.AddManualCredit(ctx, adminActor, wrongDoctor); !errors.Is(err, ErrReferralDoctorMismatch) {
		t.Errorf("mismatch: expected ErrReferralDoctorMismatch, got %v", err)
	}

	if _, err := svc.Crediting.AddManualCredit(ctx, adminActor, creditRequest("missing")); !errors.Is(err, ErrLeadNotFound) {
		t.Errorf("missing: expected ErrLeadNotFound, got %v", err)
	}
}

func TestCreditingService_AddManualCredit_IneligibleLeadRecordsSnapshot(t *testing.T) {
	svc, _ := setupTestService(t)
	lead, err := svc.ReferralLead.CreateReferral(context.Background(), testDoctorID, &dto.CreateReferralRequest{ContactName: "No Orders"})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := svc.Crediting.AddManualCredit(context.Background(), adminActor, creditRequest(lead.ID))
	if err != nil {
		t.Fatalf("AddManualCredit: %v", err)
	}
	if resp.Entry.FirstOrderBonus {
		t.Error("credit for a contact without orders is not a first-order bonus")
	}
	if eligible, ok := resp.Entry.Metadata["eligible_at_issue"].(bool); !ok || eligible {
		t.Errorf("expected eligible_at_issue=false in metadata, got %v", resp.Entry.Metadata["eligible_at_issue"])
	}
}

func TestCreditingService_CreditThenReverse(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	lead := convertedReferral(t, svc)

	resp, err := svc.Crediting.AddManualCredit(ctx, adminActor, creditRequest(lead.ID))
	if err != nil {
		t.Fatalf("AddManualCredit: %v", err)
	}
	_, err = svc.Ledger.Append(ctx, testDoctorID, &dto.AppendLedgerEntryRequest{
		Amount:          decimal.NewFromInt(50),
		Direction:       model.DirectionDebit,
		Reason:          model.ReasonReversal,
		ReversesEntryID: resp.Entry.ID,
	}, adminActor)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}

	if _, err := svc.Crediting.AddManualCredit(ctx, adminActor, creditRequest(lead.ID)); !errors.Is(err, ErrAlreadyCredited) {
		t.Errorf("a reversed referral stays credited, got %v", err)
	}
}

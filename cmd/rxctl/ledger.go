package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/service"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect doctor credit ledgers",
	}
	cmd.AddCommand(ledgerSummaryCmd())
	return cmd
}

func ledgerSummaryCmd() *cobra.Command {
	var doctorID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print a doctor's balance and FIFO allocation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if doctorID == "" {
				return errors.New("--doctor is required")
			}

			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := e.services()
			if err != nil {
				return err
			}

			summary, err := svc.Ledger.Summarize(cmd.Context(), doctorID, service.Actor{UserID: "rxctl", Role: model.RoleAdmin})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, summary)
			}
			return printSummary(cmd, summary)
		},
	}

	cmd.Flags().StringVar(&doctorID, "doctor", "", "doctor user id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw summary as JSON")
	return cmd
}

func printSummary(cmd *cobra.Command, s *dto.DoctorCreditSummaryResponse) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "doctor     %s\n", s.DoctorID)
	fmt.Fprintf(out, "credits    %s %s\n", s.TotalCredits.StringFixed(2), s.Currency)
	fmt.Fprintf(out, "debits     %s %s\n", s.TotalDebits.StringFixed(2), s.Currency)
	fmt.Fprintf(out, "available  %s %s\n", s.AvailableCredits.StringFixed(2), s.Currency)
	fmt.Fprintf(out, "first-order bonuses  %d\n\n", s.FirstOrderBonuses)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREDIT\tAMOUNT\tCONSUMED\tREMAINING")
	for _, c := range s.Allocation.Credits {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.EntryID, c.Amount.StringFixed(2), c.Consumed.StringFixed(2), c.Remaining.StringFixed(2))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DEBIT\tAMOUNT\tDRAWN FROM\tUNALLOCATED")
	for _, d := range s.Allocation.Debits {
		from := ""
		for i, p := range d.Allocations {
			if i > 0 {
				from += ", "
			}
			from += fmt.Sprintf("%s:%s", p.CreditEntryID, p.Amount.StringFixed(2))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.EntryID, d.Amount.StringFixed(2), from, d.Unallocated.StringFixed(2))
	}
	return w.Flush()
}

package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/service"
)

func codesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Manage referral codes",
	}
	cmd.AddCommand(codesIssueCmd())
	return cmd
}

func codesIssueCmd() *cobra.Command {
	var salesRepID, referrerID, adminID string

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a referral code for a sales rep",
		Example: `  rxctl codes issue --rep 7c1f... --as 0d2e...
  rxctl codes issue --rep 7c1f... --referrer 9a4b... --as 0d2e...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if salesRepID == "" || adminID == "" {
				return errors.New("--rep and --as are required")
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

			code, err := svc.ReferralCode.Issue(cmd.Context(), &dto.IssueReferralCodeRequest{
				SalesRepID:       salesRepID,
				ReferrerDoctorID: referrerID,
			}, service.Actor{UserID: adminID, Role: model.RoleAdmin})
			if err != nil {
				return err
			}
			return printJSON(cmd, code)
		},
	}

	cmd.Flags().StringVar(&salesRepID, "rep", "", "sales rep user id that owns the code")
	cmd.Flags().StringVar(&referrerID, "referrer", "", "referring doctor id (optional)")
	cmd.Flags().StringVar(&adminID, "as", "", "admin user id recorded in the code history")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/config"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/jwt"
)

var validRoles = map[string]bool{
	model.RoleDoctor:    true,
	model.RoleSalesRep:  true,
	model.RoleSalesLead: true,
	model.RoleAdmin:     true,
}

func tokenCmd() *cobra.Command {
	var userID, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for an operator or a test account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			if !validRoles[role] {
				return fmt.Errorf("unknown role %q", role)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenTTL
			}

			token, err := jwt.NewManager(&cfg.Auth).GenerateAccessTokenWithTTL(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id carried in the token")
	cmd.Flags().StringVar(&role, "role", model.RoleAdmin, "doctor, sales_rep, sales_lead or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.access_token_ttl)")
	return cmd
}

package main

import (
	"fmt"
	"time"

	"agency_lifecycle/internal/app"
	"agency_lifecycle/internal/domain/policy"

	"github.com/spf13/cobra"
)

// policyFlags identify who is acting on which policy.
type policyFlags struct {
	tenantID string
	userID   string
}

func (f *policyFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tenantID, "tenant", "", "tenant (agency) id")
	cmd.Flags().StringVar(&f.userID, "user", "cli", "user recorded in the activity log")
	_ = cmd.MarkFlagRequired("tenant")
}

func (f *policyFlags) actor() app.Actor {
	return app.Actor{TenantID: f.tenantID, UserID: f.userID}
}

// newPolicyCmd exposes the lifecycle operations for support staff fixing a policy by hand.
func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "policy", Short: "Change a single policy"}

	var statusFlags policyFlags
	setStatus := &cobra.Command{
		Use:   "set-status <policy-id> <status>",
		Short: "Move a policy to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := policy.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return updatePolicy(cmd, statusFlags.actor(), args[0], app.PolicyChanges{Status: &status})
		},
	}
	statusFlags.bind(setStatus)

	var endFlags policyFlags
	var clearEnd bool
	setEndDate := &cobra.Command{
		Use:   "set-end-date <policy-id> [YYYY-MM-DD]",
		Short: "Change or clear a policy's expiry date; renewal reminders follow",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes := app.PolicyChanges{ClearEndDate: clearEnd}
			if !clearEnd {
				if len(args) < 2 {
					return fmt.Errorf("an end date is required unless --clear is set")
				}
				end, err := time.Parse(time.DateOnly, args[1])
				if err != nil {
					return fmt.Errorf("invalid end date %q: %w", args[1], err)
				}
				changes.EndDate = &end
			}
			return updatePolicy(cmd, endFlags.actor(), args[0], changes)
		},
	}
	endFlags.bind(setEndDate)
	setEndDate.Flags().BoolVar(&clearEnd, "clear", false, "remove the end date")

	var deleteFlags policyFlags
	deletePolicy := &cobra.Command{
		Use:   "delete <policy-id>",
		Short: "Delete a policy and all of its renewal reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.db.Close()
			if err := rt.lifecycle.OnPolicyDelete(cmd.Context(), deleteFlags.actor(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "policy %s deleted\n", args[0])
			return nil
		},
	}
	deleteFlags.bind(deletePolicy)

	cmd.AddCommand(setStatus, setEndDate, deletePolicy)
	return cmd
}

func updatePolicy(cmd *cobra.Command, actor app.Actor, policyID string, changes app.PolicyChanges) error {
	rt, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.db.Close()

	p, err := rt.lifecycle.OnPolicyUpdate(cmd.Context(), actor, policyID, changes)
	if err != nil {
		return err
	}
	end := "none"
	if p.EndDate != nil {
		end = p.EndDate.Format(time.DateOnly)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "policy %s: status %s, end date %s\n", p.ID, p.Status, end)
	return nil
}

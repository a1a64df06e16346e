package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammPool/internal/config"
	"ammPool/internal/model"
)

func roleCommands() []*cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init [admin]",
		Short: "Grant Admin and Upgrader to the first administrator (once per store)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				admin, err := principalArg(a, args, 0)
				if err != nil {
					return err
				}
				if err := a.access.Initialize(ctx, admin); err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{"admin": admin})
			})
		},
	}

	grantCmd := &cobra.Command{
		Use:   "grant-role <role> <principal>",
		Short: "Grant a role (caller must hold Admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return changeRole(cmd, args, func(ctx context.Context, a *app, caller common.Address, role model.Role, principal common.Address) error {
				return a.access.GrantRole(ctx, caller, role, principal)
			})
		},
	}

	revokeCmd := &cobra.Command{
		Use:   "revoke-role <role> <principal>",
		Short: "Revoke a role (caller must hold Admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return changeRole(cmd, args, func(ctx context.Context, a *app, caller common.Address, role model.Role, principal common.Address) error {
				return a.access.RevokeRole(ctx, caller, role, principal)
			})
		},
	}

	renounceCmd := &cobra.Command{
		Use:   "renounce-role <role>",
		Short: "Drop one of the caller's own roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				role, err := model.ParseRole(args[0])
				if err != nil {
					return err
				}
				caller, err := a.caller()
				if err != nil {
					return err
				}
				if err := a.access.RenounceRole(ctx, caller, role, caller); err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{"role": role.Hex(), "principal": caller, "member": false})
			})
		},
	}

	hasRoleCmd := &cobra.Command{
		Use:   "has-role <role> <principal>",
		Short: "Check role membership",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				role, err := model.ParseRole(args[0])
				if err != nil {
					return err
				}
				principal, err := parseAddress(args[1], "principal")
				if err != nil {
					return err
				}
				member, err := a.access.HasRole(ctx, role, principal)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{"role": role.Hex(), "principal": principal, "member": member})
			})
		},
	}

	upgradeCmd := &cobra.Command{
		Use:   "authorize-upgrade [principal]",
		Short: "Ask the upgrade gate whether a principal may switch to a candidate logic module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidatePath, _ := cmd.Flags().GetString("candidate")
			if candidatePath == "" {
				return fmt.Errorf("candidate manifest is required")
			}
			candidate, err := config.LoadCandidate(candidatePath)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				principal, err := principalArg(a, args, 0)
				if err != nil {
					return err
				}
				if err := a.gate.Authorize(ctx, principal, candidate); err != nil {
					return err
				}
				a.logger.Info("upgrade may proceed", zap.String("candidate", candidate.Name))
				return printJSON(cmd, map[string]interface{}{"principal": principal, "candidate": candidate.Name, "authorized": true})
			})
		},
	}
	upgradeCmd.Flags().String("candidate", "", "candidate manifest (name, version, layouts)")

	return []*cobra.Command{initCmd, grantCmd, revokeCmd, renounceCmd, hasRoleCmd, upgradeCmd}
}

func changeRole(cmd *cobra.Command, args []string, apply func(ctx context.Context, a *app, caller common.Address, role model.Role, principal common.Address) error) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		role, err := model.ParseRole(args[0])
		if err != nil {
			return err
		}
		principal, err := parseAddress(args[1], "principal")
		if err != nil {
			return err
		}
		caller, err := a.caller()
		if err != nil {
			return err
		}
		if err := apply(ctx, a, caller, role, principal); err != nil {
			return err
		}
		member, err := a.access.HasRole(ctx, role, principal)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]interface{}{"role": role.Hex(), "principal": principal, "member": member})
	})
}

// principalArg returns args[i] as an address, or the caller when absent.
func principalArg(a *app, args []string, i int) (common.Address, error) {
	if len(args) > i {
		return parseAddress(args[i], "principal")
	}
	return a.caller()
}

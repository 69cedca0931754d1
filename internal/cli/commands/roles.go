package commands

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/bizobj/internal/bo/authz"
	"github.com/conduit-lang/bizobj/internal/policy"
)

// NewRolesCommand creates the roles command
func NewRolesCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Inspect and manage role permissions",
		Long: `Inspect and manage role permissions. Roles come from policy.roles, or
from Redis when policy.redis.enabled is set.

Permissions name a target on a type: "Order.create", "Order.Total.read".
A "*" segment matches one segment and a trailing "*" matches the rest.

Examples:
  bizobj roles list
  bizobj roles import
  bizobj roles check --roles clerk Order create
  bizobj roles check --roles clerk Order Total.read`,
	}

	cmd.AddCommand(newRolesListCommand(opts))
	cmd.AddCommand(newRolesImportCommand(opts))
	cmd.AddCommand(newRolesCheckCommand(opts))
	return cmd
}

func newRolesListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List roles and their permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, release, err := a.roleStore(ctx)
			if err != nil {
				return err
			}
			defer release()

			names, err := store.Roles(ctx)
			if err != nil {
				return err
			}
			a.out.Header("Roles")
			if len(names) == 0 {
				a.out.Line("no roles defined")
				return nil
			}
			tbl := a.out.Table("ROLE", "PERMISSIONS")
			for _, name := range names {
				role, err := store.Role(ctx, name)
				if err != nil {
					return err
				}
				var perms []string
				if role != nil {
					for _, p := range role.Permissions {
						perms = append(perms, string(p))
					}
				}
				tbl.AddRow(name, strings.Join(perms, ", "))
			}
			tbl.Render()
			return nil
		},
	}
}

func newRolesImportCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Copy the configured role table into Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if !a.cfg.Policy.Redis.Enabled {
				return errors.New("policy.redis.enabled is false")
			}
			ctx := cmd.Context()
			store, release, err := a.roleStore(ctx)
			if err != nil {
				return err
			}
			defer release()

			redisStore := store.(*policy.RedisRoleStore)
			roles := policy.ParseRoles(a.cfg.Policy.Roles)
			if err := redisStore.Import(ctx, roles); err != nil {
				return err
			}
			a.logger.Info("roles imported", zap.Int("roles", len(roles)))
			a.out.Success("imported %d role(s)", len(roles))
			return nil
		},
	}
}

func newRolesCheckCommand(opts *globalOptions) *cobra.Command {
	var user string
	var roles []string

	cmd := &cobra.Command{
		Use:   "check <type> <target>",
		Short: "Check whether a principal may act on a target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, release, err := a.roleStore(ctx)
			if err != nil {
				return err
			}
			defer release()

			principal := newUser(user, roles)
			ok, err := policy.NewEvaluator(store, a.logger).Evaluate(ctx, principal, args[0], args[1])
			if err != nil {
				return err
			}
			perm := policy.PermissionFor(args[0], args[1])
			if ok {
				a.out.Success("%s is granted %s", principal.Identity(), perm)
				return nil
			}
			a.out.Warning("%s is not granted %s", principal.Identity(), perm)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "cli", "principal identity")
	cmd.Flags().StringSliceVar(&roles, "roles", nil, "principal roles")
	return cmd
}

func newUser(id string, roles []string) *authz.User {
	return authz.NewUser(id, roles...)
}

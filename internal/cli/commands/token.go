package commands

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewTokenCommand creates the token command
func NewTokenCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and inspect principal tokens",
		Long: `Issue and inspect the HS256 tokens that carry a principal's identity
and roles. The signing key is policy.jwt.secret.

Examples:
  bizobj token issue --user ann --roles clerk,auditor
  bizobj token inspect eyJhbGciOi...`,
	}

	cmd.AddCommand(newTokenIssueCommand(opts))
	cmd.AddCommand(newTokenInspectCommand(opts))
	return cmd
}

func newTokenIssueCommand(opts *globalOptions) *cobra.Command {
	var user string
	var roles []string

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a token for a principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			tokens, err := a.tokens()
			if err != nil {
				return err
			}
			token, err := tokens.Issue(newUser(user, roles))
			if err != nil {
				return err
			}
			a.out.Line("%s", token)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "principal identity")
	cmd.Flags().StringSliceVar(&roles, "roles", nil, "principal roles")
	cmd.MarkFlagRequired("user")
	return cmd
}

func newTokenInspectCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <token>",
		Short: "Validate a token and show its principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			tokens, err := a.tokens()
			if err != nil {
				return err
			}
			user, err := tokens.Principal(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			a.out.Line("user:  %s", user.ID)
			a.out.Line("roles: %s", strings.Join(user.Roles, ", "))
			return nil
		},
	}
}

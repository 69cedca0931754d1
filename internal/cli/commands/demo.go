package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/bizobj/internal/bo/authz"
	"github.com/conduit-lang/bizobj/internal/demo"
	"github.com/conduit-lang/bizobj/internal/viewmodel"
)

type demoOptions struct {
	user        string
	roles       []string
	token       string
	lookupDelay time.Duration
	taken       []string
}

// NewDemoCommand creates the demo command
func NewDemoCommand(opts *globalOptions) *cobra.Command {
	do := &demoOptions{}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the walkthrough of the sample types",
		Long: `Run the sample Person and Order types through validation, n-level undo,
async rules, parent/child edits and a view model save.

When roles are configured the walkthrough runs as the principal given by
--token, or by --user and --roles.

Examples:
  bizobj demo
  bizobj demo --user ann --roles clerk
  bizobj demo --token eyJhbGciOi...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runDemo(cmd, a, do)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&do.user, "user", "", "principal identity")
	flags.StringSliceVar(&do.roles, "roles", nil, "principal roles")
	flags.StringVar(&do.token, "token", "", "JWT carrying the principal")
	flags.DurationVar(&do.lookupDelay, "lookup-delay", 20*time.Millisecond, "simulated latency of the email directory")
	flags.StringSliceVar(&do.taken, "taken", []string{"taken@example.com"}, "email addresses already registered")
	return cmd
}

func runDemo(cmd *cobra.Command, a *app, do *demoOptions) error {
	ctx := cmd.Context()

	session := authz.NewSession(nil)
	switch {
	case do.token != "":
		tokens, err := a.tokens()
		if err != nil {
			return err
		}
		if _, err := tokens.SignIn(session, do.token); err != nil {
			return err
		}
	case do.user != "":
		session.SetPrincipal(authz.NewUser(do.user, do.roles...))
	}

	dir := demo.NewMemoryDirectory(do.lookupDelay, do.taken...)
	rt, release, err := a.newRuntime(ctx, session, dir)
	if err != nil {
		return err
	}
	defer release()

	repo := demo.NewRepository()
	walk := demo.NewWalkthrough(rt, repo,
		viewmodel.WithLogger(a.logger),
		viewmodel.WithBusyTimeout(a.cfg.ViewModel.BusyTimeout))

	who := session.Current().Identity()
	if who == "" {
		who = "anonymous"
	}
	a.out.Header("Walkthrough as " + who)

	failed := 0
	for _, step := range walk.Run(ctx) {
		a.out.Line("")
		if step.Err != nil {
			failed++
			a.out.Error(step.Err)
		} else {
			a.out.Success("%s", step.Name)
		}
		for _, note := range step.Notes {
			a.out.Bullet("%s", note)
		}
	}

	a.out.Line("")
	if failed > 0 {
		a.out.Warning("%d step(s) failed", failed)
		return nil
	}
	a.out.Success("repository holds %d records", repo.Len())
	return nil
}

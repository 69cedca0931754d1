package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/bizobj/internal/bo/business"
	"github.com/conduit-lang/bizobj/internal/bo/rules"
)

var rulesProperty string

// NewRulesCommand creates the rules command
func NewRulesCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules <type>",
		Short: "Show the rule graph of a business type",
		Long: `Show the rules of a business type in execution order, or the cascade
that runs when one property changes.

Examples:
  bizobj rules Person
  bizobj rules Person --property Age`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			t, err := lookupType(args[0])
			if err != nil {
				return err
			}
			if rulesProperty != "" {
				return showCascade(a, t, rulesProperty)
			}
			showRules(a, t)
			return nil
		},
	}

	cmd.Flags().StringVarP(&rulesProperty, "property", "p", "", "show the cascade for a change to this property")
	return cmd
}

func showRules(a *app, t *business.Type) {
	a.out.Header("Rules of " + t.Name())
	all := t.Graph().All()
	if len(all) == 0 {
		a.out.Line("no rules")
		return
	}
	tbl := a.out.Table("#", "RULE", "PROPERTY", "INPUTS", "ALSO VALIDATES", "PRIORITY", "SEVERITY", "MODE")
	for i, r := range all {
		tbl.AddRow(
			strconv.Itoa(i+1),
			r.Name,
			r.Property,
			strings.Join(r.Inputs, ", "),
			strings.Join(r.AlsoValidate, ", "),
			strconv.Itoa(r.Priority),
			r.Severity.String(),
			mode(r),
		)
	}
	tbl.Render()
}

func showCascade(a *app, t *business.Type, property string) error {
	if _, err := lookupProperty(t, property); err != nil {
		return err
	}
	plan := t.Graph().Plan(property)
	a.out.Header("Cascade for " + t.Name() + "." + property)
	if len(plan.Rules) == 0 {
		a.out.Line("no rules triggered")
		return nil
	}
	tbl := a.out.Table("#", "RULE", "PROPERTY", "SEVERITY", "MODE")
	for i, r := range plan.Rules {
		tbl.AddRow(strconv.Itoa(i+1), r.Name, r.Property, r.Severity.String(), mode(r))
	}
	tbl.Render()
	a.out.Line("")
	a.out.Line("Notified properties: %s", strings.Join(plan.Properties, ", "))
	return nil
}

func mode(r *rules.Rule) string {
	if r.Async {
		return "async"
	}
	return "sync"
}

package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/bizobj/internal/bo/business"
	"github.com/conduit-lang/bizobj/internal/bo/meta"
	// registers the sample types
	_ "github.com/conduit-lang/bizobj/internal/demo"
)

// NewTypesCommand creates the types command
func NewTypesCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types [name]",
		Short: "List registered business types",
		Long: `List the registered business types, or the properties of one type.

Examples:
  bizobj types
  bizobj types Order`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return listTypes(a)
			}
			t, err := lookupType(args[0])
			if err != nil {
				return err
			}
			describeType(a, t)
			return nil
		},
	}
}

func listTypes(a *app) error {
	a.out.Header("Business types")
	tbl := a.out.Table("TYPE", "PROPERTIES", "CHILDREN", "RULES")
	for _, name := range meta.Default.Names() {
		t, err := lookupType(name)
		if err != nil {
			return err
		}
		var children []string
		for _, p := range t.Info().Relationships() {
			children = append(children, p.Name())
		}
		tbl.AddRow(
			name,
			strconv.Itoa(t.Info().Count()),
			strings.Join(children, ", "),
			strconv.Itoa(len(t.Graph().Rules())),
		)
	}
	tbl.Render()
	return nil
}

func describeType(a *app, t *business.Type) {
	a.out.Header(t.Name())
	tbl := a.out.Table("PROPERTY", "KIND", "TYPE", "DEFAULT", "LABEL")
	for _, p := range t.Info().Properties() {
		kind, typ, def := "value", p.Type().String(), fmt.Sprintf("%#v", p.Default())
		if p.IsRelationship() {
			kind, typ, def = "child", "object or list", ""
		}
		tbl.AddRow(p.Name(), kind, typ, def, p.FriendlyName())
	}
	tbl.Render()
}

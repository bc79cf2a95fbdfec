package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"control-advisor/internal/applicability"
	"control-advisor/internal/apperr"
	"control-advisor/internal/catalog"
	"control-advisor/internal/config"
	"control-advisor/internal/database"
	"control-advisor/internal/gaps"
	"control-advisor/internal/logging"
	"control-advisor/internal/models"
	"control-advisor/internal/profile"
)

type listFlags struct {
	file    string
	profile string
	flags   applicability.Flags
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "catalogctl",
		Short:        "Validate, import and inspect standard control catalogs",
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "validate <catalog.yaml>",
		Short: "Check a catalog file against the schema and rule grammar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), args[0])
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "import <catalog.yaml>",
		Short: "Upsert catalog controls by code into the configured database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	})

	var lf listFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog controls, optionally only those applicable to a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.OutOrStdout(), lf)
		},
	}
	f := listCmd.Flags()
	f.StringVar(&lf.file, "file", "", "Catalog file (embedded default when empty)")
	f.StringVar(&lf.profile, "profile", "", "Comma-separated profile tags, e.g. manual,high-risk")
	f.BoolVar(&lf.flags.Regulated, "regulated", false, "Organization is regulated")
	f.BoolVar(&lf.flags.InventoryHeavy, "inventory-heavy", false, "Organization is inventory heavy")
	f.BoolVar(&lf.flags.DataIntensive, "data-intensive", false, "Organization is data intensive")
	f.BoolVar(&lf.flags.HighRiskImpact, "high-risk", false, "Organization has high risk impact")
	root.AddCommand(listCmd)

	return root
}

func runValidate(w io.Writer, path string) error {
	controls, err := catalog.ParseFile(path)
	if err != nil {
		printProblems(w, err)
		return err
	}
	fmt.Fprintf(w, "ok: %d controls\n", len(controls))
	return nil
}

func runImport(ctx context.Context, w io.Writer, path string) error {
	controls, err := catalog.ParseFile(path)
	if err != nil {
		printProblems(w, err)
		return err
	}

	cfg := config.Load()
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	saved, err := catalog.Import(ctx, database.NewRepository(db), controls)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "imported %d controls\n", len(saved))
	return nil
}

func runList(w io.Writer, lf listFlags) error {
	controls, err := catalog.Load(lf.file)
	if err != nil {
		printProblems(w, err)
		return err
	}

	if lf.profile != "" || lf.flags != (applicability.Flags{}) {
		p, err := profile.ParseSet(lf.profile)
		if err != nil {
			return err
		}
		controls = gaps.FilterApplicable(controls, p, lf.flags)
	}

	printControls(w, controls)
	return nil
}

func printControls(w io.Writer, controls []models.StandardControl) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tTYPE\tDOMAIN\tAPPLICABILITY\tNAME")
	for _, c := range controls {
		rule, _ := c.Applicability.MarshalJSON()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Code, c.ControlType, c.DomainTag, rule, c.Name)
	}
	tw.Flush()
}

func printProblems(w io.Writer, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || len(appErr.Details) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n  %s\n", appErr.Message, strings.Join(appErr.Details, "\n  "))
}

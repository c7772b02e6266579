package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/benvon/smart-forms/internal/routes"
	"github.com/spf13/cobra"
)

// NewRoutesCmd creates the route table command
func NewRoutesCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Inspect the route gating table",
	}
	cmd.PersistentFlags().StringVar(&file, "file", "", "Route table YAML (defaults to ROUTES_FILE, then the built-in table)")

	load := func(cmd *cobra.Command) (*routes.Classifier, error) {
		path := file
		if !cmd.Flags().Changed("file") {
			path = envRoutesFile()
		}
		table, err := routes.LoadTable(path)
		if err != nil {
			return nil, err
		}
		return routes.NewClassifier(table), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List route prefixes by class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			classifier, err := load(cmd)
			if err != nil {
				return err
			}
			printTable(cmd.OutOrStdout(), classifier.Table())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "classify <path>...",
		Short: "Show the class each path falls into",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			classifier, err := load(cmd)
			if err != nil {
				return err
			}
			for _, p := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %s\n", p, classifier.Classify(p))
			}
			return nil
		},
	})

	return cmd
}

func printTable(out io.Writer, table routes.Table) {
	sections := []struct {
		class    routes.Class
		prefixes []string
	}{
		{routes.Public, table.Public},
		{routes.AuthOnly, table.AuthOnly},
		{routes.Protected, table.Protected},
	}
	for _, s := range sections {
		fmt.Fprintf(out, "%s:\n", s.class)
		if len(s.prefixes) == 0 {
			fmt.Fprintln(out, "  (none)")
		}
		for _, p := range s.prefixes {
			fmt.Fprintf(out, "  %s\n", p)
		}
	}
}

// envRoutesFile reads ROUTES_FILE directly; the full config would demand a database URL
func envRoutesFile() string {
	return os.Getenv("ROUTES_FILE")
}

package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"vqconf/pkg/diff"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <config-a> <config-b>",
	Short: "Compare two run configs key by key",
	Long:  `Compare two run configs by resolved value and report added, removed and changed keys`,
	Args:  cobra.ExactArgs(2),
	Run:   runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) {
	changes, err := diff.Compare(args[0], args[1])
	if err != nil {
		color.Red("Diff failed: %v", err)
		os.Exit(1)
	}

	if len(changes) == 0 {
		color.Green("No differences: the two documents resolve identically.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, color.CyanString("KEY\tOLD\tNEW"))
	fmt.Fprintln(w, strings.Repeat("-", 80))

	for _, c := range changes {
		oldVal, newVal := c.Old, c.New
		if oldVal == "" {
			oldVal = "-"
		}
		if newVal == "" {
			newVal = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Path, color.RedString(oldVal), color.GreenString(newVal))
	}
	w.Flush()

	color.Yellow("\n%d key(s) differ", len(changes))
}

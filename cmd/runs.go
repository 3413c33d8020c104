package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"vqconf/pkg/registry"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	runsStatus string
	runsAll    bool
	runsShow   string
)

var runsCmd = &cobra.Command{
	Use:   "runs [project]",
	Short: "Query the run registry",
	Long:  `Query the run registry for a specific project or all projects`,
	Run:   runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (new, updated)")
	runsCmd.Flags().BoolVar(&runsAll, "all", false, "query all projects")
	runsCmd.Flags().StringVar(&runsShow, "show", "", "print the stored resolved document for one run (project/name)")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) {
	if runsShow == "" && !runsAll && len(args) == 0 {
		color.Red("Error: either provide a project or use --all flag")
		cmd.Help()
		os.Exit(1)
	}

	if runsAll && len(args) > 0 {
		color.Red("Error: cannot use both project and --all flag together")
		cmd.Help()
		os.Exit(1)
	}

	reg, err := registry.New(registrySettings(true))
	if err != nil {
		color.Red("Failed to connect to registry: %v", err)
		os.Exit(1)
	}
	defer reg.Close()

	if runsShow != "" {
		parts := strings.SplitN(runsShow, "/", 2)
		if len(parts) != 2 {
			color.Red("Error: --show expects project/name")
			os.Exit(1)
		}
		doc, err := reg.RunConfig(parts[0], parts[1])
		if err != nil {
			color.Red("Failed to fetch run config: %v", err)
			os.Exit(1)
		}
		fmt.Print(doc)
		return
	}

	if runsStatus != "" {
		runsStatus = strings.ToUpper(runsStatus)
	}

	var records []registry.RunRecord

	if runsAll {
		records, err = reg.QueryAllRuns(runsStatus)
		if err != nil {
			color.Red("Failed to query registry: %v", err)
			os.Exit(1)
		}
	} else {
		project := args[0]
		records, err = reg.QueryRuns(project, runsStatus)
		if err != nil {
			color.Red("Failed to query registry: %v", err)
			os.Exit(1)
		}

		if len(records) == 0 {
			color.Yellow("[INF] Project %s not found in registry.", project)
			os.Exit(0)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, color.CyanString("PROJECT\tRUN\tSTEPS\tLR\tSTATUS\tFIRST_REGISTERED\tLAST_REGISTERED"))
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range records {
		statusColor := color.GreenString
		if r.Status == "UPDATED" {
			statusColor = color.YellowString
		}

		fmt.Fprintf(w, "%s\t%s\t%d\t%g\t%s\t%s\t%s\n",
			r.Project,
			r.Name,
			r.MaxTrainSteps,
			r.LearningRate,
			statusColor(r.Status),
			r.FirstRegistered.Format("2006-01-02 15:04:05"),
			r.LastRegistered.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	color.Green("\nTotal runs: %d", len(records))
}

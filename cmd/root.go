package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"vqconf/pkg/audit"
	"vqconf/pkg/config"
	"vqconf/pkg/elastic"
	"vqconf/pkg/registry"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configFile   string
	outputFile   string
	jsonFormat   bool
	silent       bool
	stats        bool
	verbose      bool
	gpus         int
	registerRun  bool
	esURL        string
	esIndex      string
	dbHost       string
	dbPort       int
	dbUser       string
	dbPassword   string
	scheduleRows int
)

var Verbose bool

var rootCmd = &cobra.Command{
	Use:   "vqconf",
	Short: "training-run config validator for VQ tokenizer + AR generator runs",
	Long:  `load, resolve and validate training-run configuration documents, preview the run they describe, and keep a registry of what was launched`,
	Run:   runAudit,
}

func Execute() {
	hasSilentFlag := false
	for i, arg := range os.Args {
		if arg == "-silent" {
			os.Args[i] = "--silent"
			hasSilentFlag = true
		}
		if arg == "-stats" {
			os.Args[i] = "--stats"
		}
		if arg == "-register" {
			os.Args[i] = "--register"
		}
		if arg == "-es" {
			os.Args[i] = "--es"
		}
	}

	if !hasSilentFlag {
		printBanner()
	}

	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func DebugLog(format string, args ...interface{}) {
	if Verbose {
		fmt.Printf("[DBG] "+format+"\n", args...)
	}
}

func setDebugLogFunctions() {
	config.DebugLog = DebugLog
	audit.DebugLog = DebugLog
	registry.DebugLog = DebugLog
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func init() {
	rootCmd.SetHelpTemplate(`Usage:
  {{.UseLine}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}

{{if .HasAvailableSubCommands}}Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}Flags:
INPUT:
   -c, -config string      run config path (default: configs/generator.yaml)

AUDIT:
   -g, -gpus int           number of gpus assumed for the run plan (default: 8)
   -stats                  display per-section statistics after validation
   -n, -schedule int       number of learning-rate schedule rows to print (default: 0)

BOOKKEEPING:
   -register               record the validated run in the postgres registry
   -db-host string         registry host (env VQCONF_DB_HOST, default: localhost)
   -db-port int            registry port (env VQCONF_DB_PORT, default: 5432)
   -db-user string         registry user (env VQCONF_DB_USER, default: postgres)
   -db-password string     registry password (env VQCONF_DB_PASSWORD)
   -es string              elasticsearch URL to export the resolved run to
   -es-index string        elasticsearch index (default: vqconf_runs)

OUTPUT:
   -o, -output string      file to write the fully resolved document to
   -j, -json               print the audit summary as JSON
   -silent                 silent mode - no banner or extra output

OPTIMIZATION:
   -v, -verbose            enable verbose/debug output
{{if .HasAvailableSubCommands}}
Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "run config path (default: configs/generator.yaml)")

	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "file to write the fully resolved document to")
	rootCmd.Flags().BoolVarP(&jsonFormat, "json", "j", false, "print the audit summary as JSON")
	rootCmd.Flags().BoolVar(&silent, "silent", false, "silent mode - no banner or extra output")
	rootCmd.Flags().BoolVar(&stats, "stats", false, "display per-section statistics after validation")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose/debug output")
	rootCmd.Flags().IntVarP(&gpus, "gpus", "g", 8, "number of gpus assumed for the run plan")
	rootCmd.Flags().IntVarP(&scheduleRows, "schedule", "n", 0, "number of learning-rate schedule rows to print")
	rootCmd.Flags().BoolVar(&registerRun, "register", false, "record the validated run in the postgres registry")
	rootCmd.Flags().StringVar(&esURL, "es", "", "elasticsearch URL to export the resolved run to")
	rootCmd.Flags().StringVar(&esIndex, "es-index", "", "elasticsearch index (default: vqconf_runs)")
	rootCmd.PersistentFlags().StringVar(&dbHost, "db-host", envOr("VQCONF_DB_HOST", "localhost"), "registry host")
	rootCmd.PersistentFlags().IntVar(&dbPort, "db-port", envOrInt("VQCONF_DB_PORT", 5432), "registry port")
	rootCmd.PersistentFlags().StringVar(&dbUser, "db-user", envOr("VQCONF_DB_USER", "postgres"), "registry user")
	rootCmd.PersistentFlags().StringVar(&dbPassword, "db-password", envOr("VQCONF_DB_PASSWORD", ""), "registry password")

	rootCmd.AddCommand(versionCmd)
}

func registrySettings(enabled bool) registry.ConnSettings {
	return registry.ConnSettings{
		Enabled:  enabled,
		Host:     dbHost,
		Port:     dbPort,
		User:     dbUser,
		Password: dbPassword,
	}
}

func runAudit(cmd *cobra.Command, args []string) {
	Verbose = verbose

	if verbose {
		setDebugLogFunctions()
	}

	auditor, err := audit.NewAuditor(configFile)
	if err != nil {
		color.Red("Failed to load run config: %v", err)
		os.Exit(1)
	}

	opts := audit.Options{
		GPUs:     gpus,
		Register: registerRun,
		Registry: registrySettings(registerRun),
	}
	if esURL != "" {
		opts.Elastic = &elastic.Config{URL: esURL, Index: esIndex}
	}

	result, err := auditor.Run(context.Background(), opts)
	if err != nil {
		color.Red("Audit failed: %v", err)
		os.Exit(1)
	}

	if outputFile != "" {
		if err := config.Save(result.Config, outputFile); err != nil {
			color.Red("Failed to write resolved config: %v", err)
			os.Exit(1)
		}
		if !silent {
			color.Green("Resolved document written to %s", outputFile)
		}
	}

	if jsonFormat {
		displayJSONSummary(result)
	} else {
		displaySummary(result)
	}

	if stats && !silent {
		displayStatistics(result)
	}

	if scheduleRows > 0 && !silent {
		displaySchedule(result, scheduleRows)
	}
}

type auditSummary struct {
	ConfigPath    string   `json:"config_path"`
	Project       string   `json:"project"`
	Name          string   `json:"name"`
	MaxTrainSteps int      `json:"max_train_steps"`
	LearningRate  float64  `json:"learning_rate"`
	TotalBatch    int      `json:"total_batch_size"`
	TrainEpochs   int      `json:"train_epochs"`
	Params        int64    `json:"estimated_params"`
	Warnings      []string `json:"warnings"`
	Registered    bool     `json:"registered"`
	Indexed       bool     `json:"indexed"`
}

func displayJSONSummary(result *audit.Result) {
	summary := auditSummary{
		ConfigPath:    result.ConfigPath,
		Project:       result.Config.Experiment.Project,
		Name:          result.Config.Experiment.Name,
		MaxTrainSteps: result.Config.Training.MaxTrainSteps,
		LearningRate:  result.Config.Optimizer.Params.LearningRate,
		TotalBatch:    result.Plan.TotalBatchSize,
		TrainEpochs:   result.Plan.TrainEpochs,
		Params:        result.Params,
		Warnings:      result.Warnings,
		Registered:    result.Registered,
		Indexed:       result.Indexed,
	}
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		color.Red("Failed to marshal summary: %v", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func displaySummary(result *audit.Result) {
	cfg := result.Config
	if !silent {
		color.Green("\nConfig OK: %s", result.ConfigPath)
		fmt.Printf("  run              %s/%s\n", cfg.Experiment.Project, cfg.Experiment.Name)
		fmt.Printf("  generator        %dL x %dh (%d heads), ~%s params\n",
			cfg.Model.Generator.NumHiddenLayers, cfg.Model.Generator.HiddenSize,
			cfg.Model.Generator.NumAttentionHeads, humanCount(result.Params))
		fmt.Printf("  tokenizer        %d codes x %d dims, %d tokens/image\n",
			cfg.Model.VQModel.CodebookSize, cfg.Model.VQModel.TokenSize, cfg.Model.VQModel.NumLatentTokens)
		fmt.Printf("  schedule         %s, lr %g -> %g, warmup %d\n",
			cfg.LRScheduler.Scheduler, cfg.Optimizer.Params.LearningRate,
			cfg.LRScheduler.Params.EndLR, cfg.LRScheduler.Params.WarmupSteps)
		fmt.Printf("  plan (%d gpus)   batch %d, %d updates/epoch, %d epochs for %d steps\n",
			result.Plan.GPUs, result.Plan.TotalBatchSize, result.Plan.UpdatesPerEpoch,
			result.Plan.TrainEpochs, result.Plan.MaxTrainSteps)
	}

	for _, warning := range result.Warnings {
		color.Yellow("[WARN] %s", warning)
	}

	if !silent {
		if result.Registered {
			color.Cyan("[INF] Run recorded in registry.")
		}
		if result.Indexed {
			color.Cyan("[INF] Resolved run exported to elasticsearch.")
		}
	}
}

func displayStatistics(result *audit.Result) {
	cfg := result.Config
	fmt.Println()
	color.Cyan("[INF] Printing section statistics for %s/%s", cfg.Experiment.Project, cfg.Experiment.Name)
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SECTION\tKEY\tVALUE")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "experiment\tmax_train_examples\t%d\n", cfg.Experiment.MaxTrainExamples)
	fmt.Fprintf(w, "experiment\tsave/eval/generate\t%d/%d/%d\n",
		cfg.Experiment.SaveEvery, cfg.Experiment.EvalEvery, cfg.Experiment.GenerateEvery)
	fmt.Fprintf(w, "model\tcodebook_size\t%d\n", cfg.Model.VQModel.CodebookSize)
	fmt.Fprintf(w, "model\timage_seq_len\t%d\n", cfg.Model.Generator.ImageSeqLen)
	fmt.Fprintf(w, "dataset\tcrop_size\t%d\n", cfg.Dataset.Params.CropSize)
	fmt.Fprintf(w, "dataset\tworkers/gpu\t%d\n", cfg.Dataset.Params.NumWorkersPerGPU)
	fmt.Fprintf(w, "optimizer\tlearning_rate\t%g\n", cfg.Optimizer.Params.LearningRate)
	fmt.Fprintf(w, "optimizer\tbetas\t%g, %g\n", cfg.Optimizer.Params.Beta1, cfg.Optimizer.Params.Beta2)
	fmt.Fprintf(w, "training\tper_gpu_batch_size\t%d\n", cfg.Training.PerGPUBatchSize)
	fmt.Fprintf(w, "training\tmixed_precision\t%s\n", cfg.Training.MixedPrecision)
	fmt.Fprintf(w, "training\ttoken budget\t%s\n", humanCount(result.Plan.TokenBudget))
	w.Flush()
	fmt.Println()
}

func displaySchedule(result *audit.Result, rows int) {
	fmt.Println()
	color.Cyan("[INF] Learning-rate schedule preview")
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "STEP\tLR")
	for _, p := range result.Schedule.Preview(rows) {
		fmt.Fprintf(w, "%d\t%.3g\n", p.Step, p.LR)
	}
	w.Flush()
	fmt.Println()
}

func humanCount(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(n)/1e9)
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func printBanner() {
	banner := color.CyanString(`
┬  ┬┌─┐ ┌─┐┌─┐┌┐┌┌─┐
└┐┌┘│─┼┐│  │ ││││├┤
 └┘ └─┘└└─┘└─┘┘└┘└
`)
	info := color.HiBlackString("training-run config loader, validator & registry for vq/ar image generators")
	fmt.Println(banner)
	fmt.Println(info)
	fmt.Println()
}

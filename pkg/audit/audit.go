package audit

import (
	"context"
	"fmt"

	"vqconf/pkg/config"
	"vqconf/pkg/elastic"
	"vqconf/pkg/plan"
	"vqconf/pkg/registry"
	"vqconf/pkg/schedule"

	"github.com/sirupsen/logrus"
)

var DebugLog func(string, ...interface{})

// Auditor loads and validates one run document and wires the optional
// bookkeeping backends around it.
type Auditor struct {
	config        *config.Config
	configManager *config.Manager
	logger        *logrus.Logger
	registry      *registry.Registry
}

type Options struct {
	GPUs     int
	Register bool
	Registry registry.ConnSettings
	Elastic  *elastic.Config
}

type Result struct {
	Config     *config.Config
	ConfigPath string
	Schedule   *schedule.Schedule
	Plan       *plan.Plan
	Params     int64
	Warnings   []string
	Registered bool
	Indexed    bool
}

type customFormatter struct{}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var levelText string
	switch entry.Level {
	case logrus.InfoLevel:
		levelText = "[INF]"
	case logrus.WarnLevel:
		levelText = "[WARN]"
	case logrus.ErrorLevel:
		levelText = "[ERR]"
	case logrus.DebugLevel:
		levelText = "[DBG]"
	default:
		levelText = "[???]"
	}
	return []byte(fmt.Sprintf("%s %s\n", levelText, entry.Message)), nil
}

func NewAuditor(configPath string) (*Auditor, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&customFormatter{})

	configManager := config.NewManager(configPath)
	if err := configManager.LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load run configuration: %w", err)
	}

	return &Auditor{
		config:        configManager.GetConfig(),
		configManager: configManager,
		logger:        logger,
	}, nil
}

func (a *Auditor) Logger() *logrus.Logger {
	return a.logger
}

func (a *Auditor) GetRegistry() *registry.Registry {
	return a.registry
}

// Run audits the loaded document: schedule and plan derivation, lint
// warnings, then the opt-in registry and elasticsearch hooks. Backend
// failures are warnings, not audit failures; the document itself already
// validated at load.
func (a *Auditor) Run(ctx context.Context, opts Options) (*Result, error) {
	cfg := a.config

	sched, err := schedule.New(cfg)
	if err != nil {
		return nil, err
	}

	if DebugLog != nil {
		DebugLog("deriving run plan for %d gpu(s)", opts.GPUs)
	}

	result := &Result{
		Config:     cfg,
		ConfigPath: a.configManager.ConfigPath(),
		Schedule:   sched,
		Plan:       plan.New(cfg, opts.GPUs),
		Params:     plan.ParamEstimate(cfg),
		Warnings:   lint(cfg),
	}

	if opts.Register {
		reg, err := registry.New(opts.Registry)
		if err != nil {
			a.logger.Warnf("Registry initialization failed: %v", err)
		} else if reg.IsEnabled() {
			a.registry = reg
			if err := reg.Register(cfg); err != nil {
				a.logger.Warnf("Run registration failed: %v", err)
			} else {
				result.Registered = true
			}
		}
	}

	if opts.Elastic != nil {
		es, err := elastic.New(*opts.Elastic)
		if err != nil {
			a.logger.Warnf("Elasticsearch initialization failed: %v", err)
		} else if err := es.IndexRun(ctx, cfg); err != nil {
			a.logger.Warnf("Elasticsearch export failed: %v", err)
		} else {
			result.Indexed = true
		}
	}

	return result, nil
}

// lint flags configurations that load fine but usually mean someone forgot
// something.
func lint(cfg *config.Config) []string {
	var warnings []string

	if cfg.Training.Seed == 0 {
		warnings = append(warnings, "training.seed is 0; runs will not be reproducible across restarts")
	}
	if !cfg.Training.UseEMA {
		warnings = append(warnings, "training.use_ema is off; eval checkpoints will be noisier")
	}
	if !cfg.Training.EnableTF32 && cfg.Training.MixedPrecision == "no" {
		warnings = append(warnings, "full fp32 without tf32; expect a significant throughput hit on Ampere+")
	}
	if w, m := cfg.LRScheduler.Params.WarmupSteps, cfg.Training.MaxTrainSteps; w > m/5 {
		warnings = append(warnings, fmt.Sprintf("warmup_steps (%d) is more than 20%% of max_train_steps (%d)", w, m))
	}
	if cfg.Model.Generator.ImageSeqLen != cfg.Model.VQModel.NumLatentTokens {
		warnings = append(warnings, fmt.Sprintf("generator image_seq_len (%d) differs from vq_model num_latent_tokens (%d)",
			cfg.Model.Generator.ImageSeqLen, cfg.Model.VQModel.NumLatentTokens))
	}
	if cfg.Dataset.Params.Pretokenization == "" {
		warnings = append(warnings, "dataset.params.pretokenization is empty; every step will re-encode images through the tokenizer")
	}

	return warnings
}

package config

// Config is the root of a training-run document. It is parsed once at
// process start, validated, and never mutated afterwards.
type Config struct {
	Experiment  ExperimentConfig  `yaml:"experiment"`
	Model       ModelConfig       `yaml:"model"`
	Dataset     DatasetConfig     `yaml:"dataset"`
	Optimizer   OptimizerConfig   `yaml:"optimizer"`
	LRScheduler LRSchedulerConfig `yaml:"lr_scheduler"`
	Training    TrainingConfig    `yaml:"training"`
}

type ExperimentConfig struct {
	Project          string `yaml:"project"`
	Name             string `yaml:"name"`
	OutputDir        string `yaml:"output_dir"`
	MaxTrainExamples int64  `yaml:"max_train_examples"`
	SaveEvery        int    `yaml:"save_every"`
	EvalEvery        int    `yaml:"eval_every"`
	GenerateEvery    int    `yaml:"generate_every"`
	LogEvery         int    `yaml:"log_every"`
	LogGradNormEvery int    `yaml:"log_grad_norm_every"`
	Resume           bool   `yaml:"resume"`
}

type ModelConfig struct {
	VQModel   VQModelConfig   `yaml:"vq_model"`
	Generator GeneratorConfig `yaml:"generator"`
}

// VQModelConfig describes the frozen tokenizer the generator trains against.
type VQModelConfig struct {
	CodebookSize    int `yaml:"codebook_size"`
	TokenSize       int `yaml:"token_size"`
	NumLatentTokens int `yaml:"num_latent_tokens"`
}

type GeneratorConfig struct {
	HiddenSize          int     `yaml:"hidden_size"`
	NumHiddenLayers     int     `yaml:"num_hidden_layers"`
	NumAttentionHeads   int     `yaml:"num_attention_heads"`
	Dropout             float64 `yaml:"dropout"`
	AttnDrop            float64 `yaml:"attn_drop"`
	TokenDrop           float64 `yaml:"token_drop"`
	ClassLabelDropout   float64 `yaml:"class_label_dropout"`
	ImageSeqLen         int     `yaml:"image_seq_len"`
	ConditionNumClasses int     `yaml:"condition_num_classes"`

	// Sampling controls, read at generation time only.
	RandomizeTemperature float64 `yaml:"randomize_temperature"`
	GuidanceScale        float64 `yaml:"guidance_scale"`
	GuidanceScalePow     float64 `yaml:"guidance_scale_pow"`
	SampleSeed           int64   `yaml:"sample_seed"`

	UseCheckpoint bool `yaml:"use_checkpoint"`
}

type DatasetConfig struct {
	Params DatasetParams `yaml:"params"`
}

type DatasetParams struct {
	Pretokenization   string `yaml:"pretokenization"`
	NumWorkersPerGPU  int    `yaml:"num_workers_per_gpu"`
	ResizeShorterEdge int    `yaml:"resize_shorter_edge"`
	CropSize          int    `yaml:"crop_size"`
	RandomCrop        bool   `yaml:"random_crop"`
	RandomFlip        bool   `yaml:"random_flip"`
}

type OptimizerConfig struct {
	Name   string          `yaml:"name"`
	Params OptimizerParams `yaml:"params"`
}

type OptimizerParams struct {
	LearningRate float64 `yaml:"learning_rate"`
	Beta1        float64 `yaml:"beta1"`
	Beta2        float64 `yaml:"beta2"`
	WeightDecay  float64 `yaml:"weight_decay"`
}

type LRSchedulerConfig struct {
	Scheduler string            `yaml:"scheduler"`
	Params    LRSchedulerParams `yaml:"params"`
}

// LRSchedulerParams.LearningRate is written as an interpolation of the
// optimizer rate in run documents; after load the two are always equal.
type LRSchedulerParams struct {
	LearningRate float64 `yaml:"learning_rate"`
	WarmupSteps  int     `yaml:"warmup_steps"`
	EndLR        float64 `yaml:"end_lr"`
}

type TrainingConfig struct {
	PerGPUBatchSize           int     `yaml:"per_gpu_batch_size"`
	GradientAccumulationSteps int     `yaml:"gradient_accumulation_steps"`
	MixedPrecision            string  `yaml:"mixed_precision"`
	EnableTF32                bool    `yaml:"enable_tf32"`
	EnableWandb               bool    `yaml:"enable_wandb"`
	UseEMA                    bool    `yaml:"use_ema"`
	Seed                      int64   `yaml:"seed"`
	MaxTrainSteps             int     `yaml:"max_train_steps"`
	MaxGradNorm               float64 `yaml:"max_grad_norm"`
}

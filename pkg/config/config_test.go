package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const minimalDoc = `experiment:
  project: "demo"
  name: "run1"
  max_train_examples: 1000
  save_every: 100
  eval_every: 100
  generate_every: 100
  log_every: 10
model:
  vq_model:
    codebook_size: 16
    token_size: 8
    num_latent_tokens: 4
  generator:
    hidden_size: 32
    num_hidden_layers: 2
    num_attention_heads: 4
    image_seq_len: 4
    condition_num_classes: 10
dataset:
  params:
    num_workers_per_gpu: 2
    crop_size: 32
optimizer:
  name: adamw
  params:
    learning_rate: 1e-3
    beta1: 0.9
    beta2: 0.96
    weight_decay: 0.03
lr_scheduler:
  scheduler: cosine
  params:
    learning_rate: ${optimizer.params.learning_rate}
    warmup_steps: 10
    end_lr: 1e-5
training:
  per_gpu_batch_size: 4
  gradient_accumulation_steps: 1
  mixed_precision: bf16
  max_train_steps: 100
`

func TestLoadGeneratorConfig(t *testing.T) {
	cfg, err := Load("../../configs/generator.yaml")
	if err != nil {
		t.Fatalf("failed to load generator config: %v", err)
	}

	if cfg.Model.VQModel.CodebookSize != 4096 {
		t.Errorf("codebook_size = %d, want 4096", cfg.Model.VQModel.CodebookSize)
	}
	if cfg.Model.VQModel.TokenSize != 32 {
		t.Errorf("token_size = %d, want 32", cfg.Model.VQModel.TokenSize)
	}
	if cfg.Model.VQModel.NumLatentTokens != 273 {
		t.Errorf("num_latent_tokens = %d, want 273", cfg.Model.VQModel.NumLatentTokens)
	}
	if cfg.Training.MaxTrainSteps != 500000 {
		t.Errorf("max_train_steps = %d, want 500000", cfg.Training.MaxTrainSteps)
	}
	if cfg.LRScheduler.Params.WarmupSteps != 62500 {
		t.Errorf("warmup_steps = %d, want 62500", cfg.LRScheduler.Params.WarmupSteps)
	}
	if cfg.Optimizer.Params.LearningRate != 0.0004 {
		t.Errorf("learning_rate = %g, want 0.0004", cfg.Optimizer.Params.LearningRate)
	}
	if cfg.Experiment.MaxTrainExamples != 1281167 {
		t.Errorf("max_train_examples = %d, want 1281167 (digit separators)", cfg.Experiment.MaxTrainExamples)
	}
	if !cfg.Training.EnableTF32 || !cfg.Experiment.Resume {
		t.Errorf("True scalars not decoded as booleans")
	}
}

func TestInterpolationTracksOptimizerRate(t *testing.T) {
	for _, rate := range []string{"1e-3", "0.01", "5e-5", "0.5"} {
		doc := strings.Replace(minimalDoc, "learning_rate: 1e-3", "learning_rate: "+rate, 1)
		cfg, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("rate %s: %v", rate, err)
		}
		if cfg.LRScheduler.Params.LearningRate != cfg.Optimizer.Params.LearningRate {
			t.Errorf("rate %s: scheduler lr %g != optimizer lr %g",
				rate, cfg.LRScheduler.Params.LearningRate, cfg.Optimizer.Params.LearningRate)
		}
	}
}

func TestForwardReference(t *testing.T) {
	doc := strings.Replace(minimalDoc,
		`  name: "run1"`,
		`  name: "run1"
  output_dir: "runs/${training.mixed_precision}"`, 1)
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("forward reference rejected: %v", err)
	}
	if cfg.Experiment.OutputDir != "runs/bf16" {
		t.Errorf("output_dir = %q, want runs/bf16", cfg.Experiment.OutputDir)
	}
}

func TestMissingRequiredKey(t *testing.T) {
	doc := strings.Replace(minimalDoc, "    codebook_size: 16\n", "", 1)
	_, err := Parse([]byte(doc))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("missing codebook_size: got %v, want SchemaError", err)
	}
	if schemaErr.Path != "model.vq_model.codebook_size" {
		t.Errorf("error path = %q, want model.vq_model.codebook_size", schemaErr.Path)
	}
}

func TestUnknownKey(t *testing.T) {
	doc := minimalDoc + "  max_gard_norm: 1.0\n"
	_, err := Parse([]byte(doc))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("unknown key: got %v, want SchemaError", err)
	}
}

func TestWrongScalarType(t *testing.T) {
	doc := strings.Replace(minimalDoc, "codebook_size: 16", `codebook_size: "large"`, 1)
	_, err := Parse([]byte(doc))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("string codebook_size: got %v, want SchemaError", err)
	}
}

func TestBrokenReference(t *testing.T) {
	doc := strings.Replace(minimalDoc,
		"${optimizer.params.learning_rate}",
		"${optimizer.params.nonexistent}", 1)
	_, err := Parse([]byte(doc))
	var refErr *ReferenceError
	if !errors.As(err, &refErr) {
		t.Fatalf("broken reference: got %v, want ReferenceError", err)
	}
	if refErr.Target != "optimizer.params.nonexistent" {
		t.Errorf("error target = %q, want optimizer.params.nonexistent", refErr.Target)
	}
}

func TestReferenceCycle(t *testing.T) {
	doc := strings.Replace(minimalDoc,
		"learning_rate: 1e-3",
		"learning_rate: ${lr_scheduler.params.learning_rate}", 1)
	_, err := Parse([]byte(doc))
	var refErr *ReferenceError
	if !errors.As(err, &refErr) {
		t.Fatalf("reference cycle: got %v, want ReferenceError", err)
	}
}

func TestNegativeBatchSize(t *testing.T) {
	doc := strings.Replace(minimalDoc, "per_gpu_batch_size: 4", "per_gpu_batch_size: -1", 1)
	_, err := Parse([]byte(doc))
	var rangeErr *RangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("negative batch size: got %v, want RangeError", err)
	}
	if rangeErr.Path != "training.per_gpu_batch_size" {
		t.Errorf("error path = %q, want training.per_gpu_batch_size", rangeErr.Path)
	}
}

func TestBadMixedPrecision(t *testing.T) {
	doc := strings.Replace(minimalDoc, "mixed_precision: bf16", "mixed_precision: fp64", 1)
	_, err := Parse([]byte(doc))
	var rangeErr *RangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("fp64 precision: got %v, want RangeError", err)
	}
}

func TestIndependentSchedulerRate(t *testing.T) {
	doc := strings.Replace(minimalDoc,
		"learning_rate: ${optimizer.params.learning_rate}",
		"learning_rate: 2e-3", 1)
	_, err := Parse([]byte(doc))
	var rangeErr *RangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("diverging scheduler rate: got %v, want RangeError", err)
	}
}

func TestRoundTrip(t *testing.T) {
	cfg, err := Load("../../configs/generator.yaml")
	if err != nil {
		t.Fatalf("failed to load generator config: %v", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	reparsed, err := Parse(data)
	if err != nil {
		t.Fatalf("failed to re-parse marshaled config: %v", err)
	}

	if !reflect.DeepEqual(cfg, reparsed) {
		t.Errorf("round trip changed the config:\n%s", string(data))
	}
}

func TestSaveResolvesInterpolation(t *testing.T) {
	cfg, err := Parse([]byte(minimalDoc))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	path := filepath.Join(t.TempDir(), "resolved.yaml")
	if err := Save(cfg, path); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read back: %v", err)
	}
	if strings.Contains(string(data), "${") {
		t.Errorf("saved document still contains interpolation tokens:\n%s", data)
	}
}

func TestManagerLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(minimalDoc), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	m := NewManager(path)
	if err := m.LoadConfig(); err != nil {
		t.Fatalf("manager failed to load: %v", err)
	}
	if m.GetConfig() == nil {
		t.Fatal("manager returned nil config after load")
	}
	if m.GetConfig().Experiment.Project != "demo" {
		t.Errorf("project = %q, want demo", m.GetConfig().Experiment.Project)
	}
}

func TestEmptyDocument(t *testing.T) {
	_, err := Parse([]byte(""))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("empty document: got %v, want SchemaError", err)
	}
}

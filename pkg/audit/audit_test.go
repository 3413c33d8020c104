package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testDoc = `experiment:
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

func TestAuditOffline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(testDoc), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	auditor, err := NewAuditor(path)
	if err != nil {
		t.Fatalf("failed to create auditor: %v", err)
	}

	result, err := auditor.Run(context.Background(), Options{GPUs: 2})
	if err != nil {
		t.Fatalf("audit failed: %v", err)
	}

	if result.Plan == nil || result.Schedule == nil {
		t.Fatal("audit result missing plan or schedule")
	}
	if result.Plan.GPUs != 2 {
		t.Errorf("plan gpus = %d, want 2", result.Plan.GPUs)
	}
	if result.Registered || result.Indexed {
		t.Error("offline audit should not register or index anything")
	}
	if result.Params <= 0 {
		t.Errorf("param estimate = %d, want > 0", result.Params)
	}
}

func TestLintFlagsMissingSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(testDoc), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	auditor, err := NewAuditor(path)
	if err != nil {
		t.Fatalf("failed to create auditor: %v", err)
	}
	result, err := auditor.Run(context.Background(), Options{GPUs: 1})
	if err != nil {
		t.Fatalf("audit failed: %v", err)
	}

	var seedWarning, pretokWarning bool
	for _, w := range result.Warnings {
		if strings.Contains(w, "training.seed") {
			seedWarning = true
		}
		if strings.Contains(w, "pretokenization") {
			pretokWarning = true
		}
	}
	if !seedWarning {
		t.Errorf("expected a seed warning, got %v", result.Warnings)
	}
	if !pretokWarning {
		t.Errorf("expected a pretokenization warning, got %v", result.Warnings)
	}
}

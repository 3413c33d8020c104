package diff

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const baseDoc = `experiment:
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

func writeDoc(t *testing.T, dir, name, doc string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestCompareIdentical(t *testing.T) {
	dir := t.TempDir()
	a := writeDoc(t, dir, "a.yaml", baseDoc)
	b := writeDoc(t, dir, "b.yaml", baseDoc)

	changes, err := Compare(a, b)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("identical documents reported %d changes: %+v", len(changes), changes)
	}
}

func TestCompareChangedKeys(t *testing.T) {
	dir := t.TempDir()
	modified := strings.Replace(baseDoc, "learning_rate: 1e-3", "learning_rate: 2e-3", 1)
	modified = strings.Replace(modified, "per_gpu_batch_size: 4", "per_gpu_batch_size: 8", 1)

	a := writeDoc(t, dir, "a.yaml", baseDoc)
	b := writeDoc(t, dir, "b.yaml", modified)

	changes, err := Compare(a, b)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}

	got := make(map[string]Change)
	for _, c := range changes {
		got[c.Path] = c
	}

	// The interpolated scheduler rate moves with the optimizer rate.
	for _, path := range []string{
		"optimizer.params.learning_rate",
		"lr_scheduler.params.learning_rate",
		"training.per_gpu_batch_size",
	} {
		if _, ok := got[path]; !ok {
			t.Errorf("expected change at %s, got %+v", path, changes)
		}
	}
	if len(changes) != 3 {
		t.Errorf("got %d changes, want 3: %+v", len(changes), changes)
	}

	if c := got["training.per_gpu_batch_size"]; c.Old != "4" || c.New != "8" {
		t.Errorf("batch size change = %q -> %q, want 4 -> 8", c.Old, c.New)
	}
}

func TestCompareSorted(t *testing.T) {
	dir := t.TempDir()
	modified := strings.Replace(baseDoc, "warmup_steps: 10", "warmup_steps: 20", 1)
	modified = strings.Replace(modified, "codebook_size: 16", "codebook_size: 32", 1)

	a := writeDoc(t, dir, "a.yaml", baseDoc)
	b := writeDoc(t, dir, "b.yaml", modified)

	changes, err := Compare(a, b)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	for i := 1; i < len(changes); i++ {
		if changes[i-1].Path >= changes[i].Path {
			t.Errorf("changes not sorted: %s before %s", changes[i-1].Path, changes[i].Path)
		}
	}
}

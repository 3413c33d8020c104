package plan

import (
	"vqconf/pkg/config"
)

// Plan is the bookkeeping a training driver derives from a run document
// before the first step: how large an effective batch is, how many batches
// one pass over the data takes, and how many passes the step budget implies.
type Plan struct {
	GPUs int

	// Batch sizes.
	PerGPUBatchSize  int
	BatchSizeNoAccum int
	TotalBatchSize   int

	// Epoch bookkeeping. Not epoch-based training, just bookkeeping so the
	// same loop works across datasets and loaders.
	BatchesPerEpoch int
	UpdatesPerEpoch int
	TrainEpochs     int

	// Budgets over the whole run.
	MaxTrainSteps int
	SamplesSeen   int64
	TokenBudget   int64
}

func New(cfg *config.Config, gpus int) *Plan {
	if gpus < 1 {
		gpus = 1
	}
	t := cfg.Training

	batchNoAccum := t.PerGPUBatchSize * gpus
	totalBatch := batchNoAccum * t.GradientAccumulationSteps
	batchesPerEpoch := ceilDiv(cfg.Experiment.MaxTrainExamples, int64(batchNoAccum))
	updatesPerEpoch := ceilDiv(batchesPerEpoch, int64(t.GradientAccumulationSteps))
	epochs := ceilDiv(int64(t.MaxTrainSteps), updatesPerEpoch)

	samples := int64(totalBatch) * int64(t.MaxTrainSteps)

	return &Plan{
		GPUs:             gpus,
		PerGPUBatchSize:  t.PerGPUBatchSize,
		BatchSizeNoAccum: batchNoAccum,
		TotalBatchSize:   totalBatch,
		BatchesPerEpoch:  int(batchesPerEpoch),
		UpdatesPerEpoch:  int(updatesPerEpoch),
		TrainEpochs:      int(epochs),
		MaxTrainSteps:    t.MaxTrainSteps,
		SamplesSeen:      samples,
		TokenBudget:      samples * int64(cfg.Model.Generator.ImageSeqLen),
	}
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// ParamEstimate approximates the generator's parameter count from its
// dimensions: token/class/position embeddings, the standard 12h^2+13h per
// transformer block, and the output projection back onto the codebook.
func ParamEstimate(cfg *config.Config) int64 {
	g := cfg.Model.Generator
	vq := cfg.Model.VQModel

	h := int64(g.HiddenSize)
	embed := (int64(vq.CodebookSize) + int64(g.ConditionNumClasses) + int64(g.ImageSeqLen) + 1) * h
	perLayer := 12*h*h + 13*h
	head := h*int64(vq.CodebookSize) + int64(vq.CodebookSize)

	return embed + int64(g.NumHiddenLayers)*perLayer + head
}

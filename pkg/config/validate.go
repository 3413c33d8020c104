package config

import "fmt"

const mixedPrecisionDomain = "one of no, fp16, bf16"

func (c *Config) validate() error {
	e := &c.Experiment
	if e.MaxTrainExamples <= 0 {
		return &RangeError{Path: "experiment.max_train_examples", Value: e.MaxTrainExamples, Domain: "> 0"}
	}
	for _, iv := range []struct {
		path string
		val  int
	}{
		{"experiment.save_every", e.SaveEvery},
		{"experiment.eval_every", e.EvalEvery},
		{"experiment.generate_every", e.GenerateEvery},
		{"experiment.log_every", e.LogEvery},
	} {
		if iv.val <= 0 {
			return &RangeError{Path: iv.path, Value: iv.val, Domain: "> 0"}
		}
	}
	if e.LogGradNormEvery < 0 {
		return &RangeError{Path: "experiment.log_grad_norm_every", Value: e.LogGradNormEvery, Domain: ">= 0 (0 disables)"}
	}

	vq := &c.Model.VQModel
	if vq.CodebookSize < 2 {
		return &RangeError{Path: "model.vq_model.codebook_size", Value: vq.CodebookSize, Domain: ">= 2"}
	}
	if vq.TokenSize <= 0 {
		return &RangeError{Path: "model.vq_model.token_size", Value: vq.TokenSize, Domain: "> 0"}
	}
	if vq.NumLatentTokens <= 0 {
		return &RangeError{Path: "model.vq_model.num_latent_tokens", Value: vq.NumLatentTokens, Domain: "> 0"}
	}

	g := &c.Model.Generator
	if g.HiddenSize <= 0 {
		return &RangeError{Path: "model.generator.hidden_size", Value: g.HiddenSize, Domain: "> 0"}
	}
	if g.NumHiddenLayers <= 0 {
		return &RangeError{Path: "model.generator.num_hidden_layers", Value: g.NumHiddenLayers, Domain: "> 0"}
	}
	if g.NumAttentionHeads <= 0 {
		return &RangeError{Path: "model.generator.num_attention_heads", Value: g.NumAttentionHeads, Domain: "> 0"}
	}
	if g.HiddenSize%g.NumAttentionHeads != 0 {
		return &RangeError{
			Path:   "model.generator.hidden_size",
			Value:  g.HiddenSize,
			Domain: fmt.Sprintf("divisible by num_attention_heads (%d)", g.NumAttentionHeads),
		}
	}
	for _, dv := range []struct {
		path string
		val  float64
	}{
		{"model.generator.dropout", g.Dropout},
		{"model.generator.attn_drop", g.AttnDrop},
		{"model.generator.token_drop", g.TokenDrop},
		{"model.generator.class_label_dropout", g.ClassLabelDropout},
	} {
		if dv.val < 0 || dv.val > 1 {
			return &RangeError{Path: dv.path, Value: dv.val, Domain: "[0, 1]"}
		}
	}
	if g.ImageSeqLen <= 0 {
		return &RangeError{Path: "model.generator.image_seq_len", Value: g.ImageSeqLen, Domain: "> 0"}
	}
	if g.ConditionNumClasses <= 0 {
		return &RangeError{Path: "model.generator.condition_num_classes", Value: g.ConditionNumClasses, Domain: "> 0"}
	}
	if g.RandomizeTemperature < 0 {
		return &RangeError{Path: "model.generator.randomize_temperature", Value: g.RandomizeTemperature, Domain: ">= 0"}
	}

	d := &c.Dataset.Params
	if d.NumWorkersPerGPU < 0 {
		return &RangeError{Path: "dataset.params.num_workers_per_gpu", Value: d.NumWorkersPerGPU, Domain: ">= 0"}
	}
	if d.CropSize <= 0 {
		return &RangeError{Path: "dataset.params.crop_size", Value: d.CropSize, Domain: "> 0"}
	}
	if d.ResizeShorterEdge != 0 && d.ResizeShorterEdge < d.CropSize {
		return &RangeError{
			Path:   "dataset.params.resize_shorter_edge",
			Value:  d.ResizeShorterEdge,
			Domain: fmt.Sprintf(">= crop_size (%d)", d.CropSize),
		}
	}

	if c.Optimizer.Name != "adamw" {
		return &RangeError{Path: "optimizer.name", Value: c.Optimizer.Name, Domain: "adamw"}
	}
	op := &c.Optimizer.Params
	if op.LearningRate <= 0 {
		return &RangeError{Path: "optimizer.params.learning_rate", Value: op.LearningRate, Domain: "> 0"}
	}
	if op.Beta1 < 0 || op.Beta1 >= 1 {
		return &RangeError{Path: "optimizer.params.beta1", Value: op.Beta1, Domain: "[0, 1)"}
	}
	if op.Beta2 < 0 || op.Beta2 >= 1 {
		return &RangeError{Path: "optimizer.params.beta2", Value: op.Beta2, Domain: "[0, 1)"}
	}
	if op.WeightDecay < 0 {
		return &RangeError{Path: "optimizer.params.weight_decay", Value: op.WeightDecay, Domain: ">= 0"}
	}

	if c.LRScheduler.Scheduler != "cosine" {
		return &RangeError{Path: "lr_scheduler.scheduler", Value: c.LRScheduler.Scheduler, Domain: "cosine"}
	}
	sp := &c.LRScheduler.Params
	if sp.LearningRate != op.LearningRate {
		// Reachable only when the document assigns the rate independently
		// instead of interpolating the optimizer rate.
		return &RangeError{
			Path:   "lr_scheduler.params.learning_rate",
			Value:  sp.LearningRate,
			Domain: fmt.Sprintf("equal to optimizer.params.learning_rate (%g)", op.LearningRate),
		}
	}
	if sp.WarmupSteps < 0 {
		return &RangeError{Path: "lr_scheduler.params.warmup_steps", Value: sp.WarmupSteps, Domain: ">= 0"}
	}
	if sp.EndLR < 0 {
		return &RangeError{Path: "lr_scheduler.params.end_lr", Value: sp.EndLR, Domain: ">= 0"}
	}

	t := &c.Training
	if t.PerGPUBatchSize <= 0 {
		return &RangeError{Path: "training.per_gpu_batch_size", Value: t.PerGPUBatchSize, Domain: "> 0"}
	}
	if t.GradientAccumulationSteps < 1 {
		return &RangeError{Path: "training.gradient_accumulation_steps", Value: t.GradientAccumulationSteps, Domain: ">= 1"}
	}
	switch t.MixedPrecision {
	case "no", "fp16", "bf16":
	default:
		return &RangeError{Path: "training.mixed_precision", Value: t.MixedPrecision, Domain: mixedPrecisionDomain}
	}
	if t.MaxTrainSteps <= 0 {
		return &RangeError{Path: "training.max_train_steps", Value: t.MaxTrainSteps, Domain: "> 0"}
	}
	if sp.WarmupSteps > t.MaxTrainSteps {
		return &RangeError{
			Path:   "lr_scheduler.params.warmup_steps",
			Value:  sp.WarmupSteps,
			Domain: fmt.Sprintf("<= training.max_train_steps (%d)", t.MaxTrainSteps),
		}
	}
	if t.MaxGradNorm < 0 {
		return &RangeError{Path: "training.max_grad_norm", Value: t.MaxGradNorm, Domain: ">= 0 (0 disables clipping)"}
	}

	return nil
}

package schedule

import (
	"fmt"
	"math"

	"vqconf/pkg/config"
)

// Schedule is the warmup+cosine learning-rate curve a run will follow:
// linear ramp from zero to the base rate over the warmup steps, then cosine
// decay to the terminal rate at the step budget, held flat afterwards.
type Schedule struct {
	BaseLR      float64
	EndLR       float64
	WarmupSteps int
	TotalSteps  int
}

func New(cfg *config.Config) (*Schedule, error) {
	if cfg.LRScheduler.Scheduler != "cosine" {
		return nil, fmt.Errorf("unsupported scheduler: %s", cfg.LRScheduler.Scheduler)
	}
	return &Schedule{
		BaseLR:      cfg.LRScheduler.Params.LearningRate,
		EndLR:       cfg.LRScheduler.Params.EndLR,
		WarmupSteps: cfg.LRScheduler.Params.WarmupSteps,
		TotalSteps:  cfg.Training.MaxTrainSteps,
	}, nil
}

// At returns the learning rate applied at a given update step.
func (s *Schedule) At(step int) float64 {
	if step < 0 {
		step = 0
	}
	if s.WarmupSteps > 0 && step < s.WarmupSteps {
		return s.BaseLR * float64(step) / float64(s.WarmupSteps)
	}
	if step >= s.TotalSteps {
		return s.EndLR
	}
	decaySpan := float64(s.TotalSteps - s.WarmupSteps)
	if decaySpan <= 0 {
		return s.EndLR
	}
	progress := float64(step-s.WarmupSteps) / decaySpan
	cos := 0.5 * (1 + math.Cos(math.Pi*progress))
	return s.EndLR + (s.BaseLR-s.EndLR)*cos
}

// Preview samples the curve at a fixed number of evenly spaced steps,
// endpoints included.
func (s *Schedule) Preview(points int) []Point {
	if points < 2 {
		points = 2
	}
	out := make([]Point, 0, points)
	for i := 0; i < points; i++ {
		step := i * s.TotalSteps / (points - 1)
		out = append(out, Point{Step: step, LR: s.At(step)})
	}
	return out
}

type Point struct {
	Step int
	LR   float64
}

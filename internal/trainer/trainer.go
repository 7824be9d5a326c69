// Package trainer defines the boundary to the external training
// subprocess. The pipeline hands the subprocess a training-data
// directory and an output directory, and judges success purely by the
// files left behind.
package trainer

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Params are the training hyperparameters carried in the run manifest's
// trainingParams block.
type Params struct {
	Iters        int     `mapstructure:"iters"`
	BatchSize    int     `mapstructure:"batch_size"`
	LearningRate float64 `mapstructure:"learning_rate"`
	LoraRank     int     `mapstructure:"lora_rank"`
	LoraScale    float64 `mapstructure:"lora_scale"`
	LoraDropout  float64 `mapstructure:"lora_dropout"`
	NumLayers    int     `mapstructure:"num_layers"`
}

// ParamsFromManifest decodes a manifest trainingParams block.
func ParamsFromManifest(raw map[string]any) (Params, error) {
	var p Params
	if err := mapstructure.Decode(raw, &p); err != nil {
		return Params{}, fmt.Errorf("decoding training params: %w", err)
	}
	return p, nil
}

// ToManifest renders the params back into a manifest trainingParams block.
func (p Params) ToManifest() map[string]any {
	return map[string]any{
		"iters":         p.Iters,
		"batch_size":    p.BatchSize,
		"learning_rate": p.LearningRate,
		"lora_rank":     p.LoraRank,
		"lora_scale":    p.LoraScale,
		"lora_dropout":  p.LoraDropout,
		"num_layers":    p.NumLayers,
	}
}

// Job describes one training invocation at the file level.
type Job struct {
	// BaseModel is the model the stage starts from: the configured base
	// model for stage 1, or the stage-1 output for stage 2.
	BaseModel string
	// TrainingDataDir holds the train/valid JSONL files.
	TrainingDataDir string
	// OutputDir is where the subprocess must leave the adapter files.
	OutputDir string
	Params    Params
}

// Trainer runs one training job to completion.
type Trainer interface {
	Train(ctx context.Context, job Job) error
}

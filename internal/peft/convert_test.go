package peft

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulntune/vulntune/internal/safetensors"
)

func writeSourceAdapter(t *testing.T, dir string, tensors []safetensors.Tensor) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, safetensors.Write(filepath.Join(dir, SourceWeightsFile), tensors, nil))

	cfg := map[string]any{
		"model":         "mlx-community/Llama-3.2-3B-Instruct-4bit",
		"fine_tune_type": "lora",
		"num_layers":    16,
		"iters":         1000,
		"learning_rate": 1e-5,
		"batch_size":    4,
		"lora_parameters": map[string]any{
			"rank":    8,
			"scale":   20.0,
			"dropout": 0.05,
		},
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), data, 0644))
}

func sourceTensors() []safetensors.Tensor {
	return []safetensors.Tensor{
		{
			Name:  "model.layers.0.self_attn.q_proj.lora_a",
			Dtype: "F32",
			Shape: []int64{8, 16},
			Data:  []byte{1, 2, 3, 4, 5, 6, 7, 8},
		},
		{
			Name:  "model.layers.0.self_attn.q_proj.lora_b",
			Dtype: "F32",
			Shape: []int64{16, 8},
			Data:  []byte{9, 10, 11, 12},
		},
	}
}

func TestRenameTensor(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "a matrix",
			in:   "model.layers.0.self_attn.q_proj.lora_a",
			want: "base_model.model.layers.0.self_attn.q_proj.lora_A.weight",
		},
		{
			name: "b matrix",
			in:   "model.layers.0.self_attn.q_proj.lora_b",
			want: "base_model.model.layers.0.self_attn.q_proj.lora_B.weight",
		},
		{
			name: "deep module path preserved verbatim",
			in:   "model.layers.31.mlp.down_proj.lora_a",
			want: "base_model.model.layers.31.mlp.down_proj.lora_A.weight",
		},
		{
			name: "existing root prefix not doubled",
			in:   "base_model.model.layers.0.mlp.up_proj.lora_b",
			want: "base_model.model.layers.0.mlp.up_proj.lora_B.weight",
		},
		{
			name: "unrecognized suffix kept",
			in:   "model.embed_tokens.weight",
			want: "base_model.model.embed_tokens.weight",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renameTensor(tt.in))
		})
	}
}

func TestRenameTensor_MiddleSegmentUntouched(t *testing.T) {
	in := "model.layers.12.self_attn.v_proj.lora_a"
	out := renameTensor(in)

	middle := func(s, prefix, suffix string) string {
		s = s[len(prefix):]
		return s[:len(s)-len(suffix)]
	}
	assert.Equal(t,
		middle(in, "", sourceSuffixA),
		middle(out, rootPrefix, targetSuffixA))
}

func TestConvert(t *testing.T) {
	srcDir := filepath.Join(t.TempDir(), "adapters")
	dstDir := filepath.Join(t.TempDir(), "converted")
	writeSourceAdapter(t, srcDir, sourceTensors())

	conv := &Converter{}
	require.NoError(t, conv.Convert(srcDir, dstDir, "/models/Llama-3.2-3B-Instruct-4bit"))

	// Tensor content is bit-identical under the new names.
	sf, err := safetensors.Open(filepath.Join(dstDir, TargetWeightsFile))
	require.NoError(t, err)
	defer sf.Close() //nolint:errcheck

	a, err := sf.GetTensor("base_model.model.layers.0.self_attn.q_proj.lora_A.weight")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, a.Data)
	assert.Equal(t, []int64{8, 16}, a.Shape)
	assert.Equal(t, "F32", a.Dtype)

	b, err := sf.GetTensor("base_model.model.layers.0.self_attn.q_proj.lora_B.weight")
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 10, 11, 12}, b.Data)

	// Hyperparameters copied 1:1, fixed module targeting emitted.
	cfgBytes, err := os.ReadFile(filepath.Join(dstDir, ConfigFile))
	require.NoError(t, err)
	var cfg TargetConfig
	require.NoError(t, json.Unmarshal(cfgBytes, &cfg))
	assert.Equal(t, 8, cfg.R)
	assert.Equal(t, 20.0, cfg.LoraAlpha)
	assert.Equal(t, 0.05, cfg.LoraDropout)
	assert.Equal(t, "LORA", cfg.PeftType)
	assert.Equal(t, "CAUSAL_LM", cfg.TaskType)
	assert.Equal(t, targetModules, cfg.TargetModules)
	assert.Equal(t, "meta-llama/Llama-3.2-3B-Instruct", cfg.BaseModelNameOrPath)

	// Card carries provenance.
	card, err := os.ReadFile(filepath.Join(dstDir, CardFile))
	require.NoError(t, err)
	assert.Contains(t, string(card), "meta-llama/Llama-3.2-3B-Instruct")
	assert.Contains(t, string(card), "Rank: 8")
	assert.Contains(t, string(card), "Iterations: 1000")
}

func TestConvert_SourceNotFound(t *testing.T) {
	srcDir := t.TempDir()
	conv := &Converter{}

	err := conv.Convert(srcDir, filepath.Join(t.TempDir(), "out"), "model")
	require.ErrorIs(t, err, ErrSourceNotFound)
	assert.Contains(t, err.Error(), SourceWeightsFile)
}

func TestConvert_CorruptWeights(t *testing.T) {
	srcDir := t.TempDir()
	writeSourceAdapter(t, srcDir, sourceTensors())
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, SourceWeightsFile), []byte("garbage"), 0644))

	conv := &Converter{}
	err := conv.Convert(srcDir, filepath.Join(t.TempDir(), "out"), "model")
	var cerr *ConversionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "opening source weights", cerr.Op)
}

func TestConvert_CorruptConfig(t *testing.T) {
	srcDir := t.TempDir()
	writeSourceAdapter(t, srcDir, sourceTensors())
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, ConfigFile), []byte("{"), 0644))

	conv := &Converter{}
	err := conv.Convert(srcDir, filepath.Join(t.TempDir(), "out"), "model")
	var cerr *ConversionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "parsing source config", cerr.Op)
}

func TestConvertOrPassthrough(t *testing.T) {
	conv := &Converter{}

	// No adapter present: the input directory comes back untouched.
	srcDir := t.TempDir()
	dstDir := filepath.Join(t.TempDir(), "out")
	got, err := conv.ConvertOrPassthrough(srcDir, dstDir, "model")
	require.NoError(t, err)
	assert.Equal(t, srcDir, got)
	_, statErr := os.Stat(dstDir)
	assert.True(t, os.IsNotExist(statErr))

	// Adapter present: conversion happens and the output dir is returned.
	writeSourceAdapter(t, srcDir, sourceTensors())
	got, err = conv.ConvertOrPassthrough(srcDir, dstDir, "model")
	require.NoError(t, err)
	assert.Equal(t, dstDir, got)
}

func TestConvertOrPassthrough_OtherErrorsStillFatal(t *testing.T) {
	srcDir := t.TempDir()
	writeSourceAdapter(t, srcDir, sourceTensors())
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, ConfigFile), []byte("{"), 0644))

	conv := &Converter{}
	_, err := conv.ConvertOrPassthrough(srcDir, filepath.Join(t.TempDir(), "out"), "model")
	require.Error(t, err)
}

func TestConvert_Deterministic(t *testing.T) {
	srcDir := t.TempDir()
	writeSourceAdapter(t, srcDir, sourceTensors())
	conv := &Converter{}

	out1 := filepath.Join(t.TempDir(), "a")
	out2 := filepath.Join(t.TempDir(), "a") // same base name, same card title
	require.NoError(t, conv.Convert(srcDir, out1, "model"))
	require.NoError(t, conv.Convert(srcDir, out2, "model"))

	for _, name := range []string{TargetWeightsFile, ConfigFile, CardFile} {
		b1, err := os.ReadFile(filepath.Join(out1, name))
		require.NoError(t, err)
		b2, err := os.ReadFile(filepath.Join(out2, name))
		require.NoError(t, err)
		assert.Equal(t, b1, b2, name)
	}
}

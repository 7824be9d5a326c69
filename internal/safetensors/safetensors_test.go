package safetensors

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adapters.safetensors")

	tensors := []Tensor{
		{Name: "model.layers.0.self_attn.q_proj.lora_a", Dtype: "F32", Shape: []int64{8, 4}, Data: make([]byte, 8*4*4)},
		{Name: "model.layers.0.self_attn.q_proj.lora_b", Dtype: "F32", Shape: []int64{4, 8}, Data: []byte{1, 2, 3, 4}},
	}
	tensors[0].Data[0] = 0xAB

	require.NoError(t, Write(path, tensors, map[string]string{"format": "pt"}))

	sf, err := Open(path)
	require.NoError(t, err)
	defer sf.Close() //nolint:errcheck

	assert.Equal(t, []string{
		"model.layers.0.self_attn.q_proj.lora_a",
		"model.layers.0.self_attn.q_proj.lora_b",
	}, sf.ListTensors())
	assert.Equal(t, map[string]string{"format": "pt"}, sf.Metadata())

	a, err := sf.GetTensor("model.layers.0.self_attn.q_proj.lora_a")
	require.NoError(t, err)
	assert.Equal(t, "F32", a.Dtype)
	assert.Equal(t, []int64{8, 4}, a.Shape)
	assert.Equal(t, byte(0xAB), a.Data[0])
	assert.Len(t, a.Data, 8*4*4)

	b, err := sf.GetTensor("model.layers.0.self_attn.q_proj.lora_b")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, b.Data)
}

func TestWrite_Deterministic(t *testing.T) {
	dir := t.TempDir()
	tensors := []Tensor{
		{Name: "b", Dtype: "F16", Shape: []int64{2}, Data: []byte{1, 2, 3, 4}},
		{Name: "a", Dtype: "F16", Shape: []int64{2}, Data: []byte{5, 6, 7, 8}},
	}

	p1 := filepath.Join(dir, "one.safetensors")
	p2 := filepath.Join(dir, "two.safetensors")
	require.NoError(t, Write(p1, tensors, nil))

	// Same tensors in reverse declaration order must produce identical bytes.
	reversed := []Tensor{tensors[1], tensors[0]}
	require.NoError(t, Write(p2, reversed, nil))

	b1, err := os.ReadFile(p1)
	require.NoError(t, err)
	b2, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestWrite_DuplicateName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.safetensors")
	err := Write(path, []Tensor{
		{Name: "t", Dtype: "F32", Data: []byte{1}},
		{Name: "t", Dtype: "F32", Data: []byte{2}},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestOpen_MissingTensor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.safetensors")
	require.NoError(t, Write(path, nil, nil))

	sf, err := Open(path)
	require.NoError(t, err)
	defer sf.Close() //nolint:errcheck

	_, err = sf.GetTensor("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestOpen_CorruptHeaderLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.safetensors")

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], maxHeaderSize+1)
	require.NoError(t, os.WriteFile(path, lenBuf[:], 0644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header length")
}

func TestOpen_TruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trunc.safetensors")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0644))

	_, err := Open(path)
	require.Error(t, err)
}

func TestOpen_MalformedJSONHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badjson.safetensors")

	payload := []byte("{not json")
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	require.NoError(t, os.WriteFile(path, append(lenBuf[:], payload...), 0644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing safetensors header")
}

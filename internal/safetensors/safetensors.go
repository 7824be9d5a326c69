// Package safetensors reads and writes the safetensors container format:
// an 8-byte little-endian header length, a JSON header mapping tensor names
// to dtype/shape/offsets, then the raw tensor data.
//
// Tensor bytes are treated as opaque; the package never reinterprets
// numeric content, which is what makes format conversion lossless.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// maxHeaderSize bounds the JSON header to keep a corrupt length prefix from
// triggering a huge allocation.
const maxHeaderSize = 100 << 20

// metadataKey is the reserved header key for free-form string metadata.
const metadataKey = "__metadata__"

// Tensor is one named tensor: its dtype string (e.g. "F32", "BF16"), shape,
// and raw little-endian data bytes.
type Tensor struct {
	Name  string
	Dtype string
	Shape []int64
	Data  []byte
}

type headerEntry struct {
	Dtype       string  `json:"dtype"`
	Shape       []int64 `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// File is an open safetensors file. Tensor data is read on demand so large
// checkpoints are not held in memory wholesale.
type File struct {
	f        *os.File
	dataBase int64
	entries  map[string]headerEntry
	metadata map[string]string
}

// Open parses the header of the safetensors file at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var lenBuf [8]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading safetensors header length: %w", err)
	}
	headerLen := binary.LittleEndian.Uint64(lenBuf[:])
	if headerLen == 0 || headerLen > maxHeaderSize {
		f.Close()
		return nil, fmt.Errorf("implausible safetensors header length %d", headerLen)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading safetensors header: %w", err)
	}

	var rawHeader map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &rawHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("parsing safetensors header: %w", err)
	}

	sf := &File{
		f:        f,
		dataBase: int64(8 + headerLen),
		entries:  make(map[string]headerEntry, len(rawHeader)),
	}
	for name, raw := range rawHeader {
		if name == metadataKey {
			if err := json.Unmarshal(raw, &sf.metadata); err != nil {
				f.Close()
				return nil, fmt.Errorf("parsing safetensors metadata: %w", err)
			}
			continue
		}
		var entry headerEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			f.Close()
			return nil, fmt.Errorf("parsing safetensors entry %q: %w", name, err)
		}
		if entry.DataOffsets[1] < entry.DataOffsets[0] || entry.DataOffsets[0] < 0 {
			f.Close()
			return nil, fmt.Errorf("tensor %q has invalid data offsets [%d, %d]", name, entry.DataOffsets[0], entry.DataOffsets[1])
		}
		sf.entries[name] = entry
	}
	return sf, nil
}

// ListTensors returns all tensor names in sorted order.
func (sf *File) ListTensors() []string {
	names := make([]string, 0, len(sf.entries))
	for name := range sf.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metadata returns the free-form header metadata, or nil if absent.
func (sf *File) Metadata() map[string]string {
	return sf.metadata
}

// GetTensor reads the named tensor, including its raw data bytes.
func (sf *File) GetTensor(name string) (Tensor, error) {
	entry, ok := sf.entries[name]
	if !ok {
		return Tensor{}, fmt.Errorf("tensor %q not found", name)
	}

	data := make([]byte, entry.DataOffsets[1]-entry.DataOffsets[0])
	if _, err := sf.f.ReadAt(data, sf.dataBase+entry.DataOffsets[0]); err != nil {
		return Tensor{}, fmt.Errorf("reading tensor %q: %w", name, err)
	}
	return Tensor{
		Name:  name,
		Dtype: entry.Dtype,
		Shape: append([]int64(nil), entry.Shape...),
		Data:  data,
	}, nil
}

// Close releases the underlying file handle.
func (sf *File) Close() error {
	return sf.f.Close()
}

// Write serializes tensors to path. Names are emitted in sorted order with
// contiguous data offsets, so identical inputs always produce identical
// bytes.
func Write(path string, tensors []Tensor, metadata map[string]string) error {
	sorted := make([]Tensor, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	header := make(map[string]any, len(sorted)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}

	var offset int64
	for _, t := range sorted {
		if _, dup := header[t.Name]; dup {
			return fmt.Errorf("duplicate tensor name %q", t.Name)
		}
		shape := t.Shape
		if shape == nil {
			shape = []int64{}
		}
		header[t.Name] = headerEntry{
			Dtype:       t.Dtype,
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + int64(len(t.Data))},
		}
		offset += int64(len(t.Data))
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encoding safetensors header: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerBytes)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("writing header length: %w", err)
	}
	if _, err := f.Write(headerBytes); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, t := range sorted {
		if _, err := f.Write(t.Data); err != nil {
			return fmt.Errorf("writing tensor %q: %w", t.Name, err)
		}
	}
	return f.Close()
}

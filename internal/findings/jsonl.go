package findings

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// ReadJSONL loads normalized findings from a JSON-lines file, one finding
// per line. Blank lines are skipped; severities are normalized on read so
// downstream counts never see raw scanner spellings.
func ReadJSONL(path string) ([]Finding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var out []Finding
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var fd Finding
		if err := json.Unmarshal(raw, &fd); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		fd.Severity = NormalizeSeverity(string(fd.Severity))
		out = append(out, fd)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}

// DatasetStats renders findings into the manifest's datasetStats shape.
func DatasetStats(fs []Finding) map[string]any {
	bySeverity := make(map[string]int)
	for sev, n := range CountBySeverity(fs) {
		bySeverity[string(sev)] = n
	}
	tools := make(map[string]int)
	for _, f := range fs {
		if f.Tool != "" {
			tools[f.Tool]++
		}
	}
	return map[string]any{
		"totalFindings": len(fs),
		"bySeverity":    bySeverity,
		"byTool":        tools,
	}
}

package peft

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// cardData feeds the generated model card.
type cardData struct {
	AdapterName  string
	BaseModel    string
	Rank         int
	Alpha        float64
	Dropout      float64
	Iters        int
	LearningRate float64
}

var cardTemplate = template.Must(template.New("card").Parse(`---
base_model: {{.BaseModel}}
library_name: peft
tags:
- lora
- vulntune
---

# {{.AdapterName}}

LoRA adapter fine-tuned from ` + "`{{.BaseModel}}`" + ` on scanner-derived
vulnerability remediation data.

## Training configuration

- Rank: {{.Rank}}
- Alpha: {{.Alpha}}
- Dropout: {{.Dropout}}
- Iterations: {{.Iters}}
- Learning rate: {{.LearningRate}}
`))

// cardRequiredLabels are the provenance fields every generated card must
// carry; verifyCard checks for them after conversion.
var cardRequiredLabels = []string{"Rank", "Alpha", "Dropout", "Iterations", "Learning rate"}

func writeCard(path string, data cardData) error {
	var buf bytes.Buffer
	if err := cardTemplate.Execute(&buf, data); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// verifyCard parses the generated markdown and confirms the card still
// carries a title and every required provenance label.
func verifyCard(source []byte) error {
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var hasHeading bool
	var textParts []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			hasHeading = true
		case *ast.Text:
			textParts = append(textParts, string(v.Segment.Value(source)))
		}
		return ast.WalkContinue, nil
	})

	if !hasHeading {
		return fmt.Errorf("model card has no heading")
	}
	joined := strings.Join(textParts, "\n")
	for _, label := range cardRequiredLabels {
		if !strings.Contains(joined, label) {
			return fmt.Errorf("model card is missing the %q field", label)
		}
	}
	return nil
}

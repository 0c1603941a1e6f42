package workflow

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/orchestr8/engine/pkg/decision"
	"github.com/orchestr8/engine/pkg/schema"
)

// conservativeClassification is the fallback returned whenever analysis
// cannot run or its output cannot be parsed.
func conservativeClassification() schema.Classification {
	return schema.Classification{
		Type:       schema.TaskTypeFeature,
		Complexity: schema.ComplexityModerate,
		Confidence: 0,
	}
}

var fencedClassificationJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// analyze asks the provider to classify prompt, tolerating the same
// fenced/bare JSON drift the decision engine's reasoning fallback
// tolerates.
func (e *Engine) analyze(ctx context.Context, prompt string) (schema.Classification, error) {
	if e.provider == nil {
		return conservativeClassification(), nil
	}

	resp, err := e.provider.Complete(ctx, classificationRequest(prompt))
	if err != nil {
		return conservativeClassification(), err
	}

	cls, ok := parseClassification(resp.Content)
	if !ok {
		return conservativeClassification(), nil
	}
	cls.Clamp()
	return cls, nil
}

func classificationRequest(prompt string) decision.ProviderRequest {
	return decision.ProviderRequest{
		System: "Classify the following task. Respond with a JSON object with fields: " +
			"type (feature|bugfix|refactor|research|deployment|config), " +
			"complexity (trivial|simple|moderate|complex|epic), " +
			"requires_design (bool), requires_architecture (bool), requires_compliance (bool), " +
			"confidence (0..1).",
		Messages: []decision.ProviderMessage{{Role: "user", Content: prompt}},
	}
}

func parseClassification(content string) (schema.Classification, bool) {
	jsonText := content
	if m := fencedClassificationJSON.FindStringSubmatch(content); m != nil {
		jsonText = m[1]
	} else {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end < 0 || end < start {
			return schema.Classification{}, false
		}
		jsonText = content[start : end+1]
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return schema.Classification{}, false
	}

	var cls schema.Classification
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cls,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
		TagName:          "json",
	})
	if err != nil {
		return schema.Classification{}, false
	}
	if err := dec.Decode(raw); err != nil {
		return schema.Classification{}, false
	}
	return cls, true
}

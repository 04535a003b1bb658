package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrNoJSONObject = errors.New("no JSON object in model output")

var validate = validator.New()

// ExtractJSON strips markdown code fences and returns the outermost JSON object.
func ExtractJSON(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		lines = lines[1:]
		if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
			lines = lines[:n-1]
		}
		text = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", ErrNoJSONObject
	}
	return text[start : end+1], nil
}

// profileOutput is what the profile prompt asks for.
type profileOutput struct {
	Name          string `json:"name" validate:"omitempty,max=200"`
	PreferredName string `json:"preferred_name" validate:"omitempty,max=100"`
	Birthday      string `json:"birthday" validate:"omitempty,datetime=2006-01-02"`
}

type pointOutput struct {
	Confidence      float64                `json:"confidence" validate:"gte=0,lte=1"`
	ExtractedPoints []string               `json:"extracted_points" validate:"dive,required"`
	RelevantQuotes  []string               `json:"relevant_quotes" validate:"dive,required"`
	StructuredData  map[string]interface{} `json:"structured_data"`
}

func parseProfile(raw string) (profileOutput, error) {
	var out profileOutput
	body, err := ExtractJSON(raw)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return out, fmt.Errorf("decode profile output: %w", err)
	}
	out.Name = strings.TrimSpace(out.Name)
	out.PreferredName = strings.TrimSpace(out.PreferredName)
	out.Birthday = strings.TrimSpace(out.Birthday)
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("invalid profile output: %w", err)
	}
	return out, nil
}

func parsePoints(raw string) (map[string]pointOutput, error) {
	body, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	out := map[string]pointOutput{}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("decode point output: %w", err)
	}
	for slug, p := range out {
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("invalid output for point %s: %w", slug, err)
		}
	}
	return out, nil
}

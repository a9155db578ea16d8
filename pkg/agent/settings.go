package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/neuroplastio/rmi4touch/rmi4/controller"
)

// Setting is one leaf of the device config rendered as a registry-style
// key, e.g. `Device\InterruptEnable`.
type Setting struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func Settings(cfg controller.Config) ([]Setting, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(b, &tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	var settings []Setting
	flatten(nil, tree, &settings)
	sort.Slice(settings, func(i, j int) bool {
		return settings[i].Key < settings[j].Key
	})
	return settings, nil
}

func flatten(path []string, v any, out *[]Setting) {
	m, ok := v.(map[string]any)
	if !ok {
		*out = append(*out, Setting{Key: strings.Join(path, `\`), Value: v})
		return
	}
	for k, child := range m {
		flatten(append(path[:len(path):len(path)], strcase.ToCamel(k)), child, out)
	}
}

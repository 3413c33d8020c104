package diff

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"vqconf/pkg/config"
)

// Change is one dotted key whose value differs between two run documents.
// Old or New is empty when the key only exists on one side.
type Change struct {
	Path string
	Old  string
	New  string
}

// Compare loads two run documents and reports every key that was added,
// removed, or changed, by resolved value. Both documents must validate.
func Compare(pathA, pathB string) ([]Change, error) {
	a, err := config.Load(pathA)
	if err != nil {
		return nil, err
	}
	b, err := config.Load(pathB)
	if err != nil {
		return nil, err
	}
	return CompareConfigs(a, b)
}

func CompareConfigs(a, b *config.Config) ([]Change, error) {
	flatA, err := flatten(a)
	if err != nil {
		return nil, err
	}
	flatB, err := flatten(b)
	if err != nil {
		return nil, err
	}

	paths := make(map[string]bool)
	for p := range flatA {
		paths[p] = true
	}
	for p := range flatB {
		paths[p] = true
	}

	var changes []Change
	for p := range paths {
		oldVal, inA := flatA[p]
		newVal, inB := flatB[p]
		if inA && inB && oldVal == newVal {
			continue
		}
		changes = append(changes, Change{Path: p, Old: oldVal, New: newVal})
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
	return changes, nil
}

func flatten(cfg *config.Config) (map[string]string, error) {
	data, err := config.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	flattenInto(out, "", tree)
	return out, nil
}

func flattenInto(out map[string]string, prefix string, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, child := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenInto(out, key, child)
		}
	case []interface{}:
		for i, child := range val {
			flattenInto(out, fmt.Sprintf("%s.%d", prefix, i), child)
		}
	default:
		out[prefix] = fmt.Sprintf("%v", val)
	}
}

package config

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var refPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)*)\}`)

var groupedIntPattern = regexp.MustCompile(`^[+-]?[0-9][0-9_]*$`)

// normalizeScalars rewrites plain scalars that yaml.v3 leaves as strings but
// the run-document dialect treats as integers: digit-grouped values like
// 1_281_167. Quoted scalars are left alone.
func normalizeScalars(n *yaml.Node) {
	switch n.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		for _, child := range n.Content {
			normalizeScalars(child)
		}
	case yaml.ScalarNode:
		if n.Style != 0 || n.Tag != "!!str" {
			return
		}
		if strings.Contains(n.Value, "_") && groupedIntPattern.MatchString(n.Value) {
			n.Value = strings.ReplaceAll(n.Value, "_", "")
			n.Tag = "!!int"
		}
	}
}

// lookup descends a document mapping by dotted path. The second return is
// the joined path of the deepest node reached, for error reporting.
func lookup(doc *yaml.Node, path string) (*yaml.Node, bool) {
	node := doc
	for _, part := range strings.Split(path, ".") {
		if node.Kind != yaml.MappingNode {
			return nil, false
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == part {
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return nil, false
		}
		node = next
	}
	return node, true
}

type resolver struct {
	doc    *yaml.Node
	active map[string]bool
}

// resolveRefs replaces every ${a.b.c} interpolation in the document with the
// value at that dotted path. References are resolved against the fully
// parsed document, so forward references are legal; chains of references
// resolve recursively and cycles fail with a ReferenceError.
func resolveRefs(doc *yaml.Node) error {
	r := &resolver{doc: doc, active: make(map[string]bool)}
	return r.walk(doc, "")
}

func (r *resolver) walk(n *yaml.Node, path string) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			if err := r.walk(n.Content[i+1], joinPath(path, n.Content[i].Value)); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for _, child := range n.Content {
			if err := r.walk(child, path); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		return r.resolveScalar(n, path)
	}
	return nil
}

func (r *resolver) resolveScalar(n *yaml.Node, path string) error {
	if !strings.Contains(n.Value, "${") {
		return nil
	}
	if r.active[path] {
		return &ReferenceError{Path: path, Target: n.Value, Reason: "interpolation cycle"}
	}
	r.active[path] = true
	defer delete(r.active, path)

	for {
		m := refPattern.FindStringSubmatchIndex(n.Value)
		if m == nil {
			return nil
		}
		target := n.Value[m[2]:m[3]]
		targetNode, ok := lookup(r.doc, target)
		if !ok {
			return &ReferenceError{Path: path, Target: target, Reason: "path does not resolve"}
		}
		if targetNode.Kind != yaml.ScalarNode {
			return &ReferenceError{Path: path, Target: target, Reason: "target is not a scalar"}
		}
		if err := r.resolveScalar(targetNode, target); err != nil {
			return err
		}
		if m[0] == 0 && m[1] == len(n.Value) {
			// Whole-scalar reference keeps the target's type.
			n.Value = targetNode.Value
			n.Tag = targetNode.Tag
			n.Style = targetNode.Style
			return nil
		}
		n.Value = n.Value[:m[0]] + targetNode.Value + n.Value[m[1]:]
		n.Tag = "!!str"
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

// Every run document must carry these keys; presence is checked on the node
// tree so that an absent key is distinguishable from an explicit zero.
var requiredPaths = []string{
	"experiment.project",
	"experiment.name",
	"experiment.max_train_examples",
	"experiment.save_every",
	"experiment.eval_every",
	"experiment.generate_every",
	"experiment.log_every",
	"model.vq_model.codebook_size",
	"model.vq_model.token_size",
	"model.vq_model.num_latent_tokens",
	"model.generator.hidden_size",
	"model.generator.num_hidden_layers",
	"model.generator.num_attention_heads",
	"model.generator.image_seq_len",
	"model.generator.condition_num_classes",
	"dataset.params.num_workers_per_gpu",
	"dataset.params.crop_size",
	"optimizer.name",
	"optimizer.params.learning_rate",
	"lr_scheduler.scheduler",
	"lr_scheduler.params.learning_rate",
	"lr_scheduler.params.warmup_steps",
	"lr_scheduler.params.end_lr",
	"training.per_gpu_batch_size",
	"training.gradient_accumulation_steps",
	"training.mixed_precision",
	"training.max_train_steps",
}

func checkRequired(doc *yaml.Node) error {
	for _, path := range requiredPaths {
		node, ok := lookup(doc, path)
		if !ok {
			return &SchemaError{Path: path, Reason: "required key is missing"}
		}
		if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
			return &SchemaError{Path: path, Reason: "required key is null"}
		}
	}
	return nil
}

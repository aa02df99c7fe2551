package backend

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Load reads a grading document from path and builds its RunnerConfig.
// ".yaml" and ".yml" files are decoded as YAML; everything else as TOML.
func Load(path string, opts Options) (RunnerConfig, error) {
	opts = opts.withDefaults()
	data, err := afero.ReadFile(opts.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("read grading document: %w", err)
	}
	doc, err := ParseDocument(data, formatOf(path))
	if err != nil {
		return nil, err
	}
	return FromDocument(doc, opts)
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "toml"
	}
}

// ParseDocument decodes raw document bytes into generic values.
func ParseDocument(data []byte, format string) (map[string]any, error) {
	doc := make(map[string]any)
	switch format {
	case "toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, documentError("invalid TOML: %v", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, documentError("invalid YAML: %v", err)
		}
	default:
		return nil, documentError("unsupported document format %q", format)
	}
	return doc, nil
}

// FromDocument dispatches on the single top-level section of doc.
func FromDocument(doc map[string]any, opts Options) (RunnerConfig, error) {
	if len(doc) != 1 {
		keys := make([]string, 0, len(doc))
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, documentError("the document should have exactly one section, found %d %v", len(doc), keys)
	}
	opts = opts.withDefaults()

	var kind string
	var body any
	for k, v := range doc {
		kind, body = k, v
	}
	values, ok := body.(map[string]any)
	if !ok {
		return nil, documentError("section %q should be a table", kind)
	}
	s := section{backend: kind, values: values}

	switch Kind(kind) {
	case JavaBackend:
		return newJava(s, opts)
	case PythonBackend:
		return newPython(s, opts)
	case CommandBackend:
		return newCommand(s, opts)
	default:
		return nil, documentError("unrecognized config type: %s", kind)
	}
}

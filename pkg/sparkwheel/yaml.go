package sparkwheel

import (
	"fmt"
	"os"

	"github.com/geofffranks/simpleyaml"
	"github.com/geofffranks/yaml"
)

// LoadYAML parses data as a single YAML document and normalizes it to
// the map[string]interface{}/[]interface{}/scalar shape the rest of
// sparkwheel expects. An empty document yields an empty mapping. If
// strictKeys is set, a mapping anywhere in the document that repeats
// the same key twice fails with a ParseError (spec.md §6's
// "strict-keys" toggle).
//
// Grounded directly on cmd/graft/main.go's parseYAML: simpleyaml is
// the teacher's own choice for "parse bytes, then assert the root is
// a map" with a clear error when it isn't.
func LoadYAML(data []byte, strictKeys bool) (map[string]interface{}, error) {
	if strictKeys {
		if err := checkDuplicateKeys(data); err != nil {
			return nil, err
		}
	}

	y, err := simpleyaml.NewYaml(data)
	if err != nil {
		return nil, NewParseError("parsing YAML", err)
	}

	empty, _ := simpleyaml.NewYaml([]byte{})
	if *y == *empty {
		return map[string]interface{}{}, nil
	}

	doc, err := y.Map()
	if err != nil {
		return nil, NewParseError("root of YAML document is not a mapping", err)
	}

	normalized := NormalizeNode(doc)
	m, ok := normalized.(map[string]interface{})
	if !ok {
		return nil, NewParseError("root of YAML document is not a mapping", nil)
	}
	return m, nil
}

// LoadYAMLFile reads and parses file on disk.
func LoadYAMLFile(file string, strictKeys bool) (map[string]interface{}, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, NewParseError("reading "+file, err)
	}
	return LoadYAML(data, strictKeys)
}

// checkDuplicateKeys decodes data as an ordered yaml.MapSlice (rather
// than straight into a map, which would silently let a later duplicate
// key win) and walks it looking for a mapping that repeats a key.
// Grounded on the same geofffranks/yaml fork the merger already uses
// for override-literal decoding; MapSlice/MapItem is that library's
// (and its upstream go-yaml.v2's) standard mechanism for observing a
// document's original key order and duplicates before Go's map
// semantics erase them.
func checkDuplicateKeys(data []byte) error {
	var root yaml.MapSlice
	if err := yaml.Unmarshal(data, &root); err != nil {
		// Not a top-level mapping (e.g. a scalar or sequence document,
		// or empty input) - nothing to check here; LoadYAML's own Map()
		// assertion reports the real shape error.
		return nil
	}
	return walkForDuplicateKeys(root, "")
}

func walkForDuplicateKeys(node interface{}, path string) error {
	switch v := node.(type) {
	case yaml.MapSlice:
		seen := map[string]bool{}
		for _, item := range v {
			keyText := fmt.Sprintf("%v", item.Key)
			if seen[keyText] {
				loc := keyText
				if path != "" {
					loc = path + "::" + keyText
				}
				return NewParseError(fmt.Sprintf("duplicate key %q in mapping", loc), nil)
			}
			seen[keyText] = true
			childPath := keyText
			if path != "" {
				childPath = path + "::" + keyText
			}
			if err := walkForDuplicateKeys(item.Value, childPath); err != nil {
				return err
			}
		}
	case []interface{}:
		for i, child := range v {
			if err := walkForDuplicateKeys(child, fmt.Sprintf("%s::%d", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// newDefaultFileLoader builds a FileLoader that reads `%FILE::ID`
// sources from the local filesystem, applying the same strictKeys
// policy the Engine itself was configured with.
func newDefaultFileLoader(strictKeys bool) FileLoader {
	return func(file string) (Node, error) {
		m, err := LoadYAMLFile(file, strictKeys)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

package sparkwheel

import "fmt"

// NormalizeNode converts a tree produced by a yaml.v2-style decoder
// (map[interface{}]interface{} at every mapping level) into the
// map[string]interface{}/[]interface{}/scalar shape the rest of
// sparkwheel (path.Descend, path.Traverse, the merger, the graph) is
// written against.
//
// Grounded on the teacher's document.go NewDocumentFromInterface,
// which performs the same map[interface{}]interface{} conversion at
// the document root; here it is applied recursively so every nested
// mapping is normalized too, since sparkwheel's graph flattens the
// whole tree rather than keeping one opaque root document.
func NormalizeNode(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[stringifyKey(k)] = NormalizeNode(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = NormalizeNode(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = NormalizeNode(val)
		}
		return out
	default:
		return v
	}
}

func stringifyKey(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", k)
}

package sparkwheel

import (
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/path"
)

// Prune removes the item at each of the given identifiers from an
// already-resolved tree, returning a new tree with the originals left
// untouched. Only mapping entries are removed: an identifier whose
// parent is a sequence is left in place. Grounded on the teacher's document.Prune, generalized
// from a single dotted-path key to sparkwheel's own `::` identifier
// grammar and re-used path.Descend navigation.
func Prune(tree map[string]interface{}, identifiers ...string) (map[string]interface{}, error) {
	out := cloneTree(tree)
	for _, text := range identifiers {
		id, err := path.Parse(text)
		if err != nil {
			return nil, err
		}
		if err := pruneOne(out, id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func pruneOne(tree map[string]interface{}, id path.Identifier) error {
	last, ok := id.Last()
	if !ok {
		return nil
	}
	parent, err := path.Descend(tree, id.Parent())
	if err != nil {
		if _, notFound := err.(path.NotFoundError); notFound {
			return nil
		}
		return err
	}
	switch p := parent.(type) {
	case map[string]interface{}:
		delete(p, last.Key)
	case []interface{}:
		// sequence elements are not pruned; the identifier is
		// silently ignored.
		return nil
	}
	return nil
}

// CherryPick returns a new tree containing only the items named by
// identifiers (and their ancestors), discarding everything else.
// Grounded on the teacher's document.CherryPick.
func CherryPick(tree map[string]interface{}, identifiers ...string) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	for _, text := range identifiers {
		id, err := path.Parse(text)
		if err != nil {
			return nil, err
		}
		val, err := path.Descend(tree, id)
		if err != nil {
			return nil, err
		}
		graftInto(out, id, val)
	}
	return out, nil
}

func graftInto(root map[string]interface{}, id path.Identifier, value interface{}) {
	if len(id.Segments) == 0 {
		return
	}
	cur := root
	for i, seg := range id.Segments {
		if i == len(id.Segments)-1 {
			cur[seg.Key] = value
			return
		}
		next, ok := cur[seg.Key].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[seg.Key] = next
		}
		cur = next
	}
}

func cloneTree(tree map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(tree))
	for k, v := range tree {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneTree(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

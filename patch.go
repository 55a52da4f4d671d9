package atom

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/goliatone/go-atom/internal/tree"
)

// PatchAt returns a mutator applying an RFC 6902 JSON Patch to the subtree at
// path. Parts of the subtree the patch leaves equal keep their identity.
func PatchAt(path Path, patch []byte) Mutator {
	return func(d *Draft) error {
		ops, err := jsonpatch.DecodePatch(patch)
		if err != nil {
			return fmt.Errorf("atom: decode patch: %w", err)
		}
		return applyJSON(d, path, func(doc []byte) ([]byte, error) {
			return ops.Apply(doc)
		})
	}
}

// MergeAt returns a mutator applying an RFC 7396 JSON Merge Patch to the
// subtree at path.
func MergeAt(path Path, merge []byte) Mutator {
	return func(d *Draft) error {
		return applyJSON(d, path, func(doc []byte) ([]byte, error) {
			return jsonpatch.MergePatch(doc, merge)
		})
	}
}

func applyJSON(d *Draft, path Path, apply func(doc []byte) ([]byte, error)) error {
	current, ok := d.Lookup(path)
	if !ok || current == nil {
		current = map[string]any{}
	}
	doc, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("atom: encode %q: %w", path.String(), err)
	}
	out, err := apply(doc)
	if err != nil {
		return fmt.Errorf("atom: patch %q: %w", path.String(), err)
	}
	var next any
	if err := json.Unmarshal(out, &next); err != nil {
		return fmt.Errorf("atom: decode %q: %w", path.String(), err)
	}
	return d.Set(path, tree.Share(current, next))
}

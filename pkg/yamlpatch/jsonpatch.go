package yamlpatch

import (
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/liliang-cn/deploytest/pkg/types"
)

// ApplyJSONPatch applies an RFC 6902 patch to the whole document. The
// document is left unchanged when any operation fails.
func (p *Patcher) ApplyJSONPatch(patch []byte) error {
	ops, err := jsonpatch.DecodePatch(patch)
	if err != nil {
		return fmt.Errorf("%w: invalid JSON patch: %v", types.ErrInvalidArguments, err)
	}

	current, err := MarshalJSON(p.doc)
	if err != nil {
		return err
	}

	patched, err := ops.Apply(current)
	if err != nil {
		return types.NewPatchError("json-patch", "", types.ErrPath, err.Error())
	}

	// Decoding JSON through the YAML decoder keeps integers as ints.
	doc, keys, err := decodeDocument(patched)
	if err != nil {
		return types.NewParseError("json-patch result", err)
	}

	p.doc = doc
	p.keys = keys
	return nil
}

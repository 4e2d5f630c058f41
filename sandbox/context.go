package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrContextSerialization indicates a context value that cannot be
// serialized for injection. The script never runs in that case.
var ErrContextSerialization = errors.New("context serialization failure")

// InjectContext prepends a preamble to code that deserializes the context
// mapping and binds each key as a top-level variable visible to the rest
// of the script. An empty context returns code unchanged.
//
// Injected variables are convenience bindings only; the script keeps the
// full ambient capability of its process.
func InjectContext(code string, context map[string]any) (string, error) {
	if len(context) == 0 {
		return code, nil
	}

	payload, err := json.Marshal(context)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrContextSerialization, err)
	}

	var preamble strings.Builder
	preamble.WriteString("import json\n")
	// strconv.Quote produces escapes that are also valid in Python string
	// literals, so the payload can be embedded verbatim.
	fmt.Fprintf(&preamble, "_context = json.loads(%s)\n", strconv.Quote(string(payload)))
	preamble.WriteString("globals().update(_context)\n\n")
	preamble.WriteString(code)

	return preamble.String(), nil
}

package descriptor

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	cuetoken "cuelang.org/go/cue/token"
)

// registrySchema constrains registry files. Each descriptor is either a
// bare string or a struct with text and an optional description.
const registrySchema = `
#Entry: string | {
	text!:        string
	description?: string
}
descriptors: [...#Entry]
`

// LoadError reports a registry file that cannot be loaded.
type LoadError struct {
	Path    string
	Message string
	Pos     cuetoken.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// LoadRegistry reads trusted descriptors from a CUE file, or from every
// CUE file of the package in a directory:
//
//	descriptors: [
//	    {text: "QUERY vm-info WHERE 'agentId' = ?s", description: "VMs of one agent"},
//	    "QUERY-COUNT vm-info",
//	]
func LoadRegistry(path string, opts ...Option) (*Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("registry not found: %v", err)}
	}

	ctx := cuecontext.New()
	var value cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, &LoadError{Path: path, Message: "no CUE instances loaded"}
		}
		if instances[0].Err != nil {
			return nil, &LoadError{Path: path, Message: fmt.Sprintf("loading CUE files: %v", instances[0].Err)}
		}
		value = ctx.BuildInstance(instances[0])
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Path: path, Message: fmt.Sprintf("reading registry: %v", err)}
		}
		value = ctx.CompileBytes(data, cue.Filename(path))
	}
	if err := value.Err(); err != nil {
		return nil, cueLoadError(path, err)
	}

	entries, err := decodeRegistry(ctx, path, value)
	if err != nil {
		return nil, err
	}
	return NewRegistry(entries, opts...), nil
}

func decodeRegistry(ctx *cue.Context, path string, value cue.Value) ([]Entry, error) {
	if !value.LookupPath(cue.ParsePath("descriptors")).Exists() {
		return nil, &LoadError{Path: path, Message: "descriptors field is required"}
	}
	schema := ctx.CompileString(registrySchema)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling registry schema: %w", err)
	}
	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(path, err)
	}

	iter, err := unified.LookupPath(cue.ParsePath("descriptors")).List()
	if err != nil {
		return nil, cueLoadError(path, err)
	}

	var entries []Entry
	for iter.Next() {
		elem := iter.Value()
		switch elem.Kind() {
		case cue.StringKind:
			text, err := elem.String()
			if err != nil {
				return nil, cueLoadError(path, err)
			}
			entries = append(entries, Entry{Text: text})
		case cue.StructKind:
			text, err := elem.LookupPath(cue.ParsePath("text")).String()
			if err != nil {
				return nil, cueLoadError(path, err)
			}
			entry := Entry{Text: text}
			if d := elem.LookupPath(cue.ParsePath("description")); d.Exists() {
				if entry.Description, err = d.String(); err != nil {
					return nil, cueLoadError(path, err)
				}
			}
			entries = append(entries, entry)
		default:
			return nil, &LoadError{Path: path, Message: "descriptor entry must be a string or a struct", Pos: elem.Pos()}
		}
	}
	return entries, nil
}

// cueLoadError extracts position info from CUE errors.
func cueLoadError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Path: path, Message: err.Error()}
	}
	first := errs[0]
	loadErr := &LoadError{Path: path, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		loadErr.Pos = positions[0]
	}
	return loadErr
}

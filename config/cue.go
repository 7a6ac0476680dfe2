package config

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"
)

// AddCUEFile appends a CUE file source. When expression is non-empty only the
// value at that path is used as the layer.
func (b *Builder) AddCUEFile(path, expression string) *Builder {
	return b.Add(cueSource{path: path, expression: expression})
}

// AddCUE appends in-memory CUE source.
func (b *Builder) AddCUE(name, src, expression string) *Builder {
	return b.Add(cueSource{name: name, src: src, expression: expression})
}

type cueSource struct {
	path       string
	name       string
	src        string
	expression string
}

func (s cueSource) Describe() string {
	if s.path != "" {
		return s.path
	}
	if s.name == "" {
		return "inline cue"
	}
	return s.name
}

func (s cueSource) File() string { return s.path }

func (s cueSource) Load() (*yaml.Node, error) {
	ctx := cuecontext.New()
	var value cue.Value
	if s.path != "" {
		abs, err := filepath.Abs(s.path)
		if err != nil {
			return nil, fmt.Errorf("resolve cue path: %w", err)
		}
		dir := filepath.Dir(abs)
		overlay, names, err := s.overlays(abs)
		if err != nil {
			return nil, err
		}
		args := append([]string{filepath.Base(abs)}, names...)
		insts := load.Instances(args, &load.Config{Dir: dir, Overlay: overlay})
		if len(insts) == 0 {
			return nil, fmt.Errorf("no cue instance for %s", s.path)
		}
		if err := insts[0].Err; err != nil {
			return nil, fmt.Errorf("load cue: %w", err)
		}
		value = ctx.BuildInstance(insts[0])
	} else {
		value = ctx.CompileString(s.src, cue.Filename(s.Describe()))
	}
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("evaluate cue: %w", err)
	}
	if s.expression != "" {
		value = value.LookupPath(cue.ParsePath(s.expression))
		if !value.Exists() {
			return nil, fmt.Errorf("cue expression %q not found", s.expression)
		}
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate cue: %w", err)
	}
	raw, err := value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("export cue: %w", err)
	}
	// JSON is a subset of YAML, so the exported value decodes into the same node tree.
	return decodeDocument(raw)
}

// overlays resolves the registered overlays for the file at abs. Overlays and
// the file share one package; a file without a package clause is loaded as
// DefaultCUEPackage.
func (s cueSource) overlays(abs string) (map[string]load.Source, []string, error) {
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, nil, fmt.Errorf("read cue file: %w", err)
	}
	pkg, err := packageOf(abs, data)
	if err != nil {
		return nil, nil, fmt.Errorf("load cue: %w", err)
	}
	declared := pkg != ""
	if !declared {
		pkg = DefaultCUEPackage
	}
	overlay, names, err := resolveOverlays(filepath.Dir(abs), pkg)
	if err != nil || len(names) == 0 || declared {
		return overlay, names, err
	}
	overlay[abs] = load.FromBytes(append([]byte("package "+pkg+"\n"), data...))
	return overlay, names, nil
}

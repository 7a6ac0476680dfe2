package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/parser"
)

// DefaultCUEPackage is the package clause given to a CUE configuration file
// and its overlays when the configuration file declares none.
const DefaultCUEPackage = "cqlreg"

// overlay keeps the registered form so a package clause can be added at load
// time. Only src is set for sources registered through RegisterOverlay.
type overlay struct {
	src  load.Source
	text string
	file *ast.File
}

var (
	overlayMu sync.RWMutex
	overlays  = make(map[string]overlay)
)

// RegisterOverlay registers a virtual CUE file that is evaluated together with
// every CUE configuration file. The path is relative to the directory of the
// file being loaded, so shared schemas such as "#Client" can be published once.
// src is used verbatim and must declare the package of the configuration file
// (DefaultCUEPackage when that file has no package clause).
func RegisterOverlay(path string, src load.Source) error {
	if src == nil {
		return errors.New("overlay source must not be nil")
	}
	return register(path, overlay{src: src})
}

// RegisterOverlayString registers a virtual CUE file from raw source. Source
// without a package clause joins the package of the configuration file.
func RegisterOverlayString(path, cue string) error {
	return register(path, overlay{text: cue})
}

// RegisterOverlayFile registers a virtual CUE file from a parsed AST. A file
// without a package clause joins the package of the configuration file.
func RegisterOverlayFile(path string, file *ast.File) error {
	if file == nil {
		return errors.New("overlay file must not be nil")
	}
	return register(path, overlay{file: file})
}

func register(path string, o overlay) error {
	normalized, err := normalizeOverlayPath(path)
	if err != nil {
		return err
	}
	overlayMu.Lock()
	defer overlayMu.Unlock()
	if _, exists := overlays[normalized]; exists {
		return fmt.Errorf("overlay %s already registered", normalized)
	}
	overlays[normalized] = o
	return nil
}

// source returns the overlay as a member of package pkg.
func (o overlay) source(name, pkg string) (load.Source, error) {
	switch {
	case o.src != nil:
		return o.src, nil
	case o.file != nil:
		if hasPackageClause(o.file) {
			return load.FromFile(o.file), nil
		}
		clone := *o.file
		clone.Decls = append([]ast.Decl{&ast.Package{Name: ast.NewIdent(pkg)}}, o.file.Decls...)
		return load.FromFile(&clone), nil
	default:
		text, err := withPackage(name, []byte(o.text), pkg)
		if err != nil {
			return nil, err
		}
		return load.FromBytes(text), nil
	}
}

// withPackage prefixes src with a package clause unless it already has one.
func withPackage(name string, src []byte, pkg string) ([]byte, error) {
	f, err := parser.ParseFile(name, src, parser.PackageClauseOnly)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if hasPackageClause(f) {
		return src, nil
	}
	return append([]byte("package "+pkg+"\n"), src...), nil
}

// packageOf returns the package declared by src, or "" when it has none.
func packageOf(name string, src []byte) (string, error) {
	f, err := parser.ParseFile(name, src, parser.PackageClauseOnly)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}
	return f.PackageName(), nil
}

func hasPackageClause(f *ast.File) bool {
	for _, d := range f.Decls {
		if _, ok := d.(*ast.Package); ok {
			return true
		}
	}
	return false
}

func normalizeOverlayPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("overlay path must not be empty")
	}
	cleaned := filepath.Clean(trimmed)
	if cleaned == "." || cleaned == string(filepath.Separator) || filepath.IsAbs(cleaned) {
		return "", errors.New("overlay path must reference a relative file")
	}
	if strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("overlay path %s escapes the load directory", cleaned)
	}
	if filepath.Ext(cleaned) != ".cue" {
		return "", fmt.Errorf("overlay path %s must end in .cue", cleaned)
	}
	return cleaned, nil
}

// resolveOverlays returns the overlay registry rooted at baseDir together with
// the sorted relative names, ready for load.Config and the instance arguments.
// Overlays without a package clause are placed in pkg.
func resolveOverlays(baseDir, pkg string) (map[string]load.Source, []string, error) {
	overlayMu.RLock()
	defer overlayMu.RUnlock()
	if len(overlays) == 0 {
		return nil, nil, nil
	}
	resolved := make(map[string]load.Source, len(overlays))
	names := make([]string, 0, len(overlays))
	for path, o := range overlays {
		src, err := o.source(path, pkg)
		if err != nil {
			return nil, nil, fmt.Errorf("overlay %s: %w", path, err)
		}
		resolved[filepath.Join(baseDir, path)] = src
		names = append(names, path)
	}
	sort.Strings(names)
	return resolved, names, nil
}

// ResetOverlaysForTest clears the overlay registry. This helper is intended for tests only.
func ResetOverlaysForTest() {
	overlayMu.Lock()
	overlays = make(map[string]overlay)
	overlayMu.Unlock()
}

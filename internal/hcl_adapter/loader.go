package hcl_adapter

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/pulsegrid/internal/config"
	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/fsutil"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	builtins []fs.FS
}

// NewLoader creates a new HCL configuration loader. Files in builtins, such
// as the embedded kernel manifests, are loaded before any path.
func NewLoader(builtins ...fs.FS) *Loader {
	return &Loader{builtins: builtins}
}

// origin remembers where each top-level name was first defined.
type origin struct {
	kernels  map[string]string
	machines map[string]string
	designs  map[string]string
}

// Load orchestrates the entire HCL configuration loading process. It is
// agnostic to the origin of the paths and parses any valid block from any file.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths), "builtin_count", len(l.builtins))

	model := config.NewModel()
	seen := &origin{
		kernels:  make(map[string]string),
		machines: make(map[string]string),
		designs:  make(map[string]string),
	}
	parser := hclparse.NewParser()

	for _, fsys := range l.builtins {
		files, err := fsutil.FindFilesInFS(fsys, ".hcl")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list embedded configuration: %w", err)
		}
		for _, name := range files {
			src, err := fs.ReadFile(fsys, name)
			if err != nil {
				return nil, nil, &pulseerr.IOError{Path: name, Err: err}
			}
			if err := l.loadSource(ctx, parser, model, seen, src, "builtin:"+name, ""); err != nil {
				return nil, nil, err
			}
		}
	}

	for _, path := range paths {
		files, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, nil, &pulseerr.IOError{Path: path, Err: err}
		}
		logger.Debug("Discovered HCL files.", "path", path, "count", len(files))
		for _, file := range files {
			src, err := os.ReadFile(file)
			if err != nil {
				return nil, nil, &pulseerr.IOError{Path: file, Err: err}
			}
			dir, _ := filepath.Abs(filepath.Dir(file))
			if err := l.loadSource(ctx, parser, model, seen, src, file, dir); err != nil {
				return nil, nil, err
			}
		}
	}

	for _, d := range model.Designs {
		if _, err := model.Machine(d.MachineName); err != nil {
			return nil, nil, fmt.Errorf("design %q: %w", d.Name, err)
		}
	}

	logger.Debug("HCL loading complete.", "kernels", len(model.Kernels), "machines", len(model.Machines), "designs", len(model.Designs))
	return model, NewConverter(), nil
}

// loadSource parses one file and merges its blocks into the model. Names
// must be unique across all files.
func (l *Loader) loadSource(ctx context.Context, parser *hclparse.Parser, model *config.Model, seen *origin, src []byte, filename, dir string) error {
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	var all hcl.Diagnostics
	for _, k := range root.Kernels {
		if first, dup := seen.kernels[k.Name]; dup {
			all = append(all, duplicateError("kernel", k.Name, first))
			continue
		}
		def, kDiags := l.translateKernel(ctx, k, filename)
		all = append(all, kDiags...)
		if kDiags.HasErrors() {
			continue
		}
		if err := def.Validate(); err != nil {
			return fmt.Errorf("in %s: %w", filename, err)
		}
		seen.kernels[k.Name] = filename
		model.Kernels[def.Name] = def
	}
	for _, m := range root.Machines {
		if first, dup := seen.machines[m.Name]; dup {
			all = append(all, duplicateError("machine", m.Name, first))
			continue
		}
		spec, mDiags := l.translateMachine(m)
		all = append(all, mDiags...)
		if mDiags.HasErrors() {
			continue
		}
		seen.machines[m.Name] = filename
		model.Machines[spec.Name] = spec
	}
	for _, d := range root.Designs {
		if first, dup := seen.designs[d.Name]; dup {
			all = append(all, duplicateError("design", d.Name, first))
			continue
		}
		design, dDiags := l.translateDesign(ctx, d, dir)
		all = append(all, dDiags...)
		if dDiags.HasErrors() {
			continue
		}
		seen.designs[d.Name] = filename
		model.Designs = append(model.Designs, design)
	}

	if all.HasErrors() {
		return fmt.Errorf("failed to load HCL file %s: %w", filename, all)
	}
	return nil
}

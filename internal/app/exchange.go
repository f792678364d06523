package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/pulsegrid/internal/exchange"
)

// ExportDesign builds the exchange document of the named design.
func (a *App) ExportDesign(name, comment string) (*exchange.Document, error) {
	model, _ := a.snapshot()
	design, ok := model.Design(name)
	if !ok {
		return nil, fmt.Errorf("unknown design %q", name)
	}
	spec, err := model.Machine(design.MachineName)
	if err != nil {
		return nil, fmt.Errorf("design %q: %w", name, err)
	}
	return exchange.Export(design, spec, a.registry, a.clock(), comment)
}

// Export writes the named design to path, gzip-compressed for ".gz" paths.
func (a *App) Export(name, path, comment string) error {
	doc, err := a.ExportDesign(name, comment)
	if err != nil {
		return err
	}
	if err := exchange.WriteFile(path, doc); err != nil {
		return err
	}
	a.logger.Info("Design exported.", "design", name, "path", path, "kernels", len(doc.Kernels))
	return nil
}

// Import reads the exchange document at path and builds it.
func (a *App) Import(ctx context.Context, path string) (BuildResult, error) {
	doc, err := exchange.ReadFile(path)
	if err != nil {
		return BuildResult{}, err
	}
	return a.BuildDocument(ctx, doc)
}

// BuildDocument rebuilds the design carried by doc against its own machine.
// Kernel definitions the registry lacks are checked against the compiled
// kernels and added; definitions it already holds must match by id and
// version.
func (a *App) BuildDocument(ctx context.Context, doc *exchange.Document) (BuildResult, error) {
	ctx = a.ctx(ctx)
	imported, err := doc.Import(exchange.ImportOptions{Now: a.clock()})
	if err != nil {
		return BuildResult{}, err
	}
	for _, def := range imported.Kernels {
		if err := a.registry.ImportDefinition(ctx, def); err != nil {
			return BuildResult{}, fmt.Errorf("imported kernel %q: %w", def.Name, err)
		}
	}

	_, converter := a.snapshot()
	exec, err := a.newExecutorFor(ctx, converter, imported.Design, imported.Machine)
	if err != nil {
		return BuildResult{}, err
	}
	res := a.execute(ctx, exec)
	a.printSummary(a.outW, []BuildResult{res})
	return res, res.Err
}

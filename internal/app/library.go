package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/specialistvlad/pulsegrid/internal/exchange"
	"github.com/specialistvlad/pulsegrid/internal/library"
)

func (a *App) openLibrary(ctx context.Context, path string) (*library.Library, error) {
	if path == "" {
		return nil, fmt.Errorf("library path is required")
	}
	a.logger.Debug("Opening design library.", "path", path)
	return library.Open(ctx, path)
}

// LibrarySave exports the named design into the library at dbPath and
// returns its library id.
func (a *App) LibrarySave(ctx context.Context, dbPath, name, comment string) (string, error) {
	doc, err := a.ExportDesign(name, comment)
	if err != nil {
		return "", err
	}
	lib, err := a.openLibrary(ctx, dbPath)
	if err != nil {
		return "", err
	}
	defer lib.Close()

	id, err := lib.SaveDesign(ctx, doc)
	if err != nil {
		return "", err
	}
	a.logger.Info("Design saved to library.", "design", name, "id", id)
	fmt.Fprintln(a.outW, id)
	return id, nil
}

// LibraryList prints every stored design.
func (a *App) LibraryList(ctx context.Context, dbPath string) error {
	lib, err := a.openLibrary(ctx, dbPath)
	if err != nil {
		return err
	}
	defer lib.Close()

	designs, err := lib.ListDesigns(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.outW, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKERNELS\tSAVED\tCOMMENT")
	for _, d := range designs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", d.ID, d.Name, d.Kernels, d.SavedAt.Format(time.RFC3339), firstLine(d.Comment))
	}
	return tw.Flush()
}

// LibraryShow prints the stored document of id, or rebuilds it when build
// is set.
func (a *App) LibraryShow(ctx context.Context, dbPath, id string, build bool) error {
	lib, err := a.openLibrary(ctx, dbPath)
	if err != nil {
		return err
	}
	defer lib.Close()

	doc, err := lib.LoadDesign(ctx, id)
	if err != nil {
		return err
	}
	if build {
		_, err := a.BuildDocument(ctx, doc)
		return err
	}
	return exchange.Write(a.outW, doc)
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

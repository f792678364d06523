package app

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// ListKernels prints every kernel definition known to the registry.
func (a *App) ListKernels() error {
	tw := tabwriter.NewWriter(a.outW, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tALGORITHM\tID\tPARAMETERS\tSOURCE")
	for _, name := range a.registry.Names() {
		def, ok := a.registry.Definition(name)
		if !ok {
			continue
		}
		var params []string
		for _, d := range def.Descriptors() {
			params = append(params, d.Name)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			def.Name, def.Version, def.Algorithm, def.ID, strings.Join(params, ","), def.Source)
	}
	return tw.Flush()
}

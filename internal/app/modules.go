package app

import (
	"github.com/specialistvlad/pulsegrid/internal/registry"
	"github.com/specialistvlad/pulsegrid/modules/hsech"
	"github.com/specialistvlad/pulsegrid/modules/importpulse"
	"github.com/specialistvlad/pulsegrid/modules/interpolate"
	"github.com/specialistvlad/pulsegrid/modules/legacy"
	"github.com/specialistvlad/pulsegrid/modules/ocn"
	"github.com/specialistvlad/pulsegrid/modules/rootreflect"
	"github.com/specialistvlad/pulsegrid/modules/slr"
)

// coreModules is the definitive list of all kernels that are compiled into
// the pulsegrid binary.
var coreModules = []registry.Module{
	&importpulse.Module{},
	&legacy.Module{},
	&slr.Module{},
	&hsech.Module{},
	&rootreflect.Module{},
	&interpolate.Module{},
	&ocn.Module{},
}

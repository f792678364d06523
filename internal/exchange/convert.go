package exchange

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/specialistvlad/pulsegrid/internal/config"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/param"
	"github.com/specialistvlad/pulsegrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Export captures design together with spec and the definition of every
// kernel it references. Each transform's parameters are resolved, so
// defaults are written explicitly. Relative file references are made
// absolute against the design directory.
func Export(design *config.Design, spec *machine.Spec, reg *registry.Registry, now time.Time, comment string) (*Document, error) {
	if spec == nil {
		spec = machine.Default()
	}
	doc := &Document{
		Version:   CurrentVersion,
		Timestamp: now.UTC(),
		Comment:   comment,
		Design: DesignDoc{
			ID:             design.ID,
			Name:           design.Name,
			Comment:        design.Comment,
			CalcResolution: design.Settings.CalcResolution,
			BandwidthType:  design.Settings.BandwidthType.String(),
			Machine:        machineDoc(spec),
		},
	}

	kernels := make(map[string]*config.KernelDefinition)
	for _, t := range design.Transforms {
		def, err := lookup(reg, t)
		if err != nil {
			return nil, fmt.Errorf("design %q stage %d: %w", design.Name, t.Progression, err)
		}
		kernels[def.ID] = def

		values, err := param.Resolve(def.Descriptors(), t.Raw)
		if err != nil {
			return nil, fmt.Errorf("design %q stage %d: %w", design.Name, t.Progression, err)
		}
		td := TransformDoc{Progression: t.Progression, KernelID: def.ID, Kernel: def.Name}
		inputs := values.Inputs()
		names := make([]string, 0, len(inputs))
		for name := range inputs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			d, _ := values.Descriptor(name)
			text := param.FormatValue(d.Type, inputs[name])
			if d.Type == param.FileRef && text != "" && !filepath.IsAbs(text) && design.Dir != "" {
				text = filepath.Join(design.Dir, text)
			}
			td.Parameters = append(td.Parameters, ParamDoc{Name: name, Type: d.Type.String(), Value: text})
		}
		doc.Design.Transforms = append(doc.Design.Transforms, td)
	}

	ids := make([]string, 0, len(kernels))
	for id := range kernels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return kernels[ids[i]].Name < kernels[ids[j]].Name })
	for _, id := range ids {
		kd, err := kernelDoc(kernels[id])
		if err != nil {
			return nil, err
		}
		doc.Kernels = append(doc.Kernels, kd)
	}
	return doc, nil
}

func lookup(reg *registry.Registry, t *config.Transform) (*config.KernelDefinition, error) {
	if t.KernelID != "" {
		def, _, err := reg.LookupID(t.KernelID)
		if err != nil {
			return nil, err
		}
		if def.Name != t.Kernel {
			return nil, fmt.Errorf("kernel id %s belongs to %q, not %q", t.KernelID, def.Name, t.Kernel)
		}
		return def, nil
	}
	def, _, err := reg.Lookup(t.Kernel)
	return def, err
}

func machineDoc(s *machine.Spec) MachineDoc {
	return MachineDoc{
		Name:               s.Name,
		MaxB1Field:         s.MaxB1Field,
		FieldStrength:      s.FieldStrength,
		MinDwellTime:       s.MinDwellTime,
		DwellTimeIncrement: s.DwellTimeIncrement,
		GradientRasterTime: s.GradientRasterTime,
		GradientSlewRate:   s.GradientSlewRate,
		GradientMaximum:    s.GradientMaximum,
		ZeroPadding:        s.ZeroPadding,
	}
}

func kernelDoc(def *config.KernelDefinition) (KernelDoc, error) {
	kd := KernelDoc{
		ID:             def.ID,
		Name:           def.Name,
		Version:        def.Version,
		MenuLabel:      def.MenuLabel,
		Algorithm:      def.Algorithm,
		Description:    def.Description,
		StandardFields: append([]string(nil), def.StandardFields...),
	}
	for _, d := range def.Parameters {
		dd := DescriptorDoc{
			Name:        d.Name,
			Label:       d.Label,
			Type:        d.Type.String(),
			Options:     append([]string(nil), d.Options...),
			Order:       d.Order,
			Description: d.Description,
		}
		if d.HasDefault() {
			// Resolving the descriptor alone coerces the default, so a
			// choice default given as a label is written as its ordinal.
			values, err := param.Resolve([]*param.Descriptor{d}, nil)
			if err != nil {
				return KernelDoc{}, fmt.Errorf("kernel %q: %w", def.Name, err)
			}
			v, _ := values.Get(d.Name)
			text := param.FormatValue(d.Type, v)
			dd.Default = &text
		}
		kd.Parameters = append(kd.Parameters, dd)
	}
	return kd, nil
}

// ImportOptions control how a document becomes a design.
type ImportOptions struct {
	// Now stamps the design comment. Zero skips the stamp.
	Now time.Time
}

// Imported is the result of Import.
type Imported struct {
	Design  *config.Design
	Machine *machine.Spec
	Kernels []*config.KernelDefinition
}

// Import rebuilds the design, machine and kernel definitions of doc. When
// opts.Now is set, "Imported <timestamp>" is appended to the design comment.
func (doc *Document) Import(opts ImportOptions) (*Imported, error) {
	dd := doc.Design
	bt, err := machine.ParseBandwidthType(dd.BandwidthType)
	if err != nil {
		return nil, err
	}
	m := dd.Machine
	spec := &machine.Spec{
		Name:               m.Name,
		MaxB1Field:         m.MaxB1Field,
		FieldStrength:      m.FieldStrength,
		MinDwellTime:       m.MinDwellTime,
		DwellTimeIncrement: m.DwellTimeIncrement,
		GradientRasterTime: m.GradientRasterTime,
		GradientSlewRate:   m.GradientSlewRate,
		GradientMaximum:    m.GradientMaximum,
		ZeroPadding:        m.ZeroPadding,
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	design := &config.Design{
		ID:          dd.ID,
		Name:        dd.Name,
		Comment:     dd.Comment,
		MachineName: spec.Name,
		Settings:    machine.Settings{CalcResolution: dd.CalcResolution, BandwidthType: bt},
	}
	if design.ID == "" {
		design.ID = config.DesignID(design.Name)
	}
	if !opts.Now.IsZero() {
		stamp := "Imported " + opts.Now.UTC().Format(time.RFC3339)
		if design.Comment == "" {
			design.Comment = stamp
		} else {
			design.Comment += "\n" + stamp
		}
	}

	for _, td := range dd.Transforms {
		t := &config.Transform{
			Progression: td.Progression,
			Kernel:      td.Kernel,
			KernelID:    td.KernelID,
			Raw:         make(map[string]cty.Value, len(td.Parameters)),
		}
		for _, p := range td.Parameters {
			typ, err := param.ParseType(p.Type)
			if err != nil {
				return nil, fmt.Errorf("stage %d parameter %q: %w", td.Progression, p.Name, err)
			}
			v, err := param.ParseValue(typ, p.Value)
			if err != nil {
				return nil, fmt.Errorf("stage %d: %w", td.Progression, err)
			}
			t.Raw[p.Name] = v
		}
		design.Transforms = append(design.Transforms, t)
	}
	if err := design.Validate(); err != nil {
		return nil, err
	}

	out := &Imported{Design: design, Machine: spec}
	for _, kd := range doc.Kernels {
		def, err := kd.definition()
		if err != nil {
			return nil, err
		}
		out.Kernels = append(out.Kernels, def)
	}
	return out, nil
}

func (kd KernelDoc) definition() (*config.KernelDefinition, error) {
	def := &config.KernelDefinition{
		ID:             kd.ID,
		Name:           kd.Name,
		Version:        kd.Version,
		MenuLabel:      kd.MenuLabel,
		Algorithm:      kd.Algorithm,
		Description:    kd.Description,
		StandardFields: kd.StandardFields,
		Source:         "exchange",
	}
	for _, dd := range kd.Parameters {
		typ, err := param.ParseType(dd.Type)
		if err != nil {
			return nil, fmt.Errorf("kernel %q parameter %q: %w", kd.Name, dd.Name, err)
		}
		d := &param.Descriptor{
			Name:        dd.Name,
			Label:       dd.Label,
			Type:        typ,
			Default:     cty.NilVal,
			Options:     dd.Options,
			Order:       dd.Order,
			Description: dd.Description,
		}
		if dd.Default != nil {
			v, err := param.ParseValue(typ, *dd.Default)
			if err != nil {
				return nil, fmt.Errorf("kernel %q: %w", kd.Name, err)
			}
			d.Default = v
		}
		def.Parameters = append(def.Parameters, d)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

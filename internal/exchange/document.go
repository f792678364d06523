// Package exchange reads and writes the design exchange document: a
// self-contained YAML rendition of one design, the machine it targets and
// every kernel definition it references. Parameter values are stored as
// exact text, so an imported design rebuilds to bit-identical pulses.
package exchange

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"gopkg.in/yaml.v3"
)

// Marker is the root key every exchange document carries.
const Marker = "pulsegrid_export"

// CurrentVersion is the document version written by this package.
const CurrentVersion = 1

// ErrNotExchange is returned for YAML documents without the marker root.
var ErrNotExchange = errors.New("not a pulsegrid exchange document")

// Document is the content under the marker root.
type Document struct {
	Version   int         `yaml:"version"`
	Timestamp time.Time   `yaml:"timestamp"`
	Comment   string      `yaml:"comment,omitempty"`
	Design    DesignDoc   `yaml:"design"`
	Kernels   []KernelDoc `yaml:"kernels"`
}

type root struct {
	Export *Document `yaml:"pulsegrid_export"`
}

// DesignDoc is one design with its settings and machine inlined.
type DesignDoc struct {
	ID             string         `yaml:"id"`
	Name           string         `yaml:"name"`
	Comment        string         `yaml:"comment,omitempty"`
	CalcResolution int            `yaml:"calc_resolution"`
	BandwidthType  string         `yaml:"bandwidth_type"`
	Machine        MachineDoc     `yaml:"machine"`
	Transforms     []TransformDoc `yaml:"transforms"`
}

// MachineDoc mirrors machine.Spec.
type MachineDoc struct {
	Name               string  `yaml:"name"`
	MaxB1Field         float64 `yaml:"max_b1_field"`
	FieldStrength      float64 `yaml:"field_strength"`
	MinDwellTime       float64 `yaml:"min_dwell_time"`
	DwellTimeIncrement float64 `yaml:"dwell_time_increment"`
	GradientRasterTime float64 `yaml:"gradient_raster_time"`
	GradientSlewRate   float64 `yaml:"gradient_slew_rate"`
	GradientMaximum    float64 `yaml:"gradient_maximum"`
	ZeroPadding        int     `yaml:"zero_padding"`
}

// TransformDoc is one stage.
type TransformDoc struct {
	Progression int        `yaml:"progression"`
	KernelID    string     `yaml:"kernel_id"`
	Kernel      string     `yaml:"kernel"`
	Parameters  []ParamDoc `yaml:"parameters"`
}

// ParamDoc is one resolved input value in exact text form.
type ParamDoc struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// KernelDoc is a full kernel definition.
type KernelDoc struct {
	ID             string          `yaml:"id"`
	Name           string          `yaml:"name"`
	Version        int             `yaml:"version"`
	MenuLabel      string          `yaml:"menu_label,omitempty"`
	Algorithm      string          `yaml:"algorithm"`
	Description    string          `yaml:"description,omitempty"`
	StandardFields []string        `yaml:"standard_fields,omitempty"`
	Parameters     []DescriptorDoc `yaml:"parameters,omitempty"`
}

// DescriptorDoc is one kernel-specific parameter descriptor. A nil Default
// marks a required parameter.
type DescriptorDoc struct {
	Name        string   `yaml:"name"`
	Label       string   `yaml:"label,omitempty"`
	Type        string   `yaml:"type"`
	Default     *string  `yaml:"default,omitempty"`
	Options     []string `yaml:"options,omitempty"`
	Order       int      `yaml:"order"`
	Description string   `yaml:"description,omitempty"`
}

// Write encodes doc under the marker root.
func Write(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root{Export: doc}); err != nil {
		return fmt.Errorf("failed to encode exchange document: %w", err)
	}
	return enc.Close()
}

// WriteFile writes doc to path, gzip-compressed when path ends in ".gz".
func WriteFile(path string, doc *Document) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return &pulseerr.IOError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &pulseerr.IOError{Path: path, Err: cerr}
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return Write(f, doc)
	}
	zw := gzip.NewWriter(f)
	if err := Write(zw, doc); err != nil {
		return err
	}
	return zw.Close()
}

var gzipMagic = []byte{0x1f, 0x8b}

// Read decodes a document, transparently decompressing gzip input.
func Read(r io.Reader) (*Document, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if magic, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(magic, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed exchange document: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	var doc root
	if err := yaml.NewDecoder(src).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNotExchange
		}
		return nil, fmt.Errorf("failed to decode exchange document: %w", err)
	}
	if doc.Export == nil {
		return nil, ErrNotExchange
	}
	if doc.Export.Version < 1 || doc.Export.Version > CurrentVersion {
		return nil, fmt.Errorf("unsupported exchange document version %d", doc.Export.Version)
	}
	return doc.Export, nil
}

// ReadFile reads the document at path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &pulseerr.IOError{Path: path, Err: err}
	}
	defer f.Close()
	doc, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

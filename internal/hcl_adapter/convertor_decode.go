package hcl_adapter

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/param"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Converter is the HCL-specific implementation of the config.Converter
// interface. It binds resolved parameters to kernel input structs.
type Converter struct{}

// NewConverter creates a new HCL converter.
func NewConverter() *Converter {
	return &Converter{}
}

// TagName is the struct tag that binds a Go input field to a parameter.
const TagName = "pulse"

// DecodeParams iterates through the fields of a Go struct, finds the
// corresponding resolved parameter, and decodes it into the field. Fields
// whose parameter is unset keep their zero value.
func (c *Converter) DecodeParams(ctx context.Context, inputStruct any, values *param.Values) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting parameter decoding.")

	structVal := reflect.ValueOf(inputStruct)
	if structVal.Kind() != reflect.Ptr || structVal.IsNil() {
		return fmt.Errorf("inputStruct must be a non-nil pointer")
	}
	structVal = structVal.Elem()
	if structVal.Kind() != reflect.Struct {
		return fmt.Errorf("inputStruct must point to a struct, got %s", structVal.Kind())
	}
	structType := structVal.Type()

	for i := 0; i < structType.NumField(); i++ {
		fieldDef := structType.Field(i)
		fieldVal := structVal.Field(i)

		if !fieldDef.IsExported() || !fieldVal.CanSet() {
			continue
		}

		tagName := FieldTag(fieldDef)
		if tagName == "" {
			continue
		}

		val, ok := values.Get(tagName)
		if !ok {
			return fmt.Errorf("input field %s is bound to undeclared parameter %q", fieldDef.Name, tagName)
		}
		if err := c.decode(val, fieldVal.Addr().Interface()); err != nil {
			return fmt.Errorf("failed to decode parameter '%s': %w", tagName, err)
		}
	}
	logger.Debug("Finished parameter decoding successfully.")
	return nil
}

// FieldTag returns the parameter name a struct field is bound to, or "".
func FieldTag(f reflect.StructField) string {
	tag := strings.Split(f.Tag.Get(TagName), ",")[0]
	if tag == "-" {
		return ""
	}
	return tag
}

// decode populates one Go value from a cty.Value.
func (c *Converter) decode(val cty.Value, goVal any) error {
	goPtr := reflect.ValueOf(goVal).Elem()

	// A cty.Value field receives the value untouched.
	if goPtr.Type() == reflect.TypeOf(cty.Value{}) {
		if val.IsKnown() {
			goPtr.Set(reflect.ValueOf(val))
		}
		return nil
	}

	if !val.IsKnown() || val.IsNull() {
		return nil
	}

	want, err := gocty.ImpliedType(goPtr.Interface())
	if err != nil {
		return fmt.Errorf("cannot imply cty type for %s: %w", goPtr.Type(), err)
	}
	converted, err := convert.Convert(val, want)
	if err != nil {
		return fmt.Errorf("cannot convert value of type %s to %s: %w", val.Type().FriendlyName(), want.FriendlyName(), err)
	}
	return gocty.FromCtyValue(converted, goVal)
}

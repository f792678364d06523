// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the closed set of parameter types a kernel may declare.
//
// Manifests spell the type as a bare keyword (`type = double`). The keyword is
// turned into a Type exactly once, while the manifest is loaded, so an
// unknown tag stops the load with a diagnostic instead of surfacing later
// when a design happens to use the kernel.
package param

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Type is the declared type of a kernel parameter.
type Type int

const (
	// Double is a real number parsed with full float64 precision.
	Double Type = iota + 1
	// Integer is a whole number. Fractional input is rejected, never truncated.
	Integer
	// String is free text.
	String
	// Choice selects one entry of an ordered option list by ordinal index.
	Choice
	// Output is written by the kernel and never supplied by the caller.
	Output
	// FileRef names an external file read by the kernel.
	FileRef
)

var typeKeywords = map[string]Type{
	"double":  Double,
	"integer": Integer,
	"string":  String,
	"choice":  Choice,
	"output":  Output,
	"file":    FileRef,
}

// ParseType is the validated constructor for Type. It accepts the manifest
// keywords double, integer, string, choice, output and file.
func ParseType(tag string) (Type, error) {
	t, ok := typeKeywords[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return 0, fmt.Errorf("unknown parameter type %q: supported types are double, integer, string, choice, output, file", tag)
	}
	return t, nil
}

// String returns the manifest keyword for the type.
func (t Type) String() string {
	for k, v := range typeKeywords {
		if v == t {
			return k
		}
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Valid reports whether t is one of the declared cases.
func (t Type) Valid() bool {
	return t >= Double && t <= FileRef
}

// CtyType is the cty type a resolved value of this parameter carries. Choice
// values resolve to their ordinal index.
func (t Type) CtyType() cty.Type {
	switch t {
	case Double, Integer, Choice:
		return cty.Number
	case String, FileRef:
		return cty.String
	default:
		return cty.DynamicPseudoType
	}
}

// TypeKeywords lists the manifest keywords in declaration order.
func TypeKeywords() []string {
	out := make([]string, 0, len(typeKeywords))
	for t := Double; t <= FileRef; t++ {
		out = append(out, t.String())
	}
	return out
}

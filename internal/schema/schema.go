// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package schema describes the batch file format, generated from the configuration structs.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/DonkRonk17/batchrunner/internal/config"
)

const (
	jsonSchemaDraft = "https://json-schema.org/draft/2020-12/schema"
	durationType    = "duration"
)

// ErrNotStruct is returned when fields are requested for a non-struct type.
var ErrNotStruct = errors.New("expected struct type")

// Field describes one property of a batch file object.
type Field struct {
	Name        string
	Type        string // JSON schema type, or duration
	Description string
	Required    bool
	Enum        []string
	Items       *Field  // Element of an array
	Fields      []Field // Properties of an object
}

// Fields returns the fields of a configuration struct from its yaml, docdesc, doctype and docenum tags,
// in declaration order.
func Fields(t reflect.Type) ([]Field, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w, got %s", ErrNotStruct, t.Kind())
	}

	fields := make([]Field, 0, t.NumField())

	for i := range t.NumField() {
		sf := t.Field(i)

		yamlTag := sf.Tag.Get("yaml")
		if !sf.IsExported() || yamlTag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(yamlTag, ",")
		if name == "" {
			name = strings.ToLower(sf.Name)
		}

		f := Field{
			Name:        name,
			Type:        jsonType(sf.Type),
			Description: sf.Tag.Get("docdesc"),
			Required:    !strings.Contains(opts, "omitempty"),
		}

		if dt := sf.Tag.Get("doctype"); dt != "" {
			f.Type = dt
		}

		if e := sf.Tag.Get("docenum"); e != "" {
			f.Enum = strings.Split(e, ",")
		}

		ft := sf.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}

		switch ft.Kind() {
		case reflect.Struct:
			sub, err := Fields(ft)
			if err != nil {
				return nil, err
			}

			f.Fields = sub
		case reflect.Slice:
			item := Field{Type: jsonType(ft.Elem())}
			if ft.Elem().Kind() == reflect.Struct {
				sub, err := Fields(ft.Elem())
				if err != nil {
					return nil, err
				}

				item.Fields = sub
			}

			f.Items = &item
		}

		fields = append(fields, f)
	}

	return fields, nil
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "string"
	}
}

// Document returns the JSON schema of a batch file. A batch file is either a structured
// definition or a plain list of command lines.
func Document() (map[string]any, error) {
	fields, err := Fields(reflect.TypeFor[config.Definition]())
	if err != nil {
		return nil, err
	}

	structured := object(fields)
	structured["description"] = "Structured batch with named commands and dependencies"

	return map[string]any{
		"$schema":     jsonSchemaDraft,
		"title":       "batchrunner batch file",
		"description": "Commands run by batchrunner",
		"anyOf": []any{
			structured,
			map[string]any{
				"type":        "array",
				"description": "Command lines run in order",
				"items":       map[string]any{"type": "string"},
			},
		},
	}, nil
}

func object(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0)

	for _, f := range fields {
		props[f.Name] = property(f)

		if f.Required {
			required = append(required, f.Name)
		}
	}

	obj := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}

	if len(required) > 0 {
		obj["required"] = required
	}

	return obj
}

func property(f Field) map[string]any {
	var prop map[string]any

	switch {
	case f.Type == durationType:
		prop = map[string]any{
			"anyOf": []any{
				map[string]any{"type": "string", "description": "Go duration such as 1m30s"},
				map[string]any{"type": "number", "minimum": 0, "description": "Seconds"},
			},
		}
	case len(f.Fields) > 0:
		prop = object(f.Fields)
	case f.Type == "array" && f.Items != nil:
		prop = map[string]any{"type": "array", "items": property(*f.Items)}
	case f.Type == "object":
		prop = map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}}
	default:
		prop = map[string]any{"type": f.Type}
	}

	if f.Description != "" {
		prop["description"] = f.Description
	}

	if len(f.Enum) > 0 {
		prop["enum"] = f.Enum
	}

	return prop
}

// WriteJSON writes the indented JSON schema of a batch file.
func WriteJSON(w io.Writer) error {
	doc, err := Document()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(doc) //nolint:wrapcheck
}

// WriteMarkdown writes a field reference of the batch file format.
func WriteMarkdown(w io.Writer) error {
	fields, err := Fields(reflect.TypeFor[config.Definition]())
	if err != nil {
		return err
	}

	var b strings.Builder

	b.WriteString("# Batch file reference\n\n")
	b.WriteString("A batch file is either a list of command lines or a structured definition.\n")
	b.WriteString("Durations accept a Go duration string such as `1m30s` or a number of seconds.\n")

	writeTable(&b, "Root", fields)

	for _, f := range fields {
		switch {
		case len(f.Fields) > 0:
			writeTable(&b, "`"+f.Name+"`", f.Fields)
		case f.Items != nil && len(f.Items.Fields) > 0:
			writeTable(&b, "`"+f.Name+"` entries", f.Items.Fields)
		}
	}

	_, err = io.WriteString(w, b.String())

	return err //nolint:wrapcheck
}

func writeTable(b *strings.Builder, title string, fields []Field) {
	fmt.Fprintf(b, "\n## %s\n\n", title)
	b.WriteString("| Field | Type | Required | Description |\n")
	b.WriteString("|-------|------|----------|-------------|\n")

	for _, f := range fields {
		typ := f.Type
		if f.Items != nil {
			typ = "array of " + f.Items.Type
		}

		desc := f.Description
		if len(f.Enum) > 0 {
			desc += " (" + strings.Join(f.Enum, ", ") + ")"
		}

		req := "No"
		if f.Required {
			req = "Yes"
		}

		fmt.Fprintf(b, "| `%s` | %s | %s | %s |\n", f.Name, typ, req, desc)
	}
}

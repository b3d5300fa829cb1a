package main

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"soulreflect/pkg/ai"
	"soulreflect/pkg/domain"
	"soulreflect/pkg/generator"
)

type questionsEnvelope struct {
	Questions []domain.QuestionWithOptions `json:"questions"`
}

// schemaTargets pairs each generator response schema with the type its
// payload decodes into.
var schemaTargets = map[string]reflect.Type{
	"questions":     reflect.TypeOf(questionsEnvelope{}),
	"diagnosis":     reflect.TypeOf(domain.KarmaDiagnostic{}),
	"fullDiagnosis": reflect.TypeOf(domain.FullSoulDiagnostic{}),
}

func newSchemasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "Inspect the generator response schemas",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Verify every response schema matches its domain type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkSchemas(generator.ResponseSchemas()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Response schema consistency check passed.")
			return nil
		},
	})
	return cmd
}

func checkSchemas(schemas map[string]*ai.Schema) error {
	names := make([]string, 0, len(schemaTargets))
	for name := range schemaTargets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s, ok := schemas[name]
		if !ok || s == nil {
			return fmt.Errorf("schema %q missing", name)
		}
		if err := checkShape(name, s, schemaTargets[name]); err != nil {
			return err
		}
	}
	return nil
}

// checkShape walks s alongside t: every json field of t must be a required
// property of matching type, and s must not declare properties t lacks.
func checkShape(path string, s *ai.Schema, t reflect.Type) error {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return expectType(path, s, ai.TypeString)
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
		return expectType(path, s, ai.TypeNumber)
	case reflect.Slice:
		if err := expectType(path, s, ai.TypeArray); err != nil {
			return err
		}
		if s.Items == nil {
			return fmt.Errorf("%s.items missing", path)
		}
		return checkShape(path+"[]", s.Items, t.Elem())
	case reflect.Struct:
		if err := expectType(path, s, ai.TypeObject); err != nil {
			return err
		}
		return checkObject(path, s, t)
	default:
		return fmt.Errorf("%s: unsupported Go kind %s", path, t.Kind())
	}
}

func checkObject(path string, s *ai.Schema, t reflect.Type) error {
	required := makeSet(s.Required)
	fields := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := jsonName(f)
		if name == "" {
			continue
		}
		fields[name] = true
		prop, ok := s.Properties[name]
		if !ok {
			return fmt.Errorf("%s.%s missing from schema", path, name)
		}
		if !required[name] {
			return fmt.Errorf("%s.required must include %q", path, name)
		}
		if err := checkShape(path+"."+name, prop, f.Type); err != nil {
			return err
		}
	}
	for name := range s.Properties {
		if !fields[name] {
			return fmt.Errorf("%s.%s has no field in %s", path, name, t.Name())
		}
	}
	return nil
}

func expectType(path string, s *ai.Schema, want ai.SchemaType) error {
	if s.Type != want {
		return fmt.Errorf("%s type mismatch: schema %q, domain %q", path, s.Type, want)
	}
	return nil
}

func jsonName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = true
	}
	return out
}

package adapters

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
)

// Kind is the JSON type a field must hold.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindInteger
	KindBool
	KindTime
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindBool:
		return "boolean"
	case KindTime:
		return "timestamp"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "unknown"
}

// Field describes one business field.
type Field struct {
	Kind Kind
	// Required fields must be present and non-null on create and can never be
	// cleared afterwards.
	Required bool
	Enum     []string
	// Min is the inclusive lower bound of a number.
	Min *float64
	// Ref names the entity whose live record this field must point at.
	Ref string
}

// DeleteGuard blocks deleting a record while live records of another entity
// still point at it through Field.
type DeleteGuard struct {
	Entity string
	Field  string
	// Active narrows the blocking records, nil means any live record.
	Active *models.ActiveRule
	Reason string
}

// Schema declares an entity.
type Schema struct {
	Entity string
	Fields map[string]Field
	Active *models.ActiveRule
	// StatusField and StatusExtras are the only keys update_status accepts.
	StatusField  string
	StatusExtras []string
	Guards       []DeleteGuard
	// CanDelete vets the record itself before guards are counted.
	CanDelete func(rec *models.Record) error
}

func ptr(f float64) *float64 { return &f }

// check validates a non-null value against f.
func (f Field) check(name string, v any) error {
	switch f.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return common.Invalid(name, "must be a string")
		}
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, s) {
			return common.Invalid(name, "must be one of %s, got %q", strings.Join(f.Enum, ", "), s)
		}
		if f.Ref != "" && s == "" {
			return common.Invalid(name, "must not be empty")
		}
	case KindNumber, KindInteger:
		n, ok := v.(float64)
		if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
			return common.Invalid(name, "must be a number")
		}
		if f.Kind == KindInteger && n != math.Trunc(n) {
			return common.Invalid(name, "must be an integer")
		}
		if f.Min != nil && n < *f.Min {
			return common.Invalid(name, "must be >= %v", *f.Min)
		}
	case KindBool:
		if _, ok := v.(bool); !ok {
			return common.Invalid(name, "must be a boolean")
		}
	case KindTime:
		s, ok := v.(string)
		if !ok {
			return common.Invalid(name, "must be an ISO-8601 timestamp")
		}
		if _, err := models.ParseTime(s); err != nil {
			return common.Invalid(name, "must be an ISO-8601 timestamp, got %q", s)
		}
	case KindObject:
		if _, ok := v.(map[string]any); !ok {
			return common.Invalid(name, "must be an object")
		}
	case KindArray:
		if _, ok := v.([]any); !ok {
			return common.Invalid(name, "must be an array")
		}
	}
	return nil
}

// validate checks a create payload (full) or an update patch (partial).
func (s *Schema) validate(fields models.Fields, create bool) error {
	for _, name := range sortedKeys(fields) {
		f, ok := s.Fields[name]
		if !ok {
			return common.Invalid(name, "unknown field for %s", s.Entity)
		}
		v := fields[name]
		if v == nil {
			if f.Required {
				return common.Invalid(name, "is required")
			}
			continue
		}
		if err := f.check(name, v); err != nil {
			return err
		}
	}

	if create {
		for _, name := range sortedKeys(s.Fields) {
			if !s.Fields[name].Required {
				continue
			}
			if v, ok := fields[name]; !ok || v == nil {
				return common.Invalid(name, "is required")
			}
		}
	}
	return nil
}

// validateStatus restricts an update_status payload.
func (s *Schema) validateStatus(fields models.Fields) error {
	if s.StatusField == "" {
		return common.Invalid("action", "%s has no status", s.Entity)
	}
	if _, ok := fields[s.StatusField]; !ok {
		return common.Invalid(s.StatusField, "is required for update_status")
	}
	for name := range fields {
		if name != s.StatusField && !slices.Contains(s.StatusExtras, name) {
			return common.Invalid(name, "update_status accepts only %s", strings.Join(append([]string{s.StatusField}, s.StatusExtras...), ", "))
		}
	}
	return s.validate(fields, false)
}

// checkRefs makes sure every reference in fields points at a live record.
func (s *Schema) checkRefs(ctx context.Context, repos repomanager.Repositories, reg *Registry, accountID string, fields models.Fields) error {
	for _, name := range sortedKeys(fields) {
		f := s.Fields[name]
		id, ok := fields[name].(string)
		if f.Ref == "" || !ok {
			continue
		}
		target, err := reg.Get(f.Ref)
		if err != nil {
			return fmt.Errorf("schema %s: %w", s.Entity, err)
		}
		rec, err := repos.Records(target.Table()).Get(ctx, accountID, id, false)
		if err != nil && !common.IsRejection(err) {
			return err
		}
		if err != nil || rec.IsDeleted() {
			return common.Invalid(name, "references unknown %s %q", f.Ref, id)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

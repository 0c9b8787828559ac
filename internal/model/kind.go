package model

import "github.com/google/uuid"

// Kind names one of the three entity collections.
type Kind string

const (
	KindCategory    Kind = "categories"
	KindSubcategory Kind = "subcategories"
	KindEvaluation  Kind = "evaluations"
)

func (k Kind) Valid() bool {
	switch k {
	case KindCategory, KindSubcategory, KindEvaluation:
		return true
	}
	return false
}

// Singular is used in error messages and event payloads.
func (k Kind) Singular() string {
	switch k {
	case KindCategory:
		return "category"
	case KindSubcategory:
		return "subcategory"
	case KindEvaluation:
		return "evaluation"
	}
	return string(k)
}

// ValidID reports whether id can name a row; ids are UUIDs generated on create.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

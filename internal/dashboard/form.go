package dashboard

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/fekuna/evaluation-portal/internal/apperr"
	catdto "github.com/fekuna/evaluation-portal/internal/category/dto"
	evaldto "github.com/fekuna/evaluation-portal/internal/evaluation/dto"
	"github.com/fekuna/evaluation-portal/internal/model"
	subdto "github.com/fekuna/evaluation-portal/internal/subcategory/dto"
	"github.com/go-playground/validator/v10"
)

// Fields is the unified form. Name and NameAr carry title/title_ar for
// evaluations.
type Fields struct {
	Name          string `json:"name"`
	NameAr        string `json:"name_ar"`
	Description   string `json:"description"`
	ImageURL      string `json:"image_url"`
	DownloadURL   string `json:"download_url"`
	CategoryID    string `json:"category_id"`
	SubcategoryID string `json:"subcategory_id"`
	SortOrder     int    `json:"sort_order"`
}

// Payload is one of CategoryPayload, SubcategoryPayload or EvaluationPayload.
type Payload interface {
	Kind() model.Kind
}

type CategoryPayload struct {
	Name        string `json:"name" validate:"required"`
	NameAr      string `json:"name_ar" validate:"required"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url" validate:"omitempty,http_url"`
}

func (CategoryPayload) Kind() model.Kind { return model.KindCategory }

type SubcategoryPayload struct {
	CategoryID  string `json:"category_id" validate:"required,uuid"`
	Name        string `json:"name" validate:"required"`
	NameAr      string `json:"name_ar" validate:"required"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url" validate:"omitempty,http_url"`
	SortOrder   int    `json:"sort_order" validate:"gte=0"`
}

func (SubcategoryPayload) Kind() model.Kind { return model.KindSubcategory }

type EvaluationPayload struct {
	SubcategoryID string `json:"subcategory_id" validate:"required,uuid"`
	Title         string `json:"title" validate:"required"`
	TitleAr       string `json:"title_ar" validate:"required"`
	Description   string `json:"description"`
	ImageURL      string `json:"image_url" validate:"omitempty,http_url"`
	DownloadURL   string `json:"download_url" validate:"required,http_url"`
	SortOrder     int    `json:"sort_order" validate:"gte=0"`
}

func (EvaluationPayload) Kind() model.Kind { return model.KindEvaluation }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var errUnknownKind = errors.New("unknown entity kind")

// BuildPayload turns the form into the payload for kind and validates it.
func BuildPayload(kind model.Kind, f Fields) (Payload, error) {
	var p Payload
	switch kind {
	case model.KindCategory:
		p = CategoryPayload{
			Name:        strings.TrimSpace(f.Name),
			NameAr:      strings.TrimSpace(f.NameAr),
			Description: strings.TrimSpace(f.Description),
			ImageURL:    strings.TrimSpace(f.ImageURL),
		}
	case model.KindSubcategory:
		p = SubcategoryPayload{
			CategoryID:  f.CategoryID,
			Name:        strings.TrimSpace(f.Name),
			NameAr:      strings.TrimSpace(f.NameAr),
			Description: strings.TrimSpace(f.Description),
			ImageURL:    strings.TrimSpace(f.ImageURL),
			SortOrder:   f.SortOrder,
		}
	case model.KindEvaluation:
		p = EvaluationPayload{
			SubcategoryID: f.SubcategoryID,
			Title:         strings.TrimSpace(f.Name),
			TitleAr:       strings.TrimSpace(f.NameAr),
			Description:   strings.TrimSpace(f.Description),
			ImageURL:      strings.TrimSpace(f.ImageURL),
			DownloadURL:   strings.TrimSpace(f.DownloadURL),
			SortOrder:     f.SortOrder,
		}
	default:
		return nil, errUnknownKind
	}
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	return p, nil
}

func validatePayload(p Payload) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return &apperr.ValidationError{Fields: fields}
}

func categoryFields(c *model.Category) Fields {
	return Fields{
		Name:        c.Name,
		NameAr:      c.NameAr,
		Description: deref(c.Description),
		ImageURL:    deref(c.ImageURL),
	}
}

func subcategoryFields(s *model.Subcategory) Fields {
	return Fields{
		Name:        s.Name,
		NameAr:      s.NameAr,
		Description: deref(s.Description),
		ImageURL:    deref(s.ImageURL),
		CategoryID:  s.CategoryID,
		SortOrder:   s.SortOrder,
	}
}

func evaluationFields(e *model.Evaluation) Fields {
	f := Fields{
		Name:          e.Title,
		NameAr:        e.TitleAr,
		Description:   deref(e.Description),
		ImageURL:      deref(e.ImageURL),
		DownloadURL:   e.DownloadURL,
		SubcategoryID: e.SubcategoryID,
		SortOrder:     e.SortOrder,
	}
	if e.Subcategory != nil {
		f.CategoryID = e.Subcategory.CategoryID
	}
	return f
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// dispatch sends p to the matching use case: create when id is empty,
// update otherwise.
func (s Services) dispatch(ctx context.Context, id string, p Payload) error {
	var err error
	switch v := p.(type) {
	case CategoryPayload:
		if id == "" {
			_, err = s.Categories.CreateCategory(ctx, &catdto.CreateCategoryInput{
				Name: v.Name, NameAr: v.NameAr, Description: v.Description, ImageURL: v.ImageURL,
			})
		} else {
			_, err = s.Categories.UpdateCategory(ctx, &catdto.UpdateCategoryInput{
				ID: id, Name: v.Name, NameAr: v.NameAr, Description: v.Description, ImageURL: v.ImageURL,
			})
		}
	case SubcategoryPayload:
		if id == "" {
			_, err = s.Subcategories.CreateSubcategory(ctx, &subdto.CreateSubcategoryInput{
				CategoryID: v.CategoryID, Name: v.Name, NameAr: v.NameAr,
				Description: v.Description, ImageURL: v.ImageURL, SortOrder: v.SortOrder,
			})
		} else {
			_, err = s.Subcategories.UpdateSubcategory(ctx, &subdto.UpdateSubcategoryInput{
				ID: id, CategoryID: v.CategoryID, Name: v.Name, NameAr: v.NameAr,
				Description: v.Description, ImageURL: v.ImageURL, SortOrder: v.SortOrder,
			})
		}
	case EvaluationPayload:
		if id == "" {
			_, err = s.Evaluations.CreateEvaluation(ctx, &evaldto.CreateEvaluationInput{
				SubcategoryID: v.SubcategoryID, Title: v.Title, TitleAr: v.TitleAr,
				Description: v.Description, ImageURL: v.ImageURL, DownloadURL: v.DownloadURL, SortOrder: v.SortOrder,
			})
		} else {
			_, err = s.Evaluations.UpdateEvaluation(ctx, &evaldto.UpdateEvaluationInput{
				ID: id, SubcategoryID: v.SubcategoryID, Title: v.Title, TitleAr: v.TitleAr,
				Description: v.Description, ImageURL: v.ImageURL, DownloadURL: v.DownloadURL, SortOrder: v.SortOrder,
			})
		}
	default:
		return errUnknownKind
	}
	return err
}

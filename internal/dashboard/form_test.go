package dashboard

import (
	"testing"

	"github.com/fekuna/evaluation-portal/internal/apperr"
	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	catID = "6f1c7f5e-8a0b-4c55-9d57-1b7a2f0c9e01"
	subID = "0b3e2a9d-51f4-4c1e-8f0a-7d6c5b4a3e02"
)

func TestBuildPayload(t *testing.T) {
	tests := []struct {
		name    string
		kind    model.Kind
		fields  Fields
		want    Payload
		invalid []string
	}{
		{
			name:   "category",
			kind:   model.KindCategory,
			fields: Fields{Name: " Math ", NameAr: "رياضيات", CategoryID: catID},
			want:   CategoryPayload{Name: "Math", NameAr: "رياضيات"},
		},
		{
			name:    "category without arabic name",
			kind:    model.KindCategory,
			fields:  Fields{Name: "Math", NameAr: ""},
			invalid: []string{"name_ar"},
		},
		{
			name:   "subcategory carries its parent",
			kind:   model.KindSubcategory,
			fields: Fields{Name: "Algebra", NameAr: "جبر", CategoryID: catID, SortOrder: 2},
			want:   SubcategoryPayload{CategoryID: catID, Name: "Algebra", NameAr: "جبر", SortOrder: 2},
		},
		{
			name:    "subcategory without parent",
			kind:    model.KindSubcategory,
			fields:  Fields{Name: "Algebra", NameAr: "جبر", SortOrder: -1},
			invalid: []string{"category_id", "sort_order"},
		},
		{
			name: "evaluation maps name to title",
			kind: model.KindEvaluation,
			fields: Fields{
				Name: "Quiz 1", NameAr: "اختبار ١", SubcategoryID: subID,
				DownloadURL: "https://x/y.pdf", ImageURL: "",
			},
			want: EvaluationPayload{
				SubcategoryID: subID, Title: "Quiz 1", TitleAr: "اختبار ١", DownloadURL: "https://x/y.pdf",
			},
		},
		{
			name:    "evaluation with bad links",
			kind:    model.KindEvaluation,
			fields:  Fields{Name: "Quiz", NameAr: "اختبار", SubcategoryID: subID, DownloadURL: "ftp:/nope", ImageURL: "not a url"},
			invalid: []string{"download_url", "image_url"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildPayload(tt.kind, tt.fields)
			if tt.invalid != nil {
				var ve *apperr.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, tt.invalid, ve.FieldNames())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.kind, got.Kind())
		})
	}
}

func TestBuildPayloadUnknownKind(t *testing.T) {
	_, err := BuildPayload(model.Kind("widgets"), Fields{})
	assert.ErrorIs(t, err, errUnknownKind)
}

func TestEvaluationFieldsPrefill(t *testing.T) {
	desc := "Final exam"
	f := evaluationFields(&model.Evaluation{
		SubcategoryID: subID,
		Title:         "Final",
		TitleAr:       "نهائي",
		Description:   &desc,
		DownloadURL:   "https://x/final.pdf",
		SortOrder:     3,
		Subcategory:   &model.SubcategoryRef{ID: subID, CategoryID: catID},
	})

	assert.Equal(t, Fields{
		Name: "Final", NameAr: "نهائي", Description: "Final exam",
		DownloadURL: "https://x/final.pdf", CategoryID: catID, SubcategoryID: subID, SortOrder: 3,
	}, f)
}

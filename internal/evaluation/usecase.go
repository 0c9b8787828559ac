package evaluation

import (
	"context"

	"github.com/fekuna/evaluation-portal/internal/evaluation/dto"
	"github.com/fekuna/evaluation-portal/internal/model"
)

type UseCase interface {
	CreateEvaluation(ctx context.Context, input *dto.CreateEvaluationInput) (*model.Evaluation, error)
	GetEvaluation(ctx context.Context, id string) (*model.Evaluation, error)
	// ListEvaluations returns nil without any request when subcategoryID is empty.
	ListEvaluations(ctx context.Context, subcategoryID string) ([]model.Evaluation, error)
	SearchEvaluations(ctx context.Context, filters *dto.SearchFilters) ([]model.Evaluation, error)
	UpdateEvaluation(ctx context.Context, input *dto.UpdateEvaluationInput) (*model.Evaluation, error)
	DeleteEvaluation(ctx context.Context, id string) error
}

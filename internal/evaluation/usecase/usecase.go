package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fekuna/evaluation-portal/internal/apperr"
	"github.com/fekuna/evaluation-portal/internal/cache"
	"github.com/fekuna/evaluation-portal/internal/evaluation"
	"github.com/fekuna/evaluation-portal/internal/evaluation/dto"
	"github.com/fekuna/evaluation-portal/internal/event"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/fekuna/evaluation-portal/internal/search"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	indexName          = "evaluations"
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

const indexMapping = `{
	"mappings": {
		"properties": {
			"subcategory_id": { "type": "keyword" },
			"title": { "type": "text" },
			"title_ar": { "type": "text", "analyzer": "arabic" },
			"description": { "type": "text" },
			"download_url": { "type": "keyword", "index": false },
			"sort_order": { "type": "integer" },
			"created_at": { "type": "date" }
		}
	}
}`

// Indexer is the search backend; search.Client implements it.
type Indexer interface {
	CreateIndex(ctx context.Context, index, mapping string) error
	Index(ctx context.Context, index, id string, doc interface{}) error
	Delete(ctx context.Context, index, id string) error
	Search(ctx context.Context, index string, query map[string]interface{}) (*search.SearchResponse, error)
}

type EvaluationUseCase struct {
	repo          evaluation.Repository
	subcategories evaluation.SubcategoryFinder
	cache         cache.ListCache
	es            Indexer
	events        event.Publisher
	logger        logger.ZapLogger

	indexMu    sync.Mutex
	indexReady bool
	// background tracks index syncs so tests and shutdown can wait for them.
	background sync.WaitGroup
}

// NewEvaluationUseCase accepts a nil es; search then goes to Postgres.
func NewEvaluationUseCase(repo evaluation.Repository, subcategories evaluation.SubcategoryFinder, c cache.ListCache, es Indexer, events event.Publisher, log logger.ZapLogger) *EvaluationUseCase {
	return &EvaluationUseCase{
		repo:          repo,
		subcategories: subcategories,
		cache:         c,
		es:            es,
		events:        events,
		logger:        log,
	}
}

var _ evaluation.UseCase = (*EvaluationUseCase)(nil)

func (uc *EvaluationUseCase) CreateEvaluation(ctx context.Context, input *dto.CreateEvaluationInput) (*model.Evaluation, error) {
	if err := uc.requireSubcategory(ctx, input.SubcategoryID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	e := &model.Evaluation{
		BaseModel: model.BaseModel{
			ID:        uuid.New().String(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		SubcategoryID: input.SubcategoryID,
		Title:         input.Title,
		TitleAr:       input.TitleAr,
		Description:   optional(input.Description),
		ImageURL:      optional(input.ImageURL),
		DownloadURL:   input.DownloadURL,
		SortOrder:     input.SortOrder,
	}

	if err := uc.repo.Create(ctx, e); err != nil {
		return nil, apperr.DataAccess("create evaluation", err)
	}

	uc.afterMutation(ctx, event.New(event.TypeCreated, model.KindEvaluation, e.ID, e.SubcategoryID))
	uc.syncToElastic(e)
	return e, nil
}

func (uc *EvaluationUseCase) GetEvaluation(ctx context.Context, id string) (*model.Evaluation, error) {
	if !model.ValidID(id) {
		return nil, apperr.NotFound(model.KindEvaluation.Singular(), id)
	}
	e, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.DataAccess("get evaluation", err)
	}
	if e == nil {
		return nil, apperr.NotFound(model.KindEvaluation.Singular(), id)
	}
	return e, nil
}

func (uc *EvaluationUseCase) ListEvaluations(ctx context.Context, subcategoryID string) ([]model.Evaluation, error) {
	if subcategoryID == "" {
		return nil, nil
	}
	if !model.ValidID(subcategoryID) {
		return []model.Evaluation{}, nil
	}

	key := cache.ListKey(model.KindEvaluation, subcategoryID)
	return cache.Load(ctx, uc.cache, uc.logger, key, func(ctx context.Context) ([]model.Evaluation, error) {
		evals, err := uc.repo.FindBySubcategory(ctx, subcategoryID)
		if err != nil {
			return nil, apperr.DataAccess("list evaluations", err)
		}
		return evals, nil
	})
}

func (uc *EvaluationUseCase) SearchEvaluations(ctx context.Context, filters *dto.SearchFilters) ([]model.Evaluation, error) {
	q := strings.TrimSpace(filters.Query)
	if q == "" {
		return []model.Evaluation{}, nil
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	if uc.es != nil {
		res, err := uc.es.Search(ctx, indexName, map[string]interface{}{
			"query": map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  q,
					"fields": []string{"title^2", "title_ar^2", "description"},
				},
			},
			"size": limit,
		})
		if err == nil {
			return uc.visibleHits(ctx, res)
		}
		uc.logger.Error("ES search failed, falling back to DB", zap.Error(err))
	}

	evals, err := uc.repo.Search(ctx, q, limit)
	if err != nil {
		return nil, apperr.DataAccess("search evaluations", err)
	}
	return evals, nil
}

// visibleHits resolves index hits against the store, dropping documents whose
// evaluation was deleted or orphaned since it was indexed. Hit order is kept.
func (uc *EvaluationUseCase) visibleHits(ctx context.Context, res *search.SearchResponse) ([]model.Evaluation, error) {
	ids := make([]string, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		if model.ValidID(hit.ID) {
			ids = append(ids, hit.ID)
		}
	}
	rows, err := uc.repo.FindVisible(ctx, ids)
	if err != nil {
		return nil, apperr.DataAccess("search evaluations", err)
	}

	byID := make(map[string]model.Evaluation, len(rows))
	for _, e := range rows {
		byID[e.ID] = e
	}
	evals := make([]model.Evaluation, 0, len(rows))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			evals = append(evals, e)
		}
	}
	return evals, nil
}

func (uc *EvaluationUseCase) UpdateEvaluation(ctx context.Context, input *dto.UpdateEvaluationInput) (*model.Evaluation, error) {
	e, err := uc.GetEvaluation(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := uc.requireSubcategory(ctx, input.SubcategoryID); err != nil {
		return nil, err
	}

	previousParent := e.SubcategoryID
	e.SubcategoryID = input.SubcategoryID
	e.Title = input.Title
	e.TitleAr = input.TitleAr
	e.Description = optional(input.Description)
	e.ImageURL = optional(input.ImageURL)
	e.DownloadURL = input.DownloadURL
	e.SortOrder = input.SortOrder
	e.UpdatedAt = time.Now().UTC()
	e.Subcategory = nil

	ok, err := uc.repo.Update(ctx, e)
	if err != nil {
		return nil, apperr.DataAccess("update evaluation", err)
	}
	if !ok {
		return nil, apperr.NotFound(model.KindEvaluation.Singular(), input.ID)
	}

	uc.afterMutation(ctx, event.New(event.TypeUpdated, model.KindEvaluation, e.ID, previousParent, e.SubcategoryID))
	uc.syncToElastic(e)
	return e, nil
}

func (uc *EvaluationUseCase) DeleteEvaluation(ctx context.Context, id string) error {
	e, err := uc.GetEvaluation(ctx, id)
	if err != nil {
		return err
	}

	ok, err := uc.repo.Delete(ctx, id)
	if err != nil {
		return apperr.DataAccess("delete evaluation", err)
	}
	if !ok {
		return apperr.NotFound(model.KindEvaluation.Singular(), id)
	}

	uc.afterMutation(ctx, event.New(event.TypeDeleted, model.KindEvaluation, id, e.SubcategoryID))
	if uc.es != nil {
		uc.background.Add(1)
		go func() {
			defer uc.background.Done()
			if err := uc.es.Delete(context.Background(), indexName, id); err != nil {
				uc.logger.Error("failed to delete evaluation from ES", zap.String("evaluation_id", id), zap.Error(err))
			}
		}()
	}
	return nil
}

// Wait blocks until pending index syncs finish.
func (uc *EvaluationUseCase) Wait() {
	uc.background.Wait()
}

func (uc *EvaluationUseCase) syncToElastic(e *model.Evaluation) {
	if uc.es == nil {
		return
	}
	doc := *e
	uc.background.Add(1)
	go func() {
		defer uc.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if !uc.ensureIndex(ctx) {
			uc.logger.Warn("skipping index sync", zap.String("evaluation_id", doc.ID))
			return
		}
		if err := uc.es.Index(ctx, indexName, doc.ID, doc); err != nil {
			uc.logger.Error("failed to index evaluation", zap.String("evaluation_id", doc.ID), zap.Error(err))
		}
	}()
}

// ensureIndex creates the index with its mapping before the first document
// goes in. A failed attempt is retried on the next sync; indexing into a
// missing index would let Elasticsearch pick a dynamic mapping.
func (uc *EvaluationUseCase) ensureIndex(ctx context.Context) bool {
	uc.indexMu.Lock()
	defer uc.indexMu.Unlock()
	if uc.indexReady {
		return true
	}
	if err := uc.es.CreateIndex(ctx, indexName, indexMapping); err != nil {
		uc.logger.Warn("failed to ensure evaluations index", zap.Error(err))
		return false
	}
	uc.indexReady = true
	return true
}

func (uc *EvaluationUseCase) requireSubcategory(ctx context.Context, subcategoryID string) error {
	if !model.ValidID(subcategoryID) {
		return apperr.NotFound(model.KindSubcategory.Singular(), subcategoryID)
	}
	sub, err := uc.subcategories.FindByID(ctx, subcategoryID)
	if err != nil {
		return apperr.DataAccess("get subcategory", err)
	}
	if sub == nil {
		return apperr.NotFound(model.KindSubcategory.Singular(), subcategoryID)
	}
	return nil
}

func (uc *EvaluationUseCase) afterMutation(ctx context.Context, ev event.CatalogChanged) {
	cache.Invalidate(ctx, uc.cache, uc.logger, ev.InvalidatedKeys()...)

	if err := uc.events.Publish(ctx, ev); err != nil {
		uc.logger.Error("failed to publish catalog event", zap.String("event_type", ev.EventType), zap.String("evaluation_id", ev.EntityID), zap.Error(err))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

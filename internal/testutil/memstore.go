// Package testutil provides an in-memory catalog store for tests. It honours
// the same join rules as the Postgres repositories: children of a deleted
// parent stay in place but are never returned.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fekuna/evaluation-portal/internal/cache"
	"github.com/fekuna/evaluation-portal/internal/category"
	catuc "github.com/fekuna/evaluation-portal/internal/category/usecase"
	"github.com/fekuna/evaluation-portal/internal/evaluation"
	evaluc "github.com/fekuna/evaluation-portal/internal/evaluation/usecase"
	"github.com/fekuna/evaluation-portal/internal/event"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/fekuna/evaluation-portal/internal/subcategory"
	subuc "github.com/fekuna/evaluation-portal/internal/subcategory/usecase"
)

type Store struct {
	mu       sync.Mutex
	cats     []model.Category
	subs     []model.Subcategory
	evals    []model.Evaluation
	requests int
	holding  int

	// Err, when set, fails every call.
	Err error
	// Hold blocks list calls for the given parent id until the channel closes.
	Hold map[string]chan struct{}
}

func NewStore() *Store {
	return &Store{Hold: map[string]chan struct{}{}}
}

// Requests counts calls that reached the store.
func (s *Store) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Holding counts calls that have reached a Hold channel.
func (s *Store) Holding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holding
}

func (s *Store) begin(ctx context.Context, parent string) error {
	s.mu.Lock()
	hold := s.Hold[parent]
	s.mu.Unlock()
	if hold != nil {
		s.mu.Lock()
		s.holding++
		s.mu.Unlock()
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	return s.Err
}

func (s *Store) Categories() *CategoryRepo       { return &CategoryRepo{s} }
func (s *Store) Subcategories() *SubcategoryRepo { return &SubcategoryRepo{s} }
func (s *Store) Evaluations() *EvaluationRepo   { return &EvaluationRepo{s} }

func (s *Store) catLocked(id string) *model.Category {
	for i := range s.cats {
		if s.cats[i].ID == id {
			return &s.cats[i]
		}
	}
	return nil
}

// visibleSubLocked returns the subcategory only if its category exists.
func (s *Store) visibleSubLocked(id string) (*model.Subcategory, *model.Category) {
	for i := range s.subs {
		if s.subs[i].ID == id {
			if c := s.catLocked(s.subs[i].CategoryID); c != nil {
				return &s.subs[i], c
			}
			return nil, nil
		}
	}
	return nil, nil
}

type CategoryRepo struct{ s *Store }

var (
	_ category.Repository = (*CategoryRepo)(nil)
	_ category.ChildIndex = (*SubcategoryRepo)(nil)
)

func (r *CategoryRepo) Create(ctx context.Context, c *model.Category) error {
	if err := r.s.begin(ctx, ""); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.cats = append(r.s.cats, *c)
	return nil
}

func (r *CategoryRepo) FindByID(ctx context.Context, id string) (*model.Category, error) {
	if err := r.s.begin(ctx, ""); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c := r.s.catLocked(id); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *CategoryRepo) FindAll(ctx context.Context) ([]model.Category, error) {
	if err := r.s.begin(ctx, ""); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]model.Category{}, r.s.cats...), nil
}

func (r *CategoryRepo) Update(ctx context.Context, c *model.Category) (bool, error) {
	if err := r.s.begin(ctx, ""); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur := r.s.catLocked(c.ID)
	if cur == nil {
		return false, nil
	}
	*cur = *c
	return true, nil
}

func (r *CategoryRepo) Delete(ctx context.Context, id string) (bool, error) {
	if err := r.s.begin(ctx, ""); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.cats {
		if r.s.cats[i].ID == id {
			r.s.cats = append(r.s.cats[:i], r.s.cats[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type SubcategoryRepo struct{ s *Store }

var _ subcategory.Repository = (*SubcategoryRepo)(nil)

func (r *SubcategoryRepo) Create(ctx context.Context, sub *model.Subcategory) error {
	if err := r.s.begin(ctx, ""); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *sub
	cp.Category = nil
	r.s.subs = append(r.s.subs, cp)
	return nil
}

func (r *SubcategoryRepo) FindByID(ctx context.Context, id string) (*model.Subcategory, error) {
	if err := r.s.begin(ctx, ""); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, cat := r.s.visibleSubLocked(id)
	if sub == nil {
		return nil, nil
	}
	cp := *sub
	cp.Category = &model.CategoryRef{ID: cat.ID, Name: cat.Name, NameAr: cat.NameAr}
	return &cp, nil
}

func (r *SubcategoryRepo) FindByCategory(ctx context.Context, categoryID string) ([]model.Subcategory, error) {
	if err := r.s.begin(ctx, categoryID); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Subcategory{}
	if r.s.catLocked(categoryID) == nil {
		return out, nil
	}
	for _, sub := range r.s.subs {
		if sub.CategoryID == categoryID {
			out = append(out, sub)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *SubcategoryRepo) SubcategoryIDs(ctx context.Context, categoryID string) ([]string, error) {
	if err := r.s.begin(ctx, ""); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []string
	for _, sub := range r.s.subs {
		if sub.CategoryID == categoryID {
			ids = append(ids, sub.ID)
		}
	}
	return ids, nil
}

func (r *SubcategoryRepo) Update(ctx context.Context, sub *model.Subcategory) (bool, error) {
	if err := r.s.begin(ctx, ""); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.subs {
		if r.s.subs[i].ID == sub.ID {
			cp := *sub
			cp.Category = nil
			r.s.subs[i] = cp
			return true, nil
		}
	}
	return false, nil
}

func (r *SubcategoryRepo) Delete(ctx context.Context, id string) (bool, error) {
	if err := r.s.begin(ctx, ""); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.subs {
		if r.s.subs[i].ID == id {
			r.s.subs = append(r.s.subs[:i], r.s.subs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type EvaluationRepo struct{ s *Store }

var _ evaluation.Repository = (*EvaluationRepo)(nil)

func (r *EvaluationRepo) Create(ctx context.Context, e *model.Evaluation) error {
	if err := r.s.begin(ctx, ""); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *e
	cp.Subcategory = nil
	r.s.evals = append(r.s.evals, cp)
	return nil
}

func (r *EvaluationRepo) joinLocked(e model.Evaluation) (model.Evaluation, bool) {
	sub, _ := r.s.visibleSubLocked(e.SubcategoryID)
	if sub == nil {
		return e, false
	}
	e.Subcategory = &model.SubcategoryRef{ID: sub.ID, CategoryID: sub.CategoryID, Name: sub.Name, NameAr: sub.NameAr}
	return e, true
}

func (r *EvaluationRepo) FindByID(ctx context.Context, id string) (*model.Evaluation, error) {
	if err := r.s.begin(ctx, ""); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.evals {
		if e.ID == id {
			if joined, ok := r.joinLocked(e); ok {
				return &joined, nil
			}
			return nil, nil
		}
	}
	return nil, nil
}

func (r *EvaluationRepo) FindVisible(ctx context.Context, ids []string) ([]model.Evaluation, error) {
	if err := r.s.begin(ctx, ""); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := []model.Evaluation{}
	for _, e := range r.s.evals {
		if !want[e.ID] {
			continue
		}
		if joined, ok := r.joinLocked(e); ok {
			out = append(out, joined)
		}
	}
	return out, nil
}

func (r *EvaluationRepo) FindBySubcategory(ctx context.Context, subcategoryID string) ([]model.Evaluation, error) {
	if err := r.s.begin(ctx, subcategoryID); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Evaluation{}
	for _, e := range r.s.evals {
		if e.SubcategoryID != subcategoryID {
			continue
		}
		if _, ok := r.joinLocked(e); ok {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *EvaluationRepo) Search(ctx context.Context, query string, limit int) ([]model.Evaluation, error) {
	if err := r.s.begin(ctx, ""); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q := strings.ToLower(query)
	out := []model.Evaluation{}
	for _, e := range r.s.evals {
		if len(out) == limit {
			break
		}
		if !strings.Contains(strings.ToLower(e.Title), q) && !strings.Contains(strings.ToLower(e.TitleAr), q) {
			continue
		}
		if joined, ok := r.joinLocked(e); ok {
			out = append(out, joined)
		}
	}
	return out, nil
}

func (r *EvaluationRepo) Update(ctx context.Context, e *model.Evaluation) (bool, error) {
	if err := r.s.begin(ctx, ""); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.evals {
		if r.s.evals[i].ID == e.ID {
			cp := *e
			cp.Subcategory = nil
			r.s.evals[i] = cp
			return true, nil
		}
	}
	return false, nil
}

func (r *EvaluationRepo) Delete(ctx context.Context, id string) (bool, error) {
	if err := r.s.begin(ctx, ""); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.evals {
		if r.s.evals[i].ID == id {
			r.s.evals = append(r.s.evals[:i], r.s.evals[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// UseCases wires the real use cases over the store with an in-process cache.
type UseCases struct {
	Categories    category.UseCase
	Subcategories subcategory.UseCase
	Evaluations   *evaluc.EvaluationUseCase
}

func (s *Store) UseCases(c cache.ListCache) UseCases {
	if c == nil {
		c = cache.NewLRUListCache(64, 0)
	}
	log := logger.NewNop()
	events := event.NopPublisher{}
	return UseCases{
		Categories:    catuc.NewCategoryUseCase(s.Categories(), s.Subcategories(), c, events, log),
		Subcategories: subuc.NewSubcategoryUseCase(s.Subcategories(), s.Categories(), c, events, log),
		Evaluations:   evaluc.NewEvaluationUseCase(s.Evaluations(), s.Subcategories(), c, nil, events, log),
	}
}

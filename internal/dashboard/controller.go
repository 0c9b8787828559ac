// Package dashboard drives the admin back office: which entity kind is
// active, which parents are selected, and the add/edit form. One Controller
// serves one signed-in admin.
package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fekuna/evaluation-portal/internal/apperr"
	"github.com/fekuna/evaluation-portal/internal/category"
	"github.com/fekuna/evaluation-portal/internal/evaluation"
	"github.com/fekuna/evaluation-portal/internal/i18n"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/fekuna/evaluation-portal/internal/subcategory"
	"go.uber.org/zap"
)

var (
	ErrAddDisabled = errors.New("add requires a parent selection")
	ErrFormClosed  = errors.New("form is not open")
	ErrClosed      = errors.New("dashboard closed")
)

type Services struct {
	Categories    category.UseCase
	Subcategories subcategory.UseCase
	Evaluations   evaluation.UseCase
}

type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
)

type Notification struct {
	Level       NotificationLevel `json:"level"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	At          time.Time         `json:"at"`
}

type Editing struct {
	Kind model.Kind `json:"kind"`
	ID   string     `json:"id"`
}

type Snapshot struct {
	ActiveKind            model.Kind          `json:"active_kind"`
	SelectedCategoryID    string              `json:"selected_category_id"`
	SelectedSubcategoryID string              `json:"selected_subcategory_id"`
	FormOpen              bool                `json:"form_open"`
	FormKind              model.Kind          `json:"form_kind,omitempty"`
	Editing               *Editing            `json:"editing"`
	Form                  Fields              `json:"form"`
	CanAdd                bool                `json:"can_add"`
	Categories            []model.Category    `json:"categories"`
	Subcategories         []model.Subcategory `json:"subcategories"`
	Evaluations           []model.Evaluation  `json:"evaluations"`
}

// ConfirmFunc is asked before a delete; prompt is the localized question.
type ConfirmFunc func(prompt string) bool

type Controller struct {
	svc    Services
	loc    *i18n.Localizer
	logger logger.ZapLogger
	now    func() time.Time

	mu     sync.Mutex
	closed bool

	activeKind    model.Kind
	selectedCat   string
	selectedSub   string
	formOpen      bool
	formKind      model.Kind
	editing       *Editing
	form          Fields
	formGen       uint64
	categories    []model.Category
	subcategories []model.Subcategory
	evaluations   []model.Evaluation

	// Bumped on every list request; a result is applied only if its
	// generation is still current.
	catGen, subGen, evalGen uint64

	inbox []Notification
}

func NewController(svc Services, loc *i18n.Localizer, log logger.ZapLogger) *Controller {
	return &Controller{
		svc:        svc,
		loc:        loc,
		logger:     log,
		now:        time.Now,
		activeKind: model.KindCategory,
	}
}

// Load lists categories and the collections under the current selection.
func (c *Controller) Load(ctx context.Context) error {
	if err := c.refreshCategories(ctx); err != nil {
		return err
	}
	if err := c.refreshSubcategories(ctx); err != nil {
		return err
	}
	return c.refreshEvaluations(ctx)
}

// SelectKind switches the active tab. Parent selections are kept.
func (c *Controller) SelectKind(kind model.Kind) error {
	if !kind.Valid() {
		return &apperr.ValidationError{Fields: map[string]string{"kind": "oneof"}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.activeKind = kind
	return nil
}

// SelectCategory resets the subcategory selection and the evaluation list,
// then re-lists subcategories for id.
func (c *Controller) SelectCategory(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.selectedCat = id
	c.selectedSub = ""
	c.evaluations = nil
	c.evalGen++
	c.mu.Unlock()

	return c.refreshSubcategories(ctx)
}

func (c *Controller) SelectSubcategory(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.selectedSub = id
	c.mu.Unlock()

	return c.refreshEvaluations(ctx)
}

func (c *Controller) CanAdd() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canAddLocked()
}

func (c *Controller) canAddLocked() bool {
	switch c.activeKind {
	case model.KindSubcategory:
		return c.selectedCat != ""
	case model.KindEvaluation:
		return c.selectedSub != ""
	default:
		return true
	}
}

// OpenAdd opens a blank form prefilled with the current parent selections.
func (c *Controller) OpenAdd() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if !c.canAddLocked() {
		return ErrAddDisabled
	}
	c.formGen++
	c.formOpen = true
	c.formKind = c.activeKind
	c.editing = nil
	c.form = Fields{CategoryID: c.selectedCat, SubcategoryID: c.selectedSub}
	return nil
}

// OpenEdit loads the entity of the active kind and prefills the form with
// its current values.
func (c *Controller) OpenEdit(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	kind := c.activeKind
	c.mu.Unlock()

	var (
		f   Fields
		err error
	)
	switch kind {
	case model.KindCategory:
		var cat *model.Category
		if cat, err = c.svc.Categories.GetCategory(ctx, id); err == nil {
			f = categoryFields(cat)
		}
	case model.KindSubcategory:
		var sub *model.Subcategory
		if sub, err = c.svc.Subcategories.GetSubcategory(ctx, id); err == nil {
			f = subcategoryFields(sub)
		}
	case model.KindEvaluation:
		var ev *model.Evaluation
		if ev, err = c.svc.Evaluations.GetEvaluation(ctx, id); err == nil {
			f = evaluationFields(ev)
		}
	}
	if err != nil {
		c.fail(i18n.MsgLoadFailed, err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.formGen++
	c.formOpen = true
	c.formKind = kind
	c.editing = &Editing{Kind: kind, ID: id}
	c.form = f
	return nil
}

func (c *Controller) UpdateForm(update func(*Fields)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if !c.formOpen {
		return ErrFormClosed
	}
	update(&c.form)
	return nil
}

func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeFormLocked()
}

func (c *Controller) closeFormLocked() {
	c.formGen++
	c.formOpen = false
	c.formKind = ""
	c.editing = nil
	c.form = Fields{}
}

// Save creates or updates the entity described by the form, re-lists the
// affected collection, then closes the form. On failure the form stays open.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.formOpen {
		c.mu.Unlock()
		return ErrFormClosed
	}
	kind := c.formKind
	var id string
	if c.editing != nil {
		id = c.editing.ID
	}
	form := c.form
	gen := c.formGen
	c.mu.Unlock()

	payload, err := BuildPayload(kind, form)
	if err == nil {
		err = c.svc.dispatch(ctx, id, payload)
	}
	if err != nil {
		c.logger.Warn("Failed to save entity", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		c.fail(i18n.MsgSaveFailed, err)
		return err
	}

	if err := c.refresh(ctx, kind); err != nil {
		c.logger.Warn("Failed to refresh after save", zap.String("kind", string(kind)), zap.Error(err))
	}

	desc := i18n.MsgItemCreated
	if id != "" {
		desc = i18n.MsgItemUpdated
	}
	c.notify(LevelSuccess, c.loc.T(i18n.MsgSaveSuccessTitle, nil), c.loc.T(desc, nil))

	c.mu.Lock()
	if c.formGen == gen {
		c.closeFormLocked()
	}
	c.mu.Unlock()
	return nil
}

// Delete removes id of the active kind once confirm agrees; a nil confirm
// never agrees. It never touches the form. Deleting the selected category
// clears both selections.
func (c *Controller) Delete(ctx context.Context, id string, confirm ConfirmFunc) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	kind := c.activeKind
	c.mu.Unlock()

	if confirm == nil || !confirm(c.loc.T(i18n.MsgDeleteConfirm, nil)) {
		return false, nil
	}

	var err error
	switch kind {
	case model.KindCategory:
		err = c.svc.Categories.DeleteCategory(ctx, id)
	case model.KindSubcategory:
		err = c.svc.Subcategories.DeleteSubcategory(ctx, id)
	case model.KindEvaluation:
		err = c.svc.Evaluations.DeleteEvaluation(ctx, id)
	}
	if err != nil {
		c.logger.Warn("Failed to delete entity", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		c.fail(i18n.MsgDeleteFailed, err)
		return false, err
	}

	c.mu.Lock()
	switch {
	case kind == model.KindCategory && id == c.selectedCat:
		c.selectedCat = ""
		c.selectedSub = ""
		c.subcategories = nil
		c.evaluations = nil
		c.subGen++
		c.evalGen++
	case kind == model.KindSubcategory && id == c.selectedSub:
		c.selectedSub = ""
		c.evaluations = nil
		c.evalGen++
	}
	c.mu.Unlock()

	if err := c.refresh(ctx, kind); err != nil {
		c.logger.Warn("Failed to refresh after delete", zap.String("kind", string(kind)), zap.Error(err))
	}
	c.notify(LevelSuccess, c.loc.T(i18n.MsgDeleteSuccessTitle, nil), "")
	return true, nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		ActiveKind:            c.activeKind,
		SelectedCategoryID:    c.selectedCat,
		SelectedSubcategoryID: c.selectedSub,
		FormOpen:              c.formOpen,
		FormKind:              c.formKind,
		Form:                  c.form,
		CanAdd:                c.canAddLocked(),
		Categories:            append([]model.Category{}, c.categories...),
		Subcategories:         append([]model.Subcategory{}, c.subcategories...),
		Evaluations:           append([]model.Evaluation{}, c.evaluations...),
	}
	if c.editing != nil {
		e := *c.editing
		s.Editing = &e
	}
	return s
}

// Notifications drains the inbox.
func (c *Controller) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.inbox
	c.inbox = nil
	return out
}

// Close stops the controller; in-flight results are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.inbox = nil
}

func (c *Controller) refresh(ctx context.Context, kind model.Kind) error {
	switch kind {
	case model.KindCategory:
		return c.refreshCategories(ctx)
	case model.KindSubcategory:
		return c.refreshSubcategories(ctx)
	default:
		return c.refreshEvaluations(ctx)
	}
}

func (c *Controller) refreshCategories(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.catGen++
	gen := c.catGen
	c.mu.Unlock()

	items, err := c.svc.Categories.ListCategories(ctx)
	if err != nil {
		c.fail(i18n.MsgLoadFailed, err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed && gen == c.catGen {
		c.categories = items
	}
	return nil
}

func (c *Controller) refreshSubcategories(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.subGen++
	gen := c.subGen
	parent := c.selectedCat
	c.mu.Unlock()

	items, err := c.svc.Subcategories.ListSubcategories(ctx, parent)
	if err != nil {
		c.fail(i18n.MsgLoadFailed, err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed && gen == c.subGen {
		c.subcategories = items
	}
	return nil
}

func (c *Controller) refreshEvaluations(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.evalGen++
	gen := c.evalGen
	parent := c.selectedSub
	c.mu.Unlock()

	items, err := c.svc.Evaluations.ListEvaluations(ctx, parent)
	if err != nil {
		c.fail(i18n.MsgLoadFailed, err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed && gen == c.evalGen {
		c.evaluations = items
	}
	return nil
}

// fail records an error notification. Validation and not-found errors get
// their own description; anything else uses fallback.
func (c *Controller) fail(fallback string, err error) {
	var ve *apperr.ValidationError
	desc := c.loc.T(fallback, nil)
	switch {
	case errors.As(err, &ve):
		desc = c.loc.T(i18n.MsgValidationFailed, map[string]interface{}{"Fields": strings.Join(ve.FieldNames(), ", ")})
	case apperr.IsNotFound(err):
		desc = c.loc.T(i18n.MsgNotFound, nil)
	}
	c.notify(LevelError, c.loc.T(i18n.MsgErrorTitle, nil), desc)
}

func (c *Controller) notify(level NotificationLevel, title, desc string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.inbox = append(c.inbox, Notification{Level: level, Title: title, Description: desc, At: c.now()})
}

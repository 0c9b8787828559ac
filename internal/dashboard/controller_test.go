package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fekuna/evaluation-portal/internal/apperr"
	catdto "github.com/fekuna/evaluation-portal/internal/category/dto"
	evaldto "github.com/fekuna/evaluation-portal/internal/evaluation/dto"
	"github.com/fekuna/evaluation-portal/internal/i18n"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/fekuna/evaluation-portal/internal/model"
	subdto "github.com/fekuna/evaluation-portal/internal/subcategory/dto"
	"github.com/fekuna/evaluation-portal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *testutil.Store
	uc    testutil.UseCases
	ctl   *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bundle, err := i18n.New("ar")
	require.NoError(t, err)

	store := testutil.NewStore()
	uc := store.UseCases(nil)
	ctl := NewController(Services{
		Categories:    uc.Categories,
		Subcategories: uc.Subcategories,
		Evaluations:   uc.Evaluations,
	}, bundle.Localizer("ar"), logger.NewNop())
	t.Cleanup(ctl.Close)
	return &fixture{store: store, uc: uc, ctl: ctl}
}

func (f *fixture) category(t *testing.T, nameAr string) *model.Category {
	t.Helper()
	c, err := f.uc.Categories.CreateCategory(context.Background(), &catdto.CreateCategoryInput{Name: nameAr, NameAr: nameAr})
	require.NoError(t, err)
	return c
}

func (f *fixture) subcategory(t *testing.T, categoryID, nameAr string, order int) *model.Subcategory {
	t.Helper()
	s, err := f.uc.Subcategories.CreateSubcategory(context.Background(), &subdto.CreateSubcategoryInput{
		CategoryID: categoryID, Name: nameAr, NameAr: nameAr, SortOrder: order,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) evaluation(t *testing.T, subcategoryID, titleAr string) *model.Evaluation {
	t.Helper()
	e, err := f.uc.Evaluations.CreateEvaluation(context.Background(), &evaldto.CreateEvaluationInput{
		SubcategoryID: subcategoryID, Title: titleAr, TitleAr: titleAr, DownloadURL: "https://x/" + titleAr + ".pdf",
	})
	require.NoError(t, err)
	return e
}

func confirmYes(string) bool { return true }

func TestSelectCategoryResetsSubcategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.category(t, "أ")
	b := f.category(t, "ب")
	subA := f.subcategory(t, a.ID, "أ١", 1)
	f.evaluation(t, subA.ID, "e1")
	f.subcategory(t, b.ID, "ب١", 1)

	require.NoError(t, f.ctl.SelectCategory(ctx, a.ID))
	require.NoError(t, f.ctl.SelectSubcategory(ctx, subA.ID))
	snap := f.ctl.Snapshot()
	require.Len(t, snap.Evaluations, 1)

	require.NoError(t, f.ctl.SelectCategory(ctx, b.ID))
	snap = f.ctl.Snapshot()
	assert.Equal(t, b.ID, snap.SelectedCategoryID)
	assert.Empty(t, snap.SelectedSubcategoryID)
	assert.Empty(t, snap.Evaluations)
	require.Len(t, snap.Subcategories, 1)
	assert.Equal(t, "ب١", snap.Subcategories[0].NameAr)
}

func TestSelectKindKeepsSelections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.category(t, "أ")

	require.NoError(t, f.ctl.SelectCategory(ctx, a.ID))
	require.NoError(t, f.ctl.SelectKind(model.KindEvaluation))
	assert.Equal(t, a.ID, f.ctl.Snapshot().SelectedCategoryID)

	err := f.ctl.SelectKind(model.Kind("widgets"))
	assert.True(t, apperr.IsValidation(err))
}

func TestAddRequiresParentSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.category(t, "أ")

	assert.True(t, f.ctl.CanAdd())

	require.NoError(t, f.ctl.SelectKind(model.KindSubcategory))
	assert.False(t, f.ctl.CanAdd())
	assert.ErrorIs(t, f.ctl.OpenAdd(), ErrAddDisabled)
	assert.False(t, f.ctl.Snapshot().FormOpen)

	require.NoError(t, f.ctl.SelectCategory(ctx, a.ID))
	require.NoError(t, f.ctl.OpenAdd())
	snap := f.ctl.Snapshot()
	assert.True(t, snap.FormOpen)
	assert.Nil(t, snap.Editing)
	assert.Equal(t, Fields{CategoryID: a.ID}, snap.Form)

	require.NoError(t, f.ctl.SelectKind(model.KindEvaluation))
	assert.False(t, f.ctl.CanAdd())
}

func TestSaveCreatesAndRelists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctl.Load(ctx))

	require.NoError(t, f.ctl.OpenAdd())
	require.NoError(t, f.ctl.UpdateForm(func(fl *Fields) {
		fl.Name = "Science"
		fl.NameAr = "علوم"
	}))
	require.NoError(t, f.ctl.Save(ctx))

	snap := f.ctl.Snapshot()
	assert.False(t, snap.FormOpen)
	require.Len(t, snap.Categories, 1)
	assert.Equal(t, "علوم", snap.Categories[0].NameAr)

	notes := f.ctl.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelSuccess, notes[0].Level)
	assert.Equal(t, "تم الحفظ بنجاح", notes[0].Title)
	assert.Equal(t, "تم إضافة العنصر", notes[0].Description)
	assert.Empty(t, f.ctl.Notifications())
}

func TestOpenEditPrefillsAndUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.category(t, "أ")
	sub := f.subcategory(t, a.ID, "جبر", 4)

	require.NoError(t, f.ctl.SelectKind(model.KindSubcategory))
	require.NoError(t, f.ctl.SelectCategory(ctx, a.ID))
	require.NoError(t, f.ctl.OpenEdit(ctx, sub.ID))

	snap := f.ctl.Snapshot()
	require.NotNil(t, snap.Editing)
	assert.Equal(t, Editing{Kind: model.KindSubcategory, ID: sub.ID}, *snap.Editing)
	assert.Equal(t, "جبر", snap.Form.NameAr)
	assert.Equal(t, a.ID, snap.Form.CategoryID)
	assert.Equal(t, 4, snap.Form.SortOrder)

	require.NoError(t, f.ctl.UpdateForm(func(fl *Fields) { fl.NameAr = "هندسة" }))
	require.NoError(t, f.ctl.Save(ctx))

	snap = f.ctl.Snapshot()
	assert.False(t, snap.FormOpen)
	require.Len(t, snap.Subcategories, 1)
	assert.Equal(t, "هندسة", snap.Subcategories[0].NameAr)
	notes := f.ctl.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "تم تحديث العنصر", notes[0].Description)
}

func TestOpenEditMissingEntity(t *testing.T) {
	f := newFixture(t)
	err := f.ctl.OpenEdit(context.Background(), catID)
	assert.True(t, apperr.IsNotFound(err))
	assert.False(t, f.ctl.Snapshot().FormOpen)

	notes := f.ctl.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelError, notes[0].Level)
	assert.Equal(t, "العنصر غير موجود", notes[0].Description)
}

func TestSaveValidationKeepsFormOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctl.OpenAdd())
	require.NoError(t, f.ctl.UpdateForm(func(fl *Fields) { fl.Name = "Math" }))
	before := f.store.Requests()

	err := f.ctl.Save(ctx)
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"name_ar"}, ve.FieldNames())
	assert.Equal(t, before, f.store.Requests())

	snap := f.ctl.Snapshot()
	assert.True(t, snap.FormOpen)
	assert.Equal(t, "Math", snap.Form.Name)

	notes := f.ctl.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "خطأ", notes[0].Title)
	assert.Contains(t, notes[0].Description, "name_ar")
}

func TestSaveStoreFailureKeepsFormOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctl.OpenAdd())
	require.NoError(t, f.ctl.UpdateForm(func(fl *Fields) {
		fl.Name = "Math"
		fl.NameAr = "رياضيات"
	}))
	f.store.Err = errors.New("connection reset")

	err := f.ctl.Save(ctx)
	assert.True(t, apperr.IsDataAccess(err))
	assert.True(t, f.ctl.Snapshot().FormOpen)

	notes := f.ctl.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "حدث خطأ أثناء الحفظ", notes[0].Description)
}

func TestFormOperationsNeedOpenForm(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.ctl.UpdateForm(func(*Fields) {}), ErrFormClosed)
	assert.ErrorIs(t, f.ctl.Save(context.Background()), ErrFormClosed)

	require.NoError(t, f.ctl.OpenAdd())
	f.ctl.Cancel()
	snap := f.ctl.Snapshot()
	assert.False(t, snap.FormOpen)
	assert.Equal(t, Fields{}, snap.Form)
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.category(t, "أ")
	require.NoError(t, f.ctl.Load(ctx))

	var prompt string
	deleted, err := f.ctl.Delete(ctx, a.ID, func(p string) bool {
		prompt = p
		return false
	})
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, "هل أنت متأكد من حذف هذا العنصر؟", prompt)
	assert.Len(t, f.ctl.Snapshot().Categories, 1)
	assert.Empty(t, f.ctl.Notifications())
}

func TestDeleteWithoutConfirmationKeepsEntity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.category(t, "أ")
	require.NoError(t, f.ctl.Load(ctx))
	before := f.store.Requests()

	deleted, err := f.ctl.Delete(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, before, f.store.Requests())
	assert.Len(t, f.ctl.Snapshot().Categories, 1)
}

func TestDeleteSelectedCategoryClearsSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.category(t, "أ")
	sub := f.subcategory(t, a.ID, "أ١", 1)
	require.NoError(t, f.ctl.Load(ctx))
	require.NoError(t, f.ctl.SelectCategory(ctx, a.ID))
	require.NoError(t, f.ctl.SelectSubcategory(ctx, sub.ID))
	require.NoError(t, f.ctl.OpenAdd())

	deleted, err := f.ctl.Delete(ctx, a.ID, confirmYes)
	require.NoError(t, err)
	assert.True(t, deleted)

	snap := f.ctl.Snapshot()
	assert.Empty(t, snap.SelectedCategoryID)
	assert.Empty(t, snap.SelectedSubcategoryID)
	assert.Empty(t, snap.Categories)
	assert.Empty(t, snap.Subcategories)
	assert.True(t, snap.FormOpen, "delete leaves the form alone")

	notes := f.ctl.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "تم الحذف بنجاح", notes[0].Title)
}

func TestDeleteTwiceLeavesCollectionUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.category(t, "أ")
	f.category(t, "ب")
	require.NoError(t, f.ctl.Load(ctx))

	_, err := f.ctl.Delete(ctx, a.ID, confirmYes)
	require.NoError(t, err)
	after := f.ctl.Snapshot().Categories
	f.ctl.Notifications()

	deleted, err := f.ctl.Delete(ctx, a.ID, confirmYes)
	assert.False(t, deleted)
	assert.True(t, apperr.IsNotFound(err))
	assert.Equal(t, after, f.ctl.Snapshot().Categories)

	notes := f.ctl.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelError, notes[0].Level)
}

func TestCloseDropsLateResults(t *testing.T) {
	f := newFixture(t)
	a := f.category(t, "أ")
	f.subcategory(t, a.ID, "أ١", 1)

	hold := make(chan struct{})
	f.store.Hold[a.ID] = hold

	done := make(chan error, 1)
	go func() { done <- f.ctl.SelectCategory(context.Background(), a.ID) }()

	require.Eventually(t, func() bool { return f.store.Holding() == 1 }, time.Second, 5*time.Millisecond)
	f.ctl.Close()
	close(hold)
	require.NoError(t, <-done)

	assert.Empty(t, f.ctl.Snapshot().Subcategories)
	assert.ErrorIs(t, f.ctl.OpenAdd(), ErrClosed)
}

func TestStaleSelectionIsDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.category(t, "أ")
	b := f.category(t, "ب")
	f.subcategory(t, a.ID, "أ١", 1)
	f.subcategory(t, b.ID, "ب١", 1)

	hold := make(chan struct{})
	f.store.Hold[a.ID] = hold

	done := make(chan error, 1)
	go func() { done <- f.ctl.SelectCategory(ctx, a.ID) }()
	require.Eventually(t, func() bool { return f.store.Holding() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.ctl.SelectCategory(ctx, b.ID))
	close(hold)
	require.NoError(t, <-done)

	snap := f.ctl.Snapshot()
	assert.Equal(t, b.ID, snap.SelectedCategoryID)
	require.Len(t, snap.Subcategories, 1)
	assert.Equal(t, "ب١", snap.Subcategories[0].NameAr)
}

func TestCatalogRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctl.Load(ctx))

	save := func(fill func(*Fields)) {
		t.Helper()
		require.NoError(t, f.ctl.OpenAdd())
		require.NoError(t, f.ctl.UpdateForm(fill))
		require.NoError(t, f.ctl.Save(ctx))
	}

	save(func(fl *Fields) {
		fl.Name = "Science"
		fl.NameAr = "علوم"
	})
	snap := f.ctl.Snapshot()
	require.Len(t, snap.Categories, 1)
	cat := snap.Categories[0]

	require.NoError(t, f.ctl.SelectKind(model.KindSubcategory))
	require.NoError(t, f.ctl.SelectCategory(ctx, cat.ID))
	save(func(fl *Fields) {
		fl.Name = "Physics"
		fl.NameAr = "فيزياء"
		fl.SortOrder = 1
	})
	snap = f.ctl.Snapshot()
	require.Len(t, snap.Subcategories, 1)
	sub := snap.Subcategories[0]
	assert.Equal(t, cat.ID, sub.CategoryID)
	assert.Equal(t, 1, sub.SortOrder)

	require.NoError(t, f.ctl.SelectKind(model.KindEvaluation))
	require.NoError(t, f.ctl.SelectSubcategory(ctx, sub.ID))
	save(func(fl *Fields) {
		fl.Name = "Exam"
		fl.NameAr = "امتحان"
		fl.DownloadURL = "https://x/y.pdf"
	})
	snap = f.ctl.Snapshot()
	require.Len(t, snap.Evaluations, 1)
	assert.Equal(t, "https://x/y.pdf", snap.Evaluations[0].DownloadURL)

	require.NoError(t, f.ctl.SelectKind(model.KindCategory))
	deleted, err := f.ctl.Delete(ctx, cat.ID, confirmYes)
	require.NoError(t, err)
	require.True(t, deleted)

	subs, err := f.uc.Subcategories.ListSubcategories(ctx, cat.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
	evals, err := f.uc.Evaluations.ListEvaluations(ctx, sub.ID)
	require.NoError(t, err)
	assert.Empty(t, evals)
}

package treatment

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"digital.vasic.beekeeper/pkg/catalog"
	"digital.vasic.beekeeper/pkg/check"
	"digital.vasic.beekeeper/pkg/metrics"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) RowCount(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *mockCatalog) Schema(ctx context.Context, id string) ([]catalog.Field, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]catalog.Field), args.Error(1)
}

func (m *mockCatalog) Page(ctx context.Context, id, field string, limit, offset int) ([]any, error) {
	args := m.Called(ctx, id, field, limit, offset)
	return args.Get(0).([]any), args.Error(1)
}

func (m *mockCatalog) Resource(ctx context.Context, id string) (*catalog.Resource, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*catalog.Resource)
	return r, args.Error(1)
}

func (m *mockCatalog) Package(ctx context.Context, id string) (*catalog.Package, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*catalog.Package)
	return p, args.Error(1)
}

func (m *mockCatalog) SetPackagePrivate(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func newCheck(t *testing.T, def check.Definition) *check.Check {
	t.Helper()
	c, err := check.New(def)
	require.NoError(t, err)
	return c
}

func resourceCheck(t *testing.T, treatment string) *check.Check {
	return newCheck(t, check.Definition{
		Code: "dog-zip", ResourceID: "res-1", FieldName: "OwnerZip",
		Assertion: "int", Treatment: treatment,
	})
}

func TestMakePrivate_ResolvesPackageFromResource(t *testing.T) {
	cat := &mockCatalog{}
	cat.On("Resource", mock.Anything, "res-1").Return(&catalog.Resource{ID: "res-1", PackageID: "pkg-1"}, nil)
	cat.On("Package", mock.Anything, "pkg-1").Return(&catalog.Package{ID: "pkg-1", Private: false}, nil)
	cat.On("SetPackagePrivate", mock.Anything, "pkg-1").Return(nil).Once()

	err := MakePrivate{Catalog: cat}.Apply(context.Background(), resourceCheck(t, "make_private"))
	require.NoError(t, err)
	cat.AssertExpectations(t)
}

func TestMakePrivate_PackageScoped(t *testing.T) {
	c := newCheck(t, check.Definition{
		Code: "p", PackageID: "pkg-2", FieldName: "f", Assertion: "int",
	})
	cat := &mockCatalog{}
	cat.On("Package", mock.Anything, "pkg-2").Return(&catalog.Package{ID: "pkg-2"}, nil)
	cat.On("SetPackagePrivate", mock.Anything, "pkg-2").Return(nil).Once()

	require.NoError(t, MakePrivate{Catalog: cat}.Apply(context.Background(), c))
	cat.AssertNotCalled(t, "Resource", mock.Anything, mock.Anything)
	cat.AssertExpectations(t)
}

func TestMakePrivate_PatchFails(t *testing.T) {
	cat := &mockCatalog{}
	cat.On("Resource", mock.Anything, "res-1").Return(&catalog.Resource{PackageID: "pkg-1"}, nil)
	cat.On("Package", mock.Anything, "pkg-1").Return(&catalog.Package{ID: "pkg-1"}, nil)
	cat.On("SetPackagePrivate", mock.Anything, "pkg-1").Return(errors.New("HTTP 403"))

	err := MakePrivate{Catalog: cat}.Apply(context.Background(), resourceCheck(t, "make_private"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "make package pkg-1 private")
}

func TestMakePrivate_ResourceLookupFails(t *testing.T) {
	cat := &mockCatalog{}
	cat.On("Resource", mock.Anything, "res-1").Return(nil, catalog.ErrNotFound)

	err := MakePrivate{Catalog: cat}.Apply(context.Background(), resourceCheck(t, "make_private"))
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
	cat.AssertNotCalled(t, "SetPackagePrivate", mock.Anything, mock.Anything)
}

type recordingAction struct {
	calls int
	err   error
}

func (r *recordingAction) Apply(context.Context, *check.Check) error {
	r.calls++
	return r.err
}

func TestExecutor_OnlyOnFailure(t *testing.T) {
	action := &recordingAction{}
	e := NewExecutor(nil, nil, nil)
	e.Register(check.TreatmentMakePrivate, action)
	c := resourceCheck(t, "make_private")

	ran, err := e.Execute(context.Background(), c, true)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 0, action.calls)

	ran, err = e.Execute(context.Background(), c, false)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, action.calls)
}

func TestExecutor_NoTreatment(t *testing.T) {
	action := &recordingAction{}
	e := NewExecutor(nil, nil, nil)
	e.Register(check.TreatmentMakePrivate, action)

	ran, err := e.Execute(context.Background(), resourceCheck(t, ""), false)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 0, action.calls)
}

func TestExecutor_ErrorPropagatesWithoutRetry(t *testing.T) {
	action := &recordingAction{err: errors.New("catalog down")}
	m := metrics.NewPrometheusMetrics()
	e := NewExecutor(nil, nil, m)
	e.Register(check.TreatmentMakePrivate, action)

	ran, err := e.Execute(context.Background(), resourceCheck(t, "make_private"), false)
	require.Error(t, err)
	assert.False(t, ran)
	assert.Equal(t, 1, action.calls)
	assert.Contains(t, err.Error(), "treatment make_private for check dog-zip")
}

func TestDryRun_LeavesCatalogAlone(t *testing.T) {
	cat := &mockCatalog{}
	e := NewExecutor(cat, nil, nil)
	e.Register(check.TreatmentMakePrivate, DryRun{Treatment: check.TreatmentMakePrivate})

	ran, err := e.Execute(context.Background(), resourceCheck(t, "make_private"), false)
	require.NoError(t, err)
	assert.True(t, ran)
	cat.AssertNotCalled(t, "SetPackagePrivate", mock.Anything, mock.Anything)
}

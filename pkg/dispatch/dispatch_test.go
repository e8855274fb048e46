package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.beekeeper/pkg/assertion"
	"digital.vasic.beekeeper/pkg/catalog"
	"digital.vasic.beekeeper/pkg/check"
	"digital.vasic.beekeeper/pkg/mind"
	"digital.vasic.beekeeper/pkg/notify"
	"digital.vasic.beekeeper/pkg/reference"
)

type memCatalog struct {
	packages  map[string]*catalog.Package
	resources map[string]*catalog.Resource
	data      map[string][]any
	fields    map[string][]string
	pageErr   map[string]error
	patchErr  error

	patched     []string
	schemaCalls int
	pageCalls   int
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		packages:  map[string]*catalog.Package{},
		resources: map[string]*catalog.Resource{},
		data:      map[string][]any{},
		fields:    map[string][]string{},
		pageErr:   map[string]error{},
	}
}

// addResource registers a datastore resource holding values for
// field inside pkg.
func (m *memCatalog) addResource(pkg, id, field string, private bool, values ...any) {
	p, ok := m.packages[pkg]
	if !ok {
		p = &catalog.Package{ID: pkg, Private: private}
		m.packages[pkg] = p
	}
	r := catalog.Resource{ID: id, PackageID: pkg, DatastoreActive: true}
	p.Resources = append(p.Resources, r)
	m.resources[id] = &r
	m.data[id] = values
	m.fields[id] = []string{"_id", field}
}

func (m *memCatalog) RowCount(_ context.Context, id string) (int, error) {
	values, ok := m.data[id]
	if !ok {
		return 0, catalog.ErrDatastoreInactive
	}
	return len(values), nil
}

func (m *memCatalog) Schema(_ context.Context, id string) ([]catalog.Field, error) {
	m.schemaCalls++
	var out []catalog.Field
	for _, f := range m.fields[id] {
		out = append(out, catalog.Field{ID: f, Type: "text"})
	}
	return out, nil
}

func (m *memCatalog) Page(_ context.Context, id, _ string, limit, offset int) ([]any, error) {
	m.pageCalls++
	if err := m.pageErr[id]; err != nil {
		return nil, err
	}
	values := m.data[id]
	if offset >= len(values) {
		return nil, nil
	}
	end := offset + limit
	if end > len(values) {
		end = len(values)
	}
	return values[offset:end], nil
}

func (m *memCatalog) Resource(_ context.Context, id string) (*catalog.Resource, error) {
	r, ok := m.resources[id]
	if !ok {
		return nil, errors.Mark(errors.Newf("resource %s", id), catalog.ErrNotFound)
	}
	return r, nil
}

func (m *memCatalog) Package(_ context.Context, id string) (*catalog.Package, error) {
	p, ok := m.packages[id]
	if !ok {
		return nil, errors.Mark(errors.Newf("package %s", id), catalog.ErrNotFound)
	}
	return p, nil
}

func (m *memCatalog) SetPackagePrivate(_ context.Context, id string) error {
	if m.patchErr != nil {
		return m.patchErr
	}
	m.patched = append(m.patched, id)
	m.packages[id].Private = true
	return nil
}

type recordingNotifier struct {
	messages []notify.Message
}

func (r *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	r.messages = append(r.messages, msg)
	return nil
}

type staticReferences struct {
	values []string
	err    error
	calls  int
}

func (s *staticReferences) Values(context.Context, reference.Descriptor, string) ([]string, error) {
	s.calls++
	return s.values, s.err
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newDispatcher(cat *memCatalog, n notify.Notifier, opts ...Option) *Dispatcher {
	loop := mind.NewLoop(cat, mind.WithSleep(noSleep), mind.WithChunkSize(2))
	return New(cat, loop, append([]Option{WithNotifier(n)}, opts...)...)
}

func mustCheck(t *testing.T, def check.Definition) *check.Check {
	t.Helper()
	c, err := check.New(def)
	require.NoError(t, err)
	return c
}

func zipCheck(t *testing.T, treatment string) *check.Check {
	return mustCheck(t, check.Definition{
		Code: "dog-zip", ResourceID: "res-1", FieldName: "OwnerZip",
		Assertion: "int", Treatment: treatment,
	})
}

func TestRun_ResourcePasses(t *testing.T) {
	cat := newMemCatalog()
	cat.addResource("pkg-1", "res-1", "OwnerZip", false, "15213", "15217", "15222")
	n := &recordingNotifier{}

	results, err := newDispatcher(cat, n).Run(context.Background(), zipCheck(t, ""))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, check.StatusPassed, results[0].Status)
	assert.Equal(t, 3, results[0].RowCount)
	assert.Equal(t, 3, results[0].Scanned)
	assert.Empty(t, n.messages)
}

func TestRun_PrivateResourceSkipped(t *testing.T) {
	cat := newMemCatalog()
	cat.addResource("pkg-1", "res-1", "OwnerZip", true, "not a zip")
	n := &recordingNotifier{}

	results, err := newDispatcher(cat, n).Run(context.Background(), zipCheck(t, "make_private"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, check.StatusSkipped, results[0].Status)
	assert.Contains(t, results[0].Message, "private")
	assert.Equal(t, 0, cat.schemaCalls)
	assert.Equal(t, 0, cat.pageCalls)
	assert.Empty(t, n.messages)
	assert.Empty(t, cat.patched)
}

func TestRun_MissingField(t *testing.T) {
	cat := newMemCatalog()
	cat.addResource("pkg-1", "res-1", "Zip", false, "15213")
	n := &recordingNotifier{}

	results, err := newDispatcher(cat, n).Run(context.Background(), zipCheck(t, ""))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, check.StatusError, results[0].Status)
	require.Len(t, n.messages, 1)
	assert.Equal(t,
		"Unable to find field called 'OwnerZip' in schema for resource with resource ID res-1.",
		n.messages[0].Text)
	assert.Equal(t, 0, cat.pageCalls)
}

func TestRun_FailureNotifiesAndTreats(t *testing.T) {
	cat := newMemCatalog()
	cat.addResource("pkg-1", "res-1", "OwnerZip", false, "15213", "15213-1234", "x")
	n := &recordingNotifier{}

	results, err := newDispatcher(cat, n).Run(context.Background(), zipCheck(t, "make_private"))
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, check.StatusFailed, r.Status)
	assert.Equal(t, "15213-1234", r.FailedValue)
	assert.Equal(t, "make_private", r.Treatment)
	assert.Equal(t, []string{"pkg-1"}, cat.patched)

	require.Len(t, n.messages, 1)
	assert.Equal(t,
		`The assertion type:int failed on field name 'OwnerZip' for resource with ID res-1. First failing value: "15213-1234" at record 1.`,
		n.messages[0].Text)
	assert.Equal(t, notify.IconDefault, n.messages[0].Icon)
}

func TestRun_TreatmentErrorAbortsRun(t *testing.T) {
	cat := newMemCatalog()
	cat.addResource("pkg-1", "res-1", "OwnerZip", false, "x")
	cat.patchErr = errors.New("HTTP 403: Access denied")

	results, err := newDispatcher(cat, &recordingNotifier{}).Run(context.Background(), zipCheck(t, "make_private"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Access denied")
	require.Len(t, results, 1)
	assert.Equal(t, check.StatusFailed, results[0].Status)
	assert.NotEmpty(t, results[0].Error)
}

func TestRun_PackageScoped(t *testing.T) {
	cat := newMemCatalog()
	cat.addResource("pkg-1", "res-a", "OwnerZip", false, "1", "2")
	cat.addResource("pkg-1", "res-b", "OwnerZip", false, "3", "four")
	cat.packages["pkg-1"].Resources = append(cat.packages["pkg-1"].Resources,
		catalog.Resource{ID: "res-pdf", PackageID: "pkg-1", DatastoreActive: false})

	c := mustCheck(t, check.Definition{
		Code: "zips", PackageID: "pkg-1", FieldName: "OwnerZip", Assertion: "int",
	})
	n := &recordingNotifier{}

	results, err := newDispatcher(cat, n).Run(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "res-a", results[0].ResourceID)
	assert.Equal(t, check.StatusPassed, results[0].Status)
	assert.Equal(t, "res-b", results[1].ResourceID)
	assert.Equal(t, check.StatusFailed, results[1].Status)
	assert.Equal(t, "pkg-1", results[1].PackageID)
	assert.Len(t, n.messages, 1)
}

func TestRun_PrivatePackageSkipped(t *testing.T) {
	cat := newMemCatalog()
	cat.addResource("pkg-1", "res-a", "OwnerZip", true, "x")
	c := mustCheck(t, check.Definition{
		Code: "zips", PackageID: "pkg-1", FieldName: "OwnerZip", Assertion: "int",
	})

	results, err := newDispatcher(cat, &recordingNotifier{}).Run(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, check.StatusSkipped, results[0].Status)
	assert.Equal(t, 0, cat.pageCalls)
}

func TestRun_PackageWithoutDatastores(t *testing.T) {
	cat := newMemCatalog()
	cat.packages["pkg-1"] = &catalog.Package{ID: "pkg-1", Resources: []catalog.Resource{
		{ID: "pdf", DatastoreActive: false},
	}}
	c := mustCheck(t, check.Definition{
		Code: "zips", PackageID: "pkg-1", FieldName: "OwnerZip", Assertion: "int",
	})

	results, err := newDispatcher(cat, &recordingNotifier{}).Run(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, check.StatusSkipped, results[0].Status)
	assert.Contains(t, results[0].Message, "no datastore resources")
}

func containmentCheck(t *testing.T) *check.Check {
	return mustCheck(t, check.Definition{
		Code: "zips-known", ResourceID: "res-1", FieldName: "Zip",
		Assertion: "contained_in_reference",
		Reference: &reference.Descriptor{Publisher: "pgh", Type: "ftp", File: "zips.csv"},
	})
}

func TestRun_ContainmentLeftover(t *testing.T) {
	cat := newMemCatalog()
	cat.addResource("pkg-1", "res-1", "Zip", false, "A", "B", "Q", "A")
	refs := &staticReferences{values: []string{"A", "B", "C"}}
	n := &recordingNotifier{}

	results, err := newDispatcher(cat, n, WithReferences(refs)).Run(context.Background(), containmentCheck(t))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, check.StatusFailed, results[0].Status)
	assert.Equal(t, []string{"C"}, results[0].Leftover)
	assert.Equal(t, 4, results[0].Scanned)
	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0].Text, "1 reference value never observed: C.")
}

func TestRun_ContainmentAllSeen(t *testing.T) {
	cat := newMemCatalog()
	cat.addResource("pkg-1", "res-1", "Zip", false, "C", "A", "B")
	refs := &staticReferences{values: []string{"A", "B", "C"}}

	results, err := newDispatcher(cat, &recordingNotifier{}, WithReferences(refs)).
		Run(context.Background(), containmentCheck(t))
	require.NoError(t, err)
	assert.Equal(t, check.StatusPassed, results[0].Status)
	assert.Empty(t, results[0].Leftover)
}

func TestRun_ReferenceConfigErrorIsFatal(t *testing.T) {
	cat := newMemCatalog()
	cat.addResource("pkg-1", "res-1", "Zip", false, "A")
	refs := &staticReferences{err: errors.Mark(errors.New("no sftp settings"), reference.ErrDescriptor)}

	_, err := newDispatcher(cat, &recordingNotifier{}, WithReferences(refs)).
		Run(context.Background(), containmentCheck(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, check.ErrConfig))
	assert.Equal(t, 1, refs.calls, "configuration errors are not retried")
	assert.Equal(t, 0, cat.pageCalls)
}

func TestRun_ReferenceFetchErrorIsResult(t *testing.T) {
	cat := newMemCatalog()
	cat.addResource("pkg-1", "res-1", "Zip", false, "A")
	refs := &staticReferences{err: errors.New("connection refused")}
	n := &recordingNotifier{}

	results, err := newDispatcher(cat, n, WithReferences(refs)).Run(context.Background(), containmentCheck(t))
	require.NoError(t, err)
	assert.Equal(t, check.StatusError, results[0].Status)
	assert.Equal(t, mind.DefaultFailureBudget, refs.calls)
	assert.Len(t, n.messages, 1)
}

func TestRun_NoResolverIsConfigError(t *testing.T) {
	cat := newMemCatalog()
	cat.addResource("pkg-1", "res-1", "Zip", false, "A")

	_, err := newDispatcher(cat, &recordingNotifier{}).Run(context.Background(), containmentCheck(t))
	assert.True(t, errors.Is(err, check.ErrConfig))
}

func TestRun_BudgetExhaustedIsErrorResult(t *testing.T) {
	cat := newMemCatalog()
	cat.addResource("pkg-1", "res-1", "OwnerZip", false, "1", "2")
	cat.pageErr["res-1"] = errors.New("503 Service Unavailable")
	n := &recordingNotifier{}

	results, err := newDispatcher(cat, n).Run(context.Background(), zipCheck(t, "make_private"))
	require.NoError(t, err, "exhaustion must not abort other checks")
	require.Len(t, results, 1)
	assert.Equal(t, check.StatusError, results[0].Status)
	assert.Contains(t, results[0].Error, "failed 5 times in a row")
	assert.Equal(t, 5, cat.pageCalls)
	assert.Empty(t, cat.patched, "no treatment for operational errors")
	assert.Len(t, n.messages, 1)
}

func TestRun_UnknownResourceIsErrorResult(t *testing.T) {
	cat := newMemCatalog()
	results, err := newDispatcher(cat, &recordingNotifier{}).Run(context.Background(), zipCheck(t, ""))
	require.NoError(t, err)
	assert.Equal(t, check.StatusError, results[0].Status)
}

func TestRun_CancelledContext(t *testing.T) {
	cat := newMemCatalog()
	cat.addResource("pkg-1", "res-1", "OwnerZip", false, "1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := newDispatcher(cat, &recordingNotifier{}).Run(ctx, zipCheck(t, ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, results)
}

func TestFailureMessage_TruncatesLeftover(t *testing.T) {
	c := containmentCheck(t)
	var refs []string
	for i := 0; i < 13; i++ {
		refs = append(refs, fmt.Sprintf("v%02d", i))
	}
	msg := failureMessage(c, mind.Verdict{
		PostFailed:  true,
		Accumulator: assertion.NewAccumulator(refs...),
	})
	assert.Contains(t, msg, "13 reference values never observed: v00, v01")
	assert.Contains(t, msg, "v09 and 3 more.")
	assert.NotContains(t, msg, "v10")
}

package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/shelf/internal/db"
	"github.com/randalmurphal/shelf/internal/services"
)

// fakeSource serves list members by list name.
type fakeSource struct {
	kind services.Kind

	mu      sync.Mutex
	members map[string][]services.RemoteItem
	err     error
	calls   int
	fetched chan string
}

func newFakeSource(kind services.Kind) *fakeSource {
	return &fakeSource{kind: kind, members: map[string][]services.RemoteItem{}}
}

func (f *fakeSource) Kind() services.Kind { return f.kind }

func (f *fakeSource) Fetch(_ context.Context, ref services.ListRef) ([]services.RemoteItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fetched != nil {
		select {
		case f.fetched <- ref.Name:
		default:
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.members[ref.Name], nil
}

func (f *fakeSource) set(list string, items ...services.RemoteItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[list] = items
}

func registryWith(sources ...*fakeSource) *services.Registry {
	reg := services.NewRegistry()
	for _, src := range sources {
		reg.Register(src.kind, func(services.Account) (services.Source, error) { return src, nil })
	}
	return reg
}

func remote(key, summary string) services.RemoteItem {
	return services.RemoteItem{Key: key, Summary: summary, Fields: []byte(`{"key":"` + key + `"}`)}
}

func itemByKey(t *testing.T, f *db.Fixture, serviceID, key string) (*db.Item, *db.Detail) {
	t.Helper()
	var it *db.Item
	var d *db.Detail
	f.Tx(func(tx *db.TxOps) error {
		ds, err := db.FindDetailsTx(tx, db.Eq("service_id", serviceID), db.Eq("remote_key", key))
		require.NoError(t, err)
		if len(ds) == 0 {
			return nil
		}
		d = &ds[0]
		it, err = db.GetItemTx(tx, d.ItemID)
		return err
	})
	return it, d
}

func TestRunOnce_MirrorsNewItems(t *testing.T) {
	f := db.NewFixture(t)
	svc := f.Service("jira", "work")
	l := f.List(svc.ID, "sprint")
	f.Tx(func(tx *db.TxOps) error {
		_, err := db.UpdateListsTx(tx, db.Patch{"due_offset": "3d"}, db.Eq("id", l.ID))
		return err
	})

	due := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)
	src := newFakeSource(services.KindJira)
	withDue := remote("PROJ-2", "With due")
	withDue.Due = &due
	src.set("sprint", remote("PROJ-1", "First"), withDue)

	s := New(f.DB, registryWith(src), Config{}, nil)
	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Accounts)
	assert.Equal(t, 1, report.Lists)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 2, report.Added)
	assert.Empty(t, report.Problems)

	it, d := itemByKey(t, f, svc.ID, "PROJ-1")
	require.NotNil(t, it)
	assert.Equal(t, "First", it.Title)
	assert.Empty(t, it.SectionID, "synced items land in the inbox")
	assert.True(t, d.Service.HasTaskState)
	assert.Equal(t, "PROJ-1", services.DetailField(d.Service, "key").String())

	f.Tx(func(tx *db.TxOps) error {
		ts, err := db.GetTaskStateTx(tx, it.ID)
		require.NoError(t, err)
		require.NotNil(t, ts)
		assert.Equal(t, db.ControllerServiceList, ts.Controller)
		require.NotNil(t, ts.Due, "due comes from the list offset")
		assert.Nil(t, ts.Done)

		ps, err := db.FindPlacementsTx(tx, db.Eq("item_id", it.ID))
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.True(t, ts.Due.Equal(ps[0].Present.Add(72*time.Hour)))
		return nil
	})
}

func TestRunOnce_RepeatedPassIsStable(t *testing.T) {
	f := db.NewFixture(t)
	svc := f.Service("jira", "work")
	f.List(svc.ID, "sprint")
	src := newFakeSource(services.KindJira)
	src.set("sprint", remote("PROJ-1", "First"))
	s := New(f.DB, registryWith(src), Config{}, nil)

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	first, _ := itemByKey(t, f, svc.ID, "PROJ-1")

	src.set("sprint", remote("PROJ-1", "First, renamed"))
	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Created)
	assert.Zero(t, report.Added)

	again, _ := itemByKey(t, f, svc.ID, "PROJ-1")
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "First, renamed", again.Title)
}

func TestRunOnce_DepartedInboxItemIsPruned(t *testing.T) {
	f := db.NewFixture(t)
	c := f.Context("home")
	svc := f.Service("jira", "work")
	f.List(svc.ID, "sprint")
	src := newFakeSource(services.KindJira)
	src.set("sprint", remote("PROJ-1", "Leaves"), remote("PROJ-2", "Filed"), remote("PROJ-3", "Stays"))
	s := New(f.DB, registryWith(src), Config{}, nil)

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	filed, _ := itemByKey(t, f, svc.ID, "PROJ-2")
	f.Tx(func(tx *db.TxOps) error {
		_, err := db.UpdateItemsTx(tx, db.Patch{"section_id": c.ID}, db.Eq("id", filed.ID))
		return err
	})

	src.set("sprint", remote("PROJ-3", "Stays"))
	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Closed)
	assert.Equal(t, 1, report.Pruned)

	gone, _ := itemByKey(t, f, svc.ID, "PROJ-1")
	assert.Nil(t, gone, "done, unfiled and unlisted")

	kept, _ := itemByKey(t, f, svc.ID, "PROJ-2")
	require.NotNil(t, kept, "filed items are kept")
	f.Tx(func(tx *db.TxOps) error {
		ts, err := db.GetTaskStateTx(tx, kept.ID)
		require.NoError(t, err)
		assert.NotNil(t, ts.Done)
		return nil
	})

	stays, _ := itemByKey(t, f, svc.ID, "PROJ-3")
	assert.NotNil(t, stays)
}

func TestRunOnce_FailingAccountDoesNotStopOthers(t *testing.T) {
	f := db.NewFixture(t)
	jiraSvc := f.Service("jira", "work")
	f.List(jiraSvc.ID, "sprint")
	ghSvc := f.Service("github", "oss")
	f.List(ghSvc.ID, "issues")
	glSvc := f.Service("gitlab", "unregistered")
	f.List(glSvc.ID, "mrs")

	jira := newFakeSource(services.KindJira)
	jira.set("sprint", remote("PROJ-1", "Works"))
	gh := newFakeSource(services.KindGitHub)
	gh.err = errors.New("rate limited")

	s := New(f.DB, registryWith(jira, gh), Config{Concurrency: 2}, nil)
	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Accounts)
	assert.Equal(t, 1, report.Lists)
	require.Len(t, report.Problems, 2)

	it, _ := itemByKey(t, f, jiraSvc.ID, "PROJ-1")
	assert.NotNil(t, it)

	f.Tx(func(tx *db.TxOps) error {
		ps, err := db.FindSyncProblemsTx(tx, db.Eq("service_id", ghSvc.ID))
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.Contains(t, ps[0].Message, "rate limited")

		ps, err = db.FindSyncProblemsTx(tx, db.Eq("service_id", glSvc.ID))
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.Contains(t, ps[0].Message, "no source registered")
		return nil
	})
}

func TestRunOnce_ApplyFailureRollsBackAccount(t *testing.T) {
	f := db.NewFixture(t)
	svc := f.Service("jira", "work")
	good := f.List(svc.ID, "a-good")
	bad := f.List(svc.ID, "b-bad")
	f.Tx(func(tx *db.TxOps) error {
		_, err := db.UpdateListsTx(tx, db.Patch{"due_offset": "soon"}, db.Eq("id", bad.ID))
		return err
	})

	src := newFakeSource(services.KindJira)
	src.set("a-good", remote("PROJ-1", "One"))
	s := New(f.DB, registryWith(src), Config{}, nil)

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Problems, 1)
	assert.Contains(t, report.Problems[0].Message, "b-bad")
	assert.Zero(t, report.Lists)

	f.Tx(func(tx *db.TxOps) error {
		n, err := db.CountTx(tx, "list_placements", db.Eq("list_id", good.ID))
		require.NoError(t, err)
		assert.Zero(t, n, "the whole account is rolled back")
		return nil
	})
}

func TestStartStop(t *testing.T) {
	f := db.NewFixture(t)
	svc := f.Service("jira", "work")
	f.List(svc.ID, "sprint")
	src := newFakeSource(services.KindJira)
	src.fetched = make(chan string, 1)

	s := New(f.DB, registryWith(src), Config{Interval: time.Hour}, nil)
	s.Start(context.Background())

	select {
	case name := <-src.fetched:
		assert.Equal(t, "sprint", name)
	case <-time.After(5 * time.Second):
		t.Fatal("first pass did not run")
	}
	s.Stop()

	select {
	case <-s.Done():
	default:
		t.Fatal("loop still running after Stop")
	}
}

func TestStart_ContextCancelStopsLoop(t *testing.T) {
	f := db.NewFixture(t)
	s := New(f.DB, services.NewRegistry(), Config{Interval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop on cancel")
	}
}

package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, d *DB) *User {
	t.Helper()
	u := &User{Name: "ada"}
	MustTx(t, d, func(tx *TxOps) error { return CreateUserTx(tx, u) })
	return u
}

func TestOpenInMemory_AppliesSchema(t *testing.T) {
	d := NewTestDB(t)

	var n int
	require.NoError(t, d.SQL().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&n))
	assert.Equal(t, 1, n)

	// Migrating again is a no-op.
	require.NoError(t, d.Migrate(context.Background()))
}

func TestOpen_File(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	assert.Contains(t, d.Path(), "shelf.db")
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	d := NewTestDB(t)
	boom := errors.New("boom")

	err := d.RunInTx(context.Background(), func(tx *TxOps) error {
		if err := CreateUserTx(tx, &User{Name: "ghost"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	MustTx(t, d, func(tx *TxOps) error {
		users, err := FindUsersTx(tx, Eq("name", "ghost"))
		require.NoError(t, err)
		assert.Empty(t, users)
		return nil
	})
}

func TestCreateContext_CreatesAnonymousProjectAndSection(t *testing.T) {
	d := NewTestDB(t)
	u := seedUser(t, d)

	c := &Context{UserID: u.ID, Name: "work"}
	MustTx(t, d, func(tx *TxOps) error { return CreateContextTx(tx, c) })

	MustTx(t, d, func(tx *TxOps) error {
		p, err := GetProjectTx(tx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.True(t, p.IsAnonymous())
		assert.Equal(t, c.ID, p.ContextID)
		assert.Empty(t, p.Name)

		s, err := GetSectionTx(tx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.True(t, s.IsAnonymous())
		assert.Equal(t, AnonymousIndex, s.Index)
		return nil
	})
}

func TestGetContextTx_CacheIsTransactionScoped(t *testing.T) {
	d := NewTestDB(t)
	u := seedUser(t, d)
	c := &Context{UserID: u.ID, Name: "home"}
	MustTx(t, d, func(tx *TxOps) error { return CreateContextTx(tx, c) })

	rollback := errors.New("rollback")
	err := d.RunInTx(context.Background(), func(tx *TxOps) error {
		first, err := GetContextTx(tx, c.ID)
		require.NoError(t, err)
		second, err := GetContextTx(tx, c.ID)
		require.NoError(t, err)
		assert.Same(t, first, second, "lookup should be memoized within a transaction")

		_, err = DeleteContextsTx(tx, Eq("id", c.ID))
		require.NoError(t, err)
		gone, err := GetContextTx(tx, c.ID)
		require.NoError(t, err)
		assert.Nil(t, gone, "delete should invalidate the cached lookup")
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	MustTx(t, d, func(tx *TxOps) error {
		still, err := GetContextTx(tx, c.ID)
		require.NoError(t, err)
		assert.NotNil(t, still, "a new transaction starts with an empty cache")
		return nil
	})
}

func TestConditions(t *testing.T) {
	d := NewTestDB(t)
	u := seedUser(t, d)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	MustTx(t, d, func(tx *TxOps) error {
		for i, title := range []string{"a", "b", "c"} {
			archived := base.Add(time.Duration(i) * time.Hour)
			it := &Item{UserID: u.ID, Title: title}
			if title != "a" {
				it.Archived = &archived
			}
			if err := CreateItemTx(tx, it); err != nil {
				return err
			}
		}
		return nil
	})

	tests := []struct {
		name  string
		conds []Cond
		want  []string
	}{
		{"eq", []Cond{Eq("title", "b")}, []string{"b"}},
		{"ne", []Cond{Ne("title", "b")}, []string{"a", "c"}},
		{"in", []Cond{In("title", []string{"a", "c"})}, []string{"a", "c"}},
		{"empty in", []Cond{In("title", []string{})}, nil},
		{"is null", []Cond{IsNull("archived")}, []string{"a"}},
		{"not null", []Cond{NotNull("archived")}, []string{"b", "c"}},
		{"lt time", []Cond{Lt("archived", base.Add(2 * time.Hour))}, []string{"b"}},
		{"lte time", []Cond{Lte("archived", base.Add(2 * time.Hour))}, []string{"b", "c"}},
		{"gt time", []Cond{Gt("archived", base.Add(time.Hour))}, []string{"c"}},
		{"gte and eq", []Cond{Gte("archived", base), Eq("title", "c")}, []string{"c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			MustTx(t, d, func(tx *TxOps) error {
				items, err := FindItemsTx(tx, append(tt.conds, Eq("user_id", u.ID))...)
				require.NoError(t, err)
				var got []string
				for _, it := range items {
					got = append(got, it.Title)
				}
				assert.ElementsMatch(t, tt.want, got)
				return nil
			})
		})
	}
}

func TestDetail_RoundTripEveryKind(t *testing.T) {
	d := NewTestDB(t)
	u := seedUser(t, d)

	due := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := &Service{UserID: u.ID, Kind: "github", Name: "gh"}

	details := []*Detail{
		{Kind: DetailLink, Link: &LinkDetail{URL: "https://example.com"}},
		{Kind: DetailFile, File: &FileDetail{FileName: "a.pdf", FileSize: 1024, MimeType: "application/pdf"}},
		{Kind: DetailNote, Note: &NoteDetail{Body: "remember the milk"}},
		{Kind: DetailService, Service: &ServiceDetail{
			RemoteKey:    "owner/repo#1",
			Summary:      "Fix it",
			Fields:       json.RawMessage(`{"labels":["bug"]}`),
			HasTaskState: true,
			TaskDue:      &due,
		}},
	}

	MustTx(t, d, func(tx *TxOps) error {
		require.NoError(t, CreateServiceTx(tx, svc))
		for _, det := range details {
			it := &Item{UserID: u.ID, Title: string(det.Kind)}
			require.NoError(t, CreateItemTx(tx, it))
			det.ItemID = it.ID
			if det.Service != nil {
				det.Service.ServiceID = svc.ID
			}
			require.NoError(t, SaveDetailTx(tx, det))
		}
		return nil
	})

	MustTx(t, d, func(tx *TxOps) error {
		for _, want := range details {
			got, err := GetDetailTx(tx, want.ItemID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, want.Kind, got.Kind)
			switch want.Kind {
			case DetailLink:
				assert.Equal(t, want.Link, got.Link)
			case DetailFile:
				assert.Equal(t, want.File, got.File)
			case DetailNote:
				assert.Equal(t, want.Note, got.Note)
			case DetailService:
				assert.Equal(t, want.Service.RemoteKey, got.Service.RemoteKey)
				assert.True(t, got.Service.HasTaskState)
				require.NotNil(t, got.Service.TaskDue)
				assert.True(t, due.Equal(*got.Service.TaskDue))
				assert.Nil(t, got.Service.TaskDone)
				assert.JSONEq(t, `{"labels":["bug"]}`, string(got.Service.Fields))
			}
		}
		return nil
	})
}

func TestDetail_ValidateRejectsMismatchedPayload(t *testing.T) {
	tests := []struct {
		name string
		d    Detail
	}{
		{"missing payload", Detail{Kind: DetailLink}},
		{"wrong payload", Detail{Kind: DetailNote, Link: &LinkDetail{URL: "x"}}},
		{"two payloads", Detail{Kind: DetailNote, Note: &NoteDetail{}, Link: &LinkDetail{}}},
		{"service without key", Detail{Kind: DetailService, Service: &ServiceDetail{ServiceID: "s"}}},
		{"unknown kind", Detail{Kind: "video"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.d.Validate())
		})
	}
}

func TestUpsertPlacements_KeepsPresentOnConflict(t *testing.T) {
	d := NewTestDB(t)
	u := seedUser(t, d)

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.Add(48 * time.Hour)

	var list List
	var item Item
	MustTx(t, d, func(tx *TxOps) error {
		svc := &Service{UserID: u.ID, Kind: "jira", Name: "j"}
		require.NoError(t, CreateServiceTx(tx, svc))
		list = List{ServiceID: svc.ID, Name: "sprint"}
		require.NoError(t, CreateListTx(tx, &list))
		item = Item{UserID: u.ID, Title: "t"}
		require.NoError(t, CreateItemTx(tx, &item))
		return UpsertPlacementsTx(tx, []Placement{{ListID: list.ID, ItemID: item.ID, Present: first}})
	})

	MustTx(t, d, func(tx *TxOps) error {
		return UpsertPlacementsTx(tx, []Placement{{ListID: list.ID, ItemID: item.ID, Present: later, Done: &later}})
	})

	MustTx(t, d, func(tx *TxOps) error {
		rows, err := FindPlacementsTx(tx, Eq("list_id", list.ID))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, first.Equal(rows[0].Present))
		require.NotNil(t, rows[0].Done)
		assert.True(t, later.Equal(*rows[0].Done))
		assert.False(t, rows[0].IsOpen())
		return nil
	})
}

func TestSetTaskDatesTx_BatchesAcrossChunks(t *testing.T) {
	d := NewTestDB(t)
	u := seedUser(t, d)

	due := time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC)
	n := maxBatch + 7
	dates := make(map[string]TaskDates, n)

	MustTx(t, d, func(tx *TxOps) error {
		for i := 0; i < n; i++ {
			it := &Item{UserID: u.ID, Title: "t"}
			require.NoError(t, CreateItemTx(tx, it))
			require.NoError(t, CreateTaskStateTx(tx, &TaskState{ItemID: it.ID, Controller: ControllerServiceList}))
			if i%2 == 0 {
				dates[it.ID] = TaskDates{Due: &due}
			} else {
				dates[it.ID] = TaskDates{Done: &due}
			}
		}
		return SetTaskDatesTx(tx, dates)
	})

	MustTx(t, d, func(tx *TxOps) error {
		states, err := FindTaskStatesTx(tx)
		require.NoError(t, err)
		require.Len(t, states, n)
		for _, ts := range states {
			want := dates[ts.ItemID]
			assert.Equal(t, want.Due != nil, ts.Due != nil)
			assert.Equal(t, want.Done != nil, ts.Done != nil)
		}
		return nil
	})
}

func TestFormatTime_SortsChronologically(t *testing.T) {
	a := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 5*3600))
	b := a.Add(time.Microsecond)
	assert.Less(t, FormatTime(a), FormatTime(b))

	parsed, err := ParseTime(FormatTime(a))
	require.NoError(t, err)
	assert.True(t, a.Equal(parsed))
}

// Package db provides test utilities for database operations.
//
// Tests that need a store should use NewTestDB: it is in-memory, has the
// schema applied and is closed via t.Cleanup().
package db

import (
	"context"
	"testing"
)

// NewTestDB creates an in-memory store for testing.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    store := db.NewTestDB(t)
//	    // use store...
//	}
func NewTestDB(t testing.TB) *DB {
	t.Helper()

	d, err := OpenInMemory()
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}

	t.Cleanup(func() {
		_ = d.Close()
	})

	return d
}

// MustTx runs fn in a transaction and fails the test on error.
func MustTx(t testing.TB, d *DB, fn func(tx *TxOps) error) {
	t.Helper()
	if err := d.RunInTx(context.Background(), fn); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

// Fixture builds hierarchy rows for tests on top of a fresh test store.
type Fixture struct {
	t    testing.TB
	DB   *DB
	User *User
}

// NewFixture creates a test store with one user.
func NewFixture(t testing.TB) *Fixture {
	t.Helper()
	f := &Fixture{t: t, DB: NewTestDB(t), User: &User{Name: "tester"}}
	f.Tx(func(tx *TxOps) error { return CreateUserTx(tx, f.User) })
	return f
}

// Tx runs fn in a transaction and fails the test on error.
func (f *Fixture) Tx(fn func(tx *TxOps) error) {
	f.t.Helper()
	MustTx(f.t, f.DB, fn)
}

// Context creates a context (with its anonymous project and section).
func (f *Fixture) Context(name string) *Context {
	f.t.Helper()
	c := &Context{UserID: f.User.ID, Name: name}
	f.Tx(func(tx *TxOps) error { return CreateContextTx(tx, c) })
	return c
}

// Project creates a named project under parentID in contextID.
func (f *Fixture) Project(contextID, parentID, name string) *Project {
	f.t.Helper()
	p := &Project{ContextID: contextID, ParentID: parentID, Name: name}
	f.Tx(func(tx *TxOps) error { return CreateProjectTx(tx, p) })
	return p
}

// Section creates a section at an explicit index.
func (f *Fixture) Section(projectID, name string, idx int) *Section {
	f.t.Helper()
	s := &Section{ProjectID: projectID, Name: name, Index: idx}
	f.Tx(func(tx *TxOps) error { return CreateSectionTx(tx, s) })
	return s
}

// Item creates an item at an explicit placement; sectionID "" is unfiled.
func (f *Fixture) Item(title, sectionID string, idx int) *Item {
	f.t.Helper()
	it := &Item{UserID: f.User.ID, Title: title, SectionID: sectionID, SectionIndex: idx}
	f.Tx(func(tx *TxOps) error { return CreateItemTx(tx, it) })
	return it
}

// Service creates a service account of kind.
func (f *Fixture) Service(kind, name string) *Service {
	f.t.Helper()
	s := &Service{UserID: f.User.ID, Kind: kind, Name: name}
	f.Tx(func(tx *TxOps) error { return CreateServiceTx(tx, s) })
	return s
}

// List creates a list owned by serviceID.
func (f *Fixture) List(serviceID, name string) *List {
	f.t.Helper()
	l := &List{ServiceID: serviceID, Name: name}
	f.Tx(func(tx *TxOps) error { return CreateListTx(tx, l) })
	return l
}

// TaskState creates a task state row.
func (f *Fixture) TaskState(ts *TaskState) {
	f.t.Helper()
	f.Tx(func(tx *TxOps) error { return CreateTaskStateTx(tx, ts) })
}

// Placements upserts placement rows.
func (f *Fixture) Placements(rows ...Placement) {
	f.t.Helper()
	f.Tx(func(tx *TxOps) error { return UpsertPlacementsTx(tx, rows) })
}

package db

import (
	"database/sql"
	"fmt"
	"time"
)

// AnonymousIndex is the section index reserved for anonymous sections.
const AnonymousIndex = -1

// ============================================================================
// Hierarchy Types
// ============================================================================

// User owns contexts, items and service accounts.
type User struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Context is the top-level grouping of a user's projects.
// Its anonymous project and that project's anonymous section share its id.
type Context struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// Project is a node in a context's project tree.
// ParentID is empty only for the anonymous project.
type Project struct {
	ID        string
	ContextID string
	ParentID  string
	Name      string
	CreatedAt time.Time
}

// IsAnonymous reports whether p is the implicit project of its context.
func (p *Project) IsAnonymous() bool {
	return p.ParentID == ""
}

// Section is an ordered sub-list within a project.
type Section struct {
	ID        string
	ProjectID string
	Name      string
	Index     int
}

// IsAnonymous reports whether s is the implicit section of its project.
func (s *Section) IsAnonymous() bool {
	return s.Index == AnonymousIndex
}

// ============================================================================
// Users
// ============================================================================

const userColumns = "id, name, created_at"

// CreateUserTx inserts a user.
func CreateUserTx(tx *TxOps, u *User) error {
	if u.ID == "" {
		u.ID = NewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = Now()
	}
	if _, err := tx.Exec(`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)`,
		u.ID, u.Name, FormatTime(u.CreatedAt)); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	tx.users[u.ID] = u
	return nil
}

// FindUsersTx returns users matching conds ordered by name.
func FindUsersTx(tx *TxOps, conds ...Cond) ([]User, error) {
	var out []User
	err := findTx(tx, "users", userColumns, "name", conds, func(s scanner) error {
		var u User
		var createdAt string
		if err := s.Scan(&u.ID, &u.Name, &createdAt); err != nil {
			return err
		}
		u.CreatedAt, _ = ParseTime(createdAt)
		out = append(out, u)
		return nil
	})
	return out, err
}

// GetUserTx returns the user with id, or nil if absent.
// Results are cached for the lifetime of tx.
func GetUserTx(tx *TxOps, id string) (*User, error) {
	if u, ok := tx.users[id]; ok {
		return u, nil
	}
	users, err := FindUsersTx(tx, Eq("id", id))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	tx.users[id] = &users[0]
	return &users[0], nil
}

// ============================================================================
// Contexts
// ============================================================================

const contextColumns = "id, user_id, name, created_at"

// CreateContextTx inserts a context together with its anonymous project and
// anonymous section.
func CreateContextTx(tx *TxOps, c *Context) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = Now()
	}
	if _, err := tx.Exec(`INSERT INTO contexts (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, FormatTime(c.CreatedAt)); err != nil {
		return fmt.Errorf("create context: %w", err)
	}
	if err := CreateProjectTx(tx, &Project{ID: c.ID, ContextID: c.ID, CreatedAt: c.CreatedAt}); err != nil {
		return fmt.Errorf("create anonymous project: %w", err)
	}
	tx.contexts[c.ID] = c
	return nil
}

// FindContextsTx returns contexts matching conds ordered by creation.
func FindContextsTx(tx *TxOps, conds ...Cond) ([]Context, error) {
	var out []Context
	err := findTx(tx, "contexts", contextColumns, "created_at, id", conds, func(s scanner) error {
		var c Context
		var createdAt string
		if err := s.Scan(&c.ID, &c.UserID, &c.Name, &createdAt); err != nil {
			return err
		}
		c.CreatedAt, _ = ParseTime(createdAt)
		out = append(out, c)
		return nil
	})
	return out, err
}

// GetContextTx returns the context with id, or nil if absent.
// Results are cached for the lifetime of tx.
func GetContextTx(tx *TxOps, id string) (*Context, error) {
	if c, ok := tx.contexts[id]; ok {
		return c, nil
	}
	contexts, err := FindContextsTx(tx, Eq("id", id))
	if err != nil {
		return nil, err
	}
	if len(contexts) == 0 {
		return nil, nil
	}
	tx.contexts[id] = &contexts[0]
	return &contexts[0], nil
}

// DeleteContextsTx deletes matching contexts; projects and sections cascade.
func DeleteContextsTx(tx *TxOps, conds ...Cond) (int64, error) {
	ids, err := FindContextsTx(tx, conds...)
	if err != nil {
		return 0, err
	}
	for _, c := range ids {
		tx.forget(c.ID)
	}
	return deleteTx(tx, "contexts", conds)
}

// ============================================================================
// Projects
// ============================================================================

const projectColumns = "id, context_id, parent_id, name, created_at"

// CreateProjectTx inserts a project and its anonymous section.
func CreateProjectTx(tx *TxOps, p *Project) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = Now()
	}
	if _, err := tx.Exec(`INSERT INTO projects (id, context_id, parent_id, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.ContextID, nullString(p.ParentID), p.Name, FormatTime(p.CreatedAt)); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	if err := CreateSectionTx(tx, &Section{ID: p.ID, ProjectID: p.ID, Index: AnonymousIndex}); err != nil {
		return fmt.Errorf("create anonymous section: %w", err)
	}
	return nil
}

// FindProjectsTx returns projects matching conds ordered by creation.
func FindProjectsTx(tx *TxOps, conds ...Cond) ([]Project, error) {
	var out []Project
	err := findTx(tx, "projects", projectColumns, "created_at, id", conds, func(s scanner) error {
		var p Project
		var parentID sql.NullString
		var createdAt string
		if err := s.Scan(&p.ID, &p.ContextID, &parentID, &p.Name, &createdAt); err != nil {
			return err
		}
		p.ParentID = parentID.String
		p.CreatedAt, _ = ParseTime(createdAt)
		out = append(out, p)
		return nil
	})
	return out, err
}

// GetProjectTx returns the project with id, or nil if absent.
func GetProjectTx(tx *TxOps, id string) (*Project, error) {
	projects, err := FindProjectsTx(tx, Eq("id", id))
	if err != nil || len(projects) == 0 {
		return nil, err
	}
	return &projects[0], nil
}

// ============================================================================
// Sections
// ============================================================================

const sectionColumns = "id, project_id, name, idx"

// CreateSectionTx inserts a section at s.Index.
func CreateSectionTx(tx *TxOps, s *Section) error {
	if s.ID == "" {
		s.ID = NewID()
	}
	if _, err := tx.Exec(`INSERT INTO sections (id, project_id, name, idx) VALUES (?, ?, ?, ?)`,
		s.ID, s.ProjectID, s.Name, s.Index); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// FindSectionsTx returns sections matching conds ordered by project and index.
func FindSectionsTx(tx *TxOps, conds ...Cond) ([]Section, error) {
	var out []Section
	err := findTx(tx, "sections", sectionColumns, "project_id, idx", conds, func(sc scanner) error {
		var s Section
		if err := sc.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Index); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// GetSectionTx returns the section with id, or nil if absent.
func GetSectionTx(tx *TxOps, id string) (*Section, error) {
	sections, err := FindSectionsTx(tx, Eq("id", id))
	if err != nil || len(sections) == 0 {
		return nil, err
	}
	return &sections[0], nil
}

// UpdateSectionsTx applies patch to matching sections.
func UpdateSectionsTx(tx *TxOps, patch Patch, conds ...Cond) (int64, error) {
	return updateTx(tx, "sections", patch, conds)
}

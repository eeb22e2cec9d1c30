// Package core exposes shelf's caller-facing operations.
//
// Every operation runs in exactly one store transaction. After the
// operation's own writes, the inbox is pruned in the same transaction, so
// an error anywhere rolls back the whole unit.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/shelf/internal/db"
	shelferrors "github.com/randalmurphal/shelf/internal/errors"
	"github.com/randalmurphal/shelf/internal/inbox"
	"github.com/randalmurphal/shelf/internal/placement"
)

// DefaultContextName names the context every new user starts with.
const DefaultContextName = "personal"

// Service runs operations against a store.
type Service struct {
	store  db.TxRunner
	logger *slog.Logger
}

// New creates a Service. A nil logger uses slog.Default().
func New(store db.TxRunner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// run executes fn and then inbox retention in one transaction.
func (s *Service) run(ctx context.Context, op string, fn func(tx *db.TxOps) error) error {
	return s.store.RunInTx(ctx, func(tx *db.TxOps) error {
		if err := fn(tx); err != nil {
			return err
		}
		pruned, err := inbox.Prune(tx)
		if err != nil {
			return fmt.Errorf("prune inbox: %w", err)
		}
		if len(pruned) > 0 {
			s.logger.Debug("pruned inbox items", "op", op, "count", len(pruned))
		}
		return nil
	})
}

// ============================================================================
// Users
// ============================================================================

// CreateUser creates a user with one default context.
func (s *Service) CreateUser(ctx context.Context, name string) (*db.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shelferrors.Validation("user name is required", "give the user a name")
	}
	u := &db.User{Name: name}
	err := s.run(ctx, "create user", func(tx *db.TxOps) error {
		existing, err := db.FindUsersTx(tx, db.Eq("name", name))
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return shelferrors.Validation(fmt.Sprintf("user %q already exists", name), "user names are unique")
		}
		if err := db.CreateUserTx(tx, u); err != nil {
			return err
		}
		return db.CreateContextTx(tx, &db.Context{UserID: u.ID, Name: DefaultContextName})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("created user", "user", u.Name, "id", u.ID)
	return u, nil
}

// UserByName returns the user called name.
func (s *Service) UserByName(ctx context.Context, name string) (*db.User, error) {
	var u *db.User
	err := s.store.RunInTx(ctx, func(tx *db.TxOps) error {
		users, err := db.FindUsersTx(tx, db.Eq("name", name))
		if err != nil {
			return err
		}
		if len(users) == 0 {
			return shelferrors.NotFound("user", name)
		}
		u = &users[0]
		return nil
	})
	return u, err
}

// ============================================================================
// Contexts and projects
// ============================================================================

// CreateContext creates a context (with its anonymous project and section)
// for userID.
func (s *Service) CreateContext(ctx context.Context, userID, name string) (*db.Context, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shelferrors.Validation("context name is required", "give the context a name")
	}
	c := &db.Context{UserID: userID, Name: name}
	err := s.run(ctx, "create context", func(tx *db.TxOps) error {
		u, err := db.GetUserTx(tx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return shelferrors.NotFound("user", userID)
		}
		return db.CreateContextTx(tx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteContext deletes a context with its projects and sections. Items
// filed anywhere under it become unfiled. A user's last context cannot be
// deleted.
func (s *Service) DeleteContext(ctx context.Context, contextID string) error {
	return s.run(ctx, "delete context", func(tx *db.TxOps) error {
		c, err := db.GetContextTx(tx, contextID)
		if err != nil {
			return err
		}
		if c == nil {
			return shelferrors.NotFound("context", contextID)
		}
		n, err := db.CountTx(tx, "contexts", db.Eq("user_id", c.UserID))
		if err != nil {
			return err
		}
		if n <= 1 {
			return shelferrors.Consistency(
				fmt.Sprintf("cannot delete context %q", c.Name),
				"it is the user's last context",
			)
		}

		projects, err := db.FindProjectsTx(tx, db.Eq("context_id", contextID))
		if err != nil {
			return err
		}
		projectIDs := make([]string, len(projects))
		for i, p := range projects {
			projectIDs[i] = p.ID
		}
		sections, err := db.FindSectionsTx(tx, db.In("project_id", projectIDs))
		if err != nil {
			return err
		}
		sectionIDs := make([]string, len(sections))
		for i, sec := range sections {
			sectionIDs[i] = sec.ID
		}
		unfiled, err := db.UpdateItemsTx(tx, db.Patch{"section_id": nil, "section_index": 0}, db.In("section_id", sectionIDs))
		if err != nil {
			return err
		}

		if _, err := db.DeleteContextsTx(tx, db.Eq("id", contextID)); err != nil {
			return err
		}
		s.logger.Info("deleted context", "context", c.Name, "unfiled_items", unfiled)
		return nil
	})
}

// CreateProject creates a project in contextID under parentID. An empty
// parentID places it at the top of the context.
func (s *Service) CreateProject(ctx context.Context, contextID, parentID, name string) (*db.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shelferrors.Validation("project name is required", "give the project a name")
	}
	p := &db.Project{ContextID: contextID, Name: name}
	err := s.run(ctx, "create project", func(tx *db.TxOps) error {
		c, err := db.GetContextTx(tx, contextID)
		if err != nil {
			return err
		}
		if c == nil {
			return shelferrors.NotFound("context", contextID)
		}
		if parentID == "" {
			parentID = c.ID
		}
		parent, err := db.GetProjectTx(tx, parentID)
		if err != nil {
			return err
		}
		if parent == nil {
			return shelferrors.NotFound("project", parentID)
		}
		if parent.ContextID != contextID {
			return shelferrors.Validation(
				fmt.Sprintf("project %s is in another context", parentID),
				"a project's parent must be in the same context",
			)
		}
		p.ParentID = parentID
		return db.CreateProjectTx(tx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ============================================================================
// Sections
// ============================================================================

// CreateSection creates a section in projectID before beforeID, or last.
func (s *Service) CreateSection(ctx context.Context, projectID, name, beforeID string) (*db.Section, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shelferrors.Validation("section name is required", "give the section a name")
	}
	var sec *db.Section
	err := s.run(ctx, "create section", func(tx *db.TxOps) error {
		var err error
		sec, err = placement.CreateSection(tx, projectID, name, beforeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sec, nil
}

// MoveSection moves sectionID into projectID before beforeID, or last.
func (s *Service) MoveSection(ctx context.Context, sectionID, projectID, beforeID string) error {
	return s.run(ctx, "move section", func(tx *db.TxOps) error {
		return placement.MoveSection(tx, sectionID, projectID, beforeID)
	})
}

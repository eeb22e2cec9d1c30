// Package placement moves items and sections between holders.
//
// A holder is a context, a project or a section. Contexts and projects
// resolve to their anonymous section, which shares their id; a section
// resolves to itself. Positions inside the resolved scope come from the
// ordering package.
package placement

import (
	"fmt"

	"github.com/randalmurphal/shelf/internal/db"
	shelferrors "github.com/randalmurphal/shelf/internal/errors"
	"github.com/randalmurphal/shelf/internal/ordering"
)

// HolderKind names what a Holder points at.
type HolderKind string

const (
	HolderContext HolderKind = "context"
	HolderProject HolderKind = "project"
	HolderSection HolderKind = "section"
)

// ParseHolderKind parses a holder kind name.
func ParseHolderKind(s string) (HolderKind, error) {
	switch HolderKind(s) {
	case HolderContext, HolderProject, HolderSection:
		return HolderKind(s), nil
	default:
		return "", shelferrors.Validation(fmt.Sprintf("unknown holder kind %q", s), "expected context, project or section")
	}
}

// Holder is a place an item can be filed under.
type Holder struct {
	Kind HolderKind
	ID   string
}

// ResolveSection returns the concrete section id for h and the id of the
// user who owns it.
func ResolveSection(tx *db.TxOps, h Holder) (sectionID, userID string, err error) {
	var projectID string
	switch h.Kind {
	case HolderContext:
		c, err := db.GetContextTx(tx, h.ID)
		if err != nil {
			return "", "", err
		}
		if c == nil {
			return "", "", shelferrors.NotFound("context", h.ID)
		}
		return c.ID, c.UserID, nil
	case HolderProject:
		projectID = h.ID
		sectionID = h.ID
	case HolderSection:
		s, err := db.GetSectionTx(tx, h.ID)
		if err != nil {
			return "", "", err
		}
		if s == nil {
			return "", "", shelferrors.NotFound("section", h.ID)
		}
		projectID = s.ProjectID
		sectionID = s.ID
	default:
		return "", "", shelferrors.Validation(fmt.Sprintf("unknown holder kind %q", h.Kind), "expected context, project or section")
	}

	userID, err = projectOwner(tx, projectID)
	if err != nil {
		return "", "", err
	}
	return sectionID, userID, nil
}

// projectOwner returns the user owning projectID through its context.
func projectOwner(tx *db.TxOps, projectID string) (string, error) {
	p, err := db.GetProjectTx(tx, projectID)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", shelferrors.NotFound("project", projectID)
	}
	c, err := db.GetContextTx(tx, p.ContextID)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", shelferrors.NotFound("context", p.ContextID)
	}
	return c.UserID, nil
}

// Locate returns the placement for a new item of userID: unfiled when h is
// nil, otherwise a position in h's section before beforeID or appended.
// Siblings are shifted as needed.
func Locate(tx *db.TxOps, userID string, h *Holder, beforeID string) (sectionID string, idx int, err error) {
	if h == nil {
		if beforeID != "" {
			return "", 0, shelferrors.Validation("cannot place an unfiled item before a sibling", "unfiled items have no order")
		}
		return "", 0, nil
	}

	sectionID, owner, err := ResolveSection(tx, *h)
	if err != nil {
		return "", 0, err
	}
	if owner != userID {
		return "", 0, shelferrors.Validation(
			fmt.Sprintf("%s %s belongs to another user", h.Kind, h.ID),
			"items can only be filed under the owner's own hierarchy",
		)
	}

	idx, err = ordering.Position(tx, ordering.Items(sectionID), beforeID)
	if err != nil {
		return "", 0, err
	}
	return sectionID, idx, nil
}

// MoveItem files itemID under h, before beforeID when given. A nil holder
// unfiles the item: section cleared, index 0.
func MoveItem(tx *db.TxOps, itemID string, h *Holder, beforeID string) error {
	it, err := db.GetItemTx(tx, itemID)
	if err != nil {
		return err
	}
	if it == nil {
		return shelferrors.NotFound("item", itemID)
	}
	if beforeID == itemID {
		return shelferrors.Validation("cannot place an item before itself", "choose a different sibling")
	}

	if h == nil {
		if beforeID != "" {
			return shelferrors.Validation("cannot place an unfiled item before a sibling", "unfiled items have no order")
		}
		_, err := db.UpdateItemsTx(tx, db.Patch{"section_id": nil, "section_index": 0}, db.Eq("id", itemID))
		return err
	}

	// Append first so the item leaves its old slot, then shift in front of
	// beforeID; the shift carries the item along and hands back the slot.
	sectionID, idx, err := Locate(tx, it.UserID, h, "")
	if err != nil {
		return err
	}
	if _, err := db.UpdateItemsTx(tx, db.Patch{"section_id": sectionID, "section_index": idx}, db.Eq("id", itemID)); err != nil {
		return err
	}
	if beforeID == "" {
		return nil
	}

	freed, err := ordering.InsertBefore(tx, ordering.Items(sectionID), beforeID)
	if err != nil {
		return err
	}
	_, err = db.UpdateItemsTx(tx, db.Patch{"section_index": freed}, db.Eq("id", itemID))
	return err
}

// CreateSection creates a named section in projectID, before beforeID when
// given, otherwise appended.
func CreateSection(tx *db.TxOps, projectID, name, beforeID string) (*db.Section, error) {
	if _, err := projectOwner(tx, projectID); err != nil {
		return nil, err
	}
	idx, err := ordering.Position(tx, ordering.Sections(projectID), beforeID)
	if err != nil {
		return nil, err
	}
	s := &db.Section{ProjectID: projectID, Name: name, Index: idx}
	if err := db.CreateSectionTx(tx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// MoveSection moves sectionID into projectID, before beforeID when given,
// otherwise appended. Anonymous sections cannot be moved.
func MoveSection(tx *db.TxOps, sectionID, projectID, beforeID string) error {
	s, err := db.GetSectionTx(tx, sectionID)
	if err != nil {
		return err
	}
	if s == nil {
		return shelferrors.NotFound("section", sectionID)
	}
	if s.IsAnonymous() {
		return shelferrors.Validation("cannot move an anonymous section", "anonymous sections are fixed to their project")
	}
	if beforeID == sectionID {
		return shelferrors.Validation("cannot place a section before itself", "choose a different sibling")
	}

	from, err := projectOwner(tx, s.ProjectID)
	if err != nil {
		return err
	}
	to, err := projectOwner(tx, projectID)
	if err != nil {
		return err
	}
	if from != to {
		return shelferrors.Validation(
			fmt.Sprintf("project %s belongs to another user", projectID),
			"sections can only move within the owner's own hierarchy",
		)
	}

	scope := ordering.Sections(projectID)
	idx, err := ordering.Append(tx, scope)
	if err != nil {
		return err
	}
	if _, err := db.UpdateSectionsTx(tx, db.Patch{"project_id": projectID, "idx": idx}, db.Eq("id", sectionID)); err != nil {
		return err
	}
	if beforeID == "" {
		return nil
	}

	freed, err := ordering.InsertBefore(tx, scope, beforeID)
	if err != nil {
		return err
	}
	_, err = db.UpdateSectionsTx(tx, db.Patch{"idx": freed}, db.Eq("id", sectionID))
	return err
}

package core

import (
	"context"

	"github.com/randalmurphal/shelf/internal/db"
)

// ItemNode is an item with its task state, if any.
type ItemNode struct {
	Item db.Item
	Task *db.TaskState
}

// SectionNode is a section with its items in order.
type SectionNode struct {
	Section db.Section
	Items   []ItemNode
}

// ProjectNode is a project with its sections in order and its child
// projects.
type ProjectNode struct {
	Project  db.Project
	Sections []SectionNode
	Children []ProjectNode
}

// ContextNode is a context with its anonymous project at the root.
type ContextNode struct {
	Context db.Context
	Root    ProjectNode
}

// Tree is a user's whole hierarchy plus the inbox.
type Tree struct {
	Contexts []ContextNode
	Inbox    []ItemNode
}

// Tree reads the hierarchy of userID.
func (s *Service) Tree(ctx context.Context, userID string) (*Tree, error) {
	t := &Tree{}
	err := s.store.RunInTx(ctx, func(tx *db.TxOps) error {
		contexts, err := db.FindContextsTx(tx, db.Eq("user_id", userID))
		if err != nil {
			return err
		}
		contextIDs := make([]string, len(contexts))
		for i, c := range contexts {
			contextIDs[i] = c.ID
		}

		projects, err := db.FindProjectsTx(tx, db.In("context_id", contextIDs))
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
		items, err := db.FindItemsTx(tx, db.Eq("user_id", userID))
		if err != nil {
			return err
		}
		itemIDs := make([]string, len(items))
		for i, it := range items {
			itemIDs[i] = it.ID
		}
		states, err := db.FindTaskStatesTx(tx, db.In("item_id", itemIDs))
		if err != nil {
			return err
		}

		tasks := make(map[string]*db.TaskState, len(states))
		for i := range states {
			tasks[states[i].ItemID] = &states[i]
		}
		bySection := make(map[string][]ItemNode)
		for _, it := range items {
			n := ItemNode{Item: it, Task: tasks[it.ID]}
			if it.SectionID == "" {
				t.Inbox = append(t.Inbox, n)
				continue
			}
			bySection[it.SectionID] = append(bySection[it.SectionID], n)
		}
		byProject := make(map[string][]SectionNode)
		for _, sec := range sections {
			byProject[sec.ProjectID] = append(byProject[sec.ProjectID], SectionNode{Section: sec, Items: bySection[sec.ID]})
		}
		children := make(map[string][]db.Project)
		for _, p := range projects {
			if p.ParentID != "" {
				children[p.ParentID] = append(children[p.ParentID], p)
			}
		}

		var build func(p db.Project) ProjectNode
		build = func(p db.Project) ProjectNode {
			n := ProjectNode{Project: p, Sections: byProject[p.ID]}
			for _, child := range children[p.ID] {
				n.Children = append(n.Children, build(child))
			}
			return n
		}

		byID := make(map[string]db.Project, len(projects))
		for _, p := range projects {
			byID[p.ID] = p
		}
		for _, c := range contexts {
			t.Contexts = append(t.Contexts, ContextNode{Context: c, Root: build(byID[c.ID])})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

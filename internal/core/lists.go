package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/randalmurphal/shelf/internal/db"
	shelferrors "github.com/randalmurphal/shelf/internal/errors"
	"github.com/randalmurphal/shelf/internal/lists"
	"github.com/randalmurphal/shelf/internal/services"
)

// CreateService registers an external service account for userID.
func (s *Service) CreateService(ctx context.Context, userID string, kind services.Kind, name string, cfg services.AccountConfig) (*db.Service, error) {
	switch kind {
	case services.KindGitHub, services.KindGitLab, services.KindJira:
	default:
		return nil, shelferrors.Validation(fmt.Sprintf("unknown service kind %q", kind), "expected github, gitlab or jira")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shelferrors.Validation("service name is required", "give the service a name")
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode service config: %w", err)
	}

	svc := &db.Service{UserID: userID, Kind: string(kind), Name: name, Config: raw}
	err = s.run(ctx, "create service", func(tx *db.TxOps) error {
		u, err := db.GetUserTx(tx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return shelferrors.NotFound("user", userID)
		}
		existing, err := db.CountTx(tx, "services", db.Eq("user_id", userID), db.Eq("name", name))
		if err != nil {
			return err
		}
		if existing > 0 {
			return shelferrors.Validation(fmt.Sprintf("service %q already exists", name), "service names are unique per user")
		}
		return db.CreateServiceTx(tx, svc)
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// ServiceOverview is a service account with its lists and recent problems.
type ServiceOverview struct {
	Service  db.Service
	Lists    []db.List
	Problems []db.SyncProblem
}

// Services returns every service account of userID.
func (s *Service) Services(ctx context.Context, userID string) ([]ServiceOverview, error) {
	var out []ServiceOverview
	err := s.store.RunInTx(ctx, func(tx *db.TxOps) error {
		svcs, err := db.FindServicesTx(tx, db.Eq("user_id", userID))
		if err != nil {
			return err
		}
		for _, svc := range svcs {
			o := ServiceOverview{Service: svc}
			if o.Lists, err = db.FindListsTx(tx, db.Eq("service_id", svc.ID)); err != nil {
				return err
			}
			if o.Problems, err = db.FindSyncProblemsTx(tx, db.Eq("service_id", svc.ID)); err != nil {
				return err
			}
			out = append(out, o)
		}
		return nil
	})
	return out, err
}

// ClearProblems deletes the recorded sync problems of serviceID.
func (s *Service) ClearProblems(ctx context.Context, serviceID string) (int64, error) {
	var n int64
	err := s.run(ctx, "clear problems", func(tx *db.TxOps) error {
		var err error
		n, err = db.DeleteSyncProblemsTx(tx, db.Eq("service_id", serviceID))
		return err
	})
	return n, err
}

// CreateList adds a list to serviceID.
func (s *Service) CreateList(ctx context.Context, serviceID, name, url, query, dueOffset string) (*db.List, error) {
	var l *db.List
	err := s.run(ctx, "create list", func(tx *db.TxOps) error {
		var err error
		l, err = lists.Create(tx, serviceID, name, url, query, dueOffset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// EditList changes list metadata.
func (s *Service) EditList(ctx context.Context, listID string, c lists.Changes) error {
	return s.run(ctx, "edit list", func(tx *db.TxOps) error {
		return lists.Edit(tx, listID, c)
	})
}

// UpdateList sets the membership of listID to itemIDs. A non-empty
// dueOffset re-anchors every member's due to when it joined.
func (s *Service) UpdateList(ctx context.Context, listID string, itemIDs []string, dueOffset string) (*lists.Result, error) {
	var offset *lists.DueOffset
	if dueOffset != "" {
		o, err := lists.ParseDueOffset(dueOffset)
		if err != nil {
			return nil, err
		}
		offset = o
	}

	var res *lists.Result
	err := s.run(ctx, "update list", func(tx *db.TxOps) error {
		var err error
		res, err = lists.SetItems(tx, listID, itemIDs, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteList deletes listID and its placements.
func (s *Service) DeleteList(ctx context.Context, listID string) error {
	return s.run(ctx, "delete list", func(tx *db.TxOps) error {
		return lists.Delete(tx, listID)
	})
}

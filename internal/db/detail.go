package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DetailKind discriminates the Detail variants.
type DetailKind string

const (
	DetailLink    DetailKind = "link"
	DetailFile    DetailKind = "file"
	DetailNote    DetailKind = "note"
	DetailService DetailKind = "service"
)

// Detail is the optional typed payload of an item. Exactly the field that
// matches Kind is set.
type Detail struct {
	ItemID  string
	Kind    DetailKind
	Link    *LinkDetail
	File    *FileDetail
	Note    *NoteDetail
	Service *ServiceDetail
}

// LinkDetail is a bookmark.
type LinkDetail struct {
	URL string
}

// FileDetail describes an attached file.
type FileDetail struct {
	FileName string
	FileSize int64
	MimeType string
}

// NoteDetail is free text.
type NoteDetail struct {
	Body string
}

// ServiceDetail mirrors a remote item of an external service.
// TaskDue and TaskDone are meaningful only when HasTaskState is set.
type ServiceDetail struct {
	ServiceID    string
	RemoteKey    string
	Summary      string
	URL          string
	Fields       json.RawMessage
	HasTaskState bool
	TaskDue      *time.Time
	TaskDone     *time.Time
}

// Validate checks that the payload matches the discriminant.
func (d *Detail) Validate() error {
	var ok bool
	switch d.Kind {
	case DetailLink:
		ok = d.Link != nil && d.File == nil && d.Note == nil && d.Service == nil
	case DetailFile:
		ok = d.File != nil && d.Link == nil && d.Note == nil && d.Service == nil
	case DetailNote:
		ok = d.Note != nil && d.Link == nil && d.File == nil && d.Service == nil
	case DetailService:
		ok = d.Service != nil && d.Link == nil && d.File == nil && d.Note == nil &&
			d.Service.ServiceID != "" && d.Service.RemoteKey != ""
	default:
		return fmt.Errorf("unknown detail kind %q", d.Kind)
	}
	if !ok {
		return fmt.Errorf("detail payload does not match kind %q", d.Kind)
	}
	return nil
}

// detailRow is the flattened column form of a Detail.
type detailRow struct {
	url, fileName, mimeType, body sql.NullString
	serviceID, remoteKey, summary sql.NullString
	fields, taskDue, taskDone     sql.NullString
	fileSize                      sql.NullInt64
	hasTaskState                  bool
}

func (d *Detail) toRow() detailRow {
	var r detailRow
	switch d.Kind {
	case DetailLink:
		r.url = nullString(d.Link.URL)
	case DetailFile:
		r.fileName = nullString(d.File.FileName)
		r.fileSize = sql.NullInt64{Int64: d.File.FileSize, Valid: true}
		r.mimeType = nullString(d.File.MimeType)
	case DetailNote:
		r.body = sql.NullString{String: d.Note.Body, Valid: true}
	case DetailService:
		s := d.Service
		r.serviceID = nullString(s.ServiceID)
		r.remoteKey = nullString(s.RemoteKey)
		r.summary = nullString(s.Summary)
		r.url = nullString(s.URL)
		if len(s.Fields) > 0 {
			r.fields = sql.NullString{String: string(s.Fields), Valid: true}
		}
		r.hasTaskState = s.HasTaskState
		r.taskDue = NullTime(s.TaskDue)
		r.taskDone = NullTime(s.TaskDone)
	}
	return r
}

func (r detailRow) toDetail(itemID string, kind DetailKind) (*Detail, error) {
	d := &Detail{ItemID: itemID, Kind: kind}
	switch kind {
	case DetailLink:
		d.Link = &LinkDetail{URL: r.url.String}
	case DetailFile:
		d.File = &FileDetail{FileName: r.fileName.String, FileSize: r.fileSize.Int64, MimeType: r.mimeType.String}
	case DetailNote:
		d.Note = &NoteDetail{Body: r.body.String}
	case DetailService:
		s := &ServiceDetail{
			ServiceID:    r.serviceID.String,
			RemoteKey:    r.remoteKey.String,
			Summary:      r.summary.String,
			URL:          r.url.String,
			HasTaskState: r.hasTaskState,
		}
		if r.fields.Valid {
			s.Fields = json.RawMessage(r.fields.String)
		}
		var err error
		if s.TaskDue, err = parseNullTime(r.taskDue); err != nil {
			return nil, err
		}
		if s.TaskDone, err = parseNullTime(r.taskDone); err != nil {
			return nil, err
		}
		d.Service = s
	default:
		return nil, fmt.Errorf("unknown detail kind %q", kind)
	}
	return d, nil
}

const detailColumns = `item_id, kind, url, file_name, file_size, mime_type, body,
	service_id, remote_key, summary, fields, has_task_state, task_due, task_done`

// SaveDetailTx creates or replaces the detail of d.ItemID.
func SaveDetailTx(tx *TxOps, d *Detail) error {
	if err := d.Validate(); err != nil {
		return err
	}
	r := d.toRow()
	_, err := tx.Exec(`
		INSERT INTO item_details (`+detailColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			kind = excluded.kind,
			url = excluded.url,
			file_name = excluded.file_name,
			file_size = excluded.file_size,
			mime_type = excluded.mime_type,
			body = excluded.body,
			service_id = excluded.service_id,
			remote_key = excluded.remote_key,
			summary = excluded.summary,
			fields = excluded.fields,
			has_task_state = excluded.has_task_state,
			task_due = excluded.task_due,
			task_done = excluded.task_done
	`, d.ItemID, string(d.Kind), r.url, r.fileName, r.fileSize, r.mimeType, r.body,
		r.serviceID, r.remoteKey, r.summary, r.fields, r.hasTaskState, r.taskDue, r.taskDone)
	if err != nil {
		return fmt.Errorf("save detail for item %s: %w", d.ItemID, err)
	}
	return nil
}

// FindDetailsTx returns details matching conds.
func FindDetailsTx(tx *TxOps, conds ...Cond) ([]Detail, error) {
	var out []Detail
	err := findTx(tx, "item_details", detailColumns, "item_id", conds, func(s scanner) error {
		var itemID, kind string
		var r detailRow
		if err := s.Scan(&itemID, &kind, &r.url, &r.fileName, &r.fileSize, &r.mimeType, &r.body,
			&r.serviceID, &r.remoteKey, &r.summary, &r.fields, &r.hasTaskState, &r.taskDue, &r.taskDone); err != nil {
			return err
		}
		d, err := r.toDetail(itemID, DetailKind(kind))
		if err != nil {
			return err
		}
		out = append(out, *d)
		return nil
	})
	return out, err
}

// GetDetailTx returns the detail of itemID, or nil if it has none.
func GetDetailTx(tx *TxOps, itemID string) (*Detail, error) {
	details, err := FindDetailsTx(tx, Eq("item_id", itemID))
	if err != nil || len(details) == 0 {
		return nil, err
	}
	return &details[0], nil
}

// DeleteDetailsTx deletes matching details.
func DeleteDetailsTx(tx *TxOps, conds ...Cond) (int64, error) {
	return deleteTx(tx, "item_details", conds)
}

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/go-faster/errors"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflicts with an existing record")
)

type Store struct {
	DB  *sql.DB
	now func() time.Time
}

type Record struct {
	Resource  string
	ID        string
	Body      json.RawMessage
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type HistoryEntry struct {
	ID        int64
	Resource  string
	RecordID  string
	EventType string
	Details   string
	CreatedAt time.Time
}

// RecordInput is the indexed form of a record body. Search holds the fields
// matched by Filter.Query, each on its own; UniqueKey, when set, must be
// unique per resource.
type RecordInput struct {
	ID        string
	Body      json.RawMessage
	Status    string
	Search    []string
	UniqueKey string
}

// Filter narrows ListRecords and CountRecords. Limit zero means no limit.
type Filter struct {
	Query  string
	Status string
	Limit  int
	Offset int
}

// searchSeparator sits between indexed fields so a query cannot match
// across a field boundary.
const searchSeparator = "\x1f"

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, now: time.Now}
}

func (s *Store) CreateRecord(ctx context.Context, resource string, input RecordInput) (Record, error) {
	if input.ID == "" {
		return Record{}, errors.New("record id is required")
	}
	now := s.now().UTC()

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO records (resource, id, body, status, search, unique_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		resource, input.ID, string(input.Body), normalizeStatus(input.Status), searchText(input.Search),
		nullableKey(input.UniqueKey), now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return Record{}, mapConstraintError(err)
	}

	if err := s.addHistory(ctx, resource, input.ID, "created", formatCreatedDetails(input)); err != nil {
		return Record{}, err
	}

	return s.GetRecord(ctx, resource, input.ID)
}

// UpdateRecord replaces the stored body of an existing record.
func (s *Store) UpdateRecord(ctx context.Context, resource string, input RecordInput) (Record, error) {
	before, err := s.GetRecord(ctx, resource, input.ID)
	if err != nil {
		return Record{}, err
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE records SET body = ?, status = ?, search = ?, unique_key = ?, updated_at = ?
		 WHERE resource = ? AND id = ?`,
		string(input.Body), normalizeStatus(input.Status), searchText(input.Search),
		nullableKey(input.UniqueKey), s.now().UTC().UnixMilli(), resource, input.ID,
	)
	if err != nil {
		return Record{}, mapConstraintError(err)
	}
	if err := expectRow(result); err != nil {
		return Record{}, err
	}

	after, err := s.GetRecord(ctx, resource, input.ID)
	if err != nil {
		return Record{}, err
	}

	if err := s.addHistory(ctx, resource, input.ID, "updated", formatBodyDiff(before.Body, after.Body)); err != nil {
		return Record{}, err
	}

	return after, nil
}

func (s *Store) DeleteRecord(ctx context.Context, resource, id string) error {
	before, err := s.GetRecord(ctx, resource, id)
	if err != nil {
		return err
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM records WHERE resource = ? AND id = ?`, resource, id)
	if err != nil {
		return err
	}
	if err := expectRow(result); err != nil {
		return err
	}

	return s.addHistory(ctx, resource, id, "deleted", formatDeletedDetails(before))
}

func (s *Store) GetRecord(ctx context.Context, resource, id string) (Record, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT resource, id, body, status, created_at, updated_at FROM records WHERE resource = ? AND id = ?`,
		resource, id,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, errors.Wrapf(ErrNotFound, "%s/%s", resource, id)
	}
	return record, err
}

// ListRecords returns the records of a resource in insertion order.
func (s *Store) ListRecords(ctx context.Context, resource string, filter Filter) ([]Record, error) {
	where, args := filter.where(resource)
	query := `SELECT resource, id, body, status, created_at, updated_at FROM records WHERE ` + where + ` ORDER BY seq`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// CountRecords counts the records matching filter, ignoring Limit and Offset.
func (s *Store) CountRecords(ctx context.Context, resource string, filter Filter) (int, error) {
	where, args := filter.where(resource)
	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE `+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (f Filter) where(resource string) (string, []any) {
	query := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(f.Query)), searchSeparator, "")
	status := normalizeStatus(f.Status)
	if status == "all" {
		status = ""
	}
	return `resource = ?
		   AND (? = '' OR instr(search, ?) > 0)
		   AND (? = '' OR status = ?)`,
		[]any{resource, query, query, status, status}
}

func searchText(fields []string) string {
	cleaned := make([]string, 0, len(fields))
	for _, field := range fields {
		cleaned = append(cleaned, strings.ReplaceAll(strings.ToLower(field), searchSeparator, ""))
	}
	return strings.Join(cleaned, searchSeparator)
}

func (s *Store) ListHistory(ctx context.Context, resource, recordID string) ([]HistoryEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, resource, record_id, event_type, details, created_at FROM history
		 WHERE resource = ? AND record_id = ? ORDER BY id`,
		resource, recordID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []HistoryEntry{}
	for rows.Next() {
		var entry HistoryEntry
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.Resource, &entry.RecordID, &entry.EventType, &entry.Details, &createdAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = time.UnixMilli(createdAt).UTC()
		history = append(history, entry)
	}
	return history, rows.Err()
}

func (s *Store) GetValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Wrapf(ErrNotFound, "key %q", key)
	}
	return value, err
}

func (s *Store) SetValue(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UTC().UnixMilli(),
	)
	return err
}

func (s *Store) DeleteValue(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

// MergePatch applies an RFC 7386 merge patch to a record body.
func MergePatch(body, patch []byte) ([]byte, error) {
	merged, err := jsonpatch.MergePatch(body, patch)
	if err != nil {
		return nil, errors.Wrap(err, "apply merge patch")
	}
	return merged, nil
}

func (s *Store) addHistory(ctx context.Context, resource, recordID, eventType, details string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO history (resource, record_id, event_type, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		resource, recordID, eventType, details, s.now().UTC().UnixMilli(),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var record Record
	var body string
	var createdAt, updatedAt int64
	if err := row.Scan(&record.Resource, &record.ID, &body, &record.Status, &createdAt, &updatedAt); err != nil {
		return Record{}, err
	}
	record.Body = json.RawMessage(body)
	record.CreatedAt = time.UnixMilli(createdAt).UTC()
	record.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return record, nil
}

func expectRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func mapConstraintError(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return errors.Wrap(ErrConflict, err.Error())
	}
	return err
}

func nullableKey(key string) sql.NullString {
	key = strings.ToLower(strings.TrimSpace(key))
	return sql.NullString{String: key, Valid: key != ""}
}

func normalizeStatus(status string) string {
	return strings.TrimSpace(strings.ToLower(status))
}

func formatCreatedDetails(input RecordInput) string {
	return fmt.Sprintf("created: status=%s body=%s", valueOrNone(input.Status), compact(input.Body))
}

func formatDeletedDetails(record Record) string {
	return fmt.Sprintf("deleted: status=%s body=%s", valueOrNone(record.Status), compact(record.Body))
}

func formatBodyDiff(before, after []byte) string {
	patch, err := jsonpatch.CreateMergePatch(before, after)
	if err != nil {
		return "updated: " + err.Error()
	}
	if string(patch) == "{}" {
		return "updated: no changes"
	}
	return "updated: " + string(patch)
}

func valueOrNone(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "none"
	}
	return trimmed
}

func compact(body []byte) string {
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return string(body)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return string(body)
	}
	return string(encoded)
}

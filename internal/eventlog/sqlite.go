package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/gena"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
)

// SQLiteRepository implements Repository using the state_events and
// invocations tables.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new event log repository.
//
// Parameters:
//   - db: Open SQLite connection with migrations applied
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// RecordEmitted stores values evented by a local service in one
// transaction.
func (r *SQLiteRepository) RecordEmitted(ctx context.Context, values []gena.StateVariableValue) error {
	return r.insertEvents(ctx, values, Emitted, "", nil)
}

// RecordReceived stores the values of an incoming event message.
func (r *SQLiteRepository) RecordReceived(ctx context.Context, event *gena.IncomingEvent) error {
	seq := event.Sequence
	return r.insertEvents(ctx, event.Values, Received, event.SubscriptionID, &seq)
}

func (r *SQLiteRepository) insertEvents(ctx context.Context, values []gena.StateVariableValue, dir Direction, sid string, seq *uint32) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO state_events (device_udn, service_id, variable, value, direction, subscription_id, sequence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing event insert: %w", err)
	}
	defer stmt.Close()

	createdAt := r.now().UTC().Format(time.RFC3339)
	var sequence any
	if seq != nil {
		sequence = int64(*seq)
	}

	for _, v := range values {
		svc := v.Variable().Service()
		if svc == nil {
			return fmt.Errorf("%w: variable %s", ErrMissingService, v.Variable().Name())
		}
		if _, err := stmt.ExecContext(ctx,
			deviceUDN(svc), svc.ID().String(), v.Variable().Name(), v.String(),
			string(dir), nullableString(sid), sequence, createdAt,
		); err != nil {
			return fmt.Errorf("inserting state event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing state events: %w", err)
	}
	return nil
}

// RecordInvocation stores an action call. Values are kept as wire text.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - source: Origin of the call (soap, mqtt, controlpoint)
//   - inv: The completed invocation
//
// Returns:
//   - *Invocation: The stored record with its generated ID
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) RecordInvocation(ctx context.Context, source string, inv *control.Invocation) (*Invocation, error) {
	svc := inv.Action().Service()
	if svc == nil {
		return nil, fmt.Errorf("%w: action %s", ErrMissingService, inv.Action().Name())
	}

	rec := &Invocation{
		ID:        "inv-" + uuid.NewString()[:8],
		DeviceUDN: deviceUDN(svc),
		ServiceID: svc.ID().String(),
		Action:    inv.Action().Name(),
		Source:    source,
		Inputs:    wireValues(inv.Input()),
		Outputs:   wireValues(inv.Output()),
		CreatedAt: r.now().UTC().Truncate(time.Second),
	}
	var code any
	if failure := inv.Failure(); failure != nil {
		rec.ErrorCode = failure.Code
		rec.ErrorDescription = failure.Description
		code = failure.Code
	}

	inputs, err := marshalValues(rec.Inputs)
	if err != nil {
		return nil, err
	}
	outputs, err := marshalValues(rec.Outputs)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO invocations (id, device_udn, service_id, action, source, inputs, outputs, error_code, error_description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DeviceUDN, rec.ServiceID, rec.Action, rec.Source,
		inputs, outputs, code, nullableString(rec.ErrorDescription),
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting invocation: %w", err)
	}
	return rec, nil
}

// List returns events matching the filter, ordered by most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.DeviceUDN != "" {
		conditions = append(conditions, "device_udn = ?")
		args = append(args, filter.DeviceUDN)
	}
	if filter.ServiceID != "" {
		conditions = append(conditions, "service_id = ?")
		args = append(args, filter.ServiceID)
	}
	if filter.Variable != "" {
		conditions = append(conditions, "variable = ?")
		args = append(args, filter.Variable)
	}
	if filter.Direction != "" {
		conditions = append(conditions, "direction = ?")
		args = append(args, string(filter.Direction))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.RFC3339))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM state_events %s", where) //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting state events: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, device_udn, service_id, variable, value, direction, subscription_id, sequence, created_at
		 FROM state_events %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying state events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var direction, createdAt string
		var sid sql.NullString
		var seq sql.NullInt64

		if err := rows.Scan(&e.ID, &e.DeviceUDN, &e.ServiceID, &e.Variable, &e.Value,
			&direction, &sid, &seq, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning state event: %w", err)
		}
		e.Direction = Direction(direction)
		e.SubscriptionID = sid.String
		if seq.Valid {
			s := uint32(seq.Int64) //nolint:gosec // stored from a uint32
			e.Sequence = &s
		}
		if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state events: %w", err)
	}

	return &ListResult{Events: events, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Invocations returns recent invocations, ordered by most recent first.
func (r *SQLiteRepository) Invocations(ctx context.Context, limit int) ([]Invocation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_udn, service_id, action, source, inputs, outputs, error_code, error_description, created_at
		 FROM invocations ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying invocations: %w", err)
	}
	defer rows.Close()

	invocations := []Invocation{}
	for rows.Next() {
		var inv Invocation
		var inputs, outputs, description sql.NullString
		var code sql.NullInt64
		var createdAt string

		if err := rows.Scan(&inv.ID, &inv.DeviceUDN, &inv.ServiceID, &inv.Action, &inv.Source,
			&inputs, &outputs, &code, &description, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning invocation: %w", err)
		}
		if inv.Inputs, err = unmarshalValues(inputs); err != nil {
			return nil, err
		}
		if inv.Outputs, err = unmarshalValues(outputs); err != nil {
			return nil, err
		}
		inv.ErrorCode = int(code.Int64)
		inv.ErrorDescription = description.String
		if inv.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invocations: %w", err)
	}
	return invocations, nil
}

// Prune deletes events and invocations older than the given age.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Retention period (rows older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted across both tables
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := r.now().UTC().Add(-olderThan).Format(time.RFC3339)

	var deleted int64
	for _, table := range []string{"state_events", "invocations"} {
		result, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE created_at < ?", cutoff) //nolint:gosec // fixed table names
		if err != nil {
			return deleted, fmt.Errorf("pruning %s: %w", table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("checking rows affected: %w", err)
		}
		deleted += n
	}
	return deleted, nil
}

func deviceUDN(svc *meta.Service) string {
	if d := svc.Device(); d != nil {
		return d.UDN().String()
	}
	return ""
}

func wireValues(values []control.ArgumentValue) map[string]string {
	if len(values) == 0 {
		return nil
	}
	m := make(map[string]string, len(values))
	for _, v := range values {
		m[v.Argument().Name()] = v.String()
	}
	return m
}

func marshalValues(values map[string]string) (any, error) {
	if values == nil {
		return nil, nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("marshalling argument values: %w", err)
	}
	return string(b), nil
}

func unmarshalValues(s sql.NullString) (map[string]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(s.String), &values); err != nil {
		return nil, fmt.Errorf("unmarshalling argument values: %w", err)
	}
	return values, nil
}

// nullableString returns nil for empty strings so nullable TEXT columns
// stay NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created_at %q: %w", value, err)
	}
	return t, nil
}

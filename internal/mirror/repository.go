// Package mirror provides the local read replica of CRM Lead/Deal records.
// The stats engine prefers reading from the mirror over live CRM calls; the
// sync worker keeps it populated.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"leadstats_backend/internal/crm"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Read-path bounds, same truncation rationale as the remote fetchers: a
// runaway mirror never produces unbounded result sets.
const (
	ReadPageSize = 10000
	MaxReadPages = 10
)

// Filter is the query pushed down to the mirror tables. Zero fields are
// not applied.
type Filter struct {
	Developments []string
	StartDate    time.Time
	EndDate      time.Time
	Source       string
	Owner        string
	Status       string
}

// ClosedWonFilter matches won-stage deals by business-local close-date keys
// rather than creation timestamps.
type ClosedWonFilter struct {
	Developments []string
	StartKey     string
	EndKey       string
}

// WonStages is the stage vocabulary counting as a completed sale. The
// deployment mixes English stock stages and Spanish custom ones.
var WonStages = []string{"Closed Won", "Closed-Won", "Won", "Ganada", "Cerrada Ganada"}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping verifies database connectivity for health checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// ReadLeadsPage reads one page of mirrored leads matching the filter,
// reconstituted as loosely-typed records from the stored raw payload.
func (r *Repository) ReadLeadsPage(ctx context.Context, page, pageSize int, f Filter) ([]crm.Record, error) {
	return r.readPage(ctx, "crm_leads", "status", page, pageSize, f)
}

// ReadDealsPage reads one page of mirrored deals matching the filter. A
// status filter matches the deal's pipeline stage.
func (r *Repository) ReadDealsPage(ctx context.Context, page, pageSize int, f Filter) ([]crm.Record, error) {
	return r.readPage(ctx, "crm_deals", "stage", page, pageSize, f)
}

func (r *Repository) readPage(ctx context.Context, table, statusColumn string, page, pageSize int, f Filter) ([]crm.Record, error) {
	if page < 1 {
		page = 1
	}

	where, args := buildWhere(f, statusColumn)
	query := fmt.Sprintf(`
		SELECT raw
		FROM %s
		%s
		ORDER BY created_at, id
		LIMIT $%d OFFSET $%d
	`, table, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []crm.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var record crm.Record
		if err := json.Unmarshal(raw, &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CountClosedWonDeals counts won-stage deals whose close-date key falls
// within [StartKey, EndKey], independent of creation date.
func (r *Repository) CountClosedWonDeals(ctx context.Context, f ClosedWonFilter) (int, error) {
	conditions := []string{"LOWER(stage) = ANY($1)"}
	args := []any{lowerAll(WonStages)}

	if len(f.Developments) > 0 {
		args = append(args, lowerAll(f.Developments))
		conditions = append(conditions, fmt.Sprintf("LOWER(development) = ANY($%d)", len(args)))
	}
	if f.StartKey != "" {
		args = append(args, f.StartKey)
		conditions = append(conditions, fmt.Sprintf("close_date_key >= $%d", len(args)))
	}
	if f.EndKey != "" {
		args = append(args, f.EndKey)
		conditions = append(conditions, fmt.Sprintf("close_date_key <= $%d", len(args)))
	}

	query := "SELECT COUNT(*) FROM crm_deals WHERE " + strings.Join(conditions, " AND ")

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func buildWhere(f Filter, statusColumn string) (string, []any) {
	var conditions []string
	var args []any

	if len(f.Developments) > 0 {
		args = append(args, lowerAll(f.Developments))
		conditions = append(conditions, fmt.Sprintf("LOWER(development) = ANY($%d)", len(args)))
	}
	if !f.StartDate.IsZero() {
		args = append(args, f.StartDate)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !f.EndDate.IsZero() {
		args = append(args, f.EndDate)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if f.Source != "" {
		args = append(args, strings.ToLower(f.Source))
		conditions = append(conditions, fmt.Sprintf("LOWER(source) = $%d", len(args)))
	}
	if f.Owner != "" {
		args = append(args, strings.ToLower(f.Owner))
		conditions = append(conditions, fmt.Sprintf("LOWER(owner_name) = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, strings.ToLower(f.Status))
		conditions = append(conditions, fmt.Sprintf("LOWER(%s) = $%d", statusColumn, len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

package mirror

import (
	"context"
	"encoding/json"
	"time"

	"leadstats_backend/internal/calendar"
	"leadstats_backend/internal/crm"
	"leadstats_backend/platform/phone"

	"github.com/jackc/pgx/v5"
)

// UpsertLeads writes a batch of remote lead records into the mirror,
// replacing prior versions by id. Phone numbers are normalized to E.164 so
// mirror consumers can join on them.
func (r *Repository) UpsertLeads(ctx context.Context, records []crm.Record) (int, error) {
	batch := &pgx.Batch{}
	count := 0

	for _, record := range records {
		id := record.ID()
		if id == "" {
			continue
		}

		raw, err := json.Marshal(record)
		if err != nil {
			continue
		}

		createdAt, _ := record.Time(crm.FieldsCreatedTime...)
		batch.Queue(`
			INSERT INTO crm_leads (id, development, status, source, owner_name, email, phone, created_at, raw, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			ON CONFLICT (id) DO UPDATE SET
				development = EXCLUDED.development,
				status = EXCLUDED.status,
				source = EXCLUDED.source,
				owner_name = EXCLUDED.owner_name,
				email = EXCLUDED.email,
				phone = EXCLUDED.phone,
				created_at = EXCLUDED.created_at,
				raw = EXCLUDED.raw,
				synced_at = now()
		`,
			id,
			record.Str(crm.FieldsDevelopment...),
			record.Str(crm.FieldsLeadStatus...),
			record.Str(crm.FieldsSource...),
			record.Str(crm.FieldsOwner...),
			record.Str(crm.FieldsEmail...),
			phone.NormalizeE164(record.Str(crm.FieldsPhone...)),
			nullableTime(createdAt),
			raw,
		)
		count++
	}

	return count, r.sendBatch(ctx, batch)
}

// UpsertDeals writes a batch of remote deal records into the mirror. The
// business-local close-date key is precomputed so closed-won counts can be
// answered without touching the raw payload.
func (r *Repository) UpsertDeals(ctx context.Context, cal calendar.Calendar, records []crm.Record) (int, error) {
	batch := &pgx.Batch{}
	count := 0

	for _, record := range records {
		id := record.ID()
		if id == "" {
			continue
		}

		raw, err := json.Marshal(record)
		if err != nil {
			continue
		}

		createdAt, _ := record.Time(crm.FieldsCreatedTime...)
		var closeValue any
		if v, ok := record[crm.FieldsClosingDate[0]]; ok {
			closeValue = v
		} else {
			closeValue = record[crm.FieldsClosingDate[1]]
		}

		batch.Queue(`
			INSERT INTO crm_deals (id, development, stage, source, owner_name, amount, created_at, close_date_key, raw, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, now())
			ON CONFLICT (id) DO UPDATE SET
				development = EXCLUDED.development,
				stage = EXCLUDED.stage,
				source = EXCLUDED.source,
				owner_name = EXCLUDED.owner_name,
				amount = EXCLUDED.amount,
				created_at = EXCLUDED.created_at,
				close_date_key = EXCLUDED.close_date_key,
				raw = EXCLUDED.raw,
				synced_at = now()
		`,
			id,
			record.Str(crm.FieldsDevelopment...),
			record.Str(crm.FieldsStage...),
			record.Str(crm.FieldsSource...),
			record.Str(crm.FieldsOwner...),
			amountOrZero(record),
			nullableTime(createdAt),
			cal.DateKey(closeValue),
			raw,
		)
		count++
	}

	return count, r.sendBatch(ctx, batch)
}

func (r *Repository) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func amountOrZero(record crm.Record) float64 {
	amount, _ := record.Float(crm.FieldsAmount...)
	return amount
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

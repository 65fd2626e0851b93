package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"example.com/gymassistant/internal/domain"
)

// ListPrograms returns the training programs of tenant ordered by date.
func (r *Repository) ListPrograms(ctx context.Context, tenant domain.TenantKey) ([]domain.TrainingProgram, error) {
	return inTenantTxResult(ctx, r.pool, tenant, func(tx pgx.Tx) ([]domain.TrainingProgram, error) {
		rows, err := tx.Query(ctx,
			`SELECT program_id, tenant_id, title, description, program_date, exercises, pdf_url, image_url, created_at
             FROM training_programs WHERE tenant_id=$1 ORDER BY program_date, program_id`,
			string(tenant))
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		results := make([]domain.TrainingProgram, 0)
		for rows.Next() {
			var (
				program domain.TrainingProgram
				id      string
			)
			if err := rows.Scan(&program.ID, &id, &program.Title, &program.Description, &program.Date, &program.Exercises, &program.PDFURL, &program.ImageURL, &program.CreatedAt); err != nil {
				return nil, err
			}
			program.TenantKey = domain.TenantKey(id)
			results = append(results, program)
		}
		return results, rows.Err()
	})
}

// CreateProgram inserts a program into tenant.
func (r *Repository) CreateProgram(ctx context.Context, tenant domain.TenantKey, program domain.TrainingProgram) error {
	return InTenantTx(ctx, r.pool, tenant, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO training_programs (program_id, tenant_id, title, description, program_date, exercises, pdf_url, image_url, created_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			program.ID, string(tenant), program.Title, program.Description, program.Date,
			program.Exercises, program.PDFURL, program.ImageURL, program.CreatedAt)
		return err
	})
}

// ListMessages returns chat messages after cursor in timestamp order.
func (r *Repository) ListMessages(ctx context.Context, tenant domain.TenantKey, cursor *domain.Cursor, limit int) ([]domain.ChatMessage, *domain.Cursor, error) {
	args := []any{string(tenant), limit}
	query := `SELECT message_id, tenant_id, sender_id, sender_name, message, message_type, sent_at
        FROM chat_messages WHERE tenant_id=$1`
	if cursor != nil {
		query += ` AND (sent_at, message_id) > ($3, $4)`
		args = append(args, cursor.At, cursor.ID)
	}
	query += ` ORDER BY sent_at, message_id LIMIT $2`

	type page struct {
		messages []domain.ChatMessage
		next     *domain.Cursor
	}
	result, err := inTenantTxResult(ctx, r.pool, tenant, func(tx pgx.Tx) (page, error) {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return page{}, err
		}
		defer rows.Close()

		messages := make([]domain.ChatMessage, 0, limit)
		for rows.Next() {
			var (
				message domain.ChatMessage
				id      string
				kind    string
			)
			if err := rows.Scan(&message.ID, &id, &message.SenderID, &message.SenderName, &message.Message, &kind, &message.SentAt); err != nil {
				return page{}, err
			}
			message.TenantKey = domain.TenantKey(id)
			if message.Type, err = domain.ParseMessageType(kind); err != nil {
				return page{}, err
			}
			messages = append(messages, message)
		}
		if err := rows.Err(); err != nil {
			return page{}, err
		}

		var next *domain.Cursor
		if len(messages) == limit {
			last := messages[len(messages)-1]
			next = &domain.Cursor{At: last.SentAt, ID: last.ID}
		}
		return page{messages: messages, next: next}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result.messages, result.next, nil
}

// CreateMessage inserts a chat message into tenant.
func (r *Repository) CreateMessage(ctx context.Context, tenant domain.TenantKey, message domain.ChatMessage) error {
	return InTenantTx(ctx, r.pool, tenant, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO chat_messages (message_id, tenant_id, sender_id, sender_name, message, message_type, sent_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			message.ID, string(tenant), message.SenderID, message.SenderName, message.Message,
			string(message.Type), message.SentAt)
		return err
	})
}

// ListSupplements returns the catalogue of tenant ordered by name.
func (r *Repository) ListSupplements(ctx context.Context, tenant domain.TenantKey) ([]domain.Supplement, error) {
	return inTenantTxResult(ctx, r.pool, tenant, func(tx pgx.Tx) ([]domain.Supplement, error) {
		rows, err := tx.Query(ctx,
			`SELECT supplement_id, tenant_id, name, description, price, image_url
             FROM supplements WHERE tenant_id=$1 ORDER BY name, supplement_id`,
			string(tenant))
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		results := make([]domain.Supplement, 0)
		for rows.Next() {
			var (
				supplement domain.Supplement
				id         string
			)
			if err := rows.Scan(&supplement.ID, &id, &supplement.Name, &supplement.Description, &supplement.Price, &supplement.ImageURL); err != nil {
				return nil, err
			}
			supplement.TenantKey = domain.TenantKey(id)
			results = append(results, supplement)
		}
		return results, rows.Err()
	})
}

// CreateSupplement inserts a catalogue item into tenant.
func (r *Repository) CreateSupplement(ctx context.Context, tenant domain.TenantKey, supplement domain.Supplement) error {
	return InTenantTx(ctx, r.pool, tenant, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO supplements (supplement_id, tenant_id, name, description, price, image_url)
             VALUES ($1,$2,$3,$4,$5,$6)`,
			supplement.ID, string(tenant), supplement.Name, supplement.Description,
			supplement.Price, supplement.ImageURL)
		return err
	})
}

// Package postgres provides the PostgreSQL implementation of the
// subscription repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/baraks/slotwatch/internal/domain"
	"github.com/baraks/slotwatch/internal/subscription"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements subscription.Repository using PostgreSQL. The
// service set is stored as a BIGINT[] column and every mutation recomputes
// it inside a single statement, so concurrent commands from the same chat
// serialize on the row instead of overwriting each other.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert inserts the subscriber or merges servicesToAdd into the existing
// set. The union happens in SQL under the row lock taken by ON CONFLICT DO
// UPDATE, which also absorbs the duplicate-insert race: a concurrent first
// registration from the same chat simply takes the update path.
func (r *Repository) Upsert(ctx context.Context, chatID int64, firstName, lastName string, servicesToAdd []int64) (*domain.Subscriber, error) {
	query := `
		INSERT INTO subscribers (chat_id, first_name, last_name, service_ids)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			service_ids = ARRAY(
				SELECT DISTINCT s
				FROM unnest(subscribers.service_ids || EXCLUDED.service_ids) AS s
				ORDER BY s
			),
			updated_at = NOW()
		RETURNING chat_id, first_name, last_name, service_ids, created_at, updated_at
	`

	var sub domain.Subscriber
	err := r.db.QueryRow(ctx, query, chatID, firstName, lastName, sortedUnique(servicesToAdd)).Scan(
		&sub.ChatID,
		&sub.FirstName,
		&sub.LastName,
		&sub.ServiceIDs,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert subscriber: %w", errors.Join(subscription.ErrRepository, err))
	}
	return &sub, nil
}

// RemoveServices subtracts servicesToRemove from the subscriber's set; an
// empty removal set clears everything. The row is kept either way.
func (r *Repository) RemoveServices(ctx context.Context, chatID int64, servicesToRemove []int64) (*domain.Subscriber, error) {
	query := `
		UPDATE subscribers SET
			service_ids = CASE
				WHEN cardinality($2::bigint[]) = 0 THEN '{}'::bigint[]
				ELSE ARRAY(
					SELECT s FROM unnest(service_ids) AS s
					WHERE NOT s = ANY($2::bigint[])
					ORDER BY s
				)
			END,
			updated_at = NOW()
		WHERE chat_id = $1
		RETURNING chat_id, first_name, last_name, service_ids, created_at, updated_at
	`

	if servicesToRemove == nil {
		servicesToRemove = []int64{}
	}

	var sub domain.Subscriber
	err := r.db.QueryRow(ctx, query, chatID, servicesToRemove).Scan(
		&sub.ChatID,
		&sub.FirstName,
		&sub.LastName,
		&sub.ServiceIDs,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Never registered: unsubscribing is a no-op, not an error.
			return &domain.Subscriber{ChatID: chatID, ServiceIDs: []int64{}}, nil
		}
		return nil, fmt.Errorf("remove subscriptions: %w", errors.Join(subscription.ErrRepository, err))
	}
	return &sub, nil
}

// GetServices returns the subscriber's service set, empty for unknown chats.
func (r *Repository) GetServices(ctx context.Context, chatID int64) ([]int64, error) {
	var ids []int64
	err := r.db.QueryRow(ctx, `SELECT service_ids FROM subscribers WHERE chat_id = $1`, chatID).Scan(&ids)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []int64{}, nil
		}
		return nil, fmt.Errorf("get subscriptions: %w", errors.Join(subscription.ErrRepository, err))
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// ListActive returns all subscribers with at least one subscription.
func (r *Repository) ListActive(ctx context.Context) ([]domain.Subscriber, error) {
	query := `
		SELECT chat_id, first_name, last_name, service_ids, created_at, updated_at
		FROM subscribers
		WHERE cardinality(service_ids) > 0
		ORDER BY chat_id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", errors.Join(subscription.ErrRepository, err))
	}
	defer rows.Close()

	subscribers := make([]domain.Subscriber, 0)
	for rows.Next() {
		var sub domain.Subscriber
		if err := rows.Scan(
			&sub.ChatID,
			&sub.FirstName,
			&sub.LastName,
			&sub.ServiceIDs,
			&sub.CreatedAt,
			&sub.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", errors.Join(subscription.ErrRepository, err))
		}
		subscribers = append(subscribers, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", errors.Join(subscription.ErrRepository, err))
	}

	return subscribers, nil
}

func sortedUnique(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

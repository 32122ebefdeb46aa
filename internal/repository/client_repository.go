package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fitbook/trainer-crm-api/internal/models"
)

// ClientRepository provides persistence for a trainer's client roster.
type ClientRepository struct {
	db *sqlx.DB
}

// NewClientRepository creates a new client repository.
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

const clientColumns = "id, trainer_id, name, phone, telegram_chat_id, created_at"

// FindByID loads a client by id.
func (r *ClientRepository) FindByID(ctx context.Context, id string) (*models.Client, error) {
	query := fmt.Sprintf("SELECT %s FROM clients WHERE id = $1", clientColumns)
	var client models.Client
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		return nil, err
	}
	return &client, nil
}

// ListByIDs loads the given clients in one query. Missing ids are silently
// absent from the result.
func (r *ClientRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Client, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM clients WHERE id = ANY($1)", clientColumns)
	var clients []models.Client
	if err := r.db.SelectContext(ctx, &clients, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list clients by ids: %w", err)
	}
	return clients, nil
}

// ListByTrainer returns a trainer's roster ordered by name.
func (r *ClientRepository) ListByTrainer(ctx context.Context, trainerID string) ([]models.Client, error) {
	query := fmt.Sprintf("SELECT %s FROM clients WHERE trainer_id = $1 ORDER BY name ASC", clientColumns)
	var clients []models.Client
	if err := r.db.SelectContext(ctx, &clients, query, trainerID); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

// Create stores a new client.
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO clients (id, trainer_id, name, phone, telegram_chat_id, created_at)
VALUES (:id, :trainer_id, :name, :phone, :telegram_chat_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, client); err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

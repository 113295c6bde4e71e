package repository

import (
	"context"
)

const createOrder = `
INSERT INTO orders (hostname, provider, amount_cents, status)
VALUES ($1, $2, $3, $4)
RETURNING id, generation_id, hostname, provider, amount_cents, status, created_at, updated_at
`

type CreateOrderParams struct {
	Hostname    string
	Provider    string
	AmountCents int64
	Status      string
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder, arg.Hostname, arg.Provider, arg.AmountCents, arg.Status)
	return scanOrder(row)
}

const getOrder = `
SELECT id, generation_id, hostname, provider, amount_cents, status, created_at, updated_at
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id int64) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	return scanOrder(row)
}

const updateOrderStatus = `
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING status
`

type UpdateOrderStatusParams struct {
	ID     int64
	Status string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (string, error) {
	var status string
	err := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status).Scan(&status)
	return status, err
}

const linkOrderGeneration = `
UPDATE orders
SET generation_id = $2, updated_at = now()
WHERE id = $1
`

type LinkOrderGenerationParams struct {
	ID           int64
	GenerationID int64
}

func (q *Queries) LinkOrderGeneration(ctx context.Context, arg LinkOrderGenerationParams) error {
	_, err := q.db.Exec(ctx, linkOrderGeneration, arg.ID, arg.GenerationID)
	return err
}

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.GenerationID,
		&o.Hostname,
		&o.Provider,
		&o.AmountCents,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

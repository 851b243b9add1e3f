package database

import (
	"context"

	"github.com/google/uuid"
)

const getCustomerByEmail = `
SELECT id, email, password_hash, full_name, phone, role, created_at
FROM customers
WHERE email = $1
`

func (q *Queries) GetCustomerByEmail(ctx context.Context, email string) (Customer, error) {
	row := q.db.QueryRow(ctx, getCustomerByEmail, email)
	var c Customer
	err := row.Scan(&c.ID, &c.Email, &c.PasswordHash, &c.FullName, &c.Phone, &c.Role, &c.CreatedAt)
	return c, err
}

const getCustomerByID = `
SELECT id, email, password_hash, full_name, phone, role, created_at
FROM customers
WHERE id = $1
`

func (q *Queries) GetCustomerByID(ctx context.Context, id uuid.UUID) (Customer, error) {
	row := q.db.QueryRow(ctx, getCustomerByID, id)
	var c Customer
	err := row.Scan(&c.ID, &c.Email, &c.PasswordHash, &c.FullName, &c.Phone, &c.Role, &c.CreatedAt)
	return c, err
}

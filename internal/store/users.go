package store

import (
	"context"

	"inventory-service/internal/models"
)

func (q *queries) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, full_name, role, phone_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return q.get(ctx, u, query, u.Email, u.PasswordHash, u.FullName, u.Role, u.PhoneNumber)
}

func (q *queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := q.get(ctx, &u, "SELECT * FROM users WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := q.get(ctx, &u, "SELECT * FROM users WHERE email = $1", email); err != nil {
		return nil, err
	}
	return &u, nil
}

func (q *queries) ListUsersByRole(ctx context.Context, role string) ([]models.User, error) {
	users := []models.User{}
	err := q.selectAll(ctx, &users, "SELECT * FROM users WHERE role = $1 ORDER BY id", role)
	return users, err
}

func (q *queries) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	return q.execOne(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", passwordHash, id)
}

func (q *queries) ListBankAccountsBySupplier(ctx context.Context, supplierID int64) ([]models.SupplierBankAccount, error) {
	accounts := []models.SupplierBankAccount{}
	err := q.selectAll(ctx, &accounts,
		"SELECT * FROM supplier_bank_accounts WHERE supplier_id = $1 ORDER BY id", supplierID)
	return accounts, err
}

// UpsertBankAccount keeps a single account per supplier
func (q *queries) UpsertBankAccount(ctx context.Context, acc *models.SupplierBankAccount) error {
	query := `
		INSERT INTO supplier_bank_accounts (supplier_id, bank_name, account_number, account_holder)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (supplier_id) DO UPDATE
		SET bank_name = EXCLUDED.bank_name,
		    account_number = EXCLUDED.account_number,
		    account_holder = EXCLUDED.account_holder
		RETURNING id`

	return q.get(ctx, &acc.ID, query, acc.SupplierID, acc.BankName, acc.AccountNumber, acc.AccountHolder)
}

func (q *queries) DeleteBankAccount(ctx context.Context, id int64) error {
	return q.execOne(ctx, "DELETE FROM supplier_bank_accounts WHERE id = $1", id)
}

// IsEventProcessed checks if an event has been processed
func (q *queries) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := q.get(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (q *queries) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := q.ext.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/renova-api/internal/model"
)

const personColumns = `id, first_name, last_name, date_of_birth, gender, pronouns,
	email, phone, address, password_hash, created_at, updated_at`

const therapistColumns = personColumns + `,
	license_number, hiring_date, years_of_experience, void_cheque, status`

// personTable holds the queries shared by the three role tables
type personTable struct {
	db    sqlx.ExtContext
	table string
}

func (t personTable) insert(ctx context.Context, p *model.Person) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			first_name, last_name, date_of_birth, gender, pronouns,
			email, phone, address, password_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, t.table)
	p.Touch(time.Now().UTC())

	err := t.db.QueryRowxContext(ctx, query,
		p.FirstName,
		p.LastName,
		p.DateOfBirth,
		p.Gender,
		p.Pronouns,
		p.Email,
		p.Phone,
		p.Address,
		p.PasswordHash,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID)
	return mapError("create "+t.table, err)
}

func (t personTable) getBy(ctx context.Context, dest interface{}, columns, field string, arg interface{}) error {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, columns, t.table, field)
	return mapError("get "+t.table, sqlx.GetContext(ctx, t.db, dest, query, arg))
}

func (t personTable) updatePasswordHash(ctx context.Context, id int64, hash string) error {
	query := fmt.Sprintf(`UPDATE %s SET password_hash = $1, updated_at = $2 WHERE id = $3`, t.table)
	result, err := t.db.ExecContext(ctx, query, hash, time.Now().UTC(), id)
	if err != nil {
		return mapError("update password hash", err)
	}
	return expectOne("update password hash", result)
}

type clientRepository struct {
	people personTable
}

func (r *clientRepository) Create(ctx context.Context, client *model.Client) error {
	return r.people.insert(ctx, &client.Person)
}

func (r *clientRepository) Get(ctx context.Context, id int64) (*model.Client, error) {
	var client model.Client
	if err := r.people.getBy(ctx, &client, personColumns, "id", id); err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) GetByEmail(ctx context.Context, email string) (*model.Client, error) {
	var client model.Client
	if err := r.people.getBy(ctx, &client, personColumns, "email", email); err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.people.updatePasswordHash(ctx, id, hash)
}

type ownerRepository struct {
	people personTable
}

func (r *ownerRepository) Create(ctx context.Context, owner *model.Owner) error {
	return r.people.insert(ctx, &owner.Person)
}

func (r *ownerRepository) Get(ctx context.Context, id int64) (*model.Owner, error) {
	var owner model.Owner
	if err := r.people.getBy(ctx, &owner, personColumns, "id", id); err != nil {
		return nil, err
	}
	return &owner, nil
}

func (r *ownerRepository) GetByEmail(ctx context.Context, email string) (*model.Owner, error) {
	var owner model.Owner
	if err := r.people.getBy(ctx, &owner, personColumns, "email", email); err != nil {
		return nil, err
	}
	return &owner, nil
}

func (r *ownerRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.people.updatePasswordHash(ctx, id, hash)
}

type therapistRepository struct {
	db     sqlx.ExtContext
	people personTable
}

func (r *therapistRepository) Create(ctx context.Context, therapist *model.Therapist) error {
	query := `
		INSERT INTO therapists (
			first_name, last_name, date_of_birth, gender, pronouns,
			email, phone, address, password_hash, created_at, updated_at,
			license_number, hiring_date, years_of_experience, void_cheque, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`
	therapist.Touch(time.Now().UTC())
	if therapist.Status == "" {
		therapist.Status = model.EmploymentPending
	}

	err := r.db.QueryRowxContext(ctx, query,
		therapist.FirstName,
		therapist.LastName,
		therapist.DateOfBirth,
		therapist.Gender,
		therapist.Pronouns,
		therapist.Email,
		therapist.Phone,
		therapist.Address,
		therapist.PasswordHash,
		therapist.CreatedAt,
		therapist.UpdatedAt,
		therapist.LicenseNumber,
		therapist.HiringDate,
		therapist.YearsOfExperience,
		therapist.VoidCheque,
		therapist.Status,
	).Scan(&therapist.ID)
	return mapError("create therapist", err)
}

func (r *therapistRepository) Get(ctx context.Context, id int64) (*model.Therapist, error) {
	var therapist model.Therapist
	if err := r.people.getBy(ctx, &therapist, therapistColumns, "id", id); err != nil {
		return nil, err
	}
	return &therapist, nil
}

func (r *therapistRepository) GetByEmail(ctx context.Context, email string) (*model.Therapist, error) {
	var therapist model.Therapist
	if err := r.people.getBy(ctx, &therapist, therapistColumns, "email", email); err != nil {
		return nil, err
	}
	return &therapist, nil
}

func (r *therapistRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.people.updatePasswordHash(ctx, id, hash)
}

func (r *therapistRepository) Search(ctx context.Context, text string, limit int) ([]*model.Therapist, error) {
	query := `SELECT ` + therapistColumns + `
		FROM therapists
		WHERE strpos(first_name, $1) > 0 OR strpos(last_name, $1) > 0
		ORDER BY id
		LIMIT $2`

	therapists := []*model.Therapist{}
	if err := sqlx.SelectContext(ctx, r.db, &therapists, query, text, limit); err != nil {
		return nil, mapError("search therapists", err)
	}
	return therapists, nil
}

func (r *therapistRepository) List(ctx context.Context, limit int) ([]*model.Therapist, error) {
	query := `SELECT ` + therapistColumns + ` FROM therapists ORDER BY id LIMIT $1`

	therapists := []*model.Therapist{}
	if err := sqlx.SelectContext(ctx, r.db, &therapists, query, limit); err != nil {
		return nil, mapError("list therapists", err)
	}
	return therapists, nil
}

func (r *therapistRepository) ListByStatus(ctx context.Context, status model.EmploymentStatus) ([]*model.Therapist, error) {
	query := `SELECT ` + therapistColumns + ` FROM therapists WHERE status = $1 ORDER BY id`

	therapists := []*model.Therapist{}
	if err := sqlx.SelectContext(ctx, r.db, &therapists, query, status); err != nil {
		return nil, mapError("list therapists by status", err)
	}
	return therapists, nil
}

func (r *therapistRepository) UpdateStatus(ctx context.Context, id int64, status model.EmploymentStatus) error {
	query := `UPDATE therapists SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return mapError("update therapist status", err)
	}
	return expectOne("update therapist status", result)
}

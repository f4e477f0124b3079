package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/renova-api/internal/model"
)

type patientFileRepository struct {
	db sqlx.ExtContext
}

func (r *patientFileRepository) GetByClient(ctx context.Context, clientID int64) (*model.PatientFile, error) {
	query := `
		SELECT client_id, primary_therapist_id, admission_date, discharge_date,
			insurance_number, blood_type, is_active, created_at, updated_at
		FROM patient_files
		WHERE client_id = $1
	`
	var file model.PatientFile
	if err := sqlx.GetContext(ctx, r.db, &file, query, clientID); err != nil {
		return nil, mapError("get patient file", err)
	}
	return &file, nil
}

// Upsert creates the file or replaces every field of the existing one.
func (r *patientFileRepository) Upsert(ctx context.Context, file *model.PatientFile) error {
	query := `
		INSERT INTO patient_files (
			client_id, primary_therapist_id, admission_date, discharge_date,
			insurance_number, blood_type, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (client_id) DO UPDATE SET
			primary_therapist_id = EXCLUDED.primary_therapist_id,
			admission_date = EXCLUDED.admission_date,
			discharge_date = EXCLUDED.discharge_date,
			insurance_number = EXCLUDED.insurance_number,
			blood_type = EXCLUDED.blood_type,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`
	file.Touch(time.Now().UTC())

	err := r.db.QueryRowxContext(ctx, query,
		file.ClientID,
		file.PrimaryTherapistID,
		file.AdmissionDate,
		file.DischargeDate,
		file.InsuranceNumber,
		file.BloodType,
		file.IsActive,
		file.CreatedAt,
		file.UpdatedAt,
	).Scan(&file.CreatedAt)
	return mapError("upsert patient file", err)
}

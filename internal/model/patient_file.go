package model

import "time"

// BloodTypes lists the accepted values for PatientFile.BloodType
var BloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

type PatientFile struct {
	ClientID           int64      `db:"client_id" json:"client_id"`
	PrimaryTherapistID int64      `db:"primary_therapist_id" json:"primary_therapist_id"`
	AdmissionDate      time.Time  `db:"admission_date" json:"admission_date"`
	DischargeDate      *time.Time `db:"discharge_date" json:"discharge_date,omitempty"`
	InsuranceNumber    string     `db:"insurance_number" json:"insurance_number"`
	BloodType          string     `db:"blood_type" json:"blood_type"`
	IsActive           bool       `db:"is_active" json:"is_active"`
	Timestamps
}

// PatientFileInput carries the replaceable fields of a patient file
type PatientFileInput struct {
	AdmissionDate   time.Time  `json:"admission_date" binding:"required"`
	DischargeDate   *time.Time `json:"discharge_date"`
	InsuranceNumber string     `json:"insurance_number" binding:"max=50"`
	BloodType       string     `json:"blood_type" binding:"omitempty,blood_type"`
	IsActive        bool       `json:"is_active"`
}

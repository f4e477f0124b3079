package model

import (
	"fmt"
	"time"
)

// Role tags the table a credential refers to
type Role string

const (
	RoleClient    Role = "client"
	RoleTherapist Role = "therapist"
	RoleOwner     Role = "owner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleTherapist, RoleOwner:
		return true
	default:
		return false
	}
}

// EmploymentStatus of a therapist
type EmploymentStatus string

const (
	EmploymentFullTime EmploymentStatus = "fulltime"
	EmploymentPartTime EmploymentStatus = "parttime"
	EmploymentPending  EmploymentStatus = "pending"
)

// Person holds the personal information every role record carries
type Person struct {
	ID           int64     `json:"id" db:"id"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	DateOfBirth  time.Time `json:"date_of_birth" db:"date_of_birth"`
	Gender       string    `json:"gender" db:"gender"`
	Pronouns     string    `json:"pronouns" db:"pronouns"`
	Email        string    `json:"email" db:"email"`
	Phone        string    `json:"phone" db:"phone"`
	Address      string    `json:"address" db:"address"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Timestamps
}

// FullName returns "First Last".
func (p *Person) FullName() string {
	return fmt.Sprintf("%s %s", p.FirstName, p.LastName)
}

// User is implemented by Client, Therapist and Owner
type User interface {
	UserID() int64
	UserRole() Role
	Profile() *Person
}

type Client struct {
	Person
}

func (c *Client) UserID() int64    { return c.ID }
func (c *Client) UserRole() Role   { return RoleClient }
func (c *Client) Profile() *Person { return &c.Person }

type Owner struct {
	Person
}

func (o *Owner) UserID() int64    { return o.ID }
func (o *Owner) UserRole() Role   { return RoleOwner }
func (o *Owner) Profile() *Person { return &o.Person }

type Therapist struct {
	Person
	LicenseNumber     string           `json:"license_number" db:"license_number"`
	HiringDate        time.Time        `json:"hiring_date" db:"hiring_date"`
	YearsOfExperience int              `json:"years_of_experience" db:"years_of_experience"`
	VoidCheque        string           `json:"-" db:"void_cheque"`
	Status            EmploymentStatus `json:"status" db:"status"`
}

func (t *Therapist) UserID() int64    { return t.ID }
func (t *Therapist) UserRole() Role   { return RoleTherapist }
func (t *Therapist) Profile() *Person { return &t.Person }

// Confirm moves the therapist out of the pending state. Confirming as
// pending leaves the record untouched and reports false.
func (t *Therapist) Confirm(status EmploymentStatus) bool {
	if status == EmploymentPending {
		return false
	}
	t.Status = status
	return true
}

// LoginRequest represents login parameters
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// CreatePersonRequest holds the fields shared by every signup form
type CreatePersonRequest struct {
	FirstName   string    `json:"first_name" binding:"required,max=100"`
	LastName    string    `json:"last_name" binding:"required,max=100"`
	DateOfBirth time.Time `json:"date_of_birth" binding:"required"`
	Gender      string    `json:"gender" binding:"max=50"`
	Pronouns    string    `json:"pronouns" binding:"max=50"`
	Email       string    `json:"email" binding:"required,email"`
	Phone       string    `json:"phone" binding:"max=30"`
	Address     string    `json:"address" binding:"max=255"`
	Password    string    `json:"password" binding:"required,min=8"`
}

// Person converts the request into a Person without a password hash.
func (r *CreatePersonRequest) Person() Person {
	return Person{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DateOfBirth: r.DateOfBirth,
		Gender:      r.Gender,
		Pronouns:    r.Pronouns,
		Email:       r.Email,
		Phone:       r.Phone,
		Address:     r.Address,
	}
}

type CreateClientRequest struct {
	CreatePersonRequest
}

type CreateTherapistRequest struct {
	CreatePersonRequest
	LicenseNumber     string `json:"license_number" binding:"required,max=50"`
	YearsOfExperience int    `json:"years_of_experience" binding:"gte=0,lte=80"`
	VoidCheque        string `json:"void_cheque" binding:"max=255"`
}

// ConfirmTherapistRequest is sent by an owner to settle a pending therapist
type ConfirmTherapistRequest struct {
	Status EmploymentStatus `json:"status" binding:"required,oneof=fulltime parttime pending"`
}

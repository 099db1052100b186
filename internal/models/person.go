package models

import (
	"strings"
	"time"
)

// Sexo mirrors the sexo column check constraint
type Sexo string

const (
	SexoMasculino Sexo = "M"
	SexoFemenino  Sexo = "F"
	SexoOtro      Sexo = "O"
)

// PersonStatus is the admin-facing account filter
type PersonStatus string

const (
	StatusActive    PersonStatus = "active"
	StatusSuspended PersonStatus = "suspended"
)

// Person represents a sympathizer in the referral network
// Backed by table `sympathizers`
type Person struct {
	ID           int64      `json:"id" db:"id"`
	Cedula       string     `json:"cedula" db:"cedula"`
	Nombres      string     `json:"nombres" db:"nombres"`
	Apellidos    string     `json:"apellidos" db:"apellidos"`
	Email        *string    `json:"email" db:"email"`
	Phone        string     `json:"phone" db:"phone"`
	Sexo         Sexo       `json:"sexo" db:"sexo"`
	ReferrerID   *int64     `json:"referrer" db:"referrer_id"`
	ReferralCode string     `json:"referral_code" db:"referral_code"`
	LinkEnabled  bool       `json:"link_enabled" db:"link_enabled"`
	IsSuspended  bool       `json:"is_suspended" db:"is_suspended"`
	NetworkName  *string    `json:"network_name" db:"network_name"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ActivatedAt  *time.Time `json:"activated_at" db:"activated_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	DepartmentID *int64     `json:"department_id" db:"department_id"`
	MunicipioID  *int64     `json:"municipio_id" db:"municipio_id"`

	// read-only, joined from departments / municipalities
	DepartmentName *string `json:"department_name" db:"-"`
	MunicipioName  *string `json:"municipio_name" db:"-"`
}

// FullName joins nombres and apellidos
func (p *Person) FullName() string {
	return strings.TrimSpace(p.Nombres + " " + p.Apellidos)
}

// IsRoot reports whether the person founded a network
func (p *Person) IsRoot() bool {
	return p.ReferrerID == nil
}

// NetworkDisplayName returns the configured network name or the founder-based default.
func (p *Person) NetworkDisplayName() string {
	if p.NetworkName != nil && strings.TrimSpace(*p.NetworkName) != "" {
		return *p.NetworkName
	}
	return "Red de " + p.FullName()
}

// PersonDetail is the admin representation of a person
type PersonDetail struct {
	Person
	ReferrerName     *string `json:"referrer_name"`
	ReferralsCount   int     `json:"referrals_count"`
	IsRoot           bool    `json:"is_root"`
	NetworkDisplay   string  `json:"network_display_name"`
	TotalNetworkSize *int    `json:"total_network_size,omitempty"`
}

// PersonListParams represents search, filter and pagination parameters
type PersonListParams struct {
	Page     int
	PageSize int
	Search   string
	Status   *PersonStatus
	// RestrictIDs limits results to the given ids (network filter); nil means no restriction
	RestrictIDs []int64
}

// PersonListResponse represents a paginated person list
type PersonListResponse struct {
	Results  []PersonDetail `json:"results"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Pages    int            `json:"pages"`
}

// RegisterRequest represents a signup, admin network creation or import row
type RegisterRequest struct {
	Nombres      string  `json:"nombres" binding:"required,max=100"`
	Apellidos    string  `json:"apellidos" binding:"required,max=100"`
	Cedula       string  `json:"cedula" binding:"required,max=20"`
	Email        *string `json:"email,omitempty" binding:"omitempty,email"`
	Phone        string  `json:"phone" binding:"required,max=15"`
	Sexo         Sexo    `json:"sexo" binding:"required,sexo"`
	ReferrerCode string  `json:"referrer_code,omitempty" binding:"omitempty,referralcode"`
	NetworkName  *string `json:"network_name,omitempty" binding:"omitempty,max=100"`
	DepartmentID *int64  `json:"department_id,omitempty" binding:"omitempty,min=1"`
	MunicipioID  *int64  `json:"municipio_id,omitempty" binding:"omitempty,min=1"`
}

// PersonUpdate carries the admin-editable fields; nil means unchanged
type PersonUpdate struct {
	Nombres      *string `json:"nombres,omitempty" binding:"omitempty,max=100"`
	Apellidos    *string `json:"apellidos,omitempty" binding:"omitempty,max=100"`
	Phone        *string `json:"phone,omitempty" binding:"omitempty,max=15"`
	Email        *string `json:"email,omitempty"`
	Sexo         *Sexo   `json:"sexo,omitempty" binding:"omitempty,sexo"`
	LinkEnabled  *bool   `json:"link_enabled,omitempty"`
	IsSuspended  *bool   `json:"is_suspended,omitempty"`
	NetworkName  *string `json:"network_name,omitempty" binding:"omitempty,max=100"`
	DepartmentID *int64  `json:"department_id,omitempty" binding:"omitempty,min=1"`
	MunicipioID  *int64  `json:"municipio_id,omitempty" binding:"omitempty,min=1"`
}

// CedulaRequest is the body of the public lookups keyed by cedula
type CedulaRequest struct {
	Cedula string `json:"cedula" binding:"required,max=20"`
}

// VerifyIdentityRequest proves ownership of a cedula with its phone or email
type VerifyIdentityRequest struct {
	Cedula string `json:"cedula" binding:"required,max=20"`
	Phone  string `json:"phone,omitempty"`
	Email  string `json:"email,omitempty"`
}

// NetworkRoot is a founder row in the admin networks list
type NetworkRoot struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Cedula           string    `json:"cedula"`
	Phone            string    `json:"phone"`
	Email            *string   `json:"email"`
	ReferralCode     string    `json:"referral_code"`
	NetworkName      string    `json:"network_name"`
	CreatedAt        time.Time `json:"created_at"`
	LinkEnabled      bool      `json:"link_enabled"`
	IsSuspended      bool      `json:"is_suspended"`
	DirectReferrals  int       `json:"direct_referrals"`
	TotalNetworkSize int       `json:"total_network_size"`
	// SizeLimitExceeded is set when the network is too large to traverse;
	// TotalNetworkSize is then left at zero.
	SizeLimitExceeded bool `json:"size_limit_exceeded,omitempty"`
}

// ValidateSexo validates if the sexo value is valid
func ValidateSexo(s string) bool {
	switch Sexo(s) {
	case SexoMasculino, SexoFemenino, SexoOtro:
		return true
	default:
		return false
	}
}

// ValidatePersonStatus validates if the status filter is valid
func ValidatePersonStatus(s string) bool {
	switch PersonStatus(s) {
	case StatusActive, StatusSuspended:
		return true
	default:
		return false
	}
}

// MaskPhone keeps the first digit and the last two
func MaskPhone(phone string) string {
	if len(phone) < 3 {
		return phone
	}
	return phone[:1] + strings.Repeat("*", len(phone)-3) + phone[len(phone)-2:]
}

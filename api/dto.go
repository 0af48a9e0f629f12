/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

QUANTITIES:
  Quantities cross the wire as decimal strings ("450", "0.5"), never as
  floats. The engine's exactness guarantee would be pointless if the
  boundary rounded.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: The domain model these map from
*/
package api

import (
	"time"

	"github.com/redcell/inventory-engine/blood"
	"github.com/redcell/inventory-engine/identity"
	"github.com/redcell/inventory-engine/ledger"
	"github.com/redcell/inventory-engine/organ"
)

// =============================================================================
// AUTH TYPES
// =============================================================================

// UserDTO represents a user in API responses. Password hashes never leave
// the server.
type UserDTO struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// RegisterRequest is the request to create an account.
type RegisterRequest struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

// LoginRequest is the request to authenticate.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned after a successful login or registration.
type AuthResponse struct {
	Token string  `json:"token,omitempty"`
	User  UserDTO `json:"user"`
}

// =============================================================================
// BLOOD LEDGER TYPES
// =============================================================================

// CreateBloodRequest records a donation or an issue.
type CreateBloodRequest struct {
	Direction  string `json:"direction"`
	BloodGroup string `json:"blood_group"`
	Quantity   string `json:"quantity"`

	// Email of the counterparty: the donor for "in", the hospital for "out".
	Email string `json:"email"`

	// Organisation may only be set by admins; organisation callers always
	// record against themselves.
	Organisation string `json:"organisation,omitempty"`
}

// BloodTransactionDTO represents a blood ledger entry with its participant
// references resolved for display.
type BloodTransactionDTO struct {
	ID               string `json:"id"`
	Direction        string `json:"direction"`
	BloodGroup       string `json:"blood_group"`
	Quantity         string `json:"quantity"`
	Organisation     string `json:"organisation"`
	OrganisationName string `json:"organisation_name,omitempty"`
	Donor            string `json:"donor,omitempty"`
	DonorName        string `json:"donor_name,omitempty"`
	Hospital         string `json:"hospital,omitempty"`
	HospitalName     string `json:"hospital_name,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// BloodBalanceDTO is one row of the per-group stock report.
type BloodBalanceDTO struct {
	BloodGroup string `json:"blood_group"`
	TotalIn    string `json:"total_in"`
	TotalOut   string `json:"total_out"`
	Available  string `json:"available"`
}

// =============================================================================
// ORGAN LEDGER TYPES
// =============================================================================

// CreateOrganRequest records an organ entry when the client sends plain
// JSON instead of a multipart form. Document uploads require multipart.
type CreateOrganRequest struct {
	Direction   string `json:"direction"`
	OrganType   string `json:"organ_type"`
	BloodGroup  string `json:"blood_group"`
	Quantity    string `json:"quantity"`
	Donor       string `json:"donor,omitempty"`
	Hospital    string `json:"hospital,omitempty"`
	PatientName string `json:"patient_name"`
	Age         int    `json:"age"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`

	// Organisation may only be set by admins.
	Organisation string `json:"organisation,omitempty"`
}

// OrganDTO represents an organ ledger entry.
type OrganDTO struct {
	ID                 string `json:"id"`
	Direction          string `json:"direction"`
	OrganType          string `json:"organ_type"`
	Quantity           string `json:"quantity"`
	Organisation       string `json:"organisation,omitempty"`
	BloodGroup         string `json:"blood_group"`
	PatientName        string `json:"patient_name"`
	Age                int    `json:"age"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	MedicalDocumentURL string `json:"medical_document_url,omitempty"`
	IdentityProofURL   string `json:"identity_proof_url,omitempty"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

// OrganBalanceDTO is one row of the per-organ-type analytics report.
type OrganBalanceDTO struct {
	OrganType string `json:"organ_type"`
	TotalIn   string `json:"total_in"`
	TotalOut  string `json:"total_out"`
	Available string `json:"available"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toUserDTO(u identity.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Role:      string(u.Role),
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Address:   u.Address,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func toUserDTOs(users []identity.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	return dtos
}

func toBloodDTO(rec blood.Record) BloodTransactionDTO {
	dto := BloodTransactionDTO{
		ID:           rec.ID,
		Direction:    string(rec.Direction),
		BloodGroup:   rec.Subtype,
		Quantity:     rec.Quantity.String(),
		Organisation: rec.Organisation,
		Donor:        rec.Donor,
		Hospital:     rec.Hospital,
		CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.OrganisationUser != nil {
		dto.OrganisationName = rec.OrganisationUser.Name
	}
	if rec.DonorUser != nil {
		dto.DonorName = rec.DonorUser.Name
	}
	if rec.HospitalUser != nil {
		dto.HospitalName = rec.HospitalUser.Name
	}
	return dto
}

func toBloodDTOs(recs []blood.Record) []BloodTransactionDTO {
	dtos := make([]BloodTransactionDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toBloodDTO(rec)
	}
	return dtos
}

func toBloodBalanceDTO(b ledger.Balance) BloodBalanceDTO {
	return BloodBalanceDTO{
		BloodGroup: b.Subtype,
		TotalIn:    b.TotalIn.String(),
		TotalOut:   b.TotalOut.String(),
		Available:  b.Available.String(),
	}
}

func toOrganDTO(e organ.Entry) OrganDTO {
	return OrganDTO{
		ID:                 e.ID,
		Direction:          string(e.Direction),
		OrganType:          e.Subtype,
		Quantity:           e.Quantity.String(),
		Organisation:       e.Organisation,
		BloodGroup:         e.BloodGroup,
		PatientName:        e.PatientName,
		Age:                e.Age,
		Email:              e.Email,
		Phone:              e.Phone,
		MedicalDocumentURL: e.MedicalDocumentURL,
		IdentityProofURL:   e.IdentityProofURL,
		CreatedAt:          e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          e.UpdatedAt.Format(time.RFC3339),
	}
}

func toOrganDTOs(entries []organ.Entry) []OrganDTO {
	dtos := make([]OrganDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toOrganDTO(e)
	}
	return dtos
}

func toOrganBalanceDTO(b ledger.Balance) OrganBalanceDTO {
	return OrganBalanceDTO{
		OrganType: b.Subtype,
		TotalIn:   b.TotalIn.String(),
		TotalOut:  b.TotalOut.String(),
		Available: b.Available.String(),
	}
}

/*
handlers.go - HTTP API handlers for the inventory platform

PURPOSE:
  Exposes the inventory engine via REST API. Handles HTTP
  request/response, JSON and multipart parsing, and delegates to the
  domain services.

ENDPOINTS:
  Auth:
    POST   /api/auth/register          Create an account
    POST   /api/auth/login             Authenticate, get a token
    GET    /api/auth/me                Current caller's profile

  Blood ledger:
    POST   /api/blood                  Record a donation or issue
    GET    /api/blood                  List transactions (caller-scoped)
    GET    /api/blood/recent           Latest transactions
    GET    /api/blood/report           Per-group stock report
    GET    /api/blood/donors           Donor directory
    GET    /api/blood/hospitals        Hospital directory
    GET    /api/blood/organisations    Organisations the caller dealt with

  Organ ledger:
    POST   /api/organs                 Record an organ entry (multipart)
    GET    /api/organs                 List entries (caller-scoped)
    GET    /api/organs/analytics       Per-organ-type report
    GET    /api/organs/{id}            Get one entry
    PUT    /api/organs/{id}            Update an entry (re-validated)
    DELETE /api/organs/{id}            Delete an entry (re-validated)

  Admin:
    GET    /api/users                  List users, ?role= to filter

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve the caller's visibility from the verified token
  3. Call domain logic (blood / organ / identity services)
  4. Serialize response
  5. Map domain errors to status codes

ERROR HANDLING:
  Domain errors map to HTTP status by kind, never by message string:
  - 400: Validation errors, insufficient stock
  - 401: Missing or invalid token
  - 403: Role does not permit the operation
  - 404: Referenced user or record absent
  - 500: Storage or backend failures

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Token verification and caller visibility
  - server.go: Router setup
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/redcell/inventory-engine/blood"
	"github.com/redcell/inventory-engine/docstore"
	"github.com/redcell/inventory-engine/identity"
	"github.com/redcell/inventory-engine/ledger"
	"github.com/redcell/inventory-engine/metrics"
	"github.com/redcell/inventory-engine/organ"
)

// maxUploadBytes bounds multipart parsing for organ document uploads.
const maxUploadBytes = 32 << 20

// recentLimit is how many entries the recent-activity endpoints return.
const recentLimit = 10

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Identity *identity.Service
	Blood    *blood.Service
	Organs   *organ.Service
	Docs     docstore.Store
	Metrics  *metrics.Metrics
}

// NewHandler creates a new handler with the given services.
func NewHandler(id *identity.Service, bl *blood.Service, org *organ.Service, docs docstore.Store, m *metrics.Metrics) *Handler {
	return &Handler{Identity: id, Blood: bl, Organs: org, Docs: docs, Metrics: m}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Register creates an account.
// POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	user, err := h.Identity.Register(r.Context(), identity.RegisterParams{
		Role:     identity.Role(req.Role),
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{User: toUserDTO(user)})
}

// Login verifies credentials and returns a bearer token.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	token, user, err := h.Identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Metrics.RecordLogin()
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: toUserDTO(user)})
}

// Me returns the authenticated caller's profile.
// GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	user, err := h.Identity.ByID(r.Context(), caller.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// ListUsers returns all users, optionally filtered by role. Admin only.
// GET /api/users?role=donor
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := identity.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown role", nil)
		return
	}

	users, err := h.Identity.Store.ListUsers(r.Context(), role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(users))
}

// =============================================================================
// BLOOD LEDGER HANDLERS
// =============================================================================

// CreateBloodTransaction records a donation or an issue.
// POST /api/blood
func (h *Handler) CreateBloodTransaction(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	var req CreateBloodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	quantity, err := parseQuantityField(req.Quantity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	// Organisation callers always record against themselves; admins name
	// the organisation explicitly.
	organisation := caller.UserID
	if caller.Role == identity.RoleAdmin {
		organisation = req.Organisation
	}

	entry, err := h.Blood.Create(r.Context(), blood.CreateParams{
		Direction:    ledger.Direction(req.Direction),
		Group:        req.BloodGroup,
		Quantity:     quantity,
		Organisation: organisation,
		Email:        req.Email,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientStock) {
			h.Metrics.RecordRejection("blood")
		}
		h.writeDomainError(w, err)
		return
	}

	h.Metrics.RecordTransaction("blood", string(entry.Direction))
	writeJSON(w, http.StatusCreated, toBloodDTO(blood.Record{Entry: entry}))
}

// ListBloodTransactions lists transactions within the caller's visibility.
// GET /api/blood?direction=out&blood_group=O%2B
func (h *Handler) ListBloodTransactions(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	f := ledger.Filter{
		Direction: ledger.Direction(r.URL.Query().Get("direction")),
		Subtype:   r.URL.Query().Get("blood_group"),
		Donor:     r.URL.Query().Get("donor"),
		Hospital:  r.URL.Query().Get("hospital"),
	}
	// callerFilter pins donor/hospital callers to their own column, so a
	// scoped caller cannot filter their way into someone else's entries.
	vis, f := callerFilter(caller, f)

	records, err := h.Blood.List(r.Context(), vis, f, ledger.QueryOptions{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toBloodDTOs(records))
}

// RecentBloodTransactions returns the latest entries the caller may see.
// GET /api/blood/recent
func (h *Handler) RecentBloodTransactions(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	vis, f := callerFilter(caller, ledger.Filter{})

	records, err := h.Blood.List(r.Context(), vis, f, ledger.QueryOptions{Limit: recentLimit})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toBloodDTOs(records))
}

// BloodReport computes the per-group stock report within the caller's
// visibility: every group, zeros included.
// GET /api/blood/report
func (h *Handler) BloodReport(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	balances, err := h.Blood.Report(r.Context(), visibility(caller))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute report", err)
		return
	}

	dtos := make([]BloodBalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBloodBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Donors returns the organisation's derived donor directory.
// GET /api/blood/donors
func (h *Handler) Donors(w http.ResponseWriter, r *http.Request) {
	h.directory(w, r, h.Blood.Donors)
}

// Hospitals returns the organisation's derived hospital directory.
// GET /api/blood/hospitals
func (h *Handler) Hospitals(w http.ResponseWriter, r *http.Request) {
	h.directory(w, r, h.Blood.Hospitals)
}

// directory resolves the organisation the listing is for (the caller,
// or ?organisation= for admins) and runs the lookup.
func (h *Handler) directory(w http.ResponseWriter, r *http.Request, lookup func(ctx context.Context, organisation string) ([]identity.User, error)) {
	caller, _ := CallerFrom(r.Context())

	organisation := caller.UserID
	if caller.Role == identity.RoleAdmin {
		organisation = r.URL.Query().Get("organisation")
		if organisation == "" {
			writeError(w, http.StatusBadRequest, "Organisation is required", nil)
			return
		}
	}

	users, err := lookup(r.Context(), organisation)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve directory", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(users))
}

// Organisations returns the organisations the caller has dealt with:
// the ones a donor donated to, or the ones that issued to a hospital.
// Admins get the full organisation roster.
// GET /api/blood/organisations
func (h *Handler) Organisations(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	var (
		users []identity.User
		err   error
	)
	switch caller.Role {
	case identity.RoleDonor:
		users, err = h.Blood.OrganisationsForDonor(r.Context(), caller.UserID)
	case identity.RoleHospital:
		users, err = h.Blood.OrganisationsForHospital(r.Context(), caller.UserID)
	case identity.RoleAdmin:
		users, err = h.Identity.Store.ListUsers(r.Context(), identity.RoleOrganisation)
	default:
		writeError(w, http.StatusForbidden, "Insufficient role", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve organisations", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(users))
}

// =============================================================================
// ORGAN LEDGER HANDLERS
// =============================================================================

// CreateOrgan records an organ entry. Accepts multipart form data so the
// supporting documents can ride along.
// POST /api/organs
func (h *Handler) CreateOrgan(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	params, err := h.organParams(r, caller)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	entry, err := h.Organs.Add(r.Context(), params)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientStock) {
			h.Metrics.RecordRejection("organ")
		}
		h.writeDomainError(w, err)
		return
	}

	h.Metrics.RecordTransaction("organ", string(entry.Direction))
	writeJSON(w, http.StatusCreated, toOrganDTO(entry))
}

// ListOrgans lists entries within the caller's visibility.
// GET /api/organs
func (h *Handler) ListOrgans(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	vis, f := callerFilter(caller, ledger.Filter{
		Direction: ledger.Direction(r.URL.Query().Get("direction")),
		Subtype:   r.URL.Query().Get("organ_type"),
	})

	entries, err := h.Organs.List(r.Context(), vis, f, ledger.QueryOptions{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list organ records", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrganDTOs(entries))
}

// GetOrgan returns one record.
// GET /api/organs/{id}
func (h *Handler) GetOrgan(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	id := chi.URLParam(r, "id")

	entry, err := h.Organs.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if !canAccessOrgan(caller, entry) {
		// 404, not 403: scoped callers must not learn the record exists.
		writeError(w, http.StatusNotFound, "Organ record not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toOrganDTO(entry))
}

// UpdateOrgan replaces an entry's fields, keeping uploaded documents
// unless new ones arrive. The edit is rejected if it would drive any
// affected balance negative.
// PUT /api/organs/{id}
func (h *Handler) UpdateOrgan(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	id := chi.URLParam(r, "id")

	existing, err := h.Organs.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if !canAccessOrgan(caller, existing) {
		writeError(w, http.StatusNotFound, "Organ record not found", nil)
		return
	}

	params, err := h.organParams(r, caller)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	entry, err := h.Organs.Update(r.Context(), id, params)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientStock) {
			h.Metrics.RecordRejection("organ")
		}
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrganDTO(entry))
}

// DeleteOrgan removes a record, unless removal would drive its balance
// negative.
// DELETE /api/organs/{id}
func (h *Handler) DeleteOrgan(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	id := chi.URLParam(r, "id")

	existing, err := h.Organs.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if !canAccessOrgan(caller, existing) {
		writeError(w, http.StatusNotFound, "Organ record not found", nil)
		return
	}

	if err := h.Organs.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ledger.ErrInsufficientStock) {
			h.Metrics.RecordRejection("organ")
		}
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OrganAnalytics computes the per-organ-type report within the caller's
// visibility.
// GET /api/organs/analytics
func (h *Handler) OrganAnalytics(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	balances, err := h.Organs.Analytics(r.Context(), visibility(caller))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute analytics", err)
		return
	}

	dtos := make([]OrganBalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toOrganBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// organParams parses an organ create/update request. Multipart bodies may
// carry the two supporting documents; plain JSON works when there is
// nothing to upload. A missing file field just leaves the URL empty.
func (h *Handler) organParams(r *http.Request, caller Caller) (organ.Params, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return h.organParamsJSON(r, caller)
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return organ.Params{}, &ledger.ValidationError{Field: "body", Message: "invalid multipart form"}
	}

	quantity, err := parseQuantityField(r.FormValue("quantity"))
	if err != nil {
		return organ.Params{}, err
	}

	age := 0
	if raw := r.FormValue("age"); raw != "" {
		age, err = strconv.Atoi(raw)
		if err != nil {
			return organ.Params{}, &ledger.ValidationError{Field: "age", Message: "must be a whole number"}
		}
	}

	organisation := caller.UserID
	if caller.Role == identity.RoleAdmin {
		organisation = r.FormValue("organisation")
	}

	params := organ.Params{
		Direction:    ledger.Direction(r.FormValue("direction")),
		OrganType:    r.FormValue("organ_type"),
		BloodGroup:   r.FormValue("blood_group"),
		Quantity:     quantity,
		Organisation: organisation,
		Donor:        r.FormValue("donor"),
		Hospital:     r.FormValue("hospital"),
		PatientName:  r.FormValue("patient_name"),
		Age:          age,
		Email:        r.FormValue("email"),
		Phone:        r.FormValue("phone"),
	}

	params.MedicalDocumentURL, err = h.saveUpload(r, "medical_document")
	if err != nil {
		return organ.Params{}, err
	}
	params.IdentityProofURL, err = h.saveUpload(r, "identity_proof")
	if err != nil {
		return organ.Params{}, err
	}
	return params, nil
}

func (h *Handler) organParamsJSON(r *http.Request, caller Caller) (organ.Params, error) {
	var req CreateOrganRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return organ.Params{}, &ledger.ValidationError{Field: "body", Message: "invalid JSON body"}
	}

	quantity, err := parseQuantityField(req.Quantity)
	if err != nil {
		return organ.Params{}, err
	}

	organisation := caller.UserID
	if caller.Role == identity.RoleAdmin {
		organisation = req.Organisation
	}

	return organ.Params{
		Direction:    ledger.Direction(req.Direction),
		OrganType:    req.OrganType,
		BloodGroup:   req.BloodGroup,
		Quantity:     quantity,
		Organisation: organisation,
		Donor:        req.Donor,
		Hospital:     req.Hospital,
		PatientName:  req.PatientName,
		Age:          req.Age,
		Email:        req.Email,
		Phone:        req.Phone,
	}, nil
}

// saveUpload stores one optional file field and returns its URL, or ""
// when the field is absent.
func (h *Handler) saveUpload(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", &ledger.ValidationError{Field: field, Message: "invalid file upload"}
	}
	defer file.Close()

	return h.Docs.Save(r.Context(), field, header.Filename, file)
}

// canAccessOrgan reports whether the caller may see the record. Unscoped
// records are visible to any caller allowed onto the organ routes.
func canAccessOrgan(c Caller, e organ.Entry) bool {
	if c.Role == identity.RoleAdmin {
		return true
	}
	return e.Organisation == "" || e.Organisation == c.UserID
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func parseQuantityField(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, &ledger.ValidationError{Field: "quantity", Message: "is required"}
	}
	q, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ledger.ValidationError{Field: "quantity", Message: "must be a decimal number"}
	}
	return q, nil
}

// writeDomainError maps a domain error to its HTTP status. Matching is by
// error kind, never by message string.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var stockErr *ledger.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "Only " + stockErr.Available.String() + stockErr.Unit + " of " + stockErr.Subtype + " available",
			Details: map[string]string{
				"available": stockErr.Available.String(),
				"requested": stockErr.Requested.String(),
				"subtype":   stockErr.Subtype,
			},
		})
		return
	}

	switch {
	case errors.Is(err, ledger.ErrValidation):
		writeError(w, http.StatusBadRequest, capitalize(err.Error()), nil)
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, capitalize(err.Error()), nil)
	case errors.Is(err, ledger.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
	case errors.Is(err, ledger.ErrForbidden):
		writeError(w, http.StatusForbidden, "Operation not permitted", nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError sends the generic message only. The underlying error is
// logged server-side; driver and storage detail never reaches a client.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		log.Printf("api: %s: %v", message, err)
	}
	writeJSON(w, status, ErrorResponse{Error: message})
}

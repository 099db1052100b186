package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jcastroba/red-simpatizantes/internal/models"
	"go.uber.org/zap"
)

// PersonService handles signups and admin management of sympathizers
type PersonService struct {
	people    PersonStore
	locations *LocationService
	network   *NetworkService
	codes     *CodeGenerator
	logger    *zap.Logger
}

// NewPersonService creates a new person service
func NewPersonService(people PersonStore, locations *LocationService, network *NetworkService, logger *zap.Logger) *PersonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonService{
		people:    people,
		locations: locations,
		network:   network,
		codes:     NewCodeGenerator(people),
		logger:    logger,
	}
}

// maskCedula keeps the first four digits for logs
func maskCedula(cedula string) string {
	if len(cedula) <= 4 {
		return "***"
	}
	return cedula[:4] + "***"
}

func normalizeRegister(req models.RegisterRequest) (models.RegisterRequest, error) {
	req.Nombres = strings.TrimSpace(req.Nombres)
	req.Apellidos = strings.TrimSpace(req.Apellidos)
	req.Cedula = strings.TrimSpace(req.Cedula)
	req.Phone = strings.TrimSpace(req.Phone)
	req.ReferrerCode = strings.ToUpper(strings.TrimSpace(req.ReferrerCode))
	if req.Email != nil {
		e := strings.TrimSpace(*req.Email)
		if e == "" {
			req.Email = nil
		} else {
			req.Email = &e
		}
	}
	if req.Sexo == "" {
		req.Sexo = models.SexoOtro
	}

	switch {
	case req.Nombres == "" || req.Apellidos == "":
		return req, fmt.Errorf("nombres and apellidos are required: %w", ErrInvalid)
	case req.Cedula == "":
		return req, fmt.Errorf("cedula is required: %w", ErrInvalid)
	case !models.ValidateSexo(string(req.Sexo)):
		return req, fmt.Errorf("sexo %q: %w", req.Sexo, ErrInvalid)
	}
	return req, nil
}

// create inserts a person under referrerID (nil for a founder) with a fresh referral code
// activated_at stays NULL until the identity layer activates the account
func (s *PersonService) create(ctx context.Context, req models.RegisterRequest, referrerID *int64) (*models.Person, error) {
	dept, mun, err := s.locations.Resolve(ctx, req.DepartmentID, req.MunicipioID)
	if err != nil {
		return nil, err
	}
	code, err := s.codes.Generate(ctx)
	if err != nil {
		return nil, err
	}
	p := &models.Person{
		Cedula:       req.Cedula,
		Nombres:      req.Nombres,
		Apellidos:    req.Apellidos,
		Email:        req.Email,
		Phone:        req.Phone,
		Sexo:         req.Sexo,
		ReferrerID:   referrerID,
		ReferralCode: code,
		LinkEnabled:  true,
	}
	if dept != nil {
		p.DepartmentID = &dept.ID
		p.DepartmentName = &dept.Name
	}
	if mun != nil {
		p.MunicipioID = &mun.ID
		p.MunicipioName = &mun.Name
	}
	if referrerID == nil && req.NetworkName != nil && strings.TrimSpace(*req.NetworkName) != "" {
		name := strings.TrimSpace(*req.NetworkName)
		p.NetworkName = &name
	}
	if err := s.people.Create(ctx, p); err != nil {
		return nil, storeErr(err, "create sympathizer %s", maskCedula(req.Cedula))
	}
	return p, nil
}

// Register signs a person up, under the owner of ReferrerCode when given
func (s *PersonService) Register(ctx context.Context, req models.RegisterRequest) (*models.Person, error) {
	req, err := normalizeRegister(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.people.FindByCedula(ctx, req.Cedula); err == nil {
		return nil, fmt.Errorf("cedula already registered: %w", ErrConflict)
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("lookup cedula: %w", err)
	}

	var referrerID *int64
	if req.ReferrerCode != "" {
		referrer, err := s.ReferrerByCode(ctx, req.ReferrerCode)
		if err != nil {
			return nil, err
		}
		referrerID = &referrer.ID
	}
	// founders are created by admins only
	req.NetworkName = nil

	p, err := s.create(ctx, req, referrerID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("sympathizer registered",
		zap.Int64("id", p.ID), zap.String("cedula", maskCedula(p.Cedula)), zap.Bool("root", p.IsRoot()))
	return p, nil
}

// ReferrerByCode resolves a referral link; disabled links are forbidden
func (s *PersonService) ReferrerByCode(ctx context.Context, code string) (*models.Person, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	referrer, err := s.people.FindByReferralCode(ctx, code)
	if err != nil {
		return nil, storeErr(err, "referral code %s", code)
	}
	if !referrer.LinkEnabled {
		return nil, fmt.Errorf("referral link %s is disabled: %w", code, ErrForbidden)
	}
	return referrer, nil
}

// CheckCedula reports whether a cedula is registered and, if so, a masked phone hint
func (s *PersonService) CheckCedula(ctx context.Context, cedula string) (bool, string, error) {
	cedula = strings.TrimSpace(cedula)
	if cedula == "" {
		return false, "", fmt.Errorf("cedula is required: %w", ErrInvalid)
	}
	p, err := s.people.FindByCedula(ctx, cedula)
	if err != nil {
		if isNotFound(err) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("lookup cedula: %w", err)
	}
	return true, models.MaskPhone(p.Phone), nil
}

// LinkByCedula returns the person owning a cedula so they can recover their referral link
func (s *PersonService) LinkByCedula(ctx context.Context, cedula string) (*models.Person, error) {
	cedula = strings.TrimSpace(cedula)
	if cedula == "" {
		return nil, fmt.Errorf("cedula is required: %w", ErrInvalid)
	}
	p, err := s.people.FindByCedula(ctx, cedula)
	if err != nil {
		return nil, storeErr(err, "sympathizer %s", maskCedula(cedula))
	}
	return p, nil
}

// VerifyIdentity matches a cedula against its phone, or its email ignoring case
func (s *PersonService) VerifyIdentity(ctx context.Context, req models.VerifyIdentityRequest) (*models.Person, error) {
	cedula := strings.TrimSpace(req.Cedula)
	if cedula == "" {
		return nil, fmt.Errorf("cedula is required: %w", ErrInvalid)
	}
	p, err := s.people.FindByCedula(ctx, cedula)
	if err != nil {
		return nil, storeErr(err, "sympathizer %s", maskCedula(cedula))
	}

	phone := strings.TrimSpace(req.Phone)
	email := strings.TrimSpace(req.Email)
	switch {
	case phone != "" && phone == p.Phone:
		return p, nil
	case email != "" && p.Email != nil && strings.EqualFold(email, *p.Email):
		return p, nil
	}
	s.logger.Warn("failed identity verification", zap.String("cedula", maskCedula(cedula)))
	return nil, ErrVerificationFailed
}

// RequireActive loads the caller and rejects suspended accounts
func (s *PersonService) RequireActive(ctx context.Context, id int64) (*models.Person, error) {
	p, err := s.people.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "person %d", id)
	}
	if p.IsSuspended {
		return nil, fmt.Errorf("person %d is suspended: %w", id, ErrForbidden)
	}
	return p, nil
}

// CreateNetwork creates a founder (a person without referrer)
func (s *PersonService) CreateNetwork(ctx context.Context, req models.RegisterRequest) (*models.Person, error) {
	req, err := normalizeRegister(req)
	if err != nil {
		return nil, err
	}
	if _, err := s.people.FindByCedula(ctx, req.Cedula); err == nil {
		return nil, fmt.Errorf("cedula already registered: %w", ErrConflict)
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("lookup cedula: %w", err)
	}

	p, err := s.create(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info("[AUDIT] network created", zap.Int64("id", p.ID), zap.String("network", p.NetworkDisplayName()))
	return p, nil
}

// Get returns the admin detail of a person including its total network size
func (s *PersonService) Get(ctx context.Context, id int64) (*models.PersonDetail, error) {
	p, err := s.people.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "person %d", id)
	}
	direct, size, err := s.network.Summary(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &models.PersonDetail{
		Person:           *p,
		ReferralsCount:   direct,
		IsRoot:           p.IsRoot(),
		NetworkDisplay:   p.NetworkDisplayName(),
		TotalNetworkSize: &size,
	}
	if p.ReferrerID != nil {
		ref, err := s.people.FindByID(ctx, *p.ReferrerID)
		switch {
		case err == nil:
			name := ref.FullName()
			d.ReferrerName = &name
		case !isNotFound(err):
			return nil, fmt.Errorf("referrer of %d: %w", id, err)
		}
	}
	return d, nil
}

// List searches persons; networkID restricts the result to that subtree
func (s *PersonService) List(ctx context.Context, params models.PersonListParams, networkID *int64) (*models.PersonListResponse, error) {
	if networkID != nil {
		ids, err := s.network.SubtreeIDs(ctx, *networkID)
		if err != nil {
			return nil, err
		}
		params.RestrictIDs = ids
	}
	resp, err := s.people.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list sympathizers: %w", err)
	}
	return resp, nil
}

// Update applies an admin edit
func (s *PersonService) Update(ctx context.Context, id int64, upd models.PersonUpdate) (*models.Person, error) {
	if upd.Sexo != nil && !models.ValidateSexo(string(*upd.Sexo)) {
		return nil, fmt.Errorf("sexo %q: %w", *upd.Sexo, ErrInvalid)
	}
	if upd.Nombres != nil && strings.TrimSpace(*upd.Nombres) == "" {
		return nil, fmt.Errorf("nombres cannot be empty: %w", ErrInvalid)
	}
	if upd.Apellidos != nil && strings.TrimSpace(*upd.Apellidos) == "" {
		return nil, fmt.Errorf("apellidos cannot be empty: %w", ErrInvalid)
	}
	if upd.DepartmentID != nil || upd.MunicipioID != nil {
		if err := s.resolveUpdateLocation(ctx, id, &upd); err != nil {
			return nil, err
		}
	}
	p, err := s.people.Update(ctx, id, upd)
	if err != nil {
		return nil, storeErr(err, "update person %d", id)
	}
	s.logger.Info("[AUDIT] sympathizer updated", zap.Int64("id", id), zap.String("cedula", maskCedula(p.Cedula)))
	return p, nil
}

// resolveUpdateLocation validates a location change against the stored row.
// A new department must contain the current municipio unless one is also given.
func (s *PersonService) resolveUpdateLocation(ctx context.Context, id int64, upd *models.PersonUpdate) error {
	municipio := upd.MunicipioID
	if municipio == nil {
		current, err := s.people.FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "person %d", id)
		}
		municipio = current.MunicipioID
	}
	dept, _, err := s.locations.Resolve(ctx, upd.DepartmentID, municipio)
	if err != nil {
		return err
	}
	if upd.DepartmentID == nil && dept != nil {
		upd.DepartmentID = &dept.ID
	}
	return nil
}

// Delete removes a person; its referrals become founders
func (s *PersonService) Delete(ctx context.Context, id int64) error {
	if err := s.people.Delete(ctx, id); err != nil {
		return storeErr(err, "delete person %d", id)
	}
	s.logger.Info("[AUDIT] sympathizer deleted", zap.Int64("id", id))
	return nil
}

// ToggleLink flips whether the person's referral link accepts signups
func (s *PersonService) ToggleLink(ctx context.Context, id int64) (*models.Person, error) {
	p, err := s.people.ToggleLinkEnabled(ctx, id)
	if err != nil {
		return nil, storeErr(err, "toggle link of %d", id)
	}
	s.logger.Info("[AUDIT] link toggled",
		zap.Int64("id", id), zap.String("cedula", maskCedula(p.Cedula)), zap.Bool("link_enabled", p.LinkEnabled))
	return p, nil
}

// ToggleSuspension flips the suspension flag
func (s *PersonService) ToggleSuspension(ctx context.Context, id int64) (*models.Person, error) {
	p, err := s.people.ToggleSuspended(ctx, id)
	if err != nil {
		return nil, storeErr(err, "toggle suspension of %d", id)
	}
	s.logger.Info("[AUDIT] suspension toggled",
		zap.Int64("id", id), zap.String("cedula", maskCedula(p.Cedula)), zap.Bool("is_suspended", p.IsSuspended))
	return p, nil
}

// Import creates referrals under parentID, which must be in the caller's subtree.
// Rows whose cedula already exists are skipped; other row failures are reported, not fatal.
func (s *PersonService) Import(ctx context.Context, callerID int64, req models.ImportRequest) (*models.ImportResult, error) {
	if _, err := s.people.FindByID(ctx, req.ParentID); err != nil {
		return nil, storeErr(err, "import parent %d", req.ParentID)
	}
	check, err := s.network.IsDescendant(ctx, callerID, req.ParentID)
	if err != nil {
		return nil, err
	}
	if !check.IsDescendant {
		return nil, fmt.Errorf("parent %d is outside the network of %d: %w", req.ParentID, callerID, ErrForbidden)
	}

	result := &models.ImportResult{
		Created: []models.Person{},
		Skipped: []string{},
		Errors:  []models.ImportRowError{},
	}
	parent := req.ParentID
	seen := make(map[string]bool, len(req.Referrals))

	for i, row := range req.Referrals {
		rowNum := i + 1
		row, err := normalizeRegister(row)
		if err != nil {
			result.Errors = append(result.Errors, models.ImportRowError{Row: rowNum, Cedula: row.Cedula, Error: err.Error()})
			continue
		}
		if seen[row.Cedula] {
			result.Skipped = append(result.Skipped, row.Cedula)
			continue
		}
		seen[row.Cedula] = true

		if _, err := s.people.FindByCedula(ctx, row.Cedula); err == nil {
			result.Skipped = append(result.Skipped, row.Cedula)
			continue
		} else if !isNotFound(err) {
			return nil, fmt.Errorf("import row %d: %w", rowNum, err)
		}

		row.NetworkName = nil
		p, err := s.create(ctx, row, &parent)
		if err != nil {
			if errors.Is(err, ErrConflict) {
				result.Skipped = append(result.Skipped, row.Cedula)
				continue
			}
			if errors.Is(err, ErrGenerationExhausted) || ctx.Err() != nil {
				return nil, err
			}
			result.Errors = append(result.Errors, models.ImportRowError{Row: rowNum, Cedula: row.Cedula, Error: err.Error()})
			continue
		}
		result.Created = append(result.Created, *p)
	}

	s.logger.Info("[AUDIT] referrals imported",
		zap.Int64("caller_id", callerID), zap.Int64("parent_id", parent),
		zap.Int("created", len(result.Created)), zap.Int("skipped", len(result.Skipped)), zap.Int("errors", len(result.Errors)))
	return result, nil
}

// Count returns the number of registered sympathizers
func (s *PersonService) Count(ctx context.Context) (int, error) {
	return s.people.Count(ctx)
}

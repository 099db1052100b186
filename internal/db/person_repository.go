package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jcastroba/red-simpatizantes/internal/models"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// personColumns selects from sympathizers aliased as s joined with locationJoins
const personColumns = `s.id, s.cedula, s.nombres, s.apellidos, s.email, s.phone, s.sexo, s.referrer_id,
	s.referral_code, s.link_enabled, s.is_suspended, s.network_name, s.created_at, s.activated_at, s.updated_at,
	s.department_id, s.municipio_id, d.name AS department_name, m.name AS municipio_name`

const locationJoins = `
		LEFT JOIN departments d ON d.id = s.department_id
		LEFT JOIN municipalities m ON m.id = s.municipio_id`

const personFrom = ` FROM sympathizers s` + locationJoins

// PersonRepository handles sympathizer database operations
type PersonRepository struct {
	db *Database
}

// NewPersonRepository creates a new person repository
func NewPersonRepository(db *Database) *PersonRepository {
	return &PersonRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPerson(row rowScanner, extra ...interface{}) (*models.Person, error) {
	var p models.Person
	var email, networkName, departmentName, municipioName sql.NullString
	var referrer, departmentID, municipioID sql.NullInt64
	var activatedAt sql.NullTime
	var sexo string

	dest := []interface{}{
		&p.ID, &p.Cedula, &p.Nombres, &p.Apellidos, &email, &p.Phone, &sexo, &referrer,
		&p.ReferralCode, &p.LinkEnabled, &p.IsSuspended, &networkName, &p.CreatedAt, &activatedAt, &p.UpdatedAt,
		&departmentID, &municipioID, &departmentName, &municipioName,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	p.Sexo = models.Sexo(sexo)
	// CHAR(8) comes back space padded from some drivers
	p.ReferralCode = strings.TrimSpace(p.ReferralCode)
	if email.Valid {
		p.Email = &email.String
	}
	if networkName.Valid {
		p.NetworkName = &networkName.String
	}
	if referrer.Valid {
		id := referrer.Int64
		p.ReferrerID = &id
	}
	if activatedAt.Valid {
		t := activatedAt.Time
		p.ActivatedAt = &t
	}
	p.DepartmentID = nullInt64(departmentID)
	p.MunicipioID = nullInt64(municipioID)
	p.DepartmentName = nullString(departmentName)
	p.MunicipioName = nullString(municipioName)
	return &p, nil
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	str := v.String
	return &str
}

func (r *PersonRepository) queryPersons(ctx context.Context, query string, args ...interface{}) ([]models.Person, error) {
	rows, err := r.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sympathizer: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over sympathizers: %w", err)
	}
	return out, nil
}

func (r *PersonRepository) findOne(ctx context.Context, where string, arg interface{}) (*models.Person, error) {
	query := `SELECT ` + personColumns + personFrom + ` WHERE ` + where
	p, err := scanPerson(r.db.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sympathizer: %w", err)
	}
	return p, nil
}

// FindByID retrieves a sympathizer by id
func (r *PersonRepository) FindByID(ctx context.Context, id int64) (*models.Person, error) {
	return r.findOne(ctx, "s.id = $1", id)
}

// FindByCedula retrieves a sympathizer by national id number
func (r *PersonRepository) FindByCedula(ctx context.Context, cedula string) (*models.Person, error) {
	return r.findOne(ctx, "s.cedula = $1", cedula)
}

// FindByReferralCode retrieves the owner of a referral code
func (r *PersonRepository) FindByReferralCode(ctx context.Context, code string) (*models.Person, error) {
	return r.findOne(ctx, "s.referral_code = $1", code)
}

// FindByIDs returns the sympathizers with the given ids in a single query
func (r *PersonRepository) FindByIDs(ctx context.Context, ids []int64) ([]models.Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + personColumns + personFrom + ` WHERE s.id = ANY($1::bigint[]) ORDER BY s.id`
	out, err := r.queryPersons(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query sympathizers by id: %w", err)
	}
	return out, nil
}

// FindChildrenByParentIDs returns every direct referral of the given parents in a single query
func (r *PersonRepository) FindChildrenByParentIDs(ctx context.Context, parentIDs []int64) ([]models.Person, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + personColumns + personFrom + ` WHERE s.referrer_id = ANY($1::bigint[]) ORDER BY s.id`
	out, err := r.queryPersons(ctx, query, pq.Array(parentIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query referrals: %w", err)
	}
	return out, nil
}

// ReferralCodeExists reports whether a referral code is taken
func (r *PersonRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM sympathizers WHERE referral_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check referral code: %w", err)
	}
	return exists, nil
}

// Create inserts a sympathizer and fills in the generated id and timestamps
func (r *PersonRepository) Create(ctx context.Context, p *models.Person) error {
	query := `
		INSERT INTO sympathizers (cedula, nombres, apellidos, email, phone, sexo, referrer_id,
			referral_code, link_enabled, is_suspended, network_name, activated_at, department_id, municipio_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	err := r.db.DB.QueryRowContext(ctx, query,
		p.Cedula, p.Nombres, p.Apellidos, p.Email, p.Phone, string(p.Sexo), p.ReferrerID,
		p.ReferralCode, p.LinkEnabled, p.IsSuspended, p.NetworkName, p.ActivatedAt, p.DepartmentID, p.MunicipioID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sympathizer %s: %w", p.Cedula, ErrDuplicate)
		}
		return fmt.Errorf("failed to create sympathizer: %w", err)
	}

	r.db.logger.Debug("sympathizer created", zap.Int64("id", p.ID), zap.Bool("root", p.ReferrerID == nil))
	return nil
}

// Update applies the non-nil fields of upd and returns the updated row
func (r *PersonRepository) Update(ctx context.Context, id int64, upd models.PersonUpdate) (*models.Person, error) {
	var sets []string
	var args []interface{}
	argIndex := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if upd.Nombres != nil {
		add("nombres", *upd.Nombres)
	}
	if upd.Apellidos != nil {
		add("apellidos", *upd.Apellidos)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.Email != nil {
		// empty string clears the address
		if strings.TrimSpace(*upd.Email) == "" {
			add("email", nil)
		} else {
			add("email", *upd.Email)
		}
	}
	if upd.Sexo != nil {
		add("sexo", string(*upd.Sexo))
	}
	if upd.LinkEnabled != nil {
		add("link_enabled", *upd.LinkEnabled)
	}
	if upd.IsSuspended != nil {
		add("is_suspended", *upd.IsSuspended)
	}
	if upd.NetworkName != nil {
		if strings.TrimSpace(*upd.NetworkName) == "" {
			add("network_name", nil)
		} else {
			add("network_name", *upd.NetworkName)
		}
	}
	if upd.DepartmentID != nil {
		add("department_id", *upd.DepartmentID)
	}
	if upd.MunicipioID != nil {
		add("municipio_id", *upd.MunicipioID)
	}

	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}

	// the CTE lets the returned row carry the joined location names
	query := fmt.Sprintf(`WITH s AS (UPDATE sympathizers SET %s, updated_at = now() WHERE id = $%d RETURNING *)
		SELECT %s FROM s%s`, strings.Join(sets, ", "), argIndex, personColumns, locationJoins)
	args = append(args, id)

	p, err := scanPerson(r.db.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update sympathizer: %w", err)
	}
	return p, nil
}

// Delete removes a sympathizer; its referrals become roots (ON DELETE SET NULL)
func (r *PersonRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.DB.ExecContext(ctx, `DELETE FROM sympathizers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sympathizer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete sympathizer: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PersonRepository) toggle(ctx context.Context, id int64, column string) (*models.Person, error) {
	query := fmt.Sprintf(`WITH s AS (UPDATE sympathizers SET %[1]s = NOT %[1]s, updated_at = now() WHERE id = $1 RETURNING *)
		SELECT %[2]s FROM s%[3]s`, column, personColumns, locationJoins)
	p, err := scanPerson(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to toggle %s: %w", column, err)
	}
	return p, nil
}

// ToggleLinkEnabled flips whether the referral link accepts signups
func (r *PersonRepository) ToggleLinkEnabled(ctx context.Context, id int64) (*models.Person, error) {
	return r.toggle(ctx, id, "link_enabled")
}

// ToggleSuspended flips the suspension flag
func (r *PersonRepository) ToggleSuspended(ctx context.Context, id int64) (*models.Person, error) {
	return r.toggle(ctx, id, "is_suspended")
}

// ListRoots returns every network founder with its direct referral count.
// TotalNetworkSize is left at zero; it needs a traversal.
func (r *PersonRepository) ListRoots(ctx context.Context) ([]models.NetworkRoot, error) {
	query := `
		SELECT ` + personColumns + `,
		       (SELECT COUNT(*) FROM sympathizers c WHERE c.referrer_id = s.id) AS direct_referrals` +
		personFrom + `
		WHERE s.referrer_id IS NULL
		ORDER BY s.created_at DESC, s.id DESC`

	rows, err := r.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query networks: %w", err)
	}
	defer rows.Close()

	roots := []models.NetworkRoot{}
	for rows.Next() {
		var direct int
		p, err := scanPerson(rows, &direct)
		if err != nil {
			return nil, fmt.Errorf("failed to scan network: %w", err)
		}
		roots = append(roots, networkRoot(p, direct))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over networks: %w", err)
	}
	return roots, nil
}

func networkRoot(p *models.Person, direct int) models.NetworkRoot {
	return models.NetworkRoot{
		ID:              p.ID,
		Name:            p.FullName(),
		Cedula:          p.Cedula,
		Phone:           p.Phone,
		Email:           p.Email,
		ReferralCode:    p.ReferralCode,
		NetworkName:     p.NetworkDisplayName(),
		CreatedAt:       p.CreatedAt,
		LinkEnabled:     p.LinkEnabled,
		IsSuspended:     p.IsSuspended,
		DirectReferrals: direct,
	}
}

// buildListWhere builds the shared WHERE clause of List and its count
func buildListWhere(params models.PersonListParams) (string, []interface{}, int) {
	var whereConditions []string
	var args []interface{}
	argIndex := 1

	if params.Search != "" {
		whereConditions = append(whereConditions, fmt.Sprintf(`
			(LOWER(s.nombres) LIKE LOWER($%d) OR
			 LOWER(s.apellidos) LIKE LOWER($%d) OR
			 s.cedula LIKE $%d OR
			 LOWER(COALESCE(s.email, '')) LIKE LOWER($%d))`, argIndex, argIndex, argIndex, argIndex))
		args = append(args, "%"+params.Search+"%")
		argIndex++
	}

	if params.Status != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("s.is_suspended = $%d", argIndex))
		args = append(args, *params.Status == models.StatusSuspended)
		argIndex++
	}

	if params.RestrictIDs != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("s.id = ANY($%d::bigint[])", argIndex))
		args = append(args, pq.Array(params.RestrictIDs))
		argIndex++
	}

	whereSQL := ""
	if len(whereConditions) > 0 {
		whereSQL = " WHERE " + strings.Join(whereConditions, " AND ")
	}
	return whereSQL, args, argIndex
}

// List retrieves sympathizers with search, status filter and pagination
func (r *PersonRepository) List(ctx context.Context, params models.PersonListParams) (*models.PersonListResponse, error) {
	params = normalizeListParams(params)
	if params.RestrictIDs != nil && len(params.RestrictIDs) == 0 {
		return emptyList(params), nil
	}

	whereSQL, args, argIndex := buildListWhere(params)
	query := `
		SELECT ` + personColumns + `,
		       TRIM(COALESCE(ref.nombres, '') || ' ' || COALESCE(ref.apellidos, '')) AS referrer_name,
		       (SELECT COUNT(*) FROM sympathizers c WHERE c.referrer_id = s.id) AS referrals_count` +
		personFrom + `
		LEFT JOIN sympathizers ref ON ref.id = s.referrer_id` + whereSQL +
		fmt.Sprintf(" ORDER BY s.created_at DESC, s.id DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	argsWithPage := append(args, params.PageSize, (params.Page-1)*params.PageSize)

	r.db.logger.Debug("listing sympathizers", zap.String("search", params.Search), zap.Int("page", params.Page))

	rows, err := r.db.DB.QueryContext(ctx, query, argsWithPage...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sympathizers: %w", err)
	}
	defer rows.Close()

	results := []models.PersonDetail{}
	for rows.Next() {
		var referrerName sql.NullString
		var count int
		p, err := scanPerson(rows, &referrerName, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sympathizer: %w", err)
		}
		d := models.PersonDetail{
			Person:         *p,
			ReferralsCount: count,
			IsRoot:         p.IsRoot(),
			NetworkDisplay: p.NetworkDisplayName(),
		}
		if p.ReferrerID != nil && referrerName.Valid {
			name := referrerName.String
			d.ReferrerName = &name
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over sympathizers: %w", err)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM sympathizers s` + whereSQL
	if err := r.db.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count sympathizers: %w", err)
	}

	return &models.PersonListResponse{
		Results:  results,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
		Pages:    pages(total, params.PageSize),
	}, nil
}

// Count returns the total number of sympathizers
func (r *PersonRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM sympathizers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sympathizers: %w", err)
	}
	return n, nil
}

// Page size bounds for List
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func normalizeListParams(params models.PersonListParams) models.PersonListParams {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = DefaultPageSize
	}
	if params.PageSize > MaxPageSize {
		params.PageSize = MaxPageSize
	}
	params.Search = strings.TrimSpace(params.Search)
	return params
}

func emptyList(params models.PersonListParams) *models.PersonListResponse {
	return &models.PersonListResponse{
		Results:  []models.PersonDetail{},
		Page:     params.Page,
		PageSize: params.PageSize,
	}
}

func pages(total, pageSize int) int {
	if total == 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

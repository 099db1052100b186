package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jcastroba/red-simpatizantes/internal/models"
)

// MemoryRepository is an in-process store with the same behaviour as the
// SQL repositories. Used for DATABASE_DRIVER=memory and in service tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	people map[int64]models.Person
	labels map[int64]map[int]models.LevelLabel
	nextID int64
	nextLb int64
	now    func() time.Time

	departments    map[int64]models.Department
	municipalities map[int64]models.Municipality
	nextLoc        int64
}

// NewMemoryRepository creates an empty store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		people: make(map[int64]models.Person),
		labels: make(map[int64]map[int]models.LevelLabel),
		now:    time.Now,

		departments:    make(map[int64]models.Department),
		municipalities: make(map[int64]models.Municipality),
	}
}

// Seed inserts persons as-is, keeping their ids and timestamps
func (m *MemoryRepository) Seed(people ...models.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range people {
		m.people[p.ID] = clonePerson(p)
		if p.ID > m.nextID {
			m.nextID = p.ID
		}
	}
}

func clonePerson(p models.Person) models.Person {
	if p.Email != nil {
		v := *p.Email
		p.Email = &v
	}
	if p.ReferrerID != nil {
		v := *p.ReferrerID
		p.ReferrerID = &v
	}
	if p.NetworkName != nil {
		v := *p.NetworkName
		p.NetworkName = &v
	}
	if p.ActivatedAt != nil {
		v := *p.ActivatedAt
		p.ActivatedAt = &v
	}
	if p.DepartmentID != nil {
		v := *p.DepartmentID
		p.DepartmentID = &v
	}
	if p.MunicipioID != nil {
		v := *p.MunicipioID
		p.MunicipioID = &v
	}
	p.DepartmentName = nil
	p.MunicipioName = nil
	return p
}

// view copies p and fills the joined location names; callers hold mu
func (m *MemoryRepository) view(p models.Person) models.Person {
	c := clonePerson(p)
	if c.DepartmentID != nil {
		if d, ok := m.departments[*c.DepartmentID]; ok {
			name := d.Name
			c.DepartmentName = &name
		}
	}
	if c.MunicipioID != nil {
		if mun, ok := m.municipalities[*c.MunicipioID]; ok {
			name := mun.Name
			c.MunicipioName = &name
		}
	}
	return c
}

func (m *MemoryRepository) get(id int64) (*models.Person, error) {
	p, ok := m.people[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := m.view(p)
	return &c, nil
}

func (m *MemoryRepository) findBy(match func(models.Person) bool) (*models.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.people {
		if match(p) {
			c := m.view(p)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// FindByID retrieves a sympathizer by id
func (m *MemoryRepository) FindByID(_ context.Context, id int64) (*models.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.get(id)
}

// FindByCedula retrieves a sympathizer by national id number
func (m *MemoryRepository) FindByCedula(_ context.Context, cedula string) (*models.Person, error) {
	return m.findBy(func(p models.Person) bool { return p.Cedula == cedula })
}

// FindByReferralCode retrieves the owner of a referral code
func (m *MemoryRepository) FindByReferralCode(_ context.Context, code string) (*models.Person, error) {
	return m.findBy(func(p models.Person) bool { return p.ReferralCode == code })
}

// FindByIDs returns the persons with the given ids ordered by id
func (m *MemoryRepository) FindByIDs(ctx context.Context, ids []int64) ([]models.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Person
	for _, id := range ids {
		if p, ok := m.people[id]; ok {
			out = append(out, m.view(p))
		}
	}
	sortByID(out)
	return out, nil
}

// FindChildrenByParentIDs returns the direct referrals of the given parents ordered by id
func (m *MemoryRepository) FindChildrenByParentIDs(ctx context.Context, parentIDs []int64) ([]models.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[int64]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		want[id] = struct{}{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Person
	for _, p := range m.people {
		if p.ReferrerID == nil {
			continue
		}
		if _, ok := want[*p.ReferrerID]; ok {
			out = append(out, m.view(p))
		}
	}
	sortByID(out)
	return out, nil
}

func sortByID(people []models.Person) {
	sort.Slice(people, func(i, j int) bool { return people[i].ID < people[j].ID })
}

// ReferralCodeExists reports whether a referral code is taken
func (m *MemoryRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := m.FindByReferralCode(ctx, code)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

// Create inserts a person; cedula and referral code must be unique
func (m *MemoryRepository) Create(_ context.Context, p *models.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.people {
		if other.Cedula == p.Cedula || other.ReferralCode == p.ReferralCode {
			return fmt.Errorf("sympathizer %s: %w", p.Cedula, ErrDuplicate)
		}
	}
	if p.ReferrerID != nil {
		if _, ok := m.people[*p.ReferrerID]; !ok {
			return fmt.Errorf("referrer %d: %w", *p.ReferrerID, ErrNotFound)
		}
	}
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt
	m.people[p.ID] = clonePerson(*p)
	return nil
}

// Update applies the non-nil fields of upd
func (m *MemoryRepository) Update(_ context.Context, id int64, upd models.PersonUpdate) (*models.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.people[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Nombres != nil {
		p.Nombres = *upd.Nombres
	}
	if upd.Apellidos != nil {
		p.Apellidos = *upd.Apellidos
	}
	if upd.Phone != nil {
		p.Phone = *upd.Phone
	}
	if upd.Email != nil {
		p.Email = blankToNil(*upd.Email)
	}
	if upd.Sexo != nil {
		p.Sexo = *upd.Sexo
	}
	if upd.LinkEnabled != nil {
		p.LinkEnabled = *upd.LinkEnabled
	}
	if upd.IsSuspended != nil {
		p.IsSuspended = *upd.IsSuspended
	}
	if upd.NetworkName != nil {
		p.NetworkName = blankToNil(*upd.NetworkName)
	}
	if upd.DepartmentID != nil {
		v := *upd.DepartmentID
		p.DepartmentID = &v
	}
	if upd.MunicipioID != nil {
		v := *upd.MunicipioID
		p.MunicipioID = &v
	}
	p.UpdatedAt = m.now()
	m.people[id] = p
	return m.get(id)
}

func blankToNil(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Delete removes a person, detaching its referrals and dropping its labels
func (m *MemoryRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.people[id]; !ok {
		return ErrNotFound
	}
	delete(m.people, id)
	delete(m.labels, id)
	for cid, p := range m.people {
		if p.ReferrerID != nil && *p.ReferrerID == id {
			p.ReferrerID = nil
			m.people[cid] = p
		}
	}
	return nil
}

// ToggleLinkEnabled flips whether the referral link accepts signups
func (m *MemoryRepository) ToggleLinkEnabled(_ context.Context, id int64) (*models.Person, error) {
	return m.toggle(id, func(p *models.Person) { p.LinkEnabled = !p.LinkEnabled })
}

// ToggleSuspended flips the suspension flag
func (m *MemoryRepository) ToggleSuspended(_ context.Context, id int64) (*models.Person, error) {
	return m.toggle(id, func(p *models.Person) { p.IsSuspended = !p.IsSuspended })
}

func (m *MemoryRepository) toggle(id int64, flip func(*models.Person)) (*models.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.people[id]
	if !ok {
		return nil, ErrNotFound
	}
	flip(&p)
	p.UpdatedAt = m.now()
	m.people[id] = p
	return m.get(id)
}

func (m *MemoryRepository) directCounts() map[int64]int {
	counts := make(map[int64]int)
	for _, p := range m.people {
		if p.ReferrerID != nil {
			counts[*p.ReferrerID]++
		}
	}
	return counts
}

// newestFirst orders by created_at DESC, id DESC
func newestFirst(people []models.Person) {
	sort.Slice(people, func(i, j int) bool {
		if !people[i].CreatedAt.Equal(people[j].CreatedAt) {
			return people[i].CreatedAt.After(people[j].CreatedAt)
		}
		return people[i].ID > people[j].ID
	})
}

// ListRoots returns every network founder with its direct referral count
func (m *MemoryRepository) ListRoots(_ context.Context) ([]models.NetworkRoot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var founders []models.Person
	for _, p := range m.people {
		if p.ReferrerID == nil {
			founders = append(founders, p)
		}
	}
	newestFirst(founders)
	counts := m.directCounts()
	roots := make([]models.NetworkRoot, 0, len(founders))
	for i := range founders {
		f := m.view(founders[i])
		roots = append(roots, networkRoot(&f, counts[f.ID]))
	}
	return roots, nil
}

// List retrieves persons with search, status filter and pagination
func (m *MemoryRepository) List(_ context.Context, params models.PersonListParams) (*models.PersonListResponse, error) {
	params = normalizeListParams(params)
	if params.RestrictIDs != nil && len(params.RestrictIDs) == 0 {
		return emptyList(params), nil
	}

	var allowed map[int64]struct{}
	if params.RestrictIDs != nil {
		allowed = make(map[int64]struct{}, len(params.RestrictIDs))
		for _, id := range params.RestrictIDs {
			allowed[id] = struct{}{}
		}
	}
	search := strings.ToLower(params.Search)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []models.Person
	for _, p := range m.people {
		if allowed != nil {
			if _, ok := allowed[p.ID]; !ok {
				continue
			}
		}
		if params.Status != nil && p.IsSuspended != (*params.Status == models.StatusSuspended) {
			continue
		}
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		matched = append(matched, p)
	}
	newestFirst(matched)

	counts := m.directCounts()
	total := len(matched)
	start := (params.Page - 1) * params.PageSize
	if start > total {
		start = total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}

	results := make([]models.PersonDetail, 0, end-start)
	for _, p := range matched[start:end] {
		p = m.view(p)
		d := models.PersonDetail{
			Person:         p,
			ReferralsCount: counts[p.ID],
			IsRoot:         p.IsRoot(),
			NetworkDisplay: p.NetworkDisplayName(),
		}
		if p.ReferrerID != nil {
			if ref, ok := m.people[*p.ReferrerID]; ok {
				name := ref.FullName()
				d.ReferrerName = &name
			}
		}
		results = append(results, d)
	}

	return &models.PersonListResponse{
		Results:  results,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
		Pages:    pages(total, params.PageSize),
	}, nil
}

func matchesSearch(p models.Person, search string) bool {
	if strings.Contains(strings.ToLower(p.Nombres), search) ||
		strings.Contains(strings.ToLower(p.Apellidos), search) ||
		strings.Contains(p.Cedula, search) {
		return true
	}
	return p.Email != nil && strings.Contains(strings.ToLower(*p.Email), search)
}

// Count returns the number of stored persons
func (m *MemoryRepository) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.people), nil
}

// ListLevelLabels returns the owner's labels ordered by level
func (m *MemoryRepository) ListLevelLabels(_ context.Context, ownerID int64) ([]models.LevelLabel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	labels := []models.LevelLabel{}
	for _, l := range m.labels[ownerID] {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Level < labels[j].Level })
	return labels, nil
}

// UpsertLevelLabel sets the name of one level for the owner
func (m *MemoryRepository) UpsertLevelLabel(_ context.Context, ownerID int64, level int, name string) (*models.LevelLabel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.people[ownerID]; !ok {
		return nil, fmt.Errorf("owner %d: %w", ownerID, ErrNotFound)
	}
	byLevel, ok := m.labels[ownerID]
	if !ok {
		byLevel = make(map[int]models.LevelLabel)
		m.labels[ownerID] = byLevel
	}
	l, ok := byLevel[level]
	if !ok {
		m.nextLb++
		l = models.LevelLabel{ID: m.nextLb, OwnerID: ownerID, Level: level}
	}
	l.Name = name
	l.UpdatedAt = m.now()
	byLevel[level] = l
	return &l, nil
}

// DeleteLevelLabel removes an override; ErrNotFound when none existed
func (m *MemoryRepository) DeleteLevelLabel(_ context.Context, ownerID int64, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.labels[ownerID][level]; !ok {
		return ErrNotFound
	}
	delete(m.labels[ownerID], level)
	return nil
}

// Health always succeeds
func (m *MemoryRepository) Health(context.Context) error {
	return nil
}

// SeedLocations inserts departments and municipalities as-is, keeping their ids
func (m *MemoryRepository) SeedLocations(departments []models.Department, municipalities []models.Municipality) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range departments {
		m.departments[d.ID] = d
		if d.ID > m.nextLoc {
			m.nextLoc = d.ID
		}
	}
	for _, mun := range municipalities {
		m.municipalities[mun.ID] = mun
		if mun.ID > m.nextLoc {
			m.nextLoc = mun.ID
		}
	}
}

// ListDepartments returns every department ordered by name
func (m *MemoryRepository) ListDepartments(_ context.Context) ([]models.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Department, 0, len(m.departments))
	for _, d := range m.departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FindDepartment retrieves a department by id
func (m *MemoryRepository) FindDepartment(_ context.Context, id int64) (*models.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.departments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

// ListMunicipalities returns the municipalities of a department ordered by name
func (m *MemoryRepository) ListMunicipalities(_ context.Context, departmentID int64) ([]models.Municipality, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Municipality{}
	for _, mun := range m.municipalities {
		if mun.DepartmentID == departmentID {
			out = append(out, mun)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FindMunicipality retrieves a municipality by id
func (m *MemoryRepository) FindMunicipality(_ context.Context, id int64) (*models.Municipality, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mun, ok := m.municipalities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &mun, nil
}

// EnsureDepartment returns the department with that name, creating it if needed
func (m *MemoryRepository) EnsureDepartment(_ context.Context, name string) (*models.Department, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.departments {
		if d.Name == name {
			return &d, false, nil
		}
	}
	m.nextLoc++
	d := models.Department{ID: m.nextLoc, Name: name}
	m.departments[d.ID] = d
	return &d, true, nil
}

// EnsureMunicipality returns the named municipality of a department, creating it if needed
func (m *MemoryRepository) EnsureMunicipality(_ context.Context, departmentID int64, name string) (*models.Municipality, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.departments[departmentID]; !ok {
		return nil, false, fmt.Errorf("department %d: %w", departmentID, ErrNotFound)
	}
	for _, mun := range m.municipalities {
		if mun.DepartmentID == departmentID && mun.Name == name {
			return &mun, false, nil
		}
	}
	m.nextLoc++
	mun := models.Municipality{ID: m.nextLoc, Name: name, DepartmentID: departmentID}
	m.municipalities[mun.ID] = mun
	return &mun, true, nil
}

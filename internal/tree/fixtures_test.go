package tree

import (
	"context"
	"fmt"
	"time"

	"github.com/jcastroba/red-simpatizantes/internal/models"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeSource is an in-memory ChildSource that counts round-trips.
type fakeSource struct {
	people     []models.Person
	duplicate  bool
	childCalls int
	failAfter  int
}

func (f *fakeSource) FindByIDs(_ context.Context, ids []int64) ([]models.Person, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Person
	for _, p := range f.people {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSource) FindChildrenByParentIDs(_ context.Context, ids []int64) ([]models.Person, error) {
	f.childCalls++
	if f.failAfter > 0 && f.childCalls > f.failAfter {
		return nil, fmt.Errorf("connection reset")
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Person
	for _, p := range f.people {
		if p.ReferrerID != nil && want[*p.ReferrerID] {
			out = append(out, p)
			if f.duplicate {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func person(id int64, referrer int64, createdOffset time.Duration) models.Person {
	p := models.Person{
		ID:           id,
		Cedula:       fmt.Sprintf("10%08d", id),
		Nombres:      fmt.Sprintf("Nombre%d", id),
		Apellidos:    fmt.Sprintf("Apellido%d", id),
		Phone:        "3000000000",
		Sexo:         models.SexoOtro,
		ReferralCode: fmt.Sprintf("CODE%04d", id),
		LinkEnabled:  true,
		CreatedAt:    baseTime.Add(createdOffset),
	}
	if referrer != 0 {
		r := referrer
		p.ReferrerID = &r
	}
	return p
}

// scenario: R(1) -> [C1(2), C2(3)], C2 -> [G(4)]; C1 created before C2.
func scenarioSource() *fakeSource {
	return &fakeSource{people: []models.Person{
		person(1, 0, 0),
		person(2, 1, time.Minute),
		person(3, 1, 2*time.Minute),
		person(4, 3, 3*time.Minute),
	}}
}

// chain builds 1 -> 2 -> ... -> n.
func chainChildren(n int) map[int64][]int64 {
	children := make(map[int64][]int64, n)
	for i := 1; i < n; i++ {
		children[int64(i)] = []int64{int64(i + 1)}
	}
	children[int64(n)] = []int64{}
	return children
}

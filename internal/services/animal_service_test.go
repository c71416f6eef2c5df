package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-animals/internal/domain"
)

// ----- Fake repo -----

type fakeAnimalRepo struct {
	createName string
	createType string
	createErr  error

	listType string

	countType  string
	countTotal int64
	countErr   error

	pageType   string
	pageOffset int
	pageLimit  int
	pageItems  []domain.Animal
	pageErr    error

	getID  uint
	getOut *domain.Animal
	getErr error

	updateID     uint
	updateFields map[string]any
	updateErr    error

	deleteID  uint
	deleteErr error

	statsType  string
	statsCount int64
	statsAt    *time.Time

	calls int
}

func (r *fakeAnimalRepo) CreateAnimal(ctx context.Context, db *gorm.DB, name, typ string) (*domain.Animal, error) {
	r.calls++
	r.createName, r.createType = name, typ
	if r.createErr != nil {
		return nil, r.createErr
	}
	return &domain.Animal{ID: 1, Name: name, Type: typ}, nil
}

func (r *fakeAnimalRepo) ListAnimals(ctx context.Context, db *gorm.DB, typ string) ([]domain.Animal, error) {
	r.calls++
	r.listType = typ
	return []domain.Animal{{ID: 1, Name: "Rex", Type: "dog"}, {ID: 2, Name: "Tom", Type: "cat"}}, nil
}

func (r *fakeAnimalRepo) CountAnimals(ctx context.Context, db *gorm.DB, typ string) (int64, error) {
	r.calls++
	r.countType = typ
	return r.countTotal, r.countErr
}

func (r *fakeAnimalRepo) ListAnimalsPage(ctx context.Context, db *gorm.DB, typ string, offset, limit int) ([]domain.Animal, error) {
	r.calls++
	r.pageType, r.pageOffset, r.pageLimit = typ, offset, limit
	return r.pageItems, r.pageErr
}

func (r *fakeAnimalRepo) GetAnimal(ctx context.Context, db *gorm.DB, id uint) (*domain.Animal, error) {
	r.calls++
	r.getID = id
	return r.getOut, r.getErr
}

func (r *fakeAnimalRepo) UpdateAnimal(ctx context.Context, db *gorm.DB, id uint, fields map[string]any) (*domain.Animal, error) {
	r.calls++
	r.updateID, r.updateFields = id, fields
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	a := &domain.Animal{ID: id}
	if v, ok := fields["name"].(string); ok {
		a.Name = v
	}
	if v, ok := fields["type"].(string); ok {
		a.Type = v
	}
	return a, nil
}

func (r *fakeAnimalRepo) DeleteAnimal(ctx context.Context, db *gorm.DB, id uint) error {
	r.calls++
	r.deleteID = id
	return r.deleteErr
}

func (r *fakeAnimalRepo) AnimalsStats(ctx context.Context, db *gorm.DB, typ string) (int64, *time.Time, error) {
	r.calls++
	r.statsType = typ
	return r.statsCount, r.statsAt, nil
}

func strp(s string) *string { return &s }

// ----- Tests -----

func TestNewAnimalService_Defaults(t *testing.T) {
	r := &fakeAnimalRepo{}
	s := NewAnimalService(nil, r)

	if s.DB != nil {
		t.Fatalf("expected nil DB, got %v", s.DB)
	}
	if s.Repo != r {
		t.Fatalf("repo not set")
	}
	if s.MaxFieldRunes != 100 {
		t.Fatalf("MaxFieldRunes default = 100, got %d", s.MaxFieldRunes)
	}
	if s.TypeLocale != language.Und {
		t.Fatalf("TypeLocale default = Und, got %v", s.TypeLocale)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"   Rex   ":       "Rex",
		"Big   Bird":      "Big Bird",
		"tabs\tand\nnl  ": "tabs and nl",
		"\t  \n":          "",
	}
	for in, want := range cases {
		if got := normalizeName(in); got != want {
			t.Errorf("normalizeName(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestCreate_NormalizesAndLowercasesType(t *testing.T) {
	r := &fakeAnimalRepo{}
	s := NewAnimalService(nil, r)

	a, err := s.Create(context.Background(), "  Rex  ", " DOG ")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if r.createName != "Rex" || r.createType != "dog" {
		t.Fatalf("repo got (%q, %q); want (Rex, dog)", r.createName, r.createType)
	}
	if a.ID != 1 {
		t.Fatalf("unexpected animal: %+v", a)
	}
}

func TestCreate_Validation(t *testing.T) {
	long := strings.Repeat("ж", 101)
	cases := []struct {
		name, typ string
		want      error
	}{
		{"", "dog", ErrNameRequired},
		{"   ", "dog", ErrNameRequired},
		{"Rex", "", ErrTypeRequired},
		{"Rex", " \t", ErrTypeRequired},
		{long, "dog", ErrFieldTooLong},
		{"Rex", long, ErrFieldTooLong},
	}
	for _, tc := range cases {
		r := &fakeAnimalRepo{}
		s := NewAnimalService(nil, r)
		_, err := s.Create(context.Background(), tc.name, tc.typ)
		if !errors.Is(err, tc.want) {
			t.Errorf("Create(%q, %q) err = %v; want %v", tc.name, tc.typ, err, tc.want)
		}
		if r.calls != 0 {
			t.Errorf("repo must not be called on validation failure")
		}
	}
}

func TestCreate_ExactlyMaxRunesAllowed(t *testing.T) {
	r := &fakeAnimalRepo{}
	s := NewAnimalService(nil, r)
	name := strings.Repeat("ж", 100)
	if _, err := s.Create(context.Background(), name, "dog"); err != nil {
		t.Fatalf("expected 100 runes to be accepted, got %v", err)
	}
}

func TestList_FoldsTypeFilter(t *testing.T) {
	r := &fakeAnimalRepo{}
	s := NewAnimalService(nil, r)

	out, err := s.List(context.Background(), " Cat ")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if r.listType != "cat" {
		t.Fatalf("repo got type %q; want cat", r.listType)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
}

func TestListPage_DefaultsAndTotalZero(t *testing.T) {
	r := &fakeAnimalRepo{countTotal: 0}
	s := NewAnimalService(nil, r)

	items, total, err := s.ListPage(context.Background(), "", 0, 0)
	if err != nil {
		t.Fatalf("ListPage error: %v", err)
	}
	if total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil results; got total=%d items=%#v", total, items)
	}
	if r.pageLimit != 0 {
		t.Fatalf("ListAnimalsPage should not be called when total=0")
	}
}

func TestListPage_OffsetAndLimit(t *testing.T) {
	r := &fakeAnimalRepo{countTotal: 7, pageItems: []domain.Animal{{ID: 4}}}
	s := NewAnimalService(nil, r)

	items, total, err := s.ListPage(context.Background(), "Dog", 2, 3)
	if err != nil {
		t.Fatalf("ListPage error: %v", err)
	}
	if total != 7 || len(items) != 1 {
		t.Fatalf("unexpected result total=%d len=%d", total, len(items))
	}
	if r.pageOffset != 3 || r.pageLimit != 3 || r.pageType != "dog" || r.countType != "dog" {
		t.Fatalf("unexpected repo args offset=%d limit=%d type=%q/%q", r.pageOffset, r.pageLimit, r.pageType, r.countType)
	}
}

func TestListPage_CountError(t *testing.T) {
	boom := errors.New("boom")
	r := &fakeAnimalRepo{countErr: boom}
	s := NewAnimalService(nil, r)

	if _, _, err := s.ListPage(context.Background(), "", 1, 10); !errors.Is(err, boom) {
		t.Fatalf("expected count error, got %v", err)
	}
}

func TestGet_MapsNotFound(t *testing.T) {
	r := &fakeAnimalRepo{getErr: gorm.ErrRecordNotFound}
	s := NewAnimalService(nil, r)

	_, err := s.Get(context.Background(), 9)
	if !errors.Is(err, ErrAnimalNotFound) {
		t.Fatalf("expected ErrAnimalNotFound, got %v", err)
	}
	if r.getID != 9 {
		t.Fatalf("repo got id %d", r.getID)
	}
}

func TestGet_PassesThroughOtherErrors(t *testing.T) {
	boom := errors.New("db down")
	r := &fakeAnimalRepo{getErr: boom}
	s := NewAnimalService(nil, r)

	if _, err := s.Get(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("expected raw error, got %v", err)
	}
}

func TestReplace_ValidatesAndUpdatesBothFields(t *testing.T) {
	r := &fakeAnimalRepo{}
	s := NewAnimalService(nil, r)

	a, err := s.Replace(context.Background(), 3, "Max", "Dog")
	if err != nil {
		t.Fatalf("Replace error: %v", err)
	}
	if r.updateID != 3 || r.updateFields["name"] != "Max" || r.updateFields["type"] != "dog" {
		t.Fatalf("unexpected update args: id=%d fields=%v", r.updateID, r.updateFields)
	}
	if a.Name != "Max" || a.Type != "dog" {
		t.Fatalf("unexpected animal: %+v", a)
	}

	if _, err := s.Replace(context.Background(), 3, "", "dog"); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
}

func TestReplace_NotFound(t *testing.T) {
	r := &fakeAnimalRepo{updateErr: gorm.ErrRecordNotFound}
	s := NewAnimalService(nil, r)

	if _, err := s.Replace(context.Background(), 3, "Max", "dog"); !errors.Is(err, ErrAnimalNotFound) {
		t.Fatalf("expected ErrAnimalNotFound, got %v", err)
	}
}

func TestPatch(t *testing.T) {
	r := &fakeAnimalRepo{}
	s := NewAnimalService(nil, r)

	if _, err := s.Patch(context.Background(), 1, AnimalPatch{}); !errors.Is(err, ErrEmptyPatch) {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
	if _, err := s.Patch(context.Background(), 1, AnimalPatch{Name: strp("  ")}); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if _, err := s.Patch(context.Background(), 1, AnimalPatch{Type: strp("")}); !errors.Is(err, ErrTypeRequired) {
		t.Fatalf("expected ErrTypeRequired, got %v", err)
	}
	if r.calls != 0 {
		t.Fatalf("repo must not be called on invalid patch")
	}

	a, err := s.Patch(context.Background(), 1, AnimalPatch{Type: strp("BIRD")})
	if err != nil {
		t.Fatalf("Patch error: %v", err)
	}
	if _, ok := r.updateFields["name"]; ok {
		t.Fatalf("name must not be updated when not supplied: %v", r.updateFields)
	}
	if a.Type != "bird" {
		t.Fatalf("expected folded type, got %+v", a)
	}
}

func TestDelete(t *testing.T) {
	r := &fakeAnimalRepo{}
	s := NewAnimalService(nil, r)

	if err := s.Delete(context.Background(), 5); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if r.deleteID != 5 {
		t.Fatalf("repo got id %d", r.deleteID)
	}

	r.deleteErr = gorm.ErrRecordNotFound
	if err := s.Delete(context.Background(), 5); !errors.Is(err, ErrAnimalNotFound) {
		t.Fatalf("expected ErrAnimalNotFound, got %v", err)
	}
}

func TestCount_FoldsType(t *testing.T) {
	r := &fakeAnimalRepo{countTotal: 4}
	s := NewAnimalService(nil, r)

	n, err := s.Count(context.Background(), "DOG")
	if err != nil || n != 4 || r.countType != "dog" {
		t.Fatalf("Count = %d, %v (type %q)", n, err, r.countType)
	}
}

func TestStats_FoldsTypeAndForwards(t *testing.T) {
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	r := &fakeAnimalRepo{statsCount: 2, statsAt: &at}
	s := NewAnimalService(nil, r)

	n, maxAt, err := s.Stats(context.Background(), " Dog")
	if err != nil || n != 2 || maxAt == nil || !maxAt.Equal(at) {
		t.Fatalf("Stats = %d, %v, %v", n, maxAt, err)
	}
	if r.statsType != "dog" {
		t.Fatalf("repo got type %q; want dog", r.statsType)
	}
}

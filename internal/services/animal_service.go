// Package services – AnimalService
//
// This file implements the AnimalService, which manages the animals
// collection. It validates and normalizes names and types and coordinates
// repository operations for creating, listing (optionally paginated),
// replacing, patching and deleting animals.
//
// Service-level errors (ErrAnimalNotFound, ErrNameRequired, ...) are returned
// for predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-animals/internal/domain"
)

// AnimalRepo defines the repository contract required by AnimalService.
type AnimalRepo interface {
	CreateAnimal(ctx context.Context, db *gorm.DB, name, typ string) (*domain.Animal, error)
	ListAnimals(ctx context.Context, db *gorm.DB, typ string) ([]domain.Animal, error)
	CountAnimals(ctx context.Context, db *gorm.DB, typ string) (int64, error)
	ListAnimalsPage(ctx context.Context, db *gorm.DB, typ string, offset, limit int) ([]domain.Animal, error)
	GetAnimal(ctx context.Context, db *gorm.DB, id uint) (*domain.Animal, error)
	UpdateAnimal(ctx context.Context, db *gorm.DB, id uint, fields map[string]any) (*domain.Animal, error)
	DeleteAnimal(ctx context.Context, db *gorm.DB, id uint) error
	AnimalsStats(ctx context.Context, db *gorm.DB, typ string) (int64, *time.Time, error)
}

// AnimalService provides the operations behind the /animals routes.
type AnimalService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the animal repository used by this service.
	Repo AnimalRepo

	// MaxFieldRunes caps name and type by rune length (0 disables the check).
	MaxFieldRunes int
	// TypeLocale controls case folding of the type field.
	TypeLocale language.Tag
}

// NewAnimalService constructs an AnimalService with default limits.
func NewAnimalService(db *gorm.DB, r AnimalRepo) *AnimalService {
	return &AnimalService{
		DB:            db,
		Repo:          r,
		MaxFieldRunes: 100,
		TypeLocale:    language.Und,
	}
}

// AnimalPatch carries the fields of a partial update; nil means "keep".
type AnimalPatch struct {
	Name *string
	Type *string
}

// Create validates and stores a new animal.
func (s *AnimalService) Create(ctx context.Context, name, typ string) (*domain.Animal, error) {
	ctx, span := s.start(ctx, "Create", attribute.String("animal.type", typ))
	defer span.End()

	name, typ, err := s.validate(name, typ)
	if err != nil {
		return nil, err
	}
	return s.Repo.CreateAnimal(ctx, s.DB, name, typ)
}

// List returns every animal, optionally filtered by type (non-paginated).
func (s *AnimalService) List(ctx context.Context, typ string) ([]domain.Animal, error) {
	ctx, span := s.start(ctx, "List", attribute.String("animal.type", typ))
	defer span.End()

	return s.Repo.ListAnimals(ctx, s.DB, s.foldType(typ))
}

// Count returns the number of animals, optionally filtered by type.
func (s *AnimalService) Count(ctx context.Context, typ string) (int64, error) {
	return s.Repo.CountAnimals(ctx, s.DB, s.foldType(typ))
}

// ListPage returns a page of animals and the total count.
// It applies defaults for invalid page/pageSize.
func (s *AnimalService) ListPage(ctx context.Context, typ string, page, pageSize int) ([]domain.Animal, int64, error) {
	ctx, span := s.start(ctx, "ListPage",
		attribute.String("animal.type", typ),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	typ = s.foldType(typ)

	total, err := s.Repo.CountAnimals(ctx, s.DB, typ)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Animal{}, 0, nil
	}

	items, err := s.Repo.ListAnimalsPage(ctx, s.DB, typ, offset, pageSize)
	return items, total, err
}

// Stats returns the count and newest UpdatedAt of the animals matching typ.
// Handlers derive list ETags from it.
func (s *AnimalService) Stats(ctx context.Context, typ string) (int64, *time.Time, error) {
	return s.Repo.AnimalsStats(ctx, s.DB, s.foldType(typ))
}

// Get returns a single animal or ErrAnimalNotFound.
func (s *AnimalService) Get(ctx context.Context, id uint) (*domain.Animal, error) {
	ctx, span := s.start(ctx, "Get", attribute.Int64("animal.id", int64(id)))
	defer span.End()

	a, err := s.Repo.GetAnimal(ctx, s.DB, id)
	return a, notFound(err)
}

// Replace overwrites name and type of an existing animal.
func (s *AnimalService) Replace(ctx context.Context, id uint, name, typ string) (*domain.Animal, error) {
	ctx, span := s.start(ctx, "Replace", attribute.Int64("animal.id", int64(id)))
	defer span.End()

	name, typ, err := s.validate(name, typ)
	if err != nil {
		return nil, err
	}
	a, err := s.Repo.UpdateAnimal(ctx, s.DB, id, map[string]any{"name": name, "type": typ})
	return a, notFound(err)
}

// Patch updates only the supplied fields. Supplied fields follow the same
// rules as Create.
func (s *AnimalService) Patch(ctx context.Context, id uint, p AnimalPatch) (*domain.Animal, error) {
	ctx, span := s.start(ctx, "Patch", attribute.Int64("animal.id", int64(id)))
	defer span.End()

	fields := map[string]any{}
	if p.Name != nil {
		name := normalizeName(*p.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		if s.tooLong(name) {
			return nil, ErrFieldTooLong
		}
		fields["name"] = name
	}
	if p.Type != nil {
		typ := s.foldType(*p.Type)
		if typ == "" {
			return nil, ErrTypeRequired
		}
		if s.tooLong(typ) {
			return nil, ErrFieldTooLong
		}
		fields["type"] = typ
	}
	if len(fields) == 0 {
		return nil, ErrEmptyPatch
	}

	a, err := s.Repo.UpdateAnimal(ctx, s.DB, id, fields)
	return a, notFound(err)
}

// Delete soft-deletes an animal.
func (s *AnimalService) Delete(ctx context.Context, id uint) error {
	ctx, span := s.start(ctx, "Delete", attribute.Int64("animal.id", int64(id)))
	defer span.End()

	return notFound(s.Repo.DeleteAnimal(ctx, s.DB, id))
}

func (s *AnimalService) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/AnimalService").Start(ctx, name, trace.WithAttributes(attrs...))
}

// validate normalizes name and type and enforces the required/length rules.
func (s *AnimalService) validate(name, typ string) (string, string, error) {
	name = normalizeName(name)
	typ = s.foldType(typ)
	switch {
	case name == "":
		return "", "", ErrNameRequired
	case typ == "":
		return "", "", ErrTypeRequired
	case s.tooLong(name), s.tooLong(typ):
		return "", "", ErrFieldTooLong
	}
	return name, typ, nil
}

func (s *AnimalService) tooLong(v string) bool {
	return s.MaxFieldRunes > 0 && utf8.RuneCountInString(v) > s.MaxFieldRunes
}

// foldType trims and lower-cases a type so "Dog" and " dog" are one type.
// A Caser is stateful, so one is built per call.
func (s *AnimalService) foldType(typ string) string {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return ""
	}
	return cases.Lower(s.TypeLocale).String(typ)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAnimalNotFound
	}
	return err
}

// normalizeName trims whitespace and collapses multiple spaces to one.
func normalizeName(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// Animal HTTP handlers.
//
// This file exposes REST endpoints for the animals collection:
//   - GET    /animals        (list, optional type filter and pagination, ETag support)
//   - HEAD   /animals        (count only, X-Total-Count)
//   - POST   /animals        (create, Idempotency-Key aware)
//   - GET    /animals/{id}   (fetch one)
//   - PUT    /animals/{id}   (replace)
//   - PATCH  /animals/{id}   (partial update)
//   - DELETE /animals/{id}   (soft delete)
//
// Handlers are transport-thin: they validate input, call the AnimalService,
// and translate results into the {"data": ...} envelope or an error response.
//
// Idempotency:
// When the client supplies an Idempotency-Key header on POST and a stored
// record exists for (user, scope, key), the handler returns the originally
// created animal with `Idempotency-Replayed: true` instead of inserting again.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-animals/internal/domain"
	"github.com/tbourn/go-animals/internal/http/middleware"
	"github.com/tbourn/go-animals/internal/services"
	"github.com/tbourn/go-animals/internal/utils"
)

//
// Service contracts (context-aware)
//

// AnimalService defines the animal operations consumed by HTTP handlers.
// Implementations must be safe for concurrent use and honor ctx.
type AnimalService interface {
	Create(ctx context.Context, name, typ string) (*domain.Animal, error)
	List(ctx context.Context, typ string) ([]domain.Animal, error)
	ListPage(ctx context.Context, typ string, page, pageSize int) ([]domain.Animal, int64, error)
	Count(ctx context.Context, typ string) (int64, error)
	Stats(ctx context.Context, typ string) (int64, *time.Time, error)
	Get(ctx context.Context, id uint) (*domain.Animal, error)
	Replace(ctx context.Context, id uint, name, typ string) (*domain.Animal, error)
	Patch(ctx context.Context, id uint, p services.AnimalPatch) (*domain.Animal, error)
	Delete(ctx context.Context, id uint) error
}

// IdempotencyStore persists and looks up completed POSTs keyed by
// (user, scope, key). Lookups return an error when nothing valid exists.
// Save returns an error wrapping ErrIdempotencyConflict when a record for
// the tuple already exists.
type IdempotencyStore interface {
	Get(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error)
	Save(ctx context.Context, userID, scope, key string, animalID uint, status int) error
}

// ErrIdempotencyConflict reports that another request already stored a
// result under the same idempotency key.
var ErrIdempotencyConflict = errors.New("idempotency record exists")

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for animals.
type Handlers struct {
	svc  AnimalService
	idem IdempotencyStore
}

// New constructs Handlers bound to svc. idem may be nil, which disables
// idempotent replay.
func New(svc AnimalService, idem IdempotencyStore) *Handlers {
	return &Handlers{svc: svc, idem: idem}
}

//
// DTOs
//

// AnimalRequest is the JSON payload for creating or replacing an animal.
type AnimalRequest struct {
	Name string `json:"name" example:"Rex"`
	Type string `json:"type" example:"dog"`
}

// PatchAnimalRequest is the JSON payload for a partial update. Omitted
// fields are left unchanged.
type PatchAnimalRequest struct {
	Name *string `json:"name,omitempty" example:"Max"`
	Type *string `json:"type,omitempty" example:"cat"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100

	headerTotalCount = "X-Total-Count"
)

//
// Helpers
//

// animalID parses the :id path parameter as a positive integer.
func animalID(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || n == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "animal id must be a positive integer")
		return 0, false
	}
	return uint(n), true
}

// failFor maps service errors to HTTP responses. Unknown errors become 500
// with the given fallback code.
func failFor(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrAnimalNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "animal not found")
	case errors.Is(err, services.ErrNameRequired),
		errors.Is(err, services.ErrTypeRequired),
		errors.Is(err, services.ErrFieldTooLong):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrEmptyPatch):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallback, err.Error())
	}
}

// listETag builds a weak ETag from the filter, the page window and the
// collection stats. Any insert, update or delete changes count or timestamp.
func listETag(typ string, page, size int, count int64, maxTS *time.Time) string {
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	return fmt.Sprintf(`W/"animals:%s:%d:%d:%d:%d"`, typ, page, size, count, ts)
}

//
// Handlers
//

// ListAnimals godoc
// @ID          listAnimals
// @Summary     List animals
// @Description Returns all animals ordered by id. Filter with `type`. When `page` or `page_size` is given the result is paginated and X-Total-Count carries the total. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Animals
// @Produce     json
//
// @Param       type           query   string  false "Only animals of this type (case-insensitive)"  example(dog)
// @Param       page           query   int     false "Page number"                  minimum(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.AnimalListResponse
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Header      200  {integer} X-Total-Count "Total matching animals (paginated requests)"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /animals [get]
func (h *Handlers) ListAnimals(c *gin.Context) {
	ctx := c.Request.Context()
	typ := c.Query("type")

	paged := c.Query("page") != "" || c.Query("page_size") != ""
	page, pageSize := 0, 0
	if paged {
		page, pageSize = utils.ClampPage(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)
	}

	// ETag pre-check (best effort).
	if count, maxTS, err := h.svc.Stats(ctx, typ); err == nil {
		etag := listETag(typ, page, pageSize, count, maxTS)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	if !paged {
		items, err := h.svc.List(ctx, typ)
		if err != nil {
			failFor(c, err, ErrCodeListFailed)
			return
		}
		okData(c, http.StatusOK, items)
		return
	}

	items, total, err := h.svc.ListPage(ctx, typ, page, pageSize)
	if err != nil {
		failFor(c, err, ErrCodeListFailed)
		return
	}
	c.Header(headerTotalCount, strconv.FormatInt(total, 10))
	okData(c, http.StatusOK, items)
}

// CountAnimals godoc
// @ID          countAnimals
// @Summary     Count animals
// @Description Returns only the X-Total-Count header.
// @Tags        Animals
// @Param       type  query  string  false "Only animals of this type"
// @Success     200  {string} string "OK"
// @Header      200  {integer} X-Total-Count "Total matching animals"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /animals [head]
func (h *Handlers) CountAnimals(c *gin.Context) {
	total, err := h.svc.Count(c.Request.Context(), c.Query("type"))
	if err != nil {
		failFor(c, err, ErrCodeListFailed)
		return
	}
	c.Header(headerTotalCount, strconv.FormatInt(total, 10))
	c.Status(http.StatusOK)
}

// CreateAnimal godoc
// @ID          createAnimal
// @Summary     Create an animal
// @Description Creates an animal. `name` and `type` are required (at most 100 characters each); `type` is stored lower-case. Supports idempotency via the Idempotency-Key header (same key → same animal).
// @Tags        Animals
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.AnimalRequest  true  "Animal payload"
//
// @Success     201  {object}  handlers.AnimalResponse
// @Header      201  {string}  Location              "URL of the new animal"
// @Header      201  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /animals [post]
func (h *Handlers) CreateAnimal(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.UserID(c)
	scope := middleware.IdempotencyScope(c)

	// Idempotency (replay path) – read validated key if present.
	idemKey, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey && h.idem != nil {
		if h.replay(c, user, scope, idemKey) {
			return
		}
	}

	var req AnimalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	a, err := h.svc.Create(ctx, req.Name, req.Type)
	if err != nil {
		failFor(c, err, ErrCodeCreateFailed)
		return
	}

	// Idempotency (store path): best effort. A concurrent request with the
	// same key that stored first wins; this insert is undone and its result
	// replayed.
	if hasKey && h.idem != nil {
		if err := h.idem.Save(ctx, user, scope, idemKey, a.ID, http.StatusCreated); err != nil {
			log := middleware.LoggerFrom(c)
			if errors.Is(err, ErrIdempotencyConflict) && h.replay(c, user, scope, idemKey) {
				if derr := h.svc.Delete(ctx, a.ID); derr != nil {
					log.Warn().Err(derr).Uint("animal_id", a.ID).Msg("remove duplicate animal")
				}
				return
			}
			log.Warn().Err(err).Str("idempotency_key", idemKey).Msg("store idempotency record")
		}
	}

	c.Header("Location", c.Request.URL.Path+"/"+strconv.FormatUint(uint64(a.ID), 10))
	okData(c, http.StatusCreated, a)
}

// replay writes the animal stored under (user, scope, key), if any, and
// reports whether it did.
func (h *Handlers) replay(c *gin.Context, user, scope, key string) bool {
	ctx := c.Request.Context()
	rec, err := h.idem.Get(ctx, user, scope, key, time.Now().UTC())
	if err != nil || rec == nil {
		return false
	}
	prev, err := h.svc.Get(ctx, rec.AnimalID)
	if err != nil {
		return false
	}
	middleware.ObserveReplay(c)
	c.Header(middleware.HeaderIdempotencyReplayed, "true")
	c.Header("Location", c.Request.URL.Path+"/"+strconv.FormatUint(uint64(prev.ID), 10))
	okData(c, rec.Status, prev)
	return true
}

// GetAnimal godoc
// @ID          getAnimal
// @Summary     Get an animal
// @Tags        Animals
// @Produce     json
// @Param       id   path  int  true  "Animal ID"  minimum(1)
// @Success     200  {object} handlers.AnimalResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Animal not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /animals/{id} [get]
func (h *Handlers) GetAnimal(c *gin.Context) {
	id, valid := animalID(c)
	if !valid {
		return
	}
	a, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		failFor(c, err, ErrCodeInternal)
		return
	}
	okData(c, http.StatusOK, a)
}

// ReplaceAnimal godoc
// @ID          replaceAnimal
// @Summary     Replace an animal
// @Description Overwrites name and type. Same validation as create.
// @Tags        Animals
// @Accept      json
// @Produce     json
// @Param       id    path  int                     true  "Animal ID"  minimum(1)
// @Param       body  body  handlers.AnimalRequest  true  "Animal payload"
// @Success     200  {object} handlers.AnimalResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Animal not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /animals/{id} [put]
func (h *Handlers) ReplaceAnimal(c *gin.Context) {
	id, valid := animalID(c)
	if !valid {
		return
	}
	var req AnimalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	a, err := h.svc.Replace(c.Request.Context(), id, req.Name, req.Type)
	if err != nil {
		failFor(c, err, ErrCodeUpdateFailed)
		return
	}
	okData(c, http.StatusOK, a)
}

// PatchAnimal godoc
// @ID          patchAnimal
// @Summary     Partially update an animal
// @Description Updates only the supplied fields. At least one field is required.
// @Tags        Animals
// @Accept      json
// @Produce     json
// @Param       id    path  int                          true  "Animal ID"  minimum(1)
// @Param       body  body  handlers.PatchAnimalRequest  true  "Fields to change"
// @Success     200  {object} handlers.AnimalResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Animal not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /animals/{id} [patch]
func (h *Handlers) PatchAnimal(c *gin.Context) {
	id, valid := animalID(c)
	if !valid {
		return
	}
	var req PatchAnimalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	a, err := h.svc.Patch(c.Request.Context(), id, services.AnimalPatch{Name: req.Name, Type: req.Type})
	if err != nil {
		failFor(c, err, ErrCodeUpdateFailed)
		return
	}
	okData(c, http.StatusOK, a)
}

// DeleteAnimal godoc
// @ID          deleteAnimal
// @Summary     Delete an animal
// @Tags        Animals
// @Param       id   path  int  true  "Animal ID"  minimum(1)
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Animal not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /animals/{id} [delete]
func (h *Handlers) DeleteAnimal(c *gin.Context) {
	id, valid := animalID(c)
	if !valid {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		failFor(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}

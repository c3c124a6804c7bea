package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Joseda-hg/clutchdesk/internal/db"
	"github.com/Joseda-hg/clutchdesk/internal/model"
)

const maxBodyBytes = 1 << 20

// collection serves one resource of the API from the records table.
type collection interface {
	name() string
	path() string
	fromCreate(body []byte, id string) (db.RecordInput, error)
	fromPatch(current, patch []byte, id string) (db.RecordInput, error)
	conflictMessage() string
}

// typed adapts a model type to the records table. unique, when set, yields
// the per-resource unique key.
type typed[T model.Record] struct {
	resource string
	route    string
	assign   func(record *T, id string)
	defaults func(record *T)
	unique   func(record T) string
	conflict string
}

func (c typed[T]) name() string { return c.resource }
func (c typed[T]) path() string { return c.route }

func (c typed[T]) conflictMessage() string {
	if c.conflict == "" {
		return "record already exists"
	}
	return c.conflict
}

func (c typed[T]) fromCreate(body []byte, id string) (db.RecordInput, error) {
	var record T
	if err := json.Unmarshal(body, &record); err != nil {
		return db.RecordInput{}, badRequest(err)
	}
	c.assign(&record, id)
	if c.defaults != nil {
		c.defaults(&record)
	}
	return c.index(record)
}

func (c typed[T]) fromPatch(current, patch []byte, id string) (db.RecordInput, error) {
	merged, err := db.MergePatch(current, patch)
	if err != nil {
		return db.RecordInput{}, badRequest(err)
	}
	var record T
	if err := json.Unmarshal(merged, &record); err != nil {
		return db.RecordInput{}, badRequest(err)
	}
	c.assign(&record, id)
	if c.defaults != nil {
		c.defaults(&record)
	}
	return c.index(record)
}

func (c typed[T]) index(record T) (db.RecordInput, error) {
	if err := model.Validate(record); err != nil {
		return db.RecordInput{}, &apiError{status: http.StatusUnprocessableEntity, message: err.Error(), err: err}
	}
	body, err := json.Marshal(record)
	if err != nil {
		return db.RecordInput{}, errors.Wrap(err, "encode record")
	}
	input := db.RecordInput{
		ID:     record.Key(),
		Body:   body,
		Status: record.StatusValue(),
		Search: record.SearchFields(),
	}
	if c.unique != nil {
		input.UniqueKey = c.unique(record)
	}
	return input, nil
}

func defaultCollections() []collection {
	return []collection{
		typed[model.Employee]{
			resource: "employees",
			route:    model.EmployeesPath,
			assign:   func(e *model.Employee, id string) { e.ID = id },
			defaults: func(e *model.Employee) {
				if e.Status == "" {
					e.Status = "active"
				}
			},
			unique:   func(e model.Employee) string { return strings.ToLower(strings.TrimSpace(e.Email)) },
			conflict: "Email already exists",
		},
		typed[model.Appointment]{
			resource: "appointments",
			route:    model.AppointmentsPath,
			assign:   func(a *model.Appointment, id string) { a.ID = id },
			defaults: func(a *model.Appointment) {
				if a.Status == "" {
					a.Status = "scheduled"
				}
			},
		},
		typed[model.InventoryItem]{
			resource: "inventory",
			route:    model.InventoryPath,
			assign:   func(i *model.InventoryItem, id string) { i.ID = id },
			defaults: func(i *model.InventoryItem) {
				if i.Status == "" {
					i.Status = stockStatus(i.Quantity)
				}
			},
			unique:   func(i model.InventoryItem) string { return strings.ToUpper(strings.TrimSpace(i.SKU)) },
			conflict: "SKU already exists",
		},
		typed[model.Listing]{
			resource: "listings",
			route:    model.ListingsPath,
			assign:   assignListingID,
			defaults: func(l *model.Listing) {
				switch {
				case l.Job != nil && l.Job.Status == "":
					l.Job.Status = "draft"
				case l.Invitation != nil && l.Invitation.Status == "":
					l.Invitation.Status = "pending"
				}
			},
		},
	}
}

func assignListingID(l *model.Listing, id string) {
	switch {
	case l.Job != nil:
		l.Job.ID = id
	case l.Invitation != nil:
		l.Invitation.ID = id
	}
}

func stockStatus(quantity int64) string {
	switch {
	case quantity <= 0:
		return "out_of_stock"
	case quantity < 5:
		return "low_stock"
	default:
		return "in_stock"
	}
}

func (s *Server) register(router *mux.Router, c collection) {
	router.HandleFunc(c.path(), s.listHandler(c)).Methods(http.MethodGet)
	router.HandleFunc(c.path(), s.createHandler(c)).Methods(http.MethodPost)
	router.HandleFunc(c.path()+"/{id}", s.getHandler(c)).Methods(http.MethodGet)
	router.HandleFunc(c.path()+"/{id}", s.patchHandler(c)).Methods(http.MethodPatch)
	router.HandleFunc(c.path()+"/{id}", s.deleteHandler(c)).Methods(http.MethodDelete)
	router.HandleFunc(c.path()+"/{id}/history", s.historyHandler(c)).Methods(http.MethodGet)
}

func (s *Server) listHandler(c collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, page, err := filterFromRequest(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		records, err := s.store.ListRecords(r.Context(), c.name(), filter)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		bodies := make([]json.RawMessage, 0, len(records))
		for _, record := range records {
			bodies = append(bodies, record.Body)
		}
		if page == nil {
			writeData(w, http.StatusOK, bodies)
			return
		}

		total, err := s.store.CountRecords(r.Context(), c.name(), filter)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		page.Total = total
		page.Pages = (total + page.Limit - 1) / page.Limit
		writeEnvelope(w, http.StatusOK, envelope{Success: true, Data: bodies, Pagination: page})
	}
}

func (s *Server) getHandler(c collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := s.store.GetRecord(r.Context(), c.name(), mux.Vars(r)["id"])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusOK, record.Body)
	}
}

func (s *Server) createHandler(c collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		input, err := c.fromCreate(body, uuid.NewString())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		record, err := s.store.CreateRecord(r.Context(), c.name(), input)
		if err != nil {
			s.fail(w, r, conflictAs(err, c))
			return
		}
		s.logger.Info("record created", zap.String("resource", c.name()), zap.String("id", record.ID))
		writeData(w, http.StatusCreated, record.Body)
	}
}

func (s *Server) patchHandler(c collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		patch, err := readBody(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		current, err := s.store.GetRecord(r.Context(), c.name(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		input, err := c.fromPatch(current.Body, patch, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		record, err := s.store.UpdateRecord(r.Context(), c.name(), input)
		if err != nil {
			s.fail(w, r, conflictAs(err, c))
			return
		}
		writeData(w, http.StatusOK, record.Body)
	}
}

func (s *Server) deleteHandler(c collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := s.store.DeleteRecord(r.Context(), c.name(), id); err != nil {
			s.fail(w, r, err)
			return
		}
		writeEnvelope(w, http.StatusOK, envelope{Success: true, Message: "deleted"})
	}
}

type historyView struct {
	EventType string    `json:"eventType"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) historyHandler(c collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if _, err := s.store.GetRecord(r.Context(), c.name(), id); err != nil {
			s.fail(w, r, err)
			return
		}
		entries, err := s.store.ListHistory(r.Context(), c.name(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		views := make([]historyView, 0, len(entries))
		for _, entry := range entries {
			views = append(views, historyView{EventType: entry.EventType, Details: entry.Details, CreatedAt: entry.CreatedAt})
		}
		writeData(w, http.StatusOK, views)
	}
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// filterFromRequest reads q, status, page and limit. Paging applies only
// when page or limit is present; the returned pagination is nil otherwise.
func filterFromRequest(r *http.Request) (db.Filter, *pagination, error) {
	values := r.URL.Query()
	filter := db.Filter{
		Query:  strings.TrimSpace(values.Get("q")),
		Status: strings.TrimSpace(values.Get("status")),
	}
	if !values.Has("page") && !values.Has("limit") {
		return filter, nil, nil
	}

	page := &pagination{Page: 1, Limit: defaultPageLimit}
	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return db.Filter{}, nil, &apiError{status: http.StatusBadRequest, message: "page must be a positive integer"}
		}
		page.Page = n
	}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageLimit {
			return db.Filter{}, nil, &apiError{status: http.StatusBadRequest, message: "limit must be between 1 and " + strconv.Itoa(maxPageLimit)}
		}
		page.Limit = n
	}
	filter.Limit = page.Limit
	filter.Offset = (page.Page - 1) * page.Limit
	return filter, page, nil
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, badRequest(err)
	}
	if !json.Valid(body) {
		return nil, &apiError{status: http.StatusBadRequest, message: "request body must be JSON"}
	}
	return body, nil
}

func conflictAs(err error, c collection) error {
	if errors.Is(err, db.ErrConflict) {
		return &apiError{status: http.StatusConflict, message: c.conflictMessage(), err: err}
	}
	return err
}

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"shift-scheduler/internal/domain"
	"shift-scheduler/internal/model"
	"shift-scheduler/pkg/optimistic"
)

// ShiftStore implements domain.ShiftStore against /shifts.
type ShiftStore struct {
	client    *Client
	transport *optimistic.HTTPTransport[model.Shift]
	ctrl      *optimistic.Controller[model.Shift]
}

func NewShiftStore(c *Client, maxRetries int, logger *log.Logger) *ShiftStore {
	httpClient, header := c.restClient()
	t := optimistic.NewHTTPTransport[model.Shift](httpClient, c.baseURL)
	t.Header = header
	return &ShiftStore{
		client:    c,
		transport: t,
		ctrl:      optimistic.NewController[model.Shift](t, maxRetries, logger),
	}
}

func shiftKey(id string) string {
	return "shifts/" + url.PathEscape(id)
}

func (s *ShiftStore) ListShifts(ctx context.Context, p domain.Period) ([]domain.Shift, error) {
	q := url.Values{}
	q.Set("from", p.From.Format(timeLayout))
	q.Set("to", p.To.Format(timeLayout))
	var entities []optimistic.Entity[model.Shift]
	if err := s.client.getJSON(ctx, "shifts", q, &entities); err != nil {
		return nil, err
	}
	out := make([]domain.Shift, 0, len(entities))
	for _, e := range entities {
		out = append(out, model.ShiftFromEntity(e))
	}
	return out, nil
}

func (s *ShiftStore) GetShift(ctx context.Context, id string) (domain.Shift, error) {
	e, err := s.transport.Fetch(ctx, shiftKey(id))
	if err != nil {
		return domain.Shift{}, mapErr(err)
	}
	return model.ShiftFromEntity(e), nil
}

func (s *ShiftStore) CreateShift(ctx context.Context, sh domain.Shift) (domain.Shift, error) {
	if sh.Status == "" {
		sh.Status = domain.StatusDraft
	}
	if err := sh.Validate(); err != nil {
		return domain.Shift{}, err
	}
	data, header, err := s.client.do(ctx, http.MethodPost, "shifts", nil, model.FromShift(sh))
	if err != nil {
		return domain.Shift{}, err
	}
	var e optimistic.Entity[model.Shift]
	if err := json.Unmarshal(data, &e); err != nil {
		return domain.Shift{}, fmt.Errorf("decode created shift: %w", err)
	}
	if tag := header.Get(optimistic.HeaderETag); tag != "" {
		e.ETag = tag
	}
	return model.ShiftFromEntity(e), nil
}

func (s *ShiftStore) UpdateShift(ctx context.Context, id string, fn func(domain.Shift) (domain.Shift, error)) (domain.Shift, error) {
	key := shiftKey(id)
	current, err := s.transport.Fetch(ctx, key)
	if err != nil {
		return domain.Shift{}, mapErr(err)
	}
	saved, err := s.ctrl.Update(ctx, key, current, func(m model.Shift) (model.Shift, error) {
		next, err := fn(m.Domain())
		if err != nil {
			return model.Shift{}, err
		}
		if err := next.Validate(); err != nil {
			return model.Shift{}, err
		}
		out := model.FromShift(next)
		out.ID = m.ID
		return out, nil
	})
	if err != nil {
		return domain.Shift{}, mapErr(err)
	}
	return model.ShiftFromEntity(saved), nil
}

func (s *ShiftStore) DeleteShift(ctx context.Context, id string) error {
	_, _, err := s.client.do(ctx, http.MethodDelete, shiftKey(id), nil, nil)
	return mapErr(err)
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// mapErr folds store-level not-found answers into domain.ErrNotFound.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, optimistic.ErrNotFound) {
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	return err
}

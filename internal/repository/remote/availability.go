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

// AvailabilityStore implements domain.AvailabilityRepo against
// /availability. Updates are sent with the version the caller read; a stale
// one comes back as domain.ErrVersionConflict with the stored record, since
// a whole-record write cannot be merged onto someone else's edit.
type AvailabilityStore struct {
	client    *Client
	transport *optimistic.HTTPTransport[model.Availability]
	logger    *log.Logger
}

func NewAvailabilityStore(c *Client, logger *log.Logger) *AvailabilityStore {
	if logger == nil {
		logger = log.Default()
	}
	httpClient, header := c.restClient()
	t := optimistic.NewHTTPTransport[model.Availability](httpClient, c.baseURL)
	t.Header = header
	return &AvailabilityStore{client: c, transport: t, logger: logger}
}

func (s *AvailabilityStore) ListAvailability(ctx context.Context, staffIDs []string) ([]domain.Availability, error) {
	q := url.Values{}
	for _, id := range staffIDs {
		q.Add("staff_id", id)
	}
	var entities []optimistic.Entity[model.Availability]
	if err := s.client.getJSON(ctx, "availability", q, &entities); err != nil {
		return nil, err
	}
	out := make([]domain.Availability, 0, len(entities))
	for _, e := range entities {
		a, err := model.AvailabilityFromEntity(e)
		if err != nil {
			return nil, fmt.Errorf("availability %s: %w", e.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *AvailabilityStore) SaveAvailability(ctx context.Context, a domain.Availability) (domain.Availability, error) {
	if err := a.Validate(); err != nil {
		return a, err
	}
	if a.ID == "" {
		data, _, err := s.client.do(ctx, http.MethodPost, "availability", nil, model.FromAvailability(a))
		if err != nil {
			return a, err
		}
		var e optimistic.Entity[model.Availability]
		if err := json.Unmarshal(data, &e); err != nil {
			return a, fmt.Errorf("decode availability: %w", err)
		}
		return model.AvailabilityFromEntity(e)
	}

	key := "availability/" + url.PathEscape(a.ID)
	saved, err := s.transport.Put(ctx, key, model.AvailabilityEntity(a))
	var vc *optimistic.VersionConflictError[model.Availability]
	if errors.As(err, &vc) {
		s.logger.Printf("[remote] availability %s: version %d is stale", a.ID, a.Version)
		current := a
		if vc.Remote != nil {
			if current, err = model.AvailabilityFromEntity(*vc.Remote); err != nil {
				return a, fmt.Errorf("decode availability: %w", err)
			}
		}
		return current, fmt.Errorf("availability %s at version %d: %w", a.ID, a.Version, domain.ErrVersionConflict)
	}
	if err != nil {
		return a, mapErr(err)
	}
	return model.AvailabilityFromEntity(saved)
}

package optimistic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	HeaderIfMatch       = "If-Match"
	HeaderETag          = "ETag"
	HeaderEntityVersion = "X-Entity-Version"
)

// HTTPTransport talks to a REST store that accepts If-Match and
// X-Entity-Version on PUT and answers 409 on a stale version. The 409 body,
// when present, is the current entity.
type HTTPTransport[T any] struct {
	Client  *http.Client
	BaseURL string
	Header  http.Header
}

func NewHTTPTransport[T any](client *http.Client, baseURL string) *HTTPTransport[T] {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport[T]{Client: client, BaseURL: strings.TrimSuffix(baseURL, "/")}
}

func (t *HTTPTransport[T]) url(key string) string {
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") || t.BaseURL == "" {
		return key
	}
	return t.BaseURL + "/" + strings.TrimPrefix(key, "/")
}

func (t *HTTPTransport[T]) Fetch(ctx context.Context, key string) (Entity[T], error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url(key), nil)
	if err != nil {
		return Entity[T]{}, fmt.Errorf("create request: %w", err)
	}
	t.decorate(req)
	req.Header.Set("Accept", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return Entity[T]{}, fmt.Errorf("fetch %s: %w", key, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Entity[T]{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Entity[T]{}, statusError(resp)
	}
	return decodeEntity[T](resp)
}

func (t *HTTPTransport[T]) Put(ctx context.Context, key string, e Entity[T]) (Entity[T], error) {
	body, err := json.Marshal(e)
	if err != nil {
		return Entity[T]{}, fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.url(key), bytes.NewReader(body))
	if err != nil {
		return Entity[T]{}, fmt.Errorf("create request: %w", err)
	}
	t.decorate(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderEntityVersion, strconv.Itoa(e.Version))
	if e.ETag != "" {
		req.Header.Set(HeaderIfMatch, e.ETag)
	} else {
		req.Header.Set(HeaderIfMatch, VersionTag(e.Version))
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return Entity[T]{}, fmt.Errorf("put %s: %w", key, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusPreconditionFailed:
		vc := &VersionConflictError[T]{Key: key}
		if remote, err := decodeEntity[T](resp); err == nil {
			vc.Remote = &remote
		}
		return Entity[T]{}, vc
	case resp.StatusCode == http.StatusNotFound:
		return Entity[T]{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Entity[T]{}, statusError(resp)
	}
	return decodeEntity[T](resp)
}

func (t *HTTPTransport[T]) decorate(req *http.Request) {
	for k, vs := range t.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

// VersionTag renders a version as a strong entity tag.
func VersionTag(version int) string {
	return `"` + strconv.Itoa(version) + `"`
}

// ParseVersionTag reads a tag written by VersionTag, tolerating a weak
// prefix and missing quotes.
func ParseVersionTag(tag string) (int, bool) {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "W/")
	n, err := strconv.Atoi(strings.Trim(tag, `"`))
	if err != nil {
		return 0, false
	}
	return n, true
}

// decodeEntity reads the body and lets the version headers win over it.
func decodeEntity[T any](resp *http.Response) (Entity[T], error) {
	var e Entity[T]
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return Entity[T]{}, fmt.Errorf("decode entity: %w", err)
	}
	if v := resp.Header.Get(HeaderEntityVersion); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			e.Version = n
		}
	}
	if tag := resp.Header.Get(HeaderETag); tag != "" {
		e.ETag = tag
	}
	return e, nil
}

// StatusError is a non-2xx answer the transport has no special meaning for.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

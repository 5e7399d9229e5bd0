package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/frahmantamala/ledger-console/internal"
)

// Endpoint describes where a remote collection lives and how its payloads
// are wrapped. Paths may contain {name} placeholders filled in by Bind; the
// item path always contains {id}.
type Endpoint struct {
	Name       string
	ListPath   string
	CreatePath string
	ItemPath   string
	ListKeys   []string
	RecordKeys []string
}

var (
	LedgerEndpoint = Endpoint{
		Name:       "ledger",
		ListPath:   "ledger/ledger",
		CreatePath: "ledger/ledger",
		ItemPath:   "ledger/{id}",
		ListKeys:   []string{"ledgers"},
		RecordKeys: []string{"ledger"},
	}

	// HistoryEndpoint lists the low-purchase entries of one user. Entries are
	// edited through the regular ledger item path.
	HistoryEndpoint = Endpoint{
		Name:       "low-purchase history",
		ListPath:   "ledger/low-purchase/{userId}",
		ItemPath:   "ledger/{id}",
		ListKeys:   []string{"ledgers"},
		RecordKeys: []string{"ledger"},
	}

	ReportEndpoint = Endpoint{
		Name:       "report",
		ListPath:   "reports/all",
		CreatePath: "reports",
		ItemPath:   "reports/{id}",
		ListKeys:   []string{"report", "reports"},
		RecordKeys: []string{"report"},
	}

	UserEndpoint = Endpoint{
		Name:       "user",
		ListPath:   "users/users",
		CreatePath: "users/create-user",
		ListKeys:   []string{"users"},
		RecordKeys: []string{"user"},
	}
)

// Resource is a typed handle on one remote collection.
type Resource[T any] struct {
	client *Client
	ep     Endpoint
}

func NewResource[T any](c *Client, ep Endpoint) *Resource[T] {
	return &Resource[T]{client: c, ep: ep}
}

// Bind returns a copy of r with the given placeholders substituted.
func (r *Resource[T]) Bind(vars map[string]string) *Resource[T] {
	ep := r.ep
	for name, value := range vars {
		placeholder := "{" + name + "}"
		escaped := url.PathEscape(value)
		ep.ListPath = strings.ReplaceAll(ep.ListPath, placeholder, escaped)
		ep.CreatePath = strings.ReplaceAll(ep.CreatePath, placeholder, escaped)
		ep.ItemPath = strings.ReplaceAll(ep.ItemPath, placeholder, escaped)
	}
	return &Resource[T]{client: r.client, ep: ep}
}

func (r *Resource[T]) Name() string {
	return r.ep.Name
}

func (r *Resource[T]) List(ctx context.Context, token string) ([]T, error) {
	body, err := r.client.call(ctx, http.MethodGet, r.ep.ListPath, token, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[T](r.ep, body)
}

// Create submits draft. A nil record with a nil error means the service only
// acknowledged the write and the caller has to reload to learn the record.
func (r *Resource[T]) Create(ctx context.Context, token string, draft interface{}) (*T, error) {
	if r.ep.CreatePath == "" {
		return nil, unsupported(r.ep.Name, "create")
	}
	body, err := r.client.call(ctx, http.MethodPost, r.ep.CreatePath, token, draft)
	if err != nil {
		return nil, err
	}
	return decodeRecord[T](r.ep, body)
}

func (r *Resource[T]) Update(ctx context.Context, token, id string, fields interface{}) (*T, error) {
	path, err := r.itemPath(id, "update")
	if err != nil {
		return nil, err
	}
	body, err := r.client.call(ctx, http.MethodPut, path, token, fields)
	if err != nil {
		return nil, err
	}
	return decodeRecord[T](r.ep, body)
}

func (r *Resource[T]) Delete(ctx context.Context, token, id string) error {
	path, err := r.itemPath(id, "delete")
	if err != nil {
		return err
	}
	_, err = r.client.call(ctx, http.MethodDelete, path, token, nil)
	return err
}

func (r *Resource[T]) itemPath(id, op string) (string, error) {
	if r.ep.ItemPath == "" {
		return "", unsupported(r.ep.Name, op)
	}
	if id == "" {
		return "", internal.NewValidationError("record id is required", internal.ErrCodeRequiredField)
	}
	return strings.ReplaceAll(r.ep.ItemPath, "{id}", url.PathEscape(id)), nil
}

func unsupported(name, op string) *internal.AppError {
	return &internal.AppError{
		Type:       internal.ErrorTypeInternal,
		Code:       internal.ErrCodeUnsupported,
		Message:    fmt.Sprintf("%s does not support %s", name, op),
		StatusCode: http.StatusMethodNotAllowed,
	}
}

// decodeList accepts a bare array or an object carrying the array under one
// of the endpoint's list keys.
func decodeList[T any](ep Endpoint, body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, badResponse(ep.Name+" list", fmt.Errorf("empty body"))
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, badResponse(ep.Name+" list", err)
		}
		return items, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, badResponse(ep.Name+" list", err)
	}

	for _, key := range ep.ListKeys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		items := []T{}
		if string(raw) == "null" {
			return items, nil
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, badResponse(ep.Name+" list", err)
		}
		return items, nil
	}

	return nil, badResponse(ep.Name+" list", fmt.Errorf("no collection under %v", ep.ListKeys))
}

// decodeRecord extracts the canonical record from a write response. Bodies
// that carry no identifiable record are treated as a bare acknowledgement.
func decodeRecord[T any](ep Endpoint, body []byte) (*T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, badResponse(ep.Name, err)
	}

	raw := json.RawMessage(nil)
	for _, key := range ep.RecordKeys {
		if v, ok := envelope[key]; ok && len(v) > 0 && v[0] == '{' {
			raw = v
			break
		}
	}
	if raw == nil {
		if _, ok := envelope["_id"]; ok {
			raw = trimmed
		} else if _, ok := envelope["id"]; ok {
			raw = trimmed
		}
	}
	if raw == nil {
		return nil, nil
	}

	var record T
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, badResponse(ep.Name, err)
	}
	return &record, nil
}

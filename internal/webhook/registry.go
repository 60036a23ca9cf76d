package webhook

import (
	"context"
	"fmt"
	"strings"

	"product-importer/internal/event"
	"product-importer/internal/store"
)

// Registry persists webhook endpoints in the _webhooks table.
type Registry struct {
	db *store.Store
}

func NewRegistry(db *store.Store) *Registry {
	return &Registry{db: db}
}

// EndpointInput carries caller-supplied endpoint fields for create/update.
type EndpointInput struct {
	URL       string   `json:"url"`
	Events    []string `json:"events"`
	Secret    string   `json:"secret"`
	Condition string   `json:"condition"`
	Active    *bool    `json:"active"`
}

// Validate checks the input for a create. Every listed event type must be
// recognized.
func (in EndpointInput) Validate() error {
	if strings.TrimSpace(in.URL) == "" {
		return fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(in.URL, "http://") && !strings.HasPrefix(in.URL, "https://") {
		return fmt.Errorf("url must be http or https")
	}
	for _, ev := range in.Events {
		if !event.ValidType(ev) {
			return fmt.Errorf("unknown event type %q (valid: %s)", ev, strings.Join(event.Types(), ", "))
		}
	}
	return nil
}

// Create registers a new endpoint and returns it.
func (r *Registry) Create(ctx context.Context, in EndpointInput) (Endpoint, error) {
	if err := in.Validate(); err != nil {
		return Endpoint{}, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	id := store.GenerateUUID()
	pb := r.db.Dialect.NewParamBuilder()
	_, err := store.Exec(ctx, r.db.DB,
		fmt.Sprintf(`INSERT INTO _webhooks (id, url, events, secret, condition, active) VALUES (%s, %s, %s, %s, %s, %s)`,
			pb.Add(id), pb.Add(in.URL), pb.Add(r.db.Dialect.ArrayParam(in.Events)),
			pb.Add(in.Secret), pb.Add(in.Condition), pb.Add(active)),
		pb.Params()...)
	if err != nil {
		return Endpoint{}, fmt.Errorf("create webhook: %w", r.db.Dialect.MapError(err))
	}
	return r.Get(ctx, id)
}

// Get fetches one endpoint by id. Returns store.ErrNotFound when absent.
func (r *Registry) Get(ctx context.Context, id string) (Endpoint, error) {
	pb := r.db.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, r.db.DB,
		fmt.Sprintf(`SELECT id, url, events, secret, condition, active FROM _webhooks WHERE id = %s`, pb.Add(id)),
		pb.Params()...)
	if err != nil {
		return Endpoint{}, err
	}
	return r.endpointFromRow(row)
}

// List returns every registered endpoint.
func (r *Registry) List(ctx context.Context) ([]Endpoint, error) {
	rows, err := store.QueryRows(ctx, r.db.DB,
		`SELECT id, url, events, secret, condition, active FROM _webhooks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	if r.db.Dialect.NeedsBoolFix() {
		store.NormalizeBooleans(rows, []string{"active"})
	}

	endpoints := make([]Endpoint, 0, len(rows))
	for _, row := range rows {
		ep, err := r.endpointFromRow(row)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

// Update overwrites an endpoint's fields and returns the updated record.
func (r *Registry) Update(ctx context.Context, id string, in EndpointInput) (Endpoint, error) {
	if err := in.Validate(); err != nil {
		return Endpoint{}, err
	}
	if _, err := r.Get(ctx, id); err != nil {
		return Endpoint{}, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	pb := r.db.Dialect.NewParamBuilder()
	_, err := store.Exec(ctx, r.db.DB,
		fmt.Sprintf(`UPDATE _webhooks SET url = %s, events = %s, secret = %s, condition = %s, active = %s, updated_at = %s WHERE id = %s`,
			pb.Add(in.URL), pb.Add(r.db.Dialect.ArrayParam(in.Events)), pb.Add(in.Secret),
			pb.Add(in.Condition), pb.Add(active), r.db.Dialect.NowExpr(), pb.Add(id)),
		pb.Params()...)
	if err != nil {
		return Endpoint{}, fmt.Errorf("update webhook: %w", r.db.Dialect.MapError(err))
	}
	return r.Get(ctx, id)
}

// Delete removes an endpoint. Returns store.ErrNotFound when absent.
func (r *Registry) Delete(ctx context.Context, id string) error {
	pb := r.db.Dialect.NewParamBuilder()
	n, err := store.Exec(ctx, r.db.DB,
		fmt.Sprintf(`DELETE FROM _webhooks WHERE id = %s`, pb.Add(id)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ActiveEndpoints returns a snapshot of active endpoints subscribed to the
// given event type. The dispatcher calls this once per published event, so
// registry changes take effect for the next event without a restart.
func (r *Registry) ActiveEndpoints(ctx context.Context, t event.Type) ([]*Endpoint, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]*Endpoint, 0, len(all))
	for i := range all {
		ep := &all[i]
		if ep.Active && ep.Subscribed(t) {
			matched = append(matched, ep)
		}
	}
	return matched, nil
}

func (r *Registry) endpointFromRow(row map[string]any) (Endpoint, error) {
	events, err := r.db.Dialect.ScanArray(row["events"])
	if err != nil {
		return Endpoint{}, fmt.Errorf("scan webhook events: %w", err)
	}
	active := false
	switch v := row["active"].(type) {
	case bool:
		active = v
	case int64:
		active = v != 0
	}
	return Endpoint{
		ID:        asString(row["id"]),
		URL:       asString(row["url"]),
		Events:    events,
		Secret:    asString(row["secret"]),
		Condition: asString(row["condition"]),
		Active:    active,
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

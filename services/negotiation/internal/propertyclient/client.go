package propertyclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dealroom/pkg/domain"
)

// Client resolves property ownership from the listings service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) ResolveProperty(ctx context.Context, propertyID string) (domain.Property, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/properties/"+url.PathEscape(propertyID), nil)
	if err != nil {
		return domain.Property{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return domain.Property{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return domain.Property{}, domain.NotFoundf("property %s not found", propertyID)
	}
	if resp.StatusCode >= 300 {
		return domain.Property{}, fmt.Errorf("property service returned %d", resp.StatusCode)
	}
	var out struct {
		Property domain.Property `json:"property"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Property{}, err
	}
	if out.Property.PropertyID == "" {
		out.Property.PropertyID = propertyID
	}
	return out.Property, nil
}

// Static serves a fixed property table.
type Static map[string]domain.Property

func (s Static) ResolveProperty(_ context.Context, propertyID string) (domain.Property, error) {
	p, ok := s[propertyID]
	if !ok {
		return domain.Property{}, domain.NotFoundf("property %s not found", propertyID)
	}
	return p, nil
}

// ParseStatic reads "id:owner:type,id:owner:type".
func ParseStatic(spec string) (Static, error) {
	out := Static{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid property entry %q", part)
		}
		id, owner, typ := strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1]), domain.PropertyType(strings.TrimSpace(fields[2]))
		if id == "" || owner == "" {
			return nil, fmt.Errorf("invalid property entry %q", part)
		}
		if _, ok := domain.LookupPropertyType(typ); !ok {
			return nil, fmt.Errorf("property %s has unsupported type %q", id, typ)
		}
		out[id] = domain.Property{PropertyID: id, OwnerID: owner, PropertyType: typ}
	}
	return out, nil
}

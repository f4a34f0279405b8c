package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/barterx-accounts/internal/domain/entity"
)

const requestTimeout = 3 * time.Second

// ProfileIndex stores public profile fields in Elasticsearch. Credentials and
// codes are never indexed.
type ProfileIndex struct {
	ES   *elasticsearch.Client
	Name string // index name
}

func NewProfileIndex(es *elasticsearch.Client, index string) *ProfileIndex {
	return &ProfileIndex{ES: es, Name: index}
}

func profileDoc(a *entity.Account) map[string]any {
	p := a.Profile
	return map[string]any{
		"id":              a.ID,
		"name":            p.Name,
		"interests":       p.Interests,
		"modes":           p.Modes,
		"user_type":       p.UserType,
		"city":            p.City,
		"state":           p.State,
		"country":         p.Country,
		"profile_picture": p.ProfilePicture,
		"verified":        a.IsVerified,
		"updated_at":      a.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func (x *ProfileIndex) Index(ctx context.Context, a *entity.Account) error {
	b, err := json.Marshal(profileDoc(a))
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: x.Name, DocumentID: a.ID, Body: bytes.NewReader(b), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := req.Do(c, x.ES)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("es index: %s", res.Status())
	}
	return nil
}

// Search performs a multi_match over the descriptive profile fields.
func (x *ProfileIndex) Search(ctx context.Context, q string, size int) ([]map[string]any, error) {
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"name^2", "interests", "city", "state", "country"},
			},
		},
		"size": size,
	}
	b, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := x.ES.Search(
		x.ES.Search.WithContext(c),
		x.ES.Search.WithIndex(x.Name),
		x.ES.Search.WithBody(bytes.NewReader(b)),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("es search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

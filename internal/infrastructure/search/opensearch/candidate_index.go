package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/silicograph/bridger/internal/domain/entity"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/pkg/errors"
)

// entityMapping indexes names and aliases as analyzed text for token
// matching, with keyword fields for exact filters and the deterministic
// id sort tie-break.
const entityMapping = `{
	"settings": {"number_of_shards": 1, "number_of_replicas": 0},
	"mappings": {
		"properties": {
			"id":           {"type": "keyword"},
			"primary_name": {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"aliases":      {"type": "text"},
			"type":         {"type": "keyword"},
			"description":  {"type": "text"},
			"provenance":   {"type": "keyword"}
		}
	}
}`

// defaultSearchLimit caps candidate retrieval when the caller passes no limit.
const defaultSearchLimit = 50

// CandidateIndex implements entity.CandidateIndex on OpenSearch.
type CandidateIndex struct {
	transport opensearchapi.Transport
	index     string
	log       logging.Logger
}

// NewCandidateIndex wraps a connected client.
func NewCandidateIndex(client *Client, log logging.Logger) *CandidateIndex {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CandidateIndex{
		transport: client.Raw(),
		index:     client.IndexName(),
		log:       log.Named("candidate-index"),
	}
}

// Rebuild drops and recreates the entity index, then bulk-loads the full
// canonical set.  The refresh on the bulk request makes the new documents
// searchable before Rebuild returns, so bridging can start immediately.
func (c *CandidateIndex) Rebuild(ctx context.Context, entities []*entity.CanonicalEntity) error {
	ignoreMissing := true
	delReq := opensearchapi.IndicesDeleteRequest{
		Index:             []string{c.index},
		IgnoreUnavailable: &ignoreMissing,
	}
	resp, err := delReq.Do(ctx, c.transport)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexRebuildFailed, "index delete request failed")
	}
	resp.Body.Close()

	createReq := opensearchapi.IndicesCreateRequest{
		Index: c.index,
		Body:  strings.NewReader(entityMapping),
	}
	resp, err = createReq.Do(ctx, c.transport)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexRebuildFailed, "index create request failed")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return errors.New(errors.ErrCodeIndexRebuildFailed, "index create returned error status").
			WithDetail(resp.Status())
	}

	if len(entities) == 0 {
		c.log.Info("rebuilt empty candidate index", logging.String("index", c.index))
		return nil
	}

	var buf bytes.Buffer
	for _, e := range entities {
		meta, err := json.Marshal(map[string]any{
			"index": map[string]any{"_index": c.index, "_id": e.ID},
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "bulk metadata marshal failed")
		}
		doc, err := json.Marshal(e)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "entity marshal failed").
				WithDetail("id=" + e.ID)
		}
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	bulkReq := opensearchapi.BulkRequest{
		Body:    bytes.NewReader(buf.Bytes()),
		Refresh: "true",
	}
	resp, err = bulkReq.Do(ctx, c.transport)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexRebuildFailed, "bulk index request failed")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return errors.New(errors.ErrCodeIndexRebuildFailed, "bulk index returned error status").
			WithDetail(resp.Status())
	}

	var bulk struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bulk); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "bulk response decode failed")
	}
	if bulk.Errors {
		return errors.New(errors.ErrCodeIndexRebuildFailed, "bulk index reported item failures")
	}

	c.log.Info("rebuilt candidate index",
		logging.String("index", c.index), logging.Int("entities", len(entities)))
	return nil
}

// Search returns entities whose name or alias tokens match any query term,
// hard-filtered to the given entity types, ordered by relevance then id.
func (c *CandidateIndex) Search(ctx context.Context, terms []string, types []string, limit int) ([]*entity.CanonicalEntity, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	queryText := strings.Join(terms, " ")
	boolQuery := map[string]any{
		"should": []any{
			map[string]any{"match": map[string]any{"primary_name": queryText}},
			map[string]any{"match": map[string]any{"aliases": queryText}},
		},
		"minimum_should_match": 1,
	}
	if len(types) > 0 {
		boolQuery["filter"] = []any{
			map[string]any{"terms": map[string]any{"type": types}},
		}
	}
	body := map[string]any{
		"size":  limit,
		"query": map[string]any{"bool": boolQuery},
		"sort": []any{
			map[string]any{"_score": map[string]any{"order": "desc"}},
			map[string]any{"id": map[string]any{"order": "asc"}},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "search body marshal failed")
	}

	searchReq := opensearchapi.SearchRequest{
		Index: []string{c.index},
		Body:  bytes.NewReader(raw),
	}
	resp, err := searchReq.Do(ctx, c.transport)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "candidate search request failed")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.New(errors.ErrCodeStoreQueryFailed, "candidate search returned error status").
			WithDetail(resp.Status() + ": " + string(detail))
	}

	var decoded struct {
		Hits struct {
			Hits []struct {
				Source entity.CanonicalEntity `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "search response decode failed")
	}

	out := make([]*entity.CanonicalEntity, 0, len(decoded.Hits.Hits))
	for i := range decoded.Hits.Hits {
		e := decoded.Hits.Hits[i].Source
		out = append(out, &e)
	}
	return out, nil
}

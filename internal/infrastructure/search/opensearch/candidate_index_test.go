package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silicograph/bridger/internal/domain/entity"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/pkg/errors"
)

// fakeTransport replays canned responses and captures every request body.
type fakeTransport struct {
	requests  []*http.Request
	bodies    []string
	responses []*http.Response
}

func (f *fakeTransport) Perform(req *http.Request) (*http.Response, error) {
	body := ""
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
	}
	f.requests = append(f.requests, req)
	f.bodies = append(f.bodies, body)
	if len(f.responses) > 0 {
		resp := f.responses[0]
		f.responses = f.responses[1:]
		return resp, nil
	}
	return okResponse(`{}`), nil
}

func okResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func errResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(`{}`)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestIndex(tr *fakeTransport) *CandidateIndex {
	return &CandidateIndex{
		transport: tr,
		index:     "bridger-entities-test",
		log:       logging.NewNopLogger(),
	}
}

func TestRebuild_DeleteCreateBulk(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{responses: []*http.Response{
		okResponse(`{}`),
		okResponse(`{}`),
		okResponse(`{"errors": false}`),
	}}
	idx := newTestIndex(tr)

	entities := []*entity.CanonicalEntity{
		{ID: "ent_1", PrimaryName: "alu unit", Type: "component", Provenance: []string{"rec1"}},
		{ID: "ent_2", PrimaryName: "program counter", Type: "register", Provenance: []string{"rec2"}},
	}
	require.NoError(t, idx.Rebuild(context.Background(), entities))
	require.Len(t, tr.requests, 3)

	assert.Equal(t, http.MethodDelete, tr.requests[0].Method)
	assert.Equal(t, http.MethodPut, tr.requests[1].Method)
	assert.Contains(t, tr.bodies[1], `"primary_name"`)

	// Bulk body is NDJSON: one metadata and one document line per entity.
	lines := strings.Split(strings.TrimSpace(tr.bodies[2]), "\n")
	require.Len(t, lines, 4)
	var meta struct {
		Index struct {
			ID string `json:"_id"`
		} `json:"index"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &meta))
	assert.Equal(t, "ent_1", meta.Index.ID)
	assert.Contains(t, lines[1], `"alu unit"`)
}

func TestRebuild_EmptySetSkipsBulk(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	idx := newTestIndex(tr)

	require.NoError(t, idx.Rebuild(context.Background(), nil))
	assert.Len(t, tr.requests, 2, "delete and create only")
}

func TestRebuild_BulkItemFailures(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{responses: []*http.Response{
		okResponse(`{}`),
		okResponse(`{}`),
		okResponse(`{"errors": true}`),
	}}
	idx := newTestIndex(tr)

	err := idx.Rebuild(context.Background(), []*entity.CanonicalEntity{
		{ID: "ent_1", PrimaryName: "alu", Type: "component", Provenance: []string{"rec1"}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeIndexRebuildFailed))
}

func TestRebuild_CreateFailure(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{responses: []*http.Response{
		okResponse(`{}`),
		errResponse(http.StatusBadRequest),
	}}
	idx := newTestIndex(tr)

	err := idx.Rebuild(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeIndexRebuildFailed))
}

func TestSearch_BuildsTypedQuery(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{responses: []*http.Response{okResponse(`{
		"hits": {"hits": [
			{"_source": {"id": "ent_1", "primary_name": "alu unit", "type": "component", "provenance": ["rec1"]}},
			{"_source": {"id": "ent_2", "primary_name": "alu decoder", "type": "component", "provenance": ["rec2"]}}
		]}
	}`)}}
	idx := newTestIndex(tr)

	got, err := idx.Search(context.Background(), []string{"alu", "unit"}, []string{"component", "module"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ent_1", got[0].ID)
	assert.Equal(t, "alu unit", got[0].PrimaryName)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(tr.bodies[0]), &body))
	assert.Equal(t, float64(10), body["size"])
	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	assert.Len(t, boolQuery["should"], 2)
	assert.Contains(t, tr.bodies[0], `"terms":{"type":["component","module"]}`)
	assert.Contains(t, tr.bodies[0], `"sort"`)
}

func TestSearch_NoTermsShortCircuits(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	idx := newTestIndex(tr)

	got, err := idx.Search(context.Background(), nil, []string{"component"}, 10)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, tr.requests)
}

func TestSearch_ErrorStatus(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{responses: []*http.Response{errResponse(http.StatusInternalServerError)}}
	idx := newTestIndex(tr)

	_, err := idx.Search(context.Background(), []string{"alu"}, nil, 10)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStoreQueryFailed))
}

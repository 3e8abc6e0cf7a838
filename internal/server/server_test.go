package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/OFFIS-RIT/graph-explorer/internal/config"
	"github.com/OFFIS-RIT/graph-explorer/internal/metrics"
	"github.com/OFFIS-RIT/graph-explorer/internal/queue"
	mid "github.com/OFFIS-RIT/graph-explorer/internal/server/middleware"
	"github.com/OFFIS-RIT/graph-explorer/internal/storage"
	"github.com/OFFIS-RIT/graph-explorer/pkg/ai"
	"github.com/OFFIS-RIT/graph-explorer/pkg/graph"
	"github.com/OFFIS-RIT/graph-explorer/pkg/prompt"
	"github.com/OFFIS-RIT/graph-explorer/pkg/questions"
	"github.com/OFFIS-RIT/graph-explorer/pkg/search"
	"github.com/OFFIS-RIT/graph-explorer/pkg/stats"
	"github.com/OFFIS-RIT/graph-explorer/pkg/store"
	"github.com/OFFIS-RIT/graph-explorer/pkg/vector"

	"github.com/rabbitmq/amqp091-go"
)

type fakeRecords struct {
	records []graph.Record
	err     error
	calls   int
}

func (f *fakeRecords) Neighborhood(ctx context.Context, seeds []string, limit int) ([]graph.Record, error) {
	f.calls++
	return f.records, f.err
}

type fakeStats struct {
	computations atomic.Int32
}

func (f *fakeStats) NodeCounts(context.Context) ([]stats.TypeCount, error) {
	f.computations.Add(1)
	return []stats.TypeCount{{Type: "EmailAddress", Count: 10}, {Type: "Email", Count: 4}}, nil
}

func (f *fakeStats) EdgeCounts(context.Context) ([]stats.TypeCount, error) {
	return []stats.TypeCount{{Type: "EMAIL_TO", Count: 8}}, nil
}

func (f *fakeStats) MostConnectedNodes(_ context.Context, limit int) ([]stats.ConnectedNode, error) {
	out := make([]stats.ConnectedNode, 0, limit)
	for i := range limit {
		out = append(out, stats.ConnectedNode{NodeType: "EmailAddress", NodeName: "n", Connections: int64(10 - i)})
	}
	return out, nil
}

func (f *fakeStats) NodeProperties(context.Context) ([]stats.TypeProperties, error) {
	return []stats.TypeProperties{{NodeType: "EmailAddress", Properties: []string{"address"}}}, nil
}

func (f *fakeStats) RelationshipPatterns(context.Context, int) ([]stats.Pattern, error) {
	return []stats.Pattern{{Pattern: "EmailAddress-[EMAIL_FROM]->Email", Count: 4}}, nil
}

func (f *fakeStats) Schema(context.Context) ([]stats.SchemaEntry, error) {
	return nil, nil
}

type fakeAI struct {
	chunks []string
}

func (f *fakeAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeAI) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	return errors.New("not implemented")
}

func (f *fakeAI) GenerateCompletionStreamWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) (<-chan ai.StreamEvent, error) {
	ch := make(chan ai.StreamEvent, len(f.chunks))
	for _, c := range f.chunks {
		ch <- ai.StreamEvent{Type: ai.StreamContent, Content: c}
	}
	close(ch)
	return ch, nil
}

func (f *fakeAI) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (f *fakeAI) ResetMetrics()               {}
func (f *fakeAI) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

type fakeIndex struct{}

func (fakeIndex) Query(ctx context.Context, namespace string, embedding []float32, topK int) ([]vector.Match, error) {
	return []vector.Match{
		{ID: "tx1_0", Score: 0.9, Metadata: map[string]string{"transaction_id": "tx1", "email_to": "b@enron.com"}},
		{ID: "tx2_0", Score: 0.8, Metadata: map[string]string{"transaction_id": "tx2", "email_to": "null"}},
	}, nil
}

type fakeEmails struct{}

func (fakeEmails) EmailsByTransaction(ctx context.Context, ids []string) ([]store.Email, error) {
	return []store.Email{{TransactionID: "tx1", From: "a@enron.com", To: "b@enron.com", Subject: "Gas"}}, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) SummarizeEmails(ctx context.Context, emails []store.Email) (string, error) {
	return "summary of " + emails[0].Subject, nil
}

func (fakeSummarizer) SummarizeOpinions(ctx context.Context, opinions []string, query string) (string, error) {
	return "", nil
}

type fakeCypher struct{}

func (fakeCypher) RunReadQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	if strings.Contains(cypher, "DELETE") {
		return nil, errors.New("write not allowed")
	}
	return []map[string]any{{"count": int64(3)}}, nil
}

type fakeOpinions struct{}

func (fakeOpinions) OpinionForCase(ctx context.Context, caseID string) (storage.Opinion, error) {
	if caseID != "12" {
		return storage.Opinion{}, storage.ErrNotFound
	}
	return storage.Opinion{ID: "op1", CaseID: 12, Content: "Affirmed."}, nil
}

type fakeCases struct{}

func (fakeCases) CaseByID(ctx context.Context, id string) (map[string]any, error) {
	switch id {
	case "51200":
		return map[string]any{"id": int64(51200), "name": "Roe v. Wade", "decided_date": "1973-01-22"}, nil
	case "500":
		return nil, errors.New("neo4j unavailable")
	}
	return nil, store.ErrNotFound
}

type fakeVectors struct{}

func (fakeVectors) Fetch(ctx context.Context, namespace string, ids []string) ([]vector.Record, error) {
	out := make([]vector.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, vector.Record{ID: id, Values: []float32{1}, Metadata: map[string]string{"chunk": "x"}})
	}
	return out, nil
}

type fakePublisher struct {
	msgs []amqp091.Publishing
	keys []string
}

func (f *fakePublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	f.keys = append(f.keys, key)
	f.msgs = append(f.msgs, msg)
	return nil
}

type testDeps struct {
	records   *fakeRecords
	stats     *fakeStats
	publisher *fakePublisher
}

func newTestServer(t *testing.T, chunks ...string) (http.Handler, *testDeps) {
	t.Helper()
	deps := &testDeps{
		records: &fakeRecords{records: []graph.Record{{
			Source:   &graph.Entity{ID: "4:a", Labels: []string{"EmailAddress"}, Properties: map[string]any{"address": "a@enron.com"}},
			Target:   &graph.Entity{ID: "4:b", Labels: []string{"EmailAddress"}, Properties: map[string]any{"address": "b@enron.com"}},
			Relation: &graph.Relation{Type: "EMAIL", Key: "e1", Properties: map[string]any{"subject": "Gas"}},
		}}},
		stats:     &fakeStats{},
		publisher: &fakePublisher{},
	}
	client := &fakeAI{chunks: chunks}
	cache := stats.NewCache(stats.CacheParams{Source: deps.stats})

	app := &mid.App{
		Dataset: config.DatasetEmails,
		Domain:  prompt.Email,
		Materializer: graph.NewMaterializer(graph.NewMaterializerParams{
			Source: deps.records,
			Limit:  graph.EmailGraphLimit,
		}),
		Stats:     cache,
		Questions: questions.NewGenerator(questions.NewGeneratorParams{Client: client, Stats: cache}),
		Searcher: search.NewSearcher(search.NewSearcherParams{
			AI:         client,
			Index:      fakeIndex{},
			Emails:     fakeEmails{},
			Summarizer: fakeSummarizer{},
		}),
		Graph:     fakeCypher{},
		Cases:     fakeCases{},
		Documents: fakeOpinions{},
		Vectors:   fakeVectors{},
		Queue:     deps.publisher,
		Metrics:   metrics.NewMetrics(),
	}
	return NewEcho(app, 0), deps
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

func TestPostGraph(t *testing.T) {
	h, deps := newTestServer(t)

	rec := do(h, http.MethodPost, "/api/graph", `{"selectedNodes":["a@enron.com","a@enron.com"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			Nodes []map[string]any `json:"nodes"`
			Links []map[string]any `json:"links"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data.Nodes) != 2 || len(resp.Data.Links) != 1 {
		t.Fatalf("expected 2 nodes and 1 link, got %d and %d", len(resp.Data.Nodes), len(resp.Data.Links))
	}
	if resp.Data.Links[0]["source"] != "4:a" || resp.Data.Links[0]["target"] != "4:b" {
		t.Fatalf("unexpected link %v", resp.Data.Links[0])
	}
	if deps.records.calls != 1 {
		t.Fatalf("expected one store call, got %d", deps.records.calls)
	}
}

func TestPostGraphEmptySeeds(t *testing.T) {
	h, deps := newTestServer(t)

	rec := do(h, http.MethodPost, "/api/graph", `{"selectedNodes":[]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"nodes":[]`) || !strings.Contains(rec.Body.String(), `"links":[]`) {
		t.Fatalf("expected empty subgraph, got %s", rec.Body.String())
	}
	if deps.records.calls != 0 {
		t.Fatalf("expected no store call for empty seeds")
	}
}

func TestPostGraphStoreFailure(t *testing.T) {
	h, deps := newTestServer(t)
	deps.records.err = errors.New("connection refused")

	rec := do(h, http.MethodPost, "/api/graph", `{"selectedNodes":["a@enron.com"]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected no body, got %s", rec.Body.String())
	}
}

func TestStatsRoutes(t *testing.T) {
	h, deps := newTestServer(t)

	var reduced stats.GraphStats
	rec := do(h, http.MethodGet, "/api/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reduced); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if len(reduced.MostConnectedNodes) != 3 {
		t.Fatalf("expected reduced most connected nodes, got %d", len(reduced.MostConnectedNodes))
	}

	var full stats.GraphStats
	rec = do(h, http.MethodGet, "/api/stats?full=true", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &full); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if len(full.MostConnectedNodes) != 5 {
		t.Fatalf("expected full most connected nodes, got %d", len(full.MostConnectedNodes))
	}
	if n := deps.stats.computations.Load(); n != 1 {
		t.Fatalf("expected one aggregation, got %d", n)
	}

	if rec := do(h, http.MethodDelete, "/api/stats", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	do(h, http.MethodGet, "/api/stats", "")
	if n := deps.stats.computations.Load(); n != 2 {
		t.Fatalf("expected recomputation after invalidation, got %d", n)
	}
}

func TestPostQuestions(t *testing.T) {
	h, _ := newTestServer(t,
		`{"entries":[{"question":"Who wrote`,
		` most?","cypher":"MATCH (a:EmailAddress) RETURN a LIMIT 25"}]}`,
	)

	rec := do(h, http.MethodPost, "/api/questions", `{"nodes":[{"id":"4:a","label":"EmailAddress"}],"links":[],"summary":"Gas trades"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var lines []map[string]any
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("invalid ndjson line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, line)
	}
	if len(lines) < 2 {
		t.Fatalf("expected partial and final lines, got %d", len(lines))
	}
	last := lines[len(lines)-1]
	if last["done"] != true {
		t.Fatalf("expected final line to be done, got %v", last)
	}
	entries, _ := last["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %v", last["entries"])
	}
}

func TestPostSearch(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(h, http.MethodPost, "/api/search", `{"query":"gas prices"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res search.EmailResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode search result: %v", err)
	}
	if res.Summary != "summary of Gas" {
		t.Fatalf("unexpected summary %q", res.Summary)
	}
	if len(res.UniqueEmailTo) != 1 || res.UniqueEmailTo[0] != "b@enron.com" {
		t.Fatalf("expected null recipients to be excluded, got %v", res.UniqueEmailTo)
	}

	if rec := do(h, http.MethodPost, "/api/search", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing query, got %d", rec.Code)
	}
}

func TestPostCypher(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		body string
		code int
	}{
		{`{"cypher":"MATCH (n) RETURN count(n) AS count"}`, http.StatusOK},
		{`{"cypher":""}`, http.StatusBadRequest},
		{`{"cypher":"MATCH (n) DELETE n"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(h, http.MethodPost, "/api/cypher", tt.body); rec.Code != tt.code {
			t.Fatalf("%s: expected %d, got %d", tt.body, tt.code, rec.Code)
		}
	}
}

func TestGetOpinion(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		target string
		code   int
	}{
		{"/api/opinions/12", http.StatusOK},
		{"/api/opinions/13", http.StatusNotFound},
		{"/api/opinions/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(h, http.MethodGet, tt.target, ""); rec.Code != tt.code {
			t.Fatalf("%s: expected %d, got %d", tt.target, tt.code, rec.Code)
		}
	}
}

func TestPostVectors(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(h, http.MethodPost, "/api/vectors", `{"ids":["tx1_0","tx1_1"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Results []vector.Record `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode vectors: %v", err)
	}
	if len(resp.Results) != 2 || resp.Results[1].ID != "tx1_1" {
		t.Fatalf("unexpected results %+v", resp.Results)
	}

	if rec := do(h, http.MethodPost, "/api/vectors", `{"ids":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty ids, got %d", rec.Code)
	}
}

func TestPostIngestEmails(t *testing.T) {
	h, deps := newTestServer(t)

	rec := do(h, http.MethodPost, "/api/ingest/emails", `{"messages":["From: a@enron.com\n\nhi","From: b@enron.com\n\nhey"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.IDs) != 2 || len(deps.publisher.msgs) != 2 {
		t.Fatalf("expected two enqueued jobs, got %d ids and %d messages", len(resp.IDs), len(deps.publisher.msgs))
	}
	if deps.publisher.keys[0] != queue.IngestQueue {
		t.Fatalf("expected publish to %s, got %s", queue.IngestQueue, deps.publisher.keys[0])
	}
	var msg queue.IngestMessage
	if err := json.Unmarshal(deps.publisher.msgs[1].Body, &msg); err != nil {
		t.Fatalf("decode queued message: %v", err)
	}
	if msg.ID != resp.IDs[1] || !strings.HasPrefix(msg.Message, "From: b@enron.com") {
		t.Fatalf("unexpected queued message %+v", msg)
	}

	if rec := do(h, http.MethodPost, "/api/ingest/emails", `{"messages":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for no messages, got %d", rec.Code)
	}
}

func TestGetCase(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(h, http.MethodGet, "/api/cases/51200", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var props map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &props); err != nil {
		t.Fatalf("decode case: %v", err)
	}
	if props["name"] != "Roe v. Wade" || props["decided_date"] != "1973-01-22" {
		t.Fatalf("unexpected case %v", props)
	}

	tests := []struct {
		target string
		code   int
	}{
		{"/api/cases/1", http.StatusNotFound},
		{"/api/cases/500", http.StatusInternalServerError},
		{"/api/cases/roe", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(h, http.MethodGet, tt.target, ""); rec.Code != tt.code {
			t.Fatalf("%s: expected %d, got %d", tt.target, tt.code, rec.Code)
		}
	}
}

func TestPostIngestCases(t *testing.T) {
	h, deps := newTestServer(t)

	body := `{"cases":[
		{"case":{"ID":51200,"name":"Roe v. Wade","written_opinion":[{"id":7,"title":"Majority"}]},"opinions":[{"id":7,"content":"Affirmed."}]},
		{"case":{"ID":51201,"name":"Doe v. Bolton"}}
	]}`
	rec := do(h, http.MethodPost, "/api/ingest/cases", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.IDs) != 2 || len(deps.publisher.msgs) != 2 {
		t.Fatalf("expected two enqueued jobs, got %d ids and %d messages", len(resp.IDs), len(deps.publisher.msgs))
	}
	if deps.publisher.keys[0] != queue.CaseIngestQueue {
		t.Fatalf("expected publish to %s, got %s", queue.CaseIngestQueue, deps.publisher.keys[0])
	}
	var msg queue.CaseIngestMessage
	if err := json.Unmarshal(deps.publisher.msgs[0].Body, &msg); err != nil {
		t.Fatalf("decode queued message: %v", err)
	}
	if msg.ID != resp.IDs[0] || msg.Case.ID != 51200 || len(msg.Opinions) != 1 || msg.Opinions[0].Content != "Affirmed." {
		t.Fatalf("unexpected queued message %+v", msg)
	}

	for _, bad := range []string{`{"cases":[]}`, `{"cases":[{"case":{"name":"No id"}}]}`, `{"cases":[{"case":{"ID":1}}]}`} {
		if rec := do(h, http.MethodPost, "/api/ingest/cases", bad); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", bad, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t)
	do(h, http.MethodPost, "/api/graph", `{"selectedNodes":["a@enron.com"]}`)

	rec := do(h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `graph_explorer_materialize_requests_total{dataset="enron",status="ok"} 1`) {
		t.Fatalf("materialize counter missing from metrics output")
	}
}

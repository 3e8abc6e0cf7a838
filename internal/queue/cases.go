package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/OFFIS-RIT/graph-explorer/internal/storage"
	"github.com/OFFIS-RIT/graph-explorer/internal/util"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"
	"github.com/OFFIS-RIT/graph-explorer/pkg/store"
	"github.com/OFFIS-RIT/graph-explorer/pkg/vector"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CaseIngestQueue receives court cases to add to the graph, the vector index
// and the opinion store.
const CaseIngestQueue = "case_ingest_queue"

// CaseIngestMessage is the body of a case_ingest_queue message. Case is an
// Oyez case document; Opinions carries the texts of its written opinions.
type CaseIngestMessage struct {
	ID       string        `json:"id"`
	Case     Case          `json:"case"`
	Opinions []OpinionText `json:"opinions"`
}

// NewCaseIngestMessage wraps a case and its opinion texts with a fresh job id.
func NewCaseIngestMessage(c Case, opinions []OpinionText) (CaseIngestMessage, error) {
	id, err := gonanoid.New()
	if err != nil {
		return CaseIngestMessage{}, fmt.Errorf("generate job id: %w", err)
	}
	return CaseIngestMessage{ID: id, Case: c, Opinions: opinions}, nil
}

// OpinionText is the content of one written opinion, keyed by the opinion id
// used in the case document.
type OpinionText struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// Case is the subset of an Oyez case document the graph is built from.
type Case struct {
	ID               int64            `json:"ID" validate:"required"`
	Name             string           `json:"name" validate:"required"`
	DocketNumber     string           `json:"docket_number"`
	Term             string           `json:"term"`
	FirstParty       string           `json:"first_party"`
	FirstPartyLabel  string           `json:"first_party_label"`
	SecondParty      string           `json:"second_party"`
	SecondPartyLabel string           `json:"second_party_label"`
	Timeline         []CaseEvent      `json:"timeline"`
	Advocates        []CaseAdvocate   `json:"advocates"`
	Decisions        []CaseDecision   `json:"decisions"`
	DecidedBy        *CaseCourt       `json:"decided_by"`
	WrittenOpinion   []WrittenOpinion `json:"written_opinion"`
}

// CaseEvent is a timeline entry. Dates are unix seconds.
type CaseEvent struct {
	Event string  `json:"event"`
	Dates []int64 `json:"dates"`
}

type CaseAdvocate struct {
	Advocate *struct {
		Name string `json:"name"`
	} `json:"advocate"`
	Description string `json:"advocate_description"`
}

type CaseDecision struct {
	WinningParty string     `json:"winning_party"`
	DecisionType string     `json:"decision_type"`
	Votes        []CaseVote `json:"votes"`
}

type CaseVote struct {
	Member      Justice `json:"member"`
	Vote        string  `json:"vote"`
	OpinionType string  `json:"opinion_type"`
}

type CaseCourt struct {
	Name    string    `json:"name"`
	Members []Justice `json:"members"`
}

type Justice struct {
	ID   int64  `json:"ID"`
	Name string `json:"name"`
}

type WrittenOpinion struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func decodeCaseIngestMessage(body []byte) (CaseIngestMessage, error) {
	var msg CaseIngestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return CaseIngestMessage{}, Permanent(fmt.Errorf("decode case ingest message: %w", err))
	}
	if msg.Case.ID == 0 || strings.TrimSpace(msg.Case.Name) == "" {
		return CaseIngestMessage{}, Permanent(errors.New("case id and name are required"))
	}
	return msg, nil
}

// DecidedDate is the first timeline date as YYYY-MM-DD in UTC, or "".
func (c Case) DecidedDate() string {
	if len(c.Timeline) == 0 || len(c.Timeline[0].Dates) == 0 {
		return ""
	}
	return time.Unix(c.Timeline[0].Dates[0], 0).UTC().Format(time.DateOnly)
}

// Record converts c to the graph representation. Parties are linked by their
// party labels, e.g. Petitioner.
func (c Case) Record() store.CaseRecord {
	rec := store.CaseRecord{
		ID:           c.ID,
		Name:         c.Name,
		DocketNumber: c.DocketNumber,
		Term:         c.Term,
		DecidedDate:  c.DecidedDate(),
	}
	if c.FirstParty != "" {
		rec.Parties = append(rec.Parties, store.CaseParty{Name: c.FirstParty, Role: c.FirstPartyLabel})
	}
	if c.SecondParty != "" {
		rec.Parties = append(rec.Parties, store.CaseParty{Name: c.SecondParty, Role: c.SecondPartyLabel})
	}
	for _, a := range c.Advocates {
		if a.Advocate == nil {
			continue
		}
		rec.Advocates = append(rec.Advocates, store.CaseAdvocate{Name: a.Advocate.Name, Description: a.Description})
	}
	if c.DecidedBy != nil {
		for _, m := range c.DecidedBy.Members {
			rec.Justices = append(rec.Justices, store.CaseJustice{ID: m.ID, Name: m.Name})
		}
	}
	for _, d := range c.Decisions {
		dec := store.CaseDecision{WinningParty: d.WinningParty, DecisionType: d.DecisionType}
		for _, v := range d.Votes {
			dec.Votes = append(dec.Votes, store.CaseVote{
				Justice:     store.CaseJustice{ID: v.Member.ID, Name: v.Member.Name},
				Vote:        v.Vote,
				OpinionType: v.OpinionType,
			})
		}
		rec.Decisions = append(rec.Decisions, dec)
	}
	for _, o := range c.WrittenOpinion {
		if o.ID == 0 {
			continue
		}
		rec.Opinions = append(rec.Opinions, store.CaseOpinion{ID: strconv.FormatInt(o.ID, 10), Title: o.Title})
	}
	return rec
}

// documents pairs the written opinions of msg with their texts. Opinions
// without text are left out; texts for opinions the case does not list are
// ignored.
func (msg CaseIngestMessage) documents() []storage.Opinion {
	texts := make(map[int64]string, len(msg.Opinions))
	for _, o := range msg.Opinions {
		texts[o.ID] = util.SanitizePostgresText(o.Content)
	}
	var out []storage.Opinion
	for _, o := range msg.Case.WrittenOpinion {
		content := texts[o.ID]
		if o.ID == 0 || strings.TrimSpace(content) == "" {
			continue
		}
		out = append(out, storage.Opinion{ID: strconv.FormatInt(o.ID, 10), CaseID: msg.Case.ID, Content: content})
	}
	return out
}

// ProcessCaseMessage handles one case_ingest_queue message body: it extracts
// entities from the opinions, writes the case graph, stores the opinion
// documents and indexes the opinion chunks in the case namespace.
func (in *Ingester) ProcessCaseMessage(ctx context.Context, body []byte) error {
	msg, err := decodeCaseIngestMessage(body)
	if err != nil {
		return err
	}

	rec := msg.Case.Record()
	docs := msg.documents()
	if in.extractor != nil && len(docs) > 0 {
		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Content
		}
		res, err := in.extractor.Extract(ctx, texts)
		if err != nil {
			return fmt.Errorf("extract entities of case %d: %w", rec.ID, err)
		}
		rec.Entities, rec.Relations = res.Entities, res.Relations
	}

	if in.locker == nil {
		return in.storeCase(ctx, msg.ID, rec, docs)
	}
	return in.locker.WithLease(ctx, "case:"+strconv.FormatInt(rec.ID, 10), func(ctx context.Context) error {
		return in.storeCase(ctx, msg.ID, rec, docs)
	})
}

func (in *Ingester) storeCase(ctx context.Context, jobID string, rec store.CaseRecord, docs []storage.Opinion) error {
	if err := in.graph.SaveCase(ctx, rec); err != nil {
		return graphError(err)
	}

	caseID := strconv.FormatInt(rec.ID, 10)
	if in.documents != nil {
		if err := in.documents.PutOpinions(ctx, caseID, docs); err != nil {
			return fmt.Errorf("store opinions of case %s: %w", caseID, err)
		}
	} else {
		logger.Warn("[Ingest] No document store configured, opinions not stored", "case_id", caseID)
	}

	var records []vector.Record
	for _, d := range docs {
		chunks := util.WrapText(d.Content, ChunkWidth)
		recs, err := in.embed(ctx, caseID+"_"+d.ID+"_", chunks, map[string]string{
			"case_id":    caseID,
			"opinion_id": d.ID,
		})
		if err != nil {
			return err
		}
		records = append(records, recs...)
	}
	if err := in.upsert(ctx, vector.NamespaceCases, records); err != nil {
		return err
	}

	logger.Info("[Ingest] Stored case", "job_id", jobID, "case_id", caseID, "opinions", len(docs), "entities", len(rec.Entities), "chunks", len(records))
	return nil
}

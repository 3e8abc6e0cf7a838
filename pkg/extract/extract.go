// Package extract finds named entities and their relations in court opinions
// with a structured language model completion.
package extract

import (
	"context"
	"fmt"
	"slices"

	"github.com/OFFIS-RIT/graph-explorer/internal/util"
	"github.com/OFFIS-RIT/graph-explorer/pkg/ai"
	"github.com/OFFIS-RIT/graph-explorer/pkg/graph"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"
	"github.com/OFFIS-RIT/graph-explorer/pkg/store"

	"golang.org/x/sync/errgroup"
)

// DefaultChunkWidth is the length of the text pieces sent in one request.
const DefaultChunkWidth = 4000

// EntityKinds are the entity types the model may return.
var EntityKinds = []graph.EntityKind{graph.KindOrg, graph.KindLoc, graph.KindPer, graph.KindMisc}

// RelationKinds are the relation types the model may return.
var RelationKinds = []graph.RelationKind{
	graph.RelAlternateName, graph.RelBasedIn, graph.RelLivedIn, graph.RelReligion,
	graph.RelEmployeeOf, graph.RelWorksFor, graph.RelParentOf, graph.RelChildOf,
	graph.RelHasShareholder, graph.RelOwns, graph.RelSiblingOf, graph.RelRelatedTo,
	graph.RelCharges, graph.RelOrigin, graph.RelBornIn, graph.RelSchoolAttended,
	graph.RelHasTitle, graph.RelPartOf, graph.RelWebsite,
}

type extractEntity struct {
	Name string `json:"name" jsonschema_description:"Name of the entity exactly as written in the text"`
	Type string `json:"type" jsonschema_description:"One of the provided entity types"`
}

type extractRelation struct {
	Head     string `json:"head" jsonschema_description:"Name of the first entity"`
	Relation string `json:"relation" jsonschema_description:"One of the provided relation types"`
	Tail     string `json:"tail" jsonschema_description:"Name of the second entity"`
}

type extractResponse struct {
	Entities  []extractEntity   `json:"entities" jsonschema_description:"Named entities found in the text"`
	Relations []extractRelation `json:"relations" jsonschema_description:"Relations between the extracted entities"`
}

type formatter interface {
	GenerateCompletionWithFormat(ctx context.Context, name string, description string, prompt string, out any, opts ...ai.GenerateOption) error
}

// Result holds the entities and relations of a set of texts. Entities are
// unique by name and relations by head, relation and tail.
type Result struct {
	Entities  []store.CaseEntity
	Relations []store.CaseRelation
}

// Extractor sends text chunks to the model and merges the answers.
//
// An Extractor should be created using NewExtractor.
type Extractor struct {
	client      formatter
	chunkWidth  int
	maxParallel int
	opts        []ai.GenerateOption
}

// NewExtractorParams configures NewExtractor. ChunkWidth defaults to
// DefaultChunkWidth; MaxParallel <= 0 sends all chunks at once.
type NewExtractorParams struct {
	Client      formatter
	ChunkWidth  int
	MaxParallel int
	Model       string
}

func NewExtractor(params NewExtractorParams) *Extractor {
	width := params.ChunkWidth
	if width <= 0 {
		width = DefaultChunkWidth
	}

	entityTypes := make([]string, len(EntityKinds))
	for i, k := range EntityKinds {
		entityTypes[i] = string(k)
	}
	relationTypes := make([]string, len(RelationKinds))
	for i, k := range RelationKinds {
		relationTypes[i] = string(k)
	}
	opts := []ai.GenerateOption{
		ai.WithSystemPrompts(ai.ExtractEntitiesPrompt(entityTypes, relationTypes)),
		ai.WithTemperature(0),
	}
	if params.Model != "" {
		opts = append(opts, ai.WithModel(params.Model))
	}

	return &Extractor{
		client:      params.Client,
		chunkWidth:  width,
		maxParallel: params.MaxParallel,
		opts:        opts,
	}
}

// Extract runs extraction over every chunk of texts. Answers are merged in
// chunk order, so the first mention of an entity decides its type. Types and
// relations outside EntityKinds and RelationKinds are dropped.
func (x *Extractor) Extract(ctx context.Context, texts []string) (Result, error) {
	var chunks []string
	for _, text := range texts {
		chunks = append(chunks, util.WrapText(text, x.chunkWidth)...)
	}
	if len(chunks) == 0 {
		return Result{}, nil
	}

	responses := make([]extractResponse, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	if x.maxParallel > 0 {
		g.SetLimit(x.maxParallel)
	}
	for i, chunk := range chunks {
		g.Go(func() error {
			err := x.client.GenerateCompletionWithFormat(
				gctx,
				"extract_entities_and_relations",
				"Extract named entities and their relations from a court opinion.",
				chunk,
				&responses[i],
				x.opts...,
			)
			if err != nil {
				return fmt.Errorf("extract chunk %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := merge(responses)
	logger.Debug("[Extract] Extracted entities", "chunks", len(chunks), "entities", len(res.Entities), "relations", len(res.Relations))
	return res, nil
}

func merge(responses []extractResponse) Result {
	var res Result
	kinds := map[string]string{}
	seenRel := map[store.CaseRelation]struct{}{}

	for _, r := range responses {
		for _, e := range r.Entities {
			if e.Name == "" || !slices.Contains(EntityKinds, graph.EntityKind(e.Type)) {
				continue
			}
			if _, ok := kinds[e.Name]; ok {
				continue
			}
			kinds[e.Name] = e.Type
			res.Entities = append(res.Entities, store.CaseEntity{Name: e.Name, Kind: e.Type})
		}
	}
	for _, r := range responses {
		for _, rel := range r.Relations {
			if !slices.Contains(RelationKinds, graph.RelationKind(rel.Relation)) {
				continue
			}
			if _, ok := kinds[rel.Head]; !ok {
				continue
			}
			if _, ok := kinds[rel.Tail]; !ok {
				continue
			}
			cr := store.CaseRelation{Head: rel.Head, Relation: rel.Relation, Tail: rel.Tail}
			if _, ok := seenRel[cr]; ok {
				continue
			}
			seenRel[cr] = struct{}{}
			res.Relations = append(res.Relations, cr)
		}
	}
	return res
}

package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// maxLookupResults caps the concepts returned by one lookup.
const maxLookupResults = 25

// AnnotateInput is the input schema for the annotate tool.
type AnnotateInput struct {
	Text string `json:"text" jsonschema:"the clinical text to annotate"`
}

// AnnotateOutput is the output schema for the annotate tool.
type AnnotateOutput struct {
	Entities []EntityOutput `json:"entities"`
	Count    int            `json:"count"`
}

// EntityOutput represents one linked concept mention.
type EntityOutput struct {
	ID          int               `json:"id"`
	CUI         string            `json:"cui"`
	PrettyName  string            `json:"pretty_name,omitempty"`
	SourceValue string            `json:"source_value"`
	Start       int               `json:"start"`
	End         int               `json:"end"`
	Similarity  float64           `json:"context_similarity"`
	Types       []string          `json:"types,omitempty"`
	Meta        map[string]string `json:"meta_anns,omitempty"`
}

// LookupInput is the input schema for the lookup_concept tool.
type LookupInput struct {
	Name string `json:"name" jsonschema:"a surface form such as 'heart attack'"`
}

// LookupOutput is the output schema for the lookup_concept tool.
type LookupOutput struct {
	Concepts []ConceptOutput `json:"concepts"`
	Count    int             `json:"count"`
}

// ConceptOutput is the serialisable view of one concept.
type ConceptOutput struct {
	CUI        string              `json:"cui"`
	Name       string              `json:"name"`
	Names      []string            `json:"names,omitempty"`
	TypeIDs    []string            `json:"type_ids,omitempty"`
	Group      string              `json:"group,omitempty"`
	TrainCount int                 `json:"train_count"`
	AddlInfo   map[string][]string `json:"addl_info,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "annotate",
		Description: "Detect and link medical concepts in a text",
	}, s.handleAnnotate)

	if s.ports.Concepts != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "lookup_concept",
			Description: "Find the concepts a name links to",
		}, s.handleLookup)
	}

	if s.ports.Trainer != nil {
		s.registerCurationTools()
	}
}

// handleAnnotate handles the annotate tool invocation.
func (s *Server) handleAnnotate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnnotateInput,
) (*mcp.CallToolResult, AnnotateOutput, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, AnnotateOutput{}, errors.New("text is required")
	}

	out, err := s.ports.Annotator.Annotate(ctx, input.Text)
	if err != nil {
		return nil, AnnotateOutput{}, err
	}

	ids := out.EntityIDs()
	output := AnnotateOutput{
		Entities: make([]EntityOutput, 0, len(ids)),
		Count:    len(ids),
	}
	for _, id := range ids {
		output.Entities = append(output.Entities, toEntityOutput(out.Entities[id]))
	}

	return nil, output, nil
}

// handleLookup handles the lookup_concept tool invocation.
func (s *Server) handleLookup(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input LookupInput,
) (*mcp.CallToolResult, LookupOutput, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, LookupOutput{}, errors.New("name is required")
	}

	concepts := s.ports.Concepts.Lookup(input.Name)
	if len(concepts) > maxLookupResults {
		concepts = concepts[:maxLookupResults]
	}

	output := LookupOutput{
		Concepts: make([]ConceptOutput, len(concepts)),
		Count:    len(concepts),
	}
	for i := range concepts {
		output.Concepts[i] = toConceptOutput(concepts[i])
	}

	return nil, output, nil
}

func toEntityOutput(e domain.EntityOutput) EntityOutput {
	eo := EntityOutput{
		ID:          e.ID,
		CUI:         e.CUI,
		PrettyName:  e.PrettyName,
		SourceValue: e.SourceValue,
		Start:       e.Start,
		End:         e.End,
		Similarity:  e.ContextSimilarity,
		Types:       e.Types,
	}
	if len(e.MetaAnns) > 0 {
		eo.Meta = make(map[string]string, len(e.MetaAnns))
		for name, m := range e.MetaAnns {
			eo.Meta[name] = m.Value
		}
	}
	return eo
}

func toConceptOutput(c domain.Concept) ConceptOutput {
	return ConceptOutput{
		CUI:        c.CUI,
		Name:       c.DisplayName(),
		Names:      c.Names,
		TypeIDs:    c.TypeIDs,
		Group:      c.Group,
		TrainCount: c.TrainCount,
		AddlInfo:   c.AddlInfo,
	}
}

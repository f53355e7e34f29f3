package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// AddConceptInput is the input schema for the add_concept tool.
type AddConceptInput struct {
	CUI           string   `json:"cui" jsonschema:"the concept unique identifier"`
	Name          string   `json:"name" jsonschema:"the surface form to link to the concept"`
	Text          string   `json:"text,omitempty" jsonschema:"a text containing the mention, used to train context"`
	Start         int      `json:"start,omitempty" jsonschema:"character offset where the mention starts in text"`
	End           int      `json:"end,omitempty" jsonschema:"character offset where the mention ends in text"`
	Negative      bool     `json:"negative,omitempty" jsonschema:"train the mention away from the concept"`
	DevalueOthers bool     `json:"devalue_others,omitempty" jsonschema:"train other concepts sharing the name negatively"`
	Create        bool     `json:"create,omitempty" jsonschema:"create the concept when it is unknown"`
	PreferredName string   `json:"preferred_name,omitempty" jsonschema:"display name for a created concept"`
	TypeIDs       []string `json:"type_ids,omitempty" jsonschema:"type ids for a created concept"`
}

// AddConceptOutput is the output schema for the add_concept tool.
type AddConceptOutput struct {
	CUI     string `json:"cui"`
	Trained bool   `json:"trained"`
}

// UnlinkInput is the input schema for the unlink_name tool.
type UnlinkInput struct {
	CUI  string `json:"cui" jsonschema:"the concept unique identifier"`
	Name string `json:"name" jsonschema:"the surface form that must stop linking to the concept"`
}

// UnlinkOutput is the output schema for the unlink_name tool.
type UnlinkOutput struct {
	CUI  string `json:"cui"`
	Name string `json:"name"`
}

// registerCurationTools registers the tools that change the loaded model.
func (s *Server) registerCurationTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_concept",
		Description: "Link a name to a concept and optionally train it on a mention. Changes last for this session only.",
	}, s.handleAddConcept)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "unlink_name",
		Description: "Stop a name from linking to a concept. Changes last for this session only.",
	}, s.handleUnlink)
}

// handleAddConcept handles the add_concept tool invocation.
func (s *Server) handleAddConcept(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AddConceptInput,
) (*mcp.CallToolResult, AddConceptOutput, error) {
	if strings.TrimSpace(input.CUI) == "" || strings.TrimSpace(input.Name) == "" {
		return nil, AddConceptOutput{}, errors.New("cui and name are required")
	}

	req := domain.ConceptTraining{
		CUI:           input.CUI,
		Name:          input.Name,
		Negative:      input.Negative,
		DevalueOthers: input.DevalueOthers,
		DoAddConcept:  input.Create,
		TypeIDs:       input.TypeIDs,
		PreferredName: input.PreferredName,
	}
	if input.Text != "" {
		start, end, err := mentionSpan(input)
		if err != nil {
			return nil, AddConceptOutput{}, err
		}
		req.Doc = &domain.AnnotatedDocument{Text: input.Text}
		req.Start, req.End = start, end
	}

	if err := s.ports.Trainer.AddAndTrainConcept(ctx, req); err != nil {
		return nil, AddConceptOutput{}, err
	}
	return nil, AddConceptOutput{CUI: input.CUI, Trained: req.Doc != nil}, nil
}

// mentionSpan returns the given span, or the first case-insensitive
// occurrence of the name when no span is given. Offsets are in characters.
func mentionSpan(input AddConceptInput) (int, int, error) {
	n := utf8.RuneCountInString(input.Text)
	if input.Start != 0 || input.End != 0 {
		if input.Start < 0 || input.End > n || input.Start >= input.End {
			return 0, 0, fmt.Errorf("span [%d,%d) is outside the text", input.Start, input.End)
		}
		return input.Start, input.End, nil
	}

	// Lower-casing maps rune to rune, so character offsets carry over.
	lower := strings.ToLower(input.Text)
	idx := strings.Index(lower, strings.ToLower(input.Name))
	if idx < 0 {
		return 0, 0, fmt.Errorf("%q does not occur in the text", input.Name)
	}
	start := utf8.RuneCountInString(lower[:idx])
	return start, start + utf8.RuneCountInString(input.Name), nil
}

// handleUnlink handles the unlink_name tool invocation.
func (s *Server) handleUnlink(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input UnlinkInput,
) (*mcp.CallToolResult, UnlinkOutput, error) {
	if strings.TrimSpace(input.CUI) == "" || strings.TrimSpace(input.Name) == "" {
		return nil, UnlinkOutput{}, errors.New("cui and name are required")
	}
	s.ports.Trainer.UnlinkConceptName(input.CUI, input.Name)
	return nil, UnlinkOutput(input), nil
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for MedCAT resources.
	uriScheme = "medcat://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	if s.ports.Concepts == nil {
		return
	}

	// Template for a single concept.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "concepts/{cui}",
		Name:        "concept",
		Description: "A concept database entry: names, types, group and training count",
		MIMEType:    "application/json",
	}, s.handleConceptResource)
}

// handleConceptResource returns one concept as JSON.
func (s *Server) handleConceptResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Concepts == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract the CUI from URI: medcat://concepts/{cui}
	cui := extractCUI(req.Params.URI)
	if cui == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	concept, err := s.ports.Concepts.Concept(cui)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting concept: %w", err)
	}

	data, err := json.MarshalIndent(toConceptOutput(concept), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling concept: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractCUI extracts the CUI from a URI like medcat://concepts/{cui}.
func extractCUI(uri string) string {
	const prefix = uriScheme + "concepts/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	cui := strings.TrimPrefix(uri, prefix)
	if strings.Contains(cui, "/") {
		return ""
	}
	return cui
}

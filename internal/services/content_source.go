package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/apierr"
)

// TOCEntry is one table-of-contents item; Children carry the hierarchy that
// becomes PART_OF edges.
type TOCEntry struct {
	Title    string     `json:"title"`
	Page     *int       `json:"page,omitempty"`
	Children []TOCEntry `json:"children,omitempty"`
}

type GlossaryTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition,omitempty"`
}

// ContentStructure is what the extraction pipeline produced for a content
// item. Extraction itself is out of scope; this service only consumes its
// output.
type ContentStructure struct {
	Title    string         `json:"title"`
	TOC      []TOCEntry     `json:"toc,omitempty"`
	Glossary []GlossaryTerm `json:"glossary,omitempty"`
}

// ContentSource resolves the structural signals for a content item.
type ContentSource interface {
	Structure(ctx context.Context, contentID uuid.UUID) (*ContentStructure, error)
}

// HTTPContentSource fetches structure from the content service API.
type HTTPContentSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPContentSource(baseURL string) *HTTPContentSource {
	return &HTTPContentSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *HTTPContentSource) Structure(ctx context.Context, contentID uuid.UUID) (*ContentStructure, error) {
	url := fmt.Sprintf("%s/api/v1/contents/%s/structure", s.baseURL, contentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch content structure: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apierr.NotFound("content_not_found", fmt.Errorf("content %s has no structure", contentID))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content structure request failed with status %d", resp.StatusCode)
	}

	var out ContentStructure
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode content structure: %w", err)
	}
	return &out, nil
}

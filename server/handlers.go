package server

import (
	"context"
	"log/slog"
	"strings"

	penum "github.com/viktorlott/enum-shape"
	"github.com/viktorlott/enum-shape/expand"
	"github.com/viktorlott/enum-shape/middleware"
)

// ExpandRequest expands one attribute. An empty Attr registers Input as a
// trait.
type ExpandRequest struct {
	Attr  string `json:"attr"`
	Input string `json:"input" validate:"required"`
	Stubs *bool  `json:"stubs,omitempty"`
}

// AuxRequest runs an auxiliary expander.
type AuxRequest struct {
	Kind  string `json:"kind" validate:"required,oneof=to_string fmt into deref static_str"`
	Arg   string `json:"arg"`
	Input string `json:"input" validate:"required"`
}

// SourceRequest expands every attribute in a Rust file.
type SourceRequest struct {
	File   string `json:"file" validate:"max=4096"`
	Source string `json:"source" validate:"required"`
	Stubs  *bool  `json:"stubs,omitempty"`
}

// SourceResult is the rewritten file.
type SourceResult struct {
	Code string `json:"code"`
}

// TraitRequest registers a trait declaration.
type TraitRequest struct {
	Source string `json:"source" validate:"required"`
}

// TraitResult names the registered trait.
type TraitResult struct {
	Name string `json:"name"`
}

// ListTraitsParams filters GET /traits.
type ListTraitsParams struct {
	Prefix string `schema:"prefix"`
	Limit  int    `schema:"limit" validate:"gte=0,lte=1000"`
}

// TraitList is the sorted list of registered trait names.
type TraitList struct {
	Traits []string `json:"traits"`
	Total  int      `json:"total"`
}

// expander returns an Expander for one request. Its logger carries the
// request id.
func (s *Server) expander(ctx context.Context, stubs *bool) *penum.Expander {
	logger := s.log().With(slog.String("request_id", middleware.RequestIDFromContext(ctx)))
	x := penum.New().WithRegistry(s.reg()).WithLogger(logger)
	if (stubs == nil && s.stubs) || (stubs != nil && *stubs) {
		x = x.WithAssertionStubs()
	}
	return x
}

func (s *Server) expand(ctx context.Context, req *ExpandRequest) (*penum.Output, error) {
	return s.expander(ctx, req.Stubs).Expand(req.Attr, req.Input)
}

func (s *Server) expandAux(ctx context.Context, req *AuxRequest) (*penum.Output, error) {
	kind, _ := expand.ParseKind(req.Kind)
	return s.expander(ctx, nil).ExpandAux(kind, req.Arg, req.Input)
}

func (s *Server) expandSource(ctx context.Context, req *SourceRequest) (*SourceResult, error) {
	file := req.File
	if file == "" {
		file = "input.rs"
	}
	code, err := s.expander(ctx, req.Stubs).ExpandSource(file, req.Source)
	if err != nil {
		return nil, err
	}
	return &SourceResult{Code: code}, nil
}

func (s *Server) registerTrait(ctx context.Context, req *TraitRequest) (*TraitResult, error) {
	name, err := s.expander(ctx, nil).RegisterTrait(req.Source)
	if err != nil {
		return nil, err
	}
	return &TraitResult{Name: name}, nil
}

func (s *Server) listTraits(ctx context.Context, req *ListTraitsParams) (*TraitList, error) {
	names := s.reg().Names()
	out := &TraitList{Traits: []string{}}
	for _, name := range names {
		if !strings.HasPrefix(name, req.Prefix) {
			continue
		}
		out.Total++
		if req.Limit == 0 || len(out.Traits) < req.Limit {
			out.Traits = append(out.Traits, name)
		}
	}
	return out, nil
}

package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	penum "github.com/viktorlott/enum-shape"
	"github.com/viktorlott/enum-shape/dispatch"
	"github.com/viktorlott/enum-shape/internal/penumtest"
	"github.com/viktorlott/enum-shape/middleware"
)

func newServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	s := New().WithRegistry(dispatch.NewStdRegistry().WithLogger(logger)).WithLogger(logger)
	return s, s.Handler()
}

func TestExpandEndpoint(t *testing.T) {
	_, h := newServer(t)
	w := penumtest.NewRequest().POST("/expand").WithJSON(ExpandRequest{
		Attr:  "(T) where T: ^AsRef<str>",
		Input: "enum E { V(String) }",
	}).Do(h)

	penumtest.AssertStatus(t, w, http.StatusOK)
	var out penum.Output
	penumtest.DecodeResult(t, w, &out)
	if out.Impls != 1 || !strings.Contains(out.Code, "impl AsRef<str> for E {") {
		t.Errorf("Output = %+v", out)
	}
	if len(out.Bounds) != 1 || out.Bounds[0] != "String: AsRef<str>" {
		t.Errorf("Bounds = %v", out.Bounds)
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestExpandEndpointStubs(t *testing.T) {
	_, h := newServer(t)
	stubs := true
	w := penumtest.NewRequest().POST("/expand").WithJSON(ExpandRequest{
		Attr:  "(T) where T: Copy",
		Input: "enum E { V(i32) }",
		Stubs: &stubs,
	}).Do(h)

	penumtest.AssertStatus(t, w, http.StatusOK)
	var out penum.Output
	penumtest.DecodeResult(t, w, &out)
	if !strings.Contains(out.Code, "struct _Assert_E_0 where i32: Copy;") {
		t.Errorf("Code =\n%s", out.Code)
	}
}

func TestExpandEndpointErrors(t *testing.T) {
	tests := []struct {
		name       string
		build      func() *penumtest.RequestBuilder
		wantStatus int
		wantCode   string
		wantInMsg  string
	}{
		{
			name: "shape mismatch",
			build: func() *penumtest.RequestBuilder {
				return penumtest.NewRequest().POST("/expand").WithJSON(ExpandRequest{Attr: "(T, U)", Input: "enum E { V(i32) }"})
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   string(CodeExpansionFailed),
			wantInMsg:  "doesn't match pattern",
		},
		{
			name: "missing input",
			build: func() *penumtest.RequestBuilder {
				return penumtest.NewRequest().POST("/expand").WithJSON(ExpandRequest{Attr: "(T)"})
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   string(CodeInvalidArgument),
			wantInMsg:  "Input: required",
		},
		{
			name: "malformed body",
			build: func() *penumtest.RequestBuilder {
				return penumtest.NewRequest().POST("/expand").WithBody("{")
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   string(CodeInvalidArgument),
			wantInMsg:  "failed to decode body",
		},
		{
			name: "unknown field",
			build: func() *penumtest.RequestBuilder {
				return penumtest.NewRequest().POST("/expand").WithBody(`{"input": "enum E { V }", "pattern": "(T)"}`)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   string(CodeInvalidArgument),
			wantInMsg:  "pattern",
		},
		{
			name: "unknown aux kind",
			build: func() *penumtest.RequestBuilder {
				return penumtest.NewRequest().POST("/expand/aux").WithJSON(AuxRequest{Kind: "debug", Input: "enum E { A }"})
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   string(CodeInvalidArgument),
			wantInMsg:  "must be one of",
		},
		{
			name: "wrong method",
			build: func() *penumtest.RequestBuilder {
				return penumtest.NewRequest().GET("/expand")
			},
			wantStatus: http.StatusMethodNotAllowed,
			wantCode:   string(CodeMethodNotAllowed),
		},
		{
			name: "unknown route",
			build: func() *penumtest.RequestBuilder {
				return penumtest.NewRequest().POST("/nope")
			},
			wantStatus: http.StatusNotFound,
			wantCode:   string(CodeNotFound),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newServer(t)
			w := tt.build().Do(h)
			penumtest.AssertStatus(t, w, tt.wantStatus)
			e := penumtest.AssertJSONError(t, w, tt.wantCode)
			if !strings.Contains(e.Message, tt.wantInMsg) {
				t.Errorf("message = %q, want it to contain %q", e.Message, tt.wantInMsg)
			}
		})
	}
}

func TestExpansionFailureDetails(t *testing.T) {
	_, h := newServer(t)
	w := penumtest.NewRequest().POST("/expand").WithJSON(ExpandRequest{Attr: "(i32)", Input: "enum E { A(u8), B(u16) }"}).Do(h)
	e := penumtest.AssertJSONError(t, w, string(CodeExpansionFailed))
	diags, ok := e.Details["diagnostics"].([]any)
	if !ok || len(diags) != 2 {
		t.Fatalf("details = %v, want two diagnostics", e.Details)
	}
	first, _ := diags[0].(map[string]any)
	if first["code"] != "type_mismatch" {
		t.Errorf("first diagnostic = %v", first)
	}
}

func TestExpandAuxEndpoint(t *testing.T) {
	_, h := newServer(t)
	w := penumtest.NewRequest().POST("/expand/aux").WithJSON(AuxRequest{
		Kind:  "into",
		Arg:   "u8",
		Input: "enum Code { Ok = 0, Err = 1 }",
	}).Do(h)

	penumtest.AssertStatus(t, w, http.StatusOK)
	var out penum.Output
	penumtest.DecodeResult(t, w, &out)
	if !strings.Contains(out.Code, "impl Into<u8> for Code {") {
		t.Errorf("Code =\n%s", out.Code)
	}
}

func TestTraitsEndpoints(t *testing.T) {
	_, h := newServer(t)

	w := penumtest.NewRequest().POST("/traits").WithJSON(TraitRequest{Source: "trait Area { fn area(&self) -> f64; }"}).Do(h)
	penumtest.AssertStatus(t, w, http.StatusOK)
	var reg TraitResult
	penumtest.DecodeResult(t, w, &reg)
	if reg.Name != "Area" {
		t.Errorf("Name = %q, want Area", reg.Name)
	}

	w = penumtest.NewRequest().GET("/traits").WithQuery("prefix", "A").Do(h)
	penumtest.AssertStatus(t, w, http.StatusOK)
	var list TraitList
	penumtest.DecodeResult(t, w, &list)
	found := false
	for _, name := range list.Traits {
		if !strings.HasPrefix(name, "A") {
			t.Errorf("trait %q does not match prefix", name)
		}
		found = found || name == "Area"
	}
	if !found {
		t.Errorf("Traits = %v, want Area", list.Traits)
	}

	w = penumtest.NewRequest().GET("/traits").WithQuery("limit", "1").Do(h)
	penumtest.DecodeResult(t, w, &list)
	if len(list.Traits) != 1 || list.Total < 2 {
		t.Errorf("limited list = %+v", list)
	}

	w = penumtest.NewRequest().GET("/traits").WithQuery("limit", "-1").Do(h)
	penumtest.AssertStatus(t, w, http.StatusBadRequest)

	// The registered trait is now usable for dispatch.
	w = penumtest.NewRequest().POST("/expand").WithJSON(ExpandRequest{
		Attr:  "(T) where T: ^Area",
		Input: "enum Shape { Circle(Circle) }",
	}).Do(h)
	penumtest.AssertStatus(t, w, http.StatusOK)
}

func TestExpandSourceEndpoint(t *testing.T) {
	_, h := newServer(t)
	src := "#[to_string]\nenum Greeting { Hello = \"hello\" }\n"
	w := penumtest.NewRequest().POST("/expand/source").WithJSON(SourceRequest{File: "lib.rs", Source: src}).Do(h)

	penumtest.AssertStatus(t, w, http.StatusOK)
	var out SourceResult
	penumtest.DecodeResult(t, w, &out)
	if !strings.Contains(out.Code, "impl std::string::ToString for Greeting {") || strings.Contains(out.Code, "#[to_string]") {
		t.Errorf("Code =\n%s", out.Code)
	}
}

func TestMaxRequestBodySize(t *testing.T) {
	s, _ := newServer(t)
	h := s.WithMaxRequestBodySize(16).Handler()
	w := penumtest.NewRequest().POST("/expand").WithJSON(ExpandRequest{Attr: "(T)", Input: "enum E { V(i32), W(i64) }"}).Do(h)
	penumtest.AssertStatus(t, w, http.StatusRequestEntityTooLarge)
	penumtest.AssertJSONError(t, w, string(CodeTooLarge))
}

func TestMaskInternalErrors(t *testing.T) {
	var buf bytes.Buffer
	s := New().
		WithRegistry(dispatch.NewStdRegistry()).
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))).
		WithErrorTransformer(func(error) *Error { return nil }).
		WithMaskInternalErrors()
	s.register("POST /boom", handle(func(_ context.Context, _ *TraitRequest) (*TraitResult, error) {
		return nil, errors.New("database password is hunter2")
	}))

	w := penumtest.NewRequest().POST("/boom").WithJSON(TraitRequest{Source: "x"}).Do(s.Handler())
	penumtest.AssertStatus(t, w, http.StatusInternalServerError)
	e := penumtest.AssertJSONError(t, w, string(CodeInternal))
	if strings.Contains(e.Message, "hunter2") {
		t.Errorf("internal error leaked: %q", e.Message)
	}
	if !strings.Contains(buf.String(), "hunter2") {
		t.Error("internal error was not logged")
	}
}

func TestPanicRecovery(t *testing.T) {
	s, _ := newServer(t)
	s.register("POST /panic", handle(func(_ context.Context, _ *TraitRequest) (*TraitResult, error) {
		panic("boom")
	}))
	w := penumtest.NewRequest().POST("/panic").WithJSON(TraitRequest{Source: "x"}).Do(s.Handler())
	penumtest.AssertStatus(t, w, http.StatusInternalServerError)
	penumtest.AssertJSONError(t, w, string(CodeInternal))
}

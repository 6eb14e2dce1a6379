package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mercator-hq/darwin/pkg/engine"
	"mercator-hq/darwin/pkg/genepool"
	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/pipeline"
	"mercator-hq/darwin/pkg/pipeline/critic"
	"mercator-hq/darwin/pkg/pipeline/feedback"
	"mercator-hq/darwin/pkg/pipeline/serving"
)

// stageFunc runs one pipeline operation against the current engine.
type stageFunc[Req, Res any] func(ctx context.Context, e *engine.Engine, req Req) (Res, error)

// handle decodes a JSON request, runs fn and encodes its result.
func handle[Req, Res any](s *Server, fn stageFunc[Req, Res]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := s.decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		res, err := fn(r.Context(), s.Engine(), req)
		if err != nil {
			s.logFailure(r, err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return genome.NewValidationError("", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		if errors.Is(err, io.EOF) {
			return genome.NewValidationError("", "request body is empty")
		}
		return genome.NewValidationError("", "malformed JSON: "+err.Error())
	}
	return nil
}

func (s *Server) logFailure(r *http.Request, err error) {
	status, _ := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
}

func chat(ctx context.Context, e *engine.Engine, req serving.Request) (*serving.Response, error) {
	return e.Serving.Respond(ctx, req)
}

func submitFeedback(ctx context.Context, e *engine.Engine, req feedback.Request) (*feedback.Result, error) {
	return e.Feedback.Submit(ctx, req)
}

func evaluate(ctx context.Context, e *engine.Engine, req critic.Request) (*critic.Result, error) {
	return e.Runner.Critic().Evaluate(ctx, req)
}

func mutate(ctx context.Context, e *engine.Engine, p pipeline.Payload) (any, error) {
	res, err := e.Runner.Mutator().Mutate(ctx, p)
	if err != nil {
		return nil, err
	}
	// Downstream stages read the payload back with the challengers added.
	p.ChallengerSKs = res.ChallengerSKs
	return struct {
		pipeline.Payload
		Fallback bool `json:"fallback,omitempty"`
	}{p, res.Fallback}, nil
}

func arbitrate(ctx context.Context, e *engine.Engine, p pipeline.Payload) (any, error) {
	return e.Runner.Judge().Arbitrate(ctx, p)
}

func promote(ctx context.Context, e *engine.Engine, p pipeline.Payload) (any, error) {
	return e.Runner.Supervisor().Promote(ctx, p)
}

// listTickets serves GET /v1/lineages/{pk}/tickets. Optional query
// parameters status, type and chat_sk filter the result.
func (s *Server) listTickets(w http.ResponseWriter, r *http.Request) {
	pk := r.PathValue("pk")
	q := r.URL.Query()
	filter := genepool.TicketFilter{
		Status: genome.TicketStatus(strings.ToUpper(q.Get("status"))),
		Type:   genome.TicketType(strings.ToUpper(q.Get("type"))),
		ChatSK: q.Get("chat_sk"),
	}
	tickets, err := s.Engine().Pool.ListTickets(r.Context(), pk, filter)
	if err != nil {
		s.logFailure(r, err)
		writeError(w, err)
		return
	}
	if tickets == nil {
		tickets = []*genome.Ticket{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pk": pk, "tickets": tickets})
}

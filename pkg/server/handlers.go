package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"mercator-hq/saturn/pkg/governance"
	"mercator-hq/saturn/pkg/pipeline"
	"mercator-hq/saturn/pkg/providers"
)

// requestContext builds the ingress context from the request headers.
func (s *Server) requestContext(r *http.Request, model, endpoint string, retrieval *governance.RetrievalOptions) governance.RequestContext {
	classification := governance.Classification(s.cfg.DefaultClassification)
	if h := r.Header.Get(HeaderClassification); h != "" {
		if c, err := governance.ParseClassification(h); err == nil {
			classification = c
		} else {
			// Left as sent so validation rejects and audits it.
			classification = governance.Classification(h)
		}
	}
	return governance.NewRequestContext(
		r.Header.Get(HeaderRequestID),
		r.Header.Get(HeaderTenantID),
		r.Header.Get(HeaderUserID),
		classification,
		model,
		endpoint,
		retrieval,
	)
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(HeaderRequestID)

	var body ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDecodeError(w, requestID, err)
		return
	}
	rc := s.requestContext(r, body.Model, pipeline.EndpointChat, body.Retrieval)

	if body.Stream {
		s.streamChatCompletions(w, r, rc, body.toProvider())
		return
	}

	res, err := s.pipeline.Chat(r.Context(), rc, body.toProvider())
	if err != nil {
		writeError(w, requestID, err)
		return
	}
	w.Header().Set(HeaderPolicyHash, res.PolicyHash)
	writeJSON(w, http.StatusOK, chatResponse(requestID, res.Response, res.Citations))
}

// streamChatCompletions relays a governed stream as server-sent events. Errors
// raised before the first byte use the JSON envelope; later errors arrive as
// an "error" event.
func (s *Server) streamChatCompletions(w http.ResponseWriter, r *http.Request, rc governance.RequestContext, req *providers.CompletionRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, rc.RequestID, errors.New("streaming unsupported by response writer"))
		return
	}

	sr, err := s.pipeline.Stream(r.Context(), rc, req)
	if err != nil {
		writeError(w, rc.RequestID, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(HeaderPolicyHash, sr.PolicyHash)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	first, failed := true, false
	for chunk := range sr.Chunks {
		if failed {
			continue
		}
		if chunk.Error != nil {
			_, detail := errorDetail(rc.RequestID, chunk.Error)
			if detail.Code == CodeInternalError {
				detail.Code, detail.Type, detail.Message = "provider_error", "provider", chunk.Error.Error()
			}
			s.writeEvent(w, "error", &ErrorResponse{Error: detail})
			flusher.Flush()
			failed = true
			continue
		}
		s.writeEvent(w, "", streamChunk(rc.RequestID, chunk, first))
		flusher.Flush()
		first = false
	}
	if !failed {
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}

	if _, err := sr.Wait(); err != nil {
		s.logger.ErrorContext(r.Context(), "stream audit failed after response was sent", "error", err)
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode stream event", "error", err)
		return
	}
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(HeaderRequestID)

	var body EmbeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDecodeError(w, requestID, err)
		return
	}
	input, err := embeddingInput(body.Input)
	if err != nil {
		writeDecodeError(w, requestID, err)
		return
	}

	rc := s.requestContext(r, body.Model, pipeline.EndpointEmbeddings, nil)
	res, err := s.pipeline.Embeddings(r.Context(), rc, &providers.EmbeddingRequest{Model: body.Model, Input: input})
	if err != nil {
		writeError(w, requestID, err)
		return
	}
	w.Header().Set(HeaderPolicyHash, res.PolicyHash)
	writeJSON(w, http.StatusOK, embeddingsResponse(res.Response))
}

// embeddingInput accepts a string or an array of strings.
func embeddingInput(v any) ([]string, error) {
	switch in := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{in}, nil
	case []any:
		out := make([]string, 0, len(in))
		for i, item := range in {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("input[%d] must be a string", i)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("input must be a string or an array of strings")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

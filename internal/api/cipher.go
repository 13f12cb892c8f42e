package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/RowanDark/cipherlab/internal/cipher"
	"github.com/RowanDark/cipherlab/internal/history"
	"github.com/RowanDark/cipherlab/internal/logging"
	"github.com/RowanDark/cipherlab/internal/numtheory"
)

// OperationInfo describes one registered operation.
type OperationInfo struct {
	Name        string             `json:"name"`
	Type        string             `json:"type"`
	Description string             `json:"description"`
	Params      []cipher.ParamSpec `json:"params"`
	Reverse     string             `json:"reverse,omitempty"`
}

// CipherOperationRequest represents a request to execute a cipher operation
type CipherOperationRequest struct {
	Operation string         `json:"operation"`
	Input     string         `json:"input"`
	Params    map[string]any `json:"params,omitempty"`
}

// CipherOperationResponse represents the result of a cipher operation
type CipherOperationResponse struct {
	Operation string `json:"operation"`
	Output    string `json:"output"`
}

// CipherPipelineRequest runs an ad-hoc pipeline, optionally reversed.
type CipherPipelineRequest struct {
	Input    string          `json:"input"`
	Pipeline cipher.Pipeline `json:"pipeline"`
	Reverse  bool            `json:"reverse"`
}

// CipherDetectRequest asks for ranked candidate decryptions.
type CipherDetectRequest struct {
	Input string `json:"input"`
	Limit int    `json:"limit,omitempty"`
}

// CipherDetectResponse represents the detection result
type CipherDetectResponse struct {
	Candidates []cipher.DetectionResult `json:"candidates"`
}

// KeygenRequest carries the primes and public exponent for rsa_keygen.
type KeygenRequest struct {
	P *int64 `json:"p"`
	Q *int64 `json:"q"`
	E *int64 `json:"e"`
}

// KeygenResponse returns the full key pair together with its two halves.
type KeygenResponse struct {
	KeyPair numtheory.KeyPair    `json:"key_pair"`
	Public  numtheory.PublicKey  `json:"public"`
	Private numtheory.PrivateKey `json:"private"`
}

// RecipeRunRequest runs a saved recipe.
type RecipeRunRequest struct {
	Input   string `json:"input"`
	Reverse bool   `json:"reverse"`
}

// RecipeListResponse represents the list of recipes
type RecipeListResponse struct {
	Recipes []*cipher.Recipe `json:"recipes"`
}

// HistoryListResponse wraps history entries.
type HistoryListResponse struct {
	Entries []history.Entry `json:"entries"`
}

// TokenRequest asks for a bearer token.
type TokenRequest struct {
	Subject    string  `json:"subject"`
	Audience   string  `json:"audience"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

// TokenResponse carries a freshly minted bearer token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func (s *Server) handleTokenIssue(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil || s.static == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "token issuance is not configured", Kind: "not_configured"})
		return
	}
	if !s.static.matches(r.Header.Get("X-Cipherlab-Token")) {
		s.denied(r, "static token mismatch")
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorised", Kind: "unauthorized"})
		return
	}
	var req TokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ttl := time.Duration(req.TTLSeconds * float64(time.Second))
	if ttl <= 0 {
		ttl = s.cfg.DefaultTokenTTL
	}
	token, expires, err := s.auth.Mint(req.Subject, req.Audience, ttl)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
		return
	}
	_ = s.audit.Emit(logging.AuditEvent{
		RequestID: requestIDFrom(r.Context()),
		Subject:   req.Subject,
		EventType: logging.EventTokenIssued,
		Decision:  logging.DecisionAllow,
		Metadata:  map[string]any{"audience": req.Audience, "expires_at": expires.Format(time.RFC3339)},
	})
	writeJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresAt: expires.UTC().Format(time.RFC3339)})
}

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	filter := strings.TrimSpace(r.URL.Query().Get("type"))
	ops := s.svc.Operations()
	infos := make([]OperationInfo, 0, len(ops))
	for _, op := range ops {
		if filter != "" && string(op.Type()) != filter {
			continue
		}
		infos = append(infos, describe(op))
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": infos})
}

func describe(op cipher.Operation) OperationInfo {
	info := OperationInfo{
		Name:        op.Name(),
		Type:        string(op.Type()),
		Description: op.Description(),
		Params:      op.Params(),
	}
	if rev, ok := op.Reverse(); ok {
		info.Reverse = rev.Name()
	}
	return info
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req CipherOperationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Operation) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "operation field is required", Kind: "bad_request"})
		return
	}
	out, err := s.svc.Execute(withCaller(r.Context()), req.Operation, []byte(req.Input), req.Params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CipherOperationResponse{Operation: req.Operation, Output: string(out)})
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	var req CipherPipelineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Pipeline.Operations) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "pipeline.operations is required", Kind: "bad_request"})
		return
	}
	out, err := s.svc.RunPipeline(withCaller(r.Context()), req.Pipeline, []byte(req.Input), req.Reverse)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"output": string(out), "steps": len(req.Pipeline.Operations)})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req CipherDetectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	results, err := s.svc.Detect(withCaller(r.Context()), []byte(req.Input))
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Limit > 0 && req.Limit < len(results) {
		results = results[:req.Limit]
	}
	writeJSON(w, http.StatusOK, CipherDetectResponse{Candidates: results})
}

func (s *Server) handleKeygen(w http.ResponseWriter, r *http.Request) {
	var req KeygenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.P == nil || req.Q == nil || req.E == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "p, q and e are required", Kind: "bad_request"})
		return
	}
	kp, err := s.svc.GenerateKeyPair(withCaller(r.Context()), *req.P, *req.Q, *req.E)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, KeygenResponse{KeyPair: kp, Public: kp.Public(), Private: kp.Private()})
}

func (s *Server) handleListRecipes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RecipeListResponse{Recipes: s.svc.Recipes()})
}

func (s *Server) handleSaveRecipe(w http.ResponseWriter, r *http.Request) {
	var recipe cipher.Recipe
	if !decodeJSON(w, r, &recipe) {
		return
	}
	if err := s.svc.SaveRecipe(withCaller(r.Context()), &recipe); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recipe)
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	recipe, err := s.svc.Recipe(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteRecipe(withCaller(r.Context()), mux.Vars(r)["name"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunRecipe(w http.ResponseWriter, r *http.Request) {
	var req RecipeRunRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := mux.Vars(r)["name"]
	out, err := s.svc.RunRecipe(withCaller(r.Context()), name, []byte(req.Input), req.Reverse)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recipe": name, "output": string(out)})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := history.Filter{Operation: q.Get("operation")}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer", Kind: "bad_request"})
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("errors"); raw != "" {
		only, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "errors must be a boolean", Kind: "bad_request"})
			return
		}
		filter.ErrorsOnly = only
	}
	entries, err := s.svc.History(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryListResponse{Entries: entries})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entry, err := s.svc.HistoryEntry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// decodeJSON reads a bounded JSON body into dst. Numbers decode as
// json.Number so integer parameters keep their precision.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large", Kind: "bad_request"})
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		msg := "invalid json"
		if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) {
			msg = "invalid json: " + err.Error()
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: "bad_request"})
		return false
	}
	return true
}

package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	audittrail "ballotbox/contexts/election-operations/audit-trail"
	audithttp "ballotbox/contexts/election-operations/audit-trail/transport/http"
	votecoordinator "ballotbox/contexts/election-operations/vote-coordinator"
	votingerrors "ballotbox/contexts/election-operations/vote-coordinator/domain/errors"
	votinghttp "ballotbox/contexts/election-operations/vote-coordinator/transport/http"
	"ballotbox/internal/platform/metrics"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "ballotbox/internal/platform/httpserver/docs"
)

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	voting  votecoordinator.Module
	audit   audittrail.Module
	metrics *metrics.Registry
}

func New(
	voting votecoordinator.Module,
	audit audittrail.Module,
	registry *metrics.Registry,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}
	if registry == nil {
		registry = metrics.NewRegistry()
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		voting:  voting,
		audit:   audit,
		metrics: registry,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the route table for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.mux.HandleFunc("POST /v1/elections/{election_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("GET /v1/elections/{election_id}/results", s.handleElectionResults)
	s.mux.HandleFunc("GET /v1/elections", s.handleListElections)
	s.mux.HandleFunc("GET /v1/voters/me/history", s.handleVoterHistory)
	s.mux.HandleFunc("GET /v1/audit/events", s.handleAuditTrail)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	voterID := r.Header.Get("X-Voter-Id")
	if strings.TrimSpace(voterID) == "" {
		writeVotingError(w, http.StatusUnauthorized, "missing_voter", "X-Voter-Id header is required")
		return
	}

	var req votinghttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVotingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	electionID := r.PathValue("election_id")
	resp, err := s.voting.Handler.CastVoteHandler(r.Context(), voterID, electionID, req)
	if err != nil {
		s.metrics.VotesRejected.WithLabelValues(rejectionReason(err)).Inc()
		s.writeVotingDomainError(w, err)
		return
	}
	s.metrics.VotesAccepted.Inc()
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleElectionResults(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("election_id")
	resp, err := s.voting.Handler.ElectionResultsHandler(r.Context(), electionID)
	if err != nil {
		s.writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListElections(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.ListElectionsHandler(r.Context())
	if err != nil {
		s.writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVoterHistory(w http.ResponseWriter, r *http.Request) {
	voterID := r.Header.Get("X-Voter-Id")
	if strings.TrimSpace(voterID) == "" {
		writeVotingError(w, http.StatusUnauthorized, "missing_voter", "X-Voter-Id header is required")
		return
	}

	resp, err := s.voting.Handler.VoterHistoryHandler(r.Context(), voterID)
	if err != nil {
		s.writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	electionID := r.URL.Query().Get("election_id")
	resp, err := s.audit.Handler.AuditTrailHandler(r.Context(), electionID)
	if err != nil {
		writeAuditError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeVotingDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, votingerrors.ErrElectionNotFound):
		writeVotingError(w, http.StatusNotFound, "election_not_found", err.Error())
	case errors.Is(err, votingerrors.ErrCandidateNotFound):
		writeVotingError(w, http.StatusNotFound, "candidate_not_found", err.Error())
	case errors.Is(err, votingerrors.ErrBallotNotFound):
		writeVotingError(w, http.StatusNotFound, "ballot_not_found", err.Error())
	case errors.Is(err, votingerrors.ErrElectionNotActive):
		writeVotingError(w, http.StatusUnprocessableEntity, "election_not_active", err.Error())
	case errors.Is(err, votingerrors.ErrCandidateNotInElection):
		writeVotingError(w, http.StatusUnprocessableEntity, "candidate_not_in_election", err.Error())
	case errors.Is(err, votingerrors.ErrAlreadyVoted):
		writeVotingError(w, http.StatusConflict, "already_voted", err.Error())
	case errors.Is(err, votingerrors.ErrInvalidBallotInput):
		writeVotingError(w, http.StatusBadRequest, "invalid_ballot_input", err.Error())
	case errors.Is(err, votingerrors.ErrStorageTransient):
		w.Header().Set("Retry-After", "1")
		writeVotingError(w, http.StatusServiceUnavailable, "storage_transient", "vote could not be recorded, retry the request")
	default:
		s.logger.Error("unhandled voting error",
			"event", "http_voting_error",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"error", err.Error(),
		)
		writeVotingError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, votingerrors.ErrElectionNotFound):
		return "election_not_found"
	case errors.Is(err, votingerrors.ErrCandidateNotFound):
		return "candidate_not_found"
	case errors.Is(err, votingerrors.ErrElectionNotActive):
		return "election_not_active"
	case errors.Is(err, votingerrors.ErrCandidateNotInElection):
		return "candidate_not_in_election"
	case errors.Is(err, votingerrors.ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, votingerrors.ErrInvalidBallotInput):
		return "invalid_input"
	case errors.Is(err, votingerrors.ErrStorageTransient):
		return "storage_transient"
	default:
		return "internal"
	}
}

func writeVotingError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, votinghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeAuditError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, audithttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

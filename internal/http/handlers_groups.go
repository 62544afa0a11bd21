package http

import (
	"net/http"

	"caja/internal/core"
)

func (s *Server) handleRegisterGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}

	g, err := s.ledger.RegisterGroup(r.Context(), actorFrom(r), req.toGroup())
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	Created(g).Header("Location", "/api/v1/groups/"+itoa(g.ID)).Write(w)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	g, err := s.ledger.Group(r.Context(), groupID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(g).Write(w)
}

func (s *Server) handleUpdateGroupPolicy(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	var req groupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}

	g, err := s.ledger.UpdateGroupPolicy(r.Context(), actorFrom(r), groupID, req.toGroup())
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(g).Write(w)
}

func (s *Server) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}

	m, err := s.ledger.RegisterMember(r.Context(), actorFrom(r), core.Member{
		GroupID:    groupID,
		Name:       sanitizeInput(req.Name),
		ExternalID: sanitizeInput(req.ExternalID),
	})
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	Created(m).Write(w)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	members, err := s.ledger.Members(r.Context(), groupID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(nonNil(members)).Write(w)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	if err := s.ledger.RemoveMember(r.Context(), actorFrom(r), memberID); err != nil {
		errorResponse(err).Write(w)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleMemberStatement(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	st, err := s.ledger.MemberStatement(r.Context(), memberID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(st).Write(w)
}

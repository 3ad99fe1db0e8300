// Package signaling is the HTTP front end named in spec §5/§6:
// POST /offer/{session_id}/{endpoint_id} and POST /leave/{session_id}/{endpoint_id},
// dispatching each request onto its media port's MPSC channel by
// session_id mod num_ports (spec §5 "the thread maps (session_id mod
// num_ports) to the port"). Modeled on the teacher's examples/sfu-ws
// net/http handler style rather than a router dependency, since the
// teacher itself never pulls one in.
package signaling

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pion/logging"

	"github.com/pion/sfu/internal/mediaport"
	"github.com/pion/sfu/internal/types"
)

// Server dispatches HTTP offer/leave requests to media ports.
type Server struct {
	ports  []chan mediaport.SignalingRequest
	logger logging.LeveledLogger
}

// New builds a Server dispatching across the given per-port signaling
// channels, indexed in the same sorted-port order as config.Config.Ports.
func New(ports []chan mediaport.SignalingRequest, loggerFactory logging.LoggerFactory) *Server {
	return &Server{ports: ports, logger: loggerFactory.NewLogger("signaling")}
}

func (s *Server) portFor(sessionID types.SessionID) chan mediaport.SignalingRequest {
	return s.ports[uint64(sessionID)%uint64(len(s.ports))]
}

// Handler returns the net/http handler for the offer/leave endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/offer/", s.handleOffer)
	mux.HandleFunc("/leave/", s.handleLeave)
	return mux
}

type sessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID, endpointID, ok := parsePath(r.URL.Path, "/offer/")
	if !ok {
		http.Error(w, "bad request: expected /offer/{session_id}/{endpoint_id}", http.StatusBadRequest)
		return
	}

	var offer sessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
		return
	}
	if offer.Type != "offer" {
		http.Error(w, "bad request: expected type=offer", http.StatusBadRequest)
		return
	}

	reply := make(chan mediaport.SignalingResponse, 1)
	req := mediaport.SignalingRequest{
		SessionID:  sessionID,
		EndpointID: endpointID,
		OfferSDP:   offer.SDP,
		Reply:      reply,
	}

	select {
	case s.portFor(sessionID) <- req:
	case <-time.After(5 * time.Second):
		http.Error(w, "timeout dispatching to media port", http.StatusInternalServerError)
		return
	}

	select {
	case resp := <-reply:
		if resp.Err != nil {
			s.logger.Debugf("signaling: offer rejected: %v", resp.Err)
			http.Error(w, resp.Err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sessionDescription{Type: "answer", SDP: resp.AnswerSDP})
	case <-time.After(5 * time.Second):
		http.Error(w, "timeout waiting for media port", http.StatusInternalServerError)
	}
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, _, ok := parsePath(r.URL.Path, "/leave/"); !ok {
		http.Error(w, "bad request: expected /leave/{session_id}/{endpoint_id}", http.StatusBadRequest)
		return
	}
	// A leave is acknowledged with 200 and nothing else: it removes no
	// Endpoint or Transport, and no idle timer removes Endpoints either
	// (only uninstalled Candidates expire).
	w.WriteHeader(http.StatusOK)
}

func parsePath(path, prefix string) (types.SessionID, types.EndpointID, bool) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	sid, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	eid, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return types.SessionID(sid), types.EndpointID(eid), true
}

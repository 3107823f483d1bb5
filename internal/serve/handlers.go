package serve

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/csso/fngraph/appmodel"
	"github.com/csso/fngraph/typereg"
)

type errorReply struct {
	Error string `json:"error"`
}

type pinReply struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type functionReply struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Signature   string     `json:"signature"`
	Inputs      []pinReply `json:"inputs"`
	Outputs     []pinReply `json:"outputs"`
}

type typeReply struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	Creatable bool   `json:"creatable"`
	Reason    string `json:"reason,omitempty"`
}

type graphReply struct {
	Name string `json:"name"`
	File string `json:"file"`
}

type runReply struct {
	Planned    int      `json:"planned"`
	Executed   int      `json:"executed"`
	Skipped    int      `json:"skipped"`
	DurationMS int64    `json:"duration_ms"`
	Output     []string `json:"output,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorReply{Error: fmt.Sprintf(format, args...)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	views := s.model.Functions()
	out := make([]functionReply, 0, len(views))
	for _, v := range views {
		out = append(out, functionReply{
			ID:          v.ID(),
			Name:        v.Name(),
			Description: v.Description(),
			Signature:   v.Signature(),
			Inputs:      pinReplies(v.Inputs()),
			Outputs:     pinReplies(v.Outputs()),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func pinReplies(args []*appmodel.ArgInfo) []pinReply {
	out := make([]pinReply, 0, len(args))
	for _, a := range args {
		out = append(out, pinReply{Name: a.Name(), Type: a.Type()})
	}
	return out
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	entries := typereg.List()
	out := make([]typeReply, 0, len(entries))
	for _, e := range entries {
		out = append(out, typeReply{
			Namespace: e.Namespace,
			Name:      e.Name,
			Version:   e.Version(),
			Creatable: e.Creatable(),
			Reason:    e.Reason,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGraphs(w http.ResponseWriter, r *http.Request) {
	out := make([]graphReply, 0, len(s.ws.Graphs))
	for _, g := range s.ws.Graphs {
		out = append(out, graphReply{Name: g.Name, File: g.File})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	sess, err := s.session(r.Context(), name)
	if err != nil {
		if errors.Is(err, ErrUnknownGraph) {
			writeError(w, http.StatusNotFound, "%v", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "preparing session for '%s': %v", name, err)
		return
	}

	s.runMu.Lock()
	result, err := sess.Run(r.Context())
	output := s.engine.Output()
	s.runMu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "run of '%s' failed: %v", name, err)
		return
	}

	s.logger.Info("Graph run finished.", "graph", name, "executed", result.Executed, "skipped", result.Skipped)
	writeJSON(w, http.StatusOK, runReply{
		Planned:    result.Planned,
		Executed:   result.Executed,
		Skipped:    result.Skipped,
		DurationMS: result.Duration.Milliseconds(),
		Output:     output,
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The editor may be served from another origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleRunsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed.", "error", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 64)}
	s.hub.register(c)
	s.logger.Debug("Run event subscriber connected.", "remote_addr", r.RemoteAddr)

	go c.writePump()
	go c.readPump(s.hub)
}

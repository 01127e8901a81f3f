package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AaronLay10/SignalGrid/internal/events"
	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/grid"
	"github.com/AaronLay10/SignalGrid/internal/node"
)

func posParam(w http.ResponseWriter, r *http.Request) (geom.Pos, bool) {
	p, err := geom.ParsePos(chi.URLParam(r, "pos"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return geom.Pos{}, false
	}
	return p, true
}

// decode reads an optional JSON body into v. An empty body is allowed.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// reply writes the command result together with the node after it ran.
func (s *Server) reply(w http.ResponseWriter, p geom.Pos, result string, err error) {
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	resp := Response{OK: true, Result: result}
	if v, err := s.engine.Node(p); err == nil {
		resp.Node = v
	}
	writeJSON(w, http.StatusOK, resp)
}

func acceptedResult(ok bool) string {
	if ok {
		return "ok"
	}
	return "ignored"
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	p, ok := posParam(w, r)
	if !ok {
		return
	}
	v, err := s.engine.Node(p)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) activate(w http.ResponseWriter, r *http.Request) {
	p, ok := posParam(w, r)
	if !ok {
		return
	}
	accepted, err := s.engine.Activate(p)
	s.reply(w, p, acceptedResult(accepted), err)
}

type cycleRequest struct {
	Double bool `json:"double"`
}

func (s *Server) cycle(w http.ResponseWriter, r *http.Request) {
	p, ok := posParam(w, r)
	if !ok {
		return
	}
	var req cycleRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.Cycle(p, req.Double)
	s.reply(w, p, res.String(), err)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	p, ok := posParam(w, r)
	if !ok {
		return
	}
	s.reply(w, p, "ok", s.engine.Reset(p))
}

func (s *Server) secondary(w http.ResponseWriter, r *http.Request) {
	p, ok := posParam(w, r)
	if !ok {
		return
	}
	accepted, err := s.engine.SecondaryClick(p)
	s.reply(w, p, acceptedResult(accepted), err)
}

type pulseTimeRequest struct {
	Items int `json:"items"`
}

func (s *Server) pulseTime(w http.ResponseWriter, r *http.Request) {
	p, ok := posParam(w, r)
	if !ok {
		return
	}
	var req pulseTimeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Items < 0 || req.Items > 127 {
		writeError(w, http.StatusBadRequest, "items must be in 0..127")
		return
	}
	accepted, err := s.engine.SetPulseTime(p, req.Items)
	s.reply(w, p, acceptedResult(accepted), err)
}

type tintRequest struct {
	Color int `json:"color"`
}

func (s *Server) tint(w http.ResponseWriter, r *http.Request) {
	p, ok := posParam(w, r)
	if !ok {
		return
	}
	var req tintRequest
	if !decode(w, r, &req) {
		return
	}
	s.reply(w, p, "ok", s.engine.SetTint(p, req.Color))
}

type touchRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Server) touch(w http.ResponseWriter, r *http.Request) {
	p, ok := posParam(w, r)
	if !ok {
		return
	}
	var req touchRequest
	if !decode(w, r, &req) {
		return
	}
	accepted, err := s.engine.Touch(p, req.X, req.Y)
	s.reply(w, p, acceptedResult(accepted), err)
}

type linkRequest struct {
	Target geom.Pos      `json:"target"`
	Mode   node.LinkMode `json:"mode"`
}

func (s *Server) link(w http.ResponseWriter, r *http.Request) {
	p, ok := posParam(w, r)
	if !ok {
		return
	}
	req := linkRequest{Mode: node.ModeToggle}
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.LinkTo(p, req.Target, req.Mode)
	if err == nil && res != node.Assigned {
		writeJSON(w, http.StatusConflict, Response{OK: false, Result: res.String(), Error: "link not assigned"})
		return
	}
	s.reply(w, p, res.String(), err)
}

func (s *Server) unlink(w http.ResponseWriter, r *http.Request) {
	p, ok := posParam(w, r)
	if !ok {
		return
	}
	drop := r.URL.Query().Get("drop") == "true"
	links, err := s.engine.Unlink(p, drop)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "removed": links})
}

type placeRequest struct {
	Type   string         `json:"type"`
	Pos    geom.Pos       `json:"pos"`
	Facing geom.Direction `json:"facing"`
	Params node.Params    `json:"params"`
}

func (s *Server) place(w http.ResponseWriter, r *http.Request) {
	req := placeRequest{Facing: geom.North}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type required")
		return
	}
	v, err := s.engine.Place(req.Type, req.Pos, req.Facing, req.Params)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	events.Emit("info", "operator.place", "", map[string]interface{}{
		"pos":  req.Pos.String(),
		"type": req.Type,
	})
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	p, ok := posParam(w, r)
	if !ok {
		return
	}
	links, err := s.engine.Remove(p)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	events.Emit("info", "operator.remove", "", map[string]interface{}{"pos": p.String()})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "dropped": links})
}

func (s *Server) getWorld(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"grid":        s.engine.ID(),
		"tick":        s.engine.Tick(),
		"paused":      s.engine.Paused(),
		"environment": s.engine.Environment(),
	})
}

func (s *Server) updateWorld(w http.ResponseWriter, r *http.Request) {
	var u grid.WorldUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.UpdateWorld(u))
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.Save(r.Context())
	if err != nil {
		s.logger.Error("grid save failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "saved": n})
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	s.engine.Pause()
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "paused": true})
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	s.engine.Resume()
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "paused": false})
}

package coordinator

import (
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/qosmcast/heatctl/cmn/nlog"
	"github.com/qosmcast/heatctl/session"
	"github.com/qosmcast/heatctl/topology"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GroupRequest is the `{src, dst[]}` body of /group_add and /group_mod
// (§6).
type GroupRequest struct {
	Src uint64   `json:"src"`
	Dst []uint64 `json:"dst"`
}

// SessionAdmin is implemented by the orchestrator to accept session
// mutations arriving over the coordinator surface.
type SessionAdmin interface {
	AddSession(src uint64, receivers []uint64) error
	ModifySession(src uint64, receivers []uint64) error
}

// Server is the §9 "one HTTP server object per controller, with an
// explicit lifecycle start/stop" replacement for a global wsgi/cherrypy
// singleton.
type Server struct {
	Store   *topology.Store
	Sess    *session.Registry
	Pending *PendingTracker
	Admin   SessionAdmin

	srv *fasthttp.Server
	mu  sync.Mutex
}

func NewServer(store *topology.Store, sess *session.Registry, pending *PendingTracker, admin SessionAdmin) *Server {
	s := &Server{Store: store, Sess: sess, Pending: pending, Admin: admin}
	s.srv = &fasthttp.Server{Handler: s.route}
	return s
}

// ListenAndServe starts the HTTP surface; callers run it in its own
// goroutine and Shutdown it on controller teardown.
func (s *Server) ListenAndServe(addr string) error {
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/enter":
		s.handleEnter(ctx)
	case "/leave":
		s.handleLeave(ctx)
	case "/switches":
		s.handleSwitches(ctx)
	case "/links":
		s.handleLinks(ctx)
	case "/all_links":
		s.handleAllLinks(ctx)
	case "/trees":
		s.handleTrees(ctx)
	case "/group_add":
		s.handleGroupAdd(ctx)
	case "/group_mod":
		s.handleGroupMod(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *Server) handleEnter(ctx *fasthttp.RequestCtx) {
	cid := ctx.QueryArgs().GetUintOrZero("cid")
	nlog.Infof("coordinator: cid %d entered", cid)
	ctx.SetStatusCode(fasthttp.StatusOK)
}

func (s *Server) handleLeave(ctx *fasthttp.RequestCtx) {
	cid := ctx.QueryArgs().GetUintOrZero("cid")
	s.Pending.Forget(int16(cid))
	nlog.Infof("coordinator: cid %d left", cid)
	ctx.SetStatusCode(fasthttp.StatusOK)
}

func (s *Server) handleSwitches(ctx *fasthttp.RequestCtx) {
	b, err := json.Marshal(s.Store.Switches())
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(b)
}

// handleLinks is §6 "/links ... filtered by online shards": only links
// whose source switch belongs to a controller currently marked live.
func (s *Server) handleLinks(ctx *fasthttp.RequestCtx) {
	live := make(map[int16]bool)
	for _, p := range s.Store.Controllers() {
		if p.IsLive {
			live[p.Cid] = true
		}
	}
	swCid := make(map[uint64]int16)
	for _, sw := range s.Store.Switches() {
		swCid[sw.Dpid] = sw.Cid
	}
	var out []topology.Link
	for _, l := range s.Store.Links() {
		if cid, ok := swCid[l.SrcDpid]; ok && live[cid] {
			out = append(out, l)
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(b)
}

func (s *Server) handleAllLinks(ctx *fasthttp.RequestCtx) {
	links := s.Store.Links()
	wire := make([]LinkWire, len(links))
	for i, l := range links {
		wire[i] = LinkWire{SrcDpid: l.SrcDpid, SrcPortNo: l.SrcPortNo, DstDpid: l.DstDpid, DstPortNo: l.DstPortNo}
	}
	ctx.SetContentType("application/octet-stream")
	ctx.SetBody(encodeLinks(wire))
}

func (s *Server) handleTrees(ctx *fasthttp.RequestCtx) {
	cid := int16(ctx.QueryArgs().GetUintOrZero("cid"))
	bundle := s.Pending.BundleFor(cid)
	ctx.SetContentType("application/octet-stream")
	ctx.SetBody(encodeTreeBundle(bundle))
}

func (s *Server) handleGroupAdd(ctx *fasthttp.RequestCtx) {
	s.handleGroupRequest(ctx, false)
}

func (s *Server) handleGroupMod(ctx *fasthttp.RequestCtx) {
	s.handleGroupRequest(ctx, true)
}

func (s *Server) handleGroupRequest(ctx *fasthttp.RequestCtx, modify bool) {
	var req GroupRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	var err error
	if modify {
		err = s.Admin.ModifySession(req.Src, req.Dst)
	} else {
		err = s.Admin.AddSession(req.Src, req.Dst)
	}
	if err != nil {
		nlog.Errorln(errors.Wrap(err, "coordinator: group request rejected"))
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
}

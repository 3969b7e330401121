package app

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrSelfCall       = errors.New("cannot call yourself")
	ErrCallInProgress = errors.New("call already in progress")
	ErrPeerOffline    = errors.New("peer offline")
	ErrNoSession      = errors.New("no call session")
	ErrWrongPhase     = errors.New("call in wrong phase")
	ErrNotCallee      = errors.New("only the callee may answer")
	ErrRateLimited    = errors.New("too many call attempts")
)

const ReasonTimeout = "timeout"

type incomingCall struct {
	Offer       json.RawMessage `json:"offer"`
	CallerName  string          `json:"callerName"`
	CallerImage string          `json:"callerImage,omitempty"`
}

type callAccepted struct {
	Answer json.RawMessage `json:"answer"`
}

type iceCandidate struct {
	Candidate json.RawMessage `json:"candidate"`
}

type callEnded struct {
	Reason string `json:"reason,omitempty"`
}

type callSession struct {
	key       domain.CallKey
	caller    domain.Identity
	callee    domain.Identity
	phase     domain.CallPhase
	offer     json.RawMessage
	info      domain.CallerInfo
	startedAt time.Time
	ringTimer *time.Timer
}

// ring is the incoming-call payload for the callee. The offer may be null
// when the caller negotiates after accept.
func (s *callSession) ring() incomingCall {
	return incomingCall{
		Offer:       s.offer,
		CallerName:  s.info.Name,
		CallerImage: s.info.Image,
	}
}

func (s *callSession) peerOf(id domain.Identity) domain.Identity {
	if id == s.caller {
		return s.callee
	}
	return s.caller
}

// Coordinator sequences the call-signaling handshake for each pair of
// identities: ringing, active, then gone. Every transition is driven by an
// inbound event (or the optional ring timeout) and the resulting deliveries
// are routed while the table lock is held, so one pair's signals reach the
// peers in the order the transitions happened.
type Coordinator struct {
	Router *Router
	// RingTimeout ends unanswered calls. Zero leaves ringing calls open
	// until a party ends them or disconnects.
	RingTimeout time.Duration
	Limiter     *RateLimiter

	mu       sync.Mutex
	sessions map[domain.CallKey]*callSession
}

func NewCoordinator(router *Router, ringTimeout time.Duration, limiter *RateLimiter) *Coordinator {
	return &Coordinator{
		Router:      router,
		RingTimeout: ringTimeout,
		Limiter:     limiter,
		sessions:    make(map[domain.CallKey]*callSession),
	}
}

// CallUser starts ringing `to`. A second attempt for a pair that is already
// ringing or active is ignored. Nothing is kept when the callee is offline.
func (c *Coordinator) CallUser(from, to domain.Identity, offer json.RawMessage, info domain.CallerInfo) error {
	if from == to {
		log.Warn().Str("module", "app.calls").Str("from", string(from)).Msg("call-user to self")
		return ErrSelfCall
	}
	key := domain.NewCallKey(from, to)

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[key]; ok {
		log.Info().Str("module", "app.calls").Str("call", key.String()).
			Str("phase", string(s.phase)).Msg("duplicate call-user ignored")
		return ErrCallInProgress
	}
	if c.Limiter != nil && !c.Limiter.Allow(from) {
		log.Warn().Str("module", "app.calls").Str("from", string(from)).Msg("call-user rate limited")
		return ErrRateLimited
	}

	s := &callSession{
		key:       key,
		caller:    from,
		callee:    to,
		phase:     domain.CallRinging,
		offer:     offer,
		info:      info.Clip(),
		startedAt: c.Router.Now(),
	}
	res := c.Router.Route(domain.EventIncomingCall, from, to, s.ring())
	if res != Delivered {
		log.Info().Str("module", "app.calls").Str("call", key.String()).
			Str("delivery", res.String()).Msg("callee unreachable, no session")
		return ErrPeerOffline
	}

	if c.RingTimeout > 0 {
		s.ringTimer = time.AfterFunc(c.RingTimeout, func() { c.expire(s) })
	}
	c.sessions[key] = s
	log.Info().Str("module", "app.calls").Str("call", key.String()).Str("caller", string(from)).Msg("ringing")
	return nil
}

// AcceptCall moves a ringing call to active. Only the callee may accept.
func (c *Coordinator) AcceptCall(from, to domain.Identity, answer json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.ringingFor(from, to, domain.EventAcceptCall)
	if err != nil {
		return err
	}
	s.phase = domain.CallActive
	s.stopTimer()
	log.Info().Str("module", "app.calls").Str("call", s.key.String()).Msg("active")
	c.Router.Route(domain.EventCallAccepted, from, to, callAccepted{Answer: answer})
	return nil
}

// RejectCall drops a ringing call. Only the callee may reject.
func (c *Coordinator) RejectCall(from, to domain.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.ringingFor(from, to, domain.EventRejectCall)
	if err != nil {
		return err
	}
	c.drop(s)
	log.Info().Str("module", "app.calls").Str("call", s.key.String()).Msg("rejected")
	c.Router.Route(domain.EventCallRejected, from, to, nil)
	return nil
}

// RelayCandidate forwards an ICE candidate between the parties of a live
// call. Candidates arriving after hangup are expected and dropped.
func (c *Coordinator) RelayCandidate(from, to domain.Identity, candidate json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[domain.NewCallKey(from, to)]; !ok || from == to {
		log.Debug().Str("module", "app.calls").Str("from", string(from)).Str("to", string(to)).Msg("stray ice-candidate dropped")
		return ErrNoSession
	}
	c.Router.Route(domain.EventICECandidate, from, to, iceCandidate{Candidate: candidate})
	return nil
}

// ReplayRinging re-sends incoming-call for every call still ringing for
// callee, so a connection that just took over the identity can answer. It
// returns the number of calls replayed.
func (c *Coordinator) ReplayRinging(callee domain.Identity) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, s := range c.sessions {
		if s.callee != callee || s.phase != domain.CallRinging {
			continue
		}
		if c.Router.Route(domain.EventIncomingCall, s.caller, callee, s.ring()) == Delivered {
			n++
		}
		log.Info().Str("module", "app.calls").Str("call", key.String()).Msg("ring replayed")
	}
	return n
}

// EndCall hangs up the call between from and to. Ending a call that does not
// exist is a no-op.
func (c *Coordinator) EndCall(from, to domain.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[domain.NewCallKey(from, to)]
	if !ok || from == to {
		log.Debug().Str("module", "app.calls").Str("from", string(from)).Str("to", string(to)).Msg("end-call without session")
		return nil
	}
	c.drop(s)
	log.Info().Str("module", "app.calls").Str("call", s.key.String()).Str("by", string(from)).Msg("ended")
	c.Router.Route(domain.EventCallEnded, from, s.peerOf(from), callEnded{})
	return nil
}

// EndAll force-ends every call involving id and notifies each peer once.
// It returns the number of calls ended.
func (c *Coordinator) EndAll(id domain.Identity) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, s := range c.sessions {
		if !key.Involves(id) {
			continue
		}
		c.drop(s)
		n++
		log.Info().Str("module", "app.calls").Str("call", key.String()).Str("gone", string(id)).Msg("ended by disconnect")
		c.Router.Route(domain.EventCallEnded, id, s.peerOf(id), callEnded{})
	}
	return n
}

// Active returns a snapshot of the current calls, oldest first.
func (c *Coordinator) Active() []domain.CallInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.CallInfo, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, domain.CallInfo{
			Caller:    s.caller,
			Callee:    s.callee,
			Phase:     s.phase,
			StartedAt: s.startedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Close forgets every call without notifying anyone. Used on shutdown.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sessions {
		c.drop(s)
	}
}

func (c *Coordinator) ringingFor(callee, caller domain.Identity, kind domain.EventKind) (*callSession, error) {
	s, ok := c.sessions[domain.NewCallKey(callee, caller)]
	switch {
	case !ok || callee == caller:
		log.Warn().Str("module", "app.calls").Str("type", string(kind)).
			Str("from", string(callee)).Str("to", string(caller)).Msg("no matching call, dropped")
		return nil, ErrNoSession
	case s.callee != callee:
		log.Warn().Str("module", "app.calls").Str("type", string(kind)).
			Str("call", s.key.String()).Str("from", string(callee)).Msg("not the callee, dropped")
		return nil, ErrNotCallee
	case s.phase != domain.CallRinging:
		log.Warn().Str("module", "app.calls").Str("type", string(kind)).
			Str("call", s.key.String()).Str("phase", string(s.phase)).Msg("out of phase, dropped")
		return nil, ErrWrongPhase
	}
	return s, nil
}

func (c *Coordinator) expire(s *callSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.sessions[s.key]; !ok || cur != s || s.phase != domain.CallRinging {
		return
	}
	c.drop(s)
	log.Info().Str("module", "app.calls").Str("call", s.key.String()).Dur("after", c.RingTimeout).Msg("ring timeout")
	c.Router.Route(domain.EventCallEnded, s.callee, s.caller, callEnded{Reason: ReasonTimeout})
	c.Router.Route(domain.EventCallEnded, s.caller, s.callee, callEnded{Reason: ReasonTimeout})
}

// drop removes s from the table. Caller holds c.mu.
func (c *Coordinator) drop(s *callSession) {
	s.stopTimer()
	s.phase = domain.CallEnded
	delete(c.sessions, s.key)
}

func (s *callSession) stopTimer() {
	if s.ringTimer != nil {
		s.ringTimer.Stop()
		s.ringTimer = nil
	}
}

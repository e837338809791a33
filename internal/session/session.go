// Package session runs one map interaction session: markers, popup, camera
// and geolocation, mutated only from a single event loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/vmap/mapviewer/internal/camera"
	"github.com/vmap/mapviewer/internal/dispatcher"
	"github.com/vmap/mapviewer/internal/geolocation"
	"github.com/vmap/mapviewer/internal/logging"
	"github.com/vmap/mapviewer/internal/popup"
	"github.com/vmap/mapviewer/internal/registry"
	"github.com/vmap/mapviewer/internal/render"
	"github.com/vmap/mapviewer/pkg/core"
	"github.com/vmap/mapviewer/pkg/streaming"
)

// Event types handled by a Session.
const (
	EventMapClick            = "map.click"
	EventPointerMove         = "pointer.move"
	EventCloserClick         = "popup.closer"
	EventAddMarker           = "marker.add"
	EventRemoveMarker        = "marker.remove"
	EventGeolocationResolved = "geolocation.resolved"
	EventGeolocationFailed   = "geolocation.failed"
	EventClientConnected     = "client.connected"
)

var (
	// ErrMarkerNotFound is returned when removing an id the registry does not hold.
	ErrMarkerNotFound = errors.New("marker not found")
	// ErrClosed is returned by Post after Close.
	ErrClosed = errors.New("session closed")
)

// UserMarkerLabel labels the marker placed at the resolved device position.
const UserMarkerLabel = "Current location"

const (
	defaultQueueSize  = 256
	pointerBufferSize = 64
	defaultUserZoom   = 16
	telemetryTimeout  = 2 * time.Second
)

// Outbound is the client-facing side of a session.
type Outbound interface {
	popup.Presenter
	Broadcast(msgType string, payload any) error
	SendTo(clientID, msgType string, payload any) error
	Ack(clientID, msgType string, id core.MarkerID) error
	Reject(clientID, msgType string, err error) error
}

// Telemetry receives interaction points.
type Telemetry interface {
	Record(ctx context.Context, p *influxdb2_write.Point) error
}

// Options configures a Session. Only View is required.
type Options struct {
	ID        string
	View      core.ViewState
	UserZoom  float64
	Animation time.Duration
	// Markers are placed by Start, in order.
	Markers []core.Marker

	Resolver *geolocation.Resolver
	// Client, when set, receives position reports from connected clients.
	Client   *geolocation.ClientProvider
	Renderer *render.Mercator
	// Out may be nil, in which case the popup is unavailable.
	Out       Outbound
	Telemetry Telemetry

	Logger         *slog.Logger
	DispatchLogger dispatcher.Logger
	Clock          func() time.Time
	QueueSize      int
}

// Session owns the interaction state of one map.
type Session struct {
	id        string
	logger    *slog.Logger
	now       func() time.Time
	userZoom  float64
	animation time.Duration
	initial   []core.Marker

	registry   *registry.Registry
	popup      *popup.Controller // nil when no presenter is available
	camera     *camera.Camera
	renderer   *render.Mercator
	resolver   *geolocation.Resolver
	client     *geolocation.ClientProvider
	dispatcher *dispatcher.Dispatcher
	out        Outbound
	telemetry  Telemetry

	// geolocation progress; locate may run before the loop starts
	baseCtx  context.Context
	locating atomic.Bool
	located  atomic.Bool
	timedOut atomic.Bool

	events    chan dispatcher.Event
	done      chan struct{}
	closeOnce sync.Once
}

// New wires a session. A missing presenter is logged and leaves the popup
// disabled; everything else keeps working.
func New(opts Options) (*Session, error) {
	s := &Session{
		id:        opts.ID,
		logger:    opts.Logger,
		now:       opts.Clock,
		userZoom:  opts.UserZoom,
		animation: opts.Animation,
		initial:   opts.Markers,
		registry:  registry.New(),
		renderer:  opts.Renderer,
		resolver:  opts.Resolver,
		client:    opts.Client,
		out:       opts.Out,
		telemetry: opts.Telemetry,
		baseCtx:   context.Background(),
		done:      make(chan struct{}),
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("session", s.id)
	if s.now == nil {
		s.now = time.Now
	}
	if s.userZoom == 0 {
		s.userZoom = defaultUserZoom
	}
	if s.renderer == nil {
		s.renderer = render.NewMercator(render.DefaultConfig())
	}
	if s.resolver == nil {
		s.resolver = geolocation.NewResolver(nil, 0)
	}
	queue := opts.QueueSize
	if queue <= 0 {
		queue = defaultQueueSize
	}
	s.events = make(chan dispatcher.Event, queue)

	s.camera = camera.New(opts.View, s.now)

	var presenter popup.Presenter
	if opts.Out != nil {
		presenter = opts.Out
	}
	ctrl, err := popup.New(presenter, s.renderer)
	if err != nil {
		s.logger.Error("Popup disabled", "error", err)
	} else {
		s.popup = ctrl
		s.registry.OnRemove(func(id core.MarkerID) { s.popup.OnMarkerRemoved(id) })
	}

	dl := opts.DispatchLogger
	if dl == nil {
		dl = logging.NewDispatcherLogger(zerolog.Nop())
	}
	d, err := dispatcher.New(dl)
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}
	s.dispatcher = d
	s.register()

	if s.client != nil && s.out != nil {
		s.client.OnRequest = func() {
			if err := s.out.Broadcast(streaming.TypeRequestPosition, nil); err != nil {
				s.logger.Warn("Failed to request client position", "error", err)
			}
		}
	}

	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Start places the configured markers and begins resolving the device
// position. It returns without waiting for the position.
func (s *Session) Start(ctx context.Context) {
	for _, m := range s.initial {
		id := s.registry.Add(m)
		s.logger.Debug("Marker placed", "id", id, "label", m.Label, "style", m.Style)
	}
	s.broadcastMarkers()
	s.broadcastView(0)
	s.baseCtx = ctx
	s.locate(ctx)
}

func (s *Session) locate(ctx context.Context) {
	if !s.locating.CompareAndSwap(false, true) {
		return
	}
	started := s.now()
	s.resolver.ResolveFunc(ctx, func(r geolocation.Result) {
		out := geoOutcome{Position: r.Position, Err: r.Err, Latency: s.now().Sub(started)}
		typ := EventGeolocationResolved
		if r.Err != nil {
			typ = EventGeolocationFailed
		}
		if err := s.Post(dispatcher.Event{Type: typ, Payload: out}); err != nil {
			s.logger.Debug("Geolocation result discarded", "error", err)
		}
	})
}

// Post queues an event for the loop. It blocks while the queue is full and
// fails with ErrClosed once the session is closed.
func (s *Session) Post(e dispatcher.Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Run applies posted events in order until ctx is done or Close is called.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case e := <-s.events:
			if _, err := s.Dispatch(e); err != nil {
				if errors.Is(err, dispatcher.ErrQueueFull) {
					s.logger.Debug("Event dropped", "event", e.Type)
					continue
				}
				s.logger.Warn("Event failed", "event", e.Type, "error", err)
			}
		}
	}
}

// Dispatch applies one event synchronously. Callers other than Run must not
// run concurrently with it.
func (s *Session) Dispatch(e dispatcher.Event) (any, error) {
	return s.dispatcher.Dispatch(e)
}

// Close stops the loop and drains buffered handlers. Events still queued are dropped.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.dispatcher.Close()
	})
}

// Markers returns the registered markers in insertion order.
func (s *Session) Markers() []core.Marker {
	return s.registry.All()
}

// Popup returns the popup state, Hidden when the popup is disabled.
func (s *Session) Popup() core.PopupState {
	if s.popup == nil {
		return core.Hidden
	}
	return s.popup.State()
}

// View returns the camera's current, possibly mid-animation, state.
func (s *Session) View() core.ViewState {
	return s.camera.View()
}

// Target returns where the camera is heading.
func (s *Session) Target() core.ViewState {
	return s.camera.Target()
}

func (s *Session) record(p *influxdb2_write.Point) {
	if s.telemetry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), telemetryTimeout)
	defer cancel()
	if err := s.telemetry.Record(ctx, p); err != nil {
		s.logger.Debug("Telemetry dropped", "error", err)
	}
}

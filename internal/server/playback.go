package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/verte-zerg/passplay/internal/engine"
	"github.com/verte-zerg/passplay/internal/metrics"
	"github.com/verte-zerg/passplay/internal/model"
	"github.com/verte-zerg/passplay/internal/playback"
)

const writeTimeout = 5 * time.Second

// Event types sent to playback clients.
const (
	EventPass     = "pass"
	EventMetrics  = "metrics"
	EventChange   = "change"
	EventComplete = "complete"
	EventAborted  = "aborted"
	EventState    = "state"
	EventError    = "error"
)

// Event is one JSON message pushed to a playback client.
type Event struct {
	Type     string         `json:"type"`
	Problem  string         `json:"problem,omitempty"`
	Index    *int           `json:"index,omitempty"`
	Total    int            `json:"total,omitempty"`
	Label    string         `json:"label,omitempty"`
	Output   string         `json:"output,omitempty"`
	Critique string         `json:"critique,omitempty"`
	Metrics  *model.Metrics `json:"metrics,omitempty"`
	Series   *model.Series  `json:"series,omitempty"`
	Text     string         `json:"text,omitempty"`
	Speed    float64        `json:"speed,omitempty"`
	Running  *bool          `json:"running,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// controlMessage is a client request on the playback socket.
type controlMessage struct {
	Type  string  `json:"type"`
	Speed float64 `json:"speed,omitempty"`
}

// wsPresenter writes scheduler events to one websocket connection.
type wsPresenter struct {
	ctx    context.Context
	conn   *websocket.Conn
	logger *slog.Logger
}

func (p *wsPresenter) OnPassShown(problem model.Problem, pass model.Pass, index, total int) error {
	i := index
	return p.write(Event{
		Type:     EventPass,
		Problem:  problem.Key,
		Index:    &i,
		Total:    total,
		Label:    metrics.PassLabel(index, total),
		Output:   pass.Output,
		Critique: pass.Critique,
	})
}

func (p *wsPresenter) OnMetricsUpdated(m model.Metrics, series model.Series) error {
	return p.write(Event{Type: EventMetrics, Metrics: &m, Series: &series})
}

func (p *wsPresenter) OnChangeDescribed(text string) error {
	return p.write(Event{Type: EventChange, Text: text})
}

func (p *wsPresenter) OnComplete() error {
	return p.write(Event{Type: EventComplete})
}

func (p *wsPresenter) OnAborted(err error) {
	if writeErr := p.write(Event{Type: EventAborted, Error: err.Error()}); writeErr != nil {
		p.logger.Debug("Failed to report aborted playback", "error", writeErr)
	}
}

func (p *wsPresenter) write(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	ctx, cancel := context.WithTimeout(p.ctx, writeTimeout)
	defer cancel()
	if err := p.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to write %s event: %w", ev.Type, err)
	}
	return nil
}

func (p *wsPresenter) writeState(st playback.State) error {
	running := st.Running
	index := st.Index
	return p.write(Event{
		Type:    EventState,
		Problem: st.ProblemKey,
		Index:   &index,
		Total:   st.Total,
		Speed:   st.Speed,
		Running: &running,
	})
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("problem")
	p, ok := s.cat.Problem(key)
	if !ok {
		Error(w, http.StatusNotFound, "unknown problem")
		return
	}
	passes, err := intParam(r, "passes", len(p.Passes))
	if err != nil {
		Error(w, http.StatusBadRequest, "passes must be an integer")
		return
	}
	speed, err := floatParam(r, "speed", 1)
	if err != nil || !engine.ValidSpeed(speed) {
		Error(w, http.StatusBadRequest, "speed must be a finite positive number")
		return
	}

	eng := engine.New(s.cat)
	if err := eng.InitProblem(key, passes); err != nil {
		Error(w, http.StatusNotFound, "unknown problem")
		return
	}
	eng.SetSpeed(speed)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		s.logger.Error("WebSocket accept failed", "error", err)
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "playback ended")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger := s.logger.With("problem", key, "remote", r.RemoteAddr)
	presenter := &wsPresenter{ctx: ctx, conn: ws, logger: logger}
	opts := []playback.Option{playback.WithPause(s.pause), playback.WithLogger(logger)}
	if s.clock != nil {
		opts = append(opts, playback.WithClock(s.clock))
	}
	sched := playback.New(eng, presenter, opts...)
	defer sched.Cancel()

	logger.Info("Playback session started", "passes", eng.TotalPasses(), "speed", eng.Speed())
	if err := sched.Start(); err != nil {
		logger.Error("Failed to start playback", "error", err)
		return
	}

	s.readControl(ctx, ws, sched, presenter, logger)
	logger.Info("Playback session ended")
}

var errAlreadyRunning = errors.New("playback already running")

// startPlayback begins playback unless a tick is pending. A completed playback
// starts over from the first pass.
func startPlayback(sched *playback.Scheduler) error {
	st := sched.State()
	switch {
	case st.Running:
		return errAlreadyRunning
	case st.Complete:
		return sched.Restart()
	default:
		return sched.Start()
	}
}

func (s *Server) readControl(ctx context.Context, ws *websocket.Conn, sched *playback.Scheduler, p *wsPresenter, logger *slog.Logger) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				logger.Debug("WebSocket read failed", "error", err)
			}
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if werr := p.write(Event{Type: EventError, Error: "invalid message"}); werr != nil {
				return
			}
			continue
		}

		var ctrlErr error
		switch msg.Type {
		case "speed":
			if !engine.ValidSpeed(msg.Speed) {
				ctrlErr = errors.New("speed must be a finite positive number")
				break
			}
			sched.SetSpeed(msg.Speed)
			ctrlErr = p.writeState(sched.State())
		case "restart":
			ctrlErr = sched.Restart()
		case "start":
			ctrlErr = startPlayback(sched)
		case "cancel":
			sched.Cancel()
			ctrlErr = p.writeState(sched.State())
		case "state":
			ctrlErr = p.writeState(sched.State())
		default:
			ctrlErr = fmt.Errorf("unknown message type %q", msg.Type)
		}
		if ctrlErr != nil {
			if errors.Is(ctrlErr, engine.ErrPlaybackAborted) {
				continue
			}
			if werr := p.write(Event{Type: EventError, Error: ctrlErr.Error()}); werr != nil {
				return
			}
		}
	}
}

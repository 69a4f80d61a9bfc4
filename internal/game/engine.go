package game

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Observer receives simulation output. The engine knows nothing about
// players' identities or transports; whoever constructs it decides where
// snapshots and the final result go.
type Observer interface {
	OnTick(State)
	OnTerminal(Result)
}

type Option func(*Engine)

func WithWinScore(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.winScore = n
		}
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tickEvery = d
		}
	}
}

// WithRand swaps the randomness source. Randomness only affects ball reset
// direction and post-collision spin, so a seeded source makes ticks
// deterministic.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// Engine owns one match's physical state and advances it on a fixed tick.
// All mutation happens under mu; the tick loop is a single goroutine, so
// ticks never overlap.
type Engine struct {
	observer  Observer
	winScore  int
	tickEvery time.Duration

	mu        sync.Mutex
	rng       *rand.Rand
	state     State
	running   bool
	terminal  bool
	startedAt time.Time
	stop      chan struct{}
}

func New(observer Observer, opts ...Option) *Engine {
	e := &Engine{
		observer:  observer,
		winScore:  DefaultWinScore,
		tickEvery: DefaultTickInterval,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.state = e.initialState()
	return e
}

func (e *Engine) initialState() State {
	centerY := FieldHeight/2 - PaddleHeight/2
	return State{
		Ball:    e.centeredBall(),
		Paddle1: Paddle{Y: centerY},
		Paddle2: Paddle{Y: centerY},
	}
}

func (e *Engine) centeredBall() Ball {
	return Ball{
		X:  FieldWidth / 2,
		Y:  FieldHeight / 2,
		VX: BallSpeed * e.randomDirection(),
		VY: BallSpeed * e.randomDirection(),
	}
}

func (e *Engine) randomDirection() float64 {
	if e.rng.Intn(2) == 0 {
		return -1
	}
	return 1
}

// Start begins the fixed-period tick. No-op while running or after the
// match reached its terminal state. The start timestamp is recorded anew on
// every (re)start, so a paused match measures duration from its resume.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running || e.terminal {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.startedAt = time.Now()
	stop := make(chan struct{})
	e.stop = stop
	e.mu.Unlock()

	go e.run(stop)
}

// Stop cancels the tick loop. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	close(e.stop)
	e.stop = nil
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// HandleInput sets a paddle's moving direction. Values outside [-1, 1] are
// rejected; the paddle only moves on subsequent ticks.
func (e *Engine) HandleInput(player, direction int) {
	if direction < -1 || direction > 1 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch player {
	case 1:
		e.state.Paddle1.Moving = direction
	case 2:
		e.state.Paddle2.Moving = direction
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) run(stop chan struct{}) {
	ticker := time.NewTicker(e.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap, result, terminal, ok := e.step()
			if !ok {
				// Stopped between the tick firing and the step.
				return
			}
			if e.observer != nil {
				if terminal {
					e.observer.OnTerminal(result)
				}
				e.observer.OnTick(snap)
			}
			if terminal {
				return
			}
		}
	}
}

// step advances the simulation one tick and reports whether this tick ended
// the match. Callbacks are invoked by the caller, outside the state lock.
func (e *Engine) step() (snap State, result Result, terminal bool, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return State{}, Result{}, false, false
	}

	movePaddle(&e.state.Paddle1)
	movePaddle(&e.state.Paddle2)
	winner := e.moveBall()

	if winner != 0 {
		e.running = false
		e.terminal = true
		e.stop = nil
		now := time.Now()
		result = Result{
			Winner:     winner,
			FinalScore: e.state.Score,
			Duration:   now.Sub(e.startedAt),
			StartedAt:  e.startedAt,
			EndedAt:    now,
		}
		terminal = true
	}
	return e.state, result, terminal, true
}

func movePaddle(p *Paddle) {
	p.Y += float64(p.Moving) * PaddleSpeed
	if p.Y < 0 {
		p.Y = 0
	}
	if p.Y > MaxPaddleY {
		p.Y = MaxPaddleY
	}
}

// moveBall advances the ball, resolves wall and paddle collisions and
// scoring. Returns the winning player (1 or 2) when the win threshold was
// just crossed, else 0.
func (e *Engine) moveBall() int {
	b := &e.state.Ball
	b.X += b.VX
	b.Y += b.VY

	if b.Y <= 0 || b.Y >= FieldHeight-BallSize {
		b.VY = -b.VY
	}

	if b.X <= PaddleWidth && paddleCovers(b.Y, e.state.Paddle1.Y) {
		b.VX = math.Abs(b.VX)
		e.addSpin(b)
	}
	if b.X >= FieldWidth-PaddleWidth-BallSize && paddleCovers(b.Y, e.state.Paddle2.Y) {
		b.VX = -math.Abs(b.VX)
		e.addSpin(b)
	}

	if b.X < 0 {
		e.state.Score.Player2++
		if e.state.Score.Player2 >= e.winScore {
			return 2
		}
		e.state.Ball = e.centeredBall()
	} else if b.X > FieldWidth {
		e.state.Score.Player1++
		if e.state.Score.Player1 >= e.winScore {
			return 1
		}
		e.state.Ball = e.centeredBall()
	}
	return 0
}

// paddleCovers is the vertical overlap test between ball and paddle.
func paddleCovers(ballY, paddleY float64) bool {
	return ballY+BallSize >= paddleY && ballY <= paddleY+PaddleHeight
}

// addSpin nudges vy by a uniform value in (-1, 1) after a paddle hit.
func (e *Engine) addSpin(b *Ball) {
	b.VY += e.rng.Float64()*2 - 1
}

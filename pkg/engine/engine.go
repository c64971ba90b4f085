// Package engine implements the server side of the DUI (Diplomacy Universal
// Interface) command dispatcher protocol: a line-based request/response
// channel that exposes the core adjudicator, phase sequencer, and RM+ search
// engine to an external caller. pkg/dui is the client half of this same
// protocol (used by internal/bot/strategy_external.go to drive an out-of-process
// engine); Dispatcher is the process on the other end of that pipe.
package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tillerman/parley/internal/bot/neural"
	"github.com/tillerman/parley/pkg/diplomacy"
)

const (
	protocolVersion = 1
	engineName      = "parley"
	engineAuthor    = "parley contributors"

	defaultSearchTimeMS = 5000
	defaultStrength     = 50
	defaultThreads      = 1

	// searchSliceDuration bounds a single RegretMatchingSearch call so the
	// dispatcher can poll for stop/quit between slices. See runSearch.
	searchSliceDuration = 200 * time.Millisecond

	// infiniteSearchCap bounds a "go infinite" search in the absence of a
	// stop command, so a client that forgets to send stop cannot wedge the
	// process forever.
	infiniteSearchCap = 10 * time.Minute
)

// Dispatcher holds one engine session's state: installed position, active
// power, configured options, and the in-flight search (if any). A Dispatcher
// is not safe for use by more than one Run loop at a time.
type Dispatcher struct {
	mu      sync.Mutex
	gs      *diplomacy.GameState
	m       *diplomacy.DiplomacyMap
	power   diplomacy.Power
	options map[string]string

	logger zerolog.Logger

	search *searchSession
}

// searchSession tracks one in-flight "go" command.
type searchSession struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *searchSession) requestStop() {
	s.once.Do(func() { close(s.stop) })
}

// NewDispatcher creates a Dispatcher with the standard initial position and
// no active power set. diagLogger receives diagnostics (protocol/position/
// order parse errors per the error taxonomy); it is distinct from the
// command-response stream written by Run.
func NewDispatcher(diagLogger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		gs:      diplomacy.NewInitialState(),
		m:       diplomacy.StandardMap(),
		options: map[string]string{},
		logger:  diagLogger,
	}
}

// Run reads commands from r, one per line, and writes protocol responses to
// w until a "quit" command is processed, r reaches EOF, or ctx is canceled.
// "go" hands its search off to its own goroutine (see cmdGo) and returns
// immediately, so the loop here is always free to read and dispatch the
// next command — including "stop" — without waiting on the search. This is
// the cooperative outer-loop model of §5: the search is never blocked on by
// the command loop; cancellation is signaled, not awaited, except by
// "isready" and "quit", which explicitly wait for the in-flight search to
// finish so their response reflects its completion.
func (d *Dispatcher) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			quit, err := d.dispatch(ctx, line, w)
			if err != nil {
				d.logger.Error().Err(err).Str("command", line).Msg("dispatch error")
			}
			if quit {
				return nil
			}
		}
	}
}

// dispatch parses and executes a single protocol line. Malformed commands
// are logged to the diagnostic channel and otherwise ignored; per §7 the
// dispatcher never crashes on bad input.
func (d *Dispatcher) dispatch(ctx context.Context, line string, w io.Writer) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "dui":
		d.cmdDUI(w)
	case "isready":
		d.cmdIsReady(w)
	case "setoption":
		d.cmdSetOption(args)
	case "newgame":
		d.cmdNewGame()
	case "position":
		d.cmdPosition(args)
	case "setpower":
		d.cmdSetPower(args)
	case "go":
		d.cmdGo(ctx, args, w)
	case "stop":
		d.cmdStop()
	case "press":
		// Accepted but a no-op: structured diplomatic messaging is out of
		// scope for the core engine.
	case "quit":
		// Request cancellation of any in-flight search, then wait for its
		// bestorders line to flush before terminating the dispatcher.
		d.cmdStop()
		d.cmdIsReady(io.Discard)
		return true, nil
	default:
		return false, fmt.Errorf("unrecognized command %q", cmd)
	}
	return false, nil
}

func (d *Dispatcher) cmdDUI(w io.Writer) {
	fmt.Fprintf(w, "id name %s\n", engineName)
	fmt.Fprintf(w, "id author %s\n", engineAuthor)
	fmt.Fprintln(w, "option name Threads type spin default 1 min 1 max 64")
	fmt.Fprintln(w, "option name SearchTime type spin default 5000 min 1 max 3600000")
	fmt.Fprintln(w, "option name Strength type spin default 50 min 1 max 100")
	fmt.Fprintf(w, "protocol_version %d\n", protocolVersion)
	fmt.Fprintln(w, "duiok")
}

// cmdIsReady blocks until any in-flight search completes, then reports ready.
func (d *Dispatcher) cmdIsReady(w io.Writer) {
	d.mu.Lock()
	session := d.search
	d.mu.Unlock()
	if session != nil {
		<-session.done
	}
	fmt.Fprintln(w, "readyok")
}

func (d *Dispatcher) cmdSetOption(args []string) {
	name, value, ok := parseSetOption(args)
	if !ok {
		d.logger.Warn().Strs("args", args).Msg("malformed setoption command")
		return
	}
	d.mu.Lock()
	d.options[name] = value
	d.mu.Unlock()
}

// parseSetOption parses "name X [value Y]" into (X, Y, true). Y defaults to
// the empty string when no "value" clause is present.
func parseSetOption(args []string) (name, value string, ok bool) {
	if len(args) < 2 || args[0] != "name" {
		return "", "", false
	}
	i := 1
	for ; i < len(args) && args[i] != "value"; i++ {
		if name != "" {
			name += " "
		}
		name += args[i]
	}
	if name == "" {
		return "", "", false
	}
	if i < len(args) && args[i] == "value" {
		value = strings.Join(args[i+1:], " ")
	}
	return name, value, true
}

func (d *Dispatcher) cmdNewGame() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gs = diplomacy.NewInitialState()
	d.power = diplomacy.Neutral
}

func (d *Dispatcher) cmdPosition(args []string) {
	if len(args) == 0 {
		d.logger.Warn().Msg("position command missing DFEN argument")
		return
	}
	gs, err := diplomacy.DecodeDFEN(strings.Join(args, " "))
	if err != nil {
		d.logger.Warn().Err(err).Msg("malformed DFEN, position left unchanged")
		return
	}
	d.mu.Lock()
	d.gs = gs
	d.mu.Unlock()
}

func (d *Dispatcher) cmdSetPower(args []string) {
	if len(args) == 0 {
		d.logger.Warn().Msg("setpower command missing power name")
		return
	}
	power := diplomacy.Power(strings.ToLower(args[0]))
	valid := false
	for _, p := range diplomacy.AllPowers() {
		if p == power {
			valid = true
			break
		}
	}
	if !valid {
		d.logger.Warn().Str("power", args[0]).Msg("unrecognized power name")
		return
	}
	d.mu.Lock()
	d.power = power
	d.mu.Unlock()
}

func (d *Dispatcher) cmdStop() {
	d.mu.Lock()
	session := d.search
	d.mu.Unlock()
	if session != nil {
		session.requestStop()
	}
}

// goCommand is the parsed form of a "go" command line.
type goCommand struct {
	moveTimeMS int
	depth      int
	nodes      int
	infinite   bool
}

func parseGoCommand(args []string) goCommand {
	var g goCommand
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "movetime":
			if i+1 < len(args) {
				g.moveTimeMS, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "depth":
			if i+1 < len(args) {
				g.depth, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "nodes":
			if i+1 < len(args) {
				g.nodes, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "infinite":
			g.infinite = true
		}
	}
	return g
}

// cmdGo starts an asynchronous search and, once it completes, writes the
// accumulated "info" lines and a final "bestorders" line to w. It returns
// immediately; the search runs on its own goroutine so the dispatch loop
// keeps servicing "stop"/"isready" while it runs.
func (d *Dispatcher) cmdGo(ctx context.Context, args []string, w io.Writer) {
	g := parseGoCommand(args)

	d.mu.Lock()
	gs := d.gs.Clone()
	m := d.m
	power := d.power
	strength := d.optionInt("Strength", defaultStrength)
	optSearchTimeMS := d.optionInt("SearchTime", defaultSearchTimeMS)
	session := &searchSession{stop: make(chan struct{}), done: make(chan struct{})}
	d.search = session
	d.mu.Unlock()

	budget := time.Duration(g.moveTimeMS) * time.Millisecond
	if budget <= 0 {
		budget = time.Duration(optSearchTimeMS) * time.Millisecond
	}
	if g.infinite {
		budget = infiniteSearchCap
	}

	go func() {
		defer close(session.done)
		defer func() {
			d.mu.Lock()
			if d.search == session {
				d.search = nil
			}
			d.mu.Unlock()
		}()

		if power == diplomacy.Neutral {
			d.logger.Warn().Msg("go command issued with no active power set")
			fmt.Fprintln(w, "bestorders -")
			return
		}

		orders := d.runSearch(gs, m, power, strength, budget, session.stop, w)
		fmt.Fprintf(w, "bestorders %s\n", orders)
	}()
}

func (d *Dispatcher) optionInt(name string, def int) int {
	v, ok := d.options[name]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// runSearch dispatches to the phase-appropriate order generator and returns
// the result already formatted as DSON. Movement-phase searches run the RM+
// engine in successive slices (see searchSliceDuration) so the stop flag and
// deadline are checked between slices; retreat and build phases are O(units)
// per §5 and complete in a single pass.
func (d *Dispatcher) runSearch(gs *diplomacy.GameState, m *diplomacy.DiplomacyMap, power diplomacy.Power, strength int, budget time.Duration, stop <-chan struct{}, w io.Writer) string {
	start := time.Now()

	switch gs.Phase {
	case diplomacy.PhaseRetreat:
		orders := neural.HeuristicRetreatOrders(gs, power, m)
		emitInfo(w, 1, len(orders), 0, 0, time.Since(start))
		return diplomacy.FormatDSON(retreatOrdersToDSON(orders))

	case diplomacy.PhaseBuild:
		orders := neural.HeuristicBuildOrders(gs, power, m)
		emitInfo(w, 1, len(orders), 0, 0, time.Since(start))
		return diplomacy.FormatDSON(buildOrdersToDSON(orders))

	default:
		return d.runMovementSearch(gs, m, power, strength, budget, stop, w, start)
	}
}

func (d *Dispatcher) runMovementSearch(gs *diplomacy.GameState, m *diplomacy.DiplomacyMap, power diplomacy.Power, strength int, budget time.Duration, stop <-chan struct{}, w io.Writer, start time.Time) string {
	best := neural.SearchResult{Orders: holdOrders(gs, power)}
	var totalNodes, totalIterations uint64

	for {
		elapsed := time.Since(start)
		if elapsed >= budget {
			break
		}
		select {
		case <-stop:
			return diplomacy.FormatDSON(orderSliceToDSON(best.Orders))
		default:
		}

		slice := searchSliceDuration
		if remaining := budget - elapsed; remaining < slice {
			slice = remaining
		}

		result := neural.RegretMatchingSearch(power, gs, m, slice, nil, nil, strength, nil)
		totalNodes += result.Nodes
		totalIterations += result.Iterations
		if len(result.Orders) > 0 {
			best = result
		}

		emitInfo(w, 1, int(totalNodes), int(best.Score), int(totalIterations), time.Since(start))

		select {
		case <-stop:
			return diplomacy.FormatDSON(orderSliceToDSON(best.Orders))
		default:
		}
	}

	return diplomacy.FormatDSON(orderSliceToDSON(best.Orders))
}

// emitInfo writes one "info" line. iterations is the RM+-specific field
// from §6.3; value_net reports whether neural guidance was used (always
// false here: the dispatcher does not yet wire an oracle, see DESIGN.md).
func emitInfo(w io.Writer, depth, nodes, score, iterations int, elapsed time.Duration) {
	fmt.Fprintf(w, "info depth %d nodes %d score %d time %d iterations %d value_net %t\n",
		depth, nodes, score, elapsed.Milliseconds(), iterations, false)
}

// holdOrders is the search's fallback result before any RM+ slice has
// completed: hold in place everywhere, the only order guaranteed legal for
// every unit regardless of board state.
func holdOrders(gs *diplomacy.GameState, power diplomacy.Power) []diplomacy.Order {
	var orders []diplomacy.Order
	for _, u := range gs.Units {
		if u.Power != power {
			continue
		}
		orders = append(orders, diplomacy.Order{
			UnitType: u.Type,
			Power:    u.Power,
			Location: u.Province,
			Coast:    u.Coast,
			Type:     diplomacy.OrderHold,
		})
	}
	return orders
}

func orderSliceToDSON(orders []diplomacy.Order) []diplomacy.DSONOrder {
	out := make([]diplomacy.DSONOrder, len(orders))
	for i, o := range orders {
		out[i] = diplomacy.OrderToDSON(o)
	}
	return out
}

func retreatOrdersToDSON(orders []diplomacy.RetreatOrder) []diplomacy.DSONOrder {
	out := make([]diplomacy.DSONOrder, len(orders))
	for i, o := range orders {
		out[i] = diplomacy.RetreatOrderToDSON(o)
	}
	return out
}

func buildOrdersToDSON(orders []diplomacy.BuildOrder) []diplomacy.DSONOrder {
	out := make([]diplomacy.DSONOrder, len(orders))
	for i, o := range orders {
		out[i] = diplomacy.BuildOrderToDSON(o)
	}
	return out
}

// Package inspector is a single-step TUI over a running simulator,
// directly continuing the teacher's own cpu.Debug step-debugger pattern
// (internal/sim/inspector is the GPU-side counterpart of cpu/debugger.go),
// retargeted from one CPU's registers/memory page table to every core's
// warp-pool occupancy and the shared cache/memory/scoreboard state.
package inspector

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"github.com/macsim/macsim/internal/sim/core"
	"github.com/macsim/macsim/internal/sim/simulator"
)

type model struct {
	sim  *simulator.Simulator
	last *stepInfo
	err  error
}

// stepInfo records the global cycle reached by the most recent manual
// step. View does not render it.
type stepInfo struct {
	cycle uint64
}

// Init is the first function bubbletea calls. No initial command needed:
// the simulator is already built and ready to step.
func (m model) Init() tea.Cmd { return nil }

// Update advances the simulator by one global cycle on space or "j", and
// quits on "q".
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case " ", "j":
			if m.sim.Done() {
				return m, nil
			}
			m.sim.Tick()
			m.last = &stepInfo{cycle: m.sim.Cycle()}
		}
	}
	return m, nil
}

// warpSnapshot is the dumpable summary of one warp's scheduling state, in
// place of spew-dumping *warp.Warp directly (which would also spill its
// unexported trace-reader internals).
type warpSnapshot struct {
	WarpID    uint32
	BlockID   uint32
	CCWSScore int
	Container string
}

func coreWarps(c *core.Core) []warpSnapshot {
	var out []warpSnapshot
	if c.Running != nil {
		out = append(out, warpSnapshot{c.Running.WarpID, c.Running.BlockID, c.Running.CCWSScore, "running"})
	}
	for _, w := range c.Dispatched {
		out = append(out, warpSnapshot{w.WarpID, w.BlockID, w.CCWSScore, "dispatched"})
	}
	for _, w := range c.Suspended {
		out = append(out, warpSnapshot{w.WarpID, w.BlockID, w.CCWSScore, "suspended"})
	}
	return out
}

func (m model) coreRow(c *core.Core) string {
	return fmt.Sprintf(
		"core %2d | cycle %8d | retired %6d | stalls %6d | dispatched=%d suspended=%d running=%v | retired=%v",
		c.ID, c.Cycle, c.RetiredInstructions, c.StallCycles,
		len(c.Dispatched), len(c.Suspended), c.Running != nil, c.Retired,
	)
}

func (m model) summary() string {
	snap := m.sim.Stats.Snapshot()
	return fmt.Sprintf(
		"cycle %8d | ipc %.4f | cache hit%% %5.1f | mem req/resp %d/%d | scoreboard depth %d | done=%v",
		m.sim.Cycle(), snap.InstrPerCycle(), snap.CacheHitRatePercent(),
		snap.MemRequests, snap.MemResponses, m.sim.Scoreboard.Len(), m.sim.Done(),
	)
}

// View renders the program's UI, which is just a string. Rendered after
// every Update, mirroring the teacher's cpu/debugger.go View shape: a
// table of live state plus a spew dump of the most interesting detail.
func (m model) View() string {
	rows := []string{m.summary()}
	for _, c := range m.sim.Cores {
		rows = append(rows, m.coreRow(c))
	}
	body := lipgloss.JoinVertical(lipgloss.Left, rows...)

	var detail string
	if len(m.sim.Cores) > 0 {
		detail = spew.Sdump(coreWarps(m.sim.Cores[0]))
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, "", "core 0 warps:", detail, "space/j: step  q: quit")
}

// Run starts the interactive single-step inspector over sim. It blocks
// until the user quits.
func Run(sim *simulator.Simulator) error {
	final, err := tea.NewProgram(model{sim: sim}).Run()
	if err != nil {
		return fmt.Errorf("inspector: %w", err)
	}
	if m, ok := final.(model); ok && m.err != nil {
		return m.err
	}
	return nil
}

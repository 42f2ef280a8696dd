// Package ui provides the Bubble Tea quote board.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-quoter/business/quoting/app"
	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/asset"
)

const buildTimeout = 15 * time.Second

var hundred = decimal.NewFromInt(100)

// Controls is what the board drives. Calls may block on the controller
// listener, so the board only ever invokes them from commands.
type Controls interface {
	SetAmount(human string) error
	Select(protocol string) error
	ClearSelection()
	Refresh()
	Build(ctx context.Context, protocol string) (domain.SwapExecutionParams, error)
}

// Model is the quote board.
type Model struct {
	controls Controls
	title    string

	keys    KeyMap
	help    help.Model
	amount  textinput.Model
	spinner spinner.Model

	view     app.View
	cursor   int
	block    uint64
	exec     *ExecutionMsg
	errMsg   string
	width    int
	quitting bool
}

// New creates a board for one token pair, starting from amount.
func New(controls Controls, title, amount string) Model {
	in := textinput.New()
	in.Prompt = "amount › "
	in.Placeholder = "0.0"
	in.CharLimit = 32
	in.SetValue(amount)
	in.CursorEnd()
	in.Cursor.SetMode(cursor.CursorStatic)
	in.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = BlockStyle

	return Model{
		controls: controls,
		title:    title,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		amount:   in,
		spinner:  sp,
	}
}

// Init initializes the board and quotes the starting amount.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.setAmount(m.amount.Value()))
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case ViewMsg:
		m.view = msg.View
		m.clampCursor()
		if msg.View.Err != nil {
			m.errMsg = msg.View.Err.Error()
		} else if msg.View.State == app.StateReady {
			m.errMsg = ""
		}
		return m, nil

	case BlockMsg:
		m.block = msg.Number
		return m, nil

	case ExecutionMsg:
		m.exec = &msg
		m.errMsg = ""
		return m, nil

	case ErrorMsg:
		if msg.Error != nil {
			m.errMsg = msg.Error.Error()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.amount, cmd = m.amount.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.outcomes())-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		rows := m.outcomes()
		if m.cursor >= len(rows) {
			return m, nil
		}
		protocol := rows[m.cursor].Adapter
		controls := m.controls
		return m, func() tea.Msg {
			if err := controls.Select(protocol); err != nil {
				return ErrorMsg{Error: err}
			}
			return nil
		}

	case key.Matches(msg, m.keys.Clear):
		controls := m.controls
		return m, func() tea.Msg {
			controls.ClearSelection()
			return nil
		}

	case key.Matches(msg, m.keys.Refresh):
		controls := m.controls
		return m, func() tea.Msg {
			controls.Refresh()
			return nil
		}

	case key.Matches(msg, m.keys.Build):
		if m.view.Selected == nil {
			m.errMsg = "no quote to build"
			return m, nil
		}
		m.exec = nil
		return m, m.build(m.view.Selected.Protocol)
	}

	if !amountKey(msg) {
		return m, nil
	}
	before := m.amount.Value()
	var cmd tea.Cmd
	m.amount, cmd = m.amount.Update(msg)
	if after := m.amount.Value(); after != before {
		m.exec = nil
		return m, tea.Batch(cmd, m.setAmount(after))
	}
	return m, cmd
}

// amountKey reports whether msg edits the amount field.
func amountKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyBackspace, tea.KeyDelete, tea.KeyLeft, tea.KeyRight, tea.KeyHome, tea.KeyEnd:
		return true
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			if (r < '0' || r > '9') && r != '.' {
				return false
			}
		}
		return len(msg.Runes) > 0
	}
	return false
}

func (m Model) setAmount(value string) tea.Cmd {
	controls := m.controls
	return func() tea.Msg {
		if err := controls.SetAmount(value); err != nil {
			return ErrorMsg{Error: err}
		}
		return nil
	}
}

func (m Model) build(protocol string) tea.Cmd {
	controls := m.controls
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
		defer cancel()
		params, err := controls.Build(ctx, protocol)
		if err != nil {
			return ErrorMsg{Error: err}
		}
		return ExecutionMsg{Protocol: protocol, Params: params}
	}
}

func (m Model) outcomes() []domain.SourceOutcome {
	if m.view.Snapshot == nil {
		return nil
	}
	return m.view.Snapshot.Outcomes
}

func (m *Model) clampCursor() {
	n := len(m.outcomes())
	switch {
	case n == 0:
		m.cursor = 0
	case m.cursor >= n:
		m.cursor = n - 1
	}
}

// View renders the board.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title))
	if m.block > 0 {
		b.WriteString("  " + BlockStyle.Render(fmt.Sprintf("block #%d", m.block)))
	}
	b.WriteString("\n\n")
	b.WriteString(m.amount.View())
	b.WriteString("\n")
	b.WriteString(m.renderState())
	b.WriteString("\n\n")
	b.WriteString(BoxStyle.Render(m.renderTable()))
	b.WriteString("\n")

	if d := m.view.Display; d != nil && m.view.Selected != nil {
		b.WriteString(m.renderSelected(*d))
		b.WriteString("\n")
	}
	if m.exec != nil {
		b.WriteString(BoxStyle.Render(m.renderExecution()))
		b.WriteString("\n")
	}
	if m.errMsg != "" {
		b.WriteString(ErrorStyle.Render("✗ " + m.errMsg))
		b.WriteString("\n")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) renderState() string {
	switch m.view.State {
	case app.StateDebouncing, app.StateFetching:
		return m.spinner.View() + " " + MutedValue.Render(m.view.State.String()+"…")
	case app.StateReady:
		return BestStyle.Render("● ready")
	case app.StateFailed:
		return FailedStyle.Render("● failed")
	default:
		return MutedValue.Render("○ enter an amount")
	}
}

func (m Model) renderTable() string {
	rows := m.outcomes()
	if len(rows) == 0 {
		return MutedValue.Render("no quotes yet")
	}

	out := m.view.Intent.TokenOut
	lines := []string{HeaderStyle.Render(fmt.Sprintf("  %-14s %18s %10s %8s %9s  %s",
		"SOURCE", "AMOUNT OUT", "GAS", "FEE", "IMPACT", "STATUS"))}
	for i, o := range rows {
		marker := "  "
		if i == m.cursor {
			marker = CursorStyle.Render("▸ ")
		}

		r, ok := o.Result()
		if !ok {
			lines = append(lines, marker+FailedStyle.Render(fmt.Sprintf("%-14s %18s %10s %8s %9s  %s",
				o.Adapter, "-", "-", "-", "-", string(o.Code()))))
			continue
		}

		amount := r.AmountOut.String()
		if out != nil {
			amount = asset.FromRaw(out, r.AmountOut).ToDecimal().StringFixed(6)
		}
		fee := "-"
		if r.FeeTier != 0 {
			fee = r.FeeTier.String()
		}
		impact := "-"
		if r.PriceImpact.Valid {
			impact = r.PriceImpact.Decimal.Mul(hundred).StringFixed(2) + "%"
		}

		line := fmt.Sprintf("%-14s %18s %10d %8s %9s  ", o.Adapter, amount, r.GasEstimate, fee, impact)
		lines = append(lines, marker+m.styleRow(o.Adapter, line))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) styleRow(protocol, line string) string {
	switch {
	case m.view.UserPick && m.view.Selected != nil && m.view.Selected.Protocol == protocol:
		return PinnedStyle.Render(line + "pinned")
	case m.view.Best != nil && m.view.Best.Protocol == protocol:
		return BestStyle.Render(line + "best")
	}
	return line
}

func (m Model) renderSelected(d domain.QuoteDisplay) string {
	sym := func(a *asset.Asset) string {
		if a == nil {
			return ""
		}
		return a.Symbol()
	}
	in, out := sym(m.view.Intent.TokenIn), sym(m.view.Intent.TokenOut)
	return fmt.Sprintf("%s %s %s  %s %s %s  %s 1 %s = %s %s",
		MutedValue.Render("via"), m.view.Selected.Protocol, MutedValue.Render("|"),
		MutedValue.Render("min out"), d.MinAmountOutFmt, out,
		MutedValue.Render("price"), in, d.EffectivePrice, out)
}

func (m Model) renderExecution() string {
	p := m.exec.Params
	return strings.Join([]string{
		HeaderStyle.Render("Transaction · " + m.exec.Protocol),
		fmt.Sprintf("to     %s", p.To.Hex()),
		fmt.Sprintf("value  %s", p.ValueInt().String()),
		fmt.Sprintf("gas    %d", p.GasLimit),
		fmt.Sprintf("data   %s", shorten(p.Data.String(), 66)),
	}, "\n")
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

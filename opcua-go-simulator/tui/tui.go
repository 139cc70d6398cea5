package tui

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"opcua-tools/opcua-go-simulator/simulator"
)

type Model struct {
	state         *simulator.State
	log           *log.Logger
	values        map[string]simulator.ValueInfo
	prevValues    map[string]simulator.ValueInfo
	order         []string
	status        string
	textInput     textinput.Model
	width, height int
}

type tickMsg time.Time

func NewModel(state *simulator.State, logger *log.Logger) Model {
	ti := textinput.New()
	ti.Placeholder = "e.g., write Temperature 55.5 | read RPM"
	ti.Focus()
	ti.CharLimit = 156
	ti.Width = 80
	return Model{
		state:      state,
		log:        logger,
		values:     make(map[string]simulator.ValueInfo),
		prevValues: make(map[string]simulator.ValueInfo),
		textInput:  ti,
		status:     "Press Ctrl+C to quit.",
	}
}

func (m Model) Init() tea.Cmd {
	return doTick
}

func doTick() tea.Msg {
	time.Sleep(500 * time.Millisecond)
	return tickMsg{}
}

func (m *Model) handleCommand() {
	input := strings.TrimSpace(m.textInput.Value())
	if input == "" {
		return
	}
	parts := strings.Fields(input)
	command := strings.ToLower(parts[0])

	switch command {
	case "write", "w":
		if len(parts) < 3 {
			m.status = "Error: 'write' requires a variable name and a value."
			return
		}
		m.state.SendCommand(simulator.WriteCmd{Key: parts[1], Raw: strings.Join(parts[2:], " ")})
		m.status = fmt.Sprintf("Success: Queued write %s to %s.", strings.Join(parts[2:], " "), parts[1])
	case "read", "r":
		if len(parts) < 2 {
			m.status = "Error: 'read' requires a variable name."
			return
		}
		if info, ok := m.values[parts[1]]; ok {
			m.status = fmt.Sprintf("%s = %s (%s)", parts[1], info.Text, info.NodeID)
		} else {
			m.status = fmt.Sprintf("Error: Variable '%s' not found.", parts[1])
		}
	default:
		m.status = fmt.Sprintf("Error: Unknown command '%s'.", command)
	}
	m.textInput.SetValue("")
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			m.handleCommand()
			return m, nil
		}
	case tickMsg:
		m.prevValues = m.values
		values, order, status := m.state.Snapshot()
		m.values = values
		m.order = order
		m.status = status
		return m, doTick
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder
	changedStyle := lipgloss.NewStyle().Reverse(true)
	b.WriteString("--- OPC UA PLC Simulator ---\n\n")

	for _, name := range m.order {
		info, ok := m.values[name]
		if !ok {
			continue
		}
		simMode := info.SimMode
		if simMode == "" {
			simMode = "static"
		}
		line := fmt.Sprintf("%-20s %-36s %-7s %-13s %s\n", name, info.NodeID, info.Type, simMode, info.Text)
		prev, hasPrev := m.prevValues[name]
		if hasPrev && prev.Text != info.Text {
			b.WriteString(changedStyle.Render(line))
		} else {
			b.WriteString(line)
		}
	}

	footer := fmt.Sprintf("\n%s\n%s", m.textInput.View(), m.status)
	return b.String() + footer
}

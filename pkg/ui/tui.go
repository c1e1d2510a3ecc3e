// Package ui provides the Bubble Tea TUI for the sandwich detector.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/sandwich-bot/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "done", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"
	PhaseStartup   Phase = "startup"
	PhaseDashboard Phase = "dashboard"
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

var startupOrder = []string{"config", "ethereum", "mempool", "registry"}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	keys   KeyMap
	swaps  *components.SwapsComponent
	blocks *components.BlocksComponent
	stats  *components.StatsComponent
	status *components.StatusComponent

	phase        Phase
	welcomeStart time.Time

	ready      bool
	quitting   bool
	paused     bool
	width      int
	height     int
	lastUpdate time.Time
	errors     []ErrorEntry
	logs       []string

	startupComplete bool
	startupSteps    map[string]*StartupStep
	startupTime     time.Time

	activityFeed []string
	lastSwapTime time.Time
	registry     *RegistryMsg
}

// New creates a new TUI model.
func New() Model {
	now := time.Now()
	return Model{
		keys:         DefaultKeyMap(),
		swaps:        components.NewSwapsComponent(200, 12),
		blocks:       components.NewBlocksComponent(6),
		stats:        components.NewStatsComponent(),
		status:       components.NewStatusComponent("Ethereum", "Mempool"),
		phase:        PhaseWelcome,
		welcomeStart: now,
		logs:         make([]string, 0, 5),
		errors:       make([]ErrorEntry, 0, 3),
		activityFeed: make([]string, 0, 6),
		startupSteps: map[string]*StartupStep{
			"config":   {Name: "Loading configuration", Status: "pending"},
			"ethereum": {Name: "Connecting to Ethereum", Status: "pending"},
			"mempool":  {Name: "Subscribing to mempool", Status: "pending"},
			"registry": {Name: "Loading pool registry", Status: "pending"},
		},
		startupTime: now,
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd sends a tick every 100ms for animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		// any other key skips the welcome screen
		if m.phase == PhaseWelcome {
			m.enterStartup()
			return m, tickCmd()
		}
		switch {
		case key.Matches(msg, m.keys.Clear):
			m.swaps.Clear()
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Up):
			m.swaps.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.swaps.ScrollDown()
		case key.Matches(msg, m.keys.ClearErrors):
			m.errors = m.errors[:0]
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.enterStartup()
		}
		return m, tickCmd()

	case SwapMsg:
		if m.paused {
			return m, nil
		}
		m.swaps.Add(msg.Row)
		m.lastSwapTime = time.Now()
		m.lastUpdate = m.lastSwapTime
		m.activityFeed = addActivity(m.activityFeed, fmt.Sprintf("%s %s %s on %s",
			msg.Row.Direction, msg.Row.MainAmount, msg.Row.Token, shortHex(msg.Row.Pair)))

	case BlockMsg:
		m.blocks.Add(components.BlockRow{
			Number:      msg.Number,
			BaseFee:     msg.BaseFee,
			NextBaseFee: msg.NextBaseFee,
		})
		m.lastUpdate = time.Now()
		m.activityFeed = addActivity(m.activityFeed, fmt.Sprintf("Block #%d received", msg.Number))
		if m.phase == PhaseStartup {
			m.phase = PhaseDashboard
		}

	case StatsMsg:
		stats := msg.Stats
		if m.registry != nil {
			stats.Pools = m.registry.Pools
			stats.Tokens = m.registry.Tokens
		}
		m.stats.Update(stats)

	case RegistryMsg:
		m.registry = &msg
		stats := m.stats.Stats()
		stats.Pools, stats.Tokens = msg.Pools, msg.Tokens
		m.stats.Update(stats)
		m.setStep("registry", "done")
		m.logs = addLog(m.logs, "info", fmt.Sprintf("registry loaded: %d pools (%d with main currency), %d tokens",
			msg.Pools, msg.MainPools, msg.Tokens))

	case ConnectionStatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:       msg.Name,
			Connected:  msg.Connected,
			State:      msg.State,
			LastUpdate: time.Now(),
		})
		m.lastUpdate = time.Now()
		status := "connecting"
		if msg.Connected {
			status = "connected"
		}
		m.setStep(strings.ToLower(msg.Name), status)

	case ErrorMsg:
		if msg.Error == nil {
			return m, nil
		}
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{Message: msg.Error.Error(), Timestamp: time.Now()})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)

	case StartupMsg:
		m.setStep(msg.Step, msg.Status)
		if msg.Message != "" {
			m.logs = addLog(m.logs, "info", msg.Message)
		}
	}

	return m, nil
}

func (m *Model) enterStartup() {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// called directly: Send must not be used from inside Update
	if OnStartModules != nil {
		go OnStartModules()
	}
}

func (m *Model) setStep(name, status string) {
	step, ok := m.startupSteps[name]
	if !ok {
		return
	}
	step.Status = status

	for _, s := range m.startupSteps {
		if s.Status != "connected" && s.Status != "done" {
			return
		}
	}
	m.startupComplete = true
	if m.phase == PhaseStartup {
		m.phase = PhaseDashboard
	}
}

// addLog keeps the last 5 log lines.
func addLog(logs []string, level, message string) []string {
	line := fmt.Sprintf("[%s] %s: %s", time.Now().Format("15:04:05"), level, message)
	logs = append(logs, line)
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// addActivity keeps the last 6 activity lines.
func addActivity(feed []string, message string) []string {
	line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), message)
	feed = append(feed, line)
	if len(feed) > 6 {
		feed = feed[len(feed)-6:]
	}
	return feed
}

func shortHex(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "…" + s[len(s)-4:]
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" 🥪 Sandwich Detector "))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftCol := m.blocks.View() + "\n\n" + m.stats.View()
	rightCol := m.renderActivityFeed() + "\n\n" + m.swaps.View()

	if m.width > 120 {
		left := BoxStyle.Width(m.width*2/5 - 2).Render(leftCol)
		right := BoxStyle.Width(m.width*3/5 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		width := max(m.width-4, 40)
		b.WriteString(BoxStyle.Width(width).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(rightCol))
	}
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(ColorWarning).Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.keys.helpLine()))

	return b.String()
}

func (m Model) renderActivityFeed() string {
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render("LIVE ACTIVITY"))
	sb.WriteString("\n\n")

	if len(m.activityFeed) == 0 {
		sb.WriteString(MutedValue.Render("  Waiting for blocks..."))
		return sb.String()
	}
	for _, activity := range m.activityFeed {
		sb.WriteString(feedStyle(activity).Render("  " + activity))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	goldStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	logo := `
   ███████╗ █████╗ ███╗   ██╗██████╗  ██████╗
   ██╔════╝██╔══██╗████╗  ██║██╔══██╗██╔═══██╗
   ███████╗███████║██╔██╗ ██║██║  ██║██║   ██║
   ╚════██║██╔══██║██║╚██╗██║██║  ██║██║   ██║
   ███████║██║  ██║██║ ╚████║██████╔╝╚██████╔╝
   ╚══════╝╚═╝  ╚═╝╚═╝  ╚═══╝╚═════╝  ╚═════╝
`
	var sb strings.Builder
	sb.WriteString("\n\n\n\n")
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("           M E M P O O L   S W A P   W A T C H"))
	sb.WriteString("\n\n\n")
	sb.WriteString(goldStyle.Render("              🥪  Find the filling  🥪"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("                  Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("            Press any key to skip, or wait..."))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	successStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  🥪 Sandwich Detector"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, k := range startupOrder {
		step, ok := m.startupSteps[k]
		if !ok {
			continue
		}

		var icon, statusText string
		var style lipgloss.Style

		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			icon = spinners[int(time.Since(m.startupTime).Milliseconds()/200)%len(spinners)]
			statusText, style = "Working...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			MutedValue.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n\n")

	for _, l := range m.logs {
		sb.WriteString(MutedValue.Render("  " + l))
		sb.WriteString("\n")
	}
	if len(m.logs) == 0 {
		sb.WriteString(MutedValue.Render("  A cold registry scan can take several minutes..."))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	if time.Since(m.lastSwapTime) < 500*time.Millisecond {
		spinners := []string{"⟳", "◐", "◓", "◑", "◒"}
		idx := int(time.Now().UnixMilli()/100) % len(spinners)
		parts = append(parts, LiveStyle.Render(spinners[idx]+" Swap"))
	}

	if latest, ok := m.blocks.Latest(); ok {
		parts = append(parts,
			fmt.Sprintf("Block: #%d", latest.Number),
			fmt.Sprintf("Next base fee: %s gwei", latest.NextBaseFee.StringFixed(2)))
	} else {
		parts = append(parts, "Block: -")
	}

	parts = append(parts, m.status.View())

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called once the welcome screen completes. main sets it to
// begin loading modules.
var OnStartModules func()

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
	if _, ok := msg.(StartModulesMsg); ok && OnStartModules != nil {
		OnStartModules()
	}
}

package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/dotside-studios/davi-ndef-agent/buildinfo"
	"github.com/dotside-studios/davi-ndef-agent/nfc"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	textStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD166"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type screen int

const (
	screenReader screen = iota
	screenWriter
)

type writeStage int

const (
	stageEdit writeStage = iota
	stageConfirmLock
	stageArmed
)

// Messages sent from the watcher goroutine.
type (
	tagEventMsg nfc.TagEvent
	statusMsg   nfc.DeviceStatus
)

type agentModel struct {
	session *nfc.Session
	backend *backend
	cfg     Config

	screen screen
	stage  writeStage
	input  textinput.Model
	lock   bool

	status    nfc.DeviceStatus
	lastRead  *nfc.TagEvent
	lastWrite *nfc.TagEvent

	notice    string
	noticeErr bool

	// copyText is the clipboard writer, replaced in tests.
	copyText func(string) error
}

func newAgentModel(cfg Config, b *backend, session *nfc.Session) *agentModel {
	ti := textinput.New()
	ti.Placeholder = "Text to write"
	ti.Prompt = "> "
	ti.Width = 48
	ti.CharLimit = b.model.MaxMessageSize()

	return &agentModel{
		session:  session,
		backend:  b,
		cfg:      cfg,
		input:    ti,
		status:   nfc.DeviceStatus{Message: "Not connected"},
		copyText: clipboard.WriteAll,
	}
}

func (m *agentModel) Init() tea.Cmd {
	return nil
}

func (m *agentModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case statusMsg:
		m.status = nfc.DeviceStatus(msg)
		return m, nil

	case tagEventMsg:
		m.handleEvent(nfc.TagEvent(msg))
		return m, nil
	}

	if m.screen == screenWriter && m.stage == stageEdit {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKey processes keys that are not text input. handled is false when
// the key should reach the text input.
func (m *agentModel) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit, true

	case "tab":
		m.switchScreen()
		return nil, true

	case "ctrl+t":
		if m.backend.sim != nil {
			uid := m.backend.sim.Tap()
			m.setNotice(fmt.Sprintf("Tapped simulated tag %s", uid), false)
		}
		return nil, true

	case "ctrl+n":
		if m.backend.sim != nil {
			uid := m.backend.sim.NewTag()
			m.setNotice(fmt.Sprintf("New blank simulated tag %s", uid), false)
		}
		return nil, true
	}

	if m.screen == screenReader {
		switch msg.String() {
		case "q":
			return tea.Quit, true
		case "c":
			m.copyLastRead()
			return nil, true
		case "x":
			m.clearClipboard()
			return nil, true
		case "w":
			m.switchScreen()
			return nil, true
		}
		return nil, true
	}

	switch m.stage {
	case stageConfirmLock:
		switch msg.String() {
		case "y", "Y":
			m.arm(true)
		case "n", "N", "esc":
			m.stage = stageEdit
			m.input.Focus()
			m.setNotice("Lock cancelled, nothing armed", false)
		}
		return nil, true

	case stageArmed:
		if msg.String() == "esc" {
			m.session.Disarm()
			m.stage = stageEdit
			m.input.Focus()
			m.setNotice("Write cancelled", false)
		}
		return nil, true
	}

	switch msg.String() {
	case "ctrl+l":
		m.lock = !m.lock
		return nil, true
	case "enter":
		capacity := m.capacity()
		if !capacity.Fits {
			m.setNotice(fmt.Sprintf("Text needs %d bytes, %s holds %d", capacity.Used, m.backend.model.Name, capacity.Max), true)
			return nil, true
		}
		if m.lock && m.cfg.RequireLockConfirm {
			m.stage = stageConfirmLock
			m.input.Blur()
			return nil, true
		}
		m.arm(m.lock)
		return nil, true
	case "esc":
		m.switchScreen()
		return nil, true
	}
	return nil, false
}

func (m *agentModel) switchScreen() {
	if m.screen == screenReader {
		m.screen = screenWriter
		if m.stage == stageEdit {
			m.input.Focus()
		}
		return
	}
	m.screen = screenReader
	m.input.Blur()
}

func (m *agentModel) arm(confirmed bool) {
	req, err := m.session.ArmWrite(m.input.Value(), m.lock, confirmed)
	if err != nil {
		m.stage = stageEdit
		m.input.Focus()
		m.setNotice(describeError(err), true)
		return
	}
	m.stage = stageArmed
	m.input.Blur()
	if req.LockAfterWrite {
		m.setNotice("Present a tag to write and lock it", false)
	} else {
		m.setNotice("Present a tag to write", false)
	}
}

func (m *agentModel) handleEvent(ev nfc.TagEvent) {
	if ev.Kind == nfc.EventWrite {
		m.lastWrite = &ev
		m.stage = stageEdit
		m.lock = false
		if m.screen == screenWriter {
			m.input.Focus()
		}
		if ev.Err != nil {
			m.setNotice(describeError(ev.Err), true)
		} else {
			m.setNotice(describeWrite(ev), false)
		}
		return
	}

	m.lastRead = &ev
	if ev.Err != nil {
		m.setNotice(fmt.Sprintf("%s: %s", ev.UID, describeError(ev.Err)), true)
	} else {
		m.setNotice(fmt.Sprintf("Read %s", ev.UID), false)
	}
}

func (m *agentModel) copyLastRead() {
	rec, ok := m.session.LastRead()
	if !ok {
		m.setNotice("Nothing read yet", true)
		return
	}
	if err := m.copyText(rec.Text); err != nil {
		nfc.Logger().Warn("clipboard copy failed", zap.Error(err))
		m.setNotice(fmt.Sprintf("Copy failed: %v", err), true)
		return
	}
	m.setNotice("Copied to clipboard", false)
}

func (m *agentModel) clearClipboard() {
	if err := m.copyText(""); err != nil {
		nfc.Logger().Warn("clipboard clear failed", zap.Error(err))
		m.setNotice(fmt.Sprintf("Clear failed: %v", err), true)
		return
	}
	m.setNotice("Clipboard cleared", false)
}

func (m *agentModel) capacity() nfc.Capacity {
	return nfc.MeasureText(m.session.Language(), m.input.Value(), m.backend.model.MaxMessageSize())
}

func (m *agentModel) setNotice(s string, isErr bool) {
	m.notice = s
	m.noticeErr = isErr
}

func (m *agentModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(buildinfo.DisplayName))
	b.WriteString(" ")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")

	switch m.screen {
	case screenReader:
		m.viewReader(&b)
	case screenWriter:
		m.viewWriter(&b)
	}

	if m.notice != "" {
		b.WriteString("\n")
		if m.noticeErr {
			b.WriteString(errorStyle.Render(m.notice))
		} else {
			b.WriteString(resultStyle.Render(m.notice))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.helpLine()))
	return b.String()
}

func (m *agentModel) renderTabs() string {
	names := []string{"Reader", "Writer"}
	var parts []string
	for i, name := range names {
		if screen(i) == m.screen {
			parts = append(parts, selectedStyle.Render(name))
		} else {
			parts = append(parts, tabStyle.Render(name))
		}
	}
	return strings.Join(parts, " ")
}

func (m *agentModel) renderStatus() string {
	status := m.status.Message
	if status == "" {
		status = "Not connected"
	}
	mode := m.session.Mode()
	line := fmt.Sprintf("%s • mode: %s", status, mode)
	if !m.status.Connected {
		return warnStyle.Render(line)
	}
	return helpStyle.Render(line)
}

func (m *agentModel) viewReader(b *strings.Builder) {
	if m.lastRead == nil {
		b.WriteString("Present a tag to read it.\n")
		return
	}
	ev := m.lastRead
	fmt.Fprintf(b, "Tag %s at %s\n", ev.UID, ev.At.Format("15:04:05"))
	if ev.Err != nil {
		b.WriteString(errorStyle.Render(describeError(ev.Err)))
		b.WriteString("\n")
		return
	}
	fmt.Fprintf(b, "Language: %s\n", ev.Language)
	b.WriteString(textStyle.Render(ev.Text))
	b.WriteString("\n")
}

func (m *agentModel) viewWriter(b *strings.Builder) {
	switch m.stage {
	case stageConfirmLock:
		b.WriteString(warnStyle.Render("Locking makes the tag permanently read-only. It cannot be undone."))
		b.WriteString("\n\nLock after writing? (y/n)\n")
		return

	case stageArmed:
		req, _ := m.session.Pending()
		b.WriteString(resultStyle.Render("Waiting for a tag..."))
		b.WriteString("\n\n")
		b.WriteString(textStyle.Render(req.Text))
		b.WriteString("\n")
		if req.LockAfterWrite {
			b.WriteString(warnStyle.Render("The tag will be locked after writing."))
			b.WriteString("\n")
		}
		return
	}

	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	c := m.capacity()
	counter := fmt.Sprintf("%d/%d bytes (%s)", c.Used, c.Max, m.backend.model.Name)
	if c.Fits {
		b.WriteString(helpStyle.Render(counter))
	} else {
		b.WriteString(errorStyle.Render(counter + " too long"))
	}
	b.WriteString("\n")

	if m.lock {
		b.WriteString(warnStyle.Render("[x] Lock tag after writing"))
	} else {
		b.WriteString("[ ] Lock tag after writing")
	}
	b.WriteString("\n")

	if m.lastWrite != nil && m.lastWrite.Err == nil {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(fmt.Sprintf("Last write: %s at %s", describeWrite(*m.lastWrite), m.lastWrite.At.Format("15:04:05"))))
		b.WriteString("\n")
	}
}

func (m *agentModel) helpLine() string {
	var keys []string
	switch {
	case m.screen == screenReader:
		keys = []string{"tab writer", "c copy", "x clear clipboard", "q quit"}
	case m.stage == stageConfirmLock:
		keys = []string{"y lock", "n cancel"}
	case m.stage == stageArmed:
		keys = []string{"esc cancel write", "tab reader"}
	default:
		keys = []string{"enter arm write", "ctrl+l toggle lock", "tab reader", "ctrl+c quit"}
	}
	if m.backend.sim != nil {
		keys = append(keys, "ctrl+t tap", "ctrl+n new tag")
	}
	return strings.Join(keys, " • ")
}

// runTUI runs the interactive UI with the tag watcher in the background.
func runTUI(ctx context.Context, cfg Config, b *backend) error {
	session := nfc.NewSession(nfc.SessionOptions{
		Language:           cfg.Language,
		RequireLockConfirm: cfg.RequireLockConfirm,
	})

	p := tea.NewProgram(newAgentModel(cfg, b, session), tea.WithAltScreen(), tea.WithContext(ctx))

	dm := nfc.NewDeviceManager(b.manager, cfg.Device)
	watcher := nfc.NewWatcher(dm, nfc.WatcherOptions{
		PollInterval: cfg.PollInterval,
		OnStatus: func(s nfc.DeviceStatus) {
			p.Send(statusMsg(s))
		},
	})

	watchCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher.Run(watchCtx, func(ctx context.Context, tag nfc.Tag) {
			p.Send(tagEventMsg(session.HandleTag(ctx, tag)))
		})
	}()

	_, err := p.Run()
	cancel()
	wg.Wait()

	if err != nil && ctx.Err() != nil {
		// Interrupted by a signal.
		return nil
	}
	return err
}

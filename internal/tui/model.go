package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/service"
)

// Port is the TUI-facing subset of the pipeline.
type Port interface {
	Ingest(ctx context.Context, path, namespace string, opts service.IngestOptions) (service.IngestResult, error)
	Answer(ctx context.Context, question, namespace string, topK int) (string, error)
	Namespaces(ctx context.Context) ([]string, error)
	ClearAll(ctx context.Context) error
}

const statusRefreshing = "Refreshing namespaces..."

type focus int

const (
	focusPath focus = iota
	focusQuestion
)

type (
	ingestDoneMsg struct {
		namespace string
		result    service.IngestResult
		err       error
	}
	answerMsg struct {
		question string
		answer   string
		err      error
	}
	namespacesMsg struct {
		names []string
		err   error
	}
	clearedMsg struct{ err error }
)

// Model is the Bubble Tea model for the document Q&A screen.
type Model struct {
	ctx  context.Context
	port Port
	topK int

	pathInput     textinput.Model
	questionInput textinput.Model
	viewport      viewport.Model
	focus         focus

	namespaces []string
	selected   int
	// preferred is selected once it shows up in a refreshed namespace list.
	preferred string

	overwrite    bool
	busy         bool
	confirmClear bool
	ready        bool

	status       string
	statusErr    bool
	summary      string
	answer       string
	lastQuestion string
}

func New(ctx context.Context, port Port, topK int) Model {
	pi := textinput.New()
	pi.Prompt = "PDF > "
	pi.Placeholder = "path/to/document.pdf"
	pi.Focus()

	qi := textinput.New()
	qi.Prompt = "Q > "
	qi.Placeholder = "Ask a question about the selected document and press Enter"

	return Model{
		ctx:           ctx,
		port:          port,
		topK:          topK,
		pathInput:     pi,
		questionInput: qi,
		viewport:      viewport.New(0, 0),
		namespaces:    []string{"default"},
		status:        "Ready.",
	}
}

func (m Model) Init() tea.Cmd { return tea.Batch(textinput.Blink, m.refreshCmd()) }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ah := answerBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		// header, options, namespaces, summary, status, help
		reserved := 6 + 2*(ih+1)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-ah)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case ingestDoneMsg:
		if msg.err != nil {
			m.busy = false
			m.setError(msg.err)
			return m, nil
		}
		m.summary = msg.result.Summary
		m.preferred = msg.namespace
		m.setStatus(fmt.Sprintf("Processed %d chunks into namespace %q", msg.result.Chunks, msg.namespace))
		// stays busy until the namespace refresh lands
		return m, m.refreshCmd()

	case namespacesMsg:
		m.busy = false
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.applyNamespaces(msg.names)
		if m.status == statusRefreshing {
			m.setStatus(fmt.Sprintf("%d namespace(s) available", len(m.namespaces)))
		}
		return m, nil

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.answer = msg.answer
		m.lastQuestion = msg.question
		m.setStatus(fmt.Sprintf("Answered from namespace %q", m.currentNamespace()))
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case clearedMsg:
		if msg.err != nil {
			m.busy = false
			m.setError(msg.err)
			return m, nil
		}
		m.summary = ""
		m.answer = ""
		m.viewport.SetContent(m.renderAnswer())
		m.setStatus("All indexes cleared")
		return m, m.refreshCmd()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.confirmClear {
			return m.updateConfirm(msg)
		}
		if next, cmd, handled := m.updateAction(msg); handled {
			return next, cmd
		}
	}

	var cmd tea.Cmd
	if m.focus == focusPath {
		m.pathInput, cmd = m.pathInput.Update(msg)
	} else {
		m.questionInput, cmd = m.questionInput.Update(msg)
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.confirmClear = false
		m.busy = true
		m.setStatus("Clearing all indexes...")
		return m, m.clearCmd()
	case "n", "N", "esc":
		m.confirmClear = false
		m.setStatus("Clear cancelled")
	}
	return m, nil
}

// updateAction handles the command keys. Returns handled=false for keys
// that belong to the focused text input.
func (m Model) updateAction(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "tab":
		m.cycleNamespace(1)
		return m, nil, true
	case "shift+tab":
		m.cycleNamespace(-1)
		return m, nil, true
	case "up", "down":
		cmd := m.toggleFocus()
		return m, cmd, true
	case "ctrl+o":
		m.overwrite = !m.overwrite
		return m, nil, true
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd, true
	}

	if m.busy {
		switch msg.String() {
		case "ctrl+p", "ctrl+r", "ctrl+x", "enter":
			return m, nil, true
		}
		return m, nil, false
	}

	switch msg.String() {
	case "ctrl+p":
		return m.startIngest()
	case "ctrl+r":
		m.busy = true
		m.setStatus(statusRefreshing)
		return m, m.refreshCmd(), true
	case "ctrl+x":
		m.confirmClear = true
		m.setStatus("Clear ALL indexes? This cannot be undone. (y/n)")
		return m, nil, true
	case "enter":
		if m.focus == focusPath {
			return m.startIngest()
		}
		return m.startAnswer()
	}
	return m, nil, false
}

func (m Model) startIngest() (Model, tea.Cmd, bool) {
	path := strings.TrimSpace(m.pathInput.Value())
	if path == "" {
		m.setStatus("Enter the path of a PDF file first")
		m.statusErr = true
		return m, nil, true
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		m.setStatus("Only .pdf files are supported")
		m.statusErr = true
		return m, nil, true
	}
	namespace := service.NamespaceFromFilename(path)
	m.busy = true
	m.setStatus(fmt.Sprintf("Processing %s into namespace %q...", filepath.Base(path), namespace))

	ctx, port, overwrite := m.ctx, m.port, m.overwrite
	return m, func() tea.Msg {
		res, err := port.Ingest(ctx, path, namespace, service.IngestOptions{Overwrite: overwrite})
		return ingestDoneMsg{namespace: namespace, result: res, err: err}
	}, true
}

func (m Model) startAnswer() (Model, tea.Cmd, bool) {
	question := strings.TrimSpace(m.questionInput.Value())
	if question == "" {
		return m, nil, true
	}
	namespace := m.currentNamespace()
	m.busy = true
	m.setStatus(fmt.Sprintf("Asking %q...", namespace))

	ctx, port, topK := m.ctx, m.port, m.topK
	return m, func() tea.Msg {
		answer, err := port.Answer(ctx, question, namespace, topK)
		return answerMsg{question: question, answer: answer, err: err}
	}, true
}

func (m Model) refreshCmd() tea.Cmd {
	ctx, port := m.ctx, m.port
	return func() tea.Msg {
		names, err := port.Namespaces(ctx)
		return namespacesMsg{names: names, err: err}
	}
}

func (m Model) clearCmd() tea.Cmd {
	ctx, port := m.ctx, m.port
	return func() tea.Msg {
		return clearedMsg{err: port.ClearAll(ctx)}
	}
}

func (m *Model) toggleFocus() tea.Cmd {
	if m.focus == focusPath {
		m.focus = focusQuestion
		m.pathInput.Blur()
		return m.questionInput.Focus()
	}
	m.focus = focusPath
	m.questionInput.Blur()
	return m.pathInput.Focus()
}

func (m *Model) cycleNamespace(step int) {
	if len(m.namespaces) == 0 {
		return
	}
	m.selected = (m.selected + step + len(m.namespaces)) % len(m.namespaces)
}

func (m *Model) applyNamespaces(names []string) {
	if len(names) == 0 {
		names = []string{"default"}
	}
	want := m.preferred
	if want == "" {
		want = m.currentNamespace()
	}
	m.namespaces = names
	m.selected = 0
	for i, n := range names {
		if n == want {
			m.selected = i
			break
		}
	}
	m.preferred = ""
}

func (m Model) currentNamespace() string {
	if m.selected < 0 || m.selected >= len(m.namespaces) {
		return "default"
	}
	return m.namespaces[m.selected]
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.status = "Error: " + err.Error()
	m.statusErr = true
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Document Q&A"))
	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(m.pathInput.View()))
	b.WriteString("\n")

	check := "[ ]"
	if m.overwrite {
		check = "[x]"
	}
	b.WriteString(mutedStyle.Render(check + " overwrite existing namespace (ctrl+o)"))
	b.WriteString("\n")

	names := make([]string, len(m.namespaces))
	for i, n := range m.namespaces {
		if i == m.selected {
			names[i] = selectedStyle.Render("> " + n)
		} else {
			names[i] = "  " + n
		}
	}
	b.WriteString("Available documents: " + strings.Join(names, " "))
	b.WriteString("\n")
	if m.summary != "" {
		b.WriteString(mutedStyle.Render("Summary: " + m.summary))
	}
	b.WriteString("\n")

	b.WriteString(inputBoxStyle.Render(m.questionInput.View()))
	b.WriteString("\n")
	b.WriteString(answerBoxStyle.Render(m.viewport.View()))
	b.WriteString("\n")

	if m.statusErr {
		b.WriteString(errorStyle.Render(m.status))
	} else {
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("ctrl+p process  ctrl+r refresh  ctrl+x clear all  tab namespace  up/down focus  pgup/pgdown scroll  enter submit  ctrl+c quit"))
	return b.String()
}

func (m Model) renderAnswer() string {
	if m.answer == "" {
		return "No answer yet."
	}
	return highlightBestSentence(m.answer, m.lastQuestion)
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceEndRe  = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n+`)
)

// highlightBestSentence emphasises the sentence sharing the most words with
// query. Everything else in text is returned as is.
func highlightBestSentence(text, query string) string {
	qTokens := toTokenSet(query)
	if strings.TrimSpace(text) == "" || len(qTokens) == 0 {
		return text
	}
	spans := sentenceSpans(text)
	best, bestScore := -1, 0
	for i, sp := range spans {
		if score := tokenOverlapScore(qTokens, text[sp[0]:sp[1]]); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return text
	}
	start, end := spans[best][0], spans[best][1]
	sent := strings.TrimRightFunc(text[start:end], unicode.IsSpace)
	return text[:start] + highlightStyle.Render(sent) + text[start+len(sent):]
}

// sentenceSpans splits text into contiguous [start,end) byte ranges that cover
// all of it. A sentence ends at .!? followed by whitespace or at a line break,
// so decimals like 2.5 stay whole.
func sentenceSpans(text string) [][2]int {
	var spans [][2]int
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		spans = append(spans, [2]int{start, loc[1]})
		start = loc[1]
	}
	if start < len(text) {
		spans = append(spans, [2]int{start, len(text)})
	}
	return spans
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}

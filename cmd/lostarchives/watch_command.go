package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tiagogladstone/the-lost-archives/internal/api"
	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

const watchRecentStories = 8

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	watchMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	watchOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	watchWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	watchPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// watchSnapshot is one refresh of the dashboard data.
type watchSnapshot struct {
	At          time.Time
	StoryCounts map[queue.StoryStatus]int
	JobStats    map[queue.JobType]map[queue.JobStatus]int
	Recent      []api.Story
}

type snapshotMsg struct {
	snapshot watchSnapshot
	err      error
}

type refreshMsg time.Time

type watchModel struct {
	load     func(context.Context) (watchSnapshot, error)
	ctx      context.Context
	interval time.Duration
	spinner  spinner.Model

	snapshot watchSnapshot
	loaded   bool
	err      error
	width    int
}

func newWatchModel(ctx context.Context, interval time.Duration, load func(context.Context) (watchSnapshot, error)) watchModel {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = watchMutedStyle
	return watchModel{load: load, ctx: ctx, interval: interval, spinner: s}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m watchModel) fetch() tea.Cmd {
	return func() tea.Msg {
		snapshot, err := m.load(m.ctx)
		return snapshotMsg{snapshot: snapshot, err: err}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.fetch()
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case snapshotMsg:
		m.err = msg.err
		if msg.err == nil {
			m.snapshot = msg.snapshot
			m.loaded = true
		}
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return refreshMsg(t) })
	case refreshMsg:
		return m, m.fetch()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	header := watchTitleStyle.Render("Lost Archives") + " " + m.spinner.View()
	if !m.loaded {
		if m.err != nil {
			return header + "\n" + watchErrorStyle.Render("error: "+m.err.Error()) + "\n"
		}
		return header + " " + watchMutedStyle.Render("loading…") + "\n"
	}

	body := renderWatchBody(m.snapshot)
	footer := watchMutedStyle.Render(fmt.Sprintf("updated %s · refresh %s · r refresh · q quit",
		m.snapshot.At.Local().Format("15:04:05"), m.interval))
	if m.err != nil {
		footer = watchErrorStyle.Render("refresh failed: "+m.err.Error()) + "\n" + footer
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer) + "\n"
}

func renderWatchBody(snapshot watchSnapshot) string {
	var stories []string
	for _, status := range queue.AllStoryStatuses() {
		count := snapshot.StoryCounts[status]
		label := fmt.Sprintf("%-18s %3d", humanize(string(status)), count)
		switch {
		case count == 0:
			label = watchMutedStyle.Render(label)
		case status == queue.StoryFailed:
			label = watchErrorStyle.Render(label)
		case status == queue.StoryReadyForReview:
			label = watchWarnStyle.Render(label)
		case status == queue.StoryPublished:
			label = watchOKStyle.Render(label)
		}
		stories = append(stories, label)
	}
	storyPanel := watchPanelStyle.Render(watchTitleStyle.Render("Stories") + "\n" + strings.Join(stories, "\n"))

	jobLines := []string{watchTitleStyle.Render("Jobs") + "  " + watchMutedStyle.Render("queued / running / done / failed")}
	for _, jobType := range queue.AllJobTypes() {
		byStatus := snapshot.JobStats[jobType]
		line := fmt.Sprintf("%-21s %4d %4d %4d %4d", jobType,
			byStatus[queue.JobQueued], byStatus[queue.JobProcessing], byStatus[queue.JobCompleted], byStatus[queue.JobFailed])
		switch {
		case byStatus[queue.JobFailed] > 0:
			line = watchErrorStyle.Render(line)
		case byStatus[queue.JobProcessing] > 0:
			line = watchOKStyle.Render(line)
		case len(byStatus) == 0:
			line = watchMutedStyle.Render(line)
		}
		jobLines = append(jobLines, line)
	}
	jobPanel := watchPanelStyle.Render(strings.Join(jobLines, "\n"))

	recent := []string{watchTitleStyle.Render("Recent stories")}
	if len(snapshot.Recent) == 0 {
		recent = append(recent, watchMutedStyle.Render("none yet"))
	}
	for _, story := range snapshot.Recent {
		recent = append(recent, fmt.Sprintf("%5s  %-18s %s", strconv.FormatInt(story.ID, 10), humanize(story.Status), truncate(story.Topic, 48)))
	}
	recentPanel := watchPanelStyle.Render(strings.Join(recent, "\n"))

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, storyPanel, jobPanel),
		recentPanel,
	)
}

func loadWatchSnapshot(store *queue.Store) func(context.Context) (watchSnapshot, error) {
	return func(ctx context.Context) (watchSnapshot, error) {
		snapshot := watchSnapshot{At: store.Now()}
		var err error
		if snapshot.StoryCounts, err = store.StoryCounts(ctx); err != nil {
			return watchSnapshot{}, err
		}
		if snapshot.JobStats, err = store.JobStats(ctx); err != nil {
			return watchSnapshot{}, err
		}
		stories, err := store.ListStories(ctx)
		if err != nil {
			return watchSnapshot{}, err
		}
		start := max(len(stories)-watchRecentStories, 0)
		for i := len(stories) - 1; i >= start; i-- {
			snapshot.Recent = append(snapshot.Recent, api.FromStory(stories[i]))
		}
		return snapshot, nil
	}
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard of story and job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval < 200*time.Millisecond {
				return fmt.Errorf("--interval must be at least 200ms")
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				load := loadWatchSnapshot(store)
				if once || !isatty.IsTerminal(1) {
					snapshot, err := load(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderWatchBody(snapshot))
					return nil
				}
				program := tea.NewProgram(
					newWatchModel(cmd.Context(), interval, load),
					tea.WithAltScreen(),
					tea.WithContext(cmd.Context()),
				)
				_, err := program.Run()
				return err
			})
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 2*time.Second, "Refresh interval")
	cmd.Flags().BoolVar(&once, "once", false, "Print one snapshot and exit")
	return cmd
}

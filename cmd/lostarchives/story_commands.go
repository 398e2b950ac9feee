package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiagogladstone/the-lost-archives/internal/api"
	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/pipeline"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

func newStoryCommand(ctx *commandContext) *cobra.Command {
	storyCmd := &cobra.Command{
		Use:   "story",
		Short: "Create and inspect stories",
	}

	storyCmd.AddCommand(newStoryCreateCommand(ctx))
	storyCmd.AddCommand(newStoryStartCommand(ctx))
	storyCmd.AddCommand(newStoryListCommand(ctx))
	storyCmd.AddCommand(newStoryShowCommand(ctx))

	return storyCmd
}

func newStoryCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		brief    pipeline.Brief
		draft    bool
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "create <topic>",
		Short: "Create a story and queue its script",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			brief.Topic = strings.Join(args, " ")
			return ctx.withCoordinator(func(_ *queue.Store, coord *pipeline.Coordinator) error {
				var (
					story *queue.Story
					err   error
				)
				if draft {
					story, err = coord.CreateStory(cmd.Context(), brief)
				} else {
					story, err = coord.CreateAndStart(cmd.Context(), brief)
				}
				if err != nil {
					return err
				}
				if jsonMode {
					return writeJSON(cmd, api.FromStory(story))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Story %d created (%s)\n", story.ID, humanize(string(story.Status)))
				fmt.Fprintf(out, "  Languages: %s\n", strings.Join(story.Languages, ", "))
				fmt.Fprintf(out, "  Style:     %s, %s, %d min\n", story.Style, story.AspectRatio, story.TargetDurationMinutes)
				if draft {
					fmt.Fprintf(out, "Start it with `lostarchives story start %d`\n", story.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&brief.Description, "description", "d", "", "Optional story description")
	cmd.Flags().IntVar(&brief.TargetDurationMinutes, "duration", 0, "Target duration in minutes (default from config)")
	cmd.Flags().StringSliceVarP(&brief.Languages, "language", "l", nil, "BCP 47 language; first is the narration language (repeatable)")
	cmd.Flags().StringVar(&brief.Style, "style", "", "Visual style (default from config)")
	cmd.Flags().StringVar(&brief.AspectRatio, "aspect-ratio", "", "Aspect ratio (default from config)")
	cmd.Flags().BoolVar(&draft, "draft", false, "Create without starting the pipeline")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output as JSON")
	return cmd
}

func newStoryStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start <story-id>",
		Short: "Start a draft story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("story", args[0])
			if err != nil {
				return err
			}
			return ctx.withCoordinator(func(_ *queue.Store, coord *pipeline.Coordinator) error {
				if err := coord.Start(cmd.Context(), id); err != nil {
					return explainActionError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Story %d started; script generation queued\n", id)
				return nil
			})
		},
	}
}

func newStoryListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stories",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]queue.StoryStatus, 0, len(statuses))
			for _, value := range statuses {
				status, ok := queue.ParseStoryStatus(value)
				if !ok {
					return fmt.Errorf("unknown story status %q", value)
				}
				filter = append(filter, status)
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				stories, err := api.NewStoryService(store).List(cmd.Context(), filter...)
				if err != nil {
					return err
				}
				if jsonMode {
					return writeJSON(cmd, stories)
				}
				out := cmd.OutOrStdout()
				if len(stories) == 0 {
					fmt.Fprintln(out, "No stories")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Topic", "Status", "Languages", "Updated"},
					storyRows(stories, store.Now()),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output as JSON")
	return cmd
}

func storyRows(stories []api.Story, now time.Time) [][]string {
	rows := make([][]string, 0, len(stories))
	for _, story := range stories {
		updated, _ := time.Parse(time.RFC3339, story.UpdatedAt)
		rows = append(rows, []string{
			strconv.FormatInt(story.ID, 10),
			truncate(story.Topic, 40),
			humanize(story.Status),
			strings.Join(story.Languages, ","),
			formatAge(updated, now),
		})
	}
	return rows
}

func newStoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "show <story-id>",
		Short: "Show a story with its scenes, review options and jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("story", args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				detail, err := api.NewStoryService(store).Describe(cmd.Context(), id)
				if err != nil {
					return explainActionError(err)
				}
				if jsonMode {
					return writeJSON(cmd, detail)
				}
				renderStoryDetail(cmd.OutOrStdout(), detail)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output as JSON")
	return cmd
}

func renderStoryDetail(out io.Writer, detail *api.StoryDetail) {
	story := detail.Story
	fmt.Fprintf(out, "Story %d: %s\n", story.ID, story.Topic)
	fmt.Fprintf(out, "  Status:    %s\n", humanize(story.Status))
	if story.FailedStage != "" {
		fmt.Fprintf(out, "  Failed in: %s\n", humanize(story.FailedStage))
	}
	if story.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:     %s\n", story.ErrorMessage)
	}
	fmt.Fprintf(out, "  Languages: %s\n", strings.Join(story.Languages, ", "))
	fmt.Fprintf(out, "  Style:     %s, %s, %d min\n", story.Style, story.AspectRatio, story.TargetDurationMinutes)
	if story.VideoURL != "" {
		fmt.Fprintf(out, "  Video:     %s\n", story.VideoURL)
	}
	if story.SelectedTitle != "" {
		fmt.Fprintf(out, "  Title:     %s\n", story.SelectedTitle)
	}
	if story.YouTubeURL != "" {
		fmt.Fprintf(out, "  Published: %s\n", story.YouTubeURL)
	}

	if len(detail.Scenes) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(detail.Scenes))
		for _, scene := range detail.Scenes {
			rows = append(rows, []string{
				strconv.Itoa(scene.Order),
				truncate(scene.Text, 50),
				yesNo(scene.ImageURL != ""),
				yesNo(scene.AudioURL != ""),
				strconv.Itoa(len(scene.Translations)),
			})
		}
		fmt.Fprint(out, renderTable([]string{"#", "Scene", "Image", "Audio", "Translations"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight}))
	}

	if len(detail.Titles) > 0 || len(detail.Thumbnails) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(detail.Titles)+len(detail.Thumbnails))
		for _, title := range detail.Titles {
			rows = append(rows, []string{"title", strconv.FormatInt(title.ID, 10), truncate(title.Title, 60), ""})
		}
		for _, thumb := range detail.Thumbnails {
			rows = append(rows, []string{"thumbnail", strconv.FormatInt(thumb.ID, 10), thumb.ImageURL, "v" + strconv.Itoa(thumb.Version)})
		}
		fmt.Fprint(out, renderTable([]string{"Option", "ID", "Value", "Version"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}))
	}

	if len(detail.Jobs) > 0 {
		fmt.Fprintln(out)
		fmt.Fprint(out, renderTable(jobHeaders, jobRows(detail.Jobs), jobAligns))
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

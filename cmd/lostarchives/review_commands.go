package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tiagogladstone/the-lost-archives/internal/pipeline"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Review stories that are ready for review",
	}
	reviewCmd.AddCommand(newReviewSelectCommand(ctx))
	return reviewCmd
}

func newReviewSelectCommand(ctx *commandContext) *cobra.Command {
	var titleID, thumbnailID int64

	cmd := &cobra.Command{
		Use:   "select <story-id>",
		Short: "Choose the title and thumbnail to publish with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("story", args[0])
			if err != nil {
				return err
			}
			if titleID <= 0 || thumbnailID <= 0 {
				return errors.New("--title and --thumbnail are required (ids from `lostarchives story show`)")
			}
			return ctx.withCoordinator(func(store *queue.Store, coord *pipeline.Coordinator) error {
				if err := coord.SelectForReview(cmd.Context(), id, titleID, thumbnailID); err != nil {
					return explainActionError(err)
				}
				story, err := store.GetStory(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Story %d selection saved\n", id)
				fmt.Fprintf(out, "  Title:     %s\n", story.SelectedTitle)
				fmt.Fprintf(out, "  Thumbnail: %s\n", story.SelectedThumbnailURL)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&titleID, "title", 0, "Title option id")
	cmd.Flags().Int64Var(&thumbnailID, "thumbnail", 0, "Thumbnail option id")
	return cmd
}

func newPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <story-id>",
		Short: "Queue the upload of a reviewed story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("story", args[0])
			if err != nil {
				return err
			}
			return ctx.withCoordinator(func(_ *queue.Store, coord *pipeline.Coordinator) error {
				if err := coord.Publish(cmd.Context(), id); err != nil {
					return explainActionError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Story %d queued for publishing\n", id)
				return nil
			})
		},
	}
}

func newRegenerateThumbnailCommand(ctx *commandContext) *cobra.Command {
	var feedback string

	cmd := &cobra.Command{
		Use:   "regenerate-thumbnail <story-id>",
		Short: "Queue a new thumbnail version guided by feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("story", args[0])
			if err != nil {
				return err
			}
			return ctx.withCoordinator(func(_ *queue.Store, coord *pipeline.Coordinator) error {
				jobID, err := coord.RegenerateThumbnail(cmd.Context(), id, strings.TrimSpace(feedback))
				if err != nil {
					return explainActionError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Thumbnail regeneration queued as job %d\n", jobID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&feedback, "feedback", "f", "", "What to change in the thumbnail")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <story-id>",
		Short: "Re-queue the failed jobs of a failed story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("story", args[0])
			if err != nil {
				return err
			}
			return ctx.withCoordinator(func(_ *queue.Store, coord *pipeline.Coordinator) error {
				result, err := coord.Retry(cmd.Context(), id)
				if err != nil {
					return explainActionError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Story %d resumed at %s with %d job(s) re-queued\n",
					id, humanize(string(result.Status)), len(result.JobIDs))
				return nil
			})
		},
	}
}

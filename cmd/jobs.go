package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"wardrobe/internal/clix"
	"wardrobe/internal/models"
	"wardrobe/internal/store"
)

var jobsUser int64

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect image processing jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List processing jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return err
		}
		status, err := clix.ParseStatus(cmd.Flags())
		if err != nil {
			return err
		}
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		jobs, err := appInstance.JobStore.ListJobs(cmd.Context(), store.JobFilter{UserID: jobsUser, Status: status}, pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs found.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "User", "Status", "Step", "%", "Type", "Items", "Updated At"})
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(true)
		for _, job := range jobs {
			table.Append([]string{
				strconv.FormatInt(job.ID, 10),
				strconv.FormatInt(job.UserID, 10),
				colorStatus(job.Status),
				job.CurrentStep,
				strconv.Itoa(job.ProgressPercentage),
				string(job.ImageType),
				fmt.Sprintf("%d/%d", job.SegmentedItems.Len(), job.ExpandedItems.Len()),
				job.UpdatedAt.Format(time.RFC3339),
			})
		}
		table.Render()
		return nil
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job with all of its image references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid job ID %q", args[0])
		}
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		job, err := appInstance.JobStore.GetJob(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to get job %d: %w", id, err)
		}

		fmt.Printf("Job %d (user %d)\n", job.ID, job.UserID)
		fmt.Printf("Status:    %s\n", colorStatus(job.Status))
		fmt.Printf("Step:      %s (%d%%)\n", job.CurrentStep, job.ProgressPercentage)
		fmt.Printf("Type:      %s\n", job.ImageType)
		fmt.Printf("File:      %s\n", job.OriginalFilename)
		fmt.Printf("Confirmed: %v\n", job.Confirmed)
		if job.ErrorMessage != nil {
			fmt.Printf("Error:     %s\n", color.RedString(*job.ErrorMessage))
		}
		printOpt("Category", job.SuggestedCategory)
		printOpt("Label", job.ClassificationLabel)
		printOpt("Original", job.OriginalImageRef)
		printOpt("No BG", job.BackgroundRemovedRef)
		printOpt("Segmented", job.SegmentedRef)
		printOpt("Inpainted", job.InpaintedRef)
		printOpt("Selected", job.SelectedImageRef)
		printItems("Segmented items", job.SegmentedItems)
		printItems("Expanded items", job.ExpandedItems)
		fmt.Printf("Created:   %s\nUpdated:   %s\n", job.CreatedAt.Format(time.RFC3339), job.UpdatedAt.Format(time.RFC3339))
		return nil
	},
}

func colorStatus(s models.JobStatus) string {
	switch s {
	case models.JobStatusCompleted, models.JobStatusReadyForReview:
		return color.GreenString(string(s))
	case models.JobStatusFailed:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

func printOpt(label string, v *string) {
	if v == nil {
		return
	}
	fmt.Printf("%-10s %s\n", label+":", *v)
}

func printItems(label string, list *models.ItemList) {
	if list == nil {
		return
	}
	fmt.Printf("%s (%d):\n", label, list.Len())
	for i, it := range list.Items {
		fmt.Printf("  %d. %s  %d px  %s\n", i+1, it.Label, it.AreaPixels, it.Ref)
	}
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd)

	jobsListCmd.Flags().IntP("limit", "n", 20, "Maximum number of jobs to list")
	jobsListCmd.Flags().IntP("offset", "o", 0, "Number of jobs to skip")
	jobsListCmd.Flags().String("status", "", "Only jobs in this status")
	jobsListCmd.Flags().Int64Var(&jobsUser, "user", 0, "Only jobs of this user")
}

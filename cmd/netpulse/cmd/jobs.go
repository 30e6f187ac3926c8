package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nativu5/netpulse/pkg/domain"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect jobs",
}

var jobsGetCmd = &cobra.Command{
	Use:   "get [job-id]",
	Short: "Show a job record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var job domain.Job
		if err := newClient().do(http.MethodGet, "/jobs/"+args[0], nil, &job); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

var jobsWaitCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show just a job's status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var job domain.Job
		if err := newClient().do(http.MethodGet, "/jobs/"+args[0], nil, &job); err != nil {
			return err
		}
		fmt.Println(job.Status)
		return nil
	},
}

func init() {
	jobsCmd.AddCommand(jobsGetCmd)
	jobsCmd.AddCommand(jobsWaitCmd)
	rootCmd.AddCommand(jobsCmd)
}

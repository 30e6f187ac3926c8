package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Nativu5/netpulse/pkg/domain"
)

var (
	submitHost         string
	submitDriver       string
	submitCommand      []string
	submitRequirements []string
	submitConnection   string
	submitWebhookURL   string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a device job",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := domain.JobRequest{
			Host:         submitHost,
			Requirements: submitRequirements,
			Command:      submitCommand,
			Driver:       domain.DriverSpec{Name: submitDriver},
		}
		if submitConnection != "" {
			if !json.Valid([]byte(submitConnection)) {
				return fmt.Errorf("--connection is not valid JSON")
			}
			req.Driver.Connection = json.RawMessage(submitConnection)
		}
		if submitWebhookURL != "" {
			req.Webhook = &domain.WebhookSpec{
				Name:   "basic",
				URL:    submitWebhookURL,
				Method: domain.WebhookPOST,
			}
		}

		var job domain.Job
		if err := newClient().do(http.MethodPost, "/jobs", req, &job); err != nil {
			return err
		}

		fmt.Printf("Job %s queued on node %s\n", job.Request.ID, job.NodeID)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitHost, "device", "", "device host (required)")
	submitCmd.Flags().StringVar(&submitDriver, "driver", "netmiko", "device driver")
	submitCmd.Flags().StringArrayVar(&submitCommand, "command", nil, "command to run (repeatable)")
	submitCmd.Flags().StringSliceVar(&submitRequirements, "require", nil, "required worker capabilities")
	submitCmd.Flags().StringVar(&submitConnection, "connection", "", "driver connection args as JSON")
	submitCmd.Flags().StringVar(&submitWebhookURL, "webhook", "", "result webhook URL")
	_ = submitCmd.MarkFlagRequired("device")
	rootCmd.AddCommand(submitCmd)
}

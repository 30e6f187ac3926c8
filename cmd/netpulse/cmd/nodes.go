package cmd

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Nativu5/netpulse/pkg/domain"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List worker nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		var nodes []domain.WorkerNode
		if err := newClient().do(http.MethodGet, "/nodes", nil, &nodes); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tHOSTNAME\tLOAD\tCAPACITY\tALIVE\tCAPABILITIES")
		for _, n := range nodes {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%v\n",
				n.ID, n.Hostname, n.Load, n.Capacity, n.Alive, n.Capabilities)
		}
		return w.Flush()
	},
}

var nodesDeleteCmd = &cobra.Command{
	Use:   "delete [node-id]",
	Short: "Force-delete a dead node and its pins",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().do(http.MethodDelete, "/nodes/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Printf("Node %s deleted\n", args[0])
		return nil
	},
}

func init() {
	nodesCmd.AddCommand(nodesDeleteCmd)
	rootCmd.AddCommand(nodesCmd)
}

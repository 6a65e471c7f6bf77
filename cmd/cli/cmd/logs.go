package cmd

import (
	"github.com/spf13/cobra"
)

var (
	logsPage  int
	logsLimit int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List your automation logs",
	Long:  `Show one page of your automation history, newest first.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(cmd)
		if client == nil {
			return
		}

		resp, err := client.ListLogs(logsPage, logsLimit)
		if err != nil {
			cmd.Printf("Failed to fetch logs: %v\n", err)
			return
		}

		if len(resp.Logs) == 0 {
			cmd.Println("No automation logs found")
			return
		}

		cmd.Printf("%s%-36s %-12s %-18s %-9s %s%s\n", colorBold, "LOG ID", "TYPE", "STATUS", "CYCLES", "CREATED", colorReset)
		for _, l := range resp.Logs {
			cmd.Printf("%-36s %-12s %-27s %3d/%-5d %s ago\n",
				l.ID, l.AutomationType, colorizeStatus(l.Status), l.CyclesCompleted, l.TotalCycles, relativeTime(l.CreatedAt))
		}

		p := resp.Pagination
		cmd.Printf("%sPage %d of %d (%d total)%s\n", colorDim, p.Page, p.Pages, p.Total, colorReset)
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntVar(&logsPage, "page", 1, "Page number")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 10, "Logs per page (max 100)")
}

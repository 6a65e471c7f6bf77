package cmd

import (
	"github.com/spf13/cobra"
)

var statsMe bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dashboard statistics",
	Long:  `Show global counters, or your own automation totals with --me.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(cmd)
		if client == nil {
			return
		}

		if statsMe {
			s, err := client.UserStats()
			if err != nil {
				cmd.Printf("Failed to fetch stats: %v\n", err)
				return
			}
			cmd.Printf("%sYour Statistics%s\n", colorBold, colorReset)
			cmd.Println("──────────────────────────────")
			cmd.Printf("%sAutomations:%s        %d\n", colorDim, colorReset, s.TotalAutomations)
			cmd.Printf("%sSuccessful cycles:%s  %s%d%s\n", colorDim, colorReset, colorGreen, s.SuccessfulCycles, colorReset)
			cmd.Printf("%sFailed cycles:%s      %s%d%s\n", colorDim, colorReset, colorRed, s.FailedCycles, colorReset)
			for _, l := range s.RecentLogs {
				cmd.Printf("  %s %s %s ago\n", colorizeStatus(l.Status), l.ID, relativeTime(l.CreatedAt))
			}
			return
		}

		s, err := client.Stats()
		if err != nil {
			cmd.Printf("Failed to fetch stats: %v\n", err)
			return
		}
		cmd.Printf("%sSystem Statistics%s\n", colorBold, colorReset)
		cmd.Println("──────────────────────────────")
		cmd.Printf("%sUsers:%s              %d (%d active)\n", colorDim, colorReset, s.TotalUsers, s.ActiveUsers)
		cmd.Printf("%sRegistered today:%s   %d\n", colorDim, colorReset, s.TodayRegistrations)
		cmd.Printf("%sAutomations:%s        %d (%d completed)\n", colorDim, colorReset, s.TotalAutomations, s.CompletedAutomations)
		cmd.Printf("%sActive loops:%s       %d\n", colorDim, colorReset, s.ActiveLoops)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsMe, "me", false, "Show your own statistics")
}

package cmd

import (
	"github.com/spf13/cobra"

	"hubcredo/pkg/api"
)

var automateCycles int

var automateCmd = &cobra.Command{
	Use:   "automate",
	Short: "Run a batch of automation cycles and wait for the result",
	Long: `Run a manual batch of automation cycles. The command blocks until every
cycle has finished and then prints the summary recorded in the automation log.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(cmd)
		if client == nil {
			return
		}

		cmd.Printf("Running %d cycle(s)...\n", automateCycles)
		resp, err := client.RunAutomation(automateCycles)
		if err != nil {
			cmd.Printf("Automation failed: %v\n", err)
			return
		}

		cmd.Printf("%s %s\n", statusIcon(resp.Status), resp.Message)
		cmd.Printf("%sLog ID:%s      %s\n", colorDim, colorReset, resp.LogID)
		cmd.Printf("%sStatus:%s      %s\n", colorDim, colorReset, colorizeStatus(resp.Status))
		cmd.Printf("%sCompleted:%s   %d/%d\n", colorDim, colorReset, resp.CyclesCompleted, resp.CyclesRequested)
		cmd.Printf("%sFailed:%s      %d\n", colorDim, colorReset, resp.CyclesFailed)
	},
}

func init() {
	rootCmd.AddCommand(automateCmd)
	automateCmd.Flags().IntVarP(&automateCycles, "cycles", "c", api.DefaultBatchCycles, "Number of cycles to run (1-20)")
}

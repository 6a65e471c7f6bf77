package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hubcredo/pkg/api"
)

var (
	loopCycles    int
	loopActive    bool
	loopWatch     bool
	watchInterval = 2 * time.Second
)

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Manage background automation loops",
}

var loopStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a background loop",
	Long:  `Start a loop that runs the given number of automation cycles in the background. Use "hubctl loop status" to follow it.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(cmd)
		if client == nil {
			return
		}

		resp, err := client.StartLoop(loopCycles)
		if err != nil {
			cmd.Printf("Failed to start loop: %v\n", err)
			return
		}

		cmd.Printf("%s Loop started\n", statusIcon(resp.Status))
		cmd.Printf("%sLoop ID:%s  %s\n", colorDim, colorReset, resp.LoopID)
		cmd.Printf("%sCycles:%s   %d\n", colorDim, colorReset, resp.Cycles)
	},
}

var loopStopCmd = &cobra.Command{
	Use:   "stop [loop_id]",
	Short: "Stop a running loop",
	Long:  `Request a running loop to stop. The loop finishes its current cycle and then ends with status "stopped".`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(cmd)
		if client == nil {
			return
		}

		resp, err := client.StopLoop(args[0])
		if err != nil {
			cmd.Printf("Failed to stop loop: %v\n", err)
			return
		}
		cmd.Printf("%s %s (%s)\n", statusIcon("stopped"), resp.Message, resp.LoopID)
	},
}

var loopStatusCmd = &cobra.Command{
	Use:   "status [loop_id]",
	Short: "Show the status of a loop",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(cmd)
		if client == nil {
			return
		}

		if loopWatch {
			// Trap Ctrl+C to exit gracefully
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			go func() {
				<-sigChan
				os.Exit(0)
			}()
		}

		for {
			loop, err := client.GetLoop(args[0])
			if err != nil {
				cmd.Printf("Failed to get loop: %v\n", err)
				return
			}

			printLoop(cmd, *loop)
			if !loopWatch || loop.Status != "running" {
				return
			}
			cmd.Println()
			time.Sleep(watchInterval)
		}
	},
}

var loopListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your loops",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(cmd)
		if client == nil {
			return
		}

		resp, err := client.ListLoops(loopActive)
		if err != nil {
			cmd.Printf("Failed to list loops: %v\n", err)
			return
		}

		if resp.Count == 0 {
			cmd.Println("No loops found")
			return
		}

		cmd.Printf("%s%-28s %-18s %-9s %s%s\n", colorBold, "LOOP ID", "STATUS", "PROGRESS", "STARTED", colorReset)
		for _, l := range resp.Loops {
			cmd.Printf("%-28s %-27s %3d/%-5d %s ago\n",
				l.LoopID, colorizeStatus(l.Status), l.CurrentCycle, l.TotalCycles, relativeTime(l.StartTime))
		}
	},
}

func printLoop(cmd *cobra.Command, loop api.Loop) {
	cmd.Printf("%s %sLoop Details%s\n", statusIcon(loop.Status), colorBold, colorReset)
	cmd.Println("──────────────────────────────")

	cmd.Printf("%sID:%s          %s\n", colorDim, colorReset, loop.LoopID)
	cmd.Printf("%sStatus:%s      %s\n", colorDim, colorReset, colorizeStatus(loop.Status))
	cmd.Printf("%sProgress:%s    %d/%d\n", colorDim, colorReset, loop.CurrentCycle, loop.TotalCycles)
	cmd.Printf("%sCompleted:%s   %s%d%s\n", colorDim, colorReset, colorGreen, loop.CyclesCompleted, colorReset)
	if loop.CyclesFailed > 0 {
		cmd.Printf("%sFailed:%s      %s%d%s\n", colorDim, colorReset, colorRed, loop.CyclesFailed, colorReset)
	} else {
		cmd.Printf("%sFailed:%s      0\n", colorDim, colorReset)
	}

	if loop.Error != "" {
		cmd.Printf("%sError:%s       %s%s%s\n", colorDim, colorReset, colorRed, loop.Error, colorReset)
	}
	if loop.LogID != "" {
		cmd.Printf("%sLog ID:%s      %s\n", colorDim, colorReset, loop.LogID)
	}

	cmd.Printf("%sStarted:%s     %s\n", colorDim, colorReset, formatTimeWithRelative(&loop.StartTime))
	if loop.EndTime != nil {
		cmd.Printf("%sFinished:%s    %s %s(%s)%s\n", colorDim, colorReset,
			formatTimeWithRelative(loop.EndTime),
			colorCyan, formatDuration(loop.EndTime.Sub(loop.StartTime)), colorReset)
	} else {
		cmd.Printf("%sFinished:%s    -\n", colorDim, colorReset)
	}
}

func init() {
	rootCmd.AddCommand(loopCmd)
	loopCmd.AddCommand(loopStartCmd, loopStopCmd, loopStatusCmd, loopListCmd)

	loopStartCmd.Flags().IntVarP(&loopCycles, "cycles", "c", api.DefaultLoopCycles, "Number of cycles to run (1-100)")
	loopStatusCmd.Flags().BoolVarP(&loopWatch, "watch", "w", false, "Poll until the loop finishes")
	loopListCmd.Flags().BoolVar(&loopActive, "active", false, "Only show running loops")
}

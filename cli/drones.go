package cli

import (
	"strconv"

	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/netsim"
	"github.com/absmach/dronefl/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	defOffset uint64 = 0
	defLimit  uint64 = 10

	priority       string
	packetLoss     float64
	disconnectProb float64
	latencyMin     float64
	latencyMax     float64
)

var dsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	dsdk = s
}

func NewDronesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drones [register|view|list|deregister]",
		Short: "Drones manager",
		Long:  `Register, view, list and deregister drones.`,
	}

	registerCmd := &cobra.Command{
		Use:   "register <id>",
		Short: "Register drone",
		Long: `Register a drone with its network profile.

Examples:
  dronefl-cli drones register scout-1 --priority high --packet-loss 0.05 --latency-min 0.05 --latency-max 0.2`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			p, err := fl.ParsePriority(priority)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			d, err := dsdk.RegisterDrone(netsim.Profile{
				DroneID:    args[0],
				Priority:   p,
				PacketLoss: packetLoss,
				Latency: netsim.LatencyRange{
					Min: seconds(latencyMin),
					Max: seconds(latencyMax),
				},
				DisconnectProb: disconnectProb,
			})
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, d)
		},
	}

	registerCmd.Flags().StringVar(&priority, "priority", "low", "Drone priority (low, medium, high)")
	registerCmd.Flags().Float64Var(&packetLoss, "packet-loss", 0, "Packet loss probability in [0,1]")
	registerCmd.Flags().Float64Var(&disconnectProb, "disconnect-prob", 0, "Disconnection probability in [0,1]")
	registerCmd.Flags().Float64Var(&latencyMin, "latency-min", 0, "Minimum link latency in seconds")
	registerCmd.Flags().Float64Var(&latencyMax, "latency-max", 0, "Maximum link latency in seconds")

	viewCmd := &cobra.Command{
		Use:   "view <id>",
		Short: "View drone",
		Long:  `View drone.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			d, err := dsdk.GetDrone(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, d)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List drones",
		Long:  `List registered drones.`,
		Run: func(cmd *cobra.Command, _ []string) {
			page, err := dsdk.ListDrones(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	deregisterCmd := &cobra.Command{
		Use:   "deregister <id>",
		Short: "Deregister drone",
		Long:  `Remove a drone from the fleet.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := dsdk.DeregisterDrone(args[0]); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	cmd.AddCommand(registerCmd)
	cmd.AddCommand(viewCmd)
	cmd.AddCommand(listCmd)
	cmd.AddCommand(deregisterCmd)

	addPageFlags(cmd)

	return cmd
}

func NewRoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rounds [view|list]",
		Short: "Round reports",
		Long:  `View the round reports of the current federation run.`,
	}

	viewCmd := &cobra.Command{
		Use:   "view <round>",
		Short: "View round report",
		Long:  `View the report of a single round.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			round, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			r, err := dsdk.GetRound(round)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List round reports",
		Long:  `List round reports.`,
		Run: func(cmd *cobra.Command, _ []string) {
			page, err := dsdk.ListRounds(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	cmd.AddCommand(viewCmd)
	cmd.AddCommand(listCmd)

	addPageFlags(cmd)

	return cmd
}

func NewModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "View model",
		Long:  `View the currently committed blob version.`,
		Run: func(cmd *cobra.Command, _ []string) {
			v, err := dsdk.GetModel()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, v)
		},
	}
}

func addPageFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Uint64VarP(
		&defOffset,
		"offset",
		"o",
		defOffset,
		"Offset",
	)

	cmd.PersistentFlags().Uint64VarP(
		&defLimit,
		"limit",
		"l",
		defLimit,
		"Limit",
	)
}

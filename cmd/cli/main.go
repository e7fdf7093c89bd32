package main

import (
	"log"
	"os"

	"github.com/absmach/dronefl/cli"
	"github.com/absmach/dronefl/pkg/sdk"
	"github.com/spf13/cobra"
)

const (
	defCoordinatorURL  = "http://localhost:7070"
	defTLSVerification = false
	envCoordinatorURL  = "DRONEFL_COORDINATOR_URL"
)

func main() {
	var (
		coordinatorURL  string
		tlsVerification bool
	)

	rootCmd := &cobra.Command{
		Use:   "dronefl-cli",
		Short: "dronefl CLI",
		Long:  `dronefl CLI is a command line interface for the federated learning coordinator of a drone fleet.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			sdkConf := sdk.Config{
				CoordinatorURL:  coordinatorURL,
				TLSVerification: tlsVerification,
			}
			cli.SetSDK(sdk.NewSDK(sdkConf))
		},
	}

	url := defCoordinatorURL
	if v := os.Getenv(envCoordinatorURL); v != "" {
		url = v
	}
	rootCmd.PersistentFlags().StringVarP(&coordinatorURL, "coordinator-url", "c", url, "Coordinator URL")
	rootCmd.PersistentFlags().BoolVar(&tlsVerification, "tls-verification", defTLSVerification, "Verify TLS certificates")

	rootCmd.AddCommand(cli.NewDronesCmd())
	rootCmd.AddCommand(cli.NewRoundsCmd())
	rootCmd.AddCommand(cli.NewModelCmd())
	rootCmd.AddCommand(cli.NewFleetCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/dronefl"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

const filePermission = 0o644

var errOutOfRange = errors.New("value out of range")

func NewFleetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleet [init|check|register]",
		Short: "Fleet files",
		Long:  `Create, validate and register fleet configuration files.`,
	}

	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Create fleet file",
		Long:  `Interactively describe drones and write a fleet file with default round parameters.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			cfg := dronefl.Default()
			names := namegenerator.NewGenerator()
			for more := true; more; {
				d, next, err := promptDrone(names.Generate())
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				cfg.Drones = append(cfg.Drones, d)
				more = next
			}

			if err := writeFleet(args[0], cfg); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, fmt.Sprintf("Successfully wrote %d drones to %s", len(cfg.Drones), args[0]))
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check <path>",
		Short: "Validate fleet file",
		Long:  `Load and validate a fleet file.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			cfg, err := dronefl.LoadConfig(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, cfg)
		},
	}

	registerCmd := &cobra.Command{
		Use:   "register <path>",
		Short: "Register fleet",
		Long:  `Register every drone of a fleet file with the coordinator.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			cfg, err := dronefl.LoadConfig(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			profiles, err := cfg.Profiles()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			for _, p := range profiles {
				if _, err := dsdk.RegisterDrone(p); err != nil {
					logErrorCmd(*cmd, fmt.Errorf("drone %s: %w", p.DroneID, err))

					return
				}
				logSuccessCmd(*cmd, "Successfully registered "+p.DroneID)
			}
			logOKCmd(*cmd)
		},
	}

	cmd.AddCommand(initCmd)
	cmd.AddCommand(checkCmd)
	cmd.AddCommand(registerCmd)

	return cmd
}

func promptDrone(defaultID string) (dronefl.DroneConfig, bool, error) {
	var (
		id               = defaultID
		prio             = "low"
		loss, disconnect = "0", "0"
		latMin, latMax   = "0.05", "0.2"
		samples          = "0"
		more             bool
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Drone ID").Value(&id).Validate(required),
			huh.NewSelect[string]().
				Title("Priority").
				Options(huh.NewOptions("low", "medium", "high")...).
				Value(&prio),
			huh.NewInput().Title("Packet loss [0,1]").Value(&loss).Validate(probability),
			huh.NewInput().Title("Disconnect probability [0,1]").Value(&disconnect).Validate(probability),
			huh.NewInput().Title("Minimum latency (seconds)").Value(&latMin).Validate(nonNegative),
			huh.NewInput().Title("Maximum latency (seconds)").Value(&latMax).Validate(nonNegative),
			huh.NewInput().Title("Local samples (0 for a random size)").Value(&samples).Validate(nonNegative),
			huh.NewConfirm().Title("Add another drone?").Value(&more),
		),
	)
	if err := form.Run(); err != nil {
		return dronefl.DroneConfig{}, false, err
	}

	n, err := strconv.Atoi(samples)
	if err != nil {
		return dronefl.DroneConfig{}, false, err
	}

	return dronefl.DroneConfig{
		ID:             id,
		Priority:       prio,
		PacketLoss:     mustFloat(loss),
		LatencyMin:     mustFloat(latMin),
		LatencyMax:     mustFloat(latMax),
		DisconnectProb: mustFloat(disconnect),
		Samples:        n,
	}, more, nil
}

func writeFleet(path string, cfg dronefl.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := cfg.Encode()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, filePermission)
}

func required(s string) error {
	if s == "" {
		return errors.New("required")
	}

	return nil
}

func probability(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	if f < 0 || f > 1 {
		return errOutOfRange
	}

	return nil
}

func nonNegative(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	if f < 0 {
		return errOutOfRange
	}

	return nil
}

// mustFloat parses input that already passed validation.
func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)

	return f
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

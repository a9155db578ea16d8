package agentcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/sstallion/go-hid"

	"github.com/neuroplastio/rmi4touch/internal/configsvc"
	"github.com/neuroplastio/rmi4touch/internal/sysinfo"
	"github.com/neuroplastio/rmi4touch/pkg/agent"
	"github.com/neuroplastio/rmi4touch/pkg/hiddesc"
	"github.com/neuroplastio/rmi4touch/rmi4/report"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	cmd := NewRootCmd(filepath.Join(dir, "rmi4"))
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

type agentProvider func() *agent.Agent

func NewRootCmd(configDir string) *cobra.Command {
	cfg := agent.DefaultConfig()
	cfg.DataDir = filepath.Join(configDir, "data")
	cfg.DeviceConfig = filepath.Join(configDir, "device.yml")
	agentConfig := filepath.Join(configDir, "agent.yml")
	var simulate bool

	agentCmd := &cobra.Command{
		Use:          "rmi4-agent",
		Short:        "RMI4 touch controller agent",
		Long:         `The agent drives an RMI4 touch controller over I2C and exposes it as a HID touch screen with buttons.`,
		SilenceUsage: true,
	}
	var a *agent.Agent
	provider := func() *agent.Agent {
		return a
	}
	flags := agentCmd.PersistentFlags()
	flags.StringVar(&agentConfig, "config", agentConfig, "agent config file")
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")
	flags.StringVar(&cfg.DeviceConfig, "device-config", cfg.DeviceConfig, "device config file")
	flags.StringVar(&cfg.DeviceName, "device-name", cfg.DeviceName, "device name")
	flags.StringVar(&cfg.I2C.Bus, "i2c-bus", cfg.I2C.Bus, "i2c bus name")
	flags.Uint16Var(&cfg.I2C.Address, "i2c-address", cfg.I2C.Address, "i2c slave address")
	flags.StringVar(&cfg.I2C.Attention, "attention", cfg.I2C.Attention, "attention gpio name")
	flags.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "poll interval, 0 to rely on the attention line")
	flags.StringVar(&cfg.UhidName, "uhid-name", cfg.UhidName, "uhid device name, empty to disable")
	flags.BoolVar(&simulate, "simulate", false, "use a simulated touch panel")

	agentCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := loadAgentConfig(cmd, agentConfig, cfg)
		if err != nil {
			return err
		}
		if simulate {
			loaded.Transport = agent.TransportSimulated
		}
		logger, err := agent.NewLogger()
		if err != nil {
			return err
		}
		a, err = agent.NewAgent(loaded, logger)
		return err
	}
	agentCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if a == nil {
			return nil
		}
		return a.Close()
	}
	agentCmd.AddCommand(NewRun(provider))
	agentCmd.AddCommand(NewScan(provider))
	agentCmd.AddCommand(NewInfo(provider))
	agentCmd.AddCommand(NewReset(provider))
	agentCmd.AddCommand(NewReportDescriptor(provider))
	agentCmd.AddCommand(NewSettings(provider))
	agentCmd.AddCommand(NewListBuses())
	agentCmd.AddCommand(NewListHID())
	return agentCmd
}

// loadAgentConfig applies the agent config file under flags the user set
// explicitly.
func loadAgentConfig(cmd *cobra.Command, path string, flagCfg agent.Config) (agent.Config, error) {
	fileCfg, err := configsvc.Load(path, flagCfg)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return flagCfg, nil
	case err != nil:
		return flagCfg, err
	}
	flags := cmd.Flags()
	override := map[string]func(){
		"data-dir":      func() { fileCfg.DataDir = flagCfg.DataDir },
		"device-config": func() { fileCfg.DeviceConfig = flagCfg.DeviceConfig },
		"device-name":   func() { fileCfg.DeviceName = flagCfg.DeviceName },
		"i2c-bus":       func() { fileCfg.I2C.Bus = flagCfg.I2C.Bus },
		"i2c-address":   func() { fileCfg.I2C.Address = flagCfg.I2C.Address },
		"attention":     func() { fileCfg.I2C.Attention = flagCfg.I2C.Attention },
		"poll-interval": func() { fileCfg.PollInterval = flagCfg.PollInterval },
		"uhid-name":     func() { fileCfg.UhidName = flagCfg.UhidName },
	}
	for name, apply := range override {
		if flags.Changed(name) {
			apply()
		}
	}
	return fileCfg, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	jsonB, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(jsonB))
	return err
}

func NewRun(agent agentProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent",
		Long:  `Run services the touch controller and injects its reports until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return agent().Run(cmd.Context())
		},
	}
}

func NewScan(agent agentProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Discover the controller",
		Long:  `Scan reads the function table, configures the controller and prints what was found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := agent().Scan()
			if err != nil {
				return err
			}
			return printJSON(cmd, info)
		},
	}
}

func NewInfo(agent agentProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "List recorded devices",
		Long:  `Info prints the stored device records with their status and service counters.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := agent().Store()
			if err != nil {
				return err
			}
			records, err := store.List()
			if err != nil {
				return err
			}
			return printJSON(cmd, records)
		},
	}
}

func NewReset(agent agentProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Soft reset the controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return agent().Reset()
		},
	}
}

func NewReportDescriptor(agent agentProvider) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "report-descriptor",
		Short: "Print the HID report descriptor",
		Long:  `Print the HID report descriptor built for the configured display.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := agent().Descriptor()
			if err != nil {
				return err
			}
			if raw {
				_, err := cmd.OutOrStdout().Write(desc)
				return err
			}
			return hiddesc.Dump(cmd.OutOrStdout(), desc)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print raw report descriptor")
	return cmd
}

func NewSettings(provider agentProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Print the effective device settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := provider().DeviceConfig()
			if err != nil {
				return err
			}
			settings, err := agent.Settings(cfg)
			if err != nil {
				return err
			}
			for _, s := range settings {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", s.Key, s.Value)
			}
			return nil
		},
	}
}

func NewListBuses() *cobra.Command {
	return &cobra.Command{
		Use:   "list-buses",
		Short: "List I2C adapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			adapters, err := sysinfo.ListAdapters()
			if err != nil {
				return err
			}
			return printJSON(cmd, adapters)
		},
	}
}

func NewListHID() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list-hid",
		Short: "List HID devices",
		Long:  `List the HID devices created by the agent, or all HID devices with --all.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			vendorID, productID := uint16(report.VendorID), uint16(report.ProductID)
			if all {
				vendorID, productID = hid.VendorIDAny, hid.ProductIDAny
			}
			devices, err := sysinfo.ListHID(vendorID, productID)
			if err != nil {
				return err
			}
			return printJSON(cmd, devices)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list all HID devices")
	return cmd
}

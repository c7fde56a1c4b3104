// Command swiftftr runs network path diagnostics from the command
// line: unprivileged ICMP traceroute, ping, ECMP path discovery, and
// bufferbloat testing.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Network-Weather/swiftftr"
)

var (
	maxHops     int
	timeoutFlag time.Duration
	payloadSize int
	publicIP    string
	ifaceName   string
	sourceIP    string
	jsonOutput  bool
	noRDNS      bool
	verbose     bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "swiftftr",
		Short: "Unprivileged ICMP network path diagnostics",
	}
	root.PersistentFlags().IntVar(&maxHops, "max-hops", 30, "maximum TTL to probe")
	root.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 3*time.Second, "overall receive deadline")
	root.PersistentFlags().IntVar(&payloadSize, "payload-size", 56, "ICMP echo payload size in bytes")
	root.PersistentFlags().StringVar(&publicIP, "public-ip", "", "override public IP used for client-ASN classification")
	root.PersistentFlags().StringVar(&ifaceName, "interface", "", "bind outbound probes to this interface")
	root.PersistentFlags().StringVar(&sourceIP, "source-ip", "", "bind outbound probes to this source address")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON instead of text")
	root.PersistentFlags().BoolVar(&noRDNS, "no-rdns", false, "disable reverse-DNS hostname lookups")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	root.AddCommand(newTraceCmd(), newPingCmd(), newDiscoverCmd())
	return root
}

func buildConfig() (swiftftr.Config, error) {
	cfg := swiftftr.DefaultConfig()
	cfg.MaxHops = maxHops
	cfg.MaxWait = timeoutFlag
	cfg.PayloadSize = payloadSize
	cfg.Interface = ifaceName
	cfg.RDNSEnabled = !noRDNS

	if publicIP != "" {
		ip := net.ParseIP(publicIP)
		if ip == nil {
			return cfg, fmt.Errorf("--public-ip %q is not a valid IP address", publicIP)
		}
		cfg.PublicIP = ip
	}
	if sourceIP != "" {
		ip := net.ParseIP(sourceIP)
		if ip == nil {
			return cfg, fmt.Errorf("--source-ip %q is not a valid IP address", sourceIP)
		}
		cfg.SourceIPv4 = ip
	}

	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return cfg, err
		}
		cfg.Logger = logger
	}
	return cfg, nil
}

func newTraceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace <host>",
		Short: "Run a classified traceroute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}
			engine, err := swiftftr.NewEngine(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.MaxWait+5*time.Second)
			defer cancel()
			result, err := engine.TraceClassified(ctx, args[0])
			if err != nil {
				return err
			}
			return emit(result)
		},
	}
}

func newPingCmd() *cobra.Command {
	var count int
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "ping <host>",
		Short: "Ping a host and report RTT statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}
			engine, err := swiftftr.NewEngine(cfg)
			if err != nil {
				return err
			}
			pc := swiftftr.PingConfig{Count: count, Interval: interval, Timeout: timeoutFlag, PayloadSize: payloadSize}
			ctx, cancel := context.WithTimeout(cmd.Context(), interval*time.Duration(count)+timeoutFlag+5*time.Second)
			defer cancel()
			result, err := engine.Ping(ctx, args[0], pc)
			if err != nil {
				return err
			}
			return emit(result)
		},
	}
	cmd.Flags().IntVar(&count, "count", 5, "number of probes to send")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "delay between probes")
	return cmd
}

func newDiscoverCmd() *cobra.Command {
	var variations, maxPaths, earlyStop int
	cmd := &cobra.Command{
		Use:   "discover <host>",
		Short: "Enumerate ECMP paths toward a host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}
			engine, err := swiftftr.NewEngine(cfg)
			if err != nil {
				return err
			}
			mc := swiftftr.MultipathConfig{FlowVariations: variations, MaxPaths: maxPaths, EarlyStopThreshold: earlyStop}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag*time.Duration(variations)+10*time.Second)
			defer cancel()
			topo, err := engine.DiscoverPaths(ctx, args[0], mc)
			if err != nil {
				return err
			}
			return emit(topo)
		},
	}
	cmd.Flags().IntVar(&variations, "flow-variations", 20, "number of flow variations to try")
	cmd.Flags().IntVar(&maxPaths, "max-paths", 8, "stop after this many unique paths")
	cmd.Flags().IntVar(&earlyStop, "early-stop-threshold", 4, "stop after this many consecutive duplicate paths")
	return cmd
}

func emit(v interface{}) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Printf("%+v\n", v)
	return nil
}

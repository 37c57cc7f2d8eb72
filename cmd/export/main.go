package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"ledgerwatch/internal/config"
	"ledgerwatch/internal/ledger"
	"ledgerwatch/internal/monitor"
	"ledgerwatch/internal/registry"
	"ledgerwatch/internal/remote"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Ledger RPC HTTP endpoint (overrides config)")
	addresses := flag.String("addresses", "", "Comma-separated addresses to export (in addition to config)")
	format := flag.String("format", "json", "Export format: json or csv")
	output := flag.String("output", "", "Output file (default stdout)")
	fetchLimit := flag.Int("fetch-limit", 50, "Events to fetch per address")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	if err := run(*configPath, *rpcEndpoint, *addresses, *format, *output, *fetchLimit, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, rpcEndpoint, addresses, format, output string, fetchLimit int, timeout time.Duration) error {
	exportFormat := ledger.ExportFormat(format)
	if !exportFormat.IsValid() {
		return fmt.Errorf("unsupported format %q (json or csv)", format)
	}

	reg := registry.New()
	endpoint := rpcEndpoint

	if configPath != "" {
		cfg, err := config.LoadWithEnv(configPath)
		if err != nil {
			return err
		}
		if endpoint == "" {
			endpoint = cfg.Remote.RPCURL
		}
		for _, wa := range cfg.Addresses {
			if err := reg.Add(wa.Address); err != nil {
				return fmt.Errorf("invalid configured address: %w", err)
			}
		}
	}

	for _, addr := range strings.Split(addresses, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if err := reg.Add(addr); err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}
	}

	if endpoint == "" {
		return fmt.Errorf("--rpc-endpoint or a config file with remote.rpc_url is required")
	}
	if reg.Len() == 0 {
		return fmt.Errorf("no addresses to export (use --addresses or a config file)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := remote.NewHTTPClient(endpoint)

	poller := monitor.NewPoller(monitor.PollerOptions{
		Client:     client,
		Registry:   reg,
		ForceLimit: fetchLimit,
		BufferSize: reg.Len() * fetchLimit,
	})

	emitted := poller.ForceCheckAll(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	book := ledger.New()
	for i := 0; i < emitted; i++ {
		book.Apply(<-poller.Events())
	}

	data, err := book.Export(exportFormat)
	if err != nil {
		return err
	}

	if output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	totals := book.TotalsNow()
	fmt.Printf("Exported %d addresses, %d transactions to %s\n", totals.Addresses, totals.Transactions, output)
	return nil
}

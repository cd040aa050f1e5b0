package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/hookgw/internal/tui/watch"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	apiURL := fs.String("api-url", "", "Gateway ops API URL (default: derived from api.listen)")
	token := fs.String("token", os.Getenv("HOOKGW_API_TOKEN"), "Ops API bearer token (default: api.token)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *apiURL == "" || *token == "" {
		cfg, err := loadClientConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		if *apiURL == "" {
			*apiURL = localURL(cfg.API.Listen)
		}
		if *token == "" {
			*token = cfg.API.Token
		}
	}

	p := tea.NewProgram(watch.New(*apiURL, *token))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func printSystemWatchHelp() {
	fmt.Println("Usage: hookgw system watch [flags]")
	fmt.Println()
	fmt.Println("Live view of hook runs, callbacks and heartbeats.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --config PATH    Config used to find the ops API")
	fmt.Println("  --api-url URL    Ops API URL (overrides api.listen)")
	fmt.Println("  --token TOKEN    Ops API bearer token (or HOOKGW_API_TOKEN env var)")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  ↑/↓, k/j         Scroll runs")
}

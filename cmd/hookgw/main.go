package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/mattjoyce/hookgw/internal/config"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	if cmd == "--version" {
		return runVersion(args)
	}

	switch cmd {
	// --- NOUNS ---
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)
	case "hook":
		return runHookNoun(args)

	// --- ROOT ALIASES ---
	case "start":
		return runStart(args)
	case "version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: hookgw version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("hookgw %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalized, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalized
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`hookgw - Hook dispatch and completion-notification gateway

Usage:
  hookgw <noun> <action> [flags]

Core Resources (Nouns):
  system    Gateway lifecycle and health
  config    Configuration validation
  hook      Send hooks to a running gateway

System Commands:
  system start      Start the gateway in the foreground
  system status     Show health of a running gateway
  system watch      Live TUI of hook runs and callbacks

Config Commands:
  config check      Validate configuration and print its fingerprint

Hook Commands:
  hook wake         Queue a system event on the primary session
  hook agent        Run an isolated agent turn
  hook ping         Run a tenant ping answered via callback

General:
  --version         Show version information
  version           Show version information
  help              Show this help message

Use 'hookgw <noun> help' for resource-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printSystemStartHelp()
			return 0
		}
		return runStart(actionArgs)
	case "status":
		if hasHelpFlag(actionArgs) {
			printSystemStatusHelp()
			return 0
		}
		return runSystemStatus(actionArgs)
	case "watch":
		if hasHelpFlag(actionArgs) {
			printSystemWatchHelp()
			return 0
		}
		return runWatch(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runHookNoun(args []string) int {
	if len(args) < 1 {
		printHookNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printHookNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "wake", "agent", "ping":
		if hasHelpFlag(actionArgs) {
			printHookActionHelp(action)
			return 0
		}
		return runHookSend(action, actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown hook action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// resolveConfigPath returns path, or the discovered config file when path is empty.
func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	discovered, err := config.DiscoverConfigPath()
	if err != nil {
		return "", err
	}
	fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", discovered)
	return discovered, nil
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: hookgw system <action>")
	fmt.Fprintln(w, "Actions: start, status, watch")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: hookgw config <action> [flags]")
	fmt.Fprintln(w, "Actions: check")
}

func printHookNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: hookgw hook <action> [flags]")
	fmt.Fprintln(w, "Actions: wake, agent, ping")
}

func printSystemStartHelp() {
	fmt.Println("Usage: hookgw system start [--config PATH]")
	fmt.Println("Start the gateway in the foreground.")
}

func printSystemStatusHelp() {
	fmt.Println("Usage: hookgw system status [--config PATH] [--json]")
	fmt.Println("Query /healthz of the running gateway's ops API.")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  Gateway answered healthy")
	fmt.Println("  1  Gateway unreachable or unhealthy")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: hookgw config check [--config PATH] [--json]")
	fmt.Println("Validate configuration and print its BLAKE3 fingerprint.")
}

func printHookActionHelp(action string) {
	switch action {
	case "wake":
		fmt.Println("Usage: hookgw hook wake --text TEXT [--mode now|next-heartbeat] [--config PATH]")
	case "agent":
		fmt.Println("Usage: hookgw hook agent --message TEXT [--name NAME] [--agent ID] [--session-key KEY]")
		fmt.Println("                         [--wake-mode now|next-heartbeat] [--timeout SECONDS] [--no-deliver] [--config PATH]")
	case "ping":
		fmt.Println("Usage: hookgw hook ping --tenant ID --update ID --callback-url URL [--callback-token TOKEN]")
		fmt.Println("                        [--message TEXT] [--config PATH]")
	}
}

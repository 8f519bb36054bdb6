// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - command parsing and dispatch for chatdeck.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdChat
	CmdAsk
	CmdModels
	CmdSettings
	CmdTestConnection
	CmdHistory
	CmdExport
	CmdConfig
	CmdVersion
	CmdUnknown
)

var commandNames = map[Command]string{
	CmdHelp:           "help",
	CmdChat:           "chat",
	CmdAsk:            "ask",
	CmdModels:         "models",
	CmdSettings:       "settings",
	CmdTestConnection: "test-connection",
	CmdHistory:        "history",
	CmdExport:         "export",
	CmdConfig:         "config",
	CmdVersion:        "version",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Model      string
	ConfigPath string
	Quiet      bool
	Verbose    bool
	JSON       bool

	// Command-specific
	Subcommand string
	Query      string
	Files      []string
	Format     string
	Output     string
	Resume     string
	Remote     bool

	// Raw holds the positional arguments after the command name.
	Raw []string

	// Unknown is the unrecognized command name for CmdUnknown.
	Unknown string
}

const usageText = `chatdeck - chat with OpenAI, Anthropic, DeepSeek or a custom endpoint

Usage:
  chatdeck [global flags] <command> [arguments]

Commands:
  chat [--resume <id>]                 Interactive chat (default)
  ask <question> [--file <path>]...    Ask a single question
  models [provider] [--remote]         List models
  settings show                        Show settings
  settings set <field> <value>         Change a setting
  settings key set <provider> <key>    Store an API key
  settings key remove <provider>       Remove an API key
  settings reset                       Restore defaults (discards API keys)
  test-connection <provider>           Validate the stored API key
  history list|search <q>|show <id>|delete <id>
                                       Saved conversations
  export <id> [--format text|json|html|markdown] [--out <dir>|-]
                                       Export a saved conversation
  config show|init|path                Configuration file
  version                              Show version
  help                                 Show this help

Settings fields:
  model, temperature, max_tokens, theme, stream_response, save_history, auto_send_code

Global flags:
  -m, --model <id>     Use this model for this run only
  -c, --config <path>  Config file (default ~/.chatdeck/config.toml)
  -q, --quiet          Suppress banners and progress output
  -v, --verbose        Debug logging
      --json           JSON output where supported

Chat commands:
  /clear  /model [id]  /attach <path>  /export [format] [dir]  /save  /help  /quit

Environment:
  CHATDECK_MODEL, CHATDECK_CHAT_URL, CHATDECK_UPLOAD_URL, CHATDECK_DATA_DIR,
  CHATDECK_LOG_LEVEL, CHATDECK_SETTINGS_PASSPHRASE and the other CHATDECK_*
  overrides listed in the config documentation. A .env file in the working
  directory is loaded first.
`

// =============================================================================
// PARSING
// =============================================================================

// Parse turns argv (without the program name) into a command and its args.
// Global flags may appear anywhere.
func Parse(argv []string) (Command, Args) {
	var args Args
	rest := parseGlobalFlags(argv, &args)

	if len(rest) == 0 {
		return CmdChat, args
	}

	name := strings.ToLower(rest[0])
	cmdArgs := rest[1:]

	switch name {
	case "chat":
		p := NewArgParser(cmdArgs)
		args.Resume = p.FirstFlag("resume", "r")
		args.Raw = p.PositionalFrom(0)
		return CmdChat, args

	case "ask", "a":
		p := NewArgParser(cmdArgs)
		args.Files = p.FlagValues("file", "f")
		args.Raw = p.PositionalFrom(0)
		args.Query = strings.Join(args.Raw, " ")
		return CmdAsk, args

	case "models", "model":
		p := NewArgParser(cmdArgs, "remote")
		args.Remote = p.BoolFlag("remote")
		args.Raw = p.PositionalFrom(0)
		args.Subcommand = p.Subcommand()
		return CmdModels, args

	case "settings", "set":
		p := NewArgParser(cmdArgs)
		args.Raw = p.PositionalFrom(0)
		args.Subcommand = strings.ToLower(p.Subcommand())
		return CmdSettings, args

	case "test-connection", "test":
		p := NewArgParser(cmdArgs)
		args.Raw = p.PositionalFrom(0)
		args.Subcommand = p.Subcommand()
		return CmdTestConnection, args

	case "history", "hist":
		p := NewArgParser(cmdArgs)
		args.Raw = p.PositionalFrom(0)
		args.Subcommand = strings.ToLower(p.Subcommand())
		return CmdHistory, args

	case "export":
		p := NewArgParser(cmdArgs)
		args.Format = p.FirstFlag("format", "f")
		args.Output = p.FirstFlag("out", "o")
		args.Raw = p.PositionalFrom(0)
		args.Subcommand = p.Subcommand()
		return CmdExport, args

	case "config":
		p := NewArgParser(cmdArgs)
		args.Raw = p.PositionalFrom(0)
		args.Subcommand = strings.ToLower(p.Subcommand())
		return CmdConfig, args

	case "version", "--version", "-V":
		return CmdVersion, args

	case "help", "--help", "-h":
		return CmdHelp, args

	default:
		args.Unknown = rest[0]
		args.Raw = cmdArgs
		return CmdUnknown, args
	}
}

// parseGlobalFlags removes global flags from argv and returns what is left.
// "--" stops flag processing.
func parseGlobalFlags(argv []string, args *Args) []string {
	var rest []string
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--":
			return append(rest, argv[i:]...)
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--json":
			args.JSON = true
		case (arg == "-m" || arg == "--model") && i+1 < len(argv):
			args.Model = argv[i+1]
			i++
		case strings.HasPrefix(arg, "--model="):
			args.Model = strings.TrimPrefix(arg, "--model=")
		case (arg == "-c" || arg == "--config") && i+1 < len(argv):
			args.ConfigPath = argv[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			rest = append(rest, arg)
		}
	}
	return rest
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes cmd. Commands that touch the core load configuration and
// wire an App first.
func Run(ctx context.Context, cmd Command, args Args) error {
	switch cmd {
	case CmdHelp:
		fmt.Fprint(os.Stdout, usageText)
		return nil
	case CmdVersion:
		printVersion(os.Stdout)
		return nil
	case CmdUnknown:
		return &UsageError{Message: fmt.Sprintf("unknown command %q (see 'chatdeck help')", args.Unknown)}
	case CmdConfig:
		return HandleConfig(os.Stdout, args)
	}

	app, err := NewAppFromArgs(ctx, args)
	if err != nil {
		return err
	}
	defer app.Close()

	switch cmd {
	case CmdChat:
		return HandleChat(ctx, app, args)
	case CmdAsk:
		return HandleAsk(ctx, app, args)
	case CmdModels:
		return HandleModels(ctx, app, args)
	case CmdSettings:
		return HandleSettings(app, args)
	case CmdTestConnection:
		return HandleTestConnection(ctx, app, args)
	case CmdHistory:
		return HandleHistory(app, args)
	case CmdExport:
		return HandleExport(app, args)
	default:
		return &UsageError{Message: "unsupported command: " + cmd.String()}
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "chatdeck %s\n", Version)
	fmt.Fprintf(w, "  commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  built:  %s\n", BuildDate)
	fmt.Fprintf(w, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

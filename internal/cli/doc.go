// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the command handlers for
// chatdeck.
//
// # Key Types
//
//   - Command: enumeration of the available commands
//   - Args: parsed global flags and command arguments
//   - App: the wired core (settings, conversation, adapters, uploads, history)
//
// # Usage
//
//	cmd, args := cli.Parse(os.Args[1:])
//	if err := cli.Run(ctx, cmd, args); err != nil {
//	    os.Exit(cli.ExitCodeFor(err))
//	}
//
// # Commands Overview
//
//   - chat: interactive REPL with slash commands
//   - ask: single question
//   - models: registry and remote model listing
//   - settings: show and change persisted preferences and API keys
//   - test-connection: validate a provider API key
//   - history: saved conversations
//   - export: write a saved conversation as text, JSON, HTML or Markdown
//   - config: show or initialize the TOML config file
//
// The models, settings and history commands support --json.
package cli

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/chatdeck/internal/config"
)

// HandleConfig implements "config show|init|path". It does not wire an App,
// so it works with a broken settings store.
func HandleConfig(w io.Writer, args Args) error {
	path := args.ConfigPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	switch args.Subcommand {
	case "", "show":
		cfg, err := config.LoadFromPath(path)
		if err != nil {
			return err
		}
		if args.JSON {
			return writeJSON(w, "config", json.RawMessage(cfg.String()), nil)
		}
		fmt.Fprintln(w, cfg.String())
		return nil

	case "init":
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("Wrote"), path)
		return nil

	case "path":
		fmt.Fprintln(w, path)
		return nil

	default:
		return usagef("unknown config subcommand %q (show, init, path)", args.Subcommand)
	}
}

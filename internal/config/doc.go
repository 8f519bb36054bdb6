// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads chatdeck's configuration.
//
// Values come from, in increasing precedence:
//   - built-in defaults (Default)
//   - ~/.chatdeck/config.toml
//   - .env files (./.env, ~/.chatdeck/.env), which only set variables that
//     are not already in the environment
//   - CHATDECK_* environment variables
//
// User preferences such as API keys and the selected model are not
// configuration; they live in the settings store.
package config

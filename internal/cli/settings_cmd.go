// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jeranaias/chatdeck/internal/logging"
	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/settings"
)

// settingsView is the --json payload of "settings show". Keys are masked.
type settingsView struct {
	Model          string            `json:"model"`
	Provider       string            `json:"provider"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"maxTokens"`
	Theme          string            `json:"theme"`
	StreamResponse bool              `json:"streamResponse"`
	SaveHistory    bool              `json:"saveHistory"`
	AutoSendCode   bool              `json:"autoSendCode"`
	APIKeys        map[string]string `json:"apiKeys"`
}

func newSettingsView(st settings.Settings) settingsView {
	v := settingsView{
		Model:          st.SelectedModel.ID,
		Provider:       string(st.SelectedModel.Provider),
		Temperature:    st.Temperature,
		MaxTokens:      st.MaxTokens,
		Theme:          string(st.Theme),
		StreamResponse: st.StreamResponse,
		SaveHistory:    st.SaveHistory,
		AutoSendCode:   st.AutoSendCode,
		APIKeys:        make(map[string]string),
	}
	for _, p := range model.Providers() {
		if key := st.APIKey(p); key != "" {
			v.APIKeys[string(p)] = logging.MaskKey(key)
		}
	}
	return v
}

// HandleSettings implements show, set, key and reset.
func HandleSettings(app *App, args Args) error {
	switch args.Subcommand {
	case "", "show":
		st := app.Settings.Get()
		if app.JSON {
			return writeJSON(app.Out, "settings", newSettingsView(st), nil)
		}
		writeSettings(app.Out, st)
		return nil

	case "set":
		if len(args.Raw) < 3 {
			return usagef("usage: chatdeck settings set <field> <value>")
		}
		field, value := args.Raw[1], strings.Join(args.Raw[2:], " ")
		patch, err := ParseSettingsPatch(field, value)
		if err != nil {
			return err
		}
		app.Settings.Update(patch)
		fmt.Fprintf(app.Out, "%s %s\n", SuccessStyle.Render("Updated"), field)
		return nil

	case "key":
		return handleKey(app, args.Raw[1:])

	case "reset":
		app.Settings.Reset()
		fmt.Fprintln(app.Out, SuccessStyle.Render("Settings reset to defaults. API keys were removed."))
		return nil

	default:
		return usagef("unknown settings subcommand %q (show, set, key, reset)", args.Subcommand)
	}
}

func handleKey(app *App, rest []string) error {
	if len(rest) < 2 {
		return usagef("usage: chatdeck settings key set <provider> <key> | key remove <provider>")
	}
	p, err := model.ParseProvider(rest[1])
	if err != nil {
		return err
	}

	switch strings.ToLower(rest[0]) {
	case "set":
		if len(rest) != 3 || strings.TrimSpace(rest[2]) == "" {
			return usagef("usage: chatdeck settings key set <provider> <key>")
		}
		app.Settings.SetAPIKey(p, rest[2])
		fmt.Fprintf(app.Out, "%s %s key %s\n", SuccessStyle.Render("Stored"), p.DisplayName(), logging.MaskKey(rest[2]))
	case "remove", "rm", "delete":
		app.Settings.RemoveAPIKey(p)
		fmt.Fprintf(app.Out, "%s %s key\n", SuccessStyle.Render("Removed"), p.DisplayName())
	default:
		return usagef("unknown key action %q (set, remove)", rest[0])
	}
	return nil
}

// ParseSettingsPatch converts a "settings set" field and value into a patch.
// Field names accept snake_case and camelCase.
func ParseSettingsPatch(field, value string) (settings.Patch, error) {
	var p settings.Patch
	value = strings.TrimSpace(value)

	switch strings.ToLower(strings.ReplaceAll(field, "_", "")) {
	case "model", "selectedmodel":
		m, ok := model.ModelByID(value)
		if !ok {
			return p, usagef("unknown model %q (see 'chatdeck models')", value)
		}
		p.SelectedModel = &m
	case "temperature", "temp":
		t, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return p, usagef("temperature must be a number: %s", value)
		}
		if t < settings.MinTemperature || t > settings.MaxTemperature {
			return p, usagef("temperature must be between %.0f and %.0f", settings.MinTemperature, settings.MaxTemperature)
		}
		p.Temperature = &t
	case "maxtokens":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return p, usagef("max_tokens must be a positive integer: %s", value)
		}
		p.MaxTokens = &n
	case "theme":
		t := settings.Theme(strings.ToLower(value))
		if !t.Valid() {
			return p, usagef("theme must be light, dark or system")
		}
		p.Theme = &t
	case "streamresponse", "savehistory", "autosendcode":
		b, err := ParseBoolString(value)
		if err != nil {
			return p, usagef("%s: %v", field, err)
		}
		switch strings.ToLower(strings.ReplaceAll(field, "_", "")) {
		case "streamresponse":
			p.StreamResponse = &b
		case "savehistory":
			p.SaveHistory = &b
		default:
			p.AutoSendCode = &b
		}
	default:
		return p, usagef("unknown settings field %q", field)
	}
	return p, nil
}

func writeSettings(w io.Writer, st settings.Settings) {
	v := newSettingsView(st)
	fmt.Fprintln(w, TitleStyle.Render("Settings"))
	row := func(label, value string) {
		fmt.Fprintf(w, "%s%s\n", RenderLabel(label), ValueStyle.Render(value))
	}
	row("Model", st.SelectedModel.String())
	row("Temperature", strconv.FormatFloat(v.Temperature, 'f', -1, 64))
	row("Max tokens", strconv.Itoa(v.MaxTokens))
	row("Theme", v.Theme)
	row("Stream response", strconv.FormatBool(v.StreamResponse))
	row("Save history", strconv.FormatBool(v.SaveHistory))
	row("Auto-send code", strconv.FormatBool(v.AutoSendCode))

	fmt.Fprintln(w, SectionStyle.Render("API keys"))
	for _, p := range model.Providers() {
		key, ok := v.APIKeys[string(p)]
		if !ok {
			key = DimStyle.Render("not set")
		}
		row(p.DisplayName(), key)
	}
}

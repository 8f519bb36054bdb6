// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/chatdeck/internal/model"
)

// StorageKey is the fixed key settings are persisted under.
const StorageKey = "chat-settings"

// SchemaVersion is the version tag written with every blob.
//
// Version history:
//   - 1: selectedModel stored as a bare model id string
//   - 2: selectedModel stored as the full model object
const SchemaVersion = 2

// envelope is the persisted form.
type envelope struct {
	Version int             `json:"version"`
	State   json.RawMessage `json:"state"`
}

// encode serializes s and re-attaches any fields carried over from a blob
// written by another version.
func encode(s Settings, extra map[string]json.RawMessage) ([]byte, error) {
	known, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	state := known
	if len(extra) > 0 {
		merged := make(map[string]json.RawMessage, len(extra)+8)
		for k, v := range extra {
			merged[k] = v
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(known, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			merged[k] = v
		}
		if state, err = json.Marshal(merged); err != nil {
			return nil, err
		}
	}
	return json.Marshal(envelope{Version: SchemaVersion, State: state})
}

// decode parses a persisted blob. migrated is true when the blob carried a
// version other than SchemaVersion.
func decode(data []byte) (s Settings, extra map[string]json.RawMessage, migrated bool, err error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Settings{}, nil, false, fmt.Errorf("decode settings envelope: %w", err)
	}
	if len(env.State) == 0 {
		// Pre-envelope blobs stored the state object directly.
		env.State = data
		env.Version = 0
	}
	s, extra, err = Migrate(env.Version, env.State)
	return s, extra, env.Version != SchemaVersion, err
}

// Migrate merges a state object written by schema version `from` into the
// current defaults. Known fields override defaults, missing fields keep them,
// and unknown fields are returned in extra so a later write preserves them.
func Migrate(from int, state json.RawMessage) (Settings, map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(state, &fields); err != nil {
		return Settings{}, nil, fmt.Errorf("decode settings state: %w", err)
	}

	if from < 2 {
		upgradeSelectedModel(fields)
	}

	s := Defaults()
	known := knownFields()
	extra := make(map[string]json.RawMessage)
	for k, v := range fields {
		if !known[k] {
			extra[k] = v
		}
	}

	// Decode field by field so one malformed value does not discard the rest.
	for k, v := range fields {
		if !known[k] {
			continue
		}
		one, _ := json.Marshal(map[string]json.RawMessage{k: v})
		candidate := s.Clone()
		if err := json.Unmarshal(one, &candidate); err == nil {
			s = candidate
		}
	}

	s.normalize()
	if len(extra) == 0 {
		extra = nil
	}
	return s, extra, nil
}

// upgradeSelectedModel rewrites a v1 bare model id into a full model object.
func upgradeSelectedModel(fields map[string]json.RawMessage) {
	raw, ok := fields["selectedModel"]
	if !ok {
		return
	}
	var id string
	if json.Unmarshal(raw, &id) != nil {
		return
	}
	m, found := model.ModelByID(id)
	if !found {
		delete(fields, "selectedModel")
		return
	}
	if data, err := json.Marshal(m); err == nil {
		fields["selectedModel"] = data
	}
}

func knownFields() map[string]bool {
	data, _ := json.Marshal(Defaults())
	var fields map[string]json.RawMessage
	_ = json.Unmarshal(data, &fields)
	known := make(map[string]bool, len(fields))
	for k := range fields {
		known[k] = true
	}
	return known
}

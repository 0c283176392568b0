// Package json persists conversation transcripts as versioned JSON documents.
package json

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
)

const envelopeVersion = 1

// envelope is the v1 wire format for a persisted conversation.
type envelope struct {
	Version      int          `json:"version"`
	ID           string       `json:"id"`
	SystemPrompt string       `json:"system_prompt"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Messages     []messageDTO `json:"messages"`
}

// MarshalConversation serializes a Conversation to JSON in v1 envelope format.
func MarshalConversation(c relay.Conversation) ([]byte, error) {
	env := envelope{
		Version:      envelopeVersion,
		ID:           c.ID,
		SystemPrompt: c.SystemPrompt,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Messages:     make([]messageDTO, len(c.Messages)),
	}
	for i, msg := range c.Messages {
		dto, err := marshalMessage(msg)
		if err != nil {
			return nil, errors.Wrapf(err, "message %d", i)
		}
		env.Messages[i] = dto
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalConversation deserializes a Conversation from JSON in v1 envelope
// format. Every message is checked with relay.ValidateMessage.
func UnmarshalConversation(data []byte) (relay.Conversation, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return relay.Conversation{}, errors.Wrap(err, "unmarshal envelope")
	}
	if env.Version != envelopeVersion {
		return relay.Conversation{}, errors.Newf("unsupported envelope version: %d", env.Version)
	}
	msgs := make([]relay.Message, len(env.Messages))
	for i, dto := range env.Messages {
		msg, err := unmarshalMessage(dto)
		if err != nil {
			return relay.Conversation{}, errors.Wrapf(err, "message %d", i)
		}
		if err := relay.ValidateMessage(msg); err != nil {
			return relay.Conversation{}, errors.Wrapf(err, "message %d", i)
		}
		msgs[i] = msg
	}
	return relay.Conversation{
		ID:           env.ID,
		SystemPrompt: env.SystemPrompt,
		CreatedAt:    env.CreatedAt,
		UpdatedAt:    env.UpdatedAt,
		Messages:     msgs,
	}, nil
}

// Save writes a Conversation to a JSON file, creating parent directories as
// needed. The file is replaced atomically.
func Save(path string, c relay.Conversation) error {
	data, err := MarshalConversation(c)
	if err != nil {
		return errors.Wrap(err, "marshal")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create directories")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "rename temp file")
	}
	return nil
}

// Load reads a Conversation from a JSON file.
func Load(path string) (relay.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return relay.Conversation{}, errors.Wrap(err, "read file")
	}
	return UnmarshalConversation(data)
}

package kvstore

import (
	"encoding/json"
	"fmt"
)

type opKind uint8

const (
	opSet opKind = iota
	opRm
)

// command is one persisted log record: an upsert or a tombstone.
//
// The JSON encoding is an externally tagged variant, the same shape the
// wire protocol uses: {"Set":["key","value"]} or {"Rm":"key"}.
type command struct {
	op    opKind
	key   string
	value string
}

func setCommand(key, value string) command {
	return command{op: opSet, key: key, value: value}
}

func rmCommand(key string) command {
	return command{op: opRm, key: key}
}

func (c command) MarshalJSON() ([]byte, error) {
	switch c.op {
	case opSet:
		return json.Marshal(struct {
			Set [2]string `json:"Set"`
		}{Set: [2]string{c.key, c.value}})
	case opRm:
		return json.Marshal(struct {
			Rm string `json:"Rm"`
		}{Rm: c.key})
	default:
		return nil, fmt.Errorf("unknown command op %d", c.op)
	}
}

func (c *command) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf("command record must have exactly one tag, got %d", len(tagged))
	}

	if raw, ok := tagged["Set"]; ok {
		var pair [2]string
		if err := json.Unmarshal(raw, &pair); err != nil {
			return fmt.Errorf("decode Set record: %w", err)
		}
		*c = command{op: opSet, key: pair[0], value: pair[1]}
		return nil
	}
	if raw, ok := tagged["Rm"]; ok {
		var key string
		if err := json.Unmarshal(raw, &key); err != nil {
			return fmt.Errorf("decode Rm record: %w", err)
		}
		*c = command{op: opRm, key: key}
		return nil
	}

	for tag := range tagged {
		return fmt.Errorf("unknown command tag %q", tag)
	}
	return fmt.Errorf("empty command record")
}

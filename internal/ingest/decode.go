package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/txgraph/rollingmedian/pkg/types"
)

// Sentinel errors returned (wrapped) by Decode.
var (
	ErrEmptyLine    = errors.New("empty line")
	ErrInvalidJSON  = errors.New("invalid json")
	ErrMissingField = errors.New("missing field")
	ErrInvalidTime  = errors.New("invalid created_time")
)

// record is the wire shape of one input line.
type record struct {
	CreatedTime string `json:"created_time"`
	Target      string `json:"target"`
	Actor       string `json:"actor"`
}

// Decode parses one input line into a Transaction.
func Decode(line []byte) (types.Transaction, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return types.Transaction{}, ErrEmptyLine
	}

	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return types.Transaction{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	switch {
	case rec.Actor == "":
		return types.Transaction{}, fmt.Errorf("%w: actor", ErrMissingField)
	case rec.Target == "":
		return types.Transaction{}, fmt.Errorf("%w: target", ErrMissingField)
	case rec.CreatedTime == "":
		return types.Transaction{}, fmt.Errorf("%w: created_time", ErrMissingField)
	}

	ts, err := time.Parse(types.TimeLayout, rec.CreatedTime)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("%w: %q", ErrInvalidTime, rec.CreatedTime)
	}

	return types.Transaction{
		Actor:     rec.Actor,
		Target:    rec.Target,
		Timestamp: ts.UTC(),
	}, nil
}

package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/ethereum/go-ethereum/common"
)

// Effects are the object changes produced by one checkpoint.
type Effects struct {
	Checkpoint uint64           `json:"checkpoint"`
	Created    []*autotx.Object `json:"created"`
	Mutated    []*autotx.Object `json:"mutated"`
	Deleted    []common.Hash    `json:"deleted"`
}

// DecodeEffects decodes a stream of JSON encoded effects, one value per
// checkpoint, calling fn for each as soon as it is read.
func DecodeEffects(r io.Reader, fn func(*Effects) error) error {
	dec := json.NewDecoder(r)

	for n := 0; ; n++ {
		e := &Effects{}
		err := dec.Decode(e)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to decode effects #%d: %w", n, err)
		}
		err = fn(e)
		if err != nil {
			return err
		}
	}
}

// ReadEffects decodes the whole stream.
func ReadEffects(r io.Reader) ([]*Effects, error) {
	effects := []*Effects{}
	err := DecodeEffects(r, func(e *Effects) error {
		effects = append(effects, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return effects, nil
}

package chain

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
	pkgerrors "github.com/pkg/errors"

	"github.com/jerry-enebeli/runop/model"
)

// UnknownEvent names logs whose first topic is not in the ABI.
const UnknownEvent = "unknown"

// DecodeLogs turns raw logs into named events with named arguments. Indexed
// arguments come from the topics and the rest from the data section.
func DecodeLogs(contractABI abi.ABI, logs []types.Log) ([]model.Event, error) {
	events := make([]model.Event, 0, len(logs))
	for _, lg := range logs {
		ev := model.Event{
			Name:        UnknownEvent,
			Address:     lg.Address,
			BlockNumber: lg.BlockNumber,
			TxHash:      lg.TxHash,
			LogIndex:    lg.Index,
			Args:        map[string]interface{}{},
		}
		if len(lg.Topics) == 0 {
			events = append(events, ev)
			continue
		}
		def, err := contractABI.EventByID(lg.Topics[0])
		if err != nil {
			events = append(events, ev)
			continue
		}
		ev.Name = def.Name

		if len(lg.Data) > 0 {
			if err := contractABI.UnpackIntoMap(ev.Args, def.Name, lg.Data); err != nil {
				return nil, pkgerrors.Wrapf(err, "decode %s data at log %d", def.Name, lg.Index)
			}
		}

		var indexed abi.Arguments
		for _, arg := range def.Inputs {
			if arg.Indexed {
				indexed = append(indexed, arg)
			}
		}
		if len(indexed) > 0 {
			if err := abi.ParseTopicsIntoMap(ev.Args, indexed, lg.Topics[1:]); err != nil {
				return nil, pkgerrors.Wrapf(err, "decode %s topics at log %d", def.Name, lg.Index)
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

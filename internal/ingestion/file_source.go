package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"dex-ledger/internal/ethlog"
	"dex-ledger/internal/replay"
)

// FileRecord is one log line of a JSON-lines fixture, with the transaction
// context the log itself does not carry.
type FileRecord struct {
	Block     uint64   `json:"block"`
	Timestamp int64    `json:"timestamp"`
	TxHash    string   `json:"txHash"`
	TxIndex   uint     `json:"txIndex"`
	TxFrom    string   `json:"txFrom"`
	TxTo      string   `json:"txTo,omitempty"` // empty for contract creation
	LogIndex  uint     `json:"logIndex"`
	Address   string   `json:"address"`
	Topics    []string `json:"topics"`
	Data      string   `json:"data"`
}

// FileSource serves events recorded in a JSON-lines fixture.
type FileSource struct {
	records []FileRecord
	decoder *ethlog.Decoder
	log     logrus.FieldLogger
}

// OpenFileSource reads a fixture file. Blank lines and lines starting with
// '#' are ignored.
func OpenFileSource(path string, decoder *ethlog.Decoder, log logrus.FieldLogger) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	return NewFileSource(f, decoder, log)
}

// NewFileSource reads fixture records from r.
func NewFileSource(r io.Reader, decoder *ethlog.Decoder, log logrus.FieldLogger) (*FileSource, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var records []FileRecord
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var rec FileRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("fixture line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return &FileSource{records: records, decoder: decoder, log: log}, nil
}

// Bounds returns the lowest and highest block in the fixture.
func (s *FileSource) Bounds() (first, last uint64, ok bool) {
	for i, rec := range s.records {
		if i == 0 || rec.Block < first {
			first = rec.Block
		}
		if rec.Block > last {
			last = rec.Block
		}
	}
	return first, last, len(s.records) > 0
}

// Fetch decodes the records in [fromBlock, toBlock].
func (s *FileSource) Fetch(_ context.Context, fromBlock, toBlock uint64) ([]*replay.Event, error) {
	var events []*replay.Event
	for i := range s.records {
		rec := &s.records[i]
		if rec.Block < fromBlock || rec.Block > toBlock {
			continue
		}
		lg, txCtx, err := rec.toLog()
		if err != nil {
			return nil, fmt.Errorf("record block %d log %d: %w", rec.Block, rec.LogIndex, err)
		}
		ev, err := s.decoder.Decode(lg, txCtx)
		if errors.Is(err, ethlog.ErrUnknownEvent) {
			s.log.WithField("address", rec.Address).Debug("skipping unknown log")
			continue
		}
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	replay.SortEvents(events)
	return events, nil
}

func (rec *FileRecord) toLog() (types.Log, ethlog.TxContext, error) {
	for name, v := range map[string]string{"address": rec.Address, "txHash": rec.TxHash, "txFrom": rec.TxFrom} {
		if !strings.HasPrefix(v, "0x") {
			return types.Log{}, ethlog.TxContext{}, fmt.Errorf("%s: missing 0x prefix", name)
		}
	}

	topics := make([]common.Hash, len(rec.Topics))
	for i, t := range rec.Topics {
		topics[i] = common.HexToHash(t)
	}

	var data []byte
	if rec.Data != "" {
		var err error
		if data, err = hexutil.Decode(rec.Data); err != nil {
			return types.Log{}, ethlog.TxContext{}, fmt.Errorf("data: %w", err)
		}
	}

	txCtx := ethlog.TxContext{From: common.HexToAddress(rec.TxFrom), Timestamp: rec.Timestamp}
	if rec.TxTo != "" {
		to := common.HexToAddress(rec.TxTo)
		txCtx.To = &to
	}

	return types.Log{
		Address:     common.HexToAddress(rec.Address),
		Topics:      topics,
		Data:        data,
		BlockNumber: rec.Block,
		TxHash:      common.HexToHash(rec.TxHash),
		TxIndex:     rec.TxIndex,
		Index:       rec.LogIndex,
	}, txCtx, nil
}

var _ replay.Source = (*FileSource)(nil)

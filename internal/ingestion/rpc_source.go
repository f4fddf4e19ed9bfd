package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"dex-ledger/internal/ethlog"
	"dex-ledger/internal/observability"
	"dex-ledger/internal/replay"
	"dex-ledger/internal/storage"
)

// RPCSource fetches factory and pair logs over JSON-RPC and enriches them
// with block timestamps and transaction origin and target.
type RPCSource struct {
	client       Client
	decoder      *ethlog.Decoder
	factory      common.Address
	maxAddresses int
	log          logrus.FieldLogger
	limiter      *rate.Limiter
	blockTimes   storage.BlockTimeStore

	mu      sync.Mutex
	pairs   map[common.Address]struct{}
	chainID *big.Int
	blocks  *cache.Cache // block number -> timestamp
	txs     *cache.Cache // tx hash -> ethlog.TxContext
}

// RPCSourceOptions contains configuration for creating an RPCSource.
type RPCSourceOptions struct {
	Client       Client
	Factory      common.Address
	KnownPairs   []common.Address       // pairs created before the start block
	MaxAddresses int                    // addresses per eth_getLogs call, default 500
	RateLimit    rate.Limit             // RPC calls per second, 0 is unlimited
	RateBurst    int                    // default 1
	Limiter      *rate.Limiter          // shared limiter, overrides RateLimit and RateBurst
	CacheTTL     time.Duration          // default 10m
	BlockTimes   storage.BlockTimeStore // optional persistent header cache
	Logger       logrus.FieldLogger
}

// NewRPCSource creates a new RPC-backed event source.
func NewRPCSource(opts RPCSourceOptions) *RPCSource {
	maxAddresses := opts.MaxAddresses
	if maxAddresses <= 0 {
		maxAddresses = 500
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewLimiter(opts.RateLimit, opts.RateBurst)
	}

	s := &RPCSource{
		client:       opts.Client,
		decoder:      ethlog.NewDecoder(opts.Factory),
		factory:      opts.Factory,
		maxAddresses: maxAddresses,
		log:          log,
		limiter:      limiter,
		blockTimes:   opts.BlockTimes,
		pairs:        make(map[common.Address]struct{}, len(opts.KnownPairs)),
		blocks:       cache.New(ttl, 2*ttl),
		txs:          cache.New(ttl, 2*ttl),
	}
	s.AddPairs(opts.KnownPairs...)
	return s
}

// AddPairs registers pair contracts whose logs should be fetched.
func (s *RPCSource) AddPairs(pairs ...common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pairs {
		s.pairs[p] = struct{}{}
	}
}

// PairCount returns the number of watched pairs.
func (s *RPCSource) PairCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pairs)
}

// Fetch returns decoded events for [fromBlock, toBlock]. Factory logs are
// fetched first so that pairs created inside the window are watched too.
func (s *RPCSource) Fetch(ctx context.Context, fromBlock, toBlock uint64) ([]*replay.Event, error) {
	factoryLogs, err := s.filter(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{s.factory},
		Topics:    [][]common.Hash{{ethlog.PairCreatedTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("factory logs: %w", err)
	}

	events := make([]*replay.Event, 0, len(factoryLogs))
	for _, lg := range factoryLogs {
		ev, err := s.decode(ctx, lg)
		if err != nil {
			return nil, err
		}
		if ev == nil {
			continue
		}
		events = append(events, ev)
		s.AddPairs(ev.PairCreated.Pair)
	}

	for _, batch := range s.pairBatches() {
		logs, err := s.filter(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(fromBlock),
			ToBlock:   new(big.Int).SetUint64(toBlock),
			Addresses: batch,
			Topics:    [][]common.Hash{ethlog.PairTopics()},
		})
		if err != nil {
			return nil, fmt.Errorf("pair logs: %w", err)
		}
		for _, lg := range logs {
			ev, err := s.decode(ctx, lg)
			if err != nil {
				return nil, err
			}
			if ev != nil {
				events = append(events, ev)
			}
		}
	}

	replay.SortEvents(events)
	return events, nil
}

// call waits for the rate limiter, then runs fn and records its latency.
func (s *RPCSource) call(ctx context.Context, method string, fn func() error) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	err := fn()
	observability.RecordRPCLatency(method, time.Since(start).Seconds())
	return err
}

func (s *RPCSource) filter(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := s.call(ctx, "eth_getLogs", func() (err error) {
		logs, err = s.client.FilterLogs(ctx, q)
		return err
	})
	return logs, err
}

// decode returns nil for removed logs and topics the decoder skips.
func (s *RPCSource) decode(ctx context.Context, lg types.Log) (*replay.Event, error) {
	if lg.Removed {
		observability.RecordEventSkipped("removed_log")
		return nil, nil
	}
	txCtx, err := s.txContext(ctx, lg)
	if err != nil {
		return nil, err
	}
	ev, err := s.decoder.Decode(lg, txCtx)
	if errors.Is(err, ethlog.ErrUnknownEvent) {
		s.log.WithFields(logrus.Fields{
			"address": lg.Address.Hex(),
			"tx":      lg.TxHash.Hex(),
		}).Debug("skipping unknown log")
		observability.RecordEventSkipped("unknown_event")
		return nil, nil
	}
	return ev, err
}

func (s *RPCSource) txContext(ctx context.Context, lg types.Log) (ethlog.TxContext, error) {
	key := lg.TxHash.Hex()
	if v, ok := s.txs.Get(key); ok {
		return v.(ethlog.TxContext), nil
	}

	timestamp, err := s.blockTime(ctx, lg.BlockNumber)
	if err != nil {
		return ethlog.TxContext{}, err
	}
	signer, err := s.signer(ctx)
	if err != nil {
		return ethlog.TxContext{}, err
	}

	var tx *types.Transaction
	err = s.call(ctx, "eth_getTransactionByBlockHashAndIndex", func() (err error) {
		tx, err = s.client.TransactionInBlock(ctx, lg.BlockHash, lg.TxIndex)
		return err
	})
	if err != nil {
		return ethlog.TxContext{}, fmt.Errorf("transaction %d in block %d: %w", lg.TxIndex, lg.BlockNumber, err)
	}
	from, err := types.Sender(signer, tx)
	if err != nil {
		return ethlog.TxContext{}, fmt.Errorf("sender of %s: %w", tx.Hash().Hex(), err)
	}

	txCtx := ethlog.TxContext{From: from, To: tx.To(), Timestamp: timestamp}
	s.txs.Set(key, txCtx, cache.DefaultExpiration)
	return txCtx, nil
}

func (s *RPCSource) blockTime(ctx context.Context, number uint64) (int64, error) {
	key := strconv.FormatUint(number, 10)
	if v, ok := s.blocks.Get(key); ok {
		return v.(int64), nil
	}

	if s.blockTimes != nil {
		ts, err := s.blockTimes.GetBlockTime(ctx, number)
		if err == nil {
			s.blocks.Set(key, ts, cache.DefaultExpiration)
			return ts, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.WithError(err).WithField("block", number).Warn("block time cache read failed")
		}
	}

	var header *types.Header
	err := s.call(ctx, "eth_getBlockByNumber", func() (err error) {
		header, err = s.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("header %d: %w", number, err)
	}

	ts := int64(header.Time)
	s.blocks.Set(key, ts, cache.DefaultExpiration)
	if s.blockTimes != nil {
		if err := s.blockTimes.PutBlockTime(ctx, number, ts); err != nil {
			s.log.WithError(err).WithField("block", number).Warn("block time cache write failed")
		}
	}
	return ts, nil
}

func (s *RPCSource) signer(ctx context.Context) (types.Signer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chainID == nil {
		id, err := s.client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("chain id: %w", err)
		}
		s.chainID = id
	}
	return types.LatestSignerForChainID(s.chainID), nil
}

// pairBatches splits the watched pairs into sorted address batches.
func (s *RPCSource) pairBatches() [][]common.Address {
	s.mu.Lock()
	all := make([]common.Address, 0, len(s.pairs))
	for p := range s.pairs {
		all = append(all, p)
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return bytes.Compare(all[i][:], all[j][:]) < 0 })

	var batches [][]common.Address
	for i := 0; i < len(all); i += s.maxAddresses {
		end := i + s.maxAddresses
		if end > len(all) {
			end = len(all)
		}
		batches = append(batches, all[i:end])
	}
	return batches
}

var _ replay.Source = (*RPCSource)(nil)

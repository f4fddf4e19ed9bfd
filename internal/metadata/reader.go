package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

// Older tokens such as MKR return bytes32 for symbol and name.
const erc20Bytes32ABIJSON = `[
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"bytes32"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"bytes32"}],"type":"function"}
]`

var (
	erc20ABI        = mustParseABI(erc20ABIJSON)
	erc20Bytes32ABI = mustParseABI(erc20Bytes32ABIJSON)

	// nullBytes32 is returned by broken contracts that expose no symbol or name.
	nullBytes32 = common.HexToHash("0x0000000000000000000000000000000000000000000000000000000000000001")
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// ContractReader calls the token contract, trying the string ABI first and
// the bytes32 ABI second.
type ContractReader struct {
	caller ethereum.ContractCaller
	log    logrus.FieldLogger
}

// NewContractReader creates a reader over caller.
func NewContractReader(caller ethereum.ContractCaller, log logrus.FieldLogger) *ContractReader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ContractReader{caller: caller, log: log}
}

func (p *ContractReader) Name() string { return "contract" }

func (p *ContractReader) Symbol(ctx context.Context, token common.Address) (string, bool, error) {
	return p.text(ctx, token, "symbol")
}

func (p *ContractReader) TokenName(ctx context.Context, token common.Address) (string, bool, error) {
	return p.text(ctx, token, "name")
}

func (p *ContractReader) Decimals(ctx context.Context, token common.Address) (uint8, bool, error) {
	var out uint8
	ok, err := p.call(ctx, erc20ABI, token, "decimals", &out)
	return out, ok, err
}

func (p *ContractReader) TotalSupply(ctx context.Context, token common.Address) (*big.Int, bool, error) {
	var out *big.Int
	ok, err := p.call(ctx, erc20ABI, token, "totalSupply", &out)
	return out, ok, err
}

func (p *ContractReader) text(ctx context.Context, token common.Address, method string) (string, bool, error) {
	var s string
	if ok, err := p.call(ctx, erc20ABI, token, method, &s); ok || err != nil {
		return s, ok, err
	}

	var raw [32]byte
	ok, err := p.call(ctx, erc20Bytes32ABI, token, method, &raw)
	if !ok || err != nil {
		return "", false, err
	}
	if common.Hash(raw) == nullBytes32 {
		return "", false, nil
	}
	return string(bytes.TrimRight(raw[:], "\x00")), true, nil
}

// call runs a read-only method. A revert or an undecodable return is no
// answer; any other failure is returned as an error.
func (p *ContractReader) call(ctx context.Context, contract abi.ABI, token common.Address, method string, out interface{}) (bool, error) {
	data, err := contract.Pack(method)
	if err != nil {
		return false, fmt.Errorf("pack %s: %w", method, err)
	}
	result, err := p.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		if isRevert(err) {
			p.debug(token, method, err)
			return false, nil
		}
		return false, fmt.Errorf("call %s on %s: %w", method, token.Hex(), err)
	}
	if err := contract.UnpackIntoInterface(out, method, result); err != nil {
		p.debug(token, method, err)
		return false, nil
	}
	return true, nil
}

// isRevert reports whether the node executed the call and it failed on chain.
func isRevert(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == 3 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "revert") || strings.Contains(msg, "invalid opcode")
}

func (p *ContractReader) debug(token common.Address, method string, err error) {
	p.log.WithFields(logrus.Fields{
		"token":  token.Hex(),
		"method": method,
	}).WithError(err).Debug("token contract has no answer")
}

var _ Source = (*ContractReader)(nil)

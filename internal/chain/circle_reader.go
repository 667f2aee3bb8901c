/**
 * @description
 * Circle contract reader.
 * Issues the read calls a circle view depends on against one deployed contract.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum
 * - golang.org/x/sync/errgroup
 *
 * @notes
 * - Reads are independent and run concurrently under one timeout.
 * - A failed optional read leaves its field nil; a failed required read fails the whole call.
 */

package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/savings-circle/backend/internal/circle"
	"github.com/savings-circle/backend/internal/logger"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultReadTimeout = 8 * time.Second

	// Upper bound on concurrent per-member calls
	memberReadConcurrency = 8
)

var ErrInvalidAddress = errors.New("invalid address")

// MemberFacts is what the contract knows about one address
type MemberFacts struct {
	IsMember     *bool
	HasDeposited *bool
}

type CircleReader struct {
	caller  ethereum.ContractCaller
	abi     abi.ABI
	timeout time.Duration
}

// Dial connects to the chain RPC endpoint
func Dial(rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.Dial(strings.TrimSpace(rpcURL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain RPC: %w", err)
	}
	return client, nil
}

// NewCircleReader wraps any contract caller (an *ethclient.Client in production)
func NewCircleReader(caller ethereum.ContractCaller, timeout time.Duration) (*CircleReader, error) {
	parsed, err := abi.JSON(strings.NewReader(circleABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse circle ABI: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	return &CircleReader{caller: caller, abi: parsed, timeout: timeout}, nil
}

// ReadCircle fetches the contract fields needed to derive a circle view.
// viewer may be empty; when set its current-period deposit is read too.
func (r *CircleReader) ReadCircle(ctx context.Context, contract, viewer string) (circle.Reads, error) {
	to, err := parseAddress(contract)
	if err != nil {
		return circle.Reads{}, err
	}

	reads := circle.Reads{}
	var viewerAddr common.Address
	if strings.TrimSpace(viewer) != "" {
		viewerAddr, err = parseAddress(viewer)
		if err != nil {
			return circle.Reads{}, err
		}
		reads.Viewer = strings.ToLower(viewerAddr.Hex())
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	required := []struct {
		method string
		dst    **big.Int
	}{
		{methodOperationCounter, &reads.OperationCounter},
		{methodCurrentOperationIndex, &reads.CurrentOperationIndex},
		{methodRecurringAmount, &reads.RecurringAmount},
		{methodDepositFrequency, &reads.DepositFrequency},
	}
	for _, read := range required {
		read := read
		g.Go(func() error {
			v, err := r.callUint(gctx, to, read.method)
			if err != nil {
				return err
			}
			*read.dst = v
			return nil
		})
	}

	g.Go(func() error {
		v, err := r.callUint(gctx, to, methodPeriodDeposits)
		if err != nil {
			// Older deployments lack the getter; the view falls back to an estimate
			logger.Debug("CircleReader: %s unavailable on %s: %v", methodPeriodDeposits, to.Hex(), err)
			return nil
		}
		reads.PeriodDeposits = v
		return nil
	})

	if reads.Viewer != "" {
		g.Go(func() error {
			v, err := r.callBool(gctx, to, methodHasDeposited, viewerAddr)
			if err != nil {
				return err
			}
			reads.ViewerHasDeposited = &v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return reads, err
	}
	return reads, nil
}

// ReadMembers fetches membership and current-period deposit facts for each address.
// Addresses that are not valid hex are skipped. Facts that fail to load stay nil.
func (r *CircleReader) ReadMembers(ctx context.Context, contract string, addresses []string) (map[string]MemberFacts, error) {
	to, err := parseAddress(contract)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	facts := make([]MemberFacts, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(memberReadConcurrency)

	for i, address := range addresses {
		i := i
		member, err := parseAddress(address)
		if err != nil {
			continue
		}
		g.Go(func() error {
			if v, err := r.callBool(gctx, to, methodIsMember, member); err == nil {
				facts[i].IsMember = &v
			}
			if v, err := r.callBool(gctx, to, methodHasDeposited, member); err == nil {
				facts[i].HasDeposited = &v
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]MemberFacts, len(addresses))
	for i, address := range addresses {
		out[strings.ToLower(strings.TrimSpace(address))] = facts[i]
	}
	return out, nil
}

func (r *CircleReader) call(ctx context.Context, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	result, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}

	values, err := r.abi.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no results returned from %s call", method)
	}
	return values, nil
}

func (r *CircleReader) callUint(ctx context.Context, to common.Address, method string, args ...interface{}) (*big.Int, error) {
	values, err := r.call(ctx, to, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to decode %s as *big.Int", method)
	}
	return v, nil
}

func (r *CircleReader) callBool(ctx context.Context, to common.Address, method string, args ...interface{}) (bool, error) {
	values, err := r.call(ctx, to, method, args...)
	if err != nil {
		return false, err
	}
	v, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("failed to decode %s as bool", method)
	}
	return v, nil
}

// IsAddress reports whether address can be read from, i.e. is 20 bytes of hex
func IsAddress(address string) bool {
	return common.IsHexAddress(strings.TrimSpace(address))
}

func parseAddress(address string) (common.Address, error) {
	trimmed := strings.TrimSpace(address)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return common.HexToAddress(trimmed), nil
}

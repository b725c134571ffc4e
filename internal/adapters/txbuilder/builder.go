package txbuilder

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// Builder encodes sponsored transactions from artifacts and string
// arguments. It holds no state and never touches the network.
type Builder struct{}

// NewBuilder creates a new transaction builder
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildCreate encodes a contract creation: bytecode followed by the packed
// constructor arguments.
func (b *Builder) BuildCreate(artifact *models.ContractArtifact, args []string, opts usecase.TxOptions) (*models.UnsignedTransaction, error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}
	if len(artifact.Bytecode) == 0 {
		return nil, domain.NewError(domain.KindEncoding, "%s has no bytecode", artifact.Name)
	}

	inputs := artifact.ABI.Constructor.Inputs
	if len(args) != len(inputs) {
		return nil, domain.NewError(domain.KindEncoding,
			"constructor of %s expects %d arguments, got %d", artifact.Name, len(inputs), len(args))
	}
	values, err := coerceArgs(inputs, args)
	if err != nil {
		return nil, domain.WrapError(domain.KindEncoding, err, "constructor of %s", artifact.Name)
	}
	packed, err := artifact.ABI.Pack("", values...)
	if err != nil {
		return nil, domain.WrapError(domain.KindEncoding, err, "failed to pack constructor of %s", artifact.Name)
	}

	data := make([]byte, 0, len(artifact.Bytecode)+len(packed))
	data = append(data, artifact.Bytecode...)
	data = append(data, packed...)

	return newTx(nil, data, opts), nil
}

// BuildCall encodes a method call on target. method is a name or a full
// signature such as "initialize(address)".
func (b *Builder) BuildCall(artifact *models.ContractArtifact, target common.Address, method string, args []string, opts usecase.TxOptions) (*models.UnsignedTransaction, error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}
	if target == (common.Address{}) {
		return nil, domain.NewError(domain.KindEncoding, "call to %s requires a target address", method)
	}

	m, ok := artifact.FindMethod(method)
	if !ok {
		return nil, domain.NewError(domain.KindEncoding, "method %s not found in %s", method, artifact.Name)
	}
	if len(args) != len(m.Inputs) {
		return nil, domain.NewError(domain.KindEncoding,
			"%s expects %d arguments, got %d", m.Sig, len(m.Inputs), len(args))
	}
	values, err := coerceArgs(m.Inputs, args)
	if err != nil {
		return nil, domain.WrapError(domain.KindEncoding, err, "%s", m.Sig)
	}
	data, err := artifact.ABI.Pack(m.Name, values...)
	if err != nil {
		return nil, domain.WrapError(domain.KindEncoding, err, "failed to pack %s", m.Sig)
	}

	to := target
	return newTx(&to, data, opts), nil
}

func checkOptions(opts usecase.TxOptions) error {
	if opts.ChainID == 0 {
		return domain.NewError(domain.KindEncoding, "chain id is required")
	}
	if opts.GasPrice != 0 {
		return domain.WrapError(domain.KindEncoding, domain.ErrNonZeroGasPrice, "gas price %d", opts.GasPrice)
	}
	return nil
}

func newTx(to *common.Address, data []byte, opts usecase.TxOptions) *models.UnsignedTransaction {
	return &models.UnsignedTransaction{
		ChainID:  opts.ChainID,
		Nonce:    opts.Nonce,
		To:       to,
		Data:     data,
		GasLimit: opts.GasLimit,
		GasPrice: new(big.Int).SetUint64(opts.GasPrice),
	}
}

func coerceArgs(inputs abi.Arguments, args []string) ([]any, error) {
	values := make([]any, len(args))
	for i, input := range inputs {
		v, err := coerce(args[i], input.Type)
		if err != nil {
			name := input.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, input.Type.String(), err)
		}
		values[i] = v.Interface()
	}
	return values, nil
}

// coerce converts a string argument into the Go value go-ethereum packs
// for t
func coerce(arg string, t abi.Type) (reflect.Value, error) {
	arg = strings.TrimSpace(arg)

	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(arg) {
			return reflect.Value{}, fmt.Errorf("invalid address %q", arg)
		}
		return reflect.ValueOf(common.HexToAddress(arg)), nil

	case abi.BoolTy:
		b, err := strconv.ParseBool(arg)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid bool %q", arg)
		}
		return reflect.ValueOf(b), nil

	case abi.StringTy:
		return reflect.ValueOf(arg), nil

	case abi.IntTy, abi.UintTy:
		return coerceInt(arg, t)

	case abi.BytesTy:
		b, err := hexutil.Decode(arg)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid bytes %q: %w", arg, err)
		}
		return reflect.ValueOf(b), nil

	case abi.FixedBytesTy:
		b, err := hexutil.Decode(arg)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid bytes%d %q: %w", t.Size, arg, err)
		}
		if len(b) != t.Size {
			return reflect.Value{}, fmt.Errorf("expected %d bytes, got %d", t.Size, len(b))
		}
		v := reflect.New(t.GetType()).Elem()
		reflect.Copy(v, reflect.ValueOf(b))
		return v, nil

	case abi.SliceTy, abi.ArrayTy:
		return coerceList(arg, t)

	default:
		return reflect.Value{}, fmt.Errorf("unsupported argument type %s", t.String())
	}
}

func coerceInt(arg string, t abi.Type) (reflect.Value, error) {
	n, ok := new(big.Int).SetString(arg, 0)
	if !ok {
		return reflect.Value{}, fmt.Errorf("invalid integer %q", arg)
	}

	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return reflect.Value{}, fmt.Errorf("%s out of range for uint%d", arg, t.Size)
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		lower := new(big.Int).Neg(limit)
		if n.Cmp(lower) < 0 || n.Cmp(limit) >= 0 {
			return reflect.Value{}, fmt.Errorf("%s out of range for int%d", arg, t.Size)
		}
	}

	goType := t.GetType()
	if goType.Kind() == reflect.Ptr {
		return reflect.ValueOf(n), nil
	}
	v := reflect.New(goType).Elem()
	if t.T == abi.UintTy {
		v.SetUint(n.Uint64())
	} else {
		v.SetInt(n.Int64())
	}
	return v, nil
}

// coerceList parses a JSON list literal such as ["0xabc...", "0xdef..."]
// or [1, 2, 3]
func coerceList(arg string, t abi.Type) (reflect.Value, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(arg), &items); err != nil {
		return reflect.Value{}, fmt.Errorf("expected a JSON list, got %q", arg)
	}
	if t.T == abi.ArrayTy && len(items) != t.Size {
		return reflect.Value{}, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
	}

	var list reflect.Value
	if t.T == abi.ArrayTy {
		list = reflect.New(t.GetType()).Elem()
	} else {
		list = reflect.MakeSlice(t.GetType(), len(items), len(items))
	}

	for i, item := range items {
		elem := string(item)
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			elem = s
		}
		v, err := coerce(elem, *t.Elem)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		list.Index(i).Set(v)
	}
	return list, nil
}

var _ usecase.TransactionBuilder = (*Builder)(nil)

package ethereum

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	apperrors "Web3Agent-Chain/internal/errors"
)

// coerceArgs converts loosely typed call arguments, typically decoded from
// JSON, into the Go values the ABI encoder expects for each input.
func coerceArgs(inputs abi.Arguments, args []any) ([]any, error) {
	if len(args) != len(inputs) {
		return nil, apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("参数数量不匹配: 期望 %d 个, 实际 %d 个", len(inputs), len(args)))
	}
	out := make([]any, len(args))
	for i, arg := range args {
		coerced, err := coerceArg(inputs[i].Type, arg)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, err,
				fmt.Sprintf("第 %d 个参数无法转换为 %s", i+1, inputs[i].Type.String()))
		}
		out[i] = coerced
	}
	return out, nil
}

func coerceArg(t abi.Type, v any) (any, error) {
	if v != nil && reflect.TypeOf(v) == t.GetType() {
		return v, nil
	}
	switch t.T {
	case abi.AddressTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("地址参数必须是字符串, 实际为 %T", v)
		}
		addr, err := ParseAddress(s)
		if err != nil {
			return nil, err
		}
		return addr, nil
	case abi.UintTy, abi.IntTy:
		n, err := toBigInt(v)
		if err != nil {
			return nil, err
		}
		if t.Size <= 64 {
			return sizedInt(t, n)
		}
		return n, nil
	case abi.BoolTy:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("布尔参数必须是 bool, 实际为 %T", v)
		}
		return b, nil
	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("字符串参数必须是 string, 实际为 %T", v)
		}
		return s, nil
	case abi.BytesTy:
		return toBytes(v)
	case abi.FixedBytesTy:
		raw, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		if len(raw) != t.Size {
			return nil, fmt.Errorf("定长字节参数长度不符: 期望 %d, 实际 %d", t.Size, len(raw))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(raw))
		return arr.Interface(), nil
	case abi.SliceTy, abi.ArrayTy:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("数组参数必须是切片, 实际为 %T", v)
		}
		out := reflect.MakeSlice(reflect.SliceOf(t.Elem.GetType()), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := coerceArg(*t.Elem, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out.Index(i).Set(reflect.ValueOf(elem))
		}
		return out.Interface(), nil
	default:
		return nil, fmt.Errorf("不支持的参数类型: %s", t.String())
	}
}

func toBigInt(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	case string:
		s := strings.TrimSpace(n)
		base := 10
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			s, base = s[2:], 16
		}
		out, ok := new(big.Int).SetString(s, base)
		if !ok {
			return nil, fmt.Errorf("无法解析整数: %s", n)
		}
		return out, nil
	case float64:
		if n != float64(int64(n)) {
			return nil, fmt.Errorf("整数参数不能带小数: %v", n)
		}
		return big.NewInt(int64(n)), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	default:
		return nil, fmt.Errorf("无法将 %T 转换为整数", v)
	}
}

// sizedInt narrows a big.Int to the concrete Go type the ABI encoder expects
// for {u,}int{8,16,32,64} inputs.
func sizedInt(t abi.Type, n *big.Int) (any, error) {
	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("数值 %s 超出 uint%d 范围", n.String(), t.Size)
		}
		switch t.Size {
		case 8:
			return uint8(n.Uint64()), nil
		case 16:
			return uint16(n.Uint64()), nil
		case 32:
			return uint32(n.Uint64()), nil
		case 64:
			return n.Uint64(), nil
		}
	} else {
		if !n.IsInt64() {
			return nil, fmt.Errorf("数值 %s 超出 int%d 范围", n.String(), t.Size)
		}
		switch t.Size {
		case 8:
			return int8(n.Int64()), nil
		case 16:
			return int16(n.Int64()), nil
		case 32:
			return int32(n.Int64()), nil
		case 64:
			return n.Int64(), nil
		}
	}
	// 24..56 bit widths encode as *big.Int.
	return n, nil
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return hex.DecodeString(strings.TrimPrefix(b, "0x"))
	default:
		return nil, fmt.Errorf("字节参数必须是 hex 字符串或 []byte, 实际为 %T", v)
	}
}

// assign stores a single unpacked ABI output into a typed destination pointer.
func assign(dst any, value any) error {
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return apperrors.New(apperrors.CodeInvalidArgument, "输出目标必须是非空指针")
	}
	sv := reflect.ValueOf(value)
	target := dv.Elem()
	if sv.Type().AssignableTo(target.Type()) {
		target.Set(sv)
		return nil
	}
	if sv.Type().ConvertibleTo(target.Type()) {
		target.Set(sv.Convert(target.Type()))
		return nil
	}
	return apperrors.New(apperrors.CodeContractCallFailure,
		fmt.Sprintf("无法将返回值 %T 赋给 %s", value, target.Type().String()))
}

// FormatABIValue renders an unpacked ABI output as a JSON-friendly value.
func FormatABIValue(v any) any {
	switch x := v.(type) {
	case *big.Int:
		return x.String()
	case common.Address:
		return x.Hex()
	case common.Hash:
		return x.Hex()
	case []byte:
		return "0x" + hex.EncodeToString(x)
	case [32]byte:
		return "0x" + hex.EncodeToString(x[:])
	case []*big.Int:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n.String()
		}
		return out
	case []common.Address:
		out := make([]any, len(x))
		for i, a := range x {
			out[i] = a.Hex()
		}
		return out
	default:
		return v
	}
}

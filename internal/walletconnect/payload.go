package walletconnect

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Kind tags the decoded request payload variants.
type Kind string

const (
	KindSendTransaction Kind = "transaction-send"
	KindSignTypedData   Kind = "typed-data-sign"
	KindPersonalSign    Kind = "personal-sign"
	KindUnsupported     Kind = "unsupported"
)

// TransactionParams is the decoded form of an eth_sendTransaction request.
type TransactionParams struct {
	From  string        `json:"from"`
	To    string        `json:"to"`
	Value *hexutil.Big  `json:"value"`
	Data  hexutil.Bytes `json:"data"`
	// Gas fields are parsed for completeness but never honored: the
	// signing client always estimates gas itself.
	Gas      *hexutil.Big `json:"gas"`
	GasPrice *hexutil.Big `json:"gasPrice"`
}

// Payload is the tagged decoding of a session-request's method and params.
// Exactly one of the variant fields is populated, selected by Kind.
type Payload struct {
	Kind Kind

	// Method is the raw protocol method name, kept for error reporting.
	Method string

	// KindSendTransaction
	Transaction *TransactionParams

	// KindSignTypedData
	TypedData json.RawMessage

	// KindPersonalSign
	Message []byte
}

// ParsePayload decodes the raw params of a session request into a tagged
// variant. Methods outside the handled set decode to KindUnsupported
// without error so callers can answer the peer explicitly.
func ParsePayload(method string, params json.RawMessage) (*Payload, error) {
	switch method {
	case "eth_sendTransaction":
		var list []TransactionParams
		if err := json.Unmarshal(params, &list); err != nil {
			return nil, fmt.Errorf("failed to decode eth_sendTransaction params: %w", err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("eth_sendTransaction params are empty")
		}
		if list[0].To == "" {
			return nil, fmt.Errorf("eth_sendTransaction request has no destination")
		}
		return &Payload{Kind: KindSendTransaction, Method: method, Transaction: &list[0]}, nil

	case "eth_signTypedData", "eth_signTypedData_v4":
		// Params are [address, typedData]; the typed data may arrive as a
		// JSON object or as a JSON-encoded string.
		var list []json.RawMessage
		if err := json.Unmarshal(params, &list); err != nil {
			return nil, fmt.Errorf("failed to decode %s params: %w", method, err)
		}
		if len(list) < 2 {
			return nil, fmt.Errorf("%s params need [address, typedData], got %d elements", method, len(list))
		}
		typedData := list[1]
		var asString string
		if err := json.Unmarshal(typedData, &asString); err == nil {
			typedData = json.RawMessage(asString)
		}
		return &Payload{Kind: KindSignTypedData, Method: method, TypedData: typedData}, nil

	case "personal_sign":
		// Params are [message, address]; the message is usually 0x-hex.
		var list []string
		if err := json.Unmarshal(params, &list); err != nil {
			return nil, fmt.Errorf("failed to decode personal_sign params: %w", err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("personal_sign params are empty")
		}
		message, err := decodeSignMessage(list[0])
		if err != nil {
			return nil, err
		}
		return &Payload{Kind: KindPersonalSign, Method: method, Message: message}, nil

	default:
		return &Payload{Kind: KindUnsupported, Method: method}, nil
	}
}

// decodeSignMessage accepts 0x-hex or plain UTF-8 message encodings.
func decodeSignMessage(raw string) ([]byte, error) {
	if len(raw) >= 2 && raw[0] == '0' && (raw[1] == 'x' || raw[1] == 'X') {
		decoded, err := hexutil.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode personal_sign message: %w", err)
		}
		return decoded, nil
	}
	return []byte(raw), nil
}

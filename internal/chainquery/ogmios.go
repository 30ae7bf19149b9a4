package chainquery

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/tx"
)

const ogmiosDialTimeout = 10 * time.Second

// OgmiosBackend talks JSON-RPC to an Ogmios server over a websocket.
// One request is in flight at a time; the connection is dialed lazily
// and redialed after any transport failure.
type OgmiosBackend struct {
	url string

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
}

var _ Backend = (*OgmiosBackend)(nil)

// NewOgmiosBackend creates a backend for the given ws:// or wss:// URL.
func NewOgmiosBackend(url string) *OgmiosBackend {
	return &OgmiosBackend{url: url}
}

// Close drops the websocket connection.
func (o *OgmiosBackend) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn == nil {
		return nil
	}
	err := o.conn.Close()
	o.conn = nil
	return err
}

type ogmiosRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      uint64 `json:"id"`
}

type ogmiosResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *ogmiosError    `json:"error"`
	ID     uint64          `json:"id"`
}

type ogmiosError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call performs one request/response exchange. Transport failures tear
// the connection down and come back as ErrNetwork.
func (o *OgmiosBackend) call(ctx context.Context, method string, params any, result any) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.conn == nil {
		dialer := websocket.Dialer{HandshakeTimeout: ogmiosDialTimeout}
		conn, _, err := dialer.DialContext(ctx, o.url, nil)
		if err != nil {
			return netErr(fmt.Errorf("dial %s: %v", o.url, err))
		}
		o.conn = conn
	}

	o.nextID++
	req := ogmiosRequest{JSONRPC: "2.0", Method: method, Params: params, ID: o.nextID}

	if deadline, ok := ctx.Deadline(); ok {
		o.conn.SetWriteDeadline(deadline)
		o.conn.SetReadDeadline(deadline)
	}
	if err := o.conn.WriteJSON(req); err != nil {
		o.drop()
		return netErr(err)
	}

	// skip unsolicited messages until our id answers
	for {
		var resp ogmiosResponse
		if err := o.conn.ReadJSON(&resp); err != nil {
			o.drop()
			return netErr(err)
		}
		if resp.ID != req.ID {
			continue
		}
		if resp.Error != nil {
			return &ogmiosCallError{method: method, err: resp.Error}
		}
		if result != nil {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("%s: decode result: %w", method, err)
			}
		}
		return nil
	}
}

func (o *OgmiosBackend) drop() {
	if o.conn != nil {
		o.conn.Close()
		o.conn = nil
	}
}

// ogmiosCallError is a server-side refusal of a query or submission.
type ogmiosCallError struct {
	method string
	err    *ogmiosError
}

func (e *ogmiosCallError) Error() string {
	return fmt.Sprintf("%s: ogmios error %d: %s", e.method, e.err.Code, e.err.Message)
}

// wire shapes, Ogmios v6

type ogmiosUTxO struct {
	Transaction struct {
		ID string `json:"id"`
	} `json:"transaction"`
	Index     uint32                       `json:"index"`
	Address   string                       `json:"address"`
	Value     map[string]map[string]uint64 `json:"value"`
	Datum     string                       `json:"datum,omitempty"`
	DatumHash string                       `json:"datumHash,omitempty"`
	Script    *struct {
		CBOR string `json:"cbor"`
	} `json:"script,omitempty"`
}

type ogmiosTip struct {
	Slot uint64 `json:"slot"`
	ID   string `json:"id"`
}

// UTxOsByAddress implements Backend.
func (o *OgmiosBackend) UTxOsByAddress(ctx context.Context, address string) ([]ChainUTxO, error) {
	params := map[string]any{"addresses": []string{address}}
	var raw []ogmiosUTxO
	if err := o.call(ctx, "queryLedgerState/utxo", params, &raw); err != nil {
		return nil, err
	}

	out := make([]ChainUTxO, 0, len(raw))
	for _, r := range raw {
		u, err := r.convert()
		if err != nil {
			return nil, fmt.Errorf("utxo %s#%d: %w", r.Transaction.ID, r.Index, err)
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *ogmiosUTxO) convert() (ChainUTxO, error) {
	var u ChainUTxO

	hash, err := tx.ParseTxHash(r.Transaction.ID)
	if err != nil {
		return u, err
	}
	u.OutPoint = tx.OutPoint{Hash: hash, Index: r.Index}

	value := tx.Value{}
	for policy, assets := range r.Value {
		if policy == "ada" {
			value.Coin = assets["lovelace"]
			continue
		}
		var id tx.AssetID
		p, err := hex.DecodeString(policy)
		if err != nil || len(p) != 28 {
			return u, fmt.Errorf("bad policy id %q", policy)
		}
		copy(id.Policy[:], p)
		for nameHex, qty := range assets {
			name, err := hex.DecodeString(nameHex)
			if err != nil {
				return u, fmt.Errorf("bad asset name %q", nameHex)
			}
			id.Name = string(name)
			value = value.WithAsset(id, qty)
		}
	}
	u.Output.Value = value

	if r.Datum != "" {
		if u.Output.Datum, err = hex.DecodeString(r.Datum); err != nil {
			return u, fmt.Errorf("bad datum: %w", err)
		}
	}
	u.DatumHash = r.DatumHash
	if r.Script != nil && r.Script.CBOR != "" {
		if u.Output.Script, err = hex.DecodeString(r.Script.CBOR); err != nil {
			return u, fmt.Errorf("bad script: %w", err)
		}
	}
	return u, nil
}

// DatumByHash implements Backend. Ogmios serves datums only alongside
// the outputs that carry them, so a miss here is final.
func (o *OgmiosBackend) DatumByHash(ctx context.Context, hash string) ([]byte, error) {
	return nil, fmt.Errorf("%w: ogmios cannot look up datum %s by hash", ErrDatumMissing, hash)
}

// Tip implements Backend.
func (o *OgmiosBackend) Tip(ctx context.Context) (Tip, error) {
	var raw ogmiosTip
	if err := o.call(ctx, "queryNetwork/tip", nil, &raw); err != nil {
		return Tip{}, err
	}
	return Tip{Slot: raw.Slot, Hash: raw.ID}, nil
}

// SubmitTx implements Backend.
func (o *OgmiosBackend) SubmitTx(ctx context.Context, txCBOR []byte) (tx.TxHash, error) {
	params := map[string]any{
		"transaction": map[string]string{"cbor": hex.EncodeToString(txCBOR)},
	}
	var result struct {
		Transaction struct {
			ID string `json:"id"`
		} `json:"transaction"`
	}
	err := o.call(ctx, "submitTransaction", params, &result)
	if err != nil {
		var callErr *ogmiosCallError
		if errors.As(err, &callErr) {
			return tx.TxHash{}, &RejectionError{Code: callErr.err.Code, Message: callErr.err.Message}
		}
		return tx.TxHash{}, err
	}
	return tx.ParseTxHash(result.Transaction.ID)
}

// HasTransaction implements Backend by probing the transaction's first
// output in the UTxO set.
func (o *OgmiosBackend) HasTransaction(ctx context.Context, hash tx.TxHash) (bool, error) {
	params := map[string]any{
		"outputReferences": []map[string]any{
			{"transaction": map[string]string{"id": hash.String()}, "index": 0},
		},
	}
	var raw []ogmiosUTxO
	if err := o.call(ctx, "queryLedgerState/utxo", params, &raw); err != nil {
		return false, err
	}
	return len(raw) > 0, nil
}

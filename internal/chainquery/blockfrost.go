package chainquery

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/tx"
)

// Blockfrost API base URLs per network.
const (
	BlockfrostMainnetURL = "https://cardano-mainnet.blockfrost.io/api/v0"
	BlockfrostPreprodURL = "https://cardano-preprod.blockfrost.io/api/v0"
	BlockfrostPreviewURL = "https://cardano-preview.blockfrost.io/api/v0"
)

const blockfrostTimeout = 30 * time.Second

// BlockfrostBackend reads the chain through the Blockfrost REST API.
type BlockfrostBackend struct {
	baseURL   string
	projectID string
	client    *http.Client
}

var _ Backend = (*BlockfrostBackend)(nil)

// NewBlockfrostBackend creates a backend against baseURL authenticated
// by projectID.
func NewBlockfrostBackend(baseURL, projectID string) *BlockfrostBackend {
	return &BlockfrostBackend{
		baseURL:   baseURL,
		projectID: projectID,
		client:    &http.Client{Timeout: blockfrostTimeout},
	}
}

// httpError is a non-2xx Blockfrost reply.
type httpError struct {
	Status  int
	Message string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("blockfrost: http %d: %s", e.Status, e.Message)
}

func (b *BlockfrostBackend) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("project_id", b.projectID)

	resp, err := b.client.Do(req)
	if err != nil {
		return netErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return netErr(err)
	}
	if resp.StatusCode != http.StatusOK {
		return &httpError{Status: resp.StatusCode, Message: string(body)}
	}
	return json.Unmarshal(body, result)
}

type blockfrostAmount struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

type blockfrostUTxO struct {
	TxHash      string             `json:"tx_hash"`
	OutputIndex uint32             `json:"output_index"`
	Amount      []blockfrostAmount `json:"amount"`
	DataHash    string             `json:"data_hash"`
	InlineDatum string             `json:"inline_datum"`
	RefScript   string             `json:"reference_script_hash"`
}

// UTxOsByAddress implements Backend. Pages are walked until a short one
// arrives.
func (b *BlockfrostBackend) UTxOsByAddress(ctx context.Context, address string) ([]ChainUTxO, error) {
	const pageSize = 100
	var out []ChainUTxO
	for page := 1; ; page++ {
		var raw []blockfrostUTxO
		path := fmt.Sprintf("/addresses/%s/utxos?count=%d&page=%d", address, pageSize, page)
		if err := b.get(ctx, path, &raw); err != nil {
			var he *httpError
			// an unused address is reported as 404
			if errors.As(err, &he) && he.Status == http.StatusNotFound {
				return nil, nil
			}
			return nil, err
		}
		for _, r := range raw {
			u, err := r.convert(ctx, b)
			if err != nil {
				return nil, fmt.Errorf("utxo %s#%d: %w", r.TxHash, r.OutputIndex, err)
			}
			out = append(out, u)
		}
		if len(raw) < pageSize {
			return out, nil
		}
	}
}

func (r *blockfrostUTxO) convert(ctx context.Context, b *BlockfrostBackend) (ChainUTxO, error) {
	var u ChainUTxO

	hash, err := tx.ParseTxHash(r.TxHash)
	if err != nil {
		return u, err
	}
	u.OutPoint = tx.OutPoint{Hash: hash, Index: r.OutputIndex}

	value := tx.Value{}
	for _, amt := range r.Amount {
		qty, err := strconv.ParseUint(amt.Quantity, 10, 64)
		if err != nil {
			return u, fmt.Errorf("bad quantity %q: %w", amt.Quantity, err)
		}
		if amt.Unit == "lovelace" {
			value.Coin = qty
			continue
		}
		// unit = policy hex ++ asset name hex
		raw, err := hex.DecodeString(amt.Unit)
		if err != nil || len(raw) < 28 {
			return u, fmt.Errorf("bad asset unit %q", amt.Unit)
		}
		var id tx.AssetID
		copy(id.Policy[:], raw[:28])
		id.Name = string(raw[28:])
		value = value.WithAsset(id, qty)
	}
	u.Output.Value = value

	if r.InlineDatum != "" {
		if u.Output.Datum, err = hex.DecodeString(r.InlineDatum); err != nil {
			return u, fmt.Errorf("bad inline datum: %w", err)
		}
	}
	u.DatumHash = r.DataHash

	if r.RefScript != "" {
		script, err := b.scriptCBOR(ctx, r.RefScript)
		if err != nil {
			return u, err
		}
		u.Output.Script = script
	}
	return u, nil
}

func (b *BlockfrostBackend) scriptCBOR(ctx context.Context, scriptHash string) ([]byte, error) {
	var raw struct {
		CBOR string `json:"cbor"`
	}
	if err := b.get(ctx, "/scripts/"+scriptHash+"/cbor", &raw); err != nil {
		return nil, err
	}
	return hex.DecodeString(raw.CBOR)
}

// DatumByHash implements Backend.
func (b *BlockfrostBackend) DatumByHash(ctx context.Context, hash string) ([]byte, error) {
	var raw struct {
		CBOR string `json:"cbor"`
	}
	if err := b.get(ctx, "/scripts/datum/"+hash+"/cbor", &raw); err != nil {
		var he *httpError
		if errors.As(err, &he) && he.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrDatumMissing, hash)
		}
		return nil, err
	}
	return hex.DecodeString(raw.CBOR)
}

// Tip implements Backend.
func (b *BlockfrostBackend) Tip(ctx context.Context) (Tip, error) {
	var raw struct {
		Slot uint64 `json:"slot"`
		Hash string `json:"hash"`
	}
	if err := b.get(ctx, "/blocks/latest", &raw); err != nil {
		return Tip{}, err
	}
	return Tip{Slot: raw.Slot, Hash: raw.Hash}, nil
}

// SubmitTx implements Backend.
func (b *BlockfrostBackend) SubmitTx(ctx context.Context, txCBOR []byte) (tx.TxHash, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/tx/submit", bytes.NewReader(txCBOR))
	if err != nil {
		return tx.TxHash{}, err
	}
	req.Header.Set("project_id", b.projectID)
	req.Header.Set("Content-Type", "application/cbor")

	resp, err := b.client.Do(req)
	if err != nil {
		return tx.TxHash{}, netErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tx.TxHash{}, netErr(err)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return tx.TxHash{}, &RejectionError{Code: resp.StatusCode, Message: string(body)}
		}
		return tx.TxHash{}, netErr(&httpError{Status: resp.StatusCode, Message: string(body)})
	}

	// the reply is the tx id as a JSON string
	var id string
	if err := json.Unmarshal(body, &id); err != nil {
		return tx.TxHash{}, fmt.Errorf("submit reply: %w", err)
	}
	return tx.ParseTxHash(id)
}

// HasTransaction implements Backend.
func (b *BlockfrostBackend) HasTransaction(ctx context.Context, hash tx.TxHash) (bool, error) {
	var raw struct {
		Hash string `json:"hash"`
	}
	err := b.get(ctx, "/txs/"+hash.String(), &raw)
	if err != nil {
		var he *httpError
		if errors.As(err, &he) && he.Status == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return raw.Hash != "", nil
}

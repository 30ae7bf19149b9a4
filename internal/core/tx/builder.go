package tx

import (
	"context"
	"fmt"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/oracle"
)

// maxFeeIterations bounds the balance-encode-refee loop. The fee is
// monotone in the encoded size, so the loop settles in two or three
// passes; hitting the bound means the inputs keep churning and the
// build is abandoned.
const maxFeeIterations = 8

// ChainView is the chain data the builder consumes. A snapshot is read
// once per build; staleness between build and submission is the
// submission gate's problem.
type ChainView interface {
	// StateSnapshot resolves the contract state UTxO and decodes its
	// datum.
	StateSnapshot(ctx context.Context) (*StateSnapshot, error)

	// WalletUTxOs lists the unspent outputs at addr.
	WalletUTxOs(ctx context.Context, addr Address) ([]UTxO, error)

	// ReferenceScript returns the published validator UTxO, or nil when
	// none exists.
	ReferenceScript(ctx context.Context) (*UTxO, error)

	// NowMillis returns the chain clock in POSIX milliseconds.
	NowMillis(ctx context.Context) (int64, error)

	// TipSlot returns the current tip's absolute slot.
	TipSlot(ctx context.Context) (uint64, error)
}

// Builder assembles unsigned transactions against one oracle deployment.
type Builder struct {
	Params   ProtocolParams
	Network  Network
	Contract Address

	// Wallet funds fees and receives change; WalletKey is its payment
	// credential and always co-signs.
	Wallet    Address
	WalletKey oracle.KeyHash

	// Marker is the NFT identifying the state UTxO.
	Marker AssetID

	// FeeToken denominates rewards and deposits. Nil means the chain
	// currency itself.
	FeeToken *AssetID

	// TTLSlots is the validity horizon added to the tip slot.
	TTLSlots uint64
}

// Build turns req into a balanced unsigned transaction. Preconditions
// are checked against a fresh snapshot before anything is assembled;
// violations surface as ErrIllegalTransition. The result is
// deterministic for a given snapshot and request.
func (b *Builder) Build(ctx context.Context, view ChainView, req oracle.ActionRequest) (*Unsigned, error) {
	if req.Kind() == oracle.KindCreateReferenceScript {
		return b.buildReferenceScript(ctx, view, req.(oracle.CreateReferenceScript))
	}

	now, err := view.NowMillis(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain clock: %w", err)
	}
	snap, err := view.StateSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	next, payouts, err := oracle.Apply(snap.State, req, now)
	if err != nil {
		return nil, err
	}

	if req.Kind() == oracle.KindAggregate {
		// the reserve must already hold every reward the aggregation
		// credits, or collections against the new datum would fail
		reserve := snap.UTxO.Output.Value.Coin
		if b.FeeToken != nil {
			reserve = snap.UTxO.Output.Value.AssetQty(*b.FeeToken)
		}
		if owed := next.OutstandingRewards(); reserve < owed {
			return nil, fmt.Errorf("%w: reserve %d cannot cover %d in accrued rewards",
				ErrInsufficientReserve, reserve, owed)
		}
	}

	outputs, stateDelta, err := b.layoutOutputs(snap, req, next, payouts)
	if err != nil {
		return nil, err
	}

	redeemer, err := oracle.EncodeRedeemer(req.Kind())
	if err != nil {
		return nil, err
	}

	body := TxBody{
		Inputs:  []OutPoint{snap.UTxO.OutPoint},
		Outputs: outputs,
	}
	if req.Kind() == oracle.KindClose {
		body.Mint = map[AssetID]int64{b.Marker: -1}
	}

	if ref, err := view.ReferenceScript(ctx); err != nil {
		return nil, err
	} else if ref != nil {
		body.ReferenceInputs = []OutPoint{ref.OutPoint}
	}

	signers := oracle.RequiredSigners(snap.State, req)
	if signers.Threshold == len(signers.Signers) {
		body.RequiredSigners = append([]oracle.KeyHash(nil), signers.Signers...)
		sortRequiredSigners(body.RequiredSigners)
	}

	unsigned, err := b.balance(ctx, view, &body, stateDelta, len(redeemer), signers)
	if err != nil {
		return nil, err
	}
	unsigned.Redeemer = redeemer
	unsigned.Action = req.Kind()
	unsigned.NextState = next
	return unsigned, nil
}

// layoutOutputs produces the contract and payout outputs for the
// transition and the wallet-funded delta the balancer must cover on top
// of fees. For AddFunds the delta is the deposit; otherwise the state
// input funds its own successor.
func (b *Builder) layoutOutputs(snap *StateSnapshot, req oracle.ActionRequest, next *oracle.OracleState, payouts []oracle.Payout) ([]TxOutput, Value, error) {
	stateValue := snap.UTxO.Output.Value.Clone()
	var outputs []TxOutput
	var delta Value

	// rewards leave the contract value
	for _, p := range payouts {
		paid := b.rewardValue(p.Amount)
		rest, ok := stateValue.Sub(paid)
		if !ok {
			return nil, Value{}, fmt.Errorf("%w: contract value %s cannot cover payout %s",
				oracle.ErrIllegalTransition, stateValue, paid)
		}
		stateValue = rest

		out := TxOutput{
			Address: NewKeyAddress(b.Network, p.To),
			Value:   paid,
		}
		if min := b.Params.MinUTxOCoin(&out); out.Value.Coin < min {
			// top up the coin floor from the wallet
			short := min - out.Value.Coin
			out.Value.Coin = min
			delta.Coin += short
		}
		outputs = append(outputs, out)
	}

	switch a := req.(type) {
	case oracle.AddFunds:
		deposit := b.rewardValue(a.Amount)
		stateValue = stateValue.Add(deposit)
		delta = delta.Add(deposit)
	case oracle.Close:
		// marker burned, everything left goes to the destination
		remaining, ok := stateValue.Sub(Value{Assets: map[AssetID]uint64{b.Marker: 1}})
		if !ok {
			return nil, Value{}, fmt.Errorf("state utxo does not carry marker %s", b.Marker)
		}
		if !remaining.IsZero() {
			outputs = append(outputs, TxOutput{
				Address: NewKeyAddress(b.Network, a.PayTo),
				Value:   remaining,
			})
		}
		return outputs, delta, nil
	}

	if next == nil {
		return nil, Value{}, fmt.Errorf("transition for %s dropped the state unexpectedly", req.Kind())
	}
	stateOut := TxOutput{
		Address: b.Contract,
		Value:   stateValue,
		Datum:   oracle.EncodeState(next),
	}
	if min := b.Params.MinUTxOCoin(&stateOut); stateOut.Value.Coin < min {
		short := min - stateOut.Value.Coin
		stateOut.Value.Coin = min
		delta.Coin += short
	}
	// state output first, payouts after
	outputs = append([]TxOutput{stateOut}, outputs...)
	return outputs, delta, nil
}

// rewardValue denominates amount in the configured fee token.
func (b *Builder) rewardValue(amount uint64) Value {
	if b.FeeToken == nil {
		return NewValue(amount)
	}
	return Value{Assets: map[AssetID]uint64{*b.FeeToken: amount}}
}

// buildReferenceScript publishes the validator in its own UTxO at the
// contract address. Refused when one is already on chain.
func (b *Builder) buildReferenceScript(ctx context.Context, view ChainView, req oracle.CreateReferenceScript) (*Unsigned, error) {
	if err := oracle.CanApply(&oracle.OracleState{Lifecycle: oracle.LifecycleActive}, req, 0); err != nil {
		return nil, err
	}
	existing, err := view.ReferenceScript(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrReferenceScriptExists, existing.OutPoint)
	}

	out := TxOutput{Address: b.Contract, Script: req.Script}
	out.Value.Coin = b.Params.MinUTxOCoin(&out)

	body := TxBody{Outputs: []TxOutput{out}}
	unsigned, err := b.balance(ctx, view, &body, out.Value, 0, oracle.SignerSpec{})
	if err != nil {
		return nil, err
	}
	unsigned.Action = oracle.KindCreateReferenceScript
	return unsigned, nil
}

// balance funds the body from the wallet, converges the fee, and seals
// the result. walletDelta is what the outputs need beyond any contract
// input already in body.Inputs, before fees.
func (b *Builder) balance(ctx context.Context, view ChainView, body *TxBody, walletDelta Value, redeemerLen int, signers oracle.SignerSpec) (*Unsigned, error) {
	utxos, err := view.WalletUTxOs(ctx, b.Wallet)
	if err != nil {
		return nil, fmt.Errorf("wallet utxos: %w", err)
	}
	exclude := make(map[OutPoint]bool, len(body.Inputs))
	for _, in := range body.Inputs {
		exclude[in] = true
	}
	spendable := FilterSpendable(utxos, exclude)
	if len(spendable) == 0 {
		return nil, ErrNoWalletUTxOs
	}

	tip, err := view.TipSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain tip: %w", err)
	}

	spendsScript := len(body.Inputs) > 0
	witnesses := signers.Threshold + 1 // threshold signers plus the wallet

	baseInputs := append([]OutPoint(nil), body.Inputs...)
	fee := b.Params.MinFeeB

	for i := 0; i < maxFeeIterations; i++ {
		need := walletDelta.Clone()
		need.Coin += fee

		picked, change, err := SelectCoins(spendable, need)
		if err != nil {
			return nil, err
		}

		candidate := *body
		candidate.Inputs = append(append([]OutPoint(nil), baseInputs...), outPoints(picked)...)
		candidate.Outputs = append([]TxOutput(nil), body.Outputs...)
		candidate.Fee = fee
		candidate.TTL = tip + b.TTLSlots
		if spendsScript {
			candidate.Collateral = []OutPoint{picked[0].OutPoint}
		}

		if !change.IsZero() {
			changeOut := TxOutput{Address: b.Wallet, Value: change}
			if min := b.Params.MinUTxOCoin(&changeOut); change.Coin < min {
				if len(change.Assets) > 0 {
					// change must carry its assets; pull more coin
					walletDelta.Coin += min - change.Coin
					continue
				}
				// dust folds into the fee
				candidate.Fee += change.Coin
			} else {
				candidate.Outputs = append(candidate.Outputs, changeOut)
			}
		}

		candidate.SortInputs()

		// the redeemer points at the script input by its position in
		// the sorted input list
		var redeemerIndex uint64
		if spendsScript {
			for idx, in := range candidate.Inputs {
				if in == baseInputs[0] {
					redeemerIndex = uint64(idx)
					break
				}
			}
		}

		bodyCBOR := EncodeBody(&candidate)
		if uint64(len(bodyCBOR)) > b.Params.MaxTxSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrTxTooLarge, len(bodyCBOR))
		}

		newFee := b.Params.FeeForBody(bodyCBOR, witnesses, redeemerLen)
		if newFee <= fee {
			return &Unsigned{
				Body:          candidate,
				BodyCBOR:      bodyCBOR,
				Hash:          HashBody(bodyCBOR),
				Signers:       signers,
				FeePayer:      b.WalletKey,
				RedeemerIndex: redeemerIndex,
			}, nil
		}
		fee = newFee
	}
	return nil, fmt.Errorf("%w: fee did not settle after %d rounds", ErrFeeEstimationFailed, maxFeeIterations)
}

func outPoints(utxos []UTxO) []OutPoint {
	out := make([]OutPoint, len(utxos))
	for i, u := range utxos {
		out[i] = u.OutPoint
	}
	return out
}

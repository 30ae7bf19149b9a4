package tx

// ProtocolParams are the ledger parameters the builder needs. Values
// come from configuration or a chain query; the defaults match current
// mainnet.
type ProtocolParams struct {
	// MinFeeA is the per-byte fee coefficient, MinFeeB the constant term.
	MinFeeA uint64
	MinFeeB uint64

	// CoinsPerUTxOByte drives the minimum coin an output must carry.
	CoinsPerUTxOByte uint64

	// MaxTxSize is the hard transaction size limit in bytes.
	MaxTxSize uint64
}

// DefaultProtocolParams returns current mainnet values.
func DefaultProtocolParams() ProtocolParams {
	return ProtocolParams{
		MinFeeA:          44,
		MinFeeB:          155_381,
		CoinsPerUTxOByte: 4_310,
		MaxTxSize:        16_384,
	}
}

// witnessOverhead is the encoded size of one vkey witness: 32-byte key,
// 64-byte signature, array and head bytes.
const witnessOverhead = 102

// txWrapperOverhead covers the outer transaction array, the witness set
// map head, validity flag and metadata slot.
const txWrapperOverhead = 16

// Fee computes the linear fee for a transaction of size bytes.
func (p ProtocolParams) Fee(size uint64) uint64 {
	return p.MinFeeA*size + p.MinFeeB
}

// FeeForBody estimates the fee for a body once witnesses for nWitnesses
// signers and an optional redeemer are attached.
func (p ProtocolParams) FeeForBody(bodyCBOR []byte, nWitnesses int, redeemerLen int) uint64 {
	size := uint64(len(bodyCBOR)) + uint64(nWitnesses)*witnessOverhead + txWrapperOverhead
	if redeemerLen > 0 {
		// redeemer entry plus ex-unit claim
		size += uint64(redeemerLen) + 24
	}
	return p.Fee(size)
}

// MinUTxOCoin returns the minimum coin an output must hold, derived from
// its encoded size.
func (p ProtocolParams) MinUTxOCoin(o *TxOutput) uint64 {
	var probe TxBody
	probe.Outputs = []TxOutput{*o}
	// constant 160 covers the input-side overhead the ledger adds
	size := uint64(len(EncodeBody(&probe))) + 160
	return p.CoinsPerUTxOByte * size
}

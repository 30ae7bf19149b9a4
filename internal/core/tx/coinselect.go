package tx

import "sort"

// SelectCoins picks wallet UTxOs covering target using largest-first
// selection: candidates are sorted by coin descending and taken until
// the running total covers target in every dimension. Deterministic for
// a given candidate set; ties break on outpoint order.
func SelectCoins(candidates []UTxO, target Value) ([]UTxO, Value, error) {
	if len(candidates) == 0 {
		return nil, Value{}, ErrNoWalletUTxOs
	}
	sorted := append([]UTxO(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].Output.Value.Coin, sorted[j].Output.Value.Coin
		if a != b {
			return a > b
		}
		return sorted[i].OutPoint.Less(sorted[j].OutPoint)
	})

	var (
		picked []UTxO
		total  Value
	)
	for _, u := range sorted {
		picked = append(picked, u)
		total = total.Add(u.Output.Value)
		if total.Covers(target) {
			change, _ := total.Sub(target)
			return picked, change, nil
		}
	}
	return nil, Value{}, &InsufficientFundsError{Need: target, Have: total}
}

// FilterSpendable drops UTxOs the wallet must never consume as plain
// funding: anything carrying an inline datum or a reference script, and
// anything in exclude (the contract state input is the usual entry).
func FilterSpendable(utxos []UTxO, exclude map[OutPoint]bool) []UTxO {
	var out []UTxO
	for _, u := range utxos {
		if exclude[u.OutPoint] {
			continue
		}
		if len(u.Output.Datum) > 0 || len(u.Output.Script) > 0 {
			continue
		}
		out = append(out, u)
	}
	return out
}

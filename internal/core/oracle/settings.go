package oracle

import "fmt"

// ValidateSettings checks a Settings value for internal consistency.
// Used both for genesis deployment and before applying an EditSettings
// action; a settings update that fails here is an illegal transition.
func ValidateSettings(set Settings) error {
	if set.UpdatedNodesPct == 0 || set.UpdatedNodesPct > FactorResolution {
		return fmt.Errorf("%w: updated nodes percentage %d out of (0, %d]",
			ErrInvalidSettings, set.UpdatedNodesPct, FactorResolution)
	}
	if set.AggregateChangePct > FactorResolution {
		return fmt.Errorf("%w: aggregate change percentage %d exceeds %d",
			ErrInvalidSettings, set.AggregateChangePct, FactorResolution)
	}
	if set.DivergencePct > FactorResolution {
		return fmt.Errorf("%w: divergence percentage %d exceeds %d",
			ErrInvalidSettings, set.DivergencePct, FactorResolution)
	}
	if set.IQRMultiplier == 0 {
		return fmt.Errorf("%w: IQR multiplier must be at least 1", ErrInvalidSettings)
	}
	if set.NodeExpiry <= 0 {
		return fmt.Errorf("%w: node expiry %d must be positive", ErrInvalidSettings, set.NodeExpiry)
	}
	if set.AggregateWindow <= 0 {
		return fmt.Errorf("%w: aggregate window %d must be positive", ErrInvalidSettings, set.AggregateWindow)
	}
	if len(set.Platform.Signers) == 0 {
		return fmt.Errorf("%w: platform signer set is empty", ErrInvalidSettings)
	}
	seen := make(map[KeyHash]struct{}, len(set.Platform.Signers))
	for _, pkh := range set.Platform.Signers {
		if _, dup := seen[pkh]; dup {
			return fmt.Errorf("%w: duplicate platform signer %s", ErrInvalidSettings, pkh)
		}
		seen[pkh] = struct{}{}
	}
	if set.Platform.Threshold < 1 || set.Platform.Threshold > len(set.Platform.Signers) {
		return fmt.Errorf("%w: threshold %d out of [1, %d]",
			ErrInvalidSettings, set.Platform.Threshold, len(set.Platform.Signers))
	}
	return nil
}

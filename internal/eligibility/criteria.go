package eligibility

import (
	"fmt"

	"github.com/shopspring/decimal"

	"clmm-eligibility/internal/domain"
)

// Criteria are the reward-program thresholds. A threshold of zero
// disables its criterion.
type Criteria struct {
	// MinBalance is the minimum target-mint balance, in UI units.
	MinBalance decimal.Decimal
	// MinLiquidity is the minimum approximate total liquidity.
	MinLiquidity decimal.Decimal
}

// Evaluate applies the thresholds to a scan. A wallet qualifies by
// holding enough of the target token or by providing enough liquidity to
// the target pool; either criterion alone is sufficient.
func (c Criteria) Evaluate(res *domain.ScanResult) domain.EligibilityStatus {
	var reasons []string
	eligible := false

	if c.MinBalance.IsPositive() {
		if res.TokenBalance.GreaterThanOrEqual(c.MinBalance) {
			eligible = true
			reasons = append(reasons, fmt.Sprintf("token balance %s >= %s", res.TokenBalance, c.MinBalance))
		} else {
			reasons = append(reasons, fmt.Sprintf("token balance %s < %s", res.TokenBalance, c.MinBalance))
		}
	}

	if c.MinLiquidity.IsPositive() {
		if res.TotalLiquidity.GreaterThanOrEqual(c.MinLiquidity) {
			eligible = true
			reasons = append(reasons, fmt.Sprintf("pool liquidity %s >= %s (%d positions)",
				res.TotalLiquidity, c.MinLiquidity, len(res.Positions)))
		} else {
			reasons = append(reasons, fmt.Sprintf("pool liquidity %s < %s", res.TotalLiquidity, c.MinLiquidity))
		}
	}

	return domain.EligibilityStatus{Eligible: eligible, Reasons: reasons}
}

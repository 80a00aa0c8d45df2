package closeout

import (
	"github.com/shopspring/decimal"

	"github.com/fastprodman/survivor/internal/domain"
)

// Split divides total between n ranked winners according to schema. Shares
// are floored; the remainder is left undistributed, so the sum never
// exceeds total. The result always has n elements.
func Split(schema domain.PayoutSchema, total int64, n int) []int64 {
	if n <= 0 {
		return nil
	}

	shares := make([]int64, n)
	if total <= 0 {
		return shares
	}

	switch schema.Kind {
	case domain.PayoutWinnerTakesAll:
		shares[0] = total

	case domain.PayoutTable:
		basis := decimal.NewFromInt(total)
		for i := 0; i < n && i < len(schema.Splits); i++ {
			shares[i] = basis.Mul(schema.Splits[i]).Floor().IntPart()
		}

	default:
		each := total / int64(n)
		for i := range shares {
			shares[i] = each
		}
	}

	return shares
}

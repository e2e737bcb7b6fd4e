package service

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// normalizeValue maps driver-specific column values onto the scalar set
// rows carry: string, number, bool, nil or time.Time. Exact decimals are
// converted to float64 so charts can plot them.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool, int64, float64, time.Time:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int16:
		return int64(t)
	case int8:
		return int64(t)
	case uint32:
		return int64(t)
	case float32:
		return float64(t)
	case []byte:
		s := string(t)
		if d, err := decimal.NewFromString(s); err == nil {
			return d.InexactFloat64()
		}
		return s
	case *big.Rat:
		if t == nil {
			return nil
		}
		d, err := decimal.NewFromString(t.FloatString(9))
		if err != nil {
			return t.FloatString(9)
		}
		return d.InexactFloat64()
	case decimal.Decimal:
		return t.InexactFloat64()
	case pgtype.Numeric:
		if !t.Valid {
			return nil
		}
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(t).String()
	case fmt.Stringer:
		return t.String()
	default:
		return t
	}
}

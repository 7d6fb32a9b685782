package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Price is an exact decimal amount used for unit prices and stock valuation.
// It is stored as BSON Decimal128.
type Price struct {
	value decimal.Decimal
}

// ZeroPrice is the zero amount
var ZeroPrice = Price{}

// NewPrice parses a decimal string such as "12.50"
func NewPrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("invalid price %q: %w", s, err)
	}
	if d.IsNegative() {
		return Price{}, fmt.Errorf("invalid price %q: must not be negative", s)
	}
	return Price{value: d}, nil
}

// MustPrice is NewPrice that panics on error. For tests and constants.
func MustPrice(s string) Price {
	p, err := NewPrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PriceFromDecimal wraps an existing decimal
func PriceFromDecimal(d decimal.Decimal) Price {
	return Price{value: d}
}

// Decimal returns the underlying decimal value
func (p Price) Decimal() decimal.Decimal {
	return p.value
}

// Times returns p multiplied by a quantity
func (p Price) Times(quantity int64) Price {
	return Price{value: p.value.Mul(decimal.NewFromInt(quantity))}
}

// Equal compares amounts regardless of scale
func (p Price) Equal(other Price) bool {
	return p.value.Equal(other.value)
}

// IsZero reports whether the amount is zero
func (p Price) IsZero() bool {
	return p.value.IsZero()
}

// String renders the amount with two decimal places
func (p Price) String() string {
	return p.value.StringFixed(2)
}

// MarshalJSON renders the amount as a JSON string
func (p Price) MarshalJSON() ([]byte, error) {
	return p.value.MarshalJSON()
}

// UnmarshalJSON accepts a JSON string or number
func (p *Price) UnmarshalJSON(data []byte) error {
	return p.value.UnmarshalJSON(data)
}

// MarshalBSONValue implements bson.ValueMarshaler
func (p Price) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d128, err := primitive.ParseDecimal128(p.value.String())
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode price %s: %w", p.value.String(), err)
	}
	return bson.MarshalValue(d128)
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler. Decimal128 is the
// stored form; doubles, integers and strings are accepted for hand-loaded data.
func (p *Price) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}

	switch t {
	case bsontype.Decimal128:
		d, err := decimal.NewFromString(raw.Decimal128().String())
		if err != nil {
			return fmt.Errorf("failed to decode price: %w", err)
		}
		p.value = d
	case bsontype.Double:
		p.value = decimal.NewFromFloat(raw.Double())
	case bsontype.Int32:
		p.value = decimal.NewFromInt32(raw.Int32())
	case bsontype.Int64:
		p.value = decimal.NewFromInt(raw.Int64())
	case bsontype.String:
		d, err := decimal.NewFromString(raw.StringValue())
		if err != nil {
			return fmt.Errorf("failed to decode price: %w", err)
		}
		p.value = d
	case bsontype.Null, bsontype.Undefined:
		p.value = decimal.Zero
	default:
		return fmt.Errorf("cannot decode price from BSON %s", t)
	}
	return nil
}

// Package pricing converts between bags and kilograms and prices a cart or return line.
package pricing

import "github.com/shopspring/decimal"

const (
	BagSizeKg = 25

	// MaxLineBags bounds a single cart or return line and a product's stock level.
	MaxLineBags = 1_000_000
)

var (
	bagSize = decimal.NewFromInt(BagSizeKg)

	MaxLineKg = decimal.NewFromInt(BagSizeKg * MaxLineBags)
)

func ToKg(bags int, looseKg decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(bags)).Mul(bagSize).Add(looseKg)
}

// ToBagsRoundedUp converts kilograms to whole bags, rounding any remainder up.
func ToBagsRoundedUp(kg decimal.Decimal) int {
	return int(kg.Div(bagSize).Ceil().IntPart())
}

// PerKg spreads a per-bag amount over the bag's kilograms.
func PerKg(perBag decimal.Decimal) decimal.Decimal {
	return perBag.Div(bagSize)
}

// ResolveLoosePrice returns the explicit loose price when given, else the bag price spread per kg.
func ResolveLoosePrice(explicit *decimal.Decimal, pricePerBag decimal.Decimal) decimal.Decimal {
	if explicit != nil {
		return *explicit
	}
	return PerKg(pricePerBag)
}

func LineAmount(bags int, pricePerBag, looseKg, pricePerKgLoose decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(bags)).Mul(pricePerBag).Add(looseKg.Mul(pricePerKgLoose))
}

func LineProfit(bags int, pricePerBag, costPerBag, looseKg, pricePerKgLoose, costPerKgLoose decimal.Decimal) decimal.Decimal {
	bagMargin := decimal.NewFromInt(int64(bags)).Mul(pricePerBag.Sub(costPerBag))
	looseMargin := looseKg.Mul(pricePerKgLoose.Sub(costPerKgLoose))
	return bagMargin.Add(looseMargin)
}

// Line holds everything needed to replay a priced line without looking at the product again.
type Line struct {
	Bags            int
	LooseKg         decimal.Decimal
	PricePerBag     decimal.Decimal
	PricePerKgLoose decimal.Decimal
	CostPerBag      decimal.Decimal
}

func (l Line) Kg() decimal.Decimal {
	return ToKg(l.Bags, l.LooseKg)
}

func (l Line) Amount() decimal.Decimal {
	return LineAmount(l.Bags, l.PricePerBag, l.LooseKg, l.PricePerKgLoose)
}

// Profit costs loose kilograms at the bag cost spread per kg.
func (l Line) Profit() decimal.Decimal {
	return LineProfit(l.Bags, l.PricePerBag, l.CostPerBag, l.LooseKg, l.PricePerKgLoose, PerKg(l.CostPerBag))
}

// RemainingBags is the stock after taking kg out of stockBags, rounded up to whole bags.
func RemainingBags(stockBags int, kg decimal.Decimal) int {
	return ToBagsRoundedUp(ToKg(stockBags, decimal.Zero).Sub(kg))
}

// RestockedBags is the stock after putting kg back into stockBags, rounded up to whole bags.
func RestockedBags(stockBags int, kg decimal.Decimal) int {
	return ToBagsRoundedUp(ToKg(stockBags, decimal.Zero).Add(kg))
}

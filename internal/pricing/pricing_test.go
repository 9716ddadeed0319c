package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestToKgAndBack(t *testing.T) {
	cases := []struct {
		name  string
		bags  int
		loose string
		kg    string
		up    int
	}{
		{name: "whole bags", bags: 2, loose: "0", kg: "50", up: 2},
		{name: "loose only", bags: 0, loose: "10", kg: "10", up: 1},
		{name: "mixed", bags: 1, loose: "0.5", kg: "25.5", up: 2},
		{name: "empty", bags: 0, loose: "0", kg: "0", up: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kg := ToKg(tc.bags, d(tc.loose))
			assert.True(t, kg.Equal(d(tc.kg)), "kg = %s", kg)
			assert.Equal(t, tc.up, ToBagsRoundedUp(kg))
		})
	}
}

func TestLineAmountAndProfit(t *testing.T) {
	line := Line{
		Bags:            2,
		LooseKg:         d("10"),
		PricePerBag:     d("1000"),
		PricePerKgLoose: d("45"),
		CostPerBag:      d("750"),
	}

	assert.True(t, line.Kg().Equal(d("60")))
	assert.True(t, line.Amount().Equal(d("2450")), "amount = %s", line.Amount())
	// 2*(1000-750) + 10*(45-30)
	assert.True(t, line.Profit().Equal(d("650")), "profit = %s", line.Profit())
}

func TestResolveLoosePriceDefaultsToBagPricePerKg(t *testing.T) {
	assert.True(t, ResolveLoosePrice(nil, d("1000")).Equal(d("40")))

	explicit := d("45")
	assert.True(t, ResolveLoosePrice(&explicit, d("1000")).Equal(d("45")))
}

func TestRemainingBagsRoundsUp(t *testing.T) {
	assert.Equal(t, 8, RemainingBags(10, d("50")))
	// 250 - 10 = 240 kg is 9.6 bags.
	assert.Equal(t, 10, RemainingBags(10, d("10")))
	assert.Equal(t, 0, RemainingBags(1, d("25")))
}

func TestRestockedBagsRoundsUp(t *testing.T) {
	assert.Equal(t, 9, RestockedBags(8, d("25")))
	assert.Equal(t, 9, RestockedBags(8, d("0.5")))
}

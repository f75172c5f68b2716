package finance

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

type KPIInput struct {
	Revenue decimal.Decimal // sales revenue in the period
	COGS    decimal.Decimal // cost of the goods sold in the period
	Income  decimal.Decimal // ledger income
	Expense decimal.Decimal // ledger expense

	OpeningInventoryValue decimal.Decimal
	ClosingInventoryValue decimal.Decimal
}

type KPIs struct {
	Revenue               decimal.Decimal `json:"revenue"`
	COGS                  decimal.Decimal `json:"cogs"`
	GrossProfit           decimal.Decimal `json:"gross_profit"`
	GrossMarginPct        decimal.Decimal `json:"gross_margin_pct"`
	NetProfit             decimal.Decimal `json:"net_profit"`
	ProfitMarginPct       decimal.Decimal `json:"profit_margin_pct"`
	ROIPct                decimal.Decimal `json:"roi_pct"`
	AverageInventoryValue decimal.Decimal `json:"average_inventory_value"`
	InventoryTurnover     decimal.Decimal `json:"inventory_turnover"`
}

// ComputeKPIs derives margins, ROI and turnover. Any ratio whose denominator is
// zero is reported as zero. Percentages and turnover are rounded to 2 places.
func ComputeKPIs(in KPIInput) KPIs {
	k := KPIs{
		Revenue:     in.Revenue,
		COGS:        in.COGS,
		GrossProfit: in.Revenue.Sub(in.COGS),
		NetProfit:   in.Income.Sub(in.Expense),
	}
	k.GrossMarginPct = percent(k.GrossProfit, in.Revenue)
	k.ProfitMarginPct = percent(k.NetProfit, in.Revenue)
	k.ROIPct = percent(k.NetProfit, in.Expense)

	k.AverageInventoryValue = in.OpeningInventoryValue.Add(in.ClosingInventoryValue).Div(decimal.NewFromInt(2)).Round(2)
	k.InventoryTurnover = ratio(in.COGS, k.AverageInventoryValue)
	return k
}

func percent(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Mul(hundred).Div(den).Round(2)
}

func ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den).Round(2)
}

package rates

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// Table maps a currency code to its USD rate: 1 USD = rate units of the
// currency. Lookup is a pure function of the table; nothing here calls
// out to a rate service.
type Table struct {
	rates map[string]decimal.Decimal
}

type rateFile struct {
	Rates map[string]string `yaml:"rates"`
}

// Defaults used when no rate file is configured.
var defaultRates = map[string]string{
	"USD": "1",
	"NGN": "1550",
	"KES": "129",
	"GHS": "15.6",
	"ZAR": "17.8",
}

// Load builds a Table from a YAML file of the form
//
//	rates:
//	  NGN: "1550"
//	  KES: "129"
//
// An empty path returns the built-in default table.
func Load(path string) (*Table, error) {
	src := defaultRates
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("rates: read %s: %w", path, err)
		}
		var f rateFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("rates: parse %s: %w", path, err)
		}
		if len(f.Rates) == 0 {
			return nil, fmt.Errorf("rates: %s contains no rates", path)
		}
		src = f.Rates
	}
	t := &Table{rates: make(map[string]decimal.Decimal, len(src))}
	for code, v := range src {
		d, err := decimal.NewFromString(v)
		if err != nil || d.Sign() <= 0 {
			return nil, fmt.Errorf("rates: invalid rate %q for %s", v, code)
		}
		t.rates[strings.ToUpper(code)] = d
	}
	t.rates["USD"] = decimal.NewFromInt(1)
	return t, nil
}

// Rate returns how many units of currency one USD buys.
func (t *Table) Rate(currency string) (decimal.Decimal, error) {
	r, ok := t.rates[strings.ToUpper(currency)]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("rates: unknown currency %q", currency)
	}
	return r, nil
}

// ToUSDCents converts an amount in a currency's minor units to USD cents,
// rounded to the nearest cent.
func (t *Table) ToUSDCents(minor int64, currency string) (int64, error) {
	r, err := t.Rate(currency)
	if err != nil {
		return 0, err
	}
	usd := decimal.NewFromInt(minor).Div(r)
	return usd.Round(0).IntPart(), nil
}

// FromUSDCents converts USD cents to a currency's minor units.
func (t *Table) FromUSDCents(usdCents int64, currency string) (int64, decimal.Decimal, error) {
	r, err := t.Rate(currency)
	if err != nil {
		return 0, decimal.Decimal{}, err
	}
	local := decimal.NewFromInt(usdCents).Mul(r)
	return local.Round(0).IntPart(), r, nil
}

// Package convert parses exchange payload fields into typed values.
package convert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Parser collects field-level parse errors so callers can decode a row of
// positional values without checking every field. The first error wins and
// short-circuits the remaining conversions.
type Parser struct {
	err error
}

func (p *Parser) Decimal(field, raw string) decimal.Decimal {
	if p.err != nil {
		return decimal.Decimal{}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		p.err = fmt.Errorf("parse %s %q: %w", field, raw, err)
		return decimal.Decimal{}
	}
	return d
}

func (p *Parser) Int(field, raw string) int64 {
	if p.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		p.err = fmt.Errorf("parse %s %q: %w", field, raw, err)
		return 0
	}
	return n
}

func (p *Parser) Err() error {
	return p.err
}

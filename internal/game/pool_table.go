package game

import (
	"fmt"
	"math"
)

// Table is the playable rectangle. The origin is the bottom-left corner:
// x runs 0..Width and y runs 0..Height.
type Table struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewTable validates the dimensions. Zero-area and non-finite tables are rejected.
func NewTable(width, height float64) (Table, error) {
	t := Table{Width: width, Height: height}
	if err := t.validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// NewStandardTable returns the default 800x400 table.
func NewStandardTable() Table {
	return Table{Width: DefaultTableWidth, Height: DefaultTableHeight}
}

func (t Table) validate() error {
	if !isFinite(t.Width) || !isFinite(t.Height) || t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("%w: dimensions %vx%v must be positive", ErrInvalidTable, t.Width, t.Height)
	}
	return nil
}

// MaxRadius is the exclusive upper bound on ball radius for this table.
// Larger balls could touch opposite walls at once and resolution would be ambiguous.
func (t Table) MaxRadius() float64 {
	return math.Min(t.Width, t.Height) / 2
}

// Contains reports whether the ball centre satisfies r <= x <= W-r and r <= y <= H-r.
func (t Table) Contains(b Ball) bool {
	r := b.Radius
	return b.Position.X >= r && b.Position.X <= t.Width-r &&
		b.Position.Y >= r && b.Position.Y <= t.Height-r
}

// internal/dex/model/venue.go
package model

import "fmt"

// Venue is where a trade executes.
type Venue int

const (
	// VenueInternal is the factory's bonding-curve market, before launch.
	VenueInternal Venue = iota + 1
	// VenueExternal is the AMM router, after launch.
	VenueExternal
)

func (v Venue) String() string {
	switch v {
	case VenueInternal:
		return "internal"
	case VenueExternal:
		return "external"
	default:
		return fmt.Sprintf("venue(%d)", int(v))
	}
}

// Side of a trade relative to the token.
type Side int

const (
	SideBuy Side = iota + 1
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

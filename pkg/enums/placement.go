package enums

import "fmt"

// Placement decides where a classified resource is surfaced.
type Placement string

const (
	// PlacementLanding resources appear on the public landing page.
	PlacementLanding Placement = "landing"
	// PlacementAcademic resources live inside the college/department/year/semester hierarchy.
	PlacementAcademic Placement = "academic"
)

var validPlacements = []Placement{PlacementLanding, PlacementAcademic}

func (p Placement) String() string {
	return string(p)
}

func (p Placement) IsValid() bool {
	for _, candidate := range validPlacements {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParsePlacement(value string) (Placement, error) {
	for _, candidate := range validPlacements {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid placement %q", value)
}

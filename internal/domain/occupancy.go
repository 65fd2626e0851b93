package domain

// DefaultCapacity is used when the tenant has no gym record.
const DefaultCapacity = 100

const (
	redThreshold    = 70.0
	yellowThreshold = 30.0
)

// OccupancyStatus is the traffic-light classification of a gym's load.
type OccupancyStatus string

const (
	OccupancyGreen  OccupancyStatus = "green"
	OccupancyYellow OccupancyStatus = "yellow"
	OccupancyRed    OccupancyStatus = "red"
)

func (s OccupancyStatus) MarshalText() ([]byte, error) { return []byte(s), nil }

// OccupancySnapshot is the raw input of the occupancy calculation.
type OccupancySnapshot struct {
	Open     int
	Capacity int
}

// Occupancy is the derived headcount view of a tenant.
type Occupancy struct {
	Current    int
	Capacity   int
	Percentage float64
	Status     OccupancyStatus
}

// ClassifyOccupancy maps a load percentage to a status band. Bands are evaluated
// red first, then yellow; the upper bound of each band is inclusive.
func ClassifyOccupancy(percentage float64) OccupancyStatus {
	switch {
	case percentage > redThreshold:
		return OccupancyRed
	case percentage > yellowThreshold:
		return OccupancyYellow
	default:
		return OccupancyGreen
	}
}

// NewOccupancy derives the occupancy view. The percentage is not clamped, so an
// over-capacity gym reports more than 100.
func NewOccupancy(current, capacity int) Occupancy {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	percentage := float64(current) / float64(capacity) * 100
	return Occupancy{
		Current:    current,
		Capacity:   capacity,
		Percentage: percentage,
		Status:     ClassifyOccupancy(percentage),
	}
}

package api

// RouteRequest is the JSON body for POST /api/v1/route.
type RouteRequest struct {
	From *int64 `json:"from"`
	To   *int64 `json:"to"`
}

// RouteResponse is the JSON response for a successful route query.
// Path lists every city on the route, both endpoints included.
type RouteResponse struct {
	From     int64   `json:"from"`
	To       int64   `json:"to"`
	Distance int64   `json:"distance"`
	Path     []int64 `json:"path"`
}

// RouteTableResponse is the JSON response for GET /api/v1/routes/{from}.
type RouteTableResponse struct {
	From         int64             `json:"from"`
	Destinations []DestinationJSON `json:"destinations"`
}

// DestinationJSON is one row of a route table. Distance and Path are
// omitted for unreachable cities.
type DestinationJSON struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Reachable bool    `json:"reachable"`
	Distance  *int64  `json:"distance,omitempty"`
	Path      []int64 `json:"path,omitempty"`
}

// CityRequest is the JSON body for creating or updating a city.
type CityRequest struct {
	ID       *int64   `json:"id"`
	Name     string   `json:"name"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Distance *int64   `json:"distance"`
	ToID     *int64   `json:"to_id"`
}

// DistanceRequest is the JSON body for POST /api/v1/cities/{id}/distances.
type DistanceRequest struct {
	ToID     *int64 `json:"to_id"`
	Distance *int64 `json:"distance"`
}

// CityJSON represents a city and its outgoing roads.
type CityJSON struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Lat   float64    `json:"lat"`
	Lng   float64    `json:"lng"`
	Roads []RoadJSON `json:"roads"`
}

// RoadJSON is a directed road to another city.
type RoadJSON struct {
	To       int64 `json:"to"`
	Distance int64 `json:"distance"`
}

// NearestResponse is the JSON response for GET /api/v1/cities/nearest.
type NearestResponse struct {
	City           CityJSON `json:"city"`
	DistanceMeters float64  `json:"distance_meters"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	Cities           uint32 `json:"cities"`
	Roads            uint32 `json:"roads"`
	Components       int    `json:"components"`
	LargestComponent uint32 `json:"largest_component"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
	Cities int    `json:"cities"`
}

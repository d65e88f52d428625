package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"

	"city_router/pkg/catalog"
	"city_router/pkg/graph"
	"city_router/pkg/routing"
)

const maxBodyBytes = 4096

var errInvalidRequest = errors.New("invalid request")

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	router routing.Router
	cities catalog.Store
	logger *slog.Logger
}

// NewHandlers creates handlers with the given router and catalog.
func NewHandlers(router routing.Router, cities catalog.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		router: router,
		cities: cities,
		logger: logger,
	}
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "")
		return
	}
	if req.From == nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "from")
		return
	}
	if req.To == nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "to")
		return
	}

	dest, err := h.router.Route(r.Context(), *req.From, *req.To)
	if err != nil {
		h.writeRoutingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RouteResponse{
		From:     *req.From,
		To:       dest.ID,
		Distance: dest.Distance,
		Path:     fullPath(dest),
	})
}

// HandleRoutesFrom handles GET /api/v1/routes/{from}.
func (h *Handlers) HandleRoutesFrom(w http.ResponseWriter, r *http.Request) {
	from, ok := pathID(w, r, "from")
	if !ok {
		return
	}

	table, err := h.router.RoutesFrom(r.Context(), from)
	if err != nil {
		h.writeRoutingError(w, r, err)
		return
	}

	resp := RouteTableResponse{
		From:         table.SourceID,
		Destinations: make([]DestinationJSON, len(table.Destinations)),
	}
	for i := range table.Destinations {
		d := &table.Destinations[i]
		row := DestinationJSON{ID: d.ID, Name: d.Name, Reachable: d.Reachable}
		if d.Reachable {
			dist := d.Distance
			row.Distance = &dist
			row.Path = fullPath(d)
		}
		resp.Destinations[i] = row
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleListCities handles GET /api/v1/cities.
func (h *Handlers) HandleListCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.cities.ListCities(r.Context())
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	resp := make([]CityJSON, len(cities))
	for i, c := range cities {
		resp[i] = toCityJSON(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetCity handles GET /api/v1/cities/{id}.
func (h *Handlers) HandleGetCity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.cities.GetCity(r.Context(), id)
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCityJSON(c))
}

// HandleCreateCity handles POST /api/v1/cities.
func (h *Handlers) HandleCreateCity(w http.ResponseWriter, r *http.Request) {
	var req CityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "")
		return
	}
	if field, err := validateCityCoords(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_coordinates", field)
		return
	}

	c, err := h.cities.AddCity(r.Context(), toCityInput(req))
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "city added", "id", c.ID, "request_id", requestID(r.Context()))
	writeJSON(w, http.StatusCreated, toCityJSON(c))
}

// HandleUpdateCity handles PUT /api/v1/cities/{id}.
func (h *Handlers) HandleUpdateCity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req CityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "")
		return
	}
	if req.ID != nil && *req.ID != id {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "id")
		return
	}
	if field, err := validateCityCoords(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_coordinates", field)
		return
	}
	req.ID = &id

	c, err := h.cities.UpdateCity(r.Context(), toCityInput(req))
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCityJSON(c))
}

// HandleDeleteCity handles DELETE /api/v1/cities/{id}.
func (h *Handlers) HandleDeleteCity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.cities.RemoveCity(r.Context(), id); err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "city removed", "id", id, "request_id", requestID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddDistance handles POST /api/v1/cities/{id}/distances.
func (h *Handlers) HandleAddDistance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req DistanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "")
		return
	}
	if req.ToID == nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "to_id")
		return
	}
	if req.Distance == nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "distance")
		return
	}

	if err := h.cities.AddDistance(r.Context(), id, *req.ToID, *req.Distance); err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	c, err := h.cities.GetCity(r.Context(), id)
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCityJSON(c))
}

// HandleNearestCity handles GET /api/v1/cities/nearest?lat=..&lng=..
func (h *Handlers) HandleNearestCity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || !validLat(lat) {
		writeError(w, r, http.StatusBadRequest, "invalid_coordinates", "lat")
		return
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil || !validLng(lng) {
		writeError(w, r, http.StatusBadRequest, "invalid_coordinates", "lng")
		return
	}

	cities, err := h.cities.ListCities(r.Context())
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	res, err := catalog.NewSnapper(cities).Nearest(lat, lng)
	if err != nil {
		if errors.Is(err, catalog.ErrPointTooFar) {
			writeError(w, r, http.StatusUnprocessableEntity, "point_too_far_from_city", "")
			return
		}
		h.writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NearestResponse{
		City:           toCityJSON(res.City),
		DistanceMeters: math.Round(res.Dist*10) / 10,
	})
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := h.cities.CountCities(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "health check failed", "error", err, "request_id", requestID(r.Context()))
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Cities: n})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.router.Stats(r.Context())
	if err != nil {
		h.writeRoutingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Cities:           s.Cities,
		Roads:            s.Roads,
		Components:       s.Components,
		LargestComponent: s.LargestComponent,
	})
}

func (h *Handlers) writeRoutingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, routing.ErrSourceNotFound), errors.Is(err, routing.ErrDestinationNotFound):
		writeError(w, r, http.StatusNotFound, "city_not_found", "")
	case errors.Is(err, routing.ErrNoRoute):
		writeError(w, r, http.StatusNotFound, "no_route_found", "")
	case errors.Is(err, graph.ErrEmptyNetwork):
		writeError(w, r, http.StatusNotFound, "city_not_found", "")
	case errors.Is(err, graph.ErrDuplicateNode),
		errors.Is(err, graph.ErrUnresolvedDestination),
		errors.Is(err, graph.ErrDataIntegrity):
		h.logger.ErrorContext(r.Context(), "inconsistent city network", "error", err, "request_id", requestID(r.Context()))
		writeError(w, r, http.StatusConflict, "inconsistent_network", "")
	default:
		h.writeCatalogError(w, r, err)
	}
}

func (h *Handlers) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrCityNotFound):
		writeError(w, r, http.StatusNotFound, "city_not_found", "")
	case errors.Is(err, catalog.ErrMandatoryAttribute):
		writeError(w, r, http.StatusBadRequest, "mandatory_attribute", "")
	case errors.Is(err, catalog.ErrInvalidDistance):
		writeError(w, r, http.StatusBadRequest, "invalid_distance", "distance")
	case errors.Is(err, catalog.ErrDuplicateCity):
		writeError(w, r, http.StatusConflict, "duplicate_city", "id")
	case errors.Is(err, catalog.ErrNonExistingCity):
		writeError(w, r, http.StatusUnprocessableEntity, "non_existing_city", "to_id")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, "request_timeout", "")
	default:
		h.writeInternalError(w, r, err)
	}
}

func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "request failed", "error", err, "request_id", requestID(r.Context()))
	writeError(w, r, http.StatusInternalServerError, "internal_error", "")
}

// fullPath appends the destination to its predecessor chain.
func fullPath(d *routing.Destination) []int64 {
	path := make([]int64, 0, len(d.Path)+1)
	path = append(path, d.Path...)
	return append(path, d.ID)
}

func toCityJSON(c graph.CityRecord) CityJSON {
	roads := make([]RoadJSON, len(c.Edges))
	for i, e := range c.Edges {
		roads[i] = RoadJSON{To: e.ToID, Distance: e.Weight}
	}
	return CityJSON{ID: c.ID, Name: c.Name, Lat: c.Lat, Lng: c.Lon, Roads: roads}
}

func toCityInput(req CityRequest) catalog.CityInput {
	return catalog.CityInput{
		ID:       req.ID,
		Name:     req.Name,
		Lat:      req.Lat,
		Lon:      req.Lng,
		Distance: req.Distance,
		ToID:     req.ToID,
	}
}

func validateCityCoords(req CityRequest) (string, error) {
	if req.Lat != nil && !validLat(*req.Lat) {
		return "lat", errors.New("latitude out of range")
	}
	if req.Lng != nil && !validLng(*req.Lng) {
		return "lng", errors.New("longitude out of range")
	}
	return "", nil
}

func validLat(v float64) bool {
	return !math.IsNaN(v) && v >= -90 && v <= 90
}

func validLng(v float64) bool {
	return !math.IsNaN(v) && v >= -180 && v <= 180
}

// pathID parses an int64 path value, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", name)
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return errInvalidRequest
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, field string) {
	writeJSON(w, status, ErrorResponse{Error: code, Field: field, RequestID: requestID(r.Context())})
}

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
	"github.com/sells-group/foodatlas-cli/internal/render"
	"github.com/sells-group/foodatlas-cli/internal/report"
	"github.com/sells-group/foodatlas-cli/internal/store"
)

// apiServer is the read-only HTTP surface over the store.
type apiServer struct {
	st       store.Store
	state    string
	renderer *render.Renderer
}

// newAPIRouter wires the API routes behind CORS.
func newAPIRouter(api *apiServer, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/healthz", api.handleHealthz)
	r.Get("/api/status", api.handleStatus)
	r.Get("/api/summary", api.handleSummary)
	r.Get("/api/counties", api.handleCounties)
	r.Get("/api/tracts.geojson", api.handleTractsGeoJSON)
	r.Get("/charts", api.handleCharts)
	r.Get("/maps/{figure}.png", api.handleMap)

	return r
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.st.Status(r.Context())
	if err != nil {
		s.serverError(w, "status", err)
		return
	}
	writeJSON(w, status)
}

func (s *apiServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	records, err := s.st.TractRecords(r.Context(), s.state)
	if err != nil {
		s.serverError(w, "summary", err)
		return
	}
	summary := atlas.Summarize(s.state, records, atlas.StatsFromRecords(records))
	writeJSON(w, summary)
}

func (s *apiServer) handleCounties(w http.ResponseWriter, r *http.Request) {
	counties, err := s.st.CountyStats(r.Context(), s.state)
	if err != nil {
		s.serverError(w, "counties", err)
		return
	}
	writeJSON(w, counties)
}

func (s *apiServer) handleTractsGeoJSON(w http.ResponseWriter, r *http.Request) {
	records, err := s.st.TractRecords(r.Context(), s.state)
	if err != nil {
		s.serverError(w, "tracts", err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(tractsFeatureCollection(records)); err != nil {
		zap.L().Error("api: encode tracts geojson", zap.Error(err))
	}
}

func (s *apiServer) handleCharts(w http.ResponseWriter, r *http.Request) {
	records, err := s.st.TractRecords(r.Context(), s.state)
	if err != nil {
		s.serverError(w, "charts", err)
		return
	}
	counties, err := s.st.CountyStats(r.Context(), s.state)
	if err != nil {
		s.serverError(w, "charts", err)
		return
	}
	summary := atlas.Summarize(s.state, records, atlas.StatsFromRecords(records))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderHTML(w, summary, counties); err != nil {
		zap.L().Error("api: render charts", zap.Error(err))
	}
}

func (s *apiServer) handleMap(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "figure")
	if !slices.Contains(render.Figures(), name) {
		http.Error(w, "unknown figure", http.StatusNotFound)
		return
	}

	records, err := s.st.TractRecords(r.Context(), s.state)
	if err != nil {
		s.serverError(w, "map", err)
		return
	}
	counties, err := s.st.CountyStats(r.Context(), s.state)
	if err != nil {
		s.serverError(w, "map", err)
		return
	}

	// Buffer the render so a failure can still return a status code.
	var buf bytes.Buffer
	if err := s.renderer.Encode(&buf, "png", name, records, counties); err != nil {
		s.serverError(w, "map", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func (s *apiServer) serverError(w http.ResponseWriter, op string, err error) {
	zap.L().Error("api: request failed", zap.String("op", op), zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

// tractsFeatureCollection converts joined records to GeoJSON, skipping
// tracts without stored geometry.
func tractsFeatureCollection(records []atlas.TractRecord) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{}
	for _, rec := range records {
		if rec.Geom == nil {
			continue
		}
		props := map[string]interface{}{
			"geoid":    rec.GEOID,
			"name":     rec.Name,
			"has_data": rec.HasData,
		}
		if rec.HasData {
			props["county"] = rec.County
			props["population"] = rec.Population
			props["low_access"] = rec.LowAccess
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         rec.GEOID,
			Geometry:   rec.Geom,
			Properties: props,
		})
	}
	return fc
}

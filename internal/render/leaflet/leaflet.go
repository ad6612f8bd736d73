// Package leaflet renders carpark map views as self-contained Leaflet HTML
// documents.
package leaflet

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"sort"

	"github.com/parkscout/parkscout/internal/carpark"
	"github.com/parkscout/parkscout/internal/render"
)

// Availability color thresholds, based on car lots when present, otherwise
// the sum across lot types.
const (
	greenThreshold  = 50
	orangeThreshold = 10
)

// Renderer emits a Leaflet HTML artifact. Implements render.Renderer.
type Renderer struct {
	// ZoomLevel is the initial map zoom (default: 14).
	ZoomLevel int
}

// NewRenderer creates a Leaflet renderer with default settings.
func NewRenderer() *Renderer {
	return &Renderer{ZoomLevel: 14}
}

// marker is the per-carpark payload handed to the embedded script.
type marker struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Color    string   `json:"color"`
	LotTypes []string `json:"lotTypes"`
	Lots     []lotRow `json:"lots"`

	// Nearest highlighting.
	Nearest    bool    `json:"nearest"`
	Rank       int     `json:"rank,omitempty"`
	DistanceKm float64 `json:"distanceKm,omitempty"`
}

type lotRow struct {
	Label     string `json:"label"`
	Available int    `json:"available"`
	Total     int    `json:"total"`
}

type templateData struct {
	Address  string
	Lat      float64
	Lon      float64
	Zoom     int
	Payload  template.JS
	Nearest  []carpark.RankedResult
	HasRanks bool
}

// Render writes the HTML artifact for the view.
func (r *Renderer) Render(w io.Writer, view render.MapView) error {
	zoom := r.ZoomLevel
	if zoom == 0 {
		zoom = 14
	}

	ranks := make(map[string]carpark.RankedResult, len(view.Nearest))
	for _, result := range view.Nearest {
		ranks[result.Record.ID] = result
	}

	markers := make([]marker, 0, len(view.Carparks))
	for _, record := range view.Carparks {
		if !record.HasCoordinate {
			continue
		}
		m := marker{
			ID:       record.ID,
			Name:     record.Name,
			Lat:      record.Coordinate.Lat,
			Lon:      record.Coordinate.Lon,
			Color:    availabilityColor(record),
			LotTypes: lotTypeCodes(record),
			Lots:     lotRows(record),
		}
		if ranked, ok := ranks[record.ID]; ok {
			m.Nearest = true
			m.Rank = ranked.Rank
			m.DistanceKm = ranked.DistanceKm
		}
		markers = append(markers, m)
	}

	payload, err := json.Marshal(markers)
	if err != nil {
		return fmt.Errorf("encoding markers: %w", err)
	}

	data := templateData{
		Address:  view.Address,
		Lat:      view.Destination.Lat,
		Lon:      view.Destination.Lon,
		Zoom:     zoom,
		Payload:  template.JS(payload), //nolint:gosec // payload is json.Marshal output
		Nearest:  view.Nearest,
		HasRanks: len(view.Nearest) > 0,
	}

	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("rendering map: %w", err)
	}
	return nil
}

// availabilityColor picks the marker color from car-lot availability when the
// carpark has car lots, otherwise from the total across lot types.
func availabilityColor(record carpark.Record) string {
	target := record.TotalAvailable()
	if car, ok := record.Lots[carpark.LotTypeCar]; ok {
		target = car.Available
	}

	switch {
	case target > greenThreshold:
		return "green"
	case target > orangeThreshold:
		return "orange"
	default:
		return "red"
	}
}

func lotTypeCodes(record carpark.Record) []string {
	codes := make([]string, 0, len(record.Lots))
	for lotType := range record.Lots {
		codes = append(codes, string(lotType))
	}
	sort.Strings(codes)
	return codes
}

func lotRows(record carpark.Record) []lotRow {
	rows := make([]lotRow, 0, len(record.Lots))
	for _, code := range lotTypeCodes(record) {
		availability := record.Lots[carpark.LotType(code)]
		rows = append(rows, lotRow{
			Label:     carpark.LotType(code).Label(),
			Available: availability.Available,
			Total:     availability.Total,
		})
	}
	return rows
}

var pageTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Nearest carparks{{if .Address}} near {{.Address}}{{end}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
  html, body, #map { height: 100%; margin: 0; }
  .legend {
    position: fixed; bottom: 20px; right: 10px; z-index: 1000;
    background: white; padding: 10px; border-radius: 5px;
    border: 2px solid grey; font: 12px sans-serif;
  }
  .legend i { width: 10px; height: 10px; display: inline-block; border-radius: 50%; }
</style>
</head>
<body>
<div id="map"></div>
<div class="legend">
  <b>Carpark availability</b><br>
  <i style="background:green"></i> more than 50 lots<br>
  <i style="background:orange"></i> 11&ndash;50 lots<br>
  <i style="background:red"></i> 10 lots or fewer
</div>
<script>
var map = L.map('map').setView([{{.Lat}}, {{.Lon}}], {{.Zoom}});
L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);

L.marker([{{.Lat}}, {{.Lon}}])
  .bindPopup('Destination{{if .Address}}: {{.Address}}{{end}}')
  .addTo(map);

var carparks = {{.Payload}};

var layers = {};
carparks.forEach(function (cp) {
  var popup = '<b>' + cp.id + '</b>' + (cp.name ? '<br>' + cp.name : '');
  cp.lots.forEach(function (lot) {
    popup += '<br>' + lot.label + ': ' + lot.available + ' / ' + lot.total;
  });
  if (cp.nearest) {
    popup += '<br><b>#' + cp.rank + '</b> at ' + cp.distanceKm.toFixed(2) + ' km';
  }

  var dot = L.circleMarker([cp.lat, cp.lon], {
    radius: cp.nearest ? 9 : 6,
    color: cp.nearest ? 'darkblue' : cp.color,
    fillColor: cp.color,
    fillOpacity: 0.8
  }).bindPopup(popup).bindTooltip(cp.id);

  cp.lotTypes.forEach(function (code) {
    if (!layers[code]) {
      layers[code] = L.layerGroup().addTo(map);
    }
    layers[code].addLayer(dot);
  });

  if (cp.nearest) {
    L.circle([cp.lat, cp.lon], { radius: 50, color: 'darkblue', fillOpacity: 0.3 }).addTo(map);
  }
});

var overlays = {};
Object.keys(layers).sort().forEach(function (code) {
  overlays['Lot type ' + code] = layers[code];
});
L.control.layers(null, overlays).addTo(map);
</script>
</body>
</html>
`))

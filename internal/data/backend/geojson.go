package backend

import (
	"fmt"
	"math"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-tracker-monitor/internal/core/model"
)

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Geometry *struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Timestamp  *float64 `json:"timestamp"`
		Confidence *float64 `json:"confidence"`
	} `json:"properties"`
}

// decodeFeatureCollection reads Point features with [lng, lat] coordinates.
// Features without a usable point geometry are skipped.
func decodeFeatureCollection(body []byte) ([]model.TrackPoint, error) {
	var fc featureCollection
	if err := sonic.Unmarshal(body, &fc); err != nil {
		return nil, err
	}
	if fc.Type != "" && fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected FeatureCollection, got %s", fc.Type)
	}

	points := make([]model.TrackPoint, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil || len(f.Geometry.Coordinates) < 2 {
			continue
		}
		if f.Geometry.Type != "" && f.Geometry.Type != "Point" {
			continue
		}
		lng, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			continue
		}

		p := model.TrackPoint{Lat: lat, Lng: lng, Confidence: f.Properties.Confidence}
		if f.Properties.Timestamp != nil {
			ts := int64(*f.Properties.Timestamp)
			p.Timestamp = &ts
		}
		points = append(points, p)
	}
	return points, nil
}

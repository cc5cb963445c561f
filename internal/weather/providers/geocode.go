package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/area-weather-forecast/internal/weather"
)

// GoogleGeocoder resolves "city, country" to coordinates through the
// Google Geocoding API. Only forward geocoding is offered.
type GoogleGeocoder struct {
	lookup func(geocoder.Address) (geocoder.Location, error)
}

// NewGoogleGeocoder configures the geocoder package with apiKey.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{lookup: geocoder.Geocoding}
}

func (g *GoogleGeocoder) Locate(ctx context.Context, city, country string) (weather.Location, error) {
	if err := ctx.Err(); err != nil {
		return weather.Location{}, err
	}
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)
	if city == "" {
		return weather.Location{}, fmt.Errorf("%w: city is required for geocoding", weather.ErrInvalidInput)
	}

	res, err := g.lookup(geocoder.Address{City: city, Country: country})
	if err != nil {
		return weather.Location{}, fmt.Errorf("%w: geocoding %s,%s: %v", weather.ErrFetchFailed, city, country, err)
	}

	loc := weather.Location{
		Latitude:  res.Latitude,
		Longitude: res.Longitude,
		City:      city,
		Country:   country,
	}
	if err := loc.Validate(); err != nil {
		return weather.Location{}, err
	}
	return loc, nil
}

// Package weather provides the weather-data tool. A city is geocoded first and
// the forecast of the resulting point is read from the National Weather
// Service API.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hupe1980/genui/tool"
)

// Name is the tool name the model selects.
const Name = "weather-data"

// Args describe the location to look up.
type Args struct {
	City    string `json:"city" jsonschema:"description=The city name to get weather for"`
	State   string `json:"state" jsonschema:"description=The two letter state abbreviation to get weather for"`
	Country string `json:"country,omitempty" jsonschema:"description=The two letter country abbreviation to get weather for,default=usa"`
}

// Validate implements tool.Validator and applies the country default.
func (a *Args) Validate() error {
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("city is required")
	}
	if strings.TrimSpace(a.State) == "" {
		return fmt.Errorf("state is required")
	}
	if a.Country == "" {
		a.Country = "usa"
	}
	return nil
}

// Forecast is the tool result rendered by the weather-card component.
type Forecast struct {
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
	Temperature int    `json:"temperature"`
}

// Options configure the upstream endpoints.
type Options struct {
	GeocodeBaseURL string
	WeatherBaseURL string
	UserAgent      string
	HTTPClient     *http.Client
}

// New creates the weather-data tool.
func New(optFns ...func(o *Options)) tool.Tool {
	opts := Options{
		GeocodeBaseURL: "https://geocode.xyz",
		WeatherBaseURL: "https://api.weather.gov",
		UserAgent:      "genui",
		HTTPClient:     http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	c := &client{opts: opts}
	return tool.NewTyped(Name, "A tool to fetch the current weather, given a city and state. If the city/state is not provided, ask the user for both the city and state.", c.fetch)
}

type client struct {
	opts Options
}

type geocodeResponse struct {
	Latt  string `json:"latt"`
	Longt string `json:"longt"`
}

type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []struct {
			Temperature int `json:"temperature"`
		} `json:"periods"`
	} `json:"properties"`
}

func (c *client) fetch(ctx context.Context, args Args) (any, error) {
	var geo geocodeResponse
	geoURL := fmt.Sprintf("%s/%s?json=1",
		strings.TrimRight(c.opts.GeocodeBaseURL, "/"),
		url.PathEscape(strings.ToLower(fmt.Sprintf("%s %s %s", args.City, args.State, args.Country))))
	if err := c.getJSON(ctx, geoURL, &geo); err != nil {
		return nil, fmt.Errorf("geocode: %w", err)
	}
	if geo.Latt == "" || geo.Longt == "" {
		return nil, fmt.Errorf("geocode: no coordinates for %s, %s", args.City, args.State)
	}

	var points pointsResponse
	pointsURL := fmt.Sprintf("%s/points/%s,%s", strings.TrimRight(c.opts.WeatherBaseURL, "/"), geo.Latt, geo.Longt)
	if err := c.getJSON(ctx, pointsURL, &points); err != nil {
		return nil, fmt.Errorf("points: %w", err)
	}
	if points.Properties.Forecast == "" {
		return nil, fmt.Errorf("points: missing forecast url")
	}

	var forecast forecastResponse
	if err := c.getJSON(ctx, points.Properties.Forecast, &forecast); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	if len(forecast.Properties.Periods) == 0 {
		return nil, fmt.Errorf("forecast: no periods")
	}

	return Forecast{
		City:        args.City,
		State:       args.State,
		Country:     args.Country,
		Temperature: forecast.Properties.Periods[0].Temperature,
	}, nil
}

func (c *client) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

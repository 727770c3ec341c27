// Package discovery lists restaurants near a US ZIP code using Nominatim for
// geocoding and the Overpass API for OpenStreetMap restaurant data.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/dinecoach/internal/store"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"
	DefaultOverpassURL  = "https://overpass-api.de/api/interpreter"
	// DefaultTTL is how long a ZIP/radius listing is reused.
	DefaultTTL = time.Hour
	// DefaultLimit caps the restaurants returned per query.
	DefaultLimit = 25
	// DefaultRadiusMiles applies when a query gives no radius.
	DefaultRadiusMiles = 3.0

	earthRadiusMi = 3958.8
	metersPerMile = 1609.34
	minRadiusM    = 200
)

var (
	// ErrInvalidZIP rejects anything but 12345 or 12345-6789.
	ErrInvalidZIP = errors.New("invalid ZIP")
	// ErrZIPNotFound reports a ZIP the geocoder does not know.
	ErrZIPNotFound = errors.New("ZIP not found")

	zipRe = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

// Chains is the name fragments treated as chain restaurants.
var Chains = []string{"chipotle", "panera", "mcdonald", "subway", "starbucks", "wendy", "taco bell", "domino", "panda", "chick-fil-a"}

// Error wraps a failed call to a geodata service.
type Error struct {
	Service string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Restaurant is one OpenStreetMap restaurant.
type Restaurant struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Website    string   `json:"website,omitempty"`
	Cuisine    []string `json:"cuisine"`
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	DistanceMi float64  `json:"distance_mi"`
}

// Query selects restaurants around a ZIP.
type Query struct {
	ZIP         string
	RadiusMiles float64
	OnlyChains  bool
	Limit       int
}

// Area is a geocoded ZIP and the restaurants around it, nearest first.
type Area struct {
	ZIP         string       `json:"zip"`
	Lat         float64      `json:"lat"`
	Lon         float64      `json:"lon"`
	RadiusMiles float64      `json:"radius_miles"`
	Restaurants []Restaurant `json:"restaurants"`
}

// Client talks to Nominatim and Overpass. The zero value is not usable; use
// New.
type Client struct {
	HTTP         *resty.Client
	NominatimURL string
	OverpassURL  string
	Store        *store.Store
	TTL          time.Duration
	// Pause follows each upstream call, per the services' usage policies.
	Pause time.Duration
}

// New returns a client with the public endpoints.
func New(userAgent string, timeout time.Duration) *Client {
	rc := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetRetryCount(1).
		SetRetryWaitTime(time.Second)
	return &Client{HTTP: rc, NominatimURL: DefaultNominatimURL, OverpassURL: DefaultOverpassURL, Pause: time.Second}
}

// ValidZIP reports whether zip is a 5 or 9 digit US ZIP.
func ValidZIP(zip string) bool { return zipRe.MatchString(zip) }

// Nearby geocodes q.ZIP and lists restaurants within q.RadiusMiles. The
// unfiltered listing is cached in Store; the chain filter applies after.
func (c *Client) Nearby(ctx context.Context, q Query) (Area, error) {
	zip := strings.TrimSpace(q.ZIP)
	if !ValidZIP(zip) {
		return Area{}, ErrInvalidZIP
	}
	radius := q.RadiusMiles
	if radius <= 0 {
		radius = DefaultRadiusMiles
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	key := fmt.Sprintf("%s:%s:%t", zip, strconv.FormatFloat(radius, 'f', -1, 64), q.OnlyChains)

	var area Area
	if c.Store != nil && c.Store.Get(ctx, store.NamespaceDiscovery, key, &area) == nil {
		log.Debug().Str("key", key).Int("restaurants", len(area.Restaurants)).Msg("discovery from store")
	} else {
		lat, lon, err := c.Geocode(ctx, zip)
		if err != nil {
			return Area{}, err
		}
		list, err := c.Restaurants(ctx, lat, lon, radius, limit)
		if err != nil {
			return Area{}, err
		}
		area = Area{ZIP: zip, Lat: lat, Lon: lon, RadiusMiles: radius, Restaurants: list}
		if c.Store != nil {
			ttl := c.TTL
			if ttl <= 0 {
				ttl = DefaultTTL
			}
			if err := c.Store.Put(ctx, store.NamespaceDiscovery, key, area, ttl); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("store discovery")
			}
		}
	}
	if q.OnlyChains {
		area.Restaurants = FilterChains(area.Restaurants)
	}
	if area.Restaurants == nil {
		area.Restaurants = []Restaurant{}
	}
	return area, nil
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode returns the centre of a US ZIP.
func (c *Client) Geocode(ctx context.Context, zip string) (float64, float64, error) {
	var places []nominatimPlace
	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"postalcode":   zip,
			"countrycodes": "us",
			"format":       "jsonv2",
			"limit":        "1",
		}).
		SetResult(&places).
		ForceContentType("application/json").
		Get(c.NominatimURL)
	if err != nil {
		return 0, 0, &Error{Service: "nominatim", Message: "request failed", Cause: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, 0, &Error{Service: "nominatim", Message: "status " + resp.Status()}
	}
	c.pause(ctx)
	if len(places) == 0 {
		return 0, 0, ErrZIPNotFound
	}
	lat, err1 := strconv.ParseFloat(places[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(places[0].Lon, 64)
	if err := errors.Join(err1, err2); err != nil {
		return 0, 0, &Error{Service: "nominatim", Message: "bad coordinates", Cause: err}
	}
	return lat, lon, nil
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	ID     int64    `json:"id"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}

// OverpassQuery builds the restaurant query around a point.
func OverpassQuery(lat, lon, radiusMiles float64, limit int) string {
	radiusM := max(minRadiusM, int(radiusMiles*metersPerMile))
	around := fmt.Sprintf("(around:%d,%s,%s)", radiusM, strconv.FormatFloat(lat, 'f', -1, 64), strconv.FormatFloat(lon, 'f', -1, 64))
	return fmt.Sprintf(`[out:json][timeout:25];
(
  node["amenity"="restaurant"]%[1]s;
  way["amenity"="restaurant"]%[1]s;
  relation["amenity"="restaurant"]%[1]s;
);
out center %[2]d;
`, around, limit)
}

// Restaurants lists named restaurants around a point, nearest first.
func (c *Client) Restaurants(ctx context.Context, lat, lon, radiusMiles float64, limit int) ([]Restaurant, error) {
	var out overpassResponse
	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetFormData(map[string]string{"data": OverpassQuery(lat, lon, radiusMiles, limit)}).
		SetResult(&out).
		ForceContentType("application/json").
		Post(c.OverpassURL)
	if err != nil {
		return nil, &Error{Service: "overpass", Message: "request failed", Cause: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &Error{Service: "overpass", Message: "status " + resp.Status()}
	}
	c.pause(ctx)
	return toRestaurants(out.Elements, lat, lon, limit), nil
}

func toRestaurants(elements []overpassElement, lat, lon float64, limit int) []Restaurant {
	list := []Restaurant{}
	for i, el := range elements {
		if i >= limit {
			break
		}
		name := strings.TrimSpace(el.Tags["name"])
		elat, elon, ok := el.position()
		if name == "" || !ok {
			continue
		}
		website := el.Tags["website"]
		if website == "" {
			website = el.Tags["contact:website"]
		}
		list = append(list, Restaurant{
			ID:         el.ID,
			Name:       name,
			Website:    strings.TrimSpace(website),
			Cuisine:    splitCuisine(el.Tags["cuisine"]),
			Lat:        elat,
			Lon:        elon,
			DistanceMi: math.Round(Haversine(lat, lon, elat, elon)*100) / 100,
		})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].DistanceMi < list[j].DistanceMi })
	return list
}

func (el overpassElement) position() (float64, float64, bool) {
	if el.Lat != nil && el.Lon != nil {
		return *el.Lat, *el.Lon, true
	}
	if el.Center != nil {
		return el.Center.Lat, el.Center.Lon, true
	}
	return 0, 0, false
}

func splitCuisine(tag string) []string {
	out := []string{}
	for _, c := range strings.Split(tag, ";") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Haversine returns the great-circle distance in miles.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	p1, p2 := lat1*rad, lat2*rad
	dphi := p2 - p1
	dl := (lon2 - lon1) * rad
	a := math.Pow(math.Sin(dphi/2), 2) + math.Cos(p1)*math.Cos(p2)*math.Pow(math.Sin(dl/2), 2)
	return 2 * earthRadiusMi * math.Asin(math.Sqrt(a))
}

// IsChain reports whether name contains a known chain fragment.
func IsChain(name string) bool {
	n := strings.ToLower(name)
	for _, c := range Chains {
		if strings.Contains(n, c) {
			return true
		}
	}
	return false
}

// FilterChains keeps chain restaurants only, preserving order.
func FilterChains(in []Restaurant) []Restaurant {
	out := []Restaurant{}
	for _, r := range in {
		if IsChain(r.Name) {
			out = append(out, r)
		}
	}
	return out
}

func (c *Client) pause(ctx context.Context) {
	if c.Pause <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.Pause):
	}
}

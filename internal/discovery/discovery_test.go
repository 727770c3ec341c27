package discovery

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hyperifyio/dinecoach/internal/store"
)

const overpassBody = `{"elements":[
 {"id":1,"lat":37.78,"lon":-122.40,"tags":{"name":"Far Chipotle","cuisine":"mexican; burrito","website":"https://chipotle.example"}},
 {"id":2,"center":{"lat":37.7751,"lon":-122.4194},"tags":{"name":"Near Bistro","contact:website":"https://bistro.example"}},
 {"id":3,"lat":37.77,"lon":-122.41,"tags":{"cuisine":"pizza"}},
 {"id":4,"tags":{"name":"No Position"}}
]}`

func fakeServices(t *testing.T, geocodes, overpasses *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(geocodes, 1)
		q := r.URL.Query()
		if q.Get("countrycodes") != "us" || q.Get("format") != "jsonv2" || q.Get("limit") != "1" {
			t.Errorf("unexpected geocode query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		if q.Get("postalcode") == "00000" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"lat":"37.7749","lon":"-122.4194"}]`))
	})
	mux.HandleFunc("/interpreter", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(overpasses, 1)
		if err := r.ParseForm(); err != nil || !strings.Contains(r.PostForm.Get("data"), `node["amenity"="restaurant"](around:4828,37.7749,-122.4194)`) {
			t.Errorf("unexpected overpass query %q", r.PostForm.Get("data"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(overpassBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(srv *httptest.Server) *Client {
	return &Client{
		HTTP:         resty.New().SetTimeout(2 * time.Second),
		NominatimURL: srv.URL + "/search",
		OverpassURL:  srv.URL + "/interpreter",
	}
}

func TestNearby_SortsAndMaps(t *testing.T) {
	var g, o int32
	c := testClient(fakeServices(t, &g, &o))
	area, err := c.Nearby(context.Background(), Query{ZIP: "94103", RadiusMiles: 3})
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(area.Restaurants) != 2 {
		t.Fatalf("expected 2 restaurants, got %+v", area.Restaurants)
	}
	near, far := area.Restaurants[0], area.Restaurants[1]
	if near.Name != "Near Bistro" || near.Website != "https://bistro.example" || near.DistanceMi != 0 {
		t.Fatalf("unexpected nearest %+v", near)
	}
	if far.Name != "Far Chipotle" || len(far.Cuisine) != 2 || far.Cuisine[1] != "burrito" {
		t.Fatalf("unexpected far %+v", far)
	}
	if far.DistanceMi <= 0 || far.DistanceMi != math.Round(far.DistanceMi*100)/100 {
		t.Fatalf("expected distance rounded to 2 decimals, got %v", far.DistanceMi)
	}
}

func TestNearby_ChainsAndStore(t *testing.T) {
	var g, o int32
	srv := fakeServices(t, &g, &o)
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	c := testClient(srv)
	c.Store = st

	for i := 0; i < 2; i++ {
		area, err := c.Nearby(context.Background(), Query{ZIP: "94103-1234", RadiusMiles: 3, OnlyChains: true})
		if err != nil {
			t.Fatalf("nearby: %v", err)
		}
		if len(area.Restaurants) != 1 || area.Restaurants[0].Name != "Far Chipotle" {
			t.Fatalf("expected only the chain, got %+v", area.Restaurants)
		}
	}
	if g != 1 || o != 1 {
		t.Fatalf("expected one upstream call each, got geocode=%d overpass=%d", g, o)
	}
}

func TestNearby_Errors(t *testing.T) {
	var g, o int32
	c := testClient(fakeServices(t, &g, &o))
	for _, zip := range []string{"", "9410", "94103-12", "abcde"} {
		if _, err := c.Nearby(context.Background(), Query{ZIP: zip}); !errors.Is(err, ErrInvalidZIP) {
			t.Fatalf("%q: expected ErrInvalidZIP, got %v", zip, err)
		}
	}
	if _, err := c.Nearby(context.Background(), Query{ZIP: "00000"}); !errors.Is(err, ErrZIPNotFound) {
		t.Fatalf("expected ErrZIPNotFound, got %v", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	c.NominatimURL = down.URL
	var de *Error
	if _, err := c.Nearby(context.Background(), Query{ZIP: "94103"}); !errors.As(err, &de) || de.Service != "nominatim" {
		t.Fatalf("expected nominatim error, got %v", err)
	}
}

func TestOverpassQuery_MinimumRadius(t *testing.T) {
	q := OverpassQuery(1.5, -2.25, 0.01, 10)
	if !strings.Contains(q, "(around:200,1.5,-2.25)") || !strings.Contains(q, "out center 10;") {
		t.Fatalf("unexpected query:\n%s", q)
	}
}

func TestHaversine(t *testing.T) {
	// San Francisco to Los Angeles, about 347 miles.
	d := Haversine(37.7749, -122.4194, 34.0522, -118.2437)
	if math.Abs(d-347.4) > 1 {
		t.Fatalf("unexpected distance %v", d)
	}
	if Haversine(1, 1, 1, 1) != 0 {
		t.Fatalf("expected zero distance")
	}
}

func TestIsChain(t *testing.T) {
	for name, want := range map[string]bool{
		"McDonald's":        true,
		"Taco Bell Cantina": true,
		"Chick-fil-A":       true,
		"Luigi's Trattoria": false,
	} {
		if got := IsChain(name); got != want {
			t.Fatalf("IsChain(%q) = %v", name, got)
		}
	}
}

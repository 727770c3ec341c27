package foodfacts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func TestSearch_MapsNutriments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("search_terms") != "greek yogurt" || q.Get("page_size") != "2" || q.Get("json") != "1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"products":[
			{"product_name":"Plain Greek","brands":"Dairy Co","serving_size":"170 g","nutriments":{"energy-kcal_100g":59,"proteins_100g":"10.2"}},
			{"product_name":"Cup","nutriments":{"energy-kcal_serving":120,"proteins_serving":0}}
		]}`))
	}))
	defer srv.Close()

	c := &Client{HTTP: resty.New().SetTimeout(2 * time.Second), SearchURL: srv.URL}
	got, err := c.Search(context.Background(), " greek yogurt ", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 products, got %+v", got)
	}
	p := got[0]
	if p.Name != "Plain Greek" || p.Brand != "Dairy Co" || p.ServingSize != "170 g" ||
		p.EnergyKcalPer100g == nil || *p.EnergyKcalPer100g != 59 || p.ProteinPer100g == nil || *p.ProteinPer100g != 10.2 {
		t.Fatalf("unexpected first product %+v", p)
	}
	if got[1].EnergyKcalPer100g == nil || *got[1].EnergyKcalPer100g != 120 || got[1].ProteinPer100g != nil {
		t.Fatalf("unexpected serving fallback %+v", got[1])
	}
}

func TestSearch_Errors(t *testing.T) {
	c := &Client{HTTP: resty.New(), SearchURL: "http://unused.invalid"}
	if _, err := c.Search(context.Background(), "  ", 5); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c.SearchURL = srv.URL
	if _, err := c.Search(context.Background(), "oats", 5); err == nil {
		t.Fatalf("expected error on 429")
	}
}

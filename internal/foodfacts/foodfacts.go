// Package foodfacts looks up packaged foods in Open Food Facts.
package foodfacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultSearchURL = "https://world.openfoodfacts.org/cgi/search.pl"
	DefaultPageSize  = 5
	maxPageSize      = 50
)

// ErrEmptyQuery rejects a blank search.
var ErrEmptyQuery = errors.New("empty query")

// Product is the nutrition summary of one product. Missing values are nil.
type Product struct {
	Name              string   `json:"name"`
	Brand             string   `json:"brand"`
	EnergyKcalPer100g *float64 `json:"energy_kcal_per_100g"`
	ProteinPer100g    *float64 `json:"protein_per_100g"`
	ServingSize       string   `json:"serving_size"`
}

// Client searches Open Food Facts.
type Client struct {
	HTTP      *resty.Client
	SearchURL string
}

// New returns a client for the public API.
func New(userAgent string, timeout time.Duration) *Client {
	rc := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
	return &Client{HTTP: rc, SearchURL: DefaultSearchURL}
}

type searchResponse struct {
	Products []struct {
		ProductName string         `json:"product_name"`
		Brands      string         `json:"brands"`
		ServingSize string         `json:"serving_size"`
		Nutriments  map[string]any `json:"nutriments"`
	} `json:"products"`
}

// Search returns up to pageSize products matching query.
func (c *Client) Search(ctx context.Context, query string, pageSize int) ([]Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pageSize = min(pageSize, maxPageSize)
	var out searchResponse
	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"search_terms":  query,
			"search_simple": "1",
			"json":          "1",
			"page_size":     strconv.Itoa(pageSize),
			"fields":        "product_name,brands,nutriments,serving_size",
		}).
		SetResult(&out).
		ForceContentType("application/json").
		Get(c.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("open food facts: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("open food facts: status %s", resp.Status())
	}
	products := make([]Product, 0, len(out.Products))
	for _, p := range out.Products {
		products = append(products, Product{
			Name:              p.ProductName,
			Brand:             p.Brands,
			EnergyKcalPer100g: nutriment(p.Nutriments, "energy-kcal_100g", "energy-kcal_serving"),
			ProteinPer100g:    nutriment(p.Nutriments, "proteins_100g", "proteins_serving"),
			ServingSize:       p.ServingSize,
		})
	}
	return products, nil
}

// nutriment returns the first present, non-zero numeric value among keys.
// Open Food Facts sends numbers or numeric strings.
func nutriment(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		var f float64
		switch v := m[k].(type) {
		case float64:
			f = v
		case json.Number:
			f, _ = v.Float64()
		case string:
			f, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
		default:
			continue
		}
		if f != 0 && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return &f
		}
	}
	return nil
}

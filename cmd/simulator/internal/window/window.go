// Package window keeps a bounded, chronological history of observations per ticker.
package window

import "github.com/shubham-shewale/market-analytics/pkg/models"

const DefaultCapacity = 100

// Window is a fixed-capacity ring of observations; once full, each append evicts the oldest entry.
type Window struct {
	data  []models.PricePoint
	size  int
	index int // next write position
	count int
}

func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultCapacity
	}
	return &Window{data: make([]models.PricePoint, size), size: size}
}

func (w *Window) Append(p models.PricePoint) {
	w.data[w.index] = p
	w.index = (w.index + 1) % w.size
	if w.count < w.size {
		w.count++
	}
}

func (w *Window) Len() int { return w.count }

// Points returns the held observations, oldest first.
func (w *Window) Points() []models.PricePoint {
	out := make([]models.PricePoint, w.count)
	if w.count < w.size {
		copy(out, w.data[:w.count])
		return out
	}
	n := copy(out, w.data[w.index:])
	copy(out[n:], w.data[:w.index])
	return out
}

// Prices returns the held prices, oldest first.
func (w *Window) Prices() []float64 {
	points := w.Points()
	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}
	return prices
}

func (w *Window) Latest() (models.PricePoint, bool) {
	if w.count == 0 {
		return models.PricePoint{}, false
	}
	return w.data[(w.index-1+w.size)%w.size], true
}

// Store maps tickers to their windows. It does no locking of its own: the scheduler
// serialises every access under its instrument table lock.
type Store struct {
	capacity int
	windows  map[string]*Window
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity, windows: make(map[string]*Window)}
}

func (s *Store) Capacity() int { return s.capacity }

func (s *Store) Append(ticker string, p models.PricePoint) {
	w, ok := s.windows[ticker]
	if !ok {
		w = NewWindow(s.capacity)
		s.windows[ticker] = w
	}
	w.Append(p)
}

// Prices returns the ticker's prices oldest first; unknown tickers yield an empty slice.
func (s *Store) Prices(ticker string) []float64 {
	w, ok := s.windows[ticker]
	if !ok {
		return []float64{}
	}
	return w.Prices()
}

func (s *Store) Points(ticker string) []models.PricePoint {
	w, ok := s.windows[ticker]
	if !ok {
		return []models.PricePoint{}
	}
	return w.Points()
}

func (s *Store) Latest(ticker string) (models.PricePoint, bool) {
	w, ok := s.windows[ticker]
	if !ok {
		return models.PricePoint{}, false
	}
	return w.Latest()
}

func (s *Store) Len(ticker string) int {
	if w, ok := s.windows[ticker]; ok {
		return w.Len()
	}
	return 0
}

package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"p2p-exchange-client/internal/model"
)

// layouts the API has been seen to use for created_at.
var offerTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02 15:04:05",
}

// pricePoint is one offer placed on the export timeline.
type pricePoint struct {
	At    time.Time
	Offer model.Offer
	Rate  decimal.Decimal
}

// Export renders cached offers as CSV and/or a PNG price chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	return a.withComponents(ctx, func(c *Components) error {
		var (
			offers []model.Offer
			err    error
		)
		if opts.Mine {
			offers, err = c.Offers.MyOffers(ctx)
		} else {
			offers, err = c.Offers.Marketplace(ctx)
		}
		if err != nil {
			return err
		}

		points := buildPricePoints(offers, opts.Coin)
		if len(points) == 0 {
			a.Logger.Info().Msg("no offers found for export")
			return nil
		}

		downsampled := downsamplePoints(points, opts.MaxPoints)
		a.Logger.Info().Int("total", len(points)).Int("exported", len(downsampled)).Msg("exporting offers")

		if opts.CSVPath != "" {
			if err := writeOffersCSV(opts.CSVPath, downsampled); err != nil {
				return err
			}
		}

		if opts.PNGPath != "" {
			if err := writeOffersPNG(opts.PNGPath, downsampled); err != nil {
				return err
			}
		}

		return nil
	})
}

func buildPricePoints(offers []model.Offer, coin string) []pricePoint {
	points := make([]pricePoint, 0, len(offers))
	for _, offer := range offers {
		if coin != "" && !strings.EqualFold(offer.Coin, coin) {
			continue
		}
		at, ok := parseOfferTime(offer.CreatedAt)
		if !ok {
			at = offer.LastSync
		}
		rate, ok := offerRate(offer)
		if !ok {
			continue
		}
		points = append(points, pricePoint{At: at.UTC(), Offer: offer, Rate: rate})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].At.Before(points[j].At) })
	return points
}

// offerRate is the unit price: receive divided by amount.
func offerRate(offer model.Offer) (decimal.Decimal, bool) {
	amount, err := offer.AmountDecimal()
	if err != nil || amount.IsZero() {
		return decimal.Zero, false
	}
	receive, err := offer.ReceiveDecimal()
	if err != nil {
		return decimal.Zero, false
	}
	return receive.Div(amount), true
}

func parseOfferTime(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range offerTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func downsamplePoints(points []pricePoint, max int) []pricePoint {
	if max <= 0 || len(points) <= max {
		return points
	}
	if max == 1 {
		return points[len(points)-1:]
	}

	result := make([]pricePoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeOffersCSV(path string, points []pricePoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"created_at", "uuid", "type", "coin", "amount", "receive", "rate", "status", "only_kyc", "only_vip", "message"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		record := []string{
			p.At.Format(time.RFC3339),
			p.Offer.UUID,
			string(p.Offer.Type),
			p.Offer.Coin,
			p.Offer.Amount,
			p.Offer.Receive,
			p.Rate.StringFixed(8),
			p.Offer.EffectiveStatus(),
			yesNo(p.Offer.OnlyKYC.IsSet()),
			yesNo(p.Offer.OnlyVIP.IsSet()),
			sanitizeInline(p.Offer.Message),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeOffersPNG(path string, points []pricePoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	var buyX, sellX []time.Time
	var buyY, sellY []float64
	for _, p := range points {
		switch p.Offer.Type {
		case model.OfferTypeBuy:
			buyX = append(buyX, p.At)
			buyY = append(buyY, p.Rate.InexactFloat64())
		default:
			sellX = append(sellX, p.At)
			sellY = append(sellY, p.Rate.InexactFloat64())
		}
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	var series []chart.Series
	if len(sellX) > 0 {
		series = append(series, chart.TimeSeries{Name: "Sell", XValues: padSeriesX(sellX), YValues: padSeriesY(sellY)})
	}
	if len(buyX) > 0 {
		series = append(series, chart.TimeSeries{Name: "Buy", XValues: padSeriesX(buyX), YValues: padSeriesY(buyY)})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Rate (receive/amount)",
			ValueFormatter: rateFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

// go-chart needs at least two points per series to draw a line.
func padSeriesX(x []time.Time) []time.Time {
	if len(x) == 1 {
		return []time.Time{x[0], x[0].Add(time.Second)}
	}
	return x
}

func padSeriesY(y []float64) []float64 {
	if len(y) == 1 {
		return []float64{y[0], y[0]}
	}
	return y
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

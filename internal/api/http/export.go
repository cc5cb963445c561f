package httpapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/area-weather-forecast/internal/weather"
)

type forecastRow struct {
	DS        string  `csv:"ds"`
	YHat      float64 `csv:"yhat"`
	YHatLower float64 `csv:"yhat_lower"`
	YHatUpper float64 `csv:"yhat_upper"`
}

// historicalCSV writes a date column plus one column per variable in the
// series, in weather.AllVariables order. Missing values are empty cells.
func historicalCSV(series weather.HistoricalSeries) (string, error) {
	vars := make([]weather.Variable, 0, len(series.Variables))
	for _, v := range weather.AllVariables {
		if series.Has(v) {
			vars = append(vars, v)
		}
	}

	var buf strings.Builder
	w := gocsv.DefaultCSVWriter(&buf)

	header := make([]string, 0, len(vars)+1)
	header = append(header, "date")
	for _, v := range vars {
		header = append(header, string(v))
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("encode historical csv: %w", err)
	}

	record := make([]string, len(header))
	for _, o := range series.Observations {
		record[0] = o.Date.String()
		for i, v := range vars {
			record[i+1] = cell(o.Get(v))
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("encode historical csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("encode historical csv: %w", err)
	}
	return buf.String(), nil
}

func forecastCSV(fs weather.ForecastSeries) (string, error) {
	rows := make([]*forecastRow, 0, len(fs.Points))
	for _, p := range fs.Points {
		rows = append(rows, &forecastRow{
			DS:        p.Date.String(),
			YHat:      p.Predicted,
			YHatLower: p.Lower,
			YHatUpper: p.Upper,
		})
	}
	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return "", fmt.Errorf("encode forecast csv: %w", err)
	}
	return out, nil
}

func cell(v weather.Value) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.V, 'f', -1, 64)
}

func sendCSV(c *fiber.Ctx, filename, body string) error {
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.SendString(body)
}

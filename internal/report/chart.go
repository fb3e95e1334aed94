package report

import (
	"os"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"signal-alerts/internal/feedback"
)

// WriteTrendPNG renders the daily feedback series as a PNG chart.
func WriteTrendPNG(path string, series []feedback.DailyPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(series))
	total := make([]float64, len(series))
	noise := make([]float64, len(series))
	useful := make([]float64, len(series))

	for i, point := range series {
		day, err := time.Parse("2006-01-02", point.Date)
		if err != nil {
			return err
		}
		x[i] = day
		total[i] = float64(point.Total)
		noise[i] = float64(point.Noise)
		useful[i] = float64(point.Useful)
	}

	countFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Feedback count",
			ValueFormatter: countFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Total",
				XValues: x,
				YValues: total,
			},
			chart.TimeSeries{
				Name:    "Noise",
				XValues: x,
				YValues: noise,
			},
			chart.TimeSeries{
				Name:    "Useful",
				XValues: x,
				YValues: useful,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

// Package charts renders the dashboard's five chart kinds as standalone HTML
// documents via go-echarts. Every valid selection renders something: when the
// filtered data comes up empty the renderer emits a styled placeholder page
// instead of an error, so the dashboard iframes never show a broken pane.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"go.uber.org/zap"

	"github.com/kjstillabower/worldbank-dashboard/internal/dataset"
	"github.com/kjstillabower/worldbank-dashboard/internal/observability"
)

// Chart kinds, as they appear in /charts/{chart} paths and metric labels.
const (
	KindWorldMap = "worldmap"
	KindTrend    = "trend"
	KindBubble   = "bubble"
	KindTop      = "top20"
	KindRegions  = "regions"
)

// ErrUnknownChart is returned for a kind outside Kinds.
var ErrUnknownChart = errors.New("unknown chart kind")

// Kinds lists every chart kind in dashboard display order.
func Kinds() []string {
	return []string{KindWorldMap, KindTrend, KindBubble, KindTop, KindRegions}
}

// Dashboard palette: slate-900 canvas, slate-200 text, blue/violet accents.
const (
	colorBackground = "#0f172a"
	colorText       = "#e2e8f0"
	colorMuted      = "#94a3b8"
	colorGrid       = "#1e293b"
	colorAccent     = "#3b82f6"
	colorAccentAlt  = "#8b5cf6"
)

// seriesPalette colors multi-series charts. Ten entries; series beyond that
// wrap around.
var seriesPalette = []string{
	colorAccent, colorAccentAlt, "#10b981", "#f59e0b", "#ef4444",
	"#06b6d4", "#ec4899", "#84cc16", "#f97316", "#6366f1",
}

// Request is a validated chart selection. Zero values mean default: the
// latest year with data, all countries.
type Request struct {
	Indicator string
	Countries []string
	Year      int
}

// document is the slice of the go-echarts chart API the renderer needs.
type document interface {
	Render(w io.Writer) error
}

// Renderer builds chart documents from a dataset snapshot.
type Renderer struct {
	logger *zap.Logger
}

func NewRenderer(logger *zap.Logger) *Renderer {
	return &Renderer{logger: logger}
}

// Render draws one chart kind as a self-contained HTML document.
func (r *Renderer) Render(kind string, ds *dataset.Dataset, req Request) ([]byte, error) {
	if ds == nil {
		return nil, fmt.Errorf("render %s: no dataset loaded", kind)
	}

	start := time.Now()
	doc, ok := r.build(kind, ds, req)
	if doc == nil {
		observability.ChartRendersTotal.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("%w: %q", ErrUnknownChart, kind)
	}
	result := "success"
	if !ok {
		result = "empty"
	}

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		observability.ChartRendersTotal.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("render %s: %w", kind, err)
	}

	observability.ChartRendersTotal.WithLabelValues(kind, result).Inc()
	observability.ChartRenderDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	r.logger.Debug("chart rendered",
		zap.String("chart", kind),
		zap.String("indicator", req.Indicator),
		zap.String("result", result),
		zap.Duration("duration", time.Since(start)))
	return buf.Bytes(), nil
}

// build returns the chart and whether it carries real data (false means the
// placeholder was substituted). A nil document means the kind is unknown.
func (r *Renderer) build(kind string, ds *dataset.Dataset, req Request) (document, bool) {
	switch kind {
	case KindWorldMap:
		return r.worldMap(ds, req)
	case KindTrend:
		return r.trend(ds, req)
	case KindBubble:
		return r.bubble(ds, req)
	case KindTop:
		return r.topCountries(ds, req)
	case KindRegions:
		return r.regions(ds, req)
	}
	return nil, false
}

// chartYear resolves the requested year, defaulting to the latest with data.
func chartYear(ds *dataset.Dataset, req Request) (int, bool) {
	if req.Year > 0 {
		return req.Year, true
	}
	return ds.LatestYear()
}

// indicatorLabel resolves the display name, falling back to the raw code.
func indicatorLabel(ds *dataset.Dataset, code string) string {
	if name, ok := ds.IndicatorName(code); ok && name != "" {
		return name
	}
	return code
}

func initOpts(pageTitle string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle:       pageTitle,
		Width:           "100%",
		Height:          "640px",
		BackgroundColor: colorBackground,
	})
}

// baseOptions is the shared dark styling: canvas, title block, tooltip.
func baseOptions(title, subtitle string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		initOpts(title),
		charts.WithTitleOpts(opts.Title{
			Title:         title,
			Subtitle:      subtitle,
			Left:          "center",
			TitleStyle:    &opts.TextStyle{Color: colorText, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorMuted, FontSize: 12},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
}

// darkXAxis styles the bottom axis. An empty axisType lets echarts infer it
// from the data, which the reversed bar chart relies on.
func darkXAxis(name, axisType string) charts.GlobalOpts {
	return charts.WithXAxisOpts(opts.XAxis{
		Name:      name,
		Type:      axisType,
		AxisLabel: &opts.AxisLabel{Color: colorMuted},
		SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorGrid}},
	})
}

func darkYAxis(name, axisType string) charts.GlobalOpts {
	return charts.WithYAxisOpts(opts.YAxis{
		Name:      name,
		Type:      axisType,
		AxisLabel: &opts.AxisLabel{Color: colorMuted},
		SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorGrid}},
	})
}

func legendBottom() charts.GlobalOpts {
	return charts.WithLegendOpts(opts.Legend{
		Show:      opts.Bool(true),
		Left:      "center",
		Bottom:    "0",
		TextStyle: &opts.TextStyle{Color: colorMuted},
	})
}

package charts

import (
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// placeholder renders a message-only page so an empty selection still
// produces a well-formed chart document.
func (r *Renderer) placeholder(title, message string) document {
	line := charts.NewLine()
	line.SetGlobalOptions(
		initOpts(title),
		charts.WithTitleOpts(opts.Title{
			Title:         title,
			Subtitle:      message,
			Left:          "center",
			Top:           "middle",
			TitleStyle:    &opts.TextStyle{Color: colorMuted, FontSize: 16},
			SubtitleStyle: &opts.TextStyle{Color: colorMuted, FontSize: 13},
		}),
		charts.WithXAxisOpts(opts.XAxis{Show: opts.Bool(false)}),
		charts.WithYAxisOpts(opts.YAxis{Show: opts.Bool(false)}),
	)
	line.SetXAxis([]string{})
	return line
}

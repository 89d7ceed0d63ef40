package http

import (
	"bytes"
	"html/template"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/kjstillabower/worldbank-dashboard/internal/charts"
	"github.com/kjstillabower/worldbank-dashboard/internal/models"
	"github.com/kjstillabower/worldbank-dashboard/internal/traffic"
)

// dashboardChart describes one chart panel on the page.
type dashboardChart struct {
	Kind  string
	Title string
	Wide  bool
}

// dashboardCharts lays out the five panels. Kind values must match the
// registered chart kinds.
var dashboardCharts = []dashboardChart{
	{Kind: charts.KindWorldMap, Title: "World map", Wide: true},
	{Kind: charts.KindTrend, Title: "Trend over time", Wide: true},
	{Kind: charts.KindBubble, Title: "GDP vs life expectancy"},
	{Kind: charts.KindTop, Title: "Top 20 countries"},
	{Kind: charts.KindRegions, Title: "Distribution by region", Wide: true},
}

type dashboardData struct {
	Indicators []models.Indicator
	Years      []int
	Countries  []models.Country
	Charts     []dashboardChart
	FirstYear  int
	LatestYear int
	Stale      bool
}

// GetDashboard handles GET /, the dashboard page. The page carries no chart
// data itself; each panel is an iframe that loads its document from
// /charts/{chart}, and the inline script rebuilds the iframe URLs whenever a
// control changes.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ds := h.currentDataset(w, r)
	if ds == nil {
		return
	}

	years := ds.Years()
	// Year picker runs newest first.
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	firstYear, _ := ds.FirstYear()
	latestYear, _ := ds.LatestYear()

	data := dashboardData{
		Indicators: ds.Indicators(),
		Years:      years,
		Countries:  ds.Countries(),
		Charts:     dashboardCharts,
		FirstYear:  firstYear,
		LatestYear: latestYear,
		Stale:      h.data.Stale(),
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, data); err != nil {
		traffic.RecordError()
		requestLogger(r, h.logger).Error("dashboard template failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "TEMPLATE_FAILED", "dashboard could not be rendered")
		return
	}
	traffic.RecordSuccess()
	writeHTML(w, buf.Bytes())
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardTmpl))

const dashboardTmpl = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>World Development Indicators</title>
<style>
:root { color-scheme: dark; }
* { box-sizing: border-box; }
body { margin: 0; background: #0f172a; color: #e2e8f0; font-family: "Segoe UI", system-ui, sans-serif; }
header { padding: 24px 32px 8px; }
h1 { margin: 0; font-size: 24px; }
.subtitle { margin: 4px 0 0; color: #94a3b8; font-size: 14px; }
.banner { margin: 12px 32px 0; padding: 10px 16px; background: #78350f; color: #fde68a; border-radius: 6px; font-size: 14px; }
.controls { display: flex; flex-wrap: wrap; gap: 24px; align-items: flex-start; padding: 16px 32px; }
.controls label { display: flex; flex-direction: column; gap: 6px; font-size: 13px; color: #94a3b8; }
select { background: #1e293b; color: #e2e8f0; border: 1px solid #334155; border-radius: 6px; padding: 6px 10px; min-width: 220px; font-size: 14px; }
select[multiple] { min-height: 170px; }
button { align-self: flex-end; background: #3b82f6; color: #e2e8f0; border: none; border-radius: 6px; padding: 8px 16px; font-size: 14px; cursor: pointer; }
button:hover { background: #8b5cf6; }
.charts { display: grid; grid-template-columns: 1fr 1fr; gap: 16px; padding: 0 32px 24px; }
.chart-cell { background: #0f172a; border: 1px solid #1e293b; border-radius: 8px; overflow: hidden; }
.chart-cell.wide { grid-column: 1 / -1; }
iframe.chart { display: block; width: 100%; height: 680px; border: 0; }
footer { padding: 0 32px 24px; color: #94a3b8; font-size: 12px; }
</style>
</head>
<body>
<header>
<h1>World Development Indicators</h1>
<p class="subtitle">World Bank open data, {{.FirstYear}} to {{.LatestYear}}</p>
</header>
{{if .Stale}}<div class="banner">Serving cached data. The World Bank API was unreachable at the last refresh.</div>{{end}}
<section class="controls">
<label>Indicator
<select id="indicator" class="control">
{{range .Indicators}}<option value="{{.Code}}">{{.Name}}</option>
{{end}}</select>
</label>
<label>Year
<select id="year" class="control">
<option value="">Latest</option>
{{range .Years}}<option value="{{.}}">{{.}}</option>
{{end}}</select>
</label>
<label>Countries (trend chart)
<select id="country" class="control" multiple size="8">
{{range .Countries}}<option value="{{.Code}}">{{.Name}}</option>
{{end}}</select>
</label>
<button id="clear" type="button">Clear selection</button>
</section>
<main class="charts">
{{range .Charts}}<section class="chart-cell{{if .Wide}} wide{{end}}">
<iframe class="chart" data-kind="{{.Kind}}" title="{{.Title}}" loading="lazy"></iframe>
</section>
{{end}}</main>
<footer>Data: World Bank Open Data API</footer>
<script>
function chartQuery() {
	var params = new URLSearchParams();
	var indicator = document.getElementById('indicator').value;
	if (indicator) { params.set('indicator', indicator); }
	var year = document.getElementById('year').value;
	if (year) { params.set('year', year); }
	var picker = document.getElementById('country');
	var selected = [];
	for (var i = 0; i < picker.options.length; i++) {
		if (picker.options[i].selected) { selected.push(picker.options[i].value); }
	}
	if (selected.length > 0) { params.set('country', selected.join(',')); }
	return params.toString();
}
function redraw() {
	var qs = chartQuery();
	var frames = document.querySelectorAll('iframe.chart');
	for (var i = 0; i < frames.length; i++) {
		frames[i].src = '/charts/' + frames[i].dataset.kind + (qs ? '?' + qs : '');
	}
}
var controls = document.querySelectorAll('.control');
for (var i = 0; i < controls.length; i++) {
	controls[i].addEventListener('change', redraw);
}
document.getElementById('clear').addEventListener('click', function () {
	var picker = document.getElementById('country');
	for (var i = 0; i < picker.options.length; i++) { picker.options[i].selected = false; }
	document.getElementById('year').value = '';
	redraw();
});
redraw();
</script>
</body>
</html>
`

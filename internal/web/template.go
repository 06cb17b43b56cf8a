package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/washer-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": status.StateOrUnknown,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Washer Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Washer Sensor</h1>

<h2>Monitor</h2>
<table>
<tr><th>Monitoring</th><td id="active" class="{{if .Active}}on{{else}}off{{end}}">{{if .Active}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>State</th><td id="state">{{stateOrUnknown .State}}</td></tr>
<tr><th>Idle periods</th><td id="idle">{{.IdleCounter}} / {{.Monitoring.MaxIdlePeriods}}</td></tr>
<tr><th>Last readings</th><td id="readings">{{if .LastDeltas}}{{.LastDeltas}}{{else}}none{{end}}</td></tr>
<tr><th>Completed cycles</th><td>{{.Completions}}</td></tr>
</table>

<h2>Configuration</h2>
<table>
<tr><th>Received</th><td class="{{if .Monitoring.Received}}on{{else}}unknown{{end}}">{{if .Monitoring.Received}}yes{{else}}waiting{{end}}</td></tr>
<tr><th>Sample period</th><td>{{.Monitoring.SampleSecs}}s</td></tr>
<tr><th>Max idle periods</th><td>{{.Monitoring.MaxIdlePeriods}}</td></tr>
<tr><th>Sensitivity</th><td>{{.Monitoring.Sensitivity}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topics</th><td>{{.Config.BaseTopic}}/#</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>I2C bus</th><td>{{.Config.I2CBus}}</td></tr>
<tr><th>LED pin</th><td>{{if lt .Config.LEDPin 0}}disabled{{else}}{{.Config.LEDPin}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

// page is the template view of a snapshot.
type page struct {
	status.Snapshot
	Uptime time.Duration
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return indexTmpl.Execute(w, page{Snapshot: snap, Uptime: snap.Uptime()})
}

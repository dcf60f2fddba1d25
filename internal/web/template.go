package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/spa-sensor/internal/logic"
	"github.com/sweeney/spa-sensor/internal/status"
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
	"state": status.StateString,
	"stateClass": func(s logic.State) string {
		switch s {
		case logic.StateOn:
			return "on"
		case logic.StateOff:
			return "off"
		}
		return "unknown"
	},
	"temp": func(v int) string {
		if v == logic.TempUnknown {
			return "--"
		}
		return fmt.Sprintf("%d°F", v)
	},
	"ms": func(v int64) string {
		if v == 0 {
			return "disabled"
		}
		return (time.Duration(v) * time.Millisecond).String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Spa Sensor</title>
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
<h1>Spa Sensor</h1>

<h2>Display</h2>
<table>
<tr><th>Water</th><td id="measured">{{temp .Spa.Measured}}</td></tr>
<tr><th>Set point</th><td id="set">{{temp .Spa.Set}}</td></tr>
<tr><th>Heater</th><td id="heater" class="{{stateClass .Spa.Heater}}">{{state .Spa.Heater}}</td></tr>
<tr><th>Pump</th><td id="pump" class="{{stateClass .Spa.Pump}}">{{state .Spa.Pump}}</td></tr>
<tr><th>Light</th><td id="light" class="{{stateClass .Spa.Light}}">{{state .Spa.Light}}</td></tr>
<tr><th>Mode</th><td id="mode">{{.Spa.Mode}}</td></tr>
{{if .Spa.HaveFrame}}<tr><th>Last frame</th><td>{{printf "0x%06X" .Spa.LastFrame}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic prefix</th><td>{{.Config.TopicPrefix}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Frames</h2>
<table>
<tr><th>Received</th><td>{{.Counts.Frames}}</td></tr>
<tr><th>Valid</th><td>{{.Counts.Valid}}</td></tr>
<tr><th>Checksum failed</th><td>{{.Counts.ChecksumFailed}}</td></tr>
<tr><th>Unknown digits</th><td>{{.Counts.UnknownDigits}}</td></tr>
<tr><th>Partial</th><td>{{.Counts.Partial}}</td></tr>
<tr><th>Set captures</th><td>{{.Counts.SetCaptures}}</td></tr>
<tr><th>Stale set points</th><td>{{.Counts.StaleSetPoints}}</td></tr>
<tr><th>Button presses</th><td>{{.Counts.Presses}}</td></tr>
<tr><th>Heartbeats</th><td>{{.Counts.Heartbeats}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Debug</th><td>{{if .Debug}}on{{else}}off{{end}}</td></tr>
<tr><th>Poll</th><td>{{ms .Config.PollMs}}</td></tr>
<tr><th>Heartbeat</th><td>{{ms .Config.HeartbeatMs}}</td></tr>
<tr><th>Set refresh</th><td>{{ms .Config.RefreshMs}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}

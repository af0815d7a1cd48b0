package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/status"
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
	"orNone": func(s string) string {
		if s == "" {
			return "none"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Irrigation Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.busy { color: orange; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Irrigation Controller</h1>

<h2>Cycle</h2>
<table>
<tr><th>State</th><td id="state" class="{{if eq .State "BUSY"}}busy{{else}}off{{end}}">{{.State}}</td></tr>
<tr><th>Stage</th><td id="stage">{{.Stage}}</td></tr>
<tr><th>Cycle ID</th><td>{{orNone .Sequencer.CycleID}}</td></tr>
<tr><th>Completed</th><td>{{.Sequencer.CompletedCycles}}</td></tr>
<tr><th>Match</th><td>{{.Sequencer.Match}}</td></tr>
{{if .LastEvent}}<tr><th>Last event</th><td>{{.LastEvent.Status}} ({{.LastEvent.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}})</td></tr>{{end}}
</table>

<h2>Actuators</h2>
<table>
<tr><th>Name</th><td>State</td><td>Elapsed</td><td>Target</td></tr>
{{range .Actuators}}<tr><th>{{.Name}}</th><td class="{{if .Active}}on{{else}}off{{end}}">{{if .Active}}ON{{else}}OFF{{end}}</td><td>{{.Elapsed}}s</td><td>{{.Target}}s</td></tr>
{{end}}</table>

<h2>Commands</h2>
<table>
<tr><th>Accepted</th><td>{{.Commands.Accepted}}</td></tr>
<tr><th>Rejected</th><td>{{.Commands.Rejected}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic prefix</th><td>{{.Config.TopicPrefix}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Telemetry</th><td>{{if .Config.Telemetry}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

type actuatorRow struct {
	Name string
	logic.Timer
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	state := string(snap.Sequencer.State)
	if state == "" {
		state = string(logic.StateIdle)
	}

	rows := make([]actuatorRow, 0, len(logic.Actuators))
	for _, a := range logic.Actuators {
		rows = append(rows, actuatorRow{Name: a.String(), Timer: snap.Sequencer.Timer(a)})
	}

	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		State     string
		Stage     int
		Actuators []actuatorRow
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		State:     state,
		Stage:     int(snap.Sequencer.Stage),
		Actuators: rows,
	}
	indexTmpl.Execute(w, data)
}

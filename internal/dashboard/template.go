package dashboard

import (
	"fmt"
	"html/template"
)

var templateFuncs = template.FuncMap{
	"percent": func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) },
	"width": func(count, maxCount int) string {
		if maxCount == 0 {
			return "0%"
		}
		return fmt.Sprintf("%.2f%%", float64(count)*100/float64(maxCount))
	},
	"pie": func(slices []slice) template.CSS {
		if len(slices) == 0 {
			return "background: #eee"
		}
		s := "background: conic-gradient("
		for i, sl := range slices {
			if i > 0 {
				s += ", "
			}
			s += fmt.Sprintf("%s %.2f%% %.2f%%", sl.Color, sl.From, sl.To)
		}
		return template.CSS(s + ")")
	},
}

const dashboardTemplate = `<!DOCTYPE html>
<html lang="th">
<head>
<meta charset="utf-8">
<title>Dashboard TCAS ภาษาไทย</title>
<style>
body { font-family: Arial, sans-serif; margin: 24px; }
h1 { text-align: center; }
.bar { display: flex; align-items: center; margin: 4px 0; }
.bar .label { width: 280px; overflow: hidden; text-overflow: ellipsis; white-space: nowrap; }
.bar .fill { background: #4e79a7; height: 18px; margin-right: 8px; }
.pie { width: 260px; height: 260px; border-radius: 50%; display: inline-block; vertical-align: top; }
.legend { display: inline-block; margin-left: 24px; }
.swatch { display: inline-block; width: 12px; height: 12px; margin-right: 6px; }
.table { overflow-x: scroll; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 8px; white-space: pre-line; }
</style>
</head>
<body>
<h1>แดชบอร์ดข้อมูล TCAS</h1>
<form method="get" action="/">
  <label for="column">เลือกคอลัมน์ที่จะแสดงกราฟ:</label>
  <select id="column" name="column" onchange="this.form.submit()">
  {{- range .Columns}}
    <option value="{{.}}"{{if eq . $.Selected}} selected{{end}}>{{.}}</option>
  {{- end}}
  </select>
  <noscript><button type="submit">แสดง</button></noscript>
</form>

<h3>จำนวนแยกตาม {{.Selected}}</h3>
<div id="bar-chart">
{{- range .Top}}
  <div class="bar"><span class="label" title="{{.Value}}">{{.Value}}</span><span class="fill" style="width: {{width .Count $.MaxCount}}"></span>{{.Count}}</div>
{{- else}}
  <p>ไม่มีข้อมูล</p>
{{- end}}
</div>

<h3>สัดส่วนของ {{.Selected}}</h3>
<div id="pie-chart">
  <div class="pie" style="{{pie .Slices}}"></div>
  <div class="legend">
  {{- range .Slices}}
    <div><span class="swatch" style="background: {{.Color}}"></span>{{.Value}} ({{percent .Share}})</div>
  {{- end}}
  </div>
</div>

<h4>ตัวอย่างตารางข้อมูล</h4>
<div class="table" id="data-table">
<table>
  <thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
  <tbody>
  {{- range .Preview}}
    <tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
  {{- end}}
  </tbody>
</table>
</div>
</body>
</html>
`

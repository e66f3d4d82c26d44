package services

import (
	"bytes"
	"html/template"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shashiranjanraj/lister/app/models"
)

var shippingText = map[models.ShippingPolicy]string{
	models.ShippingSameDay: "Same Business Day",
	models.Shipping2To5:    "2-5 Business Days",
	models.Shipping15To20:  "15-20 Business Days",
}

// ShippingText maps a policy to its customer-facing wording. Unknown or
// empty policies read as the default.
func ShippingText(p models.ShippingPolicy) string {
	if s, ok := shippingText[p]; ok {
		return s
	}
	return shippingText[models.DefaultShippingPolicy]
}

// segment is a run of text, bold or not. Only *text* produces bold runs;
// everything else stays literal and is escaped by html/template.
type segment struct {
	Text string
	Bold bool
}

var boldPattern = regexp.MustCompile(`\*([^*\n]+)\*`)

func richText(s string) []segment {
	var out []segment
	last := 0
	for _, m := range boldPattern.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > last {
			out = append(out, segment{Text: s[last:m[0]]})
		}
		out = append(out, segment{Text: s[m[2]:m[3]], Bold: true})
		last = m[1]
	}
	if last < len(s) {
		out = append(out, segment{Text: s[last:]})
	}
	return out
}

// usableImage accepts absolute http(s) URLs only.
func usableImage(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Monogram builds up to two initials from a store name: "acme tools" → "AT".
func Monogram(storeName string) string {
	initials := make([]rune, 0, 2)
	for _, word := range strings.Fields(storeName) {
		r, _ := utf8.DecodeRuneInString(word)
		if r == utf8.RuneError {
			continue
		}
		initials = append(initials, unicode.ToUpper(r))
		if len(initials) == 2 {
			break
		}
	}
	return string(initials)
}

type previewView struct {
	Title       string
	StoreName   string
	Logo        string
	Monogram    string
	ShowStore   bool
	Images      []string
	Description [][]segment
	Highlights  [][]segment
	Keywords    []string
	Shipping    string
}

func newPreviewView(p models.Project) previewView {
	v := previewView{
		Title:     p.Title,
		StoreName: p.StoreName,
		Shipping:  ShippingText(p.ShippingPolicy),
		Keywords:  p.SEOKeywords,
	}

	if usableImage(p.StoreLogo) {
		v.Logo = strings.TrimSpace(p.StoreLogo)
	} else {
		v.Monogram = Monogram(p.StoreName)
	}
	v.ShowStore = v.Logo != "" || v.StoreName != ""

	for _, img := range p.Images {
		if usableImage(img) {
			v.Images = append(v.Images, strings.TrimSpace(img))
		}
	}
	for _, para := range strings.Split(p.Description, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			v.Description = append(v.Description, richText(para))
		}
	}
	for _, h := range p.Highlights {
		if h = strings.TrimSpace(h); h != "" {
			v.Highlights = append(v.Highlights, richText(h))
		}
	}
	return v
}

var previewTemplate = template.Must(template.New("preview").Parse(`{{define "rich"}}{{range .}}{{if .Bold}}<strong>{{.Text}}</strong>{{else}}{{.Text}}{{end}}{{end}}{{end}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body style="margin:0;padding:24px;background:#ffffff;color:#1f2933;font-family:Helvetica,Arial,sans-serif;line-height:1.5">
<div style="max-width:960px;margin:0 auto">
{{- if .ShowStore}}
<header style="display:flex;align-items:center;gap:12px;padding-bottom:16px;border-bottom:1px solid #e4e7eb">
{{- if .Logo}}
<img src="{{.Logo}}" alt="{{.StoreName}}" style="width:56px;height:56px;object-fit:contain;border-radius:8px">
{{- else}}
<div style="width:56px;height:56px;border-radius:50%;background:#3e4c59;color:#ffffff;display:flex;align-items:center;justify-content:center;font-size:22px;font-weight:bold">{{.Monogram}}</div>
{{- end}}
<span style="font-size:20px;font-weight:bold">{{.StoreName}}</span>
</header>
{{- end}}
<h1 style="font-size:28px;margin:24px 0 16px">{{.Title}}</h1>
{{- if .Images}}
<div style="display:grid;grid-template-columns:repeat(auto-fill,minmax(200px,1fr));gap:12px;margin-bottom:24px">
{{- range .Images}}
<img src="{{.}}" alt="{{$.Title}}" style="width:100%;height:auto;border:1px solid #e4e7eb;border-radius:6px">
{{- end}}
</div>
{{- end}}
{{- if .Description}}
<section style="margin-bottom:24px">
<h2 style="font-size:20px;margin:0 0 8px">Description</h2>
{{- range .Description}}
<p style="margin:0 0 12px">{{template "rich" .}}</p>
{{- end}}
</section>
{{- end}}
{{- if .Highlights}}
<section style="margin-bottom:24px">
<h2 style="font-size:20px;margin:0 0 8px">Highlights</h2>
<ul style="margin:0;padding-left:20px">
{{- range .Highlights}}
<li>{{template "rich" .}}</li>
{{- end}}
</ul>
</section>
{{- end}}
{{- if .Keywords}}
<p style="margin:0 0 24px;color:#7b8794;font-size:13px">{{range $i, $k := .Keywords}}{{if $i}} &middot; {{end}}{{$k}}{{end}}</p>
{{- end}}
<section style="padding:16px;background:#f5f7fa;border-radius:6px">
<h2 style="font-size:20px;margin:0 0 8px">Shipping &amp; Returns</h2>
<p style="margin:0 0 8px">Dispatch: {{.Shipping}}</p>
<p style="margin:0">Returns accepted within 30 days of delivery.</p>
</section>
</div>
</body>
</html>
`))

// RenderPreview turns a project into a self-contained HTML document. The
// output depends only on p: rendering the same project twice yields the
// same bytes.
func RenderPreview(p models.Project) string {
	var buf bytes.Buffer
	if err := previewTemplate.Execute(&buf, newPreviewView(p)); err != nil {
		// Only reachable through a template bug; fall back to an escaped title.
		return "<!DOCTYPE html><html><body><h1>" + template.HTMLEscapeString(p.Title) + "</h1></body></html>"
	}
	return buf.String()
}

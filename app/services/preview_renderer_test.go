package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/lister/app/models"
)

func TestRenderIsDeterministic(t *testing.T) {
	p := models.Project{
		Title:          "Widget",
		Description:    "A *great* widget.\n\nSecond paragraph.",
		Images:         []string{"https://img.test/1.png", "https://img.test/2.png"},
		StoreName:      "Acme Tools",
		ShippingPolicy: models.ShippingSameDay,
		SEOKeywords:    []string{"widget", "tool"},
		Highlights:     []string{"*Fast* shipping", "Durable"},
	}
	assert.Equal(t, RenderPreview(p), RenderPreview(p))
}

func TestRenderDefaultsAndNoGrid(t *testing.T) {
	html := RenderPreview(models.Project{Title: "Widget", Images: []string{}})

	assert.Contains(t, html, "2-5 Business Days")
	assert.Contains(t, html, "<h1")
	assert.NotContains(t, html, "<img")
	assert.NotContains(t, html, "grid-template-columns")
}

func TestRenderShippingLookup(t *testing.T) {
	cases := map[models.ShippingPolicy]string{
		models.ShippingSameDay: "Same Business Day",
		models.Shipping2To5:    "2-5 Business Days",
		models.Shipping15To20:  "15-20 Business Days",
		"NEXT_YEAR":            "2-5 Business Days",
	}
	for policy, want := range cases {
		assert.Contains(t, RenderPreview(models.Project{ShippingPolicy: policy}), want, policy)
	}
}

func TestRenderHighlightBold(t *testing.T) {
	html := RenderPreview(models.Project{Highlights: []string{"*Fast* shipping"}})
	assert.Contains(t, html, "<li><strong>Fast</strong> shipping</li>")
}

func TestRenderEscapesUserMarkup(t *testing.T) {
	html := RenderPreview(models.Project{
		Title:       `</title><script>alert(1)</script>`,
		Description: `<b>x</b> *y* <style>body{}</style>`,
		Highlights:  []string{`<img src=x onerror=alert(1)>`},
	})

	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "<b>")
	assert.NotContains(t, html, "<style>")
	assert.NotContains(t, html, "onerror=alert(1)>")
	assert.Contains(t, html, "&lt;b&gt;x&lt;/b&gt; <strong>y</strong>")
}

func TestRenderSkipsUnusableImages(t *testing.T) {
	html := RenderPreview(models.Project{
		Title:  "W",
		Images: []string{"", "javascript:alert(1)", "/relative.png", "https://ok.test/a.png"},
	})

	assert.Equal(t, 1, strings.Count(html, "<img"))
	assert.Contains(t, html, `src="https://ok.test/a.png"`)
	assert.NotContains(t, html, "javascript:")
}

func TestRenderImageOrderPreserved(t *testing.T) {
	html := RenderPreview(models.Project{Images: []string{"https://a.test/2.png", "https://a.test/1.png"}})
	assert.Less(t, strings.Index(html, "2.png"), strings.Index(html, "1.png"))
}

func TestRenderLogoOrMonogram(t *testing.T) {
	withLogo := RenderPreview(models.Project{StoreName: "Acme", StoreLogo: "https://a.test/logo.png"})
	assert.Contains(t, withLogo, `src="https://a.test/logo.png"`)

	noLogo := RenderPreview(models.Project{StoreName: "acme tools co"})
	assert.Contains(t, noLogo, ">AT</div>")
}

func TestMonogram(t *testing.T) {
	assert.Equal(t, "AT", Monogram("acme tools co"))
	assert.Equal(t, "É", Monogram("  éclair "))
	assert.Equal(t, "", Monogram(""))
}

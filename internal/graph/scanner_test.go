package graph

import (
	"strings"
	"testing"
)

const threePageTranscript = `Tool execution results:

✅ playwright_navigate: ✅ Successfully navigated to https://example.com - Page title: 'Example Domain'

✅ playwright_get_page_metadata: 📄 Page Metadata:
  • URL: https://example.com/
  • Title: Example Domain

🎯 Element Metadata (Found 2 element(s)):

  Element 1:
  • Selector: a:has-text('More information...')
  • Tag: <a>
  • Type: link
  • Text: More information...
  • Href: https://www.iana.org/domains/example
  • ID: None
  • Name: None
  • Class: None
  • Input Type: None

  Element 2:
  • Selector: h1
  • Tag: <h1>
  • Type: h1
  • Text: Example Domain
  • Href: None
  • ID: None
  • Name: None
  • Class: None
  • Input Type: None

✅ playwright_click: ✅ Successfully clicked element: a:has-text('More information...') (More information...)

✅ playwright_navigate: ✅ Successfully navigated to https://www.iana.org/domains/example

✅ playwright_get_page_metadata: 📄 Page Metadata:
  • URL: https://www.iana.org/domains/example
  • Title: Example Domains

🎯 Element Metadata (Found 3 element(s)):

  Element 1:
  • Selector: #about
  • Tag: <a>
  • Type: link
  • Text: About
  • Href: https://www.iana.org/about
  • ID: about
  • Name: None
  • Class: nav-link
  • Input Type: None

  Element 2:
  • Selector: h1
  • Tag: <h1>
  • Type: h1
  • Text: Example Domains
  • Href: None
  • ID: None
  • Name: None
  • Class: None
  • Input Type: None

  Element 3:
  • Selector: #home
  • Tag: <a>
  • Type: link
  • Text: Homepage
  • Href: https://www.iana.org/
  • ID: home
  • Name: None
  • Class: nav-link
  • Input Type: None

✅ playwright_click: ✅ Successfully clicked element: #about (About)

✅ playwright_navigate: ✅ Successfully navigated to https://www.iana.org/about

✅ playwright_get_page_metadata: 📄 Page Metadata:
  • URL: https://www.iana.org/about
  • Title: About us

🎯 Element Metadata (Found 1 element(s)):

  Element 1:
  • Selector: h1
  • Tag: <h1>
  • Type: h1
  • Text: About us
  • Href: None
  • ID: None
  • Name: None
  • Class: None
  • Input Type: None

✅ playwright_close_browser: ✅ Browser closed successfully`

func TestScanThreePagesTwoEdges(t *testing.T) {
	pages, edges := Scan(threePageTranscript)

	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}
	if len(edges) != 2 {
		t.Fatalf("got %d edges, want 2", len(edges))
	}

	wantPages := []struct {
		id, label, url string
		x, elements    int
	}{
		{"page_1", "Example Domain (example.com)", "https://example.com/", 200, 2},
		{"page_2", "Example Domains (www.iana.org)", "https://www.iana.org/domains/example", 500, 3},
		{"page_3", "About us (www.iana.org)", "https://www.iana.org/about", 800, 1},
	}
	for i, want := range wantPages {
		page := pages[i]
		if page.ID != want.id {
			t.Errorf("pages[%d].ID = %q, want %q", i, page.ID, want.id)
		}
		if page.Label != want.label {
			t.Errorf("pages[%d].Label = %q, want %q", i, page.Label, want.label)
		}
		if page.Metadata.URL != want.url {
			t.Errorf("pages[%d].Metadata.URL = %q, want %q", i, page.Metadata.URL, want.url)
		}
		if page.X != want.x || page.Y != 100 {
			t.Errorf("pages[%d] at (%d, %d), want (%d, 100)", i, page.X, page.Y, want.x)
		}
		if len(page.Metadata.KeyElements) != want.elements {
			t.Errorf("pages[%d] has %d elements, want %d", i, len(page.Metadata.KeyElements), want.elements)
		}
	}

	wantEdges := []struct{ source, target, label string }{
		{"page_1", "page_2", "Click More information..."},
		{"page_2", "page_3", "Click About"},
	}
	for i, want := range wantEdges {
		edge := edges[i]
		if edge.Source != want.source || edge.Target != want.target {
			t.Errorf("edges[%d] = %s->%s, want %s->%s", i, edge.Source, edge.Target, want.source, want.target)
		}
		if edge.Label != want.label {
			t.Errorf("edges[%d].Label = %q, want %q", i, edge.Label, want.label)
		}
	}

	link := pages[0].Metadata.KeyElements[0]
	if link.ID != "element_1" {
		t.Errorf("element ID = %q, want %q", link.ID, "element_1")
	}
	if link.Type != "link" || link.Tag != "a" {
		t.Errorf("element type/tag = %q/%q, want link/a", link.Type, link.Tag)
	}
	if link.Text != "More information..." {
		t.Errorf("element text = %q, want %q", link.Text, "More information...")
	}
	if link.Href != "https://www.iana.org/domains/example" {
		t.Errorf("element href = %q", link.Href)
	}
	if link.ElementID != "" || link.InputType != "" {
		t.Errorf("blank fields not cleared: id=%q input_type=%q", link.ElementID, link.InputType)
	}
	if link.DependsOn == nil || len(link.DependsOn) != 0 {
		t.Errorf("depends_on = %#v, want empty non-nil slice", link.DependsOn)
	}

	about := pages[1].Metadata.KeyElements[0]
	if about.ElementID != "about" || about.Class != "nav-link" {
		t.Errorf("element attrs = id %q class %q, want about/nav-link", about.ElementID, about.Class)
	}
	if second := pages[1].Metadata.KeyElements[1].ID; second != "element_2" {
		t.Errorf("second element ID = %q, want element_2", second)
	}
	if restart := pages[2].Metadata.KeyElements[0].ID; restart != "element_1" {
		t.Errorf("element numbering not per page: got %q, want element_1", restart)
	}
}

const mergedTranscript = `✅ playwright_navigate: ✅ Successfully navigated to https://example.com - Page title: 'Example Domain'

✅ playwright_get_page_metadata: 📄 Page Metadata:
  • URL: https://example.com/
  • Title: Example Domain

✅ playwright_get_page_metadata: 📄 Page Metadata:
  • URL: https://example.com/
  • Title: Example Domain

🎯 Element Metadata (Found 1 element(s)):

  • Selector: a[href='https://www.iana.org/domains/example']
  • Tag: <a>
  • Text: More information...
  • Href: https://www.iana.org/domains/example
  • ID: None
  • Name: None
  • Class: None
  • Input Type: None`

// The navigate line reports the URL without a trailing slash while the
// metadata blocks report it with one; all three observations must collapse
// into a single page. The element entry has no Type line and no Element
// header, the shape older tool builds produced.
func TestScanMergesRepeatedURL(t *testing.T) {
	pages, edges := Scan(mergedTranscript)

	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	if len(edges) != 0 {
		t.Fatalf("got %d edges, want 0", len(edges))
	}

	page := pages[0]
	if page.Label != "Example Domain (example.com)" {
		t.Errorf("label = %q, want %q", page.Label, "Example Domain (example.com)")
	}
	if page.Metadata.URL != "https://example.com/" {
		t.Errorf("url = %q, want %q", page.Metadata.URL, "https://example.com/")
	}
	if len(page.Metadata.KeyElements) != 1 {
		t.Fatalf("got %d elements, want 1", len(page.Metadata.KeyElements))
	}

	elem := page.Metadata.KeyElements[0]
	if elem.Type != "link" {
		t.Errorf("type = %q, want %q (inferred from tag)", elem.Type, "link")
	}
	if elem.Tag != "a" || elem.Text != "More information..." {
		t.Errorf("tag/text = %q/%q", elem.Tag, elem.Text)
	}
	if elem.Href != "https://www.iana.org/domains/example" {
		t.Errorf("href = %q", elem.Href)
	}
}

const revisitTranscript = `✅ playwright_navigate: ✅ Successfully navigated to https://shop.test/ - Page title: 'Catalog'

✅ playwright_get_page_metadata: 📄 Page Metadata:
  • URL: https://shop.test/
  • Title: Catalog

🎯 Element Metadata (Found 1 element(s)):

  Element 1:
  • Selector: #cart
  • Tag: <a>
  • Type: link
  • Text: Cart
  • Href: /cart
  • ID: cart
  • Name: None
  • Class: None
  • Input Type: None

✅ playwright_click: ✅ Successfully clicked element: #cart (Cart)

✅ playwright_navigate: ✅ Successfully navigated to https://shop.test/cart - Page title: 'Your Cart'

✅ playwright_click: ✅ Successfully clicked element: #back (Back to catalog)

✅ playwright_navigate: ✅ Successfully navigated to https://shop.test/ - Page title: 'Catalog'

✅ playwright_get_page_metadata: 📄 Page Metadata:
  • URL: https://shop.test/
  • Title: Catalog

🎯 Element Metadata (Found 2 element(s)):

  Element 1:
  • Selector: #cart
  • Tag: <a>
  • Type: link
  • Text: Cart
  • Href: /cart
  • ID: cart
  • Name: None
  • Class: None
  • Input Type: None

  Element 2:
  • Selector: #checkout
  • Tag: <button>
  • Type: button
  • Text: Checkout
  • Href: None
  • ID: checkout
  • Name: None
  • Class: None
  • Input Type: None`

func TestScanRevisitMergesWithoutNewEdge(t *testing.T) {
	pages, edges := Scan(revisitTranscript)

	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1 (revisits add none)", len(edges))
	}
	if edges[0].Source != "page_1" || edges[0].Target != "page_2" || edges[0].Label != "Click Cart" {
		t.Errorf("edge = %s->%s %q, want page_1->page_2 %q", edges[0].Source, edges[0].Target, edges[0].Label, "Click Cart")
	}

	catalog := pages[0].Metadata.KeyElements
	if len(catalog) != 2 {
		t.Fatalf("catalog has %d elements after revisit, want 2", len(catalog))
	}
	if catalog[0].ElementID != "cart" || catalog[1].ElementID != "checkout" {
		t.Errorf("merged elements = %q, %q, want cart, checkout", catalog[0].ElementID, catalog[1].ElementID)
	}
	if catalog[1].ID != "element_2" {
		t.Errorf("appended element ID = %q, want element_2", catalog[1].ID)
	}

	if pages[1].Label != "Your Cart (shop.test)" {
		t.Errorf("second page label = %q", pages[1].Label)
	}
	if got := pages[1].Metadata.KeyElements; got == nil || len(got) != 0 {
		t.Errorf("unobserved elements = %#v, want empty non-nil slice", got)
	}
}

func TestScanEdgeLabels(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       string
	}{
		{
			name: "long click text truncated",
			transcript: "✅ Successfully navigated to https://a.test/ - Page title: 'A'\n" +
				"✅ Successfully clicked element: #go (Submit the registration form now)\n" +
				"✅ Successfully navigated to https://b.test/ - Page title: 'B'",
			want: "Click Submit the registrat...",
		},
		{
			name: "click without description uses selector",
			transcript: "✅ Successfully navigated to https://a.test/ - Page title: 'A'\n" +
				"✅ Successfully clicked element: #next\n" +
				"✅ Successfully navigated to https://b.test/ - Page title: 'B'",
			want: "Click #next",
		},
		{
			name: "direct navigation",
			transcript: "✅ Successfully navigated to https://a.test/ - Page title: 'A'\n" +
				"✅ Successfully navigated to https://example.org/pricing - Page title: 'Pricing'",
			want: "Go to https://example.org/...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, edges := Scan(tt.transcript)
			if len(edges) != 1 {
				t.Fatalf("got %d edges, want 1", len(edges))
			}
			if edges[0].Label != tt.want {
				t.Errorf("label = %q, want %q", edges[0].Label, tt.want)
			}
		})
	}
}

const legacyTranscript = `✅ 📄 Page Metadata:
  • URL: https://www.iana.org/
  • Title: IANA

✅ Clicked on element: About

✅ 📄 Page Metadata:
  • URL: https://www.iana.org/about
  • Title: About us

🎯 Element Metadata (Found 1 element(s)):

  • Selector: a[href='/contact']
  • Tag: <a>
  • Text: Contact us
  • Href: /contact
  • Data Attributes: {}`

func TestScanLegacyTranscript(t *testing.T) {
	pages, edges := Scan(legacyTranscript)

	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(edges))
	}
	if edges[0].Label != "Click About" {
		t.Errorf("label = %q, want %q", edges[0].Label, "Click About")
	}

	elems := pages[1].Metadata.KeyElements
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
	if elems[0].Type != "link" || elems[0].Text != "Contact us" || elems[0].Href != "/contact" {
		t.Errorf("element = %+v", elems[0])
	}
}

func TestScanElementTextTruncated(t *testing.T) {
	long := strings.Repeat("a", 250)
	transcript := "✅ 📄 Page Metadata:\n" +
		"  • URL: https://a.test/\n" +
		"  • Title: A\n\n" +
		"🎯 Element Metadata (Found 1 element(s)):\n\n" +
		"  Element 1:\n" +
		"  • Selector: p\n" +
		"  • Tag: <p>\n" +
		"  • Type: p\n" +
		"  • Text: " + long + "\n" +
		"  • Href: None\n" +
		"  • ID: None\n" +
		"  • Name: None\n" +
		"  • Class: None\n" +
		"  • Input Type: None"

	pages, _ := Scan(transcript)
	if len(pages) != 1 || len(pages[0].Metadata.KeyElements) != 1 {
		t.Fatalf("got %d pages", len(pages))
	}
	got := pages[0].Metadata.KeyElements[0].Text
	if got != strings.Repeat("a", 200) {
		t.Errorf("text length = %d, want 200", len(got))
	}
}

func TestScanIgnoresProse(t *testing.T) {
	for _, transcript := range []string{
		"",
		"The agent reasoned about the task but executed no tools.",
		"❌ playwright_click: ❌ Browser not initialized. Please navigate to a page first.",
	} {
		pages, edges := Scan(transcript)
		if len(pages) != 0 || len(edges) != 0 {
			t.Errorf("Scan(%q) = %d pages, %d edges, want none", transcript, len(pages), len(edges))
		}
	}
}

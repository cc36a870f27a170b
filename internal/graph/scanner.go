// Package graph extracts a navigation graph from the tool outcomes of one
// automation run. The scanner keys on the exact markers the browser tools
// emit: navigation and click outcome lines plus the 📄/🎯 metadata blocks.
// It never fabricates entities; a sparse transcript yields a sparse graph.
package graph

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/haasonsaas/webpilot/pkg/models"
)

const (
	pageMetaMarker   = "📄 Page Metadata:"
	elementMarker    = "🎯 Element Metadata"
	navigatedMarker  = "Successfully navigated to "
	clickedMarker    = "Successfully clicked element: "
	clickedOldMarker = "Clicked on element: "

	actionLabelLimit = 20
	elementTextLimit = 200
)

var (
	navigatePattern = regexp.MustCompile(`Successfully navigated to (\S+?)(?: - Page title: '(.*)')?\s*$`)
	clickPattern    = regexp.MustCompile(`Successfully clicked element: (.+?)(?: \((.+)\))?\s*$`)
	clickOldPattern = regexp.MustCompile(`Clicked on element: (.+?)\s*$`)
)

// Scan walks transcript text in order and returns the observed page nodes
// and the edges between them. Pages are keyed by normalized URL in
// first-observation order; revisits merge newly observed elements but never
// allocate a node or an edge.
func Scan(text string) ([]models.PageNode, []models.Edge) {
	s := &scanState{index: map[string]int{}}
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.Contains(line, navigatedMarker):
			s.handleNavigate(line)
		case strings.Contains(line, clickedMarker), strings.Contains(line, clickedOldMarker):
			s.handleClick(line)
		case strings.Contains(line, pageMetaMarker):
			i = s.handleMetadataBlock(lines, i)
		}
	}
	return s.result()
}

type pageState struct {
	node      models.PageNode
	host      string
	selectors map[string]bool
}

type scanState struct {
	pages []*pageState
	index map[string]int

	current    int
	haveCur    bool
	lastAction string
	edges      []models.Edge
}

func (s *scanState) handleNavigate(line string) {
	m := navigatePattern.FindStringSubmatch(line)
	if m == nil {
		return
	}
	rawURL, title := m[1], m[2]
	s.observe(rawURL, title)
}

func (s *scanState) handleClick(line string) {
	if m := clickPattern.FindStringSubmatch(line); m != nil {
		text := m[1]
		if m[2] != "" {
			text = m[2]
		}
		s.lastAction = "Click " + truncate(text, actionLabelLimit)
		return
	}
	if m := clickOldPattern.FindStringSubmatch(line); m != nil {
		s.lastAction = "Click " + truncate(m[1], actionLabelLimit)
	}
}

// handleMetadataBlock consumes a 📄 block starting at lines[start] plus its
// optional 🎯 element section, and returns the index of the last line it
// consumed. The block ends at the next tool outcome line.
func (s *scanState) handleMetadataBlock(lines []string, start int) int {
	var pageURL, pageTitle string
	i := start + 1

	for ; i < len(lines); i++ {
		line := lines[i]
		if blockEnds(line) {
			break
		}
		if strings.Contains(line, elementMarker) {
			break
		}
		key, value, found := bulletField(line)
		if !found {
			continue
		}
		switch key {
		case "URL":
			pageURL = value
		case "Title":
			pageTitle = value
		}
	}

	if pageURL == "" {
		return i - 1
	}
	page := s.observe(pageURL, pageTitle)

	// Element section, when present.
	if i >= len(lines) || !strings.Contains(lines[i], elementMarker) {
		return i - 1
	}
	var entry map[string]string
	flush := func() {
		if entry != nil {
			s.addElement(page, entry)
			entry = nil
		}
	}
	for i++; i < len(lines); i++ {
		line := lines[i]
		if blockEnds(line) {
			break
		}
		key, value, found := bulletField(line)
		if !found {
			// "Element <k>:" headers and blank lines carry no fields.
			continue
		}
		if key == "Selector" {
			flush()
			entry = map[string]string{}
		}
		if entry != nil {
			entry[key] = value
		}
	}
	flush()
	return i - 1
}

// observe registers one sighting of a page. First sightings allocate the
// node and, when a previous distinct page exists, one edge labeled with the
// most recent click action (or the navigation itself). Revisits only refine
// a missing title.
func (s *scanState) observe(rawURL, title string) *pageState {
	key, host := normalizeURL(rawURL)

	if idx, seen := s.index[key]; seen {
		page := s.pages[idx]
		if page.node.Metadata.Title == "" && title != "" {
			page.node.Metadata.Title = title
			page.node.Label = pageLabel(title, page.host)
		}
		s.current = idx
		s.haveCur = true
		return page
	}

	page := &pageState{
		node: models.PageNode{
			ID:    fmt.Sprintf("page_%d", len(s.pages)+1),
			Label: pageLabel(title, host),
			X:     200 + 300*len(s.pages),
			Y:     100,
			Metadata: models.PageMetadata{
				URL:         key,
				Title:       title,
				KeyElements: []models.ElementRecord{},
			},
		},
		host:      host,
		selectors: map[string]bool{},
	}

	if s.haveCur {
		action := s.lastAction
		if action == "" {
			action = "Go to " + truncate(key, actionLabelLimit)
		}
		s.edges = append(s.edges, models.Edge{
			Source: s.pages[s.current].node.ID,
			Target: page.node.ID,
			Label:  action,
		})
	}
	s.lastAction = ""

	s.index[key] = len(s.pages)
	s.current = len(s.pages)
	s.haveCur = true
	s.pages = append(s.pages, page)
	return page
}

func (s *scanState) addElement(page *pageState, fields map[string]string) {
	selector := fields["Selector"]
	if selector == "" || page.selectors[selector] {
		return
	}
	page.selectors[selector] = true

	tag := strings.Trim(fields["Tag"], "<>")
	kind := fields["Type"]
	if kind == "" {
		kind = models.ElementKind(tag)
	}

	page.node.Metadata.KeyElements = append(page.node.Metadata.KeyElements, models.ElementRecord{
		ID:        fmt.Sprintf("element_%d", len(page.node.Metadata.KeyElements)+1),
		Type:      kind,
		Tag:       tag,
		Text:      truncateRunes(fields["Text"], elementTextLimit),
		ElementID: fields["ID"],
		Name:      fields["Name"],
		Class:     fields["Class"],
		Href:      fields["Href"],
		InputType: fields["Input Type"],
		DependsOn: []string{},
	})
}

func (s *scanState) result() ([]models.PageNode, []models.Edge) {
	pages := make([]models.PageNode, len(s.pages))
	for i, page := range s.pages {
		pages[i] = page.node
	}
	edges := s.edges
	if edges == nil {
		edges = []models.Edge{}
	}
	return pages, edges
}

// bulletField splits a "• Key: Value" line. The literal None means absent.
func bulletField(line string) (key, value string, found bool) {
	trimmed := strings.TrimSpace(line)
	rest, hasBullet := strings.CutPrefix(trimmed, "• ")
	if !hasBullet {
		return "", "", false
	}
	key, value, found = strings.Cut(rest, ":")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if value == "None" {
		value = ""
	}
	return key, value, true
}

// blockEnds reports whether line starts the next tool outcome, terminating
// the metadata block being parsed.
func blockEnds(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "✅") ||
		strings.HasPrefix(trimmed, "❌") ||
		strings.HasPrefix(trimmed, "Tool execution results:") ||
		strings.Contains(trimmed, pageMetaMarker)
}

// normalizeURL canonicalizes a page URL for identity: an empty path becomes
// "/". Returns the canonical string and the host for labels. Unparseable
// input is used verbatim.
func normalizeURL(rawURL string) (key, host string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL, rawURL
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), u.Host
}

func pageLabel(title, host string) string {
	if title == "" {
		return host
	}
	return fmt.Sprintf("%s (%s)", title, host)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

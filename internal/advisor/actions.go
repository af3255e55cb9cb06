// internal/advisor/actions.go
package advisor

import (
	"regexp"
	"strconv"
	"strings"
)

// Action is a portfolio adjustment extracted from advisor prose.
type Action struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Changes     []Change `json:"changes"`
}

// Change moves one category from one percentage to another. From is a
// placeholder when the advisor only stated a delta; callers re-derive it from
// the live allocation snapshot before applying.
type Change struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}

// placeholderPct stands in for the current allocation when the advisor's
// phrasing doesn't state it.
const placeholderPct = 15

type category struct {
	id   string
	name string
}

var categoryAliases = map[string]category{
	"ai":                      {"ai", "AI & DeFi"},
	"artificial intelligence": {"ai", "AI & DeFi"},
	"meme":                    {"meme", "Meme & NFT"},
	"meme coin":               {"meme", "Meme & NFT"},
	"meme coins":              {"meme", "Meme & NFT"},
	"nft":                     {"meme", "Meme & NFT"},
	"rwa":                     {"rwa", "Real World Assets"},
	"real world assets":       {"rwa", "Real World Assets"},
	"big cap":                 {"bigcap", "Big Cap"},
	"bigcap":                  {"bigcap", "Big Cap"},
	"large cap":               {"bigcap", "Big Cap"},
	"defi":                    {"defi", "DeFi"},
	"decentralized finance":   {"defi", "DeFi"},
	"layer 1":                 {"l1", "Layer 1"},
	"l1":                      {"l1", "Layer 1"},
	"stablecoin":              {"stablecoin", "Stablecoins"},
	"stablecoins":             {"stablecoin", "Stablecoins"},
	"stable":                  {"stablecoin", "Stablecoins"},
}

var (
	increaseFromToRe = regexp.MustCompile(`(?i)increase\s+(\w+(?:\s+\w+)*?)\s+from\s+(\d+)%\s+to\s+(\d+)%`)
	decreaseFromToRe = regexp.MustCompile(`(?i)decrease\s+(\w+(?:\s+\w+)*?)\s+from\s+(\d+)%\s+to\s+(\d+)%`)
	increaseByRe     = regexp.MustCompile(`(?i)increase\s+(\w+(?:\s+\w+)*?)\s+by\s+(\d+)%`)
	decreaseByRe     = regexp.MustCompile(`(?i)decrease\s+(\w+(?:\s+\w+)*?)\s+by\s+(\d+)%`)
	allocateRe       = regexp.MustCompile(`(?i)allocate\s+(\d+)%\s+to\s+(\w+(?:\s+\w+)*)`)
)

// ParseAction scans advisor prose for allocation suggestions. It returns nil
// when the text doesn't mention portfolio changes or no category matched.
func ParseAction(text string) *Action {
	lowered := strings.ToLower(text)
	if !strings.Contains(lowered, "allocation") &&
		!strings.Contains(lowered, "portfolio") &&
		!strings.Contains(lowered, "rebalance") {
		return nil
	}

	var changes []Change

	appendFromTo := func(matches [][]string) {
		for _, m := range matches {
			cat, ok := categoryAliases[strings.ToLower(m[1])]
			if !ok {
				continue
			}
			from, _ := strconv.Atoi(m[2])
			to, _ := strconv.Atoi(m[3])
			changes = append(changes, Change{Category: cat.id, Name: cat.name, From: from, To: to})
		}
	}
	appendFromTo(increaseFromToRe.FindAllStringSubmatch(text, -1))
	appendFromTo(decreaseFromToRe.FindAllStringSubmatch(text, -1))

	// Delta-only phrasings are only consulted when no explicit from/to was
	// found, matching how users typically phrase a single suggestion.
	if len(changes) == 0 {
		for _, m := range increaseByRe.FindAllStringSubmatch(text, -1) {
			cat, ok := categoryAliases[strings.ToLower(m[1])]
			if !ok {
				continue
			}
			delta, _ := strconv.Atoi(m[2])
			changes = append(changes, Change{
				Category: cat.id, Name: cat.name,
				From: placeholderPct, To: placeholderPct + delta,
			})
		}
		for _, m := range decreaseByRe.FindAllStringSubmatch(text, -1) {
			cat, ok := categoryAliases[strings.ToLower(m[1])]
			if !ok {
				continue
			}
			delta, _ := strconv.Atoi(m[2])
			changes = append(changes, Change{
				Category: cat.id, Name: cat.name,
				From: placeholderPct, To: max(0, placeholderPct-delta),
			})
		}
		for _, m := range allocateRe.FindAllStringSubmatch(text, -1) {
			cat, ok := categoryAliases[strings.ToLower(m[2])]
			if !ok {
				continue
			}
			to, _ := strconv.Atoi(m[1])
			changes = append(changes, Change{
				Category: cat.id, Name: cat.name,
				From: placeholderPct, To: to,
			})
		}
	}

	if len(changes) == 0 {
		return nil
	}
	return &Action{
		Type:        "rebalance",
		Description: "Apply AI-suggested portfolio changes",
		Changes:     changes,
	}
}

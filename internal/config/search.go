package config

import "fmt"

// SearchConfigPrefix is the blob store prefix under which saved search
// config versions live.
const SearchConfigPrefix = "search_config/"

// ActiveSearchConfigKey is the settings key naming the activated version
// file. Unset means the static site configuration is in effect.
const ActiveSearchConfigKey = "active_search_config"

// SearchConfig is the runtime-editable slice of the crawl configuration: the
// search queries each portal runs, keyed by site name, plus shared keyword
// groups. Versions are saved to the blob store and activated via settings;
// the active version overrides the static site queries at startup.
type SearchConfig struct {
	Keywords map[string][]string      `json:"keywords,omitempty"`
	Sites    map[string][]QueryConfig `json:"sites"`
}

// Validate checks the structure and returns one message per problem found.
func (sc SearchConfig) Validate() []string {
	var problems []string
	if len(sc.Sites) == 0 {
		problems = append(problems, "'sites' must name at least one site")
	}
	for name, queries := range sc.Sites {
		if name == "" {
			problems = append(problems, "site names must not be empty")
			continue
		}
		if len(queries) == 0 {
			problems = append(problems, fmt.Sprintf("'sites.%s' must define at least one query", name))
		}
		for i, q := range queries {
			if q.Query == "" {
				problems = append(problems, fmt.Sprintf("'sites.%s[%d].query' is required", name, i))
			}
		}
	}
	return problems
}

// SearchFromSites builds the search config equivalent of the static site
// configuration, used when no version has been activated.
func SearchFromSites(sites []SiteConfig) SearchConfig {
	sc := SearchConfig{Sites: make(map[string][]QueryConfig, len(sites))}
	for _, site := range sites {
		sc.Sites[site.Name] = append([]QueryConfig{}, site.Queries...)
	}
	return sc
}

// ApplySearch returns a copy of sites with the queries of every site named
// in the search config replaced. Sites it does not name keep their static
// queries.
func ApplySearch(sites []SiteConfig, sc SearchConfig) []SiteConfig {
	out := append([]SiteConfig{}, sites...)
	for i := range out {
		if queries, ok := sc.Sites[out[i].Name]; ok {
			out[i].Queries = append([]QueryConfig{}, queries...)
		}
	}
	return out
}

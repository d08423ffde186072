package retrieval

import (
	"strings"

	"github.com/tripweaver/tripweaver/internal/types"
)

// cityRule maps a substring of free-text locale input to a canonical city
// name. Rules are checked in order and the first match wins, so county names
// that share a prefix with a city ("嘉義縣" vs "嘉義市") must come before the
// bare name. Normalization is idempotent: every canonical name contains one of
// its own match substrings.
type cityRule struct {
	match     string
	canonical string
}

var cityRules = []cityRule{
	// County/city disambiguation first. Best-effort: addresses that only
	// mention the shared bare name resolve to the city.
	{"嘉義縣", "嘉義縣"},
	{"嘉義", "嘉義市"},
	{"新竹縣", "新竹縣"},
	{"新竹", "新竹市"},

	{"台南", "台南市"},
	{"臺南", "台南市"},
	{"高雄", "高雄市"},
	{"台北", "台北市"},
	{"臺北", "台北市"},
	{"新北", "新北市"},
	{"桃園", "桃園市"},
	{"台中", "台中市"},
	{"臺中", "台中市"},
	{"基隆", "基隆市"},
	{"屏東", "屏東縣"},
	{"宜蘭", "宜蘭縣"},
	{"花蓮", "花蓮縣"},
	{"台東", "台東縣"},
	{"臺東", "台東縣"},
	{"南投", "南投縣"},
	{"彰化", "彰化縣"},
	{"雲林", "雲林縣"},
	{"苗栗", "苗栗縣"},
	{"澎湖", "澎湖縣"},
	{"金門", "金門縣"},
	{"馬祖", "連江縣"},
	{"連江", "連江縣"},
}

// NormalizeFilters derives the candidate-store filter from raw locale text.
// Pure and total: unknown text passes through unchanged as the city value so
// downstream matching stays best-effort instead of failing the request.
func NormalizeFilters(locationText string) types.Filter {
	text := strings.TrimSpace(locationText)
	if text == "" {
		return types.Filter{}
	}
	for _, rule := range cityRules {
		if strings.Contains(text, rule.match) {
			return types.Filter{City: rule.canonical}
		}
	}
	return types.Filter{City: text}
}

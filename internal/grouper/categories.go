package grouper

// AllowedCategories is the fixed per-DAO Discourse category filter: only
// topics posted in one of these categories are eligible to seed or join a
// proposal group.
var AllowedCategories = map[string][]int{
	"arbitrum": {7, 8, 9},
	"uniswap":  {5, 8, 9, 10},
}

func isAllowedCategory(daoSlug string, categoryID int) bool {
	ids, ok := AllowedCategories[daoSlug]
	if !ok {
		return true
	}
	for _, id := range ids {
		if id == categoryID {
			return true
		}
	}
	return false
}

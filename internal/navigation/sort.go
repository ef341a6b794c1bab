package navigation

import (
	"sort"
	"strings"

	"commerce/navigation/internal/domain"
)

// SortAlphabetically orders every level by case-insensitive title. Nodes
// with equal titles keep their relation order.
func SortAlphabetically(nodes []*domain.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return strings.ToUpper(nodes[i].Title) < strings.ToUpper(nodes[j].Title)
	})
	for _, n := range nodes {
		if len(n.Children) > 0 {
			SortAlphabetically(n.Children)
		}
	}
}

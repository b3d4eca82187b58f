package service

import (
	"sort"

	"github.com/noah-isme/markaz-go-api/internal/models"
)

// AssignRanks orders a class by grand total descending and assigns
// competition ranks: tied totals share a rank and the next distinct total
// resumes after the tie group, so totals [80, 80, 60] rank [1, 1, 3].
// Admission number ascending breaks ties deterministically for display
// order; tied students still share the same rank.
//
// Ranks are recomputed for the whole class whenever any member's marks
// change, never patched incrementally.
func AssignRanks(students []models.StudentRecord) []models.StudentRecord {
	ranked := make([]models.StudentRecord, len(students))
	copy(ranked, students)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].GrandTotal != ranked[j].GrandTotal {
			return ranked[i].GrandTotal > ranked[j].GrandTotal
		}
		return ranked[i].AdNo < ranked[j].AdNo
	})

	for i := range ranked {
		if i > 0 && ranked[i].GrandTotal == ranked[i-1].GrandTotal {
			ranked[i].Rank = ranked[i-1].Rank
			continue
		}
		ranked[i].Rank = i + 1
	}
	return ranked
}

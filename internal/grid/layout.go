package grid

import "github.com/timmy/photogrid/internal/domain"

// Cell is one photo placed in a row.
type Cell struct {
	Photo        domain.PhotoRecord `json:"photo"`
	DisplayWidth float64            `json:"display_width"`
	Weight       float64            `json:"weight"`
}

// Row is one line of the staggered grid; it holds one or two cells.
type Row struct {
	Height float64 `json:"height"`
	Cells  []Cell  `json:"cells"`
}

// PairRow scales b to a's height and splits the row width between them.
// Both records must have positive height, which NewPhotoRecord enforces.
func PairRow(a, b domain.PhotoRecord) Row {
	h := float64(a.Height)
	bWidth := float64(b.Width) * (h / float64(b.Height))
	aWidth := float64(a.Width)
	sum := aWidth + bWidth

	return Row{
		Height: h,
		Cells: []Cell{
			{Photo: a, DisplayWidth: aWidth, Weight: aWidth / sum},
			{Photo: b, DisplayWidth: bWidth, Weight: bWidth / sum},
		},
	}
}

// SingleRow places one record alone across the full row.
func SingleRow(a domain.PhotoRecord) Row {
	return Row{
		Height: float64(a.Height),
		Cells:  []Cell{{Photo: a, DisplayWidth: float64(a.Width), Weight: 1}},
	}
}

// Rows chunks items into pairs in order; a trailing odd item gets its own row.
func Rows(items []domain.PhotoRecord) []Row {
	rows := make([]Row, 0, (len(items)+1)/2)
	for i := 0; i < len(items); i += 2 {
		if i+1 < len(items) {
			rows = append(rows, PairRow(items[i], items[i+1]))
		} else {
			rows = append(rows, SingleRow(items[i]))
		}
	}
	return rows
}

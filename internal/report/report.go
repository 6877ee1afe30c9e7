// Package report renders terminal summaries of a profiling run.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/okian/playstyle/internal/domain/model"
)

// TopPlayTypes is how many play types a cluster summary lists.
const TopPlayTypes = 3

// PlayTypeMean is the mean frequency of one play type within a cluster.
type PlayTypeMean struct {
	PlayType string
	Mean     float64
}

// ClusterSummary describes one cluster of a run.
type ClusterSummary struct {
	Cluster string
	Size    int
	Share   float64 // of all rows
	Top     []PlayTypeMean
}

// Summarize groups a run's profiles by label. Sentinel cells count as zero
// usage in the means. Clusters are ordered by numeric label.
func Summarize(run *model.Run) []ClusterSummary {
	n := run.Schema.Len()
	sums := make(map[string][]float64)
	sizes := make(map[string]int)
	for _, p := range run.Profiles {
		if sums[p.Cluster] == nil {
			sums[p.Cluster] = make([]float64, n)
		}
		sizes[p.Cluster]++
		for j := 0; j < n && j < len(p.Frequencies); j++ {
			sums[p.Cluster][j] += max(p.Frequencies[j], 0)
		}
	}

	out := make([]ClusterSummary, 0, len(sizes))
	for label, size := range sizes {
		means := make([]PlayTypeMean, n)
		for j, pt := range run.Schema.PlayTypes {
			means[j] = PlayTypeMean{PlayType: pt, Mean: sums[label][j] / float64(size)}
		}
		// stable keeps schema order among equal means
		sort.SliceStable(means, func(a, b int) bool { return means[a].Mean > means[b].Mean })
		out = append(out, ClusterSummary{
			Cluster: label,
			Size:    size,
			Share:   float64(size) / float64(len(run.Profiles)),
			Top:     means[:min(TopPlayTypes, n)],
		})
	}
	sort.Slice(out, func(a, b int) bool { return lessLabel(out[a].Cluster, out[b].Cluster) })
	return out
}

// PrintClusterTable writes the cluster table followed by the selected k and
// the explained variance of both components.
func PrintClusterTable(w io.Writer, run *model.Run) error {
	table := tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))

	header := []any{"CLUSTER", "SIZE", "SHARE"}
	for i := 1; i <= TopPlayTypes; i++ {
		header = append(header, "TOP "+strconv.Itoa(i))
	}
	table.Header(header...)

	for _, c := range Summarize(run) {
		row := make([]any, 0, len(header))
		row = append(row, c.Cluster, strconv.Itoa(c.Size), fmt.Sprintf("%.1f%%", 100*c.Share))
		for i := 0; i < TopPlayTypes; i++ {
			cell := ""
			if i < len(c.Top) {
				cell = fmt.Sprintf("%s %.1f%%", c.Top[i].PlayType, c.Top[i].Mean)
			}
			row = append(row, cell)
		}
		if err := table.Append(row...); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nk=%d  rows=%d  flagged=%d  explained variance: PC1 %.1f%%  PC2 %.1f%%\n",
		run.SelectedK, len(run.Profiles), run.FlaggedRows,
		100*run.ExplainedVariance[0], 100*run.ExplainedVariance[1])
	return err
}

func lessLabel(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

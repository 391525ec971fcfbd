package agent

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fmuoria/agent-studio/internal/models"
)

// candidateTable renders every record of the batch, in batch order, as an aligned text table
func candidateTable(batch *models.BatchResult) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "name\tsource_file\tscore\tyears_experience\tskills\teducation\trecommendation")
	for _, c := range batch.Candidates {
		years := ""
		if c.YearsExperience != nil {
			years = strconv.Itoa(*c.YearsExperience)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			oneLine(c.Name), oneLine(c.SourceFile), c.Score, years,
			oneLine(strings.Join(c.Skills, ", ")), oneLine(c.Education), oneLine(c.Recommendation))
	}
	_ = w.Flush()
	return sb.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

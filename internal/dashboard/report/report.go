// Package report renders the usage PDF served to administrators.
package report

import (
	"fmt"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type Row struct {
	TelegramID string
	Name       string
	Downloads  int64
}

type Data struct {
	Title          string
	GeneratedAt    time.Time
	TotalUsers     int64
	ProUsers       int64
	TotalDownloads int64
	ActiveTrials   int64
	Activity       []Row
}

// Render lays out the headline counters followed by the activity table.
func Render(data Data) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	title := data.Title
	if title == "" {
		title = "Usage report"
	}
	m.AddRow(12,
		text.NewCol(12, title, props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, "Generated "+data.GeneratedAt.UTC().Format(time.RFC1123), props.Text{Size: 9}),
	)

	m.AddRow(24,
		counterCol("Users", data.TotalUsers),
		counterCol("PRO users", data.ProUsers),
		counterCol("Downloads", data.TotalDownloads),
		counterCol("Active trials", data.ActiveTrials),
	)

	m.AddRow(10,
		text.NewCol(12, "Top users by downloads", props.Text{Size: 12, Style: fontstyle.Bold, Top: 2}),
	)
	m.AddRow(8,
		text.NewCol(4, "Telegram ID", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(6, "Name", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Downloads", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if len(data.Activity) == 0 {
		m.AddRow(8, text.NewCol(12, "No downloads yet.", props.Text{Size: 9}))
	}
	for _, row := range data.Activity {
		m.AddRow(7,
			text.NewCol(4, row.TelegramID, props.Text{Size: 9}),
			text.NewCol(6, row.Name, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", row.Downloads), props.Text{Size: 9, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func counterCol(label string, value int64) core.Col {
	return col.New(3).Add(
		text.New(label, props.Text{Size: 9, Align: align.Center}),
		text.New(fmt.Sprintf("%d", value), props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Center, Top: 6}),
	)
}

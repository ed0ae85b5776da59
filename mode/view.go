package mode

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/pipeline"
)

var moodColors = map[string]*color.Color{
	"happy":     color.New(color.FgGreen, color.Bold),
	"surprised": color.New(color.FgCyan, color.Bold),
	"neutral":   color.New(color.FgWhite),
	"sad":       color.New(color.FgBlue),
	"angry":     color.New(color.FgRed, color.Bold),
	"fearful":   color.New(color.FgMagenta),
	"disgusted": color.New(color.FgYellow),
}

// ConsoleView re-renders one status line whenever the attributes change.
type ConsoleView struct {
	mu    sync.Mutex
	out   io.Writer
	lines int
}

func NewConsoleView(out io.Writer) *ConsoleView {
	return &ConsoleView{out: out}
}

func (v *ConsoleView) Run(ctx context.Context, cell *pipeline.AttributesCell) {
	updates, cancel := cell.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case attrs, ok := <-updates:
			if !ok {
				return
			}
			v.Render(attrs)
		}
	}
}

func (v *ConsoleView) Render(attrs model.ExtractedAttributes) {
	v.mu.Lock()
	defer v.mu.Unlock()

	mood := "-"
	c := color.New(color.Faint)
	if attrs.HasMood {
		mood = attrs.Mood
		if mc, ok := moodColors[attrs.Mood]; ok {
			c = mc
		}
	}

	fmt.Fprintf(v.out, "age %s  gender %s  mood %s\n",
		color.New(color.Bold).Sprint(attrs.Age),
		attrs.Gender,
		c.Sprint(mood),
	)
	v.lines++
}

func (v *ConsoleView) Lines() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lines
}

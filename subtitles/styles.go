package subtitles

import (
	"fmt"
	"sort"
)

// Style is a caption look shared by ASS export and ffmpeg burn-in
type Style struct {
	Name        string
	Font        string
	FontSize    int
	Bold        bool
	Primary     string // ASS colour, &HAABBGGRR
	OutlineCol  string
	BackCol     string
	Outline     float64
	Shadow      float64
	BorderStyle int // 1 outline+shadow, 3 opaque box
	MarginV     int
}

var styles = map[string]Style{
	"standard": {Font: "Arial", FontSize: 36, Primary: "&H00FFFFFF", OutlineCol: "&H00000000", BackCol: "&H00000000", BorderStyle: 1, MarginV: 60},
	"bold":     {Font: "Arial", FontSize: 40, Bold: true, Primary: "&H00FFFFFF", OutlineCol: "&H00000000", BackCol: "&H00000000", BorderStyle: 1, MarginV: 60},
	"shadow":   {Font: "Arial", FontSize: 36, Primary: "&H00FFFFFF", OutlineCol: "&H00000000", BackCol: "&H00000000", Shadow: 2, BorderStyle: 1, MarginV: 60},
	"outline":  {Font: "Arial", FontSize: 36, Primary: "&H00FFFFFF", OutlineCol: "&H00000000", BackCol: "&H00000000", Outline: 2, BorderStyle: 1, MarginV: 60},
	"modern":   {Font: "Roboto Medium", FontSize: 38, Primary: "&H00FFFFFF", OutlineCol: "&H00000000", BackCol: "&H80000000", Shadow: 1, BorderStyle: 3, MarginV: 80},
	"minimal":  {Font: "Roboto Light", FontSize: 32, Primary: "&H00FFFFFF", OutlineCol: "&H00000000", BackCol: "&H00000000", Outline: 1, BorderStyle: 1, MarginV: 40},
}

// LookupStyle returns the named preset, falling back to "standard"
func LookupStyle(name string) Style {
	s, ok := styles[name]
	if !ok {
		name = "standard"
		s = styles[name]
	}
	s.Name = name
	return s
}

// StyleNames lists the presets in a stable order
func StyleNames() []string {
	names := make([]string, 0, len(styles))
	for n := range styles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ForceStyle renders the style for ffmpeg's subtitles filter
func (s Style) ForceStyle() string {
	return fmt.Sprintf(
		"FontName=%s,FontSize=%d,Bold=%d,PrimaryColour=%s,OutlineColour=%s,BackColour=%s,BorderStyle=%d,Outline=%.0f,Shadow=%.0f,Alignment=2,MarginV=%d",
		s.Font, s.FontSize, boolToInt(s.Bold), s.Primary, s.OutlineCol, s.BackCol,
		s.BorderStyle, s.Outline, s.Shadow, s.MarginV,
	)
}

func (s Style) assLine() string {
	bold := 0
	if s.Bold {
		bold = -1
	}
	return fmt.Sprintf(
		"Style: Default,%s,%d,%s,&H000000FF,%s,%s,%d,0,0,0,100,100,0,0,%d,%.0f,%.0f,2,10,10,%d,1",
		s.Font, s.FontSize, s.Primary, s.OutlineCol, s.BackCol, bold,
		s.BorderStyle, s.Outline, s.Shadow, s.MarginV,
	)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

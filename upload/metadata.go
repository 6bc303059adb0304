package upload

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"shorts-pipeline/config"
	"shorts-pipeline/subtitles"
	"shorts-pipeline/types"
)

const maxTags = 15

var stopwords = map[string]bool{
	"para": true, "como": true, "mais": true, "isso": true, "esse": true, "essa": true,
	"este": true, "esta": true, "voce": true, "você": true, "que": true, "com": true,
	"this": true, "that": true, "with": true, "from": true, "your": true, "have": true,
	"what": true, "when": true, "will": true, "they": true, "there": true, "about": true,
}

// BuildMetadata derives upload metadata from the job narration and the
// platform CTA. It is deterministic: same job, same metadata.
func BuildMetadata(rec types.JobRecord, platform, cta string, cfg config.UploadConfig) types.VideoMetadata {
	title := titleFor(rec)
	if cfg.TitleMaxChars > 3 && utf8.RuneCountInString(title) > cfg.TitleMaxChars {
		title = string([]rune(title)[:cfg.TitleMaxChars-3]) + "..."
	}

	var desc strings.Builder
	if rec.NarrationText != "" {
		desc.WriteString(rec.NarrationText)
		desc.WriteString("\n\n")
	}
	desc.WriteString(cta)

	tags := tagsFor(rec.NarrationText)
	if platform == "youtube" {
		tags = append([]string{"shorts"}, tags...)
		desc.WriteString("\n\n#shorts")
	}

	return types.VideoMetadata{
		Title:       title,
		Description: strings.TrimSpace(desc.String()),
		Tags:        tags,
		CategoryID:  cfg.CategoryID,
		Visibility:  cfg.Visibility,
	}
}

// titleFor uses the first narration sentence, else the source file stem
func titleFor(rec types.JobRecord) string {
	if s := subtitles.SplitSentences(rec.NarrationText); len(s) > 0 {
		return s[0]
	}
	stem := strings.TrimSuffix(filepath.Base(rec.SourcePath), filepath.Ext(rec.SourcePath))
	return strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return ' '
		}
		return r
	}, stem)
}

// tagsFor picks the most frequent content words, ties broken alphabetically
func tagsFor(text string) []string {
	counts := map[string]int{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if utf8.RuneCountInString(w) < 4 || stopwords[w] {
			continue
		}
		counts[w]++
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > maxTags {
		words = words[:maxTags]
	}
	return words
}

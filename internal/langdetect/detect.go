// Package langdetect classifies query text by Unicode script share. It is a
// routing heuristic, not language identification.
package langdetect

import (
	"log/slog"
	"unicode"

	"golang.org/x/text/unicode/rangetable"
)

// Tag is a detected language
type Tag string

const (
	English            Tag = "en"
	SimplifiedChinese  Tag = "zh"
	TraditionalChinese Tag = "zh-tw"
	Japanese           Tag = "ja"
	Korean             Tag = "ko"
	Arabic             Tag = "ar"
	Russian            Tag = "ru"
)

// threshold is the share a script must exceed before the text is treated as non-Latin
const threshold = 0.3

var (
	han = &unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x4e00, Hi: 0x9fff, Stride: 1}}}

	// Japanese counts kana plus the kanji block shared with Han
	japanese = rangetable.Merge(
		&unicode.RangeTable{R16: []unicode.Range16{
			{Lo: 0x3040, Hi: 0x309f, Stride: 1},
			{Lo: 0x30a0, Hi: 0x30ff, Stride: 1},
		}},
		&unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x4e00, Hi: 0x9faf, Stride: 1}}},
	)

	hangul = &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x1100, Hi: 0x11ff, Stride: 1},
		{Lo: 0x3130, Hi: 0x318f, Stride: 1},
		{Lo: 0xac00, Hi: 0xd7af, Stride: 1},
	}}

	arabic = &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x0600, Hi: 0x06ff, Stride: 1},
		{Lo: 0x0750, Hi: 0x077f, Stride: 1},
		{Lo: 0x08a0, Hi: 0x08ff, Stride: 1},
		{Lo: 0xfb50, Hi: 0xfdff, Stride: 1},
		{Lo: 0xfe70, Hi: 0xfeff, Stride: 1},
	}}

	cyrillic = &unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x0400, Hi: 0x04ff, Stride: 1}}}

	// ideographs that only appear in traditional script
	traditionalOnly = rangetable.New([]rune(
		"體學習實務資訊網電腦資庫員顯組織異執脅偵測應報議評風險級關鍵發現" +
			"麼為們認潛擊釋簡潔與於個會對來說過時這樣還從據將讓夠進處設試連態請數詢點標題幫",
	)...)
)

// script pairs a result tag with the table that counts toward it, in tie-break order
type script struct {
	tag   Tag
	table *unicode.RangeTable
}

var scripts = []script{
	{SimplifiedChinese, han},
	{Japanese, japanese},
	{Korean, hangul},
	{Arabic, arabic},
	{Russian, cyrillic},
}

// Detect returns the language tag for text
func Detect(text string) Tag {
	total := 0
	traditional := 0
	counts := make([]int, len(scripts))

	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		for i, s := range scripts {
			if unicode.Is(s.table, r) {
				counts[i]++
			}
		}
		if unicode.Is(traditionalOnly, r) {
			traditional++
		}
	}

	if total == 0 {
		return English
	}

	best := -1
	maxRatio := 0.0
	for i, n := range counts {
		ratio := float64(n) / float64(total)
		if ratio > maxRatio {
			maxRatio = ratio
			best = i
		}
	}

	slog.Debug("language detection",
		"han_ratio", float64(counts[0])/float64(total),
		"max_ratio", maxRatio,
		"traditional_chars", traditional)

	if maxRatio <= threshold {
		return English
	}
	if scripts[best].tag == SimplifiedChinese && traditional > 0 {
		return TraditionalChinese
	}
	return scripts[best].tag
}

// Valid reports whether tag is one the detector can produce
func Valid(tag Tag) bool {
	switch tag {
	case English, SimplifiedChinese, TraditionalChinese, Japanese, Korean, Arabic, Russian:
		return true
	}
	return false
}

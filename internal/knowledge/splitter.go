package knowledge

import "strings"

// SectionSplitter 对超长分节做尺寸约束的二次切分。
// 优先在段落边界断开，超限段落退化为带重叠的rune窗口。
type SectionSplitter struct {
	maxRunes int
	overlap  int
}

// NewSectionSplitter 创建分节切分器
func NewSectionSplitter(maxRunes, overlap int) *SectionSplitter {
	if maxRunes <= 0 {
		maxRunes = 1600
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxRunes {
		overlap = maxRunes / 4
	}
	return &SectionSplitter{maxRunes: maxRunes, overlap: overlap}
}

// Split 应用尺寸约束，返回顺序重新编号的分节序列
func (s *SectionSplitter) Split(sections []ParsedSection) []ParsedSection {
	var out []ParsedSection
	for _, sec := range sections {
		if len([]rune(sec.Content)) <= s.maxRunes {
			sec.Order = len(out)
			out = append(out, sec)
			continue
		}
		for _, piece := range s.splitLong(sec.Content) {
			part := ParsedSection{
				Title:     sec.Title,
				Content:   piece,
				Order:     len(out),
				HasCode:   strings.Contains(piece, "```"),
				Images:    extractImages(piece),
			}
			part.HasImages = len(part.Images) > 0
			out = append(out, part)
		}
	}
	return out
}

// splitLong 按段落聚合到尺寸上限，段落本身超限时按rune窗口切
func (s *SectionSplitter) splitLong(content string) []string {
	paragraphs := strings.Split(content, "\n\n")
	var pieces []string
	var buf strings.Builder

	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text != "" {
			pieces = append(pieces, text)
		}
		buf.Reset()
	}

	for _, para := range paragraphs {
		paraRunes := len([]rune(para))
		if paraRunes > s.maxRunes {
			flush()
			pieces = append(pieces, s.windowSplit(para)...)
			continue
		}
		if len([]rune(buf.String()))+paraRunes+2 > s.maxRunes {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	flush()
	return pieces
}

// windowSplit 带重叠的rune窗口切分
func (s *SectionSplitter) windowSplit(text string) []string {
	runes := []rune(text)
	step := s.maxRunes - s.overlap
	if step <= 0 {
		step = s.maxRunes
	}

	var pieces []string
	for start := 0; start < len(runes); start += step {
		end := start + s.maxRunes
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return pieces
}
